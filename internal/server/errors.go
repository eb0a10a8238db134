package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	facilitydomain "github.com/railzwaylabs/parkway/internal/facility/domain"
	parkingdomain "github.com/railzwaylabs/parkway/internal/parking/domain"
	pricingdomain "github.com/railzwaylabs/parkway/internal/pricing/domain"
	transactiondomain "github.com/railzwaylabs/parkway/internal/transaction/domain"
)

var (
	ErrInvalidRequest   = errors.New("invalid_request")
	ErrRateLimited      = errors.New("rate_limited")
	ErrInvalidSimulated = errors.New("invalid_simulated_time")
)

type apiError struct {
	status  int
	code    string
	message string
}

func invalidRequestError() error {
	return ErrInvalidRequest
}

// AbortWithError writes the error body and stops the handler chain. Internal
// failures are reported opaquely.
func AbortWithError(c *gin.Context, err error) {
	apiErr := classify(err)
	if apiErr.status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}

	var pe *parkingdomain.PersistenceError
	if errors.As(err, &pe) && pe.Retryable() && !errors.Is(err, parkingdomain.ErrBillingFailed) {
		c.Header("Retry-After", "1")
	}

	c.AbortWithStatusJSON(apiErr.status, gin.H{
		"error": gin.H{
			"code":    apiErr.code,
			"message": apiErr.message,
		},
	})
}

func classify(err error) apiError {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return apiError{http.StatusBadRequest, "invalid_request", "request body or parameters are invalid"}
	case errors.Is(err, ErrInvalidSimulated):
		return apiError{http.StatusBadRequest, "invalid_simulated_time", "X-Simulated-Time must be RFC3339"}
	case errors.Is(err, ErrRateLimited):
		return apiError{http.StatusTooManyRequests, "rate_limited", "too many requests"}

	case errors.Is(err, parkingdomain.ErrBillingFailed):
		return apiError{http.StatusInternalServerError, "billing_failed", "vehicle released but billing could not be completed"}
	case errors.Is(err, parkingdomain.ErrPersistence):
		return apiError{http.StatusServiceUnavailable, "persistence_error", "temporary failure, retry later"}
	case errors.Is(err, parkingdomain.ErrInvalidVehicle):
		return apiError{http.StatusBadRequest, "invalid_vehicle", err.Error()}
	case errors.Is(err, parkingdomain.ErrUnknownVehicle):
		return apiError{http.StatusNotFound, "unknown_vehicle", err.Error()}
	case errors.Is(err, parkingdomain.ErrAlreadyActive):
		return apiError{http.StatusConflict, "already_active", err.Error()}
	case errors.Is(err, parkingdomain.ErrNoActiveSession):
		return apiError{http.StatusNotFound, "no_active_session", err.Error()}
	case errors.Is(err, parkingdomain.ErrCapacityExhausted):
		return apiError{http.StatusConflict, "capacity_exhausted", err.Error()}
	case errors.Is(err, parkingdomain.ErrFacilityNotFound),
		errors.Is(err, facilitydomain.ErrNotFound):
		return apiError{http.StatusNotFound, "facility_not_found", err.Error()}
	case errors.Is(err, transactiondomain.ErrNotFound):
		return apiError{http.StatusNotFound, "transaction_not_found", err.Error()}

	case isFacilityValidationError(err):
		return apiError{http.StatusBadRequest, err.Error(), err.Error()}
	}
	return apiError{http.StatusInternalServerError, "internal_error", "internal error"}
}

func isFacilityValidationError(err error) bool {
	switch {
	case errors.Is(err, facilitydomain.ErrInvalidName),
		errors.Is(err, facilitydomain.ErrInvalidCurrency),
		errors.Is(err, facilitydomain.ErrInvalidCapacity),
		errors.Is(err, facilitydomain.ErrInvalidMinutes),
		errors.Is(err, pricingdomain.ErrInvalidThreshold),
		errors.Is(err, pricingdomain.ErrInvalidPrice),
		errors.Is(err, pricingdomain.ErrDuplicateThreshold):
		return true
	default:
		return false
	}
}
