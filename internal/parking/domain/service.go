package domain

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type ParkRequest struct {
	FacilityID snowflake.ID `json:"facility_id"`
	Vehicle    string       `json:"vehicle"`
}

type ParkResponse struct {
	SessionID  snowflake.ID `json:"session_id"`
	FacilityID snowflake.ID `json:"facility_id"`
	VehicleID  string       `json:"vehicle_id"`
	StartedAt  time.Time    `json:"started_at"`
}

type LeaveRequest struct {
	Vehicle       string `json:"vehicle"`
	PaymentMethod string `json:"payment_method"`
}

type LeaveResponse struct {
	TransactionID  snowflake.ID `json:"transaction_id"`
	PaymentID      snowflake.ID `json:"payment_id"`
	Amount         int64        `json:"amount"`
	Currency       string       `json:"currency"`
	ElapsedMinutes float64      `json:"elapsed_minutes"`
}

// Service owns the Park and Leave sequences and their compensations.
type Service interface {
	Park(ctx context.Context, req ParkRequest) (*ParkResponse, error)
	Leave(ctx context.Context, req LeaveRequest) (*LeaveResponse, error)
}

// NormalizeVehicle trims and upper-cases a licence plate.
func NormalizeVehicle(raw string) (string, error) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if v == "" || len(v) > 32 {
		return "", ErrInvalidVehicle
	}
	return v, nil
}
