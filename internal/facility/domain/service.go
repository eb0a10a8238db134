package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	pricingdomain "github.com/railzwaylabs/parkway/internal/pricing/domain"
	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("facility_not_found")
	ErrInvalidName     = errors.New("invalid_facility_name")
	ErrInvalidCurrency = errors.New("invalid_currency")
	ErrInvalidCapacity = errors.New("invalid_capacity")
	ErrInvalidMinutes  = errors.New("invalid_minutes")
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, f *Facility) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Facility, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	ListTiers(ctx context.Context, db *gorm.DB, facilityID snowflake.ID) ([]RateTier, error)
	ReplaceTiers(ctx context.Context, db *gorm.DB, facilityID snowflake.ID, tiers []RateTier) error
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Detail, error)
	Get(ctx context.Context, id snowflake.ID) (*Detail, error)
	ReplaceRates(ctx context.Context, id snowflake.ID, tiers pricingdomain.RateTable) (pricingdomain.RateTable, error)
	// RateTable returns the facility's tiers and billing currency.
	RateTable(ctx context.Context, id snowflake.ID) (pricingdomain.RateTable, string, error)
	Quote(ctx context.Context, id snowflake.ID, minutes float64) (*Quote, error)
}
