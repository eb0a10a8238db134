package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/railzwaylabs/parkway/internal/payment/domain"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("transaction_not_found")
	ErrInvalidRecord = errors.New("invalid_transaction_record")
)

// TransactionRecord is the permanent trace of a completed stay. It carries a
// snapshot of the session and duration because both are gone once a vehicle
// has left.
type TransactionRecord struct {
	ID             snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	SessionID      snowflake.ID `gorm:"not null;uniqueIndex" json:"session_id"`
	VehicleID      string       `gorm:"type:varchar(32);not null;index" json:"vehicle_id"`
	FacilityID     snowflake.ID `gorm:"not null;index" json:"facility_id"`
	AccountID      snowflake.ID `gorm:"not null" json:"account_id"`
	DurationID     snowflake.ID `gorm:"not null" json:"duration_id"`
	PaymentID      snowflake.ID `gorm:"not null" json:"payment_id"`
	StartedAt      time.Time    `gorm:"not null" json:"started_at"`
	EndedAt        time.Time    `gorm:"not null" json:"ended_at"`
	ElapsedMinutes float64      `gorm:"not null" json:"elapsed_minutes"`
	Amount         int64        `gorm:"not null" json:"amount"`
	Currency       string       `gorm:"type:varchar(3);not null" json:"currency"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
}

func (TransactionRecord) TableName() string { return "transaction_records" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, rec *TransactionRecord) error
	InsertPayment(ctx context.Context, db *gorm.DB, p *paymentdomain.Payment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*TransactionRecord, error)
	ListByVehicle(ctx context.Context, db *gorm.DB, vehicleID string, limit int) ([]TransactionRecord, error)
}

type Recorder interface {
	// Record persists the payment and its transaction record atomically.
	Record(ctx context.Context, p *paymentdomain.Payment, rec *TransactionRecord) error
	Get(ctx context.Context, id snowflake.ID) (*TransactionRecord, error)
	ListByVehicle(ctx context.Context, vehicleID string, limit int) ([]TransactionRecord, error)
}
