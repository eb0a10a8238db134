package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

const MethodAccount = "account"

var ErrSinkUnavailable = errors.New("payment_sink_unavailable")

// Payment is the charge settled when a vehicle leaves.
type Payment struct {
	ID        snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	AccountID snowflake.ID `gorm:"not null;index" json:"account_id"`
	Amount    int64        `gorm:"not null" json:"amount"`
	Currency  string       `gorm:"type:varchar(3);not null" json:"currency"`
	Method    string       `gorm:"type:varchar(32);not null" json:"method"`
	PaidAt    time.Time    `gorm:"not null" json:"paid_at"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

func (Payment) TableName() string { return "payments" }

// Sink forwards settled payments to downstream consumers. Publishing happens
// after the payment is durable; failures never roll back a leave.
type Sink interface {
	Publish(ctx context.Context, p *Payment) error
}
