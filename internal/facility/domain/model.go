package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	capacitydomain "github.com/railzwaylabs/parkway/internal/capacity/domain"
	pricingdomain "github.com/railzwaylabs/parkway/internal/pricing/domain"
)

type Facility struct {
	ID        snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name      string       `gorm:"type:varchar(255);not null" json:"name"`
	Location  string       `gorm:"type:varchar(255)" json:"location"`
	Currency  string       `gorm:"type:varchar(3);not null" json:"currency"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (Facility) TableName() string { return "facilities" }

// RateTier is the stored form of one pricing tier.
type RateTier struct {
	ID               snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	FacilityID       snowflake.ID `gorm:"not null;uniqueIndex:ux_rate_tiers_facility_threshold"`
	MinutesThreshold float64      `gorm:"not null;uniqueIndex:ux_rate_tiers_facility_threshold"`
	Price            int64        `gorm:"not null"`
	CreatedAt        time.Time    `gorm:"not null"`
}

func (RateTier) TableName() string { return "rate_tiers" }

type CreateRequest struct {
	Name     string                  `json:"name"`
	Location string                  `json:"location"`
	Currency string                  `json:"currency"`
	Capacity int64                   `json:"capacity"`
	Tiers    pricingdomain.RateTable `json:"tiers"`
}

type Detail struct {
	Facility
	Tiers    pricingdomain.RateTable  `json:"tiers"`
	Capacity *capacitydomain.Capacity `json:"capacity"`
}

type Quote struct {
	FacilityID snowflake.ID `json:"facility_id"`
	Minutes    float64      `json:"minutes"`
	Amount     int64        `json:"amount"`
	Currency   string       `json:"currency"`
}
