package models

import (
	"time"

	"promoledger/internal/domain"
)

// Attribution links one click to an eventual order and its commission.
// OrderID is nil until conversion; (link_id, order_id) is unique once set.
type Attribution struct {
	ID               string                   `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	LinkID           string                   `gorm:"size:36;not null;index;uniqueIndex:idx_attribution_link_order" bson:"linkId" json:"linkId"`
	InfluencerID     string                   `gorm:"size:128;not null;index" bson:"influencerId" json:"influencerId"`
	ProductID        string                   `gorm:"size:128;not null;index" bson:"productId" json:"productId"`
	OrderID          *string                  `gorm:"size:128;uniqueIndex:idx_attribution_link_order" bson:"orderId,omitempty" json:"orderId,omitempty"`
	Status           domain.AttributionStatus `gorm:"size:20;not null;index" bson:"status" json:"status"`
	OrderAmount      *int64                   `bson:"orderAmount,omitempty" json:"orderAmount,omitempty"`
	CommissionAmount *int64                   `bson:"commissionAmount,omitempty" json:"commissionAmount,omitempty"`
	RateBps          *int                     `bson:"rateBps,omitempty" json:"rateBps,omitempty"`
	IPHash           string                   `gorm:"size:64" bson:"ipHash,omitempty" json:"-"`
	UserAgentHash    string                   `gorm:"size:64" bson:"userAgentHash,omitempty" json:"-"`
	ClickedAt        time.Time                `gorm:"not null;index" bson:"clickedAt" json:"clickedAt"`
	ConvertedAt      *time.Time               `bson:"convertedAt,omitempty" json:"convertedAt,omitempty"`
	PaidAt           *time.Time               `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	CreatedAt        time.Time                `gorm:"index" bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time                `bson:"updatedAt" json:"updatedAt"`
}

func (Attribution) TableName() string { return "attributions" }

// Commission returns the recorded commission, zero while the row is still a click.
func (a *Attribution) Commission() int64 {
	if a.CommissionAmount == nil {
		return 0
	}
	return *a.CommissionAmount
}

// AttributionFilter narrows attribution listings.
type AttributionFilter struct {
	InfluencerID string
	Status       domain.AttributionStatus
	Since        time.Time
	Limit        int
	Offset       int
}

// StatusTotal is one row of a per-status aggregation.
type StatusTotal struct {
	Status     domain.AttributionStatus `bson:"_id" json:"status"`
	Count      int64                    `bson:"count" json:"count"`
	Commission int64                    `bson:"commission" json:"commission"`
}
