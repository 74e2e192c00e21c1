package models

import (
	"time"

	"promoledger/internal/domain"
)

// Sponsorship is a paid, time-boxed promotion of one product.
// Budget is the remaining amount; SpentToday belongs to the UTC day in LastResetDay.
type Sponsorship struct {
	ID            string                   `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	ProductID     string                   `gorm:"size:128;not null;index" bson:"productId" json:"productId"`
	BusinessID    string                   `gorm:"size:128;not null;index" bson:"businessId" json:"businessId"`
	Budget        int64                    `gorm:"not null" bson:"budget" json:"budget"`
	InitialBudget int64                    `gorm:"not null" bson:"initialBudget" json:"initialBudget"`
	DailyBudget   int64                    `gorm:"not null" bson:"dailyBudget" json:"dailyBudget"`
	SpentToday    int64                    `gorm:"not null;default:0" bson:"spentToday" json:"spentToday"`
	LastResetDay  string                   `gorm:"size:10;not null;index" bson:"lastResetDay" json:"lastResetDay"`
	StartDate     time.Time                `gorm:"not null;index" bson:"startDate" json:"startDate"`
	EndDate       time.Time                `gorm:"not null;index" bson:"endDate" json:"endDate"`
	Status        domain.SponsorshipStatus `gorm:"size:20;not null;index" bson:"status" json:"status"`
	PauseReason   string                   `gorm:"size:20" bson:"pauseReason,omitempty" json:"pauseReason,omitempty"`
	ApprovedAt    *time.Time               `bson:"approvedAt,omitempty" json:"approvedAt,omitempty"`
	CreatedAt     time.Time                `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time                `bson:"updatedAt" json:"updatedAt"`
}

func (Sponsorship) TableName() string { return "sponsorships" }

// EffectiveStatus is the only place status is read: past EndDate the sponsorship
// is EXPIRED whatever the stored field says.
func (s *Sponsorship) EffectiveStatus(now time.Time) domain.SponsorshipStatus {
	if now.After(s.EndDate) {
		return domain.SponsorshipExpired
	}
	return s.Status
}

// WithEffectiveStatus returns a copy whose Status is the derived one.
func (s Sponsorship) WithEffectiveStatus(now time.Time) Sponsorship {
	s.Status = s.EffectiveStatus(now)
	return s
}

// InWindow reports whether now lies within [StartDate, EndDate].
func (s *Sponsorship) InWindow(now time.Time) bool {
	return !now.Before(s.StartDate) && !now.After(s.EndDate)
}

// SponsorshipFilter narrows sponsorship listings. Status is matched against the
// derived status, so EXPIRED selects rows past their end date.
type SponsorshipFilter struct {
	BusinessID string
	ProductID  string
	Status     domain.SponsorshipStatus
	Now        time.Time
	Limit      int
	Offset     int
}
