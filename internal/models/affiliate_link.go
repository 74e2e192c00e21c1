package models

import "time"

// AffiliateLink ties an influencer's referral code to one product.
type AffiliateLink struct {
	ID           string    `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	InfluencerID string    `gorm:"size:128;not null;uniqueIndex:idx_link_influencer_product,priority:1" bson:"influencerId" json:"influencerId"`
	ProductID    string    `gorm:"size:128;not null;index;uniqueIndex:idx_link_influencer_product,priority:2" bson:"productId" json:"productId"`
	ReferralCode string    `gorm:"uniqueIndex;size:20;not null" bson:"referralCode" json:"referralCode"`
	IsActive     bool      `gorm:"not null;default:true" bson:"isActive" json:"isActive"`
	Clicks       int64     `gorm:"not null;default:0" bson:"clicks" json:"clicks"`
	Conversions  int64     `gorm:"not null;default:0" bson:"conversions" json:"conversions"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (AffiliateLink) TableName() string { return "affiliate_links" }
