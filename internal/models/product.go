package models

import "time"

// Product is the ranking projection of a catalog product. Catalog fields are
// owned by the product service; this service only writes the score columns.
type Product struct {
	ID              string     `gorm:"primaryKey;size:128" bson:"_id" json:"id"`
	Name            string     `gorm:"size:255;not null" bson:"name" json:"name"`
	CategorySlug    string     `gorm:"size:128;index" bson:"categorySlug" json:"categorySlug"`
	SponsoredScore  float64    `gorm:"not null;default:0" bson:"sponsoredScore" json:"sponsoredScore"`
	PopularityScore float64    `gorm:"not null;default:0" bson:"popularityScore" json:"popularityScore"`
	RankingScore    float64    `gorm:"not null;default:0;index" bson:"rankingScore" json:"rankingScore"`
	ScoredAt        *time.Time `bson:"scoredAt,omitempty" json:"scoredAt,omitempty"`
	CreatedAt       time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time  `bson:"updatedAt" json:"updatedAt"`
}

func (Product) TableName() string { return "products" }

// ProductScores is the output of one ranking recompute.
type ProductScores struct {
	ProductID       string
	SponsoredScore  float64
	PopularityScore float64
	RankingScore    float64
	ScoredAt        time.Time
}

// ProductFilter selects a ranked product page.
type ProductFilter struct {
	CategorySlug string
	Query        string
	Limit        int
	Offset       int
}
