package repository

import (
	"context"
	"time"

	"promoledger/internal/domain"
	"promoledger/internal/models"

	"gorm.io/gorm"
)

type AffiliateLinkRepository struct {
	db *gorm.DB
}

func NewAffiliateLinkRepository(db *gorm.DB) *AffiliateLinkRepository {
	return &AffiliateLinkRepository{db: db}
}

func (r *AffiliateLinkRepository) Create(ctx context.Context, link *models.AffiliateLink) error {
	return translate(r.db.WithContext(ctx).Create(link).Error)
}

func (r *AffiliateLinkRepository) GetByID(ctx context.Context, id string) (*models.AffiliateLink, error) {
	var l models.AffiliateLink
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, translate(err)
	}
	return &l, nil
}

// GetByCode returns the link for code whether or not it is active.
func (r *AffiliateLinkRepository) GetByCode(ctx context.Context, code string) (*models.AffiliateLink, error) {
	var l models.AffiliateLink
	if err := r.db.WithContext(ctx).Where("referral_code = ?", code).First(&l).Error; err != nil {
		return nil, translate(err)
	}
	return &l, nil
}

func (r *AffiliateLinkRepository) ListByInfluencer(ctx context.Context, influencerID string) ([]models.AffiliateLink, error) {
	var list []models.AffiliateLink
	err := r.db.WithContext(ctx).Where("influencer_id = ?", influencerID).Order("created_at DESC").Find(&list).Error
	return list, err
}

func (r *AffiliateLinkRepository) ListByProduct(ctx context.Context, productID string) ([]models.AffiliateLink, error) {
	var list []models.AffiliateLink
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).Order("id ASC").Find(&list).Error
	return list, err
}

func (r *AffiliateLinkRepository) SetActive(ctx context.Context, id string, active bool, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.AffiliateLink{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": active, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// IncrementClicks atomically bumps the click counter.
func (r *AffiliateLinkRepository) IncrementClicks(ctx context.Context, id string, now time.Time) error {
	return r.increment(ctx, id, "clicks", now)
}

func (r *AffiliateLinkRepository) IncrementConversions(ctx context.Context, id string, now time.Time) error {
	return r.increment(ctx, id, "conversions", now)
}

func (r *AffiliateLinkRepository) increment(ctx context.Context, id, column string, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.AffiliateLink{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{column: gorm.Expr(column + " + 1"), "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
