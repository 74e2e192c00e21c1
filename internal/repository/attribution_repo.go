package repository

import (
	"context"
	"errors"
	"time"

	"promoledger/internal/domain"
	"promoledger/internal/models"

	"gorm.io/gorm"
)

type AttributionRepository struct {
	db *gorm.DB
}

func NewAttributionRepository(db *gorm.DB) *AttributionRepository {
	return &AttributionRepository{db: db}
}

func (r *AttributionRepository) Create(ctx context.Context, a *models.Attribution) error {
	return translate(r.db.WithContext(ctx).Create(a).Error)
}

func (r *AttributionRepository) GetByID(ctx context.Context, id string) (*models.Attribution, error) {
	var a models.Attribution
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (r *AttributionRepository) GetByLinkAndOrder(ctx context.Context, linkID, orderID string) (*models.Attribution, error) {
	var a models.Attribution
	if err := r.db.WithContext(ctx).Where("link_id = ? AND order_id = ?", linkID, orderID).First(&a).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (r *AttributionRepository) ListOpenClicks(ctx context.Context, linkID string, since time.Time, limit int) ([]models.Attribution, error) {
	var list []models.Attribution
	err := r.db.WithContext(ctx).
		Where("link_id = ? AND status = ? AND order_id IS NULL AND clicked_at >= ?", linkID, domain.AttributionClick, since).
		Order("clicked_at DESC").Order("id DESC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// Convert is an optimistic update: it only matches a row that is still an open click.
func (r *AttributionRepository) Convert(ctx context.Context, id string, c Conversion) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Attribution{}).
		Where("id = ? AND status = ? AND order_id IS NULL", id, domain.AttributionClick).
		Updates(map[string]interface{}{
			"status":            domain.AttributionConversion,
			"order_id":          c.OrderID,
			"order_amount":      c.OrderAmount,
			"commission_amount": c.CommissionAmount,
			"rate_bps":          c.RateBps,
			"converted_at":      c.At,
			"updated_at":        c.At,
		})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *AttributionRepository) MarkPaid(ctx context.Context, id string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Attribution{}).
		Where("id = ? AND status = ?", id, domain.AttributionConversion).
		Updates(map[string]interface{}{"status": domain.AttributionPaid, "paid_at": at, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *AttributionRepository) filtered(ctx context.Context, f models.AttributionFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Attribution{})
	if f.InfluencerID != "" {
		q = q.Where("influencer_id = ?", f.InfluencerID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since)
	}
	return q
}

func (r *AttributionRepository) List(ctx context.Context, f models.AttributionFilter) ([]models.Attribution, error) {
	var list []models.Attribution
	q := r.filtered(ctx, f).Order("created_at DESC").Order("id DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	err := q.Find(&list).Error
	return list, err
}

func (r *AttributionRepository) Count(ctx context.Context, f models.AttributionFilter) (int64, error) {
	var n int64
	err := r.filtered(ctx, f).Count(&n).Error
	return n, err
}

func (r *AttributionRepository) TotalsByStatus(ctx context.Context, influencerID string) ([]models.StatusTotal, error) {
	var rows []models.StatusTotal
	err := r.db.WithContext(ctx).Model(&models.Attribution{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(commission_amount), 0) AS commission").
		Where("influencer_id = ?", influencerID).
		Group("status").
		Scan(&rows).Error
	return rows, err
}

func (r *AttributionRepository) LastActivity(ctx context.Context, productID string) (*time.Time, error) {
	var a models.Attribution
	err := r.db.WithContext(ctx).Select("updated_at").Where("product_id = ?", productID).Order("updated_at DESC").Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a.UpdatedAt, nil
}
