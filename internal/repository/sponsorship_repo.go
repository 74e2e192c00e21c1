package repository

import (
	"context"
	"time"

	"promoledger/internal/domain"
	"promoledger/internal/models"

	"gorm.io/gorm"
)

type SponsorshipRepository struct {
	db *gorm.DB
}

func NewSponsorshipRepository(db *gorm.DB) *SponsorshipRepository {
	return &SponsorshipRepository{db: db}
}

func (r *SponsorshipRepository) Create(ctx context.Context, s *models.Sponsorship) error {
	return translate(r.db.WithContext(ctx).Create(s).Error)
}

func (r *SponsorshipRepository) GetByID(ctx context.Context, id string) (*models.Sponsorship, error) {
	var s models.Sponsorship
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *SponsorshipRepository) List(ctx context.Context, f models.SponsorshipFilter) ([]models.Sponsorship, error) {
	q := r.db.WithContext(ctx).Model(&models.Sponsorship{})
	if f.BusinessID != "" {
		q = q.Where("business_id = ?", f.BusinessID)
	}
	if f.ProductID != "" {
		q = q.Where("product_id = ?", f.ProductID)
	}
	switch {
	case f.Status == domain.SponsorshipExpired:
		q = q.Where("end_date < ?", f.Now)
	case f.Status != "":
		q = q.Where("status = ? AND end_date >= ?", f.Status, f.Now)
	}
	q = q.Order("created_at DESC").Order("id ASC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	var list []models.Sponsorship
	err := q.Find(&list).Error
	return list, err
}

// Charge is a single conditional UPDATE; concurrent charges serialize on the row
// and the WHERE clause keeps both budget invariants.
func (r *SponsorshipRepository) Charge(ctx context.Context, id string, cost int64, now time.Time) (*models.Sponsorship, error) {
	res := r.db.WithContext(ctx).Model(&models.Sponsorship{}).
		Where("id = ? AND status = ? AND budget >= ? AND spent_today + ? <= daily_budget AND start_date <= ? AND end_date >= ?",
			id, domain.SponsorshipActive, cost, cost, now, now).
		UpdateColumns(map[string]interface{}{
			"budget":      gorm.Expr("budget - ?", cost),
			"spent_today": gorm.Expr("spent_today + ?", cost),
			"updated_at":  now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrConditionFailed
	}
	return r.GetByID(ctx, id)
}

func (r *SponsorshipRepository) Transition(ctx context.Context, id string, change StatusChange) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.Sponsorship{}).Where("id = ? AND status IN ?", id, change.From)
	if change.FromReason != nil {
		q = q.Where("pause_reason = ?", *change.FromReason)
	}
	if change.RequireInWindow {
		q = q.Where("start_date <= ? AND end_date >= ?", change.At, change.At)
	}
	updates := map[string]interface{}{
		"status":       change.To,
		"pause_reason": change.PauseReason,
		"updated_at":   change.At,
	}
	if change.StampApproved {
		updates["approved_at"] = change.At
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *SponsorshipRepository) ResetDaily(ctx context.Context, day string, now time.Time) (int64, int64, error) {
	var reset, resumed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Sponsorship{}).
			Where("last_reset_day < ? AND status = ? AND pause_reason = ? AND budget > 0 AND end_date >= ?",
				day, domain.SponsorshipPaused, domain.PauseReasonDailyCap, now).
			Updates(map[string]interface{}{
				"status":         domain.SponsorshipActive,
				"pause_reason":   domain.PauseReasonNone,
				"spent_today":    0,
				"last_reset_day": day,
				"updated_at":     now,
			})
		if res.Error != nil {
			return res.Error
		}
		resumed = res.RowsAffected
		res = tx.Model(&models.Sponsorship{}).
			Where("last_reset_day < ?", day).
			Updates(map[string]interface{}{"spent_today": 0, "last_reset_day": day, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		reset = res.RowsAffected + resumed
		return nil
	})
	return reset, resumed, err
}

func (r *SponsorshipRepository) ActivateDue(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Sponsorship{}).
		Where("status = ? AND start_date <= ? AND end_date >= ?", domain.SponsorshipApproved, now, now).
		Updates(map[string]interface{}{"status": domain.SponsorshipActive, "updated_at": now})
	return res.RowsAffected, res.Error
}
