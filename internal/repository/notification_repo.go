package repository

import (
	"context"
	"time"

	"promoledger/internal/domain"
	"promoledger/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Table(NotificationTable(n.Audience)).Create(n).Error
}

func (r *NotificationRepository) ListByRecipient(ctx context.Context, audience, recipientID string, limit, offset int) ([]models.Notification, error) {
	limit, offset = Page(limit, offset)
	var list []models.Notification
	err := r.db.WithContext(ctx).Table(NotificationTable(audience)).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&list).Error
	for i := range list {
		list[i].Audience = audience
	}
	return list, err
}

func (r *NotificationRepository) MarkRead(ctx context.Context, audience, id, recipientID string, at time.Time) error {
	res := r.db.WithContext(ctx).Table(NotificationTable(audience)).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("read_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type DeviceTokenRepository struct {
	db *gorm.DB
}

func NewDeviceTokenRepository(db *gorm.DB) *DeviceTokenRepository {
	return &DeviceTokenRepository{db: db}
}

// Upsert re-binds a token to the latest user that registered it.
func (r *DeviceTokenRepository) Upsert(ctx context.Context, t *models.DeviceToken) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "platform", "updated_at"}),
	}).Create(t).Error
}

func (r *DeviceTokenRepository) ListByUser(ctx context.Context, userID string) ([]models.DeviceToken, error) {
	var list []models.DeviceToken
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("updated_at DESC").Find(&list).Error
	return list, err
}
