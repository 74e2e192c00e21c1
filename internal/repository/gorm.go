package repository

import (
	"errors"
	"fmt"

	"promoledger/internal/domain"

	"gorm.io/gorm"
)

// NewGormStores builds the SQL-backed stores (MySQL or Postgres).
func NewGormStores(db *gorm.DB) Stores {
	return Stores{
		Links:         NewAffiliateLinkRepository(db),
		Attributions:  NewAttributionRepository(db),
		Sponsorships:  NewSponsorshipRepository(db),
		Products:      NewProductRepository(db),
		Notifications: NewNotificationRepository(db),
		DeviceTokens:  NewDeviceTokenRepository(db),
	}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	default:
		return err
	}
}
