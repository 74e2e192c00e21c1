package database

import (
	"fmt"

	"promoledger/config"
	"promoledger/internal/domain"
	"promoledger/internal/models"
	"promoledger/internal/repository"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverMySQL:
		dialector = mysql.Open(cfg.DSN)
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("database: driver %q is not a SQL driver", cfg.Driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Error), // Only log errors, not every SQL query
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// AutoMigrate runs Gorm auto-migration for all ledger tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.AffiliateLink{},
		&models.Attribution{},
		&models.Sponsorship{},
		&models.Product{},
		&models.DeviceToken{},
	); err != nil {
		return err
	}
	// Notifications share one model across two audience tables.
	for _, audience := range []string{domain.AudienceInfluencer, domain.AudienceSeller} {
		if err := db.Table(repository.NotificationTable(audience)).AutoMigrate(&models.Notification{}); err != nil {
			return fmt.Errorf("migrate %s: %w", repository.NotificationTable(audience), err)
		}
	}
	return nil
}
