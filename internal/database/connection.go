// internal/database/connection.go
package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/javajoker/nearby-market/internal/config"
	"github.com/javajoker/nearby-market/internal/models"
)

func Initialize(cfg config.DatabaseConfig, log logrus.FieldLogger) (*gorm.DB, error) {
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.WithFields(logrus.Fields{"host": cfg.Host, "database": cfg.Database}).Info("database connection established")
	return db, nil
}

func RunMigrations(db *gorm.DB, log logrus.FieldLogger) error {
	log.Info("running database migrations")

	err := db.AutoMigrate(
		&models.Vendor{},
		&models.Product{},
		&models.Order{},
		&models.StockRelease{},
		&models.Campaign{},
		&models.Pledge{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db, log); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Info("database migrations completed")
	return nil
}

func createIndexes(db *gorm.DB, log logrus.FieldLogger) error {
	indexes := []string{
		// Incremental geo index refresh
		"CREATE INDEX IF NOT EXISTS idx_vendors_created ON vendors(created_at)",

		// Product lookups by vendor for search joins
		"CREATE INDEX IF NOT EXISTS idx_products_vendor_stock ON products(vendor_id, stock)",

		// Order log per product
		"CREATE INDEX IF NOT EXISTS idx_orders_product_created ON orders(product_id, created_at)",

		// Expiry sweep
		"CREATE INDEX IF NOT EXISTS idx_campaigns_status_deadline ON campaigns(status, deadline)",

		// Distinct backer check
		"CREATE INDEX IF NOT EXISTS idx_pledges_campaign_backer ON pledges(campaign_id, backer_id)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			// Missing secondary indexes slow queries down but do not break them.
			log.WithError(err).WithField("statement", index).Warn("failed to create index")
		}
	}

	return nil
}
