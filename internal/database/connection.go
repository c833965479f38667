// internal/database/connection.go
package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/autolend/leadmarket-backend/internal/config"
	"github.com/autolend/leadmarket-backend/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error
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
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
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

	log.Println("Database connection established successfully")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	// Enable UUID extension
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
		return fmt.Errorf("failed to create UUID extension: %w", err)
	}

	// Run auto-migrations
	err := db.AutoMigrate(
		&models.User{},
		&models.Company{},
		&models.Application{},
		&models.ApplicationDocument{},
		&models.ApplicationLock{},
		&models.Purchase{},
		&models.PricingPolicy{},
		&models.AdminSettings{},
		&models.AuditLog{},
		&models.Notification{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// User indexes
		"CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)",
		"CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)",
		"CREATE INDEX IF NOT EXISTS idx_users_type_status ON users(user_type, status)",
		"CREATE INDEX IF NOT EXISTS idx_users_company ON users(company_id)",

		// Application indexes
		"CREATE INDEX IF NOT EXISTS idx_applications_applicant ON applications(applicant_id)",
		"CREATE INDEX IF NOT EXISTS idx_applications_status ON applications(status)",
		"CREATE INDEX IF NOT EXISTS idx_applications_submitted_at ON applications(submitted_at DESC)",

		// Lock indexes
		"CREATE INDEX IF NOT EXISTS idx_locks_app_expiry ON application_locks(application_id, expires_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_locks_dealer ON application_locks(dealer_id, expires_at DESC)",

		// Purchase indexes
		"CREATE INDEX IF NOT EXISTS idx_purchases_dealer ON purchases(dealer_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_purchases_application ON purchases(application_id)",

		// Pricing indexes
		"CREATE INDEX IF NOT EXISTS idx_pricing_active ON pricing_policies(is_active, company_id)",

		// Admin indexes
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_user_action ON audit_logs(user_id, action)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_type, resource_id)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_admin_settings_category ON admin_settings(category, key)",
		"CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at DESC)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Seed initial data
func SeedInitialData(db *gorm.DB) error {
	log.Println("Seeding initial data...")

	// Create default admin user
	var adminCount int64
	db.Model(&models.User{}).Where("user_type = ?", models.UserTypeAdmin).Count(&adminCount)

	if adminCount == 0 {
		admin := &models.User{
			Username: "admin",
			Email:    "admin@autolend.example.com",
			UserType: models.UserTypeAdmin,
			Status:   models.UserStatusActive,
			ProfileData: models.JSONB{
				"first_name": "System",
				"last_name":  "Administrator",
				"role":       "super_admin",
			},
		}

		if err := admin.SetPassword("admin123!@#"); err != nil {
			return fmt.Errorf("failed to set admin password: %w", err)
		}

		if err := db.Create(admin).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		log.Println("Default admin user created successfully")
	}

	// Create a default global pricing policy so the marketplace can quote
	// prices out of the box.
	var policyCount int64
	db.Model(&models.PricingPolicy{}).Where("company_id IS NULL AND is_active = ?", true).Count(&policyCount)

	if policyCount == 0 {
		var admin models.User
		if err := db.Where("user_type = ?", models.UserTypeAdmin).First(&admin).Error; err != nil {
			return fmt.Errorf("failed to find admin for pricing seed: %w", err)
		}

		policy := &models.PricingPolicy{
			StandardPrice:      10.99,
			DiscountedPrice:    5.99,
			AgeDiscountEnabled: false,
			LockFees: models.JSONB{
				string(models.LockKindTemporary): 0.0,
				string(models.LockKind24Hours):   2.00,
				string(models.LockKind1Week):     5.00,
				string(models.LockKindPermanent): 10.00,
			},
			IsActive:  true,
			UpdatedBy: admin.ID,
		}

		if err := db.Create(policy).Error; err != nil {
			return fmt.Errorf("failed to create default pricing policy: %w", err)
		}

		log.Println("Default global pricing policy created successfully")
	}

	// Create default platform settings
	defaultSettings := []models.AdminSettings{
		{
			Category:    "general",
			Key:         "platform_name",
			Value:       models.JSONB{"value": "AutoLend Marketplace"},
			DataType:    "string",
			Description: "Platform name displayed to users",
		},
		{
			Category:    "marketplace",
			Key:         "download_history_days",
			Value:       models.JSONB{"value": 30},
			DataType:    "integer",
			Description: "How far back the dealer download list reaches",
		},
		{
			Category:    "content",
			Key:         "max_file_size",
			Value:       models.JSONB{"value": 20},
			DataType:    "integer",
			Description: "Maximum file size in MB for document uploads",
		},
	}

	for _, setting := range defaultSettings {
		var count int64
		db.Model(&models.AdminSettings{}).Where("category = ? AND key = ?", setting.Category, setting.Key).Count(&count)

		if count == 0 {
			// Get admin user ID for the UpdatedBy field
			var admin models.User
			if err := db.Where("user_type = ?", models.UserTypeAdmin).First(&admin).Error; err == nil {
				setting.UpdatedBy = admin.ID
				if err := db.Create(&setting).Error; err != nil {
					log.Printf("Warning: Failed to create setting %s.%s: %v", setting.Category, setting.Key, err)
				}
			}
		}
	}

	log.Println("Initial data seeding completed")
	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
