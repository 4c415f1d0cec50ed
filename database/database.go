package database

import (
	"fmt"
	"log"
	"os"

	"barberops-backend/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect() (*gorm.DB, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "host=localhost user=postgres password=postgres dbname=barberops port=5432 sslmode=disable"
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	// Ensure PostgreSQL has gen_random_uuid() available (pgcrypto extension).
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
		return fmt.Errorf("failed to enable pgcrypto extension: %w", err)
	}

	return db.AutoMigrate(
		&models.User{},
		&models.PasswordResetToken{},
		&models.RefreshToken{},
		&models.Branch{},
		&models.Barber{},
		&models.Service{},
		&models.Product{},
		&models.Booking{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.PointsLedger{},
		&models.PointsTransaction{},
		&models.Voucher{},
		&models.VoucherAssignment{},
		&models.VoucherSendRequest{},
		&models.VoucherSendRecipient{},
		&models.Transaction{},
		&models.TransactionService{},
		&models.TransactionProduct{},
		&models.Notification{},
		&models.LoyaltyConfig{},
	)
}

func CreateDefaultAdmin(db *gorm.DB) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" {
		adminEmail = "admin@barberops.com"
	}
	if adminPassword == "" {
		adminPassword = "admin123"
	}

	var existingUser models.User
	result := db.Where("email = ?", adminEmail).First(&existingUser)
	if result.Error == nil {
		// Admin already exists
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := models.User{
		Email:    adminEmail,
		Password: string(hashedPassword),
		Role:     "super_admin",
		Name:     "Admin User",
	}

	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	log.Printf("Default admin created: %s", adminEmail)
	return nil
}

// CreateDefaultBranch seeds one branch so a fresh install can settle
// transactions immediately.
func CreateDefaultBranch(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Branch{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	branch := models.Branch{
		Name:     os.Getenv("DEFAULT_BRANCH_NAME"),
		IsActive: true,
	}
	if branch.Name == "" {
		branch.Name = "Main Branch"
	}
	if err := db.Create(&branch).Error; err != nil {
		return err
	}
	log.Printf("Default branch created: %s", branch.Name)
	return nil
}

// SeedLoyaltyConfig inserts any missing loyalty config keys with their
// defaults. Existing rows are left alone.
func SeedLoyaltyConfig(db *gorm.DB) error {
	for key, value := range models.DefaultLoyaltyConfig {
		var existing models.LoyaltyConfig
		if err := db.Where("key = ?", key).First(&existing).Error; err == nil {
			continue
		}
		row := models.LoyaltyConfig{Key: key, Value: value}
		if err := db.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}
