package database

import (
	"os"
	"testing"

	"barberops-backend/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}

	tables := []string{
		`CREATE TABLE IF NOT EXISTS "users" (
			"id" TEXT PRIMARY KEY,
			"email" TEXT NOT NULL UNIQUE,
			"password" TEXT NOT NULL,
			"name" TEXT,
			"role" TEXT DEFAULT 'customer',
			"branch_id" TEXT,
			"phone" TEXT,
			"fcm_token" TEXT,
			"is_blocked" INTEGER DEFAULT 0,
			"created_at" DATETIME,
			"updated_at" DATETIME,
			"deleted_at" DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS "branches" (
			"id" TEXT PRIMARY KEY,
			"name" TEXT NOT NULL,
			"address" TEXT,
			"phone" TEXT,
			"is_active" INTEGER DEFAULT 1,
			"created_at" DATETIME,
			"updated_at" DATETIME,
			"deleted_at" DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS "loyalty_configs" (
			"id" TEXT PRIMARY KEY,
			"key" TEXT NOT NULL UNIQUE,
			"value" TEXT NOT NULL,
			"description" TEXT,
			"updated_by" TEXT,
			"created_at" DATETIME,
			"updated_at" DATETIME
		)`,
	}

	for _, sql := range tables {
		if err := db.Exec(sql).Error; err != nil {
			t.Fatal(err)
		}
	}
	return db
}

func TestCreateDefaultAdminNew(t *testing.T) {
	db := setupTestDB(t)
	os.Setenv("ADMIN_EMAIL", "testadmin@test.com")
	os.Setenv("ADMIN_PASSWORD", "testpassword123")
	defer os.Unsetenv("ADMIN_EMAIL")
	defer os.Unsetenv("ADMIN_PASSWORD")

	err := CreateDefaultAdmin(db)
	if err != nil {
		t.Fatal(err)
	}

	var user models.User
	if err := db.Where("email = ?", "testadmin@test.com").First(&user).Error; err != nil {
		t.Fatal("admin user not created")
	}
	if user.Role != "super_admin" {
		t.Errorf("expected role 'super_admin', got '%s'", user.Role)
	}
}

func TestCreateDefaultAdminAlreadyExists(t *testing.T) {
	db := setupTestDB(t)
	os.Setenv("ADMIN_EMAIL", "existing@test.com")
	os.Setenv("ADMIN_PASSWORD", "password123")
	defer os.Unsetenv("ADMIN_EMAIL")
	defer os.Unsetenv("ADMIN_PASSWORD")

	// Create admin first time
	err := CreateDefaultAdmin(db)
	if err != nil {
		t.Fatal(err)
	}

	// Second call should skip (no error)
	err = CreateDefaultAdmin(db)
	if err != nil {
		t.Fatal(err)
	}

	var count int64
	db.Model(&models.User{}).Where("email = ?", "existing@test.com").Count(&count)
	if count != 1 {
		t.Errorf("expected exactly 1 admin, got %d", count)
	}
}

func TestCreateDefaultBranchNew(t *testing.T) {
	db := setupTestDB(t)
	os.Setenv("DEFAULT_BRANCH_NAME", "Quezon City Branch")
	defer os.Unsetenv("DEFAULT_BRANCH_NAME")

	err := CreateDefaultBranch(db)
	if err != nil {
		t.Fatal(err)
	}

	var branch models.Branch
	if err := db.First(&branch).Error; err != nil {
		t.Fatal("branch not created")
	}
	if branch.Name != "Quezon City Branch" {
		t.Errorf("expected 'Quezon City Branch', got '%s'", branch.Name)
	}
	if !branch.IsActive {
		t.Error("default branch should be active")
	}
}

func TestCreateDefaultBranchAlreadyExists(t *testing.T) {
	db := setupTestDB(t)

	CreateDefaultBranch(db)

	// Second call should skip
	err := CreateDefaultBranch(db)
	if err != nil {
		t.Fatal(err)
	}

	var count int64
	db.Model(&models.Branch{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 branch, got %d", count)
	}
}

func TestSeedLoyaltyConfigInsertsDefaults(t *testing.T) {
	db := setupTestDB(t)

	if err := SeedLoyaltyConfig(db); err != nil {
		t.Fatal(err)
	}

	var count int64
	db.Model(&models.LoyaltyConfig{}).Count(&count)
	if count != int64(len(models.DefaultLoyaltyConfig)) {
		t.Errorf("expected %d config rows, got %d", len(models.DefaultLoyaltyConfig), count)
	}
}

func TestSeedLoyaltyConfigKeepsExistingValues(t *testing.T) {
	db := setupTestDB(t)

	// Operator has already tuned the earning rate
	db.Create(&models.LoyaltyConfig{Key: models.ConfigBaseEarningRate, Value: "2.0"})

	if err := SeedLoyaltyConfig(db); err != nil {
		t.Fatal(err)
	}

	var row models.LoyaltyConfig
	db.Where("key = ?", models.ConfigBaseEarningRate).First(&row)
	if row.Value != "2.0" {
		t.Errorf("expected existing value 2.0 to survive seeding, got %s", row.Value)
	}
}
