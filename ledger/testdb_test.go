package ledger

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"barberops-backend/models"
)

var testDB *gorm.DB

func TestMain(m *testing.M) {
	var err error
	testDB, err = gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		panic("failed to connect to test database: " + err.Error())
	}
	// Limit to 1 open connection to prevent SQLite concurrent access issues
	// with in-memory databases.
	sqlDB, _ := testDB.DB()
	sqlDB.SetMaxOpenConns(1)

	// Create tables using raw SQLite-compatible SQL instead of AutoMigrate,
	// because the GORM model tags use PostgreSQL-specific defaults like gen_random_uuid().
	if err := createSQLiteTables(testDB); err != nil {
		panic("failed to migrate test database: " + err.Error())
	}

	code := m.Run()
	os.Exit(code)
}

// freshDB returns a clean database for each test by deleting all rows.
func freshDB() *gorm.DB {
	testDB.Exec("DELETE FROM wallet_transactions")
	testDB.Exec("DELETE FROM wallets")
	testDB.Exec("DELETE FROM points_transactions")
	testDB.Exec("DELETE FROM points_ledgers")
	testDB.Exec("DELETE FROM loyalty_configs")
	testDB.Exec("DELETE FROM users")
	return testDB
}

func createSQLiteTables(db *gorm.DB) error {
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

		`CREATE TABLE IF NOT EXISTS "wallets" (
			"id" TEXT PRIMARY KEY,
			"user_id" TEXT NOT NULL UNIQUE,
			"balance" INTEGER DEFAULT 0,
			"bonus_balance" INTEGER DEFAULT 0,
			"created_at" DATETIME,
			"updated_at" DATETIME
		)`,

		`CREATE TABLE IF NOT EXISTS "wallet_transactions" (
			"id" TEXT PRIMARY KEY,
			"wallet_id" TEXT NOT NULL,
			"user_id" TEXT NOT NULL,
			"type" TEXT NOT NULL,
			"amount" INTEGER NOT NULL,
			"bonus_used" INTEGER DEFAULT 0,
			"main_used" INTEGER DEFAULT 0,
			"balance_after" INTEGER NOT NULL,
			"bonus_after" INTEGER NOT NULL,
			"reference_id" TEXT,
			"notes" TEXT,
			"created_at" DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_wallet_transactions_user_id ON "wallet_transactions"("user_id")`,

		`CREATE TABLE IF NOT EXISTS "points_ledgers" (
			"id" TEXT PRIMARY KEY,
			"user_id" TEXT NOT NULL UNIQUE,
			"current_balance" INTEGER DEFAULT 0,
			"lifetime_earned" INTEGER DEFAULT 0,
			"lifetime_redeemed" INTEGER DEFAULT 0,
			"tier" TEXT DEFAULT 'Bronze',
			"last_activity_at" DATETIME,
			"created_at" DATETIME,
			"updated_at" DATETIME
		)`,

		`CREATE TABLE IF NOT EXISTS "points_transactions" (
			"id" TEXT PRIMARY KEY,
			"user_id" TEXT NOT NULL,
			"type" TEXT NOT NULL,
			"amount" INTEGER NOT NULL,
			"balance_after" INTEGER NOT NULL,
			"source_type" TEXT,
			"source_id" TEXT,
			"branch_id" TEXT,
			"notes" TEXT,
			"created_at" DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_points_tx_user_source ON "points_transactions"("user_id","source_id")`,

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
			return err
		}
	}
	return nil
}

// seedTestUser creates a customer account for ledger tests.
func seedTestUser(db *gorm.DB, email string) models.User {
	user := models.User{
		ID:       uuid.New(),
		Email:    email,
		Password: "hashed",
		Name:     "Test Customer",
		Role:     "customer",
	}
	db.Create(&user)
	return user
}
