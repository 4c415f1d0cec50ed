package ledger

import (
	"testing"
	"time"

	"barberops-backend/models"
	"barberops-backend/utils"
)

func TestEarnCreditsBalanceAndLifetime(t *testing.T) {
	db := freshDB()
	user := seedTestUser(db, "points-earn@test.com")
	points := &PointsLedger{DB: db}

	balance, err := points.Earn(EarnParams{
		UserID: user.ID, Amount: 15000, SourceType: "payment", SourceID: "TXN-100",
	})
	if err != nil {
		t.Fatalf("earn failed: %v", err)
	}
	if balance != 15000 {
		t.Errorf("balance = %d, want 15000", balance)
	}

	row, _ := points.Get(user.ID)
	if row.LifetimeEarned != 15000 || row.LifetimeRedeemed != 0 {
		t.Errorf("lifetime = {earned %d, redeemed %d}, want {15000, 0}", row.LifetimeEarned, row.LifetimeRedeemed)
	}
}

func TestEarnIdempotentBySourceID(t *testing.T) {
	db := freshDB()
	user := seedTestUser(db, "points-idem@test.com")
	points := &PointsLedger{DB: db}

	// Earning 500 twice with the same source id applies exactly once.
	first, err := points.Earn(EarnParams{UserID: user.ID, Amount: 50000, SourceType: "payment", SourceID: "TXN-1"})
	if err != nil {
		t.Fatalf("first earn failed: %v", err)
	}
	second, err := points.Earn(EarnParams{UserID: user.ID, Amount: 50000, SourceType: "payment", SourceID: "TXN-1"})
	if err != nil {
		t.Fatalf("retried earn failed: %v", err)
	}
	if first != 50000 || second != 50000 {
		t.Errorf("balances = {%d, %d}, want {50000, 50000}", first, second)
	}

	var entries int64
	db.Model(&models.PointsTransaction{}).Where("user_id = ?", user.ID).Count(&entries)
	if entries != 1 {
		t.Errorf("expected 1 log entry, got %d", entries)
	}
}

func TestEarnRejectsNonPositiveAmount(t *testing.T) {
	db := freshDB()
	user := seedTestUser(db, "points-zero@test.com")
	points := &PointsLedger{DB: db}

	if _, err := points.Earn(EarnParams{UserID: user.ID, Amount: 0}); err == nil {
		t.Error("expected error for zero earn")
	}
	if _, err := points.Earn(EarnParams{UserID: user.ID, Amount: -100}); err == nil {
		t.Error("expected error for negative earn")
	}
}

func TestRedeemDecrementsAndLogsNegative(t *testing.T) {
	db := freshDB()
	user := seedTestUser(db, "points-redeem@test.com")
	points := &PointsLedger{DB: db}

	points.Earn(EarnParams{UserID: user.ID, Amount: 20000, SourceType: "payment", SourceID: "TXN-A"})
	balance, err := points.Redeem(RedeemParams{UserID: user.ID, Amount: 5000, SourceType: "payment", SourceID: "TXN-B"})
	if err != nil {
		t.Fatalf("redeem failed: %v", err)
	}
	if balance != 15000 {
		t.Errorf("balance = %d, want 15000", balance)
	}

	row, _ := points.Get(user.ID)
	if row.LifetimeRedeemed != 5000 {
		t.Errorf("lifetime redeemed = %d, want 5000", row.LifetimeRedeemed)
	}

	var entry models.PointsTransaction
	db.Where("user_id = ? AND type = ?", user.ID, models.PointsTransactionRedeem).First(&entry)
	if entry.Amount != -5000 {
		t.Errorf("log amount = %d, want -5000", entry.Amount)
	}
	if entry.BalanceAfter != 15000 {
		t.Errorf("balance after = %d, want 15000", entry.BalanceAfter)
	}
}

func TestRedeemInsufficientPoints(t *testing.T) {
	db := freshDB()
	user := seedTestUser(db, "points-short@test.com")
	points := &PointsLedger{DB: db}

	points.Earn(EarnParams{UserID: user.ID, Amount: 1000, SourceType: "payment", SourceID: "TXN-C"})
	_, err := points.Redeem(RedeemParams{UserID: user.ID, Amount: 5000, SourceID: "TXN-D"})
	if err == nil {
		t.Fatal("expected insufficient points error")
	}
	if utils.AsAppError(err).Code != utils.CodeInsufficientPoints {
		t.Errorf("error code = %s, want %s", utils.AsAppError(err).Code, utils.CodeInsufficientPoints)
	}
}

func TestRedeemOverrideAllowsExceedingBalance(t *testing.T) {
	db := freshDB()
	user := seedTestUser(db, "points-override@test.com")
	points := &PointsLedger{DB: db}

	points.Earn(EarnParams{UserID: user.ID, Amount: 1000, SourceType: "payment", SourceID: "TXN-E"})
	balance, err := points.Redeem(RedeemParams{UserID: user.ID, Amount: 3000, SourceID: "ADJ-1", AllowOverride: true})
	if err != nil {
		t.Fatalf("override redeem failed: %v", err)
	}
	if balance != -2000 {
		t.Errorf("balance = %d, want -2000", balance)
	}
}

func TestRedeemIdempotentBySourceID(t *testing.T) {
	db := freshDB()
	user := seedTestUser(db, "points-redeem-idem@test.com")
	points := &PointsLedger{DB: db}

	points.Earn(EarnParams{UserID: user.ID, Amount: 20000, SourceType: "payment", SourceID: "TXN-F"})
	points.Redeem(RedeemParams{UserID: user.ID, Amount: 5000, SourceID: "TXN-G"})
	balance, err := points.Redeem(RedeemParams{UserID: user.ID, Amount: 5000, SourceID: "TXN-G"})
	if err != nil {
		t.Fatalf("retried redeem failed: %v", err)
	}
	if balance != 15000 {
		t.Errorf("balance = %d, want 15000 (single application)", balance)
	}
}

func TestAdjustTwoPhaseConfirm(t *testing.T) {
	db := freshDB()
	user := seedTestUser(db, "points-adjust@test.com")
	points := &PointsLedger{DB: db}

	points.Earn(EarnParams{UserID: user.ID, Amount: 1000, SourceType: "payment", SourceID: "TXN-H"})

	// Phase one: would go negative, nothing applied.
	result, err := points.Adjust(user.ID, -3000, "inventory correction", false, nil)
	if err != nil {
		t.Fatalf("adjust failed: %v", err)
	}
	if result.Applied || !result.RequiresConfirmation {
		t.Errorf("result = %+v, want unapplied confirmation request", result)
	}
	if result.WouldBeBalance != -2000 {
		t.Errorf("would-be balance = %d, want -2000", result.WouldBeBalance)
	}
	row, _ := points.Get(user.ID)
	if row.CurrentBalance != 1000 {
		t.Errorf("balance changed without confirmation: %d", row.CurrentBalance)
	}

	// Phase two: confirmed with the override.
	result, err = points.Adjust(user.ID, -3000, "inventory correction", true, nil)
	if err != nil {
		t.Fatalf("confirmed adjust failed: %v", err)
	}
	if !result.Applied || result.BalanceAfter != -2000 {
		t.Errorf("confirmed result = %+v, want applied with balance -2000", result)
	}
}

func TestAdjustPositive(t *testing.T) {
	db := freshDB()
	user := seedTestUser(db, "points-adjust-up@test.com")
	points := &PointsLedger{DB: db}

	result, err := points.Adjust(user.ID, 5000, "goodwill credit", false, nil)
	if err != nil {
		t.Fatalf("adjust failed: %v", err)
	}
	if !result.Applied || result.BalanceAfter != 5000 {
		t.Errorf("result = %+v, want applied with balance 5000", result)
	}

	row, _ := points.Get(user.ID)
	if row.LifetimeEarned != 5000 {
		t.Errorf("lifetime earned = %d, want 5000", row.LifetimeEarned)
	}
}

func TestProcessExpiryDisabledByDefault(t *testing.T) {
	db := freshDB()
	user := seedTestUser(db, "points-expiry-off@test.com")
	points := &PointsLedger{DB: db}
	points.Earn(EarnParams{UserID: user.ID, Amount: 1000, SourceType: "payment", SourceID: "TXN-I"})

	results, err := points.ProcessExpiry(map[string]string{}, time.Now(), false)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("sweep ran while disabled: %+v", results)
	}
}

func TestProcessExpirySweepsStaleBalances(t *testing.T) {
	db := freshDB()
	stale := seedTestUser(db, "points-stale@test.com")
	active := seedTestUser(db, "points-active@test.com")
	points := &PointsLedger{DB: db}

	points.Earn(EarnParams{UserID: stale.ID, Amount: 4000, SourceType: "payment", SourceID: "TXN-J"})
	points.Earn(EarnParams{UserID: active.ID, Amount: 4000, SourceType: "payment", SourceID: "TXN-K"})
	db.Model(&models.PointsLedger{}).Where("user_id = ?", stale.ID).
		Update("last_activity_at", time.Now().AddDate(0, -13, 0))

	snapshot := map[string]string{
		models.ConfigPointsExpiryEnabled: "true",
		models.ConfigPointsExpiryMonths:  "12",
	}

	// Dry run reports without writing.
	results, err := points.ProcessExpiry(snapshot, time.Now(), true)
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if len(results) != 1 || results[0].Expired != 4000 {
		t.Fatalf("dry run results = %+v, want one entry of 4000", results)
	}
	row, _ := points.Get(stale.ID)
	if row.CurrentBalance != 4000 {
		t.Errorf("dry run mutated balance: %d", row.CurrentBalance)
	}

	// Real sweep zeroes the stale account only.
	results, err = points.ProcessExpiry(snapshot, time.Now(), false)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("sweep results = %+v, want one entry", results)
	}
	row, _ = points.Get(stale.ID)
	if row.CurrentBalance != 0 {
		t.Errorf("stale balance = %d, want 0", row.CurrentBalance)
	}
	untouched, _ := points.Get(active.ID)
	if untouched.CurrentBalance != 4000 {
		t.Errorf("active balance = %d, want 4000", untouched.CurrentBalance)
	}

	var entry models.PointsTransaction
	db.Where("user_id = ? AND type = ?", stale.ID, models.PointsTransactionExpire).First(&entry)
	if entry.Amount != -4000 {
		t.Errorf("expire log amount = %d, want -4000", entry.Amount)
	}
}
