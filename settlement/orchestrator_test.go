package settlement

import (
	"testing"

	"gorm.io/gorm"

	"barberops-backend/ledger"
	"barberops-backend/models"
	"barberops-backend/utils"
)

// seedPoints puts a starting balance on the customer's points ledger.
func seedPoints(t *testing.T, o *Orchestrator, user models.User, amount int64) {
	t.Helper()
	if _, err := o.Points.Earn(ledger.EarnParams{
		UserID: user.ID, Amount: amount, SourceType: "seed", SourceID: "seed-" + user.Email,
	}); err != nil {
		t.Fatalf("seeding points failed: %v", err)
	}
}

// seedWallet funds the customer's wallet with a main and a bonus tranche.
func seedWallet(t *testing.T, o *Orchestrator, user models.User, main, bonus int64) {
	t.Helper()
	if main > 0 {
		if _, err := o.Wallets.Credit(user.ID, main, false, "seed", "test top-up"); err != nil {
			t.Fatalf("seeding wallet failed: %v", err)
		}
	}
	if bonus > 0 {
		if _, err := o.Wallets.Credit(user.ID, bonus, true, "seed", "test bonus"); err != nil {
			t.Fatalf("seeding bonus failed: %v", err)
		}
	}
}

func countTransactions(db *gorm.DB) int64 {
	var n int64
	db.Model(&models.Transaction{}).Count(&n)
	return n
}

func TestComboSettlementEndToEnd(t *testing.T) {
	db := freshDB()
	o, _ := newOrchestrator(db)
	branch := seedBranch(db, "Makati")
	customer := seedCustomer(db, "combo@test.com")
	haircut := seedService(db, "Signature Cut", 30000)
	seedPoints(t, o, customer, 10000)
	seedWallet(t, o, customer, 8000, 4000)

	// 300 due: 50 in points, 100 from the wallet, 150 in cash.
	result, err := o.Settle(Request{
		BranchID:      branch.ID,
		CustomerID:    &customer.ID,
		Services:      []ServiceLine{{ServiceID: haircut.ID}},
		PaymentMethod: models.PaymentMethodCombo,
		Combo:         &ComboAllocation{PointsToRedeem: 5000, WalletToUse: 10000, CashToCollect: 15000},
		SkipBooking:   true,
	})
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}

	var stored models.Transaction
	db.First(&stored, "id = ?", result.TransactionID)
	if stored.PaymentMethod != models.PaymentMethodCombo {
		t.Errorf("payment method = %s, want combo", stored.PaymentMethod)
	}
	if stored.PaymentStatus != models.PaymentStatusCompleted {
		t.Errorf("payment status = %s, want completed", stored.PaymentStatus)
	}
	if stored.TotalAmount != 30000 || stored.PointsRedeemed != 5000 ||
		stored.WalletUsed != 10000 || stored.CashCollected != 15000 {
		t.Errorf("amounts: total=%d points=%d wallet=%d cash=%d",
			stored.TotalAmount, stored.PointsRedeemed, stored.WalletUsed, stored.CashCollected)
	}

	// Wallet spent bonus-first: 40 bonus, then 60 from the main balance.
	wallet, _ := o.Wallets.Get(customer.ID)
	if wallet.Balance != 2000 || wallet.BonusBalance != 0 {
		t.Errorf("wallet after = {%d, %d}, want {2000, 0}", wallet.Balance, wallet.BonusBalance)
	}

	// 100 points seeded, 50 redeemed, then the cash and wallet portions earn
	// 150*1.0 + 100*1.5 = 300 points. The points portion earns nothing.
	if stored.PointsEarned != 30000 {
		t.Errorf("points earned = %d, want 30000", stored.PointsEarned)
	}
	pointsLedger, _ := o.Points.Get(customer.ID)
	if pointsLedger.CurrentBalance != 35000 {
		t.Errorf("points balance = %d, want 35000", pointsLedger.CurrentBalance)
	}

	// Both ledger entries cite the transaction number.
	var redeemLog models.PointsTransaction
	db.Where("user_id = ? AND type = ? AND source_id = ?",
		customer.ID, models.PointsTransactionRedeem, result.TransactionNumber).First(&redeemLog)
	if redeemLog.Amount != -5000 {
		t.Errorf("redeem log amount = %d, want -5000", redeemLog.Amount)
	}
	var debitLog models.WalletTransaction
	db.Where("user_id = ? AND reference_id = ?", customer.ID, result.TransactionNumber).First(&debitLog)
	if debitLog.BonusUsed != 4000 || debitLog.MainUsed != 6000 {
		t.Errorf("wallet debit split = {%d, %d}, want {4000, 6000}", debitLog.BonusUsed, debitLog.MainUsed)
	}
}

func TestComboMismatchSettlesNothing(t *testing.T) {
	db := freshDB()
	o, _ := newOrchestrator(db)
	branch := seedBranch(db, "Pasig")
	customer := seedCustomer(db, "mismatch@test.com")
	haircut := seedService(db, "Cut", 30000)
	seedPoints(t, o, customer, 10000)
	seedWallet(t, o, customer, 20000, 0)

	_, err := o.Settle(Request{
		BranchID:      branch.ID,
		CustomerID:    &customer.ID,
		Services:      []ServiceLine{{ServiceID: haircut.ID}},
		PaymentMethod: models.PaymentMethodCombo,
		Combo:         &ComboAllocation{PointsToRedeem: 1000, WalletToUse: 1000, CashToCollect: 1000},
	})
	if err == nil {
		t.Fatal("expected combo mismatch")
	}
	if utils.AsAppError(err).Code != utils.CodeComboMismatch {
		t.Errorf("error code = %s, want %s", utils.AsAppError(err).Code, utils.CodeComboMismatch)
	}

	// Nothing moved, nothing committed.
	pointsLedger, _ := o.Points.Get(customer.ID)
	if pointsLedger.CurrentBalance != 10000 {
		t.Errorf("points balance = %d, want 10000", pointsLedger.CurrentBalance)
	}
	wallet, _ := o.Wallets.Get(customer.ID)
	if wallet.Balance != 20000 {
		t.Errorf("wallet balance = %d, want 20000", wallet.Balance)
	}
	if n := countTransactions(db); n != 0 {
		t.Errorf("transactions = %d, want 0", n)
	}
}

func TestComboInsufficientPointsAborts(t *testing.T) {
	db := freshDB()
	o, _ := newOrchestrator(db)
	branch := seedBranch(db, "QC")
	customer := seedCustomer(db, "broke@test.com")
	haircut := seedService(db, "Cut", 30000)
	seedPoints(t, o, customer, 1000)

	_, err := o.Settle(Request{
		BranchID:      branch.ID,
		CustomerID:    &customer.ID,
		Services:      []ServiceLine{{ServiceID: haircut.ID}},
		PaymentMethod: models.PaymentMethodCombo,
		Combo:         &ComboAllocation{PointsToRedeem: 5000, WalletToUse: 0, CashToCollect: 25000},
	})
	if err == nil {
		t.Fatal("expected insufficient points")
	}
	if utils.AsAppError(err).Code != utils.CodeInsufficientPoints {
		t.Errorf("error code = %s, want %s", utils.AsAppError(err).Code, utils.CodeInsufficientPoints)
	}
	if n := countTransactions(db); n != 0 {
		t.Errorf("transactions = %d, want 0", n)
	}
}

func TestComboWalletFailureLeavesPointsSpent(t *testing.T) {
	db := freshDB()
	o, _ := newOrchestrator(db)
	branch := seedBranch(db, "Ortigas")
	customer := seedCustomer(db, "window@test.com")
	haircut := seedService(db, "Cut", 30000)
	seedPoints(t, o, customer, 10000)
	seedWallet(t, o, customer, 1000, 0) // 10 in the wallet; the split wants 100

	_, err := o.Settle(Request{
		BranchID:      branch.ID,
		CustomerID:    &customer.ID,
		Services:      []ServiceLine{{ServiceID: haircut.ID}},
		PaymentMethod: models.PaymentMethodCombo,
		Combo:         &ComboAllocation{PointsToRedeem: 5000, WalletToUse: 10000, CashToCollect: 15000},
	})
	if err == nil {
		t.Fatal("expected the wallet debit to fail")
	}
	if utils.AsAppError(err).Code != utils.CodeInsufficientBalance {
		t.Errorf("error code = %s, want %s", utils.AsAppError(err).Code, utils.CodeInsufficientBalance)
	}

	// The redemption stands: no compensating credit is issued, the gap is
	// left to manual reconciliation.
	pointsLedger, _ := o.Points.Get(customer.ID)
	if pointsLedger.CurrentBalance != 5000 {
		t.Errorf("points balance = %d, want 5000 (redemption not reversed)", pointsLedger.CurrentBalance)
	}
	var redeemRows int64
	db.Model(&models.PointsTransaction{}).
		Where("user_id = ? AND type = ?", customer.ID, models.PointsTransactionRedeem).Count(&redeemRows)
	if redeemRows != 1 {
		t.Errorf("redeem log rows = %d, want 1", redeemRows)
	}

	// Wallet untouched, nothing committed.
	wallet, _ := o.Wallets.Get(customer.ID)
	if wallet.Balance != 1000 || wallet.BonusBalance != 0 {
		t.Errorf("wallet after = {%d, %d}, want {1000, 0}", wallet.Balance, wallet.BonusBalance)
	}
	if n := countTransactions(db); n != 0 {
		t.Errorf("transactions = %d, want 0", n)
	}
}

func TestWalletPaymentDebitsTotalAndEarnsBonus(t *testing.T) {
	db := freshDB()
	o, _ := newOrchestrator(db)
	branch := seedBranch(db, "BGC")
	customer := seedCustomer(db, "wallet@test.com")
	haircut := seedService(db, "Cut", 30000)
	seedWallet(t, o, customer, 50000, 0)

	result, err := o.Settle(Request{
		BranchID:      branch.ID,
		CustomerID:    &customer.ID,
		Services:      []ServiceLine{{ServiceID: haircut.ID}},
		PaymentMethod: models.PaymentMethodWallet,
		SkipBooking:   true,
	})
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}

	wallet, _ := o.Wallets.Get(customer.ID)
	if wallet.Balance != 20000 {
		t.Errorf("wallet balance = %d, want 20000", wallet.Balance)
	}

	// Wallet payments earn at the bonus multiplier: 300 * 1.5 = 450.
	var stored models.Transaction
	db.First(&stored, "id = ?", result.TransactionID)
	if stored.WalletUsed != 30000 {
		t.Errorf("wallet used = %d, want 30000", stored.WalletUsed)
	}
	if stored.PointsEarned != 45000 {
		t.Errorf("points earned = %d, want 45000", stored.PointsEarned)
	}
}

func TestInsufficientWalletAbortsSale(t *testing.T) {
	db := freshDB()
	o, _ := newOrchestrator(db)
	branch := seedBranch(db, "Taguig")
	customer := seedCustomer(db, "thin@test.com")
	haircut := seedService(db, "Cut", 30000)
	seedWallet(t, o, customer, 5000, 0)

	_, err := o.Settle(Request{
		BranchID:      branch.ID,
		CustomerID:    &customer.ID,
		Services:      []ServiceLine{{ServiceID: haircut.ID}},
		PaymentMethod: models.PaymentMethodWallet,
	})
	if err == nil {
		t.Fatal("expected insufficient balance")
	}
	if utils.AsAppError(err).Code != utils.CodeInsufficientBalance {
		t.Errorf("error code = %s, want %s", utils.AsAppError(err).Code, utils.CodeInsufficientBalance)
	}
	if n := countTransactions(db); n != 0 {
		t.Errorf("transactions = %d, want 0", n)
	}
}

func TestCashPaymentEarnsBaseRate(t *testing.T) {
	db := freshDB()
	o, _ := newOrchestrator(db)
	branch := seedBranch(db, "Manila")
	customer := seedCustomer(db, "cash@test.com")
	haircut := seedService(db, "Cut", 30000)

	result, err := o.Settle(Request{
		BranchID:      branch.ID,
		CustomerID:    &customer.ID,
		Services:      []ServiceLine{{ServiceID: haircut.ID}},
		PaymentMethod: models.PaymentMethodCash,
		SkipBooking:   true,
	})
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}

	var stored models.Transaction
	db.First(&stored, "id = ?", result.TransactionID)
	if stored.CashCollected != 30000 {
		t.Errorf("cash collected = %d, want 30000", stored.CashCollected)
	}
	if stored.PointsEarned != 30000 {
		t.Errorf("points earned = %d, want 30000", stored.PointsEarned)
	}
}

func TestWalkInEarnsNothing(t *testing.T) {
	db := freshDB()
	o, _ := newOrchestrator(db)
	branch := seedBranch(db, "Cebu")
	haircut := seedService(db, "Cut", 30000)

	result, err := o.Settle(Request{
		BranchID:      branch.ID,
		CustomerEmail: "stranger@nowhere.test",
		Services:      []ServiceLine{{ServiceID: haircut.ID}},
		PaymentMethod: models.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("walk-in settle failed: %v", err)
	}

	var stored models.Transaction
	db.First(&stored, "id = ?", result.TransactionID)
	if stored.CustomerID != nil {
		t.Error("unknown email should settle as a walk-in")
	}
	if stored.PointsEarned != 0 {
		t.Errorf("points earned = %d, want 0", stored.PointsEarned)
	}
	var pointsRows int64
	db.Model(&models.PointsTransaction{}).Count(&pointsRows)
	if pointsRows != 0 {
		t.Errorf("points transactions = %d, want 0", pointsRows)
	}
}

func TestPointsKillSwitch(t *testing.T) {
	db := freshDB()
	o, _ := newOrchestrator(db)
	branch := seedBranch(db, "Davao")
	customer := seedCustomer(db, "nokill@test.com")
	haircut := seedService(db, "Cut", 30000)
	db.Create(&models.LoyaltyConfig{Key: models.ConfigPointsEnabled, Value: "false"})

	result, err := o.Settle(Request{
		BranchID:      branch.ID,
		CustomerID:    &customer.ID,
		Services:      []ServiceLine{{ServiceID: haircut.ID}},
		PaymentMethod: models.PaymentMethodCash,
		SkipBooking:   true,
	})
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}

	var stored models.Transaction
	db.First(&stored, "id = ?", result.TransactionID)
	if stored.PointsEarned != 0 {
		t.Errorf("points earned = %d, want 0 with earning disabled", stored.PointsEarned)
	}
	pointsLedger, _ := o.Points.Get(customer.ID)
	if pointsLedger.CurrentBalance != 0 {
		t.Errorf("points balance = %d, want 0", pointsLedger.CurrentBalance)
	}
}

func TestSideEffectFailureDoesNotFailSale(t *testing.T) {
	db := freshDB()
	o, _ := newOrchestrator(db)
	branch := seedBranch(db, "Iloilo")
	customer := seedCustomer(db, "sideeffect@test.com")
	haircut := seedService(db, "Cut", 30000)

	// Unknown voucher code: the voucher task fails, the sale does not.
	result, err := o.Settle(Request{
		BranchID:      branch.ID,
		CustomerID:    &customer.ID,
		Services:      []ServiceLine{{ServiceID: haircut.ID}},
		PaymentMethod: models.PaymentMethodCash,
		VoucherCode:   "NO-SUCH-VOUCHER",
		SkipBooking:   true,
	})
	if err != nil {
		t.Fatalf("sale should survive a failed side effect: %v", err)
	}
	if n := countTransactions(db); n != 1 {
		t.Fatalf("transactions = %d, want 1", n)
	}

	var voucherTask *TaskResult
	var pointsTask *TaskResult
	for i := range result.Report.Tasks {
		switch result.Report.Tasks[i].Name {
		case "voucher":
			voucherTask = &result.Report.Tasks[i]
		case "points":
			pointsTask = &result.Report.Tasks[i]
		}
	}
	if voucherTask == nil || voucherTask.Ok {
		t.Errorf("voucher task should be reported failed: %+v", voucherTask)
	}
	// Later tasks still ran.
	if pointsTask == nil || !pointsTask.Ok {
		t.Errorf("points task should still succeed: %+v", pointsTask)
	}
}

func TestVoucherRedeemedAndLinked(t *testing.T) {
	db := freshDB()
	o, _ := newOrchestrator(db)
	branch := seedBranch(db, "Baguio")
	admin := seedCustomer(db, "vadmin@test.com")
	customer := seedCustomer(db, "vholder@test.com")
	haircut := seedService(db, "Cut", 30000)
	voucher := seedActiveVoucher(db, "CUT50", 5000, 3, admin.ID)
	assignment, err := o.Vouchers.Assign(voucher.ID, customer.ID, nil)
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	result, err := o.Settle(Request{
		BranchID:       branch.ID,
		CustomerID:     &customer.ID,
		Services:       []ServiceLine{{ServiceID: haircut.ID}},
		PaymentMethod:  models.PaymentMethodCash,
		DiscountAmount: voucher.Value,
		VoucherCode:    *assignment.AssignmentCode,
		SkipBooking:    true,
	})
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}

	var stored models.Transaction
	db.First(&stored, "id = ?", result.TransactionID)
	if stored.TotalAmount != 25000 {
		t.Errorf("total = %d, want 25000 after discount", stored.TotalAmount)
	}
	if stored.VoucherAssignmentID == nil || *stored.VoucherAssignmentID != assignment.ID {
		t.Error("transaction should link the redeemed assignment")
	}
	var storedAssignment models.VoucherAssignment
	db.First(&storedAssignment, "id = ?", assignment.ID)
	if storedAssignment.Status != models.VoucherAssignmentRedeemed {
		t.Errorf("assignment status = %s, want redeemed", storedAssignment.Status)
	}
}

func TestBookingCreatedOnceForRepeatSettlement(t *testing.T) {
	db := freshDB()
	o, _ := newOrchestrator(db)
	branch := seedBranch(db, "Antipolo")
	customer := seedCustomer(db, "booker@test.com")
	haircut := seedService(db, "Cut", 30000)

	request := Request{
		BranchID:      branch.ID,
		CustomerID:    &customer.ID,
		Services:      []ServiceLine{{ServiceID: haircut.ID}},
		PaymentMethod: models.PaymentMethodCash,
		BookingDate:   "2026-09-01",
	}
	if _, err := o.Settle(request); err != nil {
		t.Fatalf("first settle failed: %v", err)
	}
	if _, err := o.Settle(request); err != nil {
		t.Fatalf("second settle failed: %v", err)
	}

	var bookings []models.Booking
	db.Where("customer_id = ?", customer.ID).Find(&bookings)
	if len(bookings) != 1 {
		t.Fatalf("bookings = %d, want 1 (deduplicated)", len(bookings))
	}
	if bookings[0].Status != models.BookingStatusConfirmed {
		t.Errorf("booking status = %s, want confirmed", bookings[0].Status)
	}
	if bookings[0].TransactionID == nil {
		t.Error("booking should reference the transaction that created it")
	}
}

func TestInventoryDecrementClampsAtZero(t *testing.T) {
	db := freshDB()
	o, _ := newOrchestrator(db)
	branch := seedBranch(db, "Laguna")
	pomade := seedProduct(db, "Pomade", 10000, 1)

	_, err := o.Settle(Request{
		BranchID:      branch.ID,
		Products:      []ProductLine{{ProductID: pomade.ID, Quantity: 3}},
		PaymentMethod: models.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}

	var stored models.Product
	db.First(&stored, "id = ?", pomade.ID)
	if stored.Stock != 0 {
		t.Errorf("stock = %d, want 0 (clamped)", stored.Stock)
	}
	if stored.SoldThisMonth != 3 {
		t.Errorf("sold this month = %d, want 3", stored.SoldThisMonth)
	}
}

func TestNotificationsDispatched(t *testing.T) {
	db := freshDB()
	o, notifier := newOrchestrator(db)
	branch := seedBranch(db, "Makati II")
	customer := seedCustomer(db, "notify@test.com")
	haircut := seedService(db, "Cut", 30000)

	_, err := o.Settle(Request{
		BranchID:      branch.ID,
		CustomerID:    &customer.ID,
		Services:      []ServiceLine{{ServiceID: haircut.ID}},
		PaymentMethod: models.PaymentMethodCash,
		BookingDate:   "2026-09-02",
	})
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}

	var gotBooking, gotAdmin bool
	for _, sent := range notifier.sent {
		if sent.Type == models.NotificationBookingCreated && sent.UserID == customer.ID {
			gotBooking = true
		}
		if sent.Type == models.NotificationTransactionCompleted && sent.Role == "branch_admin" {
			gotAdmin = true
		}
	}
	if !gotBooking {
		t.Error("customer booking notification not sent")
	}
	if !gotAdmin {
		t.Error("branch admin notification not sent")
	}
}

func TestEmptyTransactionRejected(t *testing.T) {
	db := freshDB()
	o, _ := newOrchestrator(db)
	branch := seedBranch(db, "Empty")

	_, err := o.Settle(Request{
		BranchID:      branch.ID,
		PaymentMethod: models.PaymentMethodCash,
	})
	if err == nil {
		t.Fatal("expected validation error for empty line items")
	}
	if utils.AsAppError(err).Code != utils.CodeValidationError {
		t.Errorf("error code = %s, want %s", utils.AsAppError(err).Code, utils.CodeValidationError)
	}
}
