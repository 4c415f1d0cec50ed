package vouchers

import (
	"testing"
	"time"

	"barberops-backend/models"
	"barberops-backend/utils"
)

func TestRedeemByAssignmentCode(t *testing.T) {
	db := freshDB()
	admin := seedTestUser(db, "rd-admin@test.com", "branch_admin")
	customer := seedTestUser(db, "rd-cust@test.com", "customer")
	registry := &Registry{DB: db}
	voucher := seedActiveVoucher(db, "ASSIGN50", 5000, 3, admin.ID)
	assignment, _ := registry.Assign(voucher.ID, customer.ID, &admin.ID)

	resolution, err := registry.MarkRedeemedForTransaction(*assignment.AssignmentCode, &customer.ID)
	if err != nil {
		t.Fatalf("redeem failed: %v", err)
	}
	if resolution.Assignment.ID != assignment.ID {
		t.Error("resolved a different assignment")
	}

	var stored models.VoucherAssignment
	db.First(&stored, "id = ?", assignment.ID)
	if stored.Status != models.VoucherAssignmentRedeemed || stored.RedeemedAt == nil {
		t.Errorf("assignment not marked redeemed: %+v", stored)
	}
}

func TestAssignmentCodeCannotBeRedeemedTwice(t *testing.T) {
	db := freshDB()
	admin := seedTestUser(db, "rd2-admin@test.com", "branch_admin")
	customer := seedTestUser(db, "rd2-cust@test.com", "customer")
	registry := &Registry{DB: db}
	voucher := seedActiveVoucher(db, "ONCE", 1000, 3, admin.ID)
	assignment, _ := registry.Assign(voucher.ID, customer.ID, nil)

	if _, err := registry.MarkRedeemedForTransaction(*assignment.AssignmentCode, &customer.ID); err != nil {
		t.Fatalf("first redeem failed: %v", err)
	}
	_, err := registry.MarkRedeemedForTransaction(*assignment.AssignmentCode, &customer.ID)
	if err == nil {
		t.Fatal("expected already-redeemed error")
	}
	if utils.AsAppError(err).Code != utils.CodeVoucherRedeemed {
		t.Errorf("error code = %s, want %s", utils.AsAppError(err).Code, utils.CodeVoucherRedeemed)
	}
}

func TestAssignmentIsolationBetweenUsers(t *testing.T) {
	db := freshDB()
	admin := seedTestUser(db, "iso-admin@test.com", "branch_admin")
	userA := seedTestUser(db, "iso-a@test.com", "customer")
	userB := seedTestUser(db, "iso-b@test.com", "customer")
	registry := &Registry{DB: db}
	voucher := seedActiveVoucher(db, "MINE", 1000, 5, admin.ID)
	assignment, _ := registry.Assign(voucher.ID, userA.ID, nil)

	// User A's code presented in user B's context is rejected.
	_, err := registry.MarkRedeemedForTransaction(*assignment.AssignmentCode, &userB.ID)
	if err == nil {
		t.Fatal("expected cross-user rejection")
	}
	if utils.AsAppError(err).Code != utils.CodeVoucherRestricted {
		t.Errorf("error code = %s, want %s", utils.AsAppError(err).Code, utils.CodeVoucherRestricted)
	}
}

func TestSharedCodeUsesExistingAssignment(t *testing.T) {
	db := freshDB()
	admin := seedTestUser(db, "sh-admin@test.com", "branch_admin")
	customer := seedTestUser(db, "sh-cust@test.com", "customer")
	registry := &Registry{DB: db}
	voucher := seedActiveVoucher(db, "SHARED", 1000, 5, admin.ID)
	assignment, _ := registry.Assign(voucher.ID, customer.ID, nil)

	resolution, err := registry.MarkRedeemedForTransaction("SHARED", &customer.ID)
	if err != nil {
		t.Fatalf("redeem failed: %v", err)
	}
	if resolution.Assignment.ID != assignment.ID {
		t.Error("shared-code redemption should consume the existing assignment")
	}
}

func TestSharedCodeFirstComeClaim(t *testing.T) {
	db := freshDB()
	admin := seedTestUser(db, "fc-admin@test.com", "branch_admin")
	customer := seedTestUser(db, "fc-cust@test.com", "customer")
	registry := &Registry{DB: db}
	seedActiveVoucher(db, "OPEN", 1000, 2, admin.ID)

	resolution, err := registry.MarkRedeemedForTransaction("OPEN", &customer.ID)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if resolution.Assignment.UserID == nil || *resolution.Assignment.UserID != customer.ID {
		t.Error("claimed assignment should belong to the customer")
	}
	if resolution.Assignment.Status != models.VoucherAssignmentRedeemed {
		t.Errorf("status = %s, want redeemed", resolution.Assignment.Status)
	}
}

func TestWalkInRejectedWhenAssignmentCodesExist(t *testing.T) {
	db := freshDB()
	admin := seedTestUser(db, "wi-admin@test.com", "branch_admin")
	customer := seedTestUser(db, "wi-cust@test.com", "customer")
	registry := &Registry{DB: db}
	voucher := seedActiveVoucher(db, "NAMED", 1000, 5, admin.ID)
	registry.Assign(voucher.ID, customer.ID, nil)

	// Distributed voucher: anonymous redemption by the shared code fails.
	_, err := registry.MarkRedeemedForTransaction("NAMED", nil)
	if err == nil {
		t.Fatal("expected walk-in rejection")
	}
	if utils.AsAppError(err).Code != utils.CodeVoucherRestricted {
		t.Errorf("error code = %s, want %s", utils.AsAppError(err).Code, utils.CodeVoucherRestricted)
	}
}

func TestWalkInMayRedeemFlierVoucher(t *testing.T) {
	db := freshDB()
	admin := seedTestUser(db, "fl-admin@test.com", "branch_admin")
	registry := &Registry{DB: db}
	seedActiveVoucher(db, "FLIER1", 1000, 1, admin.ID)

	resolution, err := registry.MarkRedeemedForTransaction("FLIER1", nil)
	if err != nil {
		t.Fatalf("flier redemption failed: %v", err)
	}
	if resolution.Assignment.UserID != nil {
		t.Error("anonymous redemption should not attach a user")
	}
}

func TestVoucherCapAcrossAllPaths(t *testing.T) {
	db := freshDB()
	admin := seedTestUser(db, "cap-admin@test.com", "branch_admin")
	userA := seedTestUser(db, "cap-u1@test.com", "customer")
	userB := seedTestUser(db, "cap-u2@test.com", "customer")
	userC := seedTestUser(db, "cap-u3@test.com", "customer")
	registry := &Registry{DB: db}
	seedActiveVoucher(db, "TWOUSE", 1000, 2, admin.ID)

	// maxUses = 2: exactly two redemptions succeed, the third conflicts.
	if _, err := registry.MarkRedeemedForTransaction("TWOUSE", &userA.ID); err != nil {
		t.Fatalf("first redemption failed: %v", err)
	}
	if _, err := registry.MarkRedeemedForTransaction("TWOUSE", &userB.ID); err != nil {
		t.Fatalf("second redemption failed: %v", err)
	}
	_, err := registry.MarkRedeemedForTransaction("TWOUSE", &userC.ID)
	if err == nil {
		t.Fatal("expected cap rejection on third redemption")
	}
	if utils.AsAppError(err).Code != utils.CodeVoucherFullyUsed {
		t.Errorf("error code = %s, want %s", utils.AsAppError(err).Code, utils.CodeVoucherFullyUsed)
	}
}

func TestExpiredVoucherRejected(t *testing.T) {
	db := freshDB()
	admin := seedTestUser(db, "ex-admin@test.com", "branch_admin")
	customer := seedTestUser(db, "ex-cust@test.com", "customer")
	registry := &Registry{DB: db}

	voucher := seedActiveVoucher(db, "OLD", 1000, 5, admin.ID)
	past := time.Now().Add(-time.Hour)
	db.Model(&voucher).Update("expires_at", past)

	_, err := registry.MarkRedeemedForTransaction("OLD", &customer.ID)
	if err == nil {
		t.Fatal("expected expiry rejection")
	}
	if utils.AsAppError(err).Code != utils.CodeVoucherExpired {
		t.Errorf("error code = %s, want %s", utils.AsAppError(err).Code, utils.CodeVoucherExpired)
	}
}

func TestInactiveVoucherRejected(t *testing.T) {
	db := freshDB()
	admin := seedTestUser(db, "in-admin@test.com", "branch_admin")
	customer := seedTestUser(db, "in-cust@test.com", "customer")
	registry := &Registry{DB: db}

	voucher := seedActiveVoucher(db, "PAUSED", 1000, 5, admin.ID)
	registry.SetActive(voucher.ID, false)

	_, err := registry.MarkRedeemedForTransaction("PAUSED", &customer.ID)
	if err == nil {
		t.Fatal("expected inactive rejection")
	}
	if utils.AsAppError(err).Code != utils.CodeVoucherInactive {
		t.Errorf("error code = %s, want %s", utils.AsAppError(err).Code, utils.CodeVoucherInactive)
	}
}

func TestUnknownCode(t *testing.T) {
	db := freshDB()
	registry := &Registry{DB: db}
	_, err := registry.MarkRedeemedForTransaction("NO-SUCH-CODE", nil)
	if err == nil {
		t.Fatal("expected not-found error")
	}
	if utils.AsAppError(err).Code != utils.CodeVoucherNotFound {
		t.Errorf("error code = %s, want %s", utils.AsAppError(err).Code, utils.CodeVoucherNotFound)
	}
}

func TestRedeemForPOSDoesNotConsume(t *testing.T) {
	db := freshDB()
	admin := seedTestUser(db, "pos-admin@test.com", "branch_admin")
	customer := seedTestUser(db, "pos-cust@test.com", "customer")
	registry := &Registry{DB: db}
	voucher := seedActiveVoucher(db, "PEEK", 1000, 1, admin.ID)
	assignment, _ := registry.Assign(voucher.ID, customer.ID, nil)

	check, err := registry.RedeemForPOS(*assignment.AssignmentCode, &customer.ID)
	if err != nil {
		t.Fatalf("POS check failed: %v", err)
	}
	if !check.Valid {
		t.Fatalf("check invalid: %s", check.Reason)
	}
	if check.Voucher == nil || check.Voucher.ID != voucher.ID {
		t.Error("check should surface the voucher")
	}

	// Still redeemable afterwards.
	var stored models.VoucherAssignment
	db.First(&stored, "id = ?", assignment.ID)
	if stored.Status != models.VoucherAssignmentAssigned {
		t.Errorf("speculative check consumed the assignment: %s", stored.Status)
	}
}

func TestRedeemForPOSReportsReason(t *testing.T) {
	db := freshDB()
	registry := &Registry{DB: db}

	check, err := registry.RedeemForPOS("MISSING", nil)
	if err != nil {
		t.Fatalf("POS check errored: %v", err)
	}
	if check.Valid {
		t.Fatal("unknown code should be invalid")
	}
	if check.Code != utils.CodeVoucherNotFound {
		t.Errorf("reason code = %s, want %s", check.Code, utils.CodeVoucherNotFound)
	}
}

func TestReactivateReopensAssignment(t *testing.T) {
	db := freshDB()
	admin := seedTestUser(db, "re-admin@test.com", "branch_admin")
	customer := seedTestUser(db, "re-cust@test.com", "customer")
	registry := &Registry{DB: db}
	voucher := seedActiveVoucher(db, "REDO", 1000, 1, admin.ID)
	assignment, _ := registry.Assign(voucher.ID, customer.ID, nil)

	registry.MarkRedeemedForTransaction(*assignment.AssignmentCode, &customer.ID)
	if err := registry.Reactivate(assignment.ID); err != nil {
		t.Fatalf("reactivate failed: %v", err)
	}

	var stored models.VoucherAssignment
	db.First(&stored, "id = ?", assignment.ID)
	if stored.Status != models.VoucherAssignmentAssigned || stored.RedeemedAt != nil {
		t.Errorf("assignment not reopened: %+v", stored)
	}
}
