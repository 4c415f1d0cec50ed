package vouchers

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"barberops-backend/models"
	"barberops-backend/utils"
)

// Resolution is the outcome of resolving a presented code: the voucher it
// belongs to and the assignment slot the redemption consumed (or would
// consume).
type Resolution struct {
	Voucher    models.Voucher
	Assignment *models.VoucherAssignment
}

// RedeemCheck is the speculative validation result for the POS flow.
type RedeemCheck struct {
	Valid   bool            `json:"valid"`
	Reason  string          `json:"reason,omitempty"`
	Code    string          `json:"code,omitempty"`
	Voucher *models.Voucher `json:"voucher,omitempty"`
}

func lockVoucherByID(tx *gorm.DB, id uuid.UUID) (*models.Voucher, error) {
	var voucher models.Voucher
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&voucher, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewAppError(utils.CodeVoucherNotFound, "Voucher not found", "", "")
	}
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

func redeemedCount(tx *gorm.DB, voucherID uuid.UUID) (int, error) {
	var count int64
	err := tx.Model(&models.VoucherAssignment{}).
		Where("voucher_id = ? AND status = ?", voucherID, models.VoucherAssignmentRedeemed).
		Count(&count).Error
	return int(count), err
}

// checkVoucherUsable applies the gates shared by both resolution paths:
// expiry against call time, lifecycle status, and the redeemed-count cap.
func checkVoucherUsable(tx *gorm.DB, voucher *models.Voucher, now time.Time) error {
	if voucher.IsExpired(now) {
		return utils.NewAppError(utils.CodeVoucherExpired,
			"Voucher has expired", "", "Ask the branch for a current promotion")
	}
	if voucher.Status != models.VoucherStatusActive {
		return utils.NewAppError(utils.CodeVoucherInactive,
			"Voucher is not active", "", "")
	}
	redeemed, err := redeemedCount(tx, voucher.ID)
	if err != nil {
		return err
	}
	if redeemed >= voucher.MaxUses {
		return utils.NewAppError(utils.CodeVoucherFullyUsed,
			"Voucher has been fully redeemed", "", "")
	}
	return nil
}

// resolve implements the two-path redemption algorithm inside the caller's
// transaction. The presented code is first tried as a per-user assignment
// code, then as the shared voucher code. With claim set, the matched (or
// newly created) assignment is marked redeemed in the same transaction —
// the check and the act never span two calls.
//
// Shared-code rules: a customer reuses their existing assignment or takes a
// free slot first-come; a walk-in (no userID) may only redeem vouchers that
// were never distributed as named assignment codes.
func (r *Registry) resolve(tx *gorm.DB, code string, userID *uuid.UUID, now time.Time, claim bool) (*Resolution, error) {
	// Path 1: unique assignment code.
	var assignment models.VoucherAssignment
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("assignment_code = ?", code).First(&assignment).Error
	if err == nil {
		voucher, lockErr := lockVoucherByID(tx, assignment.VoucherID)
		if lockErr != nil {
			return nil, lockErr
		}
		if userID != nil && assignment.UserID != nil && *assignment.UserID != *userID {
			return nil, utils.NewAppError(utils.CodeVoucherRestricted,
				"This code belongs to another customer", "", "")
		}
		if assignment.Status == models.VoucherAssignmentRedeemed {
			return nil, utils.NewAppError(utils.CodeVoucherRedeemed,
				"This code has already been redeemed", "", "")
		}
		if err := checkVoucherUsable(tx, voucher, now); err != nil {
			return nil, err
		}
		if claim {
			if err := markRedeemed(tx, &assignment, now); err != nil {
				return nil, err
			}
		}
		return &Resolution{Voucher: *voucher, Assignment: &assignment}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Path 2: shared voucher code.
	var voucher models.Voucher
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("code = ?", code).First(&voucher).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewAppError(utils.CodeVoucherNotFound,
			"Voucher not found", "", "Check the code and try again")
	}
	if err != nil {
		return nil, err
	}
	if err := checkVoucherUsable(tx, &voucher, now); err != nil {
		return nil, err
	}

	if userID != nil {
		var own models.VoucherAssignment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("voucher_id = ? AND user_id = ?", voucher.ID, *userID).
			First(&own).Error
		if err == nil {
			if own.Status == models.VoucherAssignmentRedeemed {
				return nil, utils.NewAppError(utils.CodeVoucherRedeemed,
					"Voucher already redeemed by this customer", "", "")
			}
			if claim {
				if err := markRedeemed(tx, &own, now); err != nil {
					return nil, err
				}
			}
			return &Resolution{Voucher: voucher, Assignment: &own}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		// First-come claim of an open slot.
		var total int64
		if err := tx.Model(&models.VoucherAssignment{}).
			Where("voucher_id = ?", voucher.ID).Count(&total).Error; err != nil {
			return nil, err
		}
		if int(total) >= voucher.MaxUses {
			return nil, utils.NewAppError(utils.CodeVoucherFullyUsed,
				"Voucher has no remaining slots", "", "")
		}
		fresh := models.VoucherAssignment{
			VoucherID: voucher.ID,
			UserID:    userID,
			Status:    models.VoucherAssignmentAssigned,
		}
		if claim {
			if err := tx.Create(&fresh).Error; err != nil {
				return nil, err
			}
			if err := markRedeemed(tx, &fresh, now); err != nil {
				return nil, err
			}
		}
		return &Resolution{Voucher: voucher, Assignment: &fresh}, nil
	}

	// Walk-in: only undistributed flier vouchers may be claimed anonymously.
	var named int64
	if err := tx.Model(&models.VoucherAssignment{}).
		Where("voucher_id = ? AND assignment_code IS NOT NULL", voucher.ID).
		Count(&named).Error; err != nil {
		return nil, err
	}
	if named > 0 {
		return nil, utils.NewAppError(utils.CodeVoucherRestricted,
			"Voucher is reserved for named recipients",
			"", "Present your personal assignment code instead")
	}
	anonymous := models.VoucherAssignment{
		VoucherID: voucher.ID,
		Status:    models.VoucherAssignmentAssigned,
	}
	if claim {
		if err := tx.Create(&anonymous).Error; err != nil {
			return nil, err
		}
		if err := markRedeemed(tx, &anonymous, now); err != nil {
			return nil, err
		}
	}
	return &Resolution{Voucher: voucher, Assignment: &anonymous}, nil
}

func markRedeemed(tx *gorm.DB, assignment *models.VoucherAssignment, now time.Time) error {
	assignment.Status = models.VoucherAssignmentRedeemed
	assignment.RedeemedAt = &now
	return tx.Save(assignment).Error
}

// RedeemForPOS validates a presented code without consuming it, so the POS
// can check a voucher speculatively before committing a sale.
func (r *Registry) RedeemForPOS(code string, userID *uuid.UUID) (*RedeemCheck, error) {
	var resolution *Resolution
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		var resolveErr error
		resolution, resolveErr = r.resolve(tx, code, userID, time.Now(), false)
		return resolveErr
	})
	if err != nil {
		appErr := utils.AsAppError(err)
		if appErr.Code == utils.CodeOperationFailed {
			return nil, err
		}
		return &RedeemCheck{Valid: false, Reason: appErr.Message, Code: appErr.Code}, nil
	}
	return &RedeemCheck{Valid: true, Voucher: &resolution.Voucher}, nil
}

// MarkRedeemedForTransaction resolves the code and consumes the matched
// assignment in a single transaction, returning the resolution so the
// caller can record which assignment a sale redeemed (refunds reactivate
// it by that record).
func (r *Registry) MarkRedeemedForTransaction(code string, userID *uuid.UUID) (*Resolution, error) {
	var resolution *Resolution
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		var resolveErr error
		resolution, resolveErr = r.resolve(tx, code, userID, time.Now(), true)
		return resolveErr
	})
	if err != nil {
		return nil, err
	}
	return resolution, nil
}

// Reactivate reopens a redeemed assignment, used by refunds.
func (r *Registry) Reactivate(assignmentID uuid.UUID) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var assignment models.VoucherAssignment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&assignment, "id = ?", assignmentID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NewAppError(utils.CodeNotFound, "Voucher assignment not found", "", "")
		}
		if err != nil {
			return err
		}
		if assignment.Status != models.VoucherAssignmentRedeemed {
			return nil
		}
		assignment.Status = models.VoucherAssignmentAssigned
		assignment.RedeemedAt = nil
		return tx.Save(&assignment).Error
	})
}
