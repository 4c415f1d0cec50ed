package vouchers

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"barberops-backend/models"
	"barberops-backend/utils"
)

// RecipientParam nominates one recipient by user id or email.
type RecipientParam struct {
	UserID *uuid.UUID
	Email  string
}

// CreateSendRequest records a staff nomination of recipients for a voucher.
// Elevated requesters skip the approval queue: the request is fulfilled
// immediately.
func (r *Registry) CreateSendRequest(voucherID, requestedBy uuid.UUID, recipients []RecipientParam, notes string, requesterElevated bool) (*models.VoucherSendRequest, error) {
	if len(recipients) == 0 {
		return nil, utils.NewAppError(utils.CodeValidationError,
			"At least one recipient is required", "", "")
	}

	var voucher models.Voucher
	if err := r.DB.First(&voucher, "id = ?", voucherID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewAppError(utils.CodeVoucherNotFound, "Voucher not found", "", "")
		}
		return nil, err
	}

	request := models.VoucherSendRequest{
		VoucherID:   voucherID,
		RequestedBy: requestedBy,
		Status:      models.SendRequestPending,
		Notes:       notes,
	}
	for _, rec := range recipients {
		request.Recipients = append(request.Recipients, models.VoucherSendRecipient{
			UserID: rec.UserID,
			Email:  rec.Email,
		})
	}
	if err := r.DB.Create(&request).Error; err != nil {
		return nil, err
	}

	if requesterElevated {
		return r.ApproveSendRequest(request.ID, requestedBy)
	}
	return &request, nil
}

// ApproveSendRequest issues assignment codes to each nominated recipient.
// Recipients who cannot be resolved to an account, or who already hold an
// assignment, are skipped with a recorded reason; issuance stops once the
// voucher's cap is reached. Partial fulfillment is a success, not an error.
func (r *Registry) ApproveSendRequest(requestID, approverID uuid.UUID) (*models.VoucherSendRequest, error) {
	var request models.VoucherSendRequest
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Recipients").First(&request, "id = ?", requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewAppError(utils.CodeNotFound, "Send request not found", "", "")
			}
			return err
		}
		if request.Status != models.SendRequestPending {
			return utils.NewAppError(utils.CodeConflict,
				"Send request is not awaiting approval",
				fmt.Sprintf("Current status is %s", request.Status), "")
		}

		voucher, err := lockVoucherByID(tx, request.VoucherID)
		if err != nil {
			return err
		}
		if voucher.Status != models.VoucherStatusActive {
			return utils.NewAppError(utils.CodeVoucherInactive,
				"Voucher is not active", "", "Approve the voucher first")
		}

		var total int64
		if err := tx.Model(&models.VoucherAssignment{}).
			Where("voucher_id = ?", voucher.ID).Count(&total).Error; err != nil {
			return err
		}

		for i := range request.Recipients {
			rec := &request.Recipients[i]

			userID := rec.UserID
			if userID == nil && rec.Email != "" {
				var user models.User
				if err := tx.Where("email = ?", rec.Email).First(&user).Error; err == nil {
					userID = &user.ID
				}
			}
			if userID == nil {
				rec.SkipReason = "recipient could not be resolved to an account"
				log.Printf("[VOUCHER] send request %s: skipping unresolvable recipient %q", request.ID, rec.Email)
				continue
			}

			var existing int64
			if err := tx.Model(&models.VoucherAssignment{}).
				Where("voucher_id = ? AND user_id = ?", voucher.ID, *userID).
				Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				rec.SkipReason = "recipient already holds this voucher"
				continue
			}

			if int(total) >= voucher.MaxUses {
				rec.SkipReason = "voucher cap reached"
				continue
			}

			code := voucher.Code + "-" + newCodeSuffix()
			assignment := models.VoucherAssignment{
				VoucherID:      voucher.ID,
				UserID:         userID,
				AssignmentCode: &code,
				Status:         models.VoucherAssignmentAssigned,
				AssignedBy:     &approverID,
			}
			if err := tx.Create(&assignment).Error; err != nil {
				return err
			}
			total++
			rec.Fulfilled = true
			rec.AssignmentID = &assignment.ID
		}

		now := time.Now()
		request.Status = models.SendRequestApproved
		request.ApprovedBy = &approverID
		request.ApprovedAt = &now
		return tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(&request).Error
	})
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// RejectSendRequest declines a pending send request.
func (r *Registry) RejectSendRequest(requestID, approverID uuid.UUID, reason string) (*models.VoucherSendRequest, error) {
	var request models.VoucherSendRequest
	if err := r.DB.First(&request, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewAppError(utils.CodeNotFound, "Send request not found", "", "")
		}
		return nil, err
	}
	if request.Status != models.SendRequestPending {
		return nil, utils.NewAppError(utils.CodeConflict,
			"Send request is not awaiting approval",
			fmt.Sprintf("Current status is %s", request.Status), "")
	}

	request.Status = models.SendRequestRejected
	request.ApprovedBy = &approverID
	if reason != "" {
		request.Notes = reason
	}
	if err := r.DB.Save(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}
