package vouchers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"barberops-backend/models"
	"barberops-backend/utils"
)

// Registry owns voucher lifecycle: creation, approval, assignment and
// redemption. All money values it takes and returns are in the x100
// storage format.
type Registry struct {
	DB *gorm.DB
}

// CreateParams describes a single voucher. CreatorElevated controls the
// approval flow: elevated creators get an auto-activated voucher, everyone
// else starts at pending_approval.
type CreateParams struct {
	Code            string
	Value           int64
	PointsRequired  int64
	MaxUses         int
	ExpiresAt       *time.Time
	BranchID        *uuid.UUID
	CreatedBy       uuid.UUID
	CreatorElevated bool
}

// newCodeSuffix returns a short uppercase suffix for assignment codes.
func newCodeSuffix() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:4])
}

// Create inserts one voucher, applying the approval rules.
func (r *Registry) Create(p CreateParams) (*models.Voucher, error) {
	if p.Code == "" || p.Value <= 0 {
		return nil, utils.NewAppError(utils.CodeValidationError,
			"Voucher code and a positive value are required", "", "")
	}
	if p.MaxUses <= 0 {
		p.MaxUses = 1
	}

	voucher := models.Voucher{
		Code:           strings.ToUpper(p.Code),
		Value:          p.Value,
		PointsRequired: p.PointsRequired,
		MaxUses:        p.MaxUses,
		ExpiresAt:      p.ExpiresAt,
		BranchID:       p.BranchID,
		CreatedBy:      p.CreatedBy,
		Status:         models.VoucherStatusPendingApproval,
	}
	if p.CreatorElevated {
		now := time.Now()
		voucher.Status = models.VoucherStatusActive
		voucher.ApprovedBy = &p.CreatedBy
		voucher.ApprovedAt = &now
	}

	if err := r.DB.Create(&voucher).Error; err != nil {
		return nil, err
	}
	return &voucher, nil
}

// CreateBatch generates count single-use flier vouchers sharing one batch
// id. Each voucher is independent: maxUses is forced to 1 and the codes
// are unique.
func (r *Registry) CreateBatch(count int, prefix string, value, pointsRequired int64, expiresAt *time.Time, branchID *uuid.UUID, createdBy uuid.UUID, creatorElevated bool) ([]models.Voucher, uuid.UUID, error) {
	if count <= 0 || count > 1000 {
		return nil, uuid.Nil, utils.NewAppError(utils.CodeValidationError,
			"Batch size must be between 1 and 1000", "", "")
	}
	if prefix == "" || value <= 0 {
		return nil, uuid.Nil, utils.NewAppError(utils.CodeValidationError,
			"Voucher prefix and a positive value are required", "", "")
	}

	batchID := uuid.New()
	prefix = strings.ToUpper(prefix)
	status := models.VoucherStatusPendingApproval
	var approvedBy *uuid.UUID
	var approvedAt *time.Time
	if creatorElevated {
		now := time.Now()
		status = models.VoucherStatusActive
		approvedBy = &createdBy
		approvedAt = &now
	}

	batch := make([]models.Voucher, count)
	for i := range batch {
		batch[i] = models.Voucher{
			Code:           fmt.Sprintf("%s-%s%s", prefix, newCodeSuffix(), newCodeSuffix()),
			Value:          value,
			PointsRequired: pointsRequired,
			MaxUses:        1,
			ExpiresAt:      expiresAt,
			BranchID:       branchID,
			CreatedBy:      createdBy,
			Status:         status,
			ApprovedBy:     approvedBy,
			ApprovedAt:     approvedAt,
			BatchID:        &batchID,
		}
	}

	if err := r.DB.Create(&batch).Error; err != nil {
		return nil, uuid.Nil, err
	}
	return batch, batchID, nil
}

// Assign gives userID a slot on the voucher, addressed by a fresh
// assignment code. At most one assignment per (voucher, user); issuance
// stops once the number of assignments reaches the usage cap.
func (r *Registry) Assign(voucherID, userID uuid.UUID, assignedBy *uuid.UUID) (*models.VoucherAssignment, error) {
	var assignment models.VoucherAssignment
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		voucher, err := lockVoucherByID(tx, voucherID)
		if err != nil {
			return err
		}
		if voucher.Status != models.VoucherStatusActive {
			return utils.NewAppError(utils.CodeVoucherInactive,
				"Voucher is not active", "", "Approve the voucher before assigning it")
		}
		if voucher.IsExpired(time.Now()) {
			return utils.NewAppError(utils.CodeVoucherExpired, "Voucher has expired", "", "")
		}

		var existing int64
		if err := tx.Model(&models.VoucherAssignment{}).
			Where("voucher_id = ? AND user_id = ?", voucherID, userID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return utils.NewAppError(utils.CodeVoucherAssigned,
				"User already holds this voucher", "", "")
		}

		var total int64
		if err := tx.Model(&models.VoucherAssignment{}).
			Where("voucher_id = ?", voucherID).Count(&total).Error; err != nil {
			return err
		}
		if int(total) >= voucher.MaxUses {
			return utils.NewAppError(utils.CodeVoucherFullyUsed,
				"Voucher has no remaining slots", "", "")
		}

		code := voucher.Code + "-" + newCodeSuffix()
		assignment = models.VoucherAssignment{
			VoucherID:      voucherID,
			UserID:         &userID,
			AssignmentCode: &code,
			Status:         models.VoucherAssignmentAssigned,
			AssignedBy:     assignedBy,
		}
		return tx.Create(&assignment).Error
	})
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

// Approve activates a pending voucher.
func (r *Registry) Approve(voucherID, approverID uuid.UUID) (*models.Voucher, error) {
	var voucher models.Voucher
	if err := r.DB.First(&voucher, "id = ?", voucherID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewAppError(utils.CodeVoucherNotFound, "Voucher not found", "", "")
		}
		return nil, err
	}
	if voucher.Status != models.VoucherStatusPendingApproval {
		return nil, utils.NewAppError(utils.CodeConflict,
			"Voucher is not awaiting approval", fmt.Sprintf("Current status is %s", voucher.Status), "")
	}

	now := time.Now()
	voucher.Status = models.VoucherStatusActive
	voucher.ApprovedBy = &approverID
	voucher.ApprovedAt = &now
	if err := r.DB.Save(&voucher).Error; err != nil {
		return nil, err
	}
	return &voucher, nil
}

// Reject declines a pending voucher with a reason.
func (r *Registry) Reject(voucherID, approverID uuid.UUID, reason string) (*models.Voucher, error) {
	var voucher models.Voucher
	if err := r.DB.First(&voucher, "id = ?", voucherID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewAppError(utils.CodeVoucherNotFound, "Voucher not found", "", "")
		}
		return nil, err
	}
	if voucher.Status != models.VoucherStatusPendingApproval {
		return nil, utils.NewAppError(utils.CodeConflict,
			"Voucher is not awaiting approval", fmt.Sprintf("Current status is %s", voucher.Status), "")
	}

	voucher.Status = models.VoucherStatusRejected
	voucher.ApprovedBy = &approverID
	voucher.RejectionReason = reason
	if err := r.DB.Save(&voucher).Error; err != nil {
		return nil, err
	}
	return &voucher, nil
}

// SetActive toggles an approved voucher between active and inactive.
func (r *Registry) SetActive(voucherID uuid.UUID, active bool) (*models.Voucher, error) {
	var voucher models.Voucher
	if err := r.DB.First(&voucher, "id = ?", voucherID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewAppError(utils.CodeVoucherNotFound, "Voucher not found", "", "")
		}
		return nil, err
	}
	switch voucher.Status {
	case models.VoucherStatusActive, models.VoucherStatusInactive:
	default:
		return nil, utils.NewAppError(utils.CodeConflict,
			"Only approved vouchers can be toggled", fmt.Sprintf("Current status is %s", voucher.Status), "")
	}

	voucher.Status = models.VoucherStatusInactive
	if active {
		voucher.Status = models.VoucherStatusActive
	}
	if err := r.DB.Save(&voucher).Error; err != nil {
		return nil, err
	}
	return &voucher, nil
}

// ForUser lists a user's assignments with their vouchers preloaded.
func (r *Registry) ForUser(userID uuid.UUID) ([]models.VoucherAssignment, error) {
	var assignments []models.VoucherAssignment
	err := r.DB.Preload("Voucher").
		Where("user_id = ?", userID).
		Order("assigned_at DESC").
		Find(&assignments).Error
	return assignments, err
}
