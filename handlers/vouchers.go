package handlers

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"barberops-backend/ledger"
	"barberops-backend/models"
	"barberops-backend/utils"
	"barberops-backend/vouchers"
)

type VoucherHandler struct {
	DB       *gorm.DB
	Registry *vouchers.Registry
}

func isElevatedRole(role string) bool {
	return role == "branch_admin" || role == "super_admin"
}

func (h *VoucherHandler) Create(c *gin.Context) {
	var req struct {
		Code           string     `json:"code" binding:"required"`
		Value          float64    `json:"value" binding:"required"`
		PointsRequired float64    `json:"points_required"`
		MaxUses        int        `json:"max_uses"`
		ExpiresAt      *time.Time `json:"expires_at"`
		BranchID       *uuid.UUID `json:"branch_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	userID, _ := c.Get("user_id")
	role, _ := c.Get("user_role")

	voucher, err := h.Registry.Create(vouchers.CreateParams{
		Code:            req.Code,
		Value:           ledger.ParseAmount(req.Value),
		PointsRequired:  ledger.ParseAmount(req.PointsRequired),
		MaxUses:         req.MaxUses,
		ExpiresAt:       req.ExpiresAt,
		BranchID:        req.BranchID,
		CreatedBy:       userID.(uuid.UUID),
		CreatorElevated: isElevatedRole(role.(string)),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, voucherResponse(voucher))
}

func (h *VoucherHandler) CreateBatch(c *gin.Context) {
	var req struct {
		Count          int        `json:"count" binding:"required,min=1"`
		Prefix         string     `json:"prefix" binding:"required"`
		Value          float64    `json:"value" binding:"required"`
		PointsRequired float64    `json:"points_required"`
		ExpiresAt      *time.Time `json:"expires_at"`
		BranchID       *uuid.UUID `json:"branch_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	userID, _ := c.Get("user_id")
	role, _ := c.Get("user_role")

	batch, batchID, err := h.Registry.CreateBatch(req.Count, req.Prefix,
		ledger.ParseAmount(req.Value), ledger.ParseAmount(req.PointsRequired),
		req.ExpiresAt, req.BranchID, userID.(uuid.UUID), isElevatedRole(role.(string)))
	if err != nil {
		respondError(c, err)
		return
	}

	codes := make([]string, 0, len(batch))
	for _, v := range batch {
		codes = append(codes, v.Code)
	}
	c.JSON(http.StatusCreated, gin.H{
		"batch_id": batchID,
		"count":    len(batch),
		"codes":    codes,
	})
}

func (h *VoucherHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	query := h.DB.Model(&models.Voucher{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if batchID := c.Query("batch_id"); batchID != "" {
		query = query.Where("batch_id = ?", batchID)
	}

	var total int64
	query.Count(&total)

	var list []models.Voucher
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&list).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch vouchers"})
		return
	}

	result := make([]gin.H, 0, len(list))
	for i := range list {
		result = append(result, voucherResponse(&list[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"vouchers": result,
		"total":    total,
		"page":     page,
		"limit":    limit,
		"pages":    int(math.Ceil(float64(total) / float64(limit))),
	})
}

func (h *VoucherHandler) Get(c *gin.Context) {
	var voucher models.Voucher
	if err := h.DB.First(&voucher, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Voucher not found"})
		return
	}

	var assignments []models.VoucherAssignment
	h.DB.Where("voucher_id = ?", voucher.ID).Find(&assignments)

	response := voucherResponse(&voucher)
	response["assignments"] = assignments
	c.JSON(http.StatusOK, response)
}

func (h *VoucherHandler) Approve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid voucher ID"})
		return
	}
	userID, _ := c.Get("user_id")

	voucher, err := h.Registry.Approve(id, userID.(uuid.UUID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, voucherResponse(voucher))
}

func (h *VoucherHandler) Reject(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid voucher ID"})
		return
	}
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}
	userID, _ := c.Get("user_id")

	voucher, err := h.Registry.Reject(id, userID.(uuid.UUID), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, voucherResponse(voucher))
}

func (h *VoucherHandler) SetActive(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid voucher ID"})
		return
	}
	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	voucher, err := h.Registry.SetActive(id, *req.Active)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, voucherResponse(voucher))
}

func (h *VoucherHandler) Assign(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid voucher ID"})
		return
	}
	var req struct {
		UserID uuid.UUID `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	var assignedBy *uuid.UUID
	if staffID, exists := c.Get("user_id"); exists {
		sid := staffID.(uuid.UUID)
		assignedBy = &sid
	}

	assignment, err := h.Registry.Assign(id, req.UserID, assignedBy)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, assignment)
}

// MyVouchers lists the authenticated customer's voucher assignments.
func (h *VoucherHandler) MyVouchers(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	assignments, err := h.Registry.ForUser(userID.(uuid.UUID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch vouchers"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"vouchers": assignments})
}

// Check validates a presented code for the POS without consuming it.
func (h *VoucherHandler) Check(c *gin.Context) {
	var req struct {
		Code   string     `json:"code" binding:"required"`
		UserID *uuid.UUID `json:"user_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	check, err := h.Registry.RedeemForPOS(req.Code, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	response := gin.H{"valid": check.Valid}
	if !check.Valid {
		response["reason"] = check.Reason
		response["code"] = check.Code
	}
	if check.Voucher != nil {
		response["voucher"] = voucherResponse(check.Voucher)
	}
	c.JSON(http.StatusOK, response)
}

func (h *VoucherHandler) CreateSendRequest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid voucher ID"})
		return
	}
	var req struct {
		Recipients []struct {
			UserID *uuid.UUID `json:"user_id"`
			Email  string     `json:"email"`
		} `json:"recipients" binding:"required,min=1"`
		Notes string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	userID, _ := c.Get("user_id")
	role, _ := c.Get("user_role")

	recipients := make([]vouchers.RecipientParam, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		recipients = append(recipients, vouchers.RecipientParam{UserID: r.UserID, Email: r.Email})
	}

	request, err := h.Registry.CreateSendRequest(id, userID.(uuid.UUID), recipients, req.Notes, isElevatedRole(role.(string)))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, request)
}

func (h *VoucherHandler) ApproveSendRequest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request ID"})
		return
	}
	userID, _ := c.Get("user_id")

	request, err := h.Registry.ApproveSendRequest(id, userID.(uuid.UUID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

func (h *VoucherHandler) RejectSendRequest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request ID"})
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	c.ShouldBindJSON(&req)
	userID, _ := c.Get("user_id")

	request, err := h.Registry.RejectSendRequest(id, userID.(uuid.UUID), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

func (h *VoucherHandler) ListSendRequests(c *gin.Context) {
	query := h.DB.Model(&models.VoucherSendRequest{}).Preload("Recipients")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var requests []models.VoucherSendRequest
	if err := query.Order("created_at DESC").Limit(100).Find(&requests).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch send requests"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

func voucherResponse(v *models.Voucher) gin.H {
	return gin.H{
		"id":               v.ID,
		"code":             v.Code,
		"value":            ledger.ToFloat(v.Value),
		"points_required":  ledger.ToFloat(v.PointsRequired),
		"max_uses":         v.MaxUses,
		"expires_at":       v.ExpiresAt,
		"branch_id":        v.BranchID,
		"status":           v.Status,
		"batch_id":         v.BatchID,
		"rejection_reason": v.RejectionReason,
		"created_at":       v.CreatedAt,
	}
}
