package handlers

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"barberops-backend/ledger"
	"barberops-backend/models"
	"barberops-backend/settlement"
	"barberops-backend/utils"
)

type TransactionHandler struct {
	DB         *gorm.DB
	Settlement *settlement.Orchestrator
}

type serviceLineRequest struct {
	ServiceID uuid.UUID  `json:"service_id" binding:"required"`
	BarberID  *uuid.UUID `json:"barber_id"`
}

type productLineRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

type comboRequest struct {
	PointsToRedeem float64 `json:"points_to_redeem"`
	WalletToUse    float64 `json:"wallet_to_use"`
	CashToCollect  float64 `json:"cash_to_collect"`
}

// Create settles a point-of-sale transaction. Peso amounts arrive as JSON
// numbers and are converted to storage format at this boundary.
func (h *TransactionHandler) Create(c *gin.Context) {
	var req struct {
		BranchID       uuid.UUID            `json:"branch_id" binding:"required"`
		CustomerID     *uuid.UUID           `json:"customer_id"`
		CustomerEmail  string               `json:"customer_email"`
		BarberID       *uuid.UUID           `json:"barber_id"`
		Services       []serviceLineRequest `json:"services"`
		Products       []productLineRequest `json:"products"`
		PaymentMethod  string               `json:"payment_method" binding:"required"`
		DiscountAmount float64              `json:"discount_amount"`
		TaxAmount      float64              `json:"tax_amount"`
		VoucherCode    string               `json:"voucher_code"`
		Combo          *comboRequest        `json:"combo"`
		BookingDate    string               `json:"booking_date"`
		SkipBooking    bool                 `json:"skip_booking"`
		Notes          string               `json:"notes"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}
	// A negative discount would inflate the total past the line items.
	if req.DiscountAmount < 0 || req.TaxAmount < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Discount and tax cannot be negative"})
		return
	}

	request := settlement.Request{
		BranchID:       req.BranchID,
		CustomerID:     req.CustomerID,
		CustomerEmail:  req.CustomerEmail,
		BarberID:       req.BarberID,
		PaymentMethod:  models.PaymentMethod(req.PaymentMethod),
		DiscountAmount: ledger.ParseAmount(req.DiscountAmount),
		TaxAmount:      ledger.ParseAmount(req.TaxAmount),
		VoucherCode:    req.VoucherCode,
		BookingDate:    req.BookingDate,
		SkipBooking:    req.SkipBooking,
		Notes:          req.Notes,
	}
	for _, line := range req.Services {
		request.Services = append(request.Services, settlement.ServiceLine{
			ServiceID: line.ServiceID, BarberID: line.BarberID,
		})
	}
	for _, line := range req.Products {
		request.Products = append(request.Products, settlement.ProductLine{
			ProductID: line.ProductID, Quantity: line.Quantity,
		})
	}
	if req.Combo != nil {
		request.Combo = &settlement.ComboAllocation{
			PointsToRedeem: ledger.ParseAmount(req.Combo.PointsToRedeem),
			WalletToUse:    ledger.ParseAmount(req.Combo.WalletToUse),
			CashToCollect:  ledger.ParseAmount(req.Combo.CashToCollect),
		}
	}
	if staffID, exists := c.Get("user_id"); exists {
		id := staffID.(uuid.UUID)
		request.ProcessedBy = &id
	}

	result, err := h.Settlement.Settle(request)
	if err != nil {
		respondError(c, err)
		return
	}

	var transaction models.Transaction
	h.DB.Preload("Services").Preload("Products").First(&transaction, "id = ?", result.TransactionID)

	if transaction.CustomerID != nil {
		var customer models.User
		if err := h.DB.First(&customer, "id = ?", transaction.CustomerID).Error; err == nil {
			utils.SendReceiptEmail(customer.Email, customer.Name, transaction.ReceiptNumber, ledger.ToFloat(transaction.TotalAmount))
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"transaction": transactionResponse(&transaction),
		"receipt_number": result.ReceiptNumber,
	})
}

func (h *TransactionHandler) Get(c *gin.Context) {
	id := c.Param("id")

	var transaction models.Transaction
	if err := h.DB.Preload("Services").Preload("Products").First(&transaction, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
		return
	}

	c.JSON(http.StatusOK, transactionResponse(&transaction))
}

func (h *TransactionHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	query := h.DB.Model(&models.Transaction{})

	if branchID := c.Query("branch_id"); branchID != "" {
		query = query.Where("branch_id = ?", branchID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("payment_status = ?", status)
	}
	if method := c.Query("payment_method"); method != "" {
		query = query.Where("payment_method = ?", method)
	}
	if barberID := c.Query("barber_id"); barberID != "" {
		query = query.Where("barber_id = ?", barberID)
	}
	if from := c.Query("from"); from != "" {
		query = query.Where("created_at >= ?", from)
	}
	if to := c.Query("to"); to != "" {
		query = query.Where("created_at <= ?", to)
	}

	var total int64
	query.Count(&total)

	var transactions []models.Transaction
	if err := query.Preload("Services").Preload("Products").
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&transactions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
		return
	}

	result := make([]gin.H, 0, len(transactions))
	for i := range transactions {
		result = append(result, transactionResponse(&transactions[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": result,
		"total":        total,
		"page":         page,
		"limit":        limit,
		"pages":        int(math.Ceil(float64(total) / float64(limit))),
	})
}

// MyTransactions lists the authenticated customer's receipts.
func (h *TransactionHandler) MyTransactions(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var transactions []models.Transaction
	if err := h.DB.Preload("Services").Preload("Products").
		Where("customer_id = ?", userID).
		Order("created_at DESC").Limit(50).Find(&transactions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
		return
	}

	result := make([]gin.H, 0, len(transactions))
	for i := range transactions {
		result = append(result, transactionResponse(&transactions[i]))
	}
	c.JSON(http.StatusOK, gin.H{"transactions": result})
}

// GetByReceipt resolves the number printed on a customer's receipt.
func (h *TransactionHandler) GetByReceipt(c *gin.Context) {
	number := c.Param("number")

	var transaction models.Transaction
	if err := h.DB.Preload("Services").Preload("Products").
		First(&transaction, "receipt_number = ?", number).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Receipt not found"})
		return
	}

	c.JSON(http.StatusOK, transactionResponse(&transaction))
}

// UpdateStatus patches the payment status, the entry point for gateway
// webhook updates. Refunds reverse stock and vouchers, so they must go
// through the refund endpoint instead.
func (h *TransactionHandler) UpdateStatus(c *gin.Context) {
	id := c.Param("id")

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	newStatus := models.PaymentStatus(req.Status)
	if newStatus == models.PaymentStatusRefunded {
		respondError(c, utils.NewAppError(utils.CodeValidationError,
			"Refunds must go through the refund endpoint", "",
			"Use POST /transactions/:id/refund"))
		return
	}

	var transaction models.Transaction
	if err := h.DB.First(&transaction, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
		return
	}

	if !models.IsValidPaymentTransition(transaction.PaymentStatus, newStatus) {
		respondError(c, utils.NewAppError(utils.CodeConflict,
			"Invalid payment status transition",
			fmt.Sprintf("%s to %s", transaction.PaymentStatus, newStatus), ""))
		return
	}

	if err := h.DB.Model(&transaction).Update("payment_status", newStatus).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update payment status"})
		return
	}
	transaction.PaymentStatus = newStatus

	c.JSON(http.StatusOK, transactionResponse(&transaction))
}

// DailySummary totals one day's completed sales for the counter close.
func (h *TransactionHandler) DailySummary(c *gin.Context) {
	date := c.DefaultQuery("date", time.Now().Format("2006-01-02"))

	filtered := func() *gorm.DB {
		q := h.DB.Model(&models.Transaction{}).Where("DATE(created_at) = ?", date)
		if branchID := c.Query("branch_id"); branchID != "" {
			q = q.Where("branch_id = ?", branchID)
		}
		return q
	}

	var totals struct {
		Count  int64
		Gross  int64
		Cash   int64
		Wallet int64
		Points int64
	}
	err := filtered().Where("payment_status = ?", models.PaymentStatusCompleted).
		Select("COUNT(*) as count, COALESCE(SUM(total_amount),0) as gross, " +
			"COALESCE(SUM(cash_collected),0) as cash, COALESCE(SUM(wallet_used),0) as wallet, " +
			"COALESCE(SUM(points_redeemed),0) as points").
		Scan(&totals).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build sales summary"})
		return
	}

	var refunds int64
	filtered().Where("payment_status = ?", models.PaymentStatusRefunded).Count(&refunds)

	c.JSON(http.StatusOK, gin.H{
		"date":            date,
		"transactions":    totals.Count,
		"gross_sales":     ledger.ToFloat(totals.Gross),
		"cash_collected":  ledger.ToFloat(totals.Cash),
		"wallet_used":     ledger.ToFloat(totals.Wallet),
		"points_redeemed": ledger.ToFloat(totals.Points),
		"refunds":         refunds,
	})
}

func (h *TransactionHandler) Refund(c *gin.Context) {
	id := c.Param("id")
	transactionID, err := uuid.Parse(id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid transaction ID"})
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	staffID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	transaction, err := h.Settlement.Refund(transactionID, req.Reason, staffID.(uuid.UUID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, transactionResponse(transaction))
}

// transactionResponse converts stored x100 amounts back to peso numbers.
func transactionResponse(t *models.Transaction) gin.H {
	services := make([]gin.H, 0, len(t.Services))
	for _, s := range t.Services {
		services = append(services, gin.H{
			"service_id":   s.ServiceID,
			"service_name": s.ServiceName,
			"barber_id":    s.BarberID,
			"price":        ledger.ToFloat(s.Price),
		})
	}
	products := make([]gin.H, 0, len(t.Products))
	for _, p := range t.Products {
		products = append(products, gin.H{
			"product_id":   p.ProductID,
			"product_name": p.ProductName,
			"price":        ledger.ToFloat(p.Price),
			"quantity":     p.Quantity,
		})
	}

	return gin.H{
		"id":                 t.ID,
		"transaction_number": t.TransactionNumber,
		"receipt_number":     t.ReceiptNumber,
		"branch_id":          t.BranchID,
		"customer_id":        t.CustomerID,
		"barber_id":          t.BarberID,
		"subtotal":           ledger.ToFloat(t.Subtotal),
		"discount_amount":    ledger.ToFloat(t.DiscountAmount),
		"tax_amount":         ledger.ToFloat(t.TaxAmount),
		"total_amount":       ledger.ToFloat(t.TotalAmount),
		"payment_method":     t.PaymentMethod,
		"payment_status":     t.PaymentStatus,
		"points_redeemed":    ledger.ToFloat(t.PointsRedeemed),
		"wallet_used":        ledger.ToFloat(t.WalletUsed),
		"cash_collected":     ledger.ToFloat(t.CashCollected),
		"points_earned":      ledger.ToFloat(t.PointsEarned),
		"voucher_code":       t.VoucherCode,
		"refund_reason":      t.RefundReason,
		"refunded_at":        t.RefundedAt,
		"services":           services,
		"products":           products,
		"created_at":         t.CreatedAt,
	}
}
