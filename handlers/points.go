package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"barberops-backend/ledger"
	"barberops-backend/utils"
)

type PointsHandler struct {
	DB     *gorm.DB
	Points *ledger.PointsLedger
}

func (h *PointsHandler) GetMyPoints(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	pl, err := h.Points.Get(userID.(uuid.UUID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"balance":           ledger.ToFloat(pl.CurrentBalance),
		"lifetime_earned":   ledger.ToFloat(pl.LifetimeEarned),
		"lifetime_redeemed": ledger.ToFloat(pl.LifetimeRedeemed),
		"tier":              pl.Tier,
		"last_activity_at":  pl.LastActivityAt,
	})
}

func (h *PointsHandler) GetMyHistory(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	rows, err := h.Points.History(userID.(uuid.UUID), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch points history"})
		return
	}

	history := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		history = append(history, gin.H{
			"id":            row.ID,
			"type":          row.Type,
			"amount":        ledger.ToFloat(row.Amount),
			"balance_after": ledger.ToFloat(row.BalanceAfter),
			"source_type":   row.SourceType,
			"source_id":     row.SourceID,
			"notes":         row.Notes,
			"created_at":    row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// GetUserPoints lets staff check a customer's balance before proposing a
// combo split.
func (h *PointsHandler) GetUserPoints(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	pl, err := h.Points.Get(id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":         id,
		"balance":         ledger.ToFloat(pl.CurrentBalance),
		"lifetime_earned": ledger.ToFloat(pl.LifetimeEarned),
		"tier":            pl.Tier,
	})
}

// Adjust applies a manual correction. Negative adjustments that would
// overdraw the balance come back with requires_confirmation; the client
// resubmits with allow_negative to push through.
func (h *PointsHandler) Adjust(c *gin.Context) {
	var req struct {
		UserID        uuid.UUID `json:"user_id" binding:"required"`
		Amount        float64   `json:"amount" binding:"required"`
		Reason        string    `json:"reason" binding:"required"`
		AllowNegative bool      `json:"allow_negative"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	var adjustedBy *uuid.UUID
	if staffID, exists := c.Get("user_id"); exists {
		id := staffID.(uuid.UUID)
		adjustedBy = &id
	}

	result, err := h.Points.Adjust(req.UserID, ledger.ParseAmount(req.Amount), req.Reason, req.AllowNegative, adjustedBy)
	if err != nil {
		respondError(c, err)
		return
	}

	if result.RequiresConfirmation {
		c.JSON(http.StatusOK, gin.H{
			"applied":               false,
			"requires_confirmation": true,
			"would_be_balance":      ledger.ToFloat(result.WouldBeBalance),
			"current_balance":       ledger.ToFloat(result.BalanceAfter),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"applied":       true,
		"balance_after": ledger.ToFloat(result.BalanceAfter),
	})
}

// ProcessExpiry runs the inactivity sweep. dry_run=true previews without
// writing.
func (h *PointsHandler) ProcessExpiry(c *gin.Context) {
	dryRun := c.DefaultQuery("dry_run", "false") == "true"

	results, err := h.Points.ProcessExpiry(ledger.LoadConfigSnapshot(h.DB), time.Now(), dryRun)
	if err != nil {
		respondError(c, err)
		return
	}

	expired := make([]gin.H, 0, len(results))
	for _, r := range results {
		expired = append(expired, gin.H{
			"user_id": r.UserID,
			"expired": ledger.ToFloat(r.Expired),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"dry_run":  dryRun,
		"accounts": len(results),
		"expired":  expired,
	})
}
