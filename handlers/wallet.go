package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"barberops-backend/ledger"
	"barberops-backend/utils"
)

type WalletHandler struct {
	DB      *gorm.DB
	Wallets *ledger.WalletLedger
	Points  *ledger.PointsLedger
}

func (h *WalletHandler) GetMyWallet(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	wallet, err := h.Wallets.Get(userID.(uuid.UUID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"balance":       ledger.ToFloat(wallet.Balance),
		"bonus_balance": ledger.ToFloat(wallet.BonusBalance),
		"total":         ledger.ToFloat(wallet.Balance + wallet.BonusBalance),
	})
}

func (h *WalletHandler) GetMyHistory(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	rows, err := h.Wallets.History(userID.(uuid.UUID), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch wallet history"})
		return
	}

	history := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		history = append(history, gin.H{
			"id":            row.ID,
			"type":          row.Type,
			"amount":        ledger.ToFloat(row.Amount),
			"bonus_used":    ledger.ToFloat(row.BonusUsed),
			"main_used":     ledger.ToFloat(row.MainUsed),
			"balance_after": ledger.ToFloat(row.BalanceAfter),
			"bonus_after":   ledger.ToFloat(row.BonusAfter),
			"reference_id":  row.ReferenceID,
			"notes":         row.Notes,
			"created_at":    row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// Credit tops up a customer's wallet. Staff collect the cash at the
// counter; the bonus flag routes promotional credit to the bonus balance.
// Cash top-ups large enough to reach a configured bonus tier also award
// bonus points through the points ledger.
func (h *WalletHandler) Credit(c *gin.Context) {
	var req struct {
		UserID  uuid.UUID `json:"user_id" binding:"required"`
		Amount  float64   `json:"amount" binding:"required"`
		ToBonus bool      `json:"to_bonus"`
		Notes   string    `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	// One reference per top-up; it doubles as the idempotency key for the
	// bonus-points earn.
	reference := "TOPUP-" + uuid.New().String()[:8]

	amount := ledger.ParseAmount(req.Amount)
	wallet, err := h.Wallets.Credit(req.UserID, amount, req.ToBonus, reference, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	var bonusPoints int64
	if h.Points != nil && !req.ToBonus {
		snapshot := ledger.LoadConfigSnapshot(h.DB)
		if ledger.ResolveRates(snapshot).PointsEnabled {
			if bonus := ledger.TopUpBonus(snapshot, amount); bonus > 0 {
				if _, err := h.Points.Earn(ledger.EarnParams{
					UserID:     req.UserID,
					Amount:     bonus,
					SourceType: "top_up_bonus",
					SourceID:   reference,
					Notes:      "Wallet top-up bonus",
				}); err != nil {
					// The top-up already succeeded; the missing bonus is
					// logged for manual crediting.
					log.Printf("[WALLET] top-up bonus earn failed: user=%s reference=%s err=%v", req.UserID, reference, err)
				} else {
					bonusPoints = bonus
				}
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"balance":       ledger.ToFloat(wallet.Balance),
		"bonus_balance": ledger.ToFloat(wallet.BonusBalance),
		"bonus_points":  ledger.ToFloat(bonusPoints),
	})
}

// GetUserWallet lets staff look up a customer's balance at the counter.
func (h *WalletHandler) GetUserWallet(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	wallet, err := h.Wallets.Get(id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":       id,
		"balance":       ledger.ToFloat(wallet.Balance),
		"bonus_balance": ledger.ToFloat(wallet.BonusBalance),
	})
}
