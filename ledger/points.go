package ledger

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"barberops-backend/models"
	"barberops-backend/utils"
)

// PointsLedger mutates per-user points balances. Every mutation appends an
// entry to the points transaction log; the log is also the idempotency
// authority — an earn or redeem carrying a source id that already appears
// in the log for that user is a no-op, which is what makes retried
// settlements safe without cross-call rollback.
type PointsLedger struct {
	DB *gorm.DB
}

// EarnParams describes a points credit. SourceID is the idempotency key
// (the settlement path passes the transaction number).
type EarnParams struct {
	UserID     uuid.UUID
	Amount     int64
	SourceType string
	SourceID   string
	BranchID   *uuid.UUID
	Notes      string
}

// RedeemParams describes a points debit. AllowOverride lets administrative
// adjustments push past the current balance.
type RedeemParams struct {
	UserID        uuid.UUID
	Amount        int64
	SourceType    string
	SourceID      string
	BranchID      *uuid.UUID
	Notes         string
	AllowOverride bool
}

// AdjustResult is the outcome of an administrative adjustment. When the
// adjustment would drive the balance negative and the override flag was
// not set, Applied is false and RequiresConfirmation is true so the caller
// can ask before retrying with the override — a two-phase confirm, not an
// error.
type AdjustResult struct {
	Applied              bool  `json:"applied"`
	RequiresConfirmation bool  `json:"requires_confirmation"`
	WouldBeBalance       int64 `json:"would_be_balance"`
	BalanceAfter         int64 `json:"balance_after"`
}

// Get returns the user's ledger row, or a zero-balance row if none exists.
func (l *PointsLedger) Get(userID uuid.UUID) (*models.PointsLedger, error) {
	var ledger models.PointsLedger
	err := l.DB.Where("user_id = ?", userID).First(&ledger).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.PointsLedger{UserID: userID, Tier: DefaultTiers[0].Name}, nil
	}
	if err != nil {
		return nil, err
	}
	return &ledger, nil
}

// History returns the most recent log entries for a user.
func (l *PointsLedger) History(userID uuid.UUID, limit int) ([]models.PointsTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.PointsTransaction
	err := l.DB.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func lockLedger(tx *gorm.DB, userID uuid.UUID) (*models.PointsLedger, error) {
	var ledger models.PointsLedger
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).First(&ledger).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		ledger = models.PointsLedger{UserID: userID, Tier: DefaultTiers[0].Name, LastActivityAt: time.Now()}
		if err := tx.Create(&ledger).Error; err != nil {
			return nil, err
		}
		return &ledger, nil
	}
	if err != nil {
		return nil, err
	}
	return &ledger, nil
}

func hasLogEntry(tx *gorm.DB, userID uuid.UUID, entryType models.PointsTransactionType, sourceID string) (bool, error) {
	if sourceID == "" {
		return false, nil
	}
	var count int64
	err := tx.Model(&models.PointsTransaction{}).
		Where("user_id = ? AND type = ? AND source_id = ?", userID, entryType, sourceID).
		Count(&count).Error
	return count > 0, err
}

// Earn credits points. Rejects non-positive amounts; a repeated call with
// the same source id credits nothing and returns the current balance.
func (l *PointsLedger) Earn(p EarnParams) (int64, error) {
	if p.Amount <= 0 {
		return 0, utils.NewAppError(utils.CodeValidationError,
			"Earn amount must be positive", "", "")
	}

	var balanceAfter int64
	err := l.DB.Transaction(func(tx *gorm.DB) error {
		duplicate, err := hasLogEntry(tx, p.UserID, models.PointsTransactionEarn, p.SourceID)
		if err != nil {
			return err
		}
		ledger, err := lockLedger(tx, p.UserID)
		if err != nil {
			return err
		}
		if duplicate {
			log.Printf("[POINTS] duplicate earn ignored: user=%s source=%s", p.UserID, p.SourceID)
			balanceAfter = ledger.CurrentBalance
			return nil
		}

		ledger.CurrentBalance += p.Amount
		ledger.LifetimeEarned += p.Amount
		ledger.LastActivityAt = time.Now()

		// Lifetime earnings drive the VIP ladder; a crossing is recorded
		// in the log entry's notes so the promotion is auditable.
		notes := p.Notes
		tiers := ResolveTiers(LoadConfigSnapshot(tx))
		if reached := TierFor(tiers, ledger.LifetimeEarned); tierRank(tiers, reached) > tierRank(tiers, ledger.Tier) {
			marker := fmt.Sprintf("[TIER_PROMOTION:%s->%s]", ledger.Tier, reached)
			if notes != "" {
				notes = notes + " " + marker
			} else {
				notes = marker
			}
			log.Printf("[POINTS] user %s promoted from %s to %s", p.UserID, ledger.Tier, reached)
			ledger.Tier = reached
		}

		if err := tx.Save(ledger).Error; err != nil {
			return err
		}

		entry := models.PointsTransaction{
			UserID:       p.UserID,
			Type:         models.PointsTransactionEarn,
			Amount:       p.Amount,
			BalanceAfter: ledger.CurrentBalance,
			SourceType:   p.SourceType,
			SourceID:     p.SourceID,
			BranchID:     p.BranchID,
			Notes:        notes,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		balanceAfter = ledger.CurrentBalance
		return nil
	})
	return balanceAfter, err
}

// Redeem debits points. Fails with INSUFFICIENT_POINTS when the amount
// exceeds the current balance, unless AllowOverride is set. The log entry
// records the amount as negative.
func (l *PointsLedger) Redeem(p RedeemParams) (int64, error) {
	if p.Amount <= 0 {
		return 0, utils.NewAppError(utils.CodeValidationError,
			"Redeem amount must be positive", "", "")
	}

	var balanceAfter int64
	err := l.DB.Transaction(func(tx *gorm.DB) error {
		duplicate, err := hasLogEntry(tx, p.UserID, models.PointsTransactionRedeem, p.SourceID)
		if err != nil {
			return err
		}
		ledger, err := lockLedger(tx, p.UserID)
		if err != nil {
			return err
		}
		if duplicate {
			log.Printf("[POINTS] duplicate redeem ignored: user=%s source=%s", p.UserID, p.SourceID)
			balanceAfter = ledger.CurrentBalance
			return nil
		}

		if p.Amount > ledger.CurrentBalance && !p.AllowOverride {
			return utils.NewAppError(utils.CodeInsufficientPoints,
				"Insufficient points",
				fmt.Sprintf("Balance is %s, tried to redeem %s",
					FromStorage(ledger.CurrentBalance), FromStorage(p.Amount)),
				"Redeem fewer points or pay the difference another way")
		}

		ledger.CurrentBalance -= p.Amount
		ledger.LifetimeRedeemed += p.Amount
		ledger.LastActivityAt = time.Now()
		if err := tx.Save(ledger).Error; err != nil {
			return err
		}

		entry := models.PointsTransaction{
			UserID:       p.UserID,
			Type:         models.PointsTransactionRedeem,
			Amount:       -p.Amount,
			BalanceAfter: ledger.CurrentBalance,
			SourceType:   p.SourceType,
			SourceID:     p.SourceID,
			BranchID:     p.BranchID,
			Notes:        p.Notes,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		balanceAfter = ledger.CurrentBalance
		return nil
	})
	return balanceAfter, err
}

// Adjust applies a signed administrative correction. When the result would
// be negative and allowNegative is false, nothing is written and the
// returned result asks for confirmation.
func (l *PointsLedger) Adjust(userID uuid.UUID, signedAmount int64, reason string, allowNegative bool, adjustedBy *uuid.UUID) (*AdjustResult, error) {
	if signedAmount == 0 {
		return nil, utils.NewAppError(utils.CodeValidationError,
			"Adjustment amount must be non-zero", "", "")
	}

	var result AdjustResult
	err := l.DB.Transaction(func(tx *gorm.DB) error {
		ledger, err := lockLedger(tx, userID)
		if err != nil {
			return err
		}

		wouldBe := ledger.CurrentBalance + signedAmount
		if wouldBe < 0 && !allowNegative {
			result = AdjustResult{
				RequiresConfirmation: true,
				WouldBeBalance:       wouldBe,
				BalanceAfter:         ledger.CurrentBalance,
			}
			return nil
		}

		ledger.CurrentBalance = wouldBe
		if signedAmount > 0 {
			ledger.LifetimeEarned += signedAmount
		} else {
			ledger.LifetimeRedeemed += -signedAmount
		}
		ledger.LastActivityAt = time.Now()
		if err := tx.Save(ledger).Error; err != nil {
			return err
		}

		sourceID := ""
		if adjustedBy != nil {
			sourceID = adjustedBy.String()
		}
		entry := models.PointsTransaction{
			UserID:       userID,
			Type:         models.PointsTransactionAdjust,
			Amount:       signedAmount,
			BalanceAfter: ledger.CurrentBalance,
			SourceType:   "manual_adjustment",
			SourceID:     sourceID,
			Notes:        reason,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		result = AdjustResult{Applied: true, BalanceAfter: ledger.CurrentBalance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ExpiryResult describes one account touched by an expiry sweep.
type ExpiryResult struct {
	UserID  uuid.UUID `json:"user_id"`
	Expired int64     `json:"expired"`
}

// ProcessExpiry sweeps ledgers whose last activity is older than the
// configured horizon and expires their remaining balance. With dryRun set
// it only reports what would expire. Disabled unless points_expiry_enabled
// is turned on in config.
func (l *PointsLedger) ProcessExpiry(snapshot map[string]string, now time.Time, dryRun bool) ([]ExpiryResult, error) {
	enabled, _ := strconv.ParseBool(snapshot[models.ConfigPointsExpiryEnabled])
	if !enabled {
		return nil, nil
	}
	months := 12
	if raw, ok := snapshot[models.ConfigPointsExpiryMonths]; ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			months = n
		}
	}
	cutoff := now.AddDate(0, -months, 0)

	var stale []models.PointsLedger
	if err := l.DB.Where("last_activity_at < ? AND current_balance > 0", cutoff).Find(&stale).Error; err != nil {
		return nil, err
	}

	results := make([]ExpiryResult, 0, len(stale))
	for _, row := range stale {
		if dryRun {
			results = append(results, ExpiryResult{UserID: row.UserID, Expired: row.CurrentBalance})
			continue
		}
		userID := row.UserID
		err := l.DB.Transaction(func(tx *gorm.DB) error {
			ledger, err := lockLedger(tx, userID)
			if err != nil {
				return err
			}
			if ledger.CurrentBalance <= 0 || !ledger.LastActivityAt.Before(cutoff) {
				return nil
			}
			amount := ledger.CurrentBalance
			ledger.CurrentBalance = 0
			ledger.LifetimeRedeemed += amount
			ledger.LastActivityAt = now
			if err := tx.Save(ledger).Error; err != nil {
				return err
			}
			entry := models.PointsTransaction{
				UserID:       userID,
				Type:         models.PointsTransactionExpire,
				Amount:       -amount,
				BalanceAfter: 0,
				SourceType:   "expiry",
				Notes:        fmt.Sprintf("Expired after %d months of inactivity", months),
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
			results = append(results, ExpiryResult{UserID: userID, Expired: amount})
			return nil
		})
		if err != nil {
			log.Printf("[POINTS] expiry failed for user %s: %v", userID, err)
		}
	}
	return results, nil
}
