package ledger

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"barberops-backend/models"
	"barberops-backend/utils"
)

// WalletLedger mutates wallet balances. Every operation runs in its own
// database transaction with the wallet row locked, and appends an audit
// row. Debits consume the bonus balance before the main balance.
type WalletLedger struct {
	DB *gorm.DB
}

// DebitResult exposes the bonus/main split of a debit for downstream
// accounting.
type DebitResult struct {
	BonusUsed    int64 `json:"bonus_used"`
	MainUsed     int64 `json:"main_used"`
	BalanceAfter int64 `json:"balance_after"`
	BonusAfter   int64 `json:"bonus_after"`
}

// Get returns the user's wallet, or an empty zero-balance wallet if none
// has been created yet.
func (l *WalletLedger) Get(userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := l.DB.Where("user_id = ?", userID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.Wallet{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// Credit adds amount to the main balance, or to the bonus balance when
// toBonus is set. The wallet row is created lazily on first credit.
// Idempotency is the caller's responsibility via referenceID.
func (l *WalletLedger) Credit(userID uuid.UUID, amount int64, toBonus bool, referenceID, notes string) (*models.Wallet, error) {
	if amount <= 0 {
		return nil, utils.NewAppError(utils.CodeValidationError,
			"Credit amount must be positive", "", "Enter an amount greater than zero")
	}

	var wallet models.Wallet
	err := l.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).First(&wallet).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			wallet = models.Wallet{UserID: userID}
			if err := tx.Create(&wallet).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if toBonus {
			wallet.BonusBalance += amount
		} else {
			wallet.Balance += amount
		}
		if err := tx.Save(&wallet).Error; err != nil {
			return err
		}

		audit := models.WalletTransaction{
			WalletID:     wallet.ID,
			UserID:       userID,
			Type:         models.WalletTransactionCredit,
			Amount:       amount,
			BalanceAfter: wallet.Balance,
			BonusAfter:   wallet.BonusBalance,
			ReferenceID:  referenceID,
			Notes:        notes,
		}
		return tx.Create(&audit).Error
	})
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// Debit removes amount from the wallet, bonus balance first. Fails with
// INSUFFICIENT_BALANCE when the remainder exceeds the main balance;
// balances never go negative.
func (l *WalletLedger) Debit(userID uuid.UUID, amount int64, referenceID, notes string) (*DebitResult, error) {
	if amount <= 0 {
		return nil, utils.NewAppError(utils.CodeValidationError,
			"Debit amount must be positive", "", "Enter an amount greater than zero")
	}

	var result DebitResult
	err := l.DB.Transaction(func(tx *gorm.DB) error {
		var wallet models.Wallet
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).First(&wallet).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NewAppError(utils.CodeInsufficientBalance,
				"Insufficient wallet balance", "No wallet found for this account",
				"Top up the wallet before paying with it")
		}
		if err != nil {
			return err
		}

		bonusUsed := wallet.BonusBalance
		if bonusUsed > amount {
			bonusUsed = amount
		}
		mainUsed := amount - bonusUsed
		if mainUsed > wallet.Balance {
			return utils.NewAppError(utils.CodeInsufficientBalance,
				"Insufficient wallet balance", "", "Top up the wallet or choose another payment method")
		}

		wallet.BonusBalance -= bonusUsed
		wallet.Balance -= mainUsed
		if err := tx.Save(&wallet).Error; err != nil {
			return err
		}

		audit := models.WalletTransaction{
			WalletID:     wallet.ID,
			UserID:       userID,
			Type:         models.WalletTransactionDebit,
			Amount:       amount,
			BonusUsed:    bonusUsed,
			MainUsed:     mainUsed,
			BalanceAfter: wallet.Balance,
			BonusAfter:   wallet.BonusBalance,
			ReferenceID:  referenceID,
			Notes:        notes,
		}
		if err := tx.Create(&audit).Error; err != nil {
			return err
		}

		result = DebitResult{
			BonusUsed:    bonusUsed,
			MainUsed:     mainUsed,
			BalanceAfter: wallet.Balance,
			BonusAfter:   wallet.BonusBalance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// History returns the most recent audit rows for a user.
func (l *WalletLedger) History(userID uuid.UUID, limit int) ([]models.WalletTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.WalletTransaction
	err := l.DB.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
