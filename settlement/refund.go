package settlement

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"barberops-backend/ledger"
	"barberops-backend/models"
	"barberops-backend/utils"
)

// Refund marks a committed transaction refunded and reverses its physical
// side effects: product stock is restored and any voucher assignment the
// sale redeemed is reopened. Points earned and wallet amounts debited are
// deliberately left untouched; reconciling those is a manual process.
func (o *Orchestrator) Refund(transactionID uuid.UUID, reason string, staffID uuid.UUID) (*models.Transaction, error) {
	var transaction models.Transaction

	err := o.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Products").
			First(&transaction, "id = ?", transactionID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NewAppError(utils.CodeNotFound, "Transaction not found", "", "")
		}
		if err != nil {
			return err
		}

		if transaction.PaymentStatus == models.PaymentStatusPending {
			return utils.NewAppError(utils.CodeConflict,
				"Pending transactions cannot be refunded", "",
				"Wait for the payment to complete or fail")
		}
		if !models.IsValidPaymentTransition(transaction.PaymentStatus, models.PaymentStatusRefunded) {
			return utils.NewAppError(utils.CodeConflict,
				"Transaction cannot be refunded",
				fmt.Sprintf("Current status is %s", transaction.PaymentStatus), "")
		}

		now := time.Now()
		transaction.PaymentStatus = models.PaymentStatusRefunded
		transaction.RefundReason = reason
		transaction.RefundedBy = &staffID
		transaction.RefundedAt = &now
		return tx.Save(&transaction).Error
	})
	if err != nil {
		return nil, err
	}

	// The status flip is authoritative; the reversals below are best
	// effort, logged for manual follow-up when they fail.
	if err := o.restoreInventory(transaction.Products); err != nil {
		log.Printf("[SETTLEMENT] %s: refund stock restore failed: %v", transaction.TransactionNumber, err)
	}

	if transaction.VoucherAssignmentID != nil {
		if err := o.Vouchers.Reactivate(*transaction.VoucherAssignmentID); err != nil {
			log.Printf("[SETTLEMENT] %s: refund voucher reactivation failed: %v", transaction.TransactionNumber, err)
		}
	}

	if o.Notifier != nil && transaction.CustomerID != nil {
		o.Notifier.Send(*transaction.CustomerID, models.NotificationTransactionRefunded,
			"Transaction refunded",
			fmt.Sprintf("Receipt %s was refunded.", transaction.ReceiptNumber),
			models.NotificationMetadata{
				TransactionID: transaction.ID.String(),
				ReceiptNumber: transaction.ReceiptNumber,
				Amount:        ledger.ToFloat(transaction.TotalAmount),
			})
	}

	return &transaction, nil
}

// restoreInventory puts refunded quantities back on the shelf and walks
// the monthly sold counter down, clamped at zero.
func (o *Orchestrator) restoreInventory(lines []models.TransactionProduct) error {
	for _, line := range lines {
		err := o.DB.Transaction(func(tx *gorm.DB) error {
			var product models.Product
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&product, "id = ?", line.ProductID).Error; err != nil {
				return err
			}
			sold := product.SoldThisMonth - line.Quantity
			if sold < 0 {
				sold = 0
			}
			return tx.Model(&product).Updates(map[string]interface{}{
				"stock":           product.Stock + line.Quantity,
				"sold_this_month": sold,
			}).Error
		})
		if err != nil {
			return err
		}
	}
	return nil
}
