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
	"barberops-backend/vouchers"
)

// Notifier is the notification dispatcher as the orchestrator sees it:
// fire-and-forget, never an error.
type Notifier interface {
	Send(userID uuid.UUID, notifType models.NotificationType, title, body string, meta models.NotificationMetadata)
	SendToRole(role string, branchID *uuid.UUID, notifType models.NotificationType, title, body string, meta models.NotificationMetadata)
}

// Orchestrator finalizes point-of-sale transactions. Validation and all
// ledger-mutating settlement happen before the transaction row is written;
// once the row is committed, dependent side effects run individually
// isolated and the sale can no longer fail.
type Orchestrator struct {
	DB       *gorm.DB
	Wallets  *ledger.WalletLedger
	Points   *ledger.PointsLedger
	Vouchers *vouchers.Registry
	Notifier Notifier
}

// ServiceLine is one service sold, optionally pinned to a barber.
type ServiceLine struct {
	ServiceID uuid.UUID
	BarberID  *uuid.UUID
}

// ProductLine is one product sold.
type ProductLine struct {
	ProductID uuid.UUID
	Quantity  int
}

// Request is a validated-input settlement request. Money fields are in
// x100 storage format (handlers convert from peso floats).
type Request struct {
	BranchID       uuid.UUID
	CustomerID     *uuid.UUID
	CustomerEmail  string
	BarberID       *uuid.UUID
	Services       []ServiceLine
	Products       []ProductLine
	PaymentMethod  models.PaymentMethod
	DiscountAmount int64
	TaxAmount      int64
	VoucherCode    string
	Combo          *ComboAllocation
	BookingDate    string
	SkipBooking    bool
	ProcessedBy    *uuid.UUID
	Notes          string
}

// Result is returned to the POS once the transaction is committed.
type Result struct {
	TransactionID     uuid.UUID `json:"transaction_id"`
	TransactionNumber string    `json:"transaction_number"`
	ReceiptNumber     string    `json:"receipt_number"`
	Report            Report    `json:"-"`
}

// TaskResult records the outcome of one post-commit side effect.
type TaskResult struct {
	Name   string `json:"name"`
	Ok     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
	Err    string `json:"error,omitempty"`
}

// Report aggregates side-effect outcomes for observability. It is logged,
// never surfaced to the caller as a failure of the sale.
type Report struct {
	Tasks []TaskResult `json:"tasks"`
}

func (r *Report) run(name string, fn func() (string, error)) {
	detail, err := fn()
	result := TaskResult{Name: name, Ok: err == nil, Detail: detail}
	if err != nil {
		result.Err = err.Error()
		log.Printf("[SETTLEMENT] side effect %q failed (sale unaffected): %v", name, err)
	}
	r.Tasks = append(r.Tasks, result)
}

func ledgerRedeem(userID uuid.UUID, amount int64, referenceID string, branchID uuid.UUID) ledger.RedeemParams {
	branch := branchID
	return ledger.RedeemParams{
		UserID:     userID,
		Amount:     amount,
		SourceType: "payment",
		SourceID:   referenceID,
		BranchID:   &branch,
		Notes:      "Redeemed at point of sale",
	}
}

var validPaymentMethods = map[models.PaymentMethod]bool{
	models.PaymentMethodCash:          true,
	models.PaymentMethodCard:          true,
	models.PaymentMethodDigitalWallet: true,
	models.PaymentMethodBankTransfer:  true,
	models.PaymentMethodWallet:        true,
	models.PaymentMethodCombo:         true,
}

// Settle validates the request, settles the paying instruments, commits
// exactly one transaction record, then drives the best-effort side
// effects. Errors raised before commit leave nothing persisted (aside
// from the documented combo partial-failure window); after commit the
// sale never fails.
func (o *Orchestrator) Settle(req Request) (*Result, error) {
	if !validPaymentMethods[req.PaymentMethod] {
		return nil, utils.NewAppError(utils.CodeValidationError,
			"Unknown payment method", string(req.PaymentMethod), "")
	}
	if len(req.Services) == 0 && len(req.Products) == 0 {
		return nil, utils.NewAppError(utils.CodeValidationError,
			"Transaction must contain at least one service or product", "", "")
	}

	var branch models.Branch
	if err := o.DB.First(&branch, "id = ?", req.BranchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewAppError(utils.CodeNotFound, "Branch not found", "", "")
		}
		return nil, err
	}

	customerID, err := o.resolveCustomer(req.CustomerID, req.CustomerEmail)
	if err != nil {
		return nil, err
	}

	serviceLines, productLines, subtotal, err := o.buildLines(req)
	if err != nil {
		return nil, err
	}

	total := subtotal - req.DiscountAmount + req.TaxAmount
	if total < 0 {
		return nil, utils.NewAppError(utils.CodeValidationError,
			"Total cannot be negative",
			fmt.Sprintf("subtotal %s, discount %s, tax %s",
				ledger.FromStorage(subtotal), ledger.FromStorage(req.DiscountAmount),
				ledger.FromStorage(req.TaxAmount)), "")
	}

	// Numbers are fixed before settlement so ledger entries can reference
	// the transaction they pay for.
	id := uuid.New()
	stamp := time.Now().Format("20060102150405")
	txnNumber := "TXN-" + stamp + "-" + id.String()[:8]
	receiptNumber := "RCP-" + stamp + "-" + id.String()[:8]

	var combo ComboAllocation
	switch req.PaymentMethod {
	case models.PaymentMethodWallet:
		if customerID == nil {
			return nil, utils.NewAppError(utils.CodeValidationError,
				"Wallet payments require a customer account", "", "")
		}
		if total > 0 {
			if _, err := o.Wallets.Debit(*customerID, total, txnNumber, "Wallet payment"); err != nil {
				return nil, err
			}
		}
	case models.PaymentMethodCombo:
		if req.Combo == nil {
			return nil, utils.NewAppError(utils.CodeValidationError,
				"Combo payments require a payment split", "", "")
		}
		combo = *req.Combo
		if err := o.settleCombo(customerID, total, combo, txnNumber, req.BranchID); err != nil {
			return nil, err
		}
	}

	transaction := models.Transaction{
		ID:                id,
		TransactionNumber: txnNumber,
		ReceiptNumber:     receiptNumber,
		BranchID:          req.BranchID,
		CustomerID:        customerID,
		CustomerEmail:     req.CustomerEmail,
		BarberID:          req.BarberID,
		Subtotal:          subtotal,
		DiscountAmount:    req.DiscountAmount,
		TaxAmount:         req.TaxAmount,
		TotalAmount:       total,
		PaymentMethod:     req.PaymentMethod,
		PaymentStatus:     models.PaymentStatusCompleted,
		PointsRedeemed:    combo.PointsToRedeem,
		WalletUsed:        combo.WalletToUse,
		CashCollected:     combo.CashToCollect,
		VoucherCode:       req.VoucherCode,
		ProcessedBy:       req.ProcessedBy,
		Notes:             req.Notes,
		Services:          serviceLines,
		Products:          productLines,
	}
	if req.PaymentMethod == models.PaymentMethodWallet {
		transaction.WalletUsed = total
	}
	if req.PaymentMethod == models.PaymentMethodCash {
		transaction.CashCollected = total
	}

	if err := o.DB.Create(&transaction).Error; err != nil {
		// The instrument was already charged; surface the failure loudly.
		log.Printf("[SETTLEMENT] RECONCILE: transaction commit failed after settlement: reference=%s err=%v", txnNumber, err)
		return nil, err
	}

	report := o.runSideEffects(&transaction, req, customerID)
	for _, task := range report.Tasks {
		if !task.Ok {
			log.Printf("[SETTLEMENT] %s: task %s failed: %s", txnNumber, task.Name, task.Err)
		}
	}

	return &Result{
		TransactionID:     transaction.ID,
		TransactionNumber: txnNumber,
		ReceiptNumber:     receiptNumber,
		Report:            report,
	}, nil
}

// resolveCustomer prefers the explicit id and falls back to email lookup.
// An unknown email is not an error: the sale proceeds as a walk-in.
func (o *Orchestrator) resolveCustomer(customerID *uuid.UUID, email string) (*uuid.UUID, error) {
	if customerID != nil {
		var customer models.User
		if err := o.DB.First(&customer, "id = ?", *customerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, utils.NewAppError(utils.CodeNotFound, "Customer not found", "", "")
			}
			return nil, err
		}
		return customerID, nil
	}
	if email != "" {
		var customer models.User
		if err := o.DB.Where("email = ?", email).First(&customer).Error; err == nil {
			return &customer.ID, nil
		}
	}
	return nil, nil
}

// buildLines resolves line items against the catalog and snapshots names
// and prices, returning the subtotal in storage format.
func (o *Orchestrator) buildLines(req Request) ([]models.TransactionService, []models.TransactionProduct, int64, error) {
	var subtotal int64

	serviceLines := make([]models.TransactionService, 0, len(req.Services))
	for _, line := range req.Services {
		var service models.Service
		if err := o.DB.First(&service, "id = ?", line.ServiceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, 0, utils.NewAppError(utils.CodeNotFound,
					"Service not found", line.ServiceID.String(), "")
			}
			return nil, nil, 0, err
		}
		barberID := line.BarberID
		if barberID == nil {
			barberID = req.BarberID
		}
		serviceLines = append(serviceLines, models.TransactionService{
			ServiceID:   service.ID,
			ServiceName: service.Name,
			BarberID:    barberID,
			Price:       service.Price,
		})
		subtotal += service.Price
	}

	productLines := make([]models.TransactionProduct, 0, len(req.Products))
	for _, line := range req.Products {
		if line.Quantity <= 0 {
			return nil, nil, 0, utils.NewAppError(utils.CodeValidationError,
				"Product quantity must be positive", "", "")
		}
		var product models.Product
		if err := o.DB.First(&product, "id = ?", line.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, 0, utils.NewAppError(utils.CodeNotFound,
					"Product not found", line.ProductID.String(), "")
			}
			return nil, nil, 0, err
		}
		productLines = append(productLines, models.TransactionProduct{
			ProductID:   product.ID,
			ProductName: product.Name,
			Price:       product.Price,
			Quantity:    line.Quantity,
		})
		subtotal += product.Price * int64(line.Quantity)
	}

	return serviceLines, productLines, subtotal, nil
}

// runSideEffects drives the post-commit task list. Each task has its own
// failure boundary; a failed task is logged and skipped.
func (o *Orchestrator) runSideEffects(transaction *models.Transaction, req Request, customerID *uuid.UUID) Report {
	var report Report
	var createdBookings []models.Booking

	report.run("booking", func() (string, error) {
		if req.SkipBooking || customerID == nil || len(transaction.Services) == 0 {
			return "skipped", nil
		}
		var err error
		createdBookings, err = o.createBookings(transaction, req, *customerID)
		return fmt.Sprintf("%d booking(s)", len(createdBookings)), err
	})

	report.run("inventory", func() (string, error) {
		if len(transaction.Products) == 0 {
			return "skipped", nil
		}
		return "", o.decrementInventory(transaction.Products)
	})

	report.run("voucher", func() (string, error) {
		if req.VoucherCode == "" {
			return "skipped", nil
		}
		if customerID == nil {
			log.Printf("[SETTLEMENT] %s: voucher %s presented but customer unresolvable, skipping redemption marking",
				transaction.TransactionNumber, req.VoucherCode)
			return "customer unresolvable, skipped", nil
		}
		resolution, err := o.Vouchers.MarkRedeemedForTransaction(req.VoucherCode, customerID)
		if err != nil {
			return "", err
		}
		assignmentID := resolution.Assignment.ID
		return "", o.DB.Model(transaction).Update("voucher_assignment_id", assignmentID).Error
	})

	report.run("notifications", func() (string, error) {
		if o.Notifier == nil {
			return "skipped", nil
		}
		o.dispatchNotifications(transaction, customerID, createdBookings)
		return "", nil
	})

	report.run("points", func() (string, error) {
		return o.earnPoints(transaction, customerID)
	})

	return report
}

func (o *Orchestrator) createBookings(transaction *models.Transaction, req Request, customerID uuid.UUID) ([]models.Booking, error) {
	date := req.BookingDate
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	var created []models.Booking
	for _, line := range transaction.Services {
		query := o.DB.Model(&models.Booking{}).
			Where("customer_id = ? AND service_id = ? AND date = ? AND status IN ?",
				customerID, line.ServiceID, date, models.NonTerminalBookingStatuses)
		if line.BarberID != nil {
			query = query.Where("barber_id = ?", *line.BarberID)
		} else {
			query = query.Where("barber_id IS NULL")
		}
		var existing int64
		if err := query.Count(&existing).Error; err != nil {
			return created, err
		}
		if existing > 0 {
			continue
		}

		transactionID := transaction.ID
		booking := models.Booking{
			CustomerID:    customerID,
			ServiceID:     line.ServiceID,
			BarberID:      line.BarberID,
			BranchID:      transaction.BranchID,
			Date:          date,
			Status:        models.BookingStatusConfirmed,
			TransactionID: &transactionID,
		}
		if err := o.DB.Create(&booking).Error; err != nil {
			return created, err
		}
		created = append(created, booking)
	}
	return created, nil
}

// decrementInventory clamps stock at zero and bumps the monthly sold
// counter, one locked row at a time.
func (o *Orchestrator) decrementInventory(lines []models.TransactionProduct) error {
	for _, line := range lines {
		err := o.DB.Transaction(func(tx *gorm.DB) error {
			var product models.Product
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&product, "id = ?", line.ProductID).Error; err != nil {
				return err
			}
			newStock := product.Stock - line.Quantity
			if newStock < 0 {
				newStock = 0
			}
			return tx.Model(&product).Updates(map[string]interface{}{
				"stock":           newStock,
				"sold_this_month": product.SoldThisMonth + line.Quantity,
			}).Error
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) dispatchNotifications(transaction *models.Transaction, customerID *uuid.UUID, bookings []models.Booking) {
	meta := models.NotificationMetadata{
		TransactionID: transaction.ID.String(),
		ReceiptNumber: transaction.ReceiptNumber,
		Amount:        ledger.ToFloat(transaction.TotalAmount),
	}

	// Customer notifications ride on the booking: without one there is no
	// visit to talk about.
	if customerID != nil && len(bookings) > 0 {
		bookingMeta := meta
		bookingMeta.BookingID = bookings[0].ID.String()
		bookingMeta.BookingCode = bookings[0].BookingCode
		o.Notifier.Send(*customerID, models.NotificationBookingCreated,
			"Booking confirmed",
			fmt.Sprintf("Your visit is booked for %s. Receipt %s.", bookings[0].Date, transaction.ReceiptNumber),
			bookingMeta)
	}

	branchID := transaction.BranchID
	o.Notifier.SendToRole("branch_admin", &branchID, models.NotificationTransactionCompleted,
		"Sale completed",
		fmt.Sprintf("Transaction %s settled for %s.", transaction.TransactionNumber,
			ledger.FromStorage(transaction.TotalAmount)),
		meta)
}

// earnPoints credits loyalty points for the sale. The kill switch and the
// rates are read at call time. Combo payments earn on the cash and wallet
// portions only — the points-redeemed portion earns nothing, so points can
// never be laundered into more points. The transaction number is the
// idempotency key, making a retried settlement safe.
func (o *Orchestrator) earnPoints(transaction *models.Transaction, customerID *uuid.UUID) (string, error) {
	if customerID == nil {
		return "skipped, no customer", nil
	}

	rates := ledger.ResolveRates(ledger.LoadConfigSnapshot(o.DB))
	if !rates.PointsEnabled {
		return "skipped, points disabled", nil
	}

	var earned int64
	switch transaction.PaymentMethod {
	case models.PaymentMethodCombo:
		earned = ledger.EarnedAtRate(transaction.CashCollected, rates.BaseEarningRate) +
			ledger.EarnedAtRate(transaction.WalletUsed, rates.WalletBonusMultiplier)
	case models.PaymentMethodWallet:
		earned = ledger.EarnedAtRate(transaction.TotalAmount, rates.WalletBonusMultiplier)
	default:
		earned = ledger.EarnedAtRate(transaction.TotalAmount, rates.BaseEarningRate)
	}
	if earned <= 0 {
		return "nothing to credit", nil
	}

	branchID := transaction.BranchID
	_, err := o.Points.Earn(ledger.EarnParams{
		UserID:     *customerID,
		Amount:     earned,
		SourceType: "payment",
		SourceID:   transaction.TransactionNumber,
		BranchID:   &branchID,
		Notes:      "Earned at point of sale",
	})
	if err != nil {
		return "", err
	}
	if err := o.DB.Model(transaction).Update("points_earned", earned).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("credited %s points", ledger.FromStorage(earned)), nil
}
