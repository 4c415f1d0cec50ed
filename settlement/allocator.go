package settlement

import (
	"fmt"
	"log"

	"github.com/google/uuid"

	"barberops-backend/ledger"
	"barberops-backend/utils"
)

// ComboAllocation is the proposed three-way split of a payment, all values
// in x100 storage format. Points are peso-pegged, so the points portion
// contributes its stored value directly.
type ComboAllocation struct {
	PointsToRedeem int64 `json:"points_to_redeem"`
	WalletToUse    int64 `json:"wallet_to_use"`
	CashToCollect  int64 `json:"cash_to_collect"`
}

// comboSumTolerance is one stored unit (0.01 peso). The POS submits the
// split as floating peso amounts, so a one-centavo rounding drift is
// accepted rather than rejected. Intentionally a float-domain tolerance,
// not an integer invariant.
const comboSumTolerance = int64(1)

// validateComboSum rejects any split whose parts do not sum to the total.
// Runs before anything is touched; a mismatch settles nothing.
func validateComboSum(total int64, a ComboAllocation) error {
	if a.PointsToRedeem < 0 || a.WalletToUse < 0 || a.CashToCollect < 0 {
		return utils.NewAppError(utils.CodeValidationError,
			"Combo amounts cannot be negative", "", "")
	}
	diff := a.PointsToRedeem + a.WalletToUse + a.CashToCollect - total
	if diff < 0 {
		diff = -diff
	}
	if diff > comboSumTolerance {
		return utils.NewAppError(utils.CodeComboMismatch,
			"Combo split does not add up to the total",
			fmt.Sprintf("points %s + wallet %s + cash %s != total %s",
				ledger.FromStorage(a.PointsToRedeem), ledger.FromStorage(a.WalletToUse),
				ledger.FromStorage(a.CashToCollect), ledger.FromStorage(total)),
			"Re-enter the payment split")
	}
	return nil
}

// settleCombo applies the split in the fixed order points -> wallet ->
// cash. Each step gates the next; the cash portion is data only, collected
// physically by staff. If the wallet debit fails after points were already
// redeemed there is no compensating credit — the redemption stands and the
// failure is logged for manual reconciliation.
func (o *Orchestrator) settleCombo(customerID *uuid.UUID, total int64, a ComboAllocation, referenceID string, branchID uuid.UUID) error {
	if err := validateComboSum(total, a); err != nil {
		return err
	}
	if (a.PointsToRedeem > 0 || a.WalletToUse > 0) && customerID == nil {
		return utils.NewAppError(utils.CodeValidationError,
			"Points and wallet payments require a customer account", "", "")
	}

	if a.PointsToRedeem > 0 {
		_, err := o.Points.Redeem(ledgerRedeem(*customerID, a.PointsToRedeem, referenceID, branchID))
		if err != nil {
			return err
		}
	}

	if a.WalletToUse > 0 {
		_, err := o.Wallets.Debit(*customerID, a.WalletToUse, referenceID, "Combo payment")
		if err != nil {
			if a.PointsToRedeem > 0 {
				log.Printf("[SETTLEMENT] RECONCILE: wallet debit failed after points redemption: customer=%s reference=%s points=%d err=%v",
					*customerID, referenceID, a.PointsToRedeem, err)
			}
			return err
		}
	}

	return nil
}
