/**
 * @description
 * Cost-basis and realized-PnL engine. Folds a user's confirmed transactions
 * for one vault, oldest first, into a running average-cost lot: deposits add
 * shares and basis, withdrawals release basis at the average entry cost and
 * realize the difference against the assets actually received. Only confirmed
 * rows move the lot; pending withdraws and withdrawals against an empty lot
 * are passed over.
 *
 * @dependencies
 * - github.com/shopspring/decimal
 * - internal/models
 */

package kpi

import (
	"fmt"

	"github.com/halcyon-vaults/backend/internal/models"
	"github.com/shopspring/decimal"
)

// ValidationError marks ledger history that fails replay invariants
// (negative amounts, overdrawn withdrawals, unknown types). Callers match it
// with errors.As to distinguish corrupt data from transient store failures.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// CostBasis is the result of replaying a user's confirmed history.
type CostBasis struct {
	ShareBalance     decimal.Decimal
	Basis            decimal.Decimal
	RealizedPnl      decimal.Decimal
	TotalDeposits    decimal.Decimal
	TotalWithdrawals decimal.Decimal
}

// ComputeCostBasis replays the given transactions in chronological order.
// Non-confirmed rows and withdrawals while nothing is held are skipped.
// Malformed history (negative amounts, a withdrawal overdrawing a non-empty
// balance) is a hard error: it means the ledger is corrupt, and silently
// producing numbers from it would be worse than failing the user's KPI run.
func ComputeCostBasis(txs []models.Transaction) (*CostBasis, error) {
	result := &CostBasis{
		ShareBalance:     decimal.Zero,
		Basis:            decimal.Zero,
		RealizedPnl:      decimal.Zero,
		TotalDeposits:    decimal.Zero,
		TotalWithdrawals: decimal.Zero,
	}

	for _, tx := range txs {
		// Only settled history moves the lot; a pending withdraw's assets
		// are not final until its claim lands.
		if tx.Status != models.TransactionStatusConfirmed {
			continue
		}
		if tx.Amount.IsNegative() {
			return nil, validationErrorf("transaction %s has negative amount %s", tx.TxHash, tx.Amount)
		}
		shares := decimal.Zero
		if tx.SharesAmount != nil {
			shares = *tx.SharesAmount
		}
		if shares.IsNegative() {
			return nil, validationErrorf("transaction %s has negative shares %s", tx.TxHash, shares)
		}

		switch tx.Type {
		case models.TransactionTypeDeposit:
			result.ShareBalance = result.ShareBalance.Add(shares)
			result.Basis = result.Basis.Add(tx.Amount)
			result.TotalDeposits = result.TotalDeposits.Add(tx.Amount)

		case models.TransactionTypeWithdraw, models.TransactionTypeClaim:
			// Nothing held means nothing to release; skip rather than fail.
			if !result.ShareBalance.IsPositive() {
				continue
			}
			if shares.GreaterThan(result.ShareBalance) {
				return nil, validationErrorf("transaction %s withdraws %s shares but only %s held",
					tx.TxHash, shares, result.ShareBalance)
			}
			result.TotalWithdrawals = result.TotalWithdrawals.Add(tx.Amount)

			// Release basis at the average entry cost of the current lot.
			avgCost := result.Basis.Div(result.ShareBalance)
			released := avgCost.Mul(shares)
			result.RealizedPnl = result.RealizedPnl.Add(tx.Amount.Sub(released))
			result.Basis = result.Basis.Sub(released)
			result.ShareBalance = result.ShareBalance.Sub(shares)

			// Division rounding can leave dust below zero; clamp it.
			if result.Basis.IsNegative() {
				result.Basis = decimal.Zero
			}
			if result.ShareBalance.IsNegative() {
				result.ShareBalance = decimal.Zero
			}

		case models.TransactionTypeTransfer:
			// Transfers move shares between addresses without an asset leg and
			// carry no basis information; they do not move the lot.

		default:
			return nil, validationErrorf("transaction %s has unknown type %q", tx.TxHash, tx.Type)
		}
	}

	return result, nil
}
