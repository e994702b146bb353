/**
 * @description
 * Per-user KPI assembly: combines the cost-basis replay with the current
 * share price and the snapshot history's risk metrics into one Kpi record.
 *
 * @dependencies
 * - github.com/shopspring/decimal
 * - internal/models
 */

package kpi

import (
	"fmt"
	"time"

	"github.com/halcyon-vaults/backend/internal/models"
	"github.com/shopspring/decimal"
)

// ComputeUserKpis builds the full KPI record for one (user, vault) from the
// user's confirmed transaction history, the current share balance and price,
// and the portfolio value snapshot series (oldest first, including today's
// snapshot).
func ComputeUserKpis(
	userAddress, vaultID string,
	txs []models.Transaction,
	series []models.PortfolioHistory,
	shareBalance, sharePrice decimal.Decimal,
	riskFreeRate float64,
	now time.Time,
) (*models.Kpi, error) {
	if !sharePrice.IsPositive() {
		return nil, validationErrorf("share price %s must be positive", sharePrice)
	}
	if shareBalance.IsNegative() {
		return nil, validationErrorf("share balance %s must not be negative", shareBalance)
	}

	// A fully-exited position has no open lot; every figure is zero rather
	// than the negative of the released basis.
	if shareBalance.IsZero() {
		return &models.Kpi{
			UserAddress:    userAddress,
			VaultID:        vaultID,
			SharePriceUsed: sharePrice,
			CalculatedAt:   now,
		}, nil
	}

	basis, err := ComputeCostBasis(txs)
	if err != nil {
		return nil, fmt.Errorf("cost basis replay failed: %w", err)
	}

	currentValue := shareBalance.Mul(sharePrice)
	unrealized := currentValue.Sub(basis.Basis)
	allTime := unrealized.Add(basis.RealizedPnl)

	values := make([]decimal.Decimal, len(series))
	for i, point := range series {
		values[i] = point.PortfolioValue
	}

	maxDrawdown, err := MaxDrawdownPct(values)
	if err != nil {
		return nil, fmt.Errorf("max drawdown failed: %w", err)
	}
	sharpe, err := SharpeRatio(values, riskFreeRate)
	if err != nil {
		return nil, fmt.Errorf("sharpe ratio failed: %w", err)
	}
	sortino, err := SortinoRatio(values, riskFreeRate)
	if err != nil {
		return nil, fmt.Errorf("sortino ratio failed: %w", err)
	}

	return &models.Kpi{
		UserAddress:      userAddress,
		VaultID:          vaultID,
		AllTimePnl:       allTime,
		UnrealizedPnl:    unrealized,
		RealizedPnl:      basis.RealizedPnl,
		MaxDrawdownPct:   maxDrawdown,
		SharpeRatio:      sharpe,
		SortinoRatio:     sortino,
		TotalDeposits:    basis.TotalDeposits,
		TotalWithdrawals: basis.TotalWithdrawals,
		SharePriceUsed:   sharePrice,
		ShareBalance:     shareBalance,
		CalculatedAt:     now,
	}, nil
}
