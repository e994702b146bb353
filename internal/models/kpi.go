/**
 * @description
 * Derived analytics models written by the batch analytics worker and never
 * mutated by ingestion: Kpi (per-user-per-vault performance figures, one row
 * per run) and PortfolioHistory (append-only portfolio value snapshots, the
 * input to the risk metrics engine).
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/shopspring/decimal
 */

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kpi is a per-user, per-vault performance record. The analytics worker
// appends one row per run; the latest row is the current KPI set.
type Kpi struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserAddress string `gorm:"column:user_address;not null;index:idx_kpis_user_vault" json:"user_address"`
	VaultID     string `gorm:"column:vault_id;not null;index:idx_kpis_user_vault" json:"vault_id"`

	AllTimePnl    decimal.Decimal `gorm:"column:all_time_pnl;type:numeric(30,10);not null;default:0" json:"all_time_pnl"`
	UnrealizedPnl decimal.Decimal `gorm:"column:unrealized_pnl;type:numeric(30,10);not null;default:0" json:"unrealized_pnl"`
	RealizedPnl   decimal.Decimal `gorm:"column:realized_pnl;type:numeric(30,10);not null;default:0" json:"realized_pnl"`

	MaxDrawdownPct decimal.Decimal `gorm:"column:max_drawdown_pct;type:numeric(20,10);not null;default:0" json:"max_drawdown_pct"`
	SharpeRatio    decimal.Decimal `gorm:"column:sharpe_ratio;type:numeric(20,10);not null;default:0" json:"sharpe_ratio"`
	SortinoRatio   decimal.Decimal `gorm:"column:sortino_ratio;type:numeric(20,10);not null;default:0" json:"sortino_ratio"`

	TotalDeposits    decimal.Decimal `gorm:"column:total_deposits;type:numeric(30,10);not null;default:0" json:"total_deposits"`
	TotalWithdrawals decimal.Decimal `gorm:"column:total_withdrawals;type:numeric(30,10);not null;default:0" json:"total_withdrawals"`

	SharePriceUsed decimal.Decimal `gorm:"column:share_price_used;type:numeric(20,10);not null;default:0" json:"share_price_used"`
	ShareBalance   decimal.Decimal `gorm:"column:share_balance;type:numeric(30,10);not null;default:0" json:"share_balance"`

	CalculatedAt time.Time `gorm:"column:calculated_at;type:timestamptz;not null;index" json:"calculated_at"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamptz;autoCreateTime" json:"created_at"`
}

// TableName overrides the table name used by Kpi to `kpis`
func (Kpi) TableName() string {
	return "kpis"
}

// PortfolioHistory is one snapshot of a user's portfolio value in a vault.
// Append-only; rows are never updated.
type PortfolioHistory struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserAddress string `gorm:"column:user_address;not null;index:idx_portfolio_history_user_vault" json:"user_address"`
	VaultID     string `gorm:"column:vault_id;not null;index:idx_portfolio_history_user_vault" json:"vault_id"`

	PortfolioValue decimal.Decimal `gorm:"column:portfolio_value;type:numeric(30,10);not null;default:0" json:"portfolio_value"`
	ShareBalance   decimal.Decimal `gorm:"column:share_balance;type:numeric(30,10);not null;default:0" json:"share_balance"`
	SharePrice     decimal.Decimal `gorm:"column:share_price;type:numeric(20,10);not null;default:0" json:"share_price"`

	CalculatedAt time.Time `gorm:"column:calculated_at;type:timestamptz;not null;index" json:"calculated_at"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamptz;autoCreateTime" json:"created_at"`
}

// TableName overrides the table name used by PortfolioHistory to `portfolio_history`
func (PortfolioHistory) TableName() string {
	return "portfolio_history"
}
