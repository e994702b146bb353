/**
 * @description
 * Position database model: one row per (user, vault) holding the running
 * share balance and average-cost basis. Mutated only by the ingestion task.
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

// Position represents a user's holding in a single vault.
// Invariant: ShareBalance >= 0 and CostBasis >= 0 at all times; ingestion
// clamps to zero on rounding underflow rather than going negative.
type Position struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserAddress string `gorm:"column:user_address;not null;uniqueIndex:idx_positions_user_vault" json:"user_address"`
	VaultID     string `gorm:"column:vault_id;not null;uniqueIndex:idx_positions_user_vault;index" json:"vault_id"`

	ShareBalance decimal.Decimal `gorm:"column:share_balance;type:numeric(30,10);not null;default:0" json:"share_balance"`
	CostBasis    decimal.Decimal `gorm:"column:cost_basis;type:numeric(30,10);not null;default:0" json:"cost_basis"`

	FirstDepositAt *time.Time `gorm:"column:first_deposit_at;type:timestamptz" json:"first_deposit_at"`
	LastActivityAt *time.Time `gorm:"column:last_activity_at;type:timestamptz" json:"last_activity_at"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz;autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by Position to `positions`
func (Position) TableName() string {
	return "positions"
}
