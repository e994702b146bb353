/**
 * @description
 * Vault and User database models.
 * Vault rows are seeded by deployment configuration/migrations and are
 * read-only to the ingestion and analytics services. Users are created on
 * the first observed on-chain event referencing them.
 *
 * @dependencies
 * - gorm.io/gorm
 */

package models

import "time"

// Vault represents a yield-bearing vault contract tracked by the platform.
// Maps to the 'vaults' table.
type Vault struct {
	ID              string `gorm:"primaryKey;column:id" json:"id"`
	Name            string `gorm:"column:name" json:"name"`
	ContractAddress string `gorm:"column:contract_address;not null" json:"contract_address"`
	Chain           string `gorm:"column:chain;not null;default:ethereum" json:"chain"`
	StartBlock      int64  `gorm:"column:start_block;not null" json:"start_block"`
	// APIEndpoint is the vault operator's NAV API base URL, used by the
	// analytics worker to fetch the current share price.
	APIEndpoint string `gorm:"column:api_endpoint" json:"api_endpoint"`
	Live        bool   `gorm:"column:live;default:true" json:"live"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by Vault to `vaults`
func (Vault) TableName() string {
	return "vaults"
}

// User represents a depositor identified by on-chain address.
// Maps to the 'users' table.
type User struct {
	Address string `gorm:"primaryKey;column:address" json:"address"`
	Chain   string `gorm:"column:chain;not null" json:"chain"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName overrides the table name used by User to `users`
func (User) TableName() string {
	return "users"
}
