/**
 * @description
 * Transaction database model: the per-event ledger rows. The on-chain
 * transaction hash is the idempotency key — an ingestion run never creates
 * two rows for the same hash.
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/shopspring/decimal
 * - github.com/google/uuid
 */

package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Metadata is an opaque key/value bag stored as JSONB. For withdraw rows it
// carries the redeem identifier, epoch, and receiver from the request event.
type Metadata map[string]string

// Scan implements the sql.Scanner interface
func (m *Metadata) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return errors.New("type assertion failed for Metadata")
	}
}

// Value implements the driver.Valuer interface
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Transaction represents a single ledger mutation derived from a vault event.
// Maps to the 'transactions' table.
type Transaction struct {
	ID          uuid.UUID `gorm:"primaryKey;column:id;type:uuid" json:"id"`
	TxHash      string    `gorm:"column:tx_hash;not null;uniqueIndex" json:"tx_hash"`
	VaultID     string    `gorm:"column:vault_id;not null;index:idx_transactions_vault_user" json:"vault_id"`
	UserAddress string    `gorm:"column:user_address;not null;index:idx_transactions_vault_user" json:"user_address"`

	Type   TransactionType   `gorm:"column:type;type:varchar(20);not null" json:"type"`
	Status TransactionStatus `gorm:"column:status;type:varchar(20);not null" json:"status"`

	Amount       decimal.Decimal  `gorm:"column:amount;type:numeric(30,10);not null;default:0" json:"amount"`
	SharesAmount *decimal.Decimal `gorm:"column:shares_amount;type:numeric(30,10)" json:"shares_amount"`
	SharePrice   *decimal.Decimal `gorm:"column:share_price;type:numeric(20,10)" json:"share_price"`

	// RedeemID is extracted from Metadata into an indexed column so claims
	// resolve their pending withdraw with a single keyed lookup instead of a
	// linear metadata scan.
	RedeemID *string  `gorm:"column:redeem_id;index" json:"redeem_id"`
	Metadata Metadata `gorm:"column:metadata;type:jsonb" json:"metadata"`

	BlockNumber    int64     `gorm:"column:block_number;not null" json:"block_number"`
	BlockTimestamp time.Time `gorm:"column:block_timestamp;type:timestamptz;not null;index" json:"block_timestamp"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz;autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by Transaction to `transactions`
func (Transaction) TableName() string {
	return "transactions"
}

// BeforeCreate assigns the row id when the caller didn't.
func (t *Transaction) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
