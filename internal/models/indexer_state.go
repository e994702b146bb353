/**
 * @description
 * IndexerState database model: one row per vault, the sole source of truth
 * for ingestion resumption. last_processed_block is monotonically
 * non-decreasing across successful cycles and may be replayed after an error.
 *
 * @dependencies
 * - gorm.io/gorm
 */

package models

import "time"

// IndexerState persists the ingestion cursor and status for one vault.
// Maps to the 'indexer_states' table.
type IndexerState struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	VaultID string `gorm:"column:vault_id;not null;uniqueIndex" json:"vault_id"`

	LastProcessedBlock     int64      `gorm:"column:last_processed_block;not null;default:0" json:"last_processed_block"`
	LastProcessedTimestamp *time.Time `gorm:"column:last_processed_timestamp;type:timestamptz" json:"last_processed_timestamp"`

	Status      IndexerStatus `gorm:"column:status;type:varchar(20);not null;default:'active'" json:"status"`
	LastError   *string       `gorm:"column:last_error" json:"last_error"`
	LastErrorAt *time.Time    `gorm:"column:last_error_at;type:timestamptz" json:"last_error_at"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz;autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by IndexerState to `indexer_states`
func (IndexerState) TableName() string {
	return "indexer_states"
}

// IsError reports whether the previous run died recording a failure.
func (s *IndexerState) IsError() bool {
	return s.Status == IndexerStatusError
}

// IsSynced reports whether the vault has reached the chain tip.
func (s *IndexerState) IsSynced() bool {
	return s.Status == IndexerStatusSynced
}
