/**
 * @description
 * Closed enum types for the string-encoded columns at the store boundary.
 * The database stores free-form strings; these types give the core an
 * exhaustive mapping and reject unknown values with an error instead of
 * panicking on bad rows.
 *
 * @dependencies
 * - standard "fmt"
 */

package models

import "fmt"

// TransactionType classifies a ledger transaction row.
type TransactionType string

const (
	TransactionTypeDeposit  TransactionType = "deposit"
	TransactionTypeWithdraw TransactionType = "withdraw"
	TransactionTypeTransfer TransactionType = "transfer"
	TransactionTypeClaim    TransactionType = "claim"
)

// ParseTransactionType maps a stored string to the enum, rejecting unknowns.
func ParseTransactionType(s string) (TransactionType, error) {
	switch TransactionType(s) {
	case TransactionTypeDeposit, TransactionTypeWithdraw, TransactionTypeTransfer, TransactionTypeClaim:
		return TransactionType(s), nil
	default:
		return "", fmt.Errorf("unknown transaction type: %q", s)
	}
}

func (t TransactionType) String() string { return string(t) }

// TransactionStatus is the lifecycle state of a transaction row.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusConfirmed TransactionStatus = "confirmed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// ParseTransactionStatus maps a stored string to the enum, rejecting unknowns.
func ParseTransactionStatus(s string) (TransactionStatus, error) {
	switch TransactionStatus(s) {
	case TransactionStatusPending, TransactionStatusConfirmed, TransactionStatusFailed, TransactionStatusCancelled:
		return TransactionStatus(s), nil
	default:
		return "", fmt.Errorf("unknown transaction status: %q", s)
	}
}

func (s TransactionStatus) String() string { return string(s) }

// IndexerStatus is the persisted state of a vault's ingestion cursor.
type IndexerStatus string

const (
	IndexerStatusActive IndexerStatus = "active"
	IndexerStatusPaused IndexerStatus = "paused"
	IndexerStatusError  IndexerStatus = "error"
	IndexerStatusSynced IndexerStatus = "synced"
)

// ParseIndexerStatus maps a stored string to the enum, rejecting unknowns.
func ParseIndexerStatus(s string) (IndexerStatus, error) {
	switch IndexerStatus(s) {
	case IndexerStatusActive, IndexerStatusPaused, IndexerStatusError, IndexerStatusSynced:
		return IndexerStatus(s), nil
	default:
		return "", fmt.Errorf("unknown indexer status: %q", s)
	}
}

func (s IndexerStatus) String() string { return string(s) }
