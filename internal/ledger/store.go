/**
 * @description
 * Ledger Store: every read/write the ingestion and analytics services issue
 * against Postgres. Ingestion mutates positions/transactions/indexer state;
 * analytics reads the ledger and writes derived KPI and portfolio-history
 * rows — the two write sets are disjoint by construction.
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/shopspring/decimal
 * - github.com/google/uuid
 */

package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/halcyon-vaults/backend/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	DB *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// --- Vaults ---

// LiveVaults returns all vaults currently tracked by the platform.
func (s *Store) LiveVaults(ctx context.Context) ([]models.Vault, error) {
	var vaults []models.Vault
	err := s.DB.WithContext(ctx).Where("live = ?", true).Order("id").Find(&vaults).Error
	return vaults, err
}

// FindVault looks a vault up by id.
func (s *Store) FindVault(ctx context.Context, vaultID string) (*models.Vault, error) {
	var vault models.Vault
	if err := s.DB.WithContext(ctx).First(&vault, "id = ?", vaultID).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &vault, nil
}

// --- Users ---

// FindOrCreateUser ensures a user row exists for the given address.
func (s *Store) FindOrCreateUser(ctx context.Context, address, chain string) error {
	user := models.User{Address: address, Chain: chain}
	return s.DB.WithContext(ctx).
		Where(models.User{Address: address}).
		FirstOrCreate(&user).Error
}

// --- Transactions ---

// TransactionExistsByHash reports whether a ledger row already carries the
// given on-chain transaction hash.
func (s *Store) TransactionExistsByHash(ctx context.Context, txHash string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("tx_hash = ?", txHash).
		Count(&count).Error
	return count > 0, err
}

// CreateTransaction inserts a new ledger row. A unique violation on tx_hash
// surfaces as-is; callers treat it as a duplicate via IsUniqueViolation.
func (s *Store) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	return s.DB.WithContext(ctx).Create(tx).Error
}

// FindPendingRedeem locates the pending withdraw row a claim settles,
// keyed by the indexed redeem_id column.
func (s *Store) FindPendingRedeem(ctx context.Context, userAddress, vaultID, redeemID string) (*models.Transaction, error) {
	var tx models.Transaction
	err := s.DB.WithContext(ctx).
		Where("user_address = ?", userAddress).
		Where("vault_id = ?", vaultID).
		Where("type = ?", models.TransactionTypeWithdraw).
		Where("status = ?", models.TransactionStatusPending).
		Where("redeem_id = ?", redeemID).
		First(&tx).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &tx, nil
}

// ConfirmRedeem transitions a pending withdraw to confirmed, overwriting its
// amount with the actually-claimed assets and its hash with the claim's hash.
func (s *Store) ConfirmRedeem(ctx context.Context, id uuid.UUID, amount decimal.Decimal, txHash string) error {
	return s.DB.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":  models.TransactionStatusConfirmed,
			"amount":  amount,
			"tx_hash": txHash,
		}).Error
}

// ConfirmedTransactionsChronological returns a user's confirmed transactions
// for a vault, oldest first — the cost-basis engine's required input order.
func (s *Store) ConfirmedTransactionsChronological(ctx context.Context, userAddress, vaultID string) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.DB.WithContext(ctx).
		Where("user_address = ?", userAddress).
		Where("vault_id = ?", vaultID).
		Where("status = ?", models.TransactionStatusConfirmed).
		Order("block_timestamp ASC, block_number ASC").
		Find(&txs).Error
	return txs, err
}

// TransactionsByUser is the cursor-paginated transaction history read
// accessor consumed by the API layer. A nil cursor starts from the newest
// (descending) or oldest (ascending) row.
func (s *Store) TransactionsByUser(ctx context.Context, userAddress, vaultID string, cursor *time.Time, limit int, ascending bool) ([]models.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := s.DB.WithContext(ctx).
		Where("user_address = ?", userAddress).
		Where("vault_id = ?", vaultID).
		Limit(limit)

	if ascending {
		if cursor != nil {
			q = q.Where("block_timestamp > ?", *cursor)
		}
		q = q.Order("block_timestamp ASC, block_number ASC")
	} else {
		if cursor != nil {
			q = q.Where("block_timestamp < ?", *cursor)
		}
		q = q.Order("block_timestamp DESC, block_number DESC")
	}

	var txs []models.Transaction
	err := q.Find(&txs).Error
	return txs, err
}

// --- Positions ---

// FindPosition looks up the (user, vault) position row.
func (s *Store) FindPosition(ctx context.Context, userAddress, vaultID string) (*models.Position, error) {
	var pos models.Position
	err := s.DB.WithContext(ctx).
		Where("user_address = ? AND vault_id = ?", userAddress, vaultID).
		First(&pos).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &pos, nil
}

// CreatePosition inserts a fresh position row.
func (s *Store) CreatePosition(ctx context.Context, pos *models.Position) error {
	return s.DB.WithContext(ctx).Create(pos).Error
}

// SavePosition persists mutated balance/cost-basis fields on an existing row.
func (s *Store) SavePosition(ctx context.Context, pos *models.Position) error {
	return s.DB.WithContext(ctx).
		Model(&models.Position{}).
		Where("id = ?", pos.ID).
		Updates(map[string]interface{}{
			"share_balance":    pos.ShareBalance,
			"cost_basis":       pos.CostBasis,
			"first_deposit_at": pos.FirstDepositAt,
			"last_activity_at": pos.LastActivityAt,
		}).Error
}

// ActivePositionsByVault returns all open positions in a vault (the analytics
// worker's iteration set).
func (s *Store) ActivePositionsByVault(ctx context.Context, vaultID string) ([]models.Position, error) {
	var positions []models.Position
	err := s.DB.WithContext(ctx).
		Where("vault_id = ?", vaultID).
		Where("share_balance > 0").
		Order("user_address").
		Find(&positions).Error
	return positions, err
}

// --- Indexer state ---

// FindIndexerState returns the persisted cursor for a vault, also serving as
// the freshness/health read accessor for the API layer.
func (s *Store) FindIndexerState(ctx context.Context, vaultID string) (*models.IndexerState, error) {
	var state models.IndexerState
	err := s.DB.WithContext(ctx).Where("vault_id = ?", vaultID).First(&state).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &state, nil
}

// UpsertIndexerState creates or refreshes the cursor row for a vault with an
// explicit status (used on task start).
func (s *Store) UpsertIndexerState(ctx context.Context, vaultID string, block int64, ts *time.Time, status models.IndexerStatus) error {
	state := models.IndexerState{
		VaultID:                vaultID,
		LastProcessedBlock:     block,
		LastProcessedTimestamp: ts,
		Status:                 status,
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "vault_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"last_processed_block",
			"last_processed_timestamp",
			"status",
			"updated_at",
		}),
	}).Create(&state).Error
}

// UpdateIndexerCursor advances the cursor after a successfully handled event.
// A vault that already reached `synced` keeps that status; anything else
// becomes `active`.
func (s *Store) UpdateIndexerCursor(ctx context.Context, vaultID string, block int64, ts time.Time) error {
	return s.DB.WithContext(ctx).
		Model(&models.IndexerState{}).
		Where("vault_id = ?", vaultID).
		Updates(map[string]interface{}{
			"last_processed_block":     block,
			"last_processed_timestamp": ts,
			"status": gorm.Expr(
				"CASE WHEN status = ? THEN status ELSE ? END",
				models.IndexerStatusSynced, models.IndexerStatusActive,
			),
		}).Error
}

// MarkIndexerSynced flags a vault as having reached the chain tip.
func (s *Store) MarkIndexerSynced(ctx context.Context, vaultID string) error {
	return s.DB.WithContext(ctx).
		Model(&models.IndexerState{}).
		Where("vault_id = ?", vaultID).
		Update("status", models.IndexerStatusSynced).Error
}

// RecordIndexerError records a terminal failure for the current task
// instance. The next instance resumes from last_processed_block inclusive.
func (s *Store) RecordIndexerError(ctx context.Context, vaultID, message string) error {
	now := time.Now().UTC()
	return s.DB.WithContext(ctx).
		Model(&models.IndexerState{}).
		Where("vault_id = ?", vaultID).
		Updates(map[string]interface{}{
			"status":        models.IndexerStatusError,
			"last_error":    message,
			"last_error_at": now,
		}).Error
}

// --- Derived analytics ---

// InsertPortfolioSnapshot appends one portfolio-value observation.
func (s *Store) InsertPortfolioSnapshot(ctx context.Context, snapshot *models.PortfolioHistory) error {
	return s.DB.WithContext(ctx).Create(snapshot).Error
}

// PortfolioHistorySeries returns a user's snapshot series for a vault,
// oldest first — the risk metrics engine's required input order.
func (s *Store) PortfolioHistorySeries(ctx context.Context, userAddress, vaultID string) ([]models.PortfolioHistory, error) {
	var series []models.PortfolioHistory
	err := s.DB.WithContext(ctx).
		Where("user_address = ? AND vault_id = ?", userAddress, vaultID).
		Order("calculated_at ASC").
		Find(&series).Error
	return series, err
}

// CreateKpi appends a KPI record for this run.
func (s *Store) CreateKpi(ctx context.Context, kpi *models.Kpi) error {
	return s.DB.WithContext(ctx).Create(kpi).Error
}

// LatestKpi returns the most recent KPI row for a (user, vault) — the read
// accessor the API layer serves.
func (s *Store) LatestKpi(ctx context.Context, userAddress, vaultID string) (*models.Kpi, error) {
	var kpi models.Kpi
	err := s.DB.WithContext(ctx).
		Where("user_address = ? AND vault_id = ?", userAddress, vaultID).
		Order("calculated_at DESC").
		First(&kpi).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &kpi, nil
}
