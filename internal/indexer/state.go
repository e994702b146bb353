/**
 * @description
 * Per-vault indexer state machine backing crash recovery. The persisted
 * IndexerState row is the sole source of truth for resumption:
 *   - no row             -> start from the vault's configured start block
 *   - previous run error -> replay last_processed_block (inclusive); replays
 *                           are safe because ledger writes dedup on tx_hash
 *   - clean previous run -> resume from last_processed_block + 1
 *
 * @dependencies
 * - internal/ledger (ErrNotFound sentinel)
 * - internal/models
 */

package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/halcyon-vaults/backend/internal/ledger"
	"github.com/halcyon-vaults/backend/internal/logger"
	"github.com/halcyon-vaults/backend/internal/models"
)

// StateStore is the slice of the ledger store the state machine needs.
type StateStore interface {
	FindIndexerState(ctx context.Context, vaultID string) (*models.IndexerState, error)
	UpsertIndexerState(ctx context.Context, vaultID string, block int64, ts *time.Time, status models.IndexerStatus) error
	UpdateIndexerCursor(ctx context.Context, vaultID string, block int64, ts time.Time) error
	MarkIndexerSynced(ctx context.Context, vaultID string) error
	RecordIndexerError(ctx context.Context, vaultID, message string) error
}

// VaultState tracks the in-memory cursor for one vault's ingestion task and
// mirrors every advance into the store.
type VaultState struct {
	VaultID          string
	CurrentBlock     uint64
	CurrentTimestamp *time.Time

	store StateStore
}

func NewVaultState(vaultID string, startBlock uint64, store StateStore) *VaultState {
	return &VaultState{
		VaultID:      vaultID,
		CurrentBlock: startBlock,
		store:        store,
	}
}

// Load reads the persisted cursor and decides the resume block.
func (s *VaultState) Load(ctx context.Context) error {
	state, err := s.store.FindIndexerState(ctx, s.VaultID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			logger.Info("[VaultState(%s)] 🆕 No previous state found, starting from block %d", s.VaultID, s.CurrentBlock)
			return nil
		}
		return fmt.Errorf("failed to load indexer state: %w", err)
	}

	if state.IsError() {
		// Replay the failed block; tx_hash dedup makes the replay idempotent.
		s.CurrentBlock = uint64(state.LastProcessedBlock)
		lastError := "unknown error"
		if state.LastError != nil {
			lastError = *state.LastError
		}
		logger.Error("[VaultState(%s)] ⚠️ Previous error detected, retrying from block %d (last error: %s)", s.VaultID, s.CurrentBlock, lastError)
	} else {
		s.CurrentBlock = uint64(state.LastProcessedBlock) + 1
		logger.Info("[VaultState(%s)] 📍 Resuming from block %d (last processed: %d)", s.VaultID, s.CurrentBlock, state.LastProcessedBlock)
	}

	return nil
}

// Initialize upserts the state row at the resume block with status active.
func (s *VaultState) Initialize(ctx context.Context) error {
	if err := s.store.UpsertIndexerState(ctx, s.VaultID, int64(s.CurrentBlock), nil, models.IndexerStatusActive); err != nil {
		return fmt.Errorf("failed to initialize indexer state: %w", err)
	}
	return nil
}

// Advance records a successfully handled event's block. The store preserves
// `synced` status; anything else becomes `active`.
func (s *VaultState) Advance(ctx context.Context, block uint64, ts time.Time) error {
	if err := s.store.UpdateIndexerCursor(ctx, s.VaultID, int64(block), ts); err != nil {
		return fmt.Errorf("failed to advance indexer cursor: %w", err)
	}
	s.CurrentBlock = block
	s.CurrentTimestamp = &ts
	return nil
}

// MarkSynced flags that the vault reached the chain tip.
func (s *VaultState) MarkSynced(ctx context.Context) error {
	if err := s.store.MarkIndexerSynced(ctx, s.VaultID); err != nil {
		return fmt.Errorf("failed to mark indexer synced: %w", err)
	}
	return nil
}

// RecordError persists a terminal failure for this task instance.
func (s *VaultState) RecordError(ctx context.Context, message string) error {
	if err := s.store.RecordIndexerError(ctx, s.VaultID, message); err != nil {
		return fmt.Errorf("failed to record indexer error: %w", err)
	}
	return nil
}
