/**
 * @description
 * Per-vault ingestion task. Consumes the vault's ordered event stream and
 * applies each event to the ledger: Deposit and RedeemRequested append
 * transaction rows and mutate the position, RedeemClaimed settles the pending
 * withdraw it references, Report and BringLiquidity are acknowledged without a
 * ledger write. The on-chain tx hash dedups replays, so a task restarted after
 * a crash can safely re-handle the block it died on.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum/common
 * - github.com/shopspring/decimal
 * - internal/chain, internal/ledger, internal/models
 */

package indexer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/halcyon-vaults/backend/internal/chain"
	"github.com/halcyon-vaults/backend/internal/ledger"
	"github.com/halcyon-vaults/backend/internal/logger"
	"github.com/halcyon-vaults/backend/internal/models"
)

// LedgerStore is everything the ingestion task needs from the ledger.
type LedgerStore interface {
	StateStore

	FindOrCreateUser(ctx context.Context, address, chain string) error
	TransactionExistsByHash(ctx context.Context, txHash string) (bool, error)
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	FindPendingRedeem(ctx context.Context, userAddress, vaultID, redeemID string) (*models.Transaction, error)
	ConfirmRedeem(ctx context.Context, id uuid.UUID, amount decimal.Decimal, txHash string) error
	FindPosition(ctx context.Context, userAddress, vaultID string) (*models.Position, error)
	CreatePosition(ctx context.Context, pos *models.Position) error
	SavePosition(ctx context.Context, pos *models.Position) error
}

// ChainReader resolves the underlying asset decimals used to scale raw
// on-chain integer amounts.
type ChainReader interface {
	UnderlyingAssetDecimals(ctx context.Context, vault common.Address, blockNumber uint64) (uint8, error)
}

// EventSource yields the ordered event feed for one vault starting at the
// given block. In production this is chain.Stream; tests swap in a fake.
type EventSource interface {
	Events(ctx context.Context, fromBlock uint64) <-chan chain.StreamOutput
}

// Task ingests one vault's events into the ledger.
type Task struct {
	vault  models.Vault
	addr   common.Address
	store  LedgerStore
	reader ChainReader
	source EventSource
}

func NewTask(vault models.Vault, store LedgerStore, reader ChainReader, source EventSource) *Task {
	return &Task{
		vault:  vault,
		addr:   common.HexToAddress(vault.ContractAddress),
		store:  store,
		reader: reader,
		source: source,
	}
}

// Name identifies the task in supervisor logs.
func (t *Task) Name() string {
	return t.vault.ID
}

// Run drives the ingestion loop until the context is cancelled or the stream
// reports a terminal error. Every failure is persisted to the indexer state
// row before Run returns, so the next instance resumes with replay semantics.
func (t *Task) Run(ctx context.Context) error {
	state := NewVaultState(t.vault.ID, uint64(t.vault.StartBlock), t.store)
	if err := state.Load(ctx); err != nil {
		return err
	}
	if err := state.Initialize(ctx); err != nil {
		return err
	}

	logger.Info("[Indexer(%s)] 🔌 Watching vault %s from block %d", t.vault.ID, t.vault.ContractAddress, state.CurrentBlock)

	events := t.source.Events(ctx, state.CurrentBlock)
	for out := range events {
		if out.Err != nil {
			if recordErr := state.RecordError(ctx, out.Err.Error()); recordErr != nil {
				logger.Error("[Indexer(%s)] ❌ Could not persist stream error: %v", t.vault.ID, recordErr)
			}
			return out.Err
		}

		if out.Synced {
			if err := state.MarkSynced(ctx); err != nil {
				logger.Error("[Indexer(%s)] ❌ Could not mark synced: %v", t.vault.ID, err)
			} else {
				logger.Info("[Indexer(%s)] ✅ Caught up with chain tip", t.vault.ID)
			}
			continue
		}

		if err := t.handleEvent(ctx, out.Event, out.Meta); err != nil {
			if recordErr := state.RecordError(ctx, err.Error()); recordErr != nil {
				logger.Error("[Indexer(%s)] ❌ Could not persist handler error: %v", t.vault.ID, recordErr)
			}
			return err
		}

		if err := state.Advance(ctx, out.Meta.BlockNumber, out.Meta.Timestamp); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("event stream for vault %s ended unexpectedly", t.vault.ID)
}

func (t *Task) handleEvent(ctx context.Context, event chain.VaultEvent, meta chain.EventMetadata) error {
	switch ev := event.(type) {
	case chain.DepositEvent:
		return t.handleDeposit(ctx, ev, meta)
	case chain.RedeemRequestedEvent:
		return t.handleRedeemRequested(ctx, ev, meta)
	case chain.RedeemClaimedEvent:
		return t.handleRedeemClaimed(ctx, ev, meta)
	case chain.ReportEvent, chain.BringLiquidityEvent:
		// Informational events: acknowledged so the cursor advances past them.
		return nil
	default:
		return fmt.Errorf("unhandled vault event %q", event.EventName())
	}
}

// scaledAmount converts a raw on-chain integer into decimal units using the
// vault's underlying asset decimals at the event's block.
func (t *Task) scaledAmount(ctx context.Context, raw *big.Int, meta chain.EventMetadata) (decimal.Decimal, error) {
	decimals, err := t.reader.UnderlyingAssetDecimals(ctx, t.addr, meta.BlockNumber)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to resolve asset decimals: %w", err)
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)), nil
}

func (t *Task) handleDeposit(ctx context.Context, ev chain.DepositEvent, meta chain.EventMetadata) error {
	userAddress := strings.ToLower(ev.Owner.Hex())
	if err := t.store.FindOrCreateUser(ctx, userAddress, t.vault.Chain); err != nil {
		return fmt.Errorf("failed to ensure user %s: %w", userAddress, err)
	}

	exists, err := t.store.TransactionExistsByHash(ctx, meta.TxHash)
	if err != nil {
		return fmt.Errorf("failed to check transaction %s: %w", meta.TxHash, err)
	}
	if exists {
		logger.Info("[Indexer(%s)] ⏭️ Skipping already-ingested deposit %s", t.vault.ID, meta.TxHash)
		return nil
	}

	assets, err := t.scaledAmount(ctx, ev.Assets, meta)
	if err != nil {
		return err
	}
	shares, err := t.scaledAmount(ctx, ev.Shares, meta)
	if err != nil {
		return err
	}

	var sharePrice *decimal.Decimal
	if shares.IsPositive() {
		p := assets.Div(shares)
		sharePrice = &p
	}

	tx := &models.Transaction{
		TxHash:         meta.TxHash,
		VaultID:        t.vault.ID,
		UserAddress:    userAddress,
		Type:           models.TransactionTypeDeposit,
		Status:         models.TransactionStatusConfirmed,
		Amount:         assets,
		SharesAmount:   &shares,
		SharePrice:     sharePrice,
		Metadata:       models.Metadata{"sender": strings.ToLower(ev.Sender.Hex())},
		BlockNumber:    int64(meta.BlockNumber),
		BlockTimestamp: meta.Timestamp,
	}
	if err := t.store.CreateTransaction(ctx, tx); err != nil {
		if ledger.IsUniqueViolation(err) {
			logger.Info("[Indexer(%s)] ⏭️ Deposit %s raced another writer, skipping", t.vault.ID, meta.TxHash)
			return nil
		}
		return fmt.Errorf("failed to record deposit %s: %w", meta.TxHash, err)
	}

	ts := meta.Timestamp
	pos, err := t.store.FindPosition(ctx, userAddress, t.vault.ID)
	if err != nil {
		if !errors.Is(err, ledger.ErrNotFound) {
			return fmt.Errorf("failed to load position for %s: %w", userAddress, err)
		}
		pos = &models.Position{
			UserAddress:    userAddress,
			VaultID:        t.vault.ID,
			ShareBalance:   shares,
			CostBasis:      assets,
			FirstDepositAt: &ts,
			LastActivityAt: &ts,
		}
		if err := t.store.CreatePosition(ctx, pos); err != nil {
			return fmt.Errorf("failed to create position for %s: %w", userAddress, err)
		}
		logger.Info("[Indexer(%s)] 💰 New position for %s: %s shares", t.vault.ID, userAddress, shares.String())
		return nil
	}

	pos.ShareBalance = pos.ShareBalance.Add(shares)
	pos.CostBasis = pos.CostBasis.Add(assets)
	if pos.FirstDepositAt == nil {
		pos.FirstDepositAt = &ts
	}
	pos.LastActivityAt = &ts
	if err := t.store.SavePosition(ctx, pos); err != nil {
		return fmt.Errorf("failed to update position for %s: %w", userAddress, err)
	}

	logger.Info("[Indexer(%s)] 💰 Deposit by %s: +%s assets, +%s shares", t.vault.ID, userAddress, assets.String(), shares.String())
	return nil
}

func (t *Task) handleRedeemRequested(ctx context.Context, ev chain.RedeemRequestedEvent, meta chain.EventMetadata) error {
	userAddress := strings.ToLower(ev.Owner.Hex())
	if err := t.store.FindOrCreateUser(ctx, userAddress, t.vault.Chain); err != nil {
		return fmt.Errorf("failed to ensure user %s: %w", userAddress, err)
	}

	exists, err := t.store.TransactionExistsByHash(ctx, meta.TxHash)
	if err != nil {
		return fmt.Errorf("failed to check transaction %s: %w", meta.TxHash, err)
	}
	if exists {
		logger.Info("[Indexer(%s)] ⏭️ Skipping already-ingested redeem request %s", t.vault.ID, meta.TxHash)
		return nil
	}

	assets, err := t.scaledAmount(ctx, ev.Assets, meta)
	if err != nil {
		return err
	}
	shares, err := t.scaledAmount(ctx, ev.Shares, meta)
	if err != nil {
		return err
	}

	var sharePrice *decimal.Decimal
	if shares.IsPositive() {
		p := assets.Div(shares)
		sharePrice = &p
	}

	redeemID := ev.ID.String()
	tx := &models.Transaction{
		TxHash:       meta.TxHash,
		VaultID:      t.vault.ID,
		UserAddress:  userAddress,
		Type:         models.TransactionTypeWithdraw,
		Status:       models.TransactionStatusPending,
		Amount:       assets,
		SharesAmount: &shares,
		SharePrice:   sharePrice,
		RedeemID:     &redeemID,
		Metadata: models.Metadata{
			"redeem_id": redeemID,
			"epoch":     ev.Epoch.String(),
			"receiver":  strings.ToLower(ev.Receiver.Hex()),
		},
		BlockNumber:    int64(meta.BlockNumber),
		BlockTimestamp: meta.Timestamp,
	}
	if err := t.store.CreateTransaction(ctx, tx); err != nil {
		if ledger.IsUniqueViolation(err) {
			logger.Info("[Indexer(%s)] ⏭️ Redeem request %s raced another writer, skipping", t.vault.ID, meta.TxHash)
			return nil
		}
		return fmt.Errorf("failed to record redeem request %s: %w", meta.TxHash, err)
	}

	// Shares leave the balance at request time; the cost basis is only
	// released when the claim settles.
	pos, err := t.store.FindPosition(ctx, userAddress, t.vault.ID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			logger.Error("[Indexer(%s)] ⚠️ Redeem request by %s with no position on record", t.vault.ID, userAddress)
			return nil
		}
		return fmt.Errorf("failed to load position for %s: %w", userAddress, err)
	}

	pos.ShareBalance = pos.ShareBalance.Sub(shares)
	if pos.ShareBalance.IsNegative() {
		pos.ShareBalance = decimal.Zero
	}
	ts := meta.Timestamp
	pos.LastActivityAt = &ts
	if err := t.store.SavePosition(ctx, pos); err != nil {
		return fmt.Errorf("failed to update position for %s: %w", userAddress, err)
	}

	logger.Info("[Indexer(%s)] 📤 Redeem requested by %s: %s shares (id %s)", t.vault.ID, userAddress, shares.String(), redeemID)
	return nil
}

func (t *Task) handleRedeemClaimed(ctx context.Context, ev chain.RedeemClaimedEvent, meta chain.EventMetadata) error {
	userAddress := strings.ToLower(ev.Receiver.Hex())
	if err := t.store.FindOrCreateUser(ctx, userAddress, t.vault.Chain); err != nil {
		return fmt.Errorf("failed to ensure user %s: %w", userAddress, err)
	}

	redeemID := ev.ID.String()
	pending, err := t.store.FindPendingRedeem(ctx, userAddress, t.vault.ID, redeemID)
	if err != nil {
		// A claim with no matching request means the ledger is out of step
		// with the chain; halt instead of inventing a withdraw row.
		return fmt.Errorf("no pending withdraw for redeem id %s (user %s): %w", redeemID, userAddress, err)
	}

	assets, err := t.scaledAmount(ctx, ev.Assets, meta)
	if err != nil {
		return err
	}
	nominal, err := t.scaledAmount(ctx, ev.RequestNominal, meta)
	if err != nil {
		return err
	}

	if err := t.store.ConfirmRedeem(ctx, pending.ID, assets, meta.TxHash); err != nil {
		return fmt.Errorf("failed to confirm redeem %s: %w", redeemID, err)
	}

	pos, err := t.store.FindPosition(ctx, userAddress, t.vault.ID)
	if err != nil {
		return fmt.Errorf("failed to load position for %s: %w", userAddress, err)
	}

	// Release cost basis proportionally to the share of the pre-request
	// balance that was redeemed. The request already removed the shares, so
	// balance-before-request = current balance + nominal.
	balanceBefore := pos.ShareBalance.Add(nominal)
	if balanceBefore.IsPositive() {
		released := pos.CostBasis.Mul(nominal.Div(balanceBefore))
		pos.CostBasis = pos.CostBasis.Sub(released)
	}
	if pos.CostBasis.IsNegative() {
		pos.CostBasis = decimal.Zero
	}
	ts := meta.Timestamp
	pos.LastActivityAt = &ts
	if err := t.store.SavePosition(ctx, pos); err != nil {
		return fmt.Errorf("failed to update position for %s: %w", userAddress, err)
	}

	logger.Info("[Indexer(%s)] ✅ Redeem %s claimed by %s: %s assets", t.vault.ID, redeemID, userAddress, assets.String())
	return nil
}

// StreamSource adapts chain.Stream construction to the EventSource interface.
type StreamSource struct {
	Client       *chain.FallbackClient
	Vault        common.Address
	ChunkSize    uint64
	PollInterval time.Duration
}

func (s *StreamSource) Events(ctx context.Context, fromBlock uint64) <-chan chain.StreamOutput {
	return chain.NewStream(s.Client, s.Vault, fromBlock, s.ChunkSize, s.PollInterval).Run(ctx)
}
