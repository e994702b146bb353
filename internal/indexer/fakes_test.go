package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/halcyon-vaults/backend/internal/chain"
	"github.com/halcyon-vaults/backend/internal/ledger"
	"github.com/halcyon-vaults/backend/internal/models"
)

// memStore is an in-memory LedgerStore for exercising the ingestion task and
// state machine without Postgres.
type memStore struct {
	mu sync.Mutex

	users        map[string]string
	transactions []models.Transaction
	positions    map[string]*models.Position
	states       map[string]*models.IndexerState
}

func newMemStore() *memStore {
	return &memStore{
		users:     make(map[string]string),
		positions: make(map[string]*models.Position),
		states:    make(map[string]*models.IndexerState),
	}
}

func (m *memStore) posKey(user, vault string) string { return user + "|" + vault }

func (m *memStore) FindOrCreateUser(_ context.Context, address, chain string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[address]; !ok {
		m.users[address] = chain
	}
	return nil
}

func (m *memStore) TransactionExistsByHash(_ context.Context, txHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range m.transactions {
		if tx.TxHash == txHash {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateTransaction(_ context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	m.transactions = append(m.transactions, *tx)
	return nil
}

func (m *memStore) FindPendingRedeem(_ context.Context, userAddress, vaultID, redeemID string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.transactions {
		tx := &m.transactions[i]
		if tx.UserAddress == userAddress && tx.VaultID == vaultID &&
			tx.Type == models.TransactionTypeWithdraw &&
			tx.Status == models.TransactionStatusPending &&
			tx.RedeemID != nil && *tx.RedeemID == redeemID {
			copied := *tx
			return &copied, nil
		}
	}
	return nil, ledger.ErrNotFound
}

func (m *memStore) ConfirmRedeem(_ context.Context, id uuid.UUID, amount decimal.Decimal, txHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.transactions {
		if m.transactions[i].ID == id {
			m.transactions[i].Status = models.TransactionStatusConfirmed
			m.transactions[i].Amount = amount
			m.transactions[i].TxHash = txHash
			return nil
		}
	}
	return fmt.Errorf("transaction %s not found", id)
}

func (m *memStore) FindPosition(_ context.Context, userAddress, vaultID string) (*models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[m.posKey(userAddress, vaultID)]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	copied := *pos
	return &copied, nil
}

func (m *memStore) CreatePosition(_ context.Context, pos *models.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *pos
	m.positions[m.posKey(pos.UserAddress, pos.VaultID)] = &copied
	return nil
}

func (m *memStore) SavePosition(_ context.Context, pos *models.Position) error {
	return m.CreatePosition(context.Background(), pos)
}

func (m *memStore) FindIndexerState(_ context.Context, vaultID string) (*models.IndexerState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[vaultID]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	copied := *state
	return &copied, nil
}

func (m *memStore) UpsertIndexerState(_ context.Context, vaultID string, block int64, ts *time.Time, status models.IndexerStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[vaultID] = &models.IndexerState{
		VaultID:                vaultID,
		LastProcessedBlock:     block,
		LastProcessedTimestamp: ts,
		Status:                 status,
	}
	return nil
}

func (m *memStore) UpdateIndexerCursor(_ context.Context, vaultID string, block int64, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[vaultID]
	if !ok {
		return fmt.Errorf("no state for vault %s", vaultID)
	}
	state.LastProcessedBlock = block
	state.LastProcessedTimestamp = &ts
	if state.Status != models.IndexerStatusSynced {
		state.Status = models.IndexerStatusActive
	}
	return nil
}

func (m *memStore) MarkIndexerSynced(_ context.Context, vaultID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[vaultID]
	if !ok {
		return fmt.Errorf("no state for vault %s", vaultID)
	}
	state.Status = models.IndexerStatusSynced
	return nil
}

func (m *memStore) RecordIndexerError(_ context.Context, vaultID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[vaultID]
	if !ok {
		state = &models.IndexerState{VaultID: vaultID}
		m.states[vaultID] = state
	}
	now := time.Now().UTC()
	state.Status = models.IndexerStatusError
	state.LastError = &message
	state.LastErrorAt = &now
	return nil
}

func (m *memStore) position(user, vault string) *models.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positions[m.posKey(user, vault)]
}

func (m *memStore) state(vault string) *models.IndexerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[vault]
}

// fixedDecimals is a ChainReader that always reports the same decimals.
type fixedDecimals struct{ decimals uint8 }

func (f fixedDecimals) UnderlyingAssetDecimals(context.Context, common.Address, uint64) (uint8, error) {
	return f.decimals, nil
}

// scriptedSource replays a fixed sequence of stream outputs. With tail set it
// then blocks until the context ends, mimicking a caught-up stream; without
// it the channel closes after the last output.
type scriptedSource struct {
	outputs   []chain.StreamOutput
	tail      bool
	fromBlock uint64
}

func (s *scriptedSource) Events(ctx context.Context, fromBlock uint64) <-chan chain.StreamOutput {
	s.fromBlock = fromBlock
	out := make(chan chain.StreamOutput)
	go func() {
		defer close(out)
		for _, item := range s.outputs {
			select {
			case <-ctx.Done():
				return
			case out <- item:
			}
			if item.Err != nil {
				return
			}
		}
		if s.tail {
			<-ctx.Done()
		}
	}()
	return out
}
