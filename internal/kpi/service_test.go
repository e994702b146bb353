package kpi

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/halcyon-vaults/backend/internal/models"
	"github.com/shopspring/decimal"
)

type fakeStore struct {
	vaults    []models.Vault
	positions map[string][]models.Position
	txs       map[string][]models.Transaction

	snapshots []models.PortfolioHistory
	kpis      []models.Kpi

	txsErr map[string]error
}

func posKey(user, vault string) string { return user + "|" + vault }

func newFakeStore() *fakeStore {
	return &fakeStore{
		positions: make(map[string][]models.Position),
		txs:       make(map[string][]models.Transaction),
		txsErr:    make(map[string]error),
	}
}

func (f *fakeStore) LiveVaults(context.Context) ([]models.Vault, error) {
	return f.vaults, nil
}

func (f *fakeStore) ActivePositionsByVault(_ context.Context, vaultID string) ([]models.Position, error) {
	return f.positions[vaultID], nil
}

func (f *fakeStore) ConfirmedTransactionsChronological(_ context.Context, user, vault string) ([]models.Transaction, error) {
	if err := f.txsErr[posKey(user, vault)]; err != nil {
		return nil, err
	}
	return f.txs[posKey(user, vault)], nil
}

func (f *fakeStore) InsertPortfolioSnapshot(_ context.Context, snapshot *models.PortfolioHistory) error {
	f.snapshots = append(f.snapshots, *snapshot)
	return nil
}

func (f *fakeStore) PortfolioHistorySeries(_ context.Context, user, vault string) ([]models.PortfolioHistory, error) {
	var out []models.PortfolioHistory
	for _, s := range f.snapshots {
		if s.UserAddress == user && s.VaultID == vault {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateKpi(_ context.Context, kpi *models.Kpi) error {
	f.kpis = append(f.kpis, *kpi)
	return nil
}

type fakeNav struct {
	prices map[string]decimal.Decimal
	errs   map[string]error
	calls  int
}

func (f *fakeNav) LatestSharePrice(_ context.Context, vault models.Vault) (decimal.Decimal, error) {
	f.calls++
	if err := f.errs[vault.ID]; err != nil {
		return decimal.Zero, err
	}
	return f.prices[vault.ID], nil
}

func TestServiceRunWritesSnapshotAndKpi(t *testing.T) {
	store := newFakeStore()
	store.vaults = []models.Vault{{ID: "vault-1", Live: true}}
	store.positions["vault-1"] = []models.Position{
		{UserAddress: "0xabc", VaultID: "vault-1", ShareBalance: dec(t, "100"), CostBasis: dec(t, "100")},
	}
	store.txs[posKey("0xabc", "vault-1")] = []models.Transaction{
		confirmedTx(t, "0x1", models.TransactionTypeDeposit, "100", "100"),
	}

	nav := &fakeNav{prices: map[string]decimal.Decimal{"vault-1": dec(t, "1.1")}}
	service := NewService(store, nav, 0.05)

	if err := service.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.snapshots) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(store.snapshots))
	}
	snapshot := store.snapshots[0]
	if !snapshot.PortfolioValue.Equal(dec(t, "110")) {
		t.Errorf("portfolio value = %s, want 110", snapshot.PortfolioValue)
	}

	if len(store.kpis) != 1 {
		t.Fatalf("kpis = %d, want 1", len(store.kpis))
	}
	record := store.kpis[0]
	if !record.UnrealizedPnl.Equal(dec(t, "10")) {
		t.Errorf("unrealized pnl = %s, want 10", record.UnrealizedPnl)
	}
	if !record.SharePriceUsed.Equal(dec(t, "1.1")) {
		t.Errorf("share price used = %s, want 1.1", record.SharePriceUsed)
	}
}

func TestServiceRunSkipsVaultOnNavFailure(t *testing.T) {
	store := newFakeStore()
	store.vaults = []models.Vault{
		{ID: "vault-1", Live: true},
		{ID: "vault-2", Live: true},
	}
	store.positions["vault-2"] = []models.Position{
		{UserAddress: "0xabc", VaultID: "vault-2", ShareBalance: dec(t, "10"), CostBasis: dec(t, "10")},
	}
	store.txs[posKey("0xabc", "vault-2")] = []models.Transaction{
		confirmedTx(t, "0x1", models.TransactionTypeDeposit, "10", "10"),
	}

	nav := &fakeNav{
		prices: map[string]decimal.Decimal{"vault-2": dec(t, "1")},
		errs:   map[string]error{"vault-1": errors.New("endpoint down")},
	}
	service := NewService(store, nav, 0.05)

	if err := service.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// vault-1 skipped, vault-2 still processed.
	if len(store.kpis) != 1 || store.kpis[0].VaultID != "vault-2" {
		t.Fatalf("kpis = %+v, want exactly one for vault-2", store.kpis)
	}
}

func TestServiceRunIsolatesPerUserFailures(t *testing.T) {
	store := newFakeStore()
	store.vaults = []models.Vault{{ID: "vault-1", Live: true}}
	store.positions["vault-1"] = []models.Position{
		{UserAddress: "0xbad", VaultID: "vault-1", ShareBalance: dec(t, "5"), CostBasis: dec(t, "5")},
		{UserAddress: "0xgood", VaultID: "vault-1", ShareBalance: dec(t, "10"), CostBasis: dec(t, "10")},
	}
	store.txsErr[posKey("0xbad", "vault-1")] = fmt.Errorf("history read failed")
	store.txs[posKey("0xgood", "vault-1")] = []models.Transaction{
		confirmedTx(t, "0x1", models.TransactionTypeDeposit, "10", "10"),
	}

	nav := &fakeNav{prices: map[string]decimal.Decimal{"vault-1": dec(t, "1")}}
	service := NewService(store, nav, 0.05)

	if err := service.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.kpis) != 1 || store.kpis[0].UserAddress != "0xgood" {
		t.Fatalf("kpis = %+v, want exactly one for 0xgood", store.kpis)
	}
}

func TestServiceRunStopsOnCancelledContext(t *testing.T) {
	store := newFakeStore()
	store.vaults = []models.Vault{{ID: "vault-1", Live: true}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	service := NewService(store, &fakeNav{}, 0.05)
	if err := service.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
