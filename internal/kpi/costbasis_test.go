package kpi

import (
	"errors"
	"testing"
	"time"

	"github.com/halcyon-vaults/backend/internal/models"
	"github.com/shopspring/decimal"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

func confirmedTx(t *testing.T, hash string, txType models.TransactionType, amount, shares string) models.Transaction {
	t.Helper()
	s := dec(t, shares)
	return models.Transaction{
		TxHash:         hash,
		VaultID:        "vault-1",
		UserAddress:    "0xabc",
		Type:           txType,
		Status:         models.TransactionStatusConfirmed,
		Amount:         dec(t, amount),
		SharesAmount:   &s,
		BlockTimestamp: time.Now(),
	}
}

func TestComputeCostBasisDepositsOnly(t *testing.T) {
	txs := []models.Transaction{
		confirmedTx(t, "0x1", models.TransactionTypeDeposit, "100", "100"),
		confirmedTx(t, "0x2", models.TransactionTypeDeposit, "200", "100"),
	}

	result, err := ComputeCostBasis(txs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.ShareBalance.Equal(dec(t, "200")) {
		t.Errorf("share balance = %s, want 200", result.ShareBalance)
	}
	if !result.Basis.Equal(dec(t, "300")) {
		t.Errorf("basis = %s, want 300", result.Basis)
	}
	if !result.RealizedPnl.IsZero() {
		t.Errorf("realized pnl = %s, want 0", result.RealizedPnl)
	}
	if !result.TotalDeposits.Equal(dec(t, "300")) {
		t.Errorf("total deposits = %s, want 300", result.TotalDeposits)
	}
}

func TestComputeCostBasisRealizesAtAverageCost(t *testing.T) {
	// Two deposits build an average entry cost of 1.5 per share. Withdrawing
	// 50 shares for 100 assets releases 75 of basis and realizes +25.
	txs := []models.Transaction{
		confirmedTx(t, "0x1", models.TransactionTypeDeposit, "100", "100"),
		confirmedTx(t, "0x2", models.TransactionTypeDeposit, "200", "100"),
		confirmedTx(t, "0x3", models.TransactionTypeWithdraw, "100", "50"),
	}

	result, err := ComputeCostBasis(txs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.RealizedPnl.Equal(dec(t, "25")) {
		t.Errorf("realized pnl = %s, want 25", result.RealizedPnl)
	}
	if !result.Basis.Equal(dec(t, "225")) {
		t.Errorf("basis = %s, want 225", result.Basis)
	}
	if !result.ShareBalance.Equal(dec(t, "150")) {
		t.Errorf("share balance = %s, want 150", result.ShareBalance)
	}
	if !result.TotalWithdrawals.Equal(dec(t, "100")) {
		t.Errorf("total withdrawals = %s, want 100", result.TotalWithdrawals)
	}
}

func TestComputeCostBasisProfitableHalfExit(t *testing.T) {
	// 100 assets for 100 shares, then half the shares leave for 150 assets.
	txs := []models.Transaction{
		confirmedTx(t, "0x1", models.TransactionTypeDeposit, "100", "100"),
		confirmedTx(t, "0x2", models.TransactionTypeWithdraw, "150", "50"),
	}

	result, err := ComputeCostBasis(txs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.RealizedPnl.Equal(dec(t, "100")) {
		t.Errorf("realized pnl = %s, want 100", result.RealizedPnl)
	}
	if !result.Basis.Equal(dec(t, "50")) {
		t.Errorf("basis = %s, want 50", result.Basis)
	}
	if !result.ShareBalance.Equal(dec(t, "50")) {
		t.Errorf("share balance = %s, want 50", result.ShareBalance)
	}
}

func TestComputeCostBasisFullExitDrainsBasis(t *testing.T) {
	txs := []models.Transaction{
		confirmedTx(t, "0x1", models.TransactionTypeDeposit, "300", "100"),
		confirmedTx(t, "0x2", models.TransactionTypeWithdraw, "330", "100"),
	}

	result, err := ComputeCostBasis(txs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.ShareBalance.IsZero() {
		t.Errorf("share balance = %s, want 0", result.ShareBalance)
	}
	if !result.Basis.IsZero() {
		t.Errorf("basis = %s, want 0", result.Basis)
	}
	if !result.RealizedPnl.Equal(dec(t, "30")) {
		t.Errorf("realized pnl = %s, want 30", result.RealizedPnl)
	}
}

func TestComputeCostBasisOverdrawnWithdrawalFails(t *testing.T) {
	txs := []models.Transaction{
		confirmedTx(t, "0x1", models.TransactionTypeDeposit, "100", "100"),
		confirmedTx(t, "0x2", models.TransactionTypeWithdraw, "200", "150"),
	}

	if _, err := ComputeCostBasis(txs); err == nil {
		t.Fatal("expected error for overdrawn withdrawal, got nil")
	}
}

func TestComputeCostBasisNegativeAmountFails(t *testing.T) {
	txs := []models.Transaction{
		confirmedTx(t, "0x1", models.TransactionTypeDeposit, "-5", "5"),
	}

	_, err := ComputeCostBasis(txs)
	if err == nil {
		t.Fatal("expected error for negative amount, got nil")
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("err = %T, want *ValidationError", err)
	}
}

func TestComputeCostBasisSkipsPendingRows(t *testing.T) {
	pending := confirmedTx(t, "0x2", models.TransactionTypeWithdraw, "50", "50")
	pending.Status = models.TransactionStatusPending
	txs := []models.Transaction{
		confirmedTx(t, "0x1", models.TransactionTypeDeposit, "100", "100"),
		pending,
	}

	result, err := ComputeCostBasis(txs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.ShareBalance.Equal(dec(t, "100")) || !result.Basis.Equal(dec(t, "100")) {
		t.Errorf("lot = %s shares / %s basis, want 100 / 100 (pending row must not move it)",
			result.ShareBalance, result.Basis)
	}
	if !result.TotalWithdrawals.IsZero() {
		t.Errorf("total withdrawals = %s, want 0", result.TotalWithdrawals)
	}
}

func TestComputeCostBasisSkipsWithdrawalAgainstEmptyLot(t *testing.T) {
	txs := []models.Transaction{
		confirmedTx(t, "0x1", models.TransactionTypeWithdraw, "10", "10"),
		confirmedTx(t, "0x2", models.TransactionTypeDeposit, "100", "100"),
	}

	result, err := ComputeCostBasis(txs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.ShareBalance.Equal(dec(t, "100")) || !result.Basis.Equal(dec(t, "100")) {
		t.Errorf("lot = %s shares / %s basis, want 100 / 100", result.ShareBalance, result.Basis)
	}
	if !result.RealizedPnl.IsZero() {
		t.Errorf("realized pnl = %s, want 0 (empty-lot withdrawal is passed over)", result.RealizedPnl)
	}
}

func TestComputeCostBasisTransfersDoNotMoveTheLot(t *testing.T) {
	txs := []models.Transaction{
		confirmedTx(t, "0x1", models.TransactionTypeDeposit, "100", "100"),
		confirmedTx(t, "0x2", models.TransactionTypeTransfer, "0", "40"),
	}

	result, err := ComputeCostBasis(txs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.ShareBalance.Equal(dec(t, "100")) {
		t.Errorf("share balance = %s, want 100", result.ShareBalance)
	}
	if !result.Basis.Equal(dec(t, "100")) {
		t.Errorf("basis = %s, want 100", result.Basis)
	}
}
