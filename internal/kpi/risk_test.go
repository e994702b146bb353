package kpi

import (
	"testing"

	"github.com/shopspring/decimal"
)

func decs(t *testing.T, values ...string) []decimal.Decimal {
	t.Helper()
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = dec(t, v)
	}
	return out
}

func TestMaxDrawdownPct(t *testing.T) {
	// Peak 120, trough 80 after the peak: (120-80)/120 = 33.33...%
	values := decs(t, "100", "120", "90", "110", "80")

	got, err := MaxDrawdownPct(values)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := dec(t, "120").Sub(dec(t, "80")).Div(dec(t, "120")).Mul(dec(t, "100"))
	if !got.Equal(want) {
		t.Errorf("max drawdown = %s, want %s", got, want)
	}
}

func TestMaxDrawdownPctTroughAfterSecondPeak(t *testing.T) {
	// The deepest decline is from the later peak 120 down to 60: 50%.
	got, err := MaxDrawdownPct(decs(t, "100", "80", "120", "60"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(dec(t, "50")) {
		t.Errorf("max drawdown = %s, want 50", got)
	}
}

func TestMaxDrawdownPctMonotonicSeriesIsZero(t *testing.T) {
	got, err := MaxDrawdownPct(decs(t, "100", "110", "125"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("max drawdown = %s, want 0", got)
	}
}

func TestMaxDrawdownPctEmptySeriesIsZero(t *testing.T) {
	got, err := MaxDrawdownPct(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("max drawdown = %s, want 0", got)
	}
}

func TestMaxDrawdownPctNegativeValueFails(t *testing.T) {
	if _, err := MaxDrawdownPct(decs(t, "100", "-50")); err == nil {
		t.Fatal("expected error for negative portfolio value, got nil")
	}
}

func TestSharpeRatioTooFewPoints(t *testing.T) {
	got, err := SharpeRatio(decs(t, "100"), 0.05)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("sharpe = %s, want 0", got)
	}
}

func TestSharpeRatioFlatSeriesIsZero(t *testing.T) {
	got, err := SharpeRatio(decs(t, "100", "110", "121"), 0.05)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Constant 10% daily return has zero variance.
	if !got.IsZero() {
		t.Errorf("sharpe = %s, want 0 for zero-variance series", got)
	}
}

func TestSharpeRatioPositiveForRisingSeries(t *testing.T) {
	got, err := SharpeRatio(decs(t, "100", "110", "115.5"), 0.05)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsPositive() {
		t.Errorf("sharpe = %s, want > 0", got)
	}
}

func TestSharpeRatioZeroValueInSeriesFails(t *testing.T) {
	if _, err := SharpeRatio(decs(t, "100", "0", "50"), 0.05); err == nil {
		t.Fatal("expected error for zero portfolio value, got nil")
	}
}

func TestSharpeRatioNegativeValueFails(t *testing.T) {
	if _, err := SharpeRatio(decs(t, "100", "-10"), 0.05); err == nil {
		t.Fatal("expected error for negative portfolio value, got nil")
	}
}

func TestSortinoRatioNoDownsideWithUpside(t *testing.T) {
	got, err := SortinoRatio(decs(t, "100", "110", "115.5"), 0.05)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(maxMetric) {
		t.Errorf("sortino = %s, want max-representable for pure upside", got)
	}
}

func TestSortinoRatioFlatSeriesIsZero(t *testing.T) {
	got, err := SortinoRatio(decs(t, "100", "100", "100"), 0.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("sortino = %s, want 0", got)
	}
}

func TestSortinoRatioFiniteWithMixedReturns(t *testing.T) {
	got, err := SortinoRatio(decs(t, "100", "120", "108", "130"), 0.05)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Equal(maxMetric) {
		t.Error("sortino hit max-representable despite downside returns")
	}
	if !got.IsPositive() {
		t.Errorf("sortino = %s, want > 0 for a net-up series", got)
	}
}
