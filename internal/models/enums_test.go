package models

import "testing"

func TestParseTransactionType(t *testing.T) {
	for _, valid := range []string{"deposit", "withdraw", "transfer", "claim"} {
		if _, err := ParseTransactionType(valid); err != nil {
			t.Errorf("ParseTransactionType(%q) = %v, want nil", valid, err)
		}
	}
	if _, err := ParseTransactionType("swap"); err == nil {
		t.Error("expected error for unknown transaction type")
	}
}

func TestParseTransactionStatus(t *testing.T) {
	for _, valid := range []string{"pending", "confirmed", "failed", "cancelled"} {
		if _, err := ParseTransactionStatus(valid); err != nil {
			t.Errorf("ParseTransactionStatus(%q) = %v, want nil", valid, err)
		}
	}
	if _, err := ParseTransactionStatus("done"); err == nil {
		t.Error("expected error for unknown transaction status")
	}
}

func TestParseIndexerStatus(t *testing.T) {
	for _, valid := range []string{"active", "paused", "error", "synced"} {
		if _, err := ParseIndexerStatus(valid); err != nil {
			t.Errorf("ParseIndexerStatus(%q) = %v, want nil", valid, err)
		}
	}
	if _, err := ParseIndexerStatus("running"); err == nil {
		t.Error("expected error for unknown indexer status")
	}
}
