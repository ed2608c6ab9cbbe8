package engine

import (
	"errors"
	"math"
	"testing"
)

func TestFeePerTrade(t *testing.T) {
	for _, tc := range []struct {
		p    Priority
		want uint64
	}{
		{PriorityLow, 5_000},
		{PriorityMedium, 10_000},
		{PriorityHigh, 25_000},
		{Priority("bogus"), 10_000}, // unknown tiers fall back to medium
	} {
		if got := FeePerTrade(tc.p); got != tc.want {
			t.Errorf("FeePerTrade(%q) = %d, want %d", tc.p, got, tc.want)
		}
	}
}

func TestDepositForTrades(t *testing.T) {
	got, err := DepositForTrades(12, PriorityHigh)
	if err != nil || got != 300_000 {
		t.Errorf("DepositForTrades(12, high) = (%d, %v), want 300000", got, err)
	}

	if _, err := DepositForTrades(math.MaxUint64, PriorityLow); !errors.Is(err, ErrAmountOverflow) {
		t.Errorf("overflowing estimate: got %v, want ErrAmountOverflow", err)
	}
}

func TestPriorityIsValid(t *testing.T) {
	for _, p := range []Priority{PriorityLow, PriorityMedium, PriorityHigh} {
		if !p.IsValid() {
			t.Errorf("%q should be valid", p)
		}
	}
	if Priority("urgent").IsValid() {
		t.Error("unknown priority should be invalid")
	}
}
