package engine

// Priority selects a fee-estimate tier for sizing deposits.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// IsValid checks whether the priority is a known tier.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// FeePerTrade returns the estimated per-trade fee in base units for a
// priority tier. Unknown tiers fall back to medium.
func FeePerTrade(p Priority) uint64 {
	switch p {
	case PriorityLow:
		return 5_000
	case PriorityHigh:
		return 25_000
	default:
		return 10_000
	}
}

// DepositForTrades sizes a deposit to cover the given number of trades at
// the given priority, with checked arithmetic.
func DepositForTrades(trades uint64, p Priority) (uint64, error) {
	return checkedMul(trades, FeePerTrade(p))
}
