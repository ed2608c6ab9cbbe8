package engine

import "math"

// checkedAdd returns a+b, or ErrAmountOverflow if the sum wraps.
func checkedAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrAmountOverflow
	}
	return a + b, nil
}

// checkedMul returns a*b, or ErrAmountOverflow if the product wraps.
func checkedMul(a, b uint64) (uint64, error) {
	if a != 0 && b > math.MaxUint64/a {
		return 0, ErrAmountOverflow
	}
	return a * b, nil
}
