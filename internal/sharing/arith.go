package sharing

import (
	"fmt"
	"math/bits"

	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/registry"
)

func addChecked(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}
	return sum, nil
}

// entitled is floor(revenue * units / TotalUnits). The product must fit in
// 64 bits; a wider product fails instead of wrapping.
func entitled(revenue, units uint64) (uint64, error) {
	hi, lo := bits.Mul64(revenue, units)
	if hi != 0 {
		return 0, fmt.Errorf("%w: %d * %d", ErrOverflow, revenue, units)
	}
	return lo / registry.TotalUnits, nil
}
