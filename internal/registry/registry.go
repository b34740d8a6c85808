package registry

import (
	"fmt"
	"strings"

	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/models"
)

// TotalUnits is the denominator every allocation must sum to. Shares are per-mille.
const TotalUnits uint64 = 1000

// Registry is the immutable shareholder -> units table of a pool.
// It is safe for concurrent use because nothing mutates it after New returns.
type Registry struct {
	allocations []models.ShareAllocation
	units       map[string]uint64
}

// New validates the parallel shareholder and units lists and freezes them.
// Checks run in a fixed order and the first failing one determines the error.
func New(shareholders []string, units []uint64) (*Registry, error) {
	if len(shareholders) == 0 || len(shareholders) != len(units) {
		return nil, fmt.Errorf("%w: %d shareholders, %d units",
			ErrEmptyOrMismatchedAllocation, len(shareholders), len(units))
	}

	for i, u := range units {
		if u < 1 || u > TotalUnits {
			return nil, fmt.Errorf("%w: entry %d has %d units (allowed 1..%d)", ErrShareOutOfRange, i, u, TotalUnits)
		}
	}

	index := make(map[string]uint64, len(shareholders))
	for i, s := range shareholders {
		if strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("%w: entry %d is blank", ErrInvalidShareholder, i)
		}
		if _, dup := index[s]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateShareholder, s)
		}
		index[s] = units[i]
	}

	// each entry is at most TotalUnits, so the running sum can only overflow
	// for lists far longer than anything addressable
	var sum uint64
	for _, u := range units {
		sum += u
	}
	if sum != TotalUnits {
		return nil, fmt.Errorf("%w: sum=%d want=%d", ErrAllocationNotFull, sum, TotalUnits)
	}

	allocations := make([]models.ShareAllocation, len(shareholders))
	for i := range shareholders {
		allocations[i] = models.ShareAllocation{Shareholder: shareholders[i], Units: units[i]}
	}
	return &Registry{allocations: allocations, units: index}, nil
}

// FromAllocations is New for callers holding ShareAllocation values.
func FromAllocations(allocations []models.ShareAllocation) (*Registry, error) {
	shareholders := make([]string, len(allocations))
	units := make([]uint64, len(allocations))
	for i, a := range allocations {
		shareholders[i] = a.Shareholder
		units[i] = a.Units
	}
	return New(shareholders, units)
}

// Units returns the weight of shareholder and whether it is registered.
func (r *Registry) Units(shareholder string) (uint64, bool) {
	u, ok := r.units[shareholder]
	return u, ok
}

// Contains reports whether shareholder is registered.
func (r *Registry) Contains(shareholder string) bool {
	_, ok := r.units[shareholder]
	return ok
}

// Len returns the number of shareholders.
func (r *Registry) Len() int { return len(r.allocations) }

// Allocations returns a copy of the allocation in registration order.
func (r *Registry) Allocations() []models.ShareAllocation {
	out := make([]models.ShareAllocation, len(r.allocations))
	copy(out, r.allocations)
	return out
}
