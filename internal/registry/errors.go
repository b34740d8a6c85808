package registry

import "errors"

var (
	// ErrEmptyOrMismatchedAllocation indicates the shareholder and units lists are empty or differ in length.
	ErrEmptyOrMismatchedAllocation = errors.New("registry: empty or mismatched allocation")

	// ErrShareOutOfRange indicates a units value of zero or above TotalUnits.
	ErrShareOutOfRange = errors.New("registry: share out of range")

	// ErrInvalidShareholder indicates a blank shareholder identity.
	ErrInvalidShareholder = errors.New("registry: invalid shareholder")

	// ErrDuplicateShareholder indicates the same identity appears twice.
	ErrDuplicateShareholder = errors.New("registry: duplicate shareholder")

	// ErrAllocationNotFull indicates the units do not sum to exactly TotalUnits.
	ErrAllocationNotFull = errors.New("registry: allocation does not sum to total units")
)
