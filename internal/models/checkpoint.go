package models

import "time"

// Checkpoint is a snapshot of the amounts already paid out of a pool.
// TotalPaidOut always equals the sum of PaidOut.
type Checkpoint struct {
	TotalPaidOut uint64            `json:"total_paid_out"`
	PaidOut      map[string]uint64 `json:"paid_out"`
	// Pending is the claim whose transfer was requested but not yet confirmed.
	// Its Value is already counted in PaidOut and TotalPaidOut.
	Pending   *PendingClaim `json:"pending,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// PendingClaim identifies an in-flight payout. ClaimID doubles as the
// idempotency key of the ledger transfer.
type PendingClaim struct {
	ClaimID     string `json:"claim_id"`
	Shareholder string `json:"shareholder"`
	Value       uint64 `json:"value"`
}

// Clone returns a deep copy so callers can't alias the engine's map.
func (c Checkpoint) Clone() Checkpoint {
	out := Checkpoint{
		TotalPaidOut: c.TotalPaidOut,
		PaidOut:      make(map[string]uint64, len(c.PaidOut)),
		UpdatedAt:    c.UpdatedAt,
	}
	for k, v := range c.PaidOut {
		out.PaidOut[k] = v
	}
	if c.Pending != nil {
		pending := *c.Pending
		out.Pending = &pending
	}
	return out
}
