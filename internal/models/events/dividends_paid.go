package events

import "time"

// DividendsPaid is emitted after a non-zero claim has been transferred.
// Value is the exact amount moved by that claim.
type DividendsPaid struct {
	ClaimID     string    `json:"claim_id"`
	Shareholder string    `json:"shareholder"`
	Value       uint64    `json:"value"`
	OccurredAt  time.Time `json:"occurred_at"`
}
