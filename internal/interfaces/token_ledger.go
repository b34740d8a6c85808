package interfaces

import "context"

// TokenLedger is the fungible-token ledger that holds the pool's custody balance.
//
// Pay moves amount exactly once per key: a repeated key is a successful no-op.
// It returns a non-nil error when the ledger declines or cannot complete the
// move. Settled reports whether a Pay with key has been recorded.
type TokenLedger interface {
	BalanceOf(ctx context.Context, account string) (uint64, error)
	Pay(ctx context.Context, key, from, to string, amount uint64) error
	Settled(ctx context.Context, key string) (bool, error)
}
