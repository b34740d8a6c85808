package interfaces

import (
	"context"
	"errors"

	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/models"
)

// ErrDuplicateTransaction is returned by SaveTransactionWithEntries when the
// idempotency key is already stored.
var ErrDuplicateTransaction = errors.New("ledger store: duplicate idempotency key")

// LedgerStore persists the double-entry records of the token ledger.
type LedgerStore interface {
	TransactionExists(ctx context.Context, idempotencyKey string) (bool, error)
	// SaveTransactionWithEntries stores the transaction and both of its entries, or none of them.
	SaveTransactionWithEntries(ctx context.Context, tx models.Transaction, debit models.LedgerEntry, credit models.LedgerEntry) error
	GetEntriesByAccount(ctx context.Context, accountId string) ([]models.LedgerEntry, error)
	GetLedgerEntries(ctx context.Context) ([]models.LedgerEntry, error)
}
