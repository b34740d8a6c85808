package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	interfaces "github.com/sheikh-saqib/revenue-sharing-ledger/internal/interfaces"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/models"
)

const (
	uniqueViolation          = "23505"
	idempotencyKeyConstraint = "transactions_idempotency_key_key"
)

type PostgresLedgerStore struct {
	db *sql.DB
}

func NewPostgresLedgerStore(db *sql.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		db: db,
	}
}

func (p *PostgresLedgerStore) TransactionExists(ctx context.Context, idempotencyKey string) (bool, error) {
	const query = `SELECT 1 FROM transactions WHERE idempotency_key = $1 LIMIT 1`

	var exists int
	err := p.db.QueryRowContext(ctx, query, idempotencyKey).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *PostgresLedgerStore) saveTransaction(ctx context.Context, tx models.Transaction, dbTx *sql.Tx) error {
	const query = `INSERT INTO transactions (id, idempotency_key, from_account, to_account, amount, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := dbTx.ExecContext(ctx, query, tx.ID, tx.IdempotencyKey, tx.FromAccount, tx.ToAccount, tx.Amount, tx.CreatedAt)
	return err
}

func (p *PostgresLedgerStore) saveEntry(ctx context.Context, ledgerEntry models.LedgerEntry, dbTx *sql.Tx) error {
	const query = `INSERT INTO ledger_entries (id, transaction_id, account_id, amount, created_at)
	VALUES ($1, $2, $3, $4, $5)`

	_, err := dbTx.ExecContext(ctx, query, ledgerEntry.ID, ledgerEntry.TransactionID, ledgerEntry.AccountID, ledgerEntry.Amount, ledgerEntry.CreatedAt)
	return err
}

// SaveTransactionWithEntries writes the transaction and its two entries in one SQL transaction.
func (p *PostgresLedgerStore) SaveTransactionWithEntries(ctx context.Context, tx models.Transaction, debit models.LedgerEntry, credit models.LedgerEntry) (err error) {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	if err = p.saveTransaction(ctx, tx, dbTx); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == idempotencyKeyConstraint {
			return fmt.Errorf("%w: %s", interfaces.ErrDuplicateTransaction, tx.IdempotencyKey)
		}
		return err
	}
	if err = p.saveEntry(ctx, debit, dbTx); err != nil {
		return err
	}
	if err = p.saveEntry(ctx, credit, dbTx); err != nil {
		return err
	}
	return dbTx.Commit()
}

func (p *PostgresLedgerStore) GetLedgerEntries(ctx context.Context) ([]models.LedgerEntry, error) {
	const query = `SELECT id, transaction_id, account_id, amount, created_at FROM ledger_entries ORDER BY created_at, id`
	return p.queryEntries(ctx, query)
}

func (p *PostgresLedgerStore) GetEntriesByAccount(ctx context.Context, accountId string) ([]models.LedgerEntry, error) {
	const query = `SELECT id, transaction_id, account_id, amount, created_at FROM ledger_entries
	WHERE account_id = $1`
	return p.queryEntries(ctx, query, accountId)
}

func (p *PostgresLedgerStore) queryEntries(ctx context.Context, query string, args ...any) ([]models.LedgerEntry, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var entry models.LedgerEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TransactionID,
			&entry.AccountID,
			&entry.Amount,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

var _ interfaces.LedgerStore = (*PostgresLedgerStore)(nil)
