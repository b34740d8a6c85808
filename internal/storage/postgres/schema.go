package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"

	_ "github.com/lib/pq" // registers the "postgres" driver
	"github.com/shopspring/decimal"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		id              TEXT PRIMARY KEY,
		idempotency_key TEXT NOT NULL UNIQUE,
		from_account    TEXT NOT NULL,
		to_account      TEXT NOT NULL,
		amount          NUMERIC NOT NULL CHECK (amount > 0),
		created_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id             TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL REFERENCES transactions (id),
		account_id     TEXT NOT NULL,
		amount         NUMERIC NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ledger_entries_account_idx ON ledger_entries (account_id)`,
	`CREATE TABLE IF NOT EXISTS dividend_totals (
		id             SMALLINT PRIMARY KEY CHECK (id = 1),
		total_paid_out NUMERIC NOT NULL CHECK (total_paid_out >= 0),
		updated_at     TIMESTAMPTZ NOT NULL
	)`,
	`ALTER TABLE dividend_totals ADD COLUMN IF NOT EXISTS pending_claim_id TEXT`,
	`ALTER TABLE dividend_totals ADD COLUMN IF NOT EXISTS pending_shareholder TEXT`,
	`ALTER TABLE dividend_totals ADD COLUMN IF NOT EXISTS pending_value NUMERIC`,
	`CREATE TABLE IF NOT EXISTS dividend_payouts (
		shareholder TEXT PRIMARY KEY,
		paid_out    NUMERIC NOT NULL CHECK (paid_out >= 0),
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return db, nil
}

// Migrate creates the ledger and checkpoint tables if they are missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}

func numeric(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

func toUint64(d decimal.Decimal) (uint64, error) {
	if d.IsNegative() || !d.IsInteger() {
		return 0, fmt.Errorf("postgres: %s is not a minor-unit amount", d)
	}
	n := d.BigInt()
	if !n.IsUint64() {
		return 0, fmt.Errorf("postgres: %s overflows uint64", d)
	}
	return n.Uint64(), nil
}
