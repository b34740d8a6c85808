package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	interfaces "github.com/sheikh-saqib/revenue-sharing-ledger/internal/interfaces"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// CheckpointStore persists the pool checkpoint in the dividend_totals and
// dividend_payouts tables.
type CheckpointStore struct {
	db *sql.DB
}

func NewCheckpointStore(db *sql.DB) *CheckpointStore {
	return &CheckpointStore{db: db}
}

func (s *CheckpointStore) LoadCheckpoint(ctx context.Context) (models.Checkpoint, error) {
	cp := models.Checkpoint{PaidOut: map[string]uint64{}}

	var (
		total              decimal.Decimal
		pendingID          sql.NullString
		pendingShareholder sql.NullString
		pendingValue       decimal.NullDecimal
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT total_paid_out, updated_at, pending_claim_id, pending_shareholder, pending_value
		FROM dividend_totals WHERE id = 1`,
	).Scan(&total, &cp.UpdatedAt, &pendingID, &pendingShareholder, &pendingValue)
	if errors.Is(err, sql.ErrNoRows) {
		return cp, nil
	}
	if err != nil {
		return models.Checkpoint{}, fmt.Errorf("postgres: load total: %w", err)
	}
	if cp.TotalPaidOut, err = toUint64(total); err != nil {
		return models.Checkpoint{}, err
	}
	if pendingID.Valid {
		cp.Pending = &models.PendingClaim{ClaimID: pendingID.String, Shareholder: pendingShareholder.String}
		if pendingValue.Valid {
			if cp.Pending.Value, err = toUint64(pendingValue.Decimal); err != nil {
				return models.Checkpoint{}, err
			}
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT shareholder, paid_out FROM dividend_payouts`)
	if err != nil {
		return models.Checkpoint{}, fmt.Errorf("postgres: load payouts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			shareholder string
			paid        decimal.Decimal
		)
		if err := rows.Scan(&shareholder, &paid); err != nil {
			return models.Checkpoint{}, err
		}
		if cp.PaidOut[shareholder], err = toUint64(paid); err != nil {
			return models.Checkpoint{}, err
		}
	}
	if err := rows.Err(); err != nil {
		return models.Checkpoint{}, err
	}
	return cp, nil
}

// SaveCheckpoint replaces the stored checkpoint with cp in one SQL transaction.
// Shareholders missing from cp lose their row, which is how a rolled-back
// first claim disappears again.
func (s *CheckpointStore) SaveCheckpoint(ctx context.Context, cp models.Checkpoint) (err error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	var pendingID, pendingShareholder sql.NullString
	var pendingValue decimal.NullDecimal
	if cp.Pending != nil {
		pendingID = sql.NullString{String: cp.Pending.ClaimID, Valid: true}
		pendingShareholder = sql.NullString{String: cp.Pending.Shareholder, Valid: true}
		pendingValue = decimal.NullDecimal{Decimal: numeric(cp.Pending.Value), Valid: true}
	}

	const upsertTotal = `INSERT INTO dividend_totals
	(id, total_paid_out, updated_at, pending_claim_id, pending_shareholder, pending_value)
	VALUES (1, $1, $2, $3, $4, $5)
	ON CONFLICT (id) DO UPDATE SET total_paid_out = EXCLUDED.total_paid_out, updated_at = EXCLUDED.updated_at,
	pending_claim_id = EXCLUDED.pending_claim_id, pending_shareholder = EXCLUDED.pending_shareholder,
	pending_value = EXCLUDED.pending_value`
	if _, err = dbTx.ExecContext(ctx, upsertTotal,
		numeric(cp.TotalPaidOut), cp.UpdatedAt, pendingID, pendingShareholder, pendingValue,
	); err != nil {
		return fmt.Errorf("postgres: save total: %w", err)
	}

	const upsertPayout = `INSERT INTO dividend_payouts (shareholder, paid_out, updated_at) VALUES ($1, $2, $3)
	ON CONFLICT (shareholder) DO UPDATE SET paid_out = EXCLUDED.paid_out, updated_at = EXCLUDED.updated_at`
	shareholders := make([]string, 0, len(cp.PaidOut))
	for shareholder, paid := range cp.PaidOut {
		if _, err = dbTx.ExecContext(ctx, upsertPayout, shareholder, numeric(paid), cp.UpdatedAt); err != nil {
			return fmt.Errorf("postgres: save payout: %w", err)
		}
		shareholders = append(shareholders, shareholder)
	}

	if _, err = dbTx.ExecContext(ctx,
		`DELETE FROM dividend_payouts WHERE NOT (shareholder = ANY($1))`, pq.Array(shareholders),
	); err != nil {
		return fmt.Errorf("postgres: prune payouts: %w", err)
	}
	return dbTx.Commit()
}

var _ interfaces.CheckpointStore = (*CheckpointStore)(nil)
