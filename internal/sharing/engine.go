// Package sharing implements the dividend accounting engine of a revenue pool.
//
// The pool never learns about inflows directly. Revenue arrives as ordinary
// token transfers into the pool's custody account, and the engine reconstructs
// the total it has ever received as
//
//	cumulative revenue = custody balance + total paid out
//
// A shareholder is entitled to floor(cumulative revenue * units / TotalUnits)
// and is owed that minus what it already withdrew. Floor division leaves at
// most len(shareholders)-1 minor units unclaimable; that dust stays in custody
// for good and is not redistributed.
package sharing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	interfaces "github.com/sheikh-saqib/revenue-sharing-ledger/internal/interfaces"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/models"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/models/events"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/registry"
)

// Asset identifies the token ledger and the pool's custody account in it.
type Asset struct {
	Ledger  interfaces.TokenLedger
	Account string
}

// Options carries the optional collaborators of an Engine. Zero values are valid.
type Options struct {
	Store     interfaces.CheckpointStore // nil keeps checkpoints in memory only
	Publisher interfaces.EventPublisher  // nil drops payout notifications
	Logger    *slog.Logger
	Metrics   *Metrics
}

// Engine tracks what each shareholder of one pool has been paid and pays out
// the rest on demand.
//
// All claims on an Engine are serialized behind one lock, and reads share a
// read lock with each other, so no read observes a half-applied claim. The
// token ledger must not call back into the Engine on the goroutine that is
// running a claim; callbacks from other goroutines wait for the claim to
// finish and then find nothing owed.
//
// A checkpoint store belongs to exactly one running Engine. Payout events are
// published after the lock is released.
type Engine struct {
	registry  *registry.Registry
	ledger    interfaces.TokenLedger
	account   string
	store     interfaces.CheckpointStore
	publisher interfaces.EventPublisher
	logger    *slog.Logger
	metrics   *Metrics

	mu           sync.RWMutex
	totalPaidOut uint64
	paidOut      map[string]uint64
	pending      *models.PendingClaim
	updatedAt    time.Time
}

// New validates the allocation and the asset reference and returns an engine
// whose checkpoint is restored from opts.Store, if one is given. Construction
// is all-or-nothing: on error no engine exists.
func New(ctx context.Context, shareholders []string, units []uint64, asset Asset, opts Options) (*Engine, error) {
	reg, err := registry.New(shareholders, units)
	if err != nil {
		return nil, err
	}
	if asset.Ledger == nil {
		return nil, fmt.Errorf("%w: no token ledger", ErrInvalidAssetReference)
	}
	if asset.Account == "" {
		return nil, fmt.Errorf("%w: no custody account", ErrInvalidAssetReference)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		registry:  reg,
		ledger:    asset.Ledger,
		account:   asset.Account,
		store:     opts.Store,
		publisher: opts.Publisher,
		logger:    logger,
		metrics:   opts.Metrics,
		paidOut:   make(map[string]uint64, reg.Len()),
	}
	if err := e.restore(ctx); err != nil {
		return nil, err
	}

	logger.Info("revenue pool ready",
		"account", e.account,
		"shareholders", reg.Len(),
		"total_paid_out", e.totalPaidOut,
	)
	return e, nil
}

func (e *Engine) restore(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	cp, err := e.store.LoadCheckpoint(ctx)
	if err != nil {
		return fmt.Errorf("sharing: load checkpoint: %w", err)
	}

	var sum uint64
	for shareholder, paid := range cp.PaidOut {
		if !e.registry.Contains(shareholder) {
			return fmt.Errorf("%w: unknown shareholder %q", ErrCorruptCheckpoint, shareholder)
		}
		if sum, err = addChecked(sum, paid); err != nil {
			return fmt.Errorf("%w: %w", ErrCorruptCheckpoint, err)
		}
	}
	if sum != cp.TotalPaidOut {
		return fmt.Errorf("%w: payouts sum to %d, total is %d", ErrCorruptCheckpoint, sum, cp.TotalPaidOut)
	}
	if p := cp.Pending; p != nil {
		if p.ClaimID == "" || !e.registry.Contains(p.Shareholder) || p.Value == 0 || cp.PaidOut[p.Shareholder] < p.Value {
			return fmt.Errorf("%w: pending claim %+v", ErrCorruptCheckpoint, *p)
		}
	}

	for shareholder, paid := range cp.PaidOut {
		if paid > 0 {
			e.paidOut[shareholder] = paid
		}
	}
	e.totalPaidOut = cp.TotalPaidOut
	e.updatedAt = cp.UpdatedAt

	if cp.Pending != nil {
		return e.settlePending(ctx, *cp.Pending)
	}
	return nil
}

// settlePending resolves a claim that was interrupted between persisting the
// checkpoint and confirming the transfer. A transfer the ledger recorded is
// kept; one it never saw is taken back out of the checkpoint.
func (e *Engine) settlePending(ctx context.Context, p models.PendingClaim) error {
	settled, err := e.ledger.Settled(ctx, p.ClaimID)
	if err != nil {
		return fmt.Errorf("sharing: check pending claim: %w", err)
	}

	prev := e.snapshot()
	if !settled {
		e.paidOut[p.Shareholder] -= p.Value
		if e.paidOut[p.Shareholder] == 0 {
			delete(e.paidOut, p.Shareholder)
		}
		e.totalPaidOut -= p.Value
	}
	e.pending = nil
	e.updatedAt = time.Now().UTC()
	if err := e.persist(ctx); err != nil {
		e.reset(prev)
		return fmt.Errorf("sharing: persist checkpoint: %w", err)
	}

	e.logger.Warn("interrupted claim resolved",
		"claim_id", p.ClaimID,
		"shareholder", p.Shareholder,
		"value", p.Value,
		"transferred", settled,
	)
	return nil
}

// Account returns the custody account the pool receives revenue into.
func (e *Engine) Account() string { return e.account }

// Allocations returns the frozen share table.
func (e *Engine) Allocations() []models.ShareAllocation { return e.registry.Allocations() }

// CumulativeRevenue returns everything the pool has ever received.
func (e *Engine) CumulativeRevenue(ctx context.Context) (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cumulativeRevenue(ctx)
}

// EntitlementOf returns what shareholder could claim right now. Identities
// outside the registry are owed 0.
func (e *Engine) EntitlementOf(ctx context.Context, shareholder string) (uint64, error) {
	units, ok := e.registry.Units(shareholder)
	if !ok {
		return 0, nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	revenue, err := e.cumulativeRevenue(ctx)
	if err != nil {
		return 0, err
	}
	return e.owed(shareholder, units, revenue)
}

// PaidOut returns the total shareholder has withdrawn.
func (e *Engine) PaidOut(shareholder string) uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.paidOut[shareholder]
}

// TotalPaidOut returns the total withdrawn by all shareholders.
func (e *Engine) TotalPaidOut() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.totalPaidOut
}

// Checkpoint returns a consistent copy of the paid-out accumulators.
func (e *Engine) Checkpoint() models.Checkpoint {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot()
}

// Claim pays caller everything it is owed.
//
// Nothing owed, including a caller that is not a shareholder, is a
// successful no-op that returns a nil event. Otherwise the checkpoint is
// advanced and persisted, together with the claim as pending, before the
// transfer is requested, and rolled back if the transfer fails, in which case
// the error wraps ErrTransferFailed. When the ledger can't tell whether a failed
// transfer landed, the claim stays pending and is resolved by the next Claim.
func (e *Engine) Claim(ctx context.Context, caller string) (*events.DividendsPaid, error) {
	start := time.Now()
	paid, status, err := e.claim(ctx, caller)

	if e.metrics != nil {
		e.metrics.ClaimDuration.Observe(time.Since(start).Seconds())
		e.metrics.ClaimsTotal.WithLabelValues(status).Inc()
		if paid != nil {
			e.metrics.PayoutAmount.Add(float64(paid.Value))
		}
	}
	if paid != nil {
		e.publish(ctx, paid)
	}
	return paid, err
}

func (e *Engine) claim(ctx context.Context, caller string) (*events.DividendsPaid, string, error) {
	units, ok := e.registry.Units(caller)
	if !ok {
		return nil, claimStatusNoop, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// an earlier payout with an unknown outcome is resolved before anything
	// new is paid against the pool
	if e.pending != nil {
		if err := e.settlePending(ctx, *e.pending); err != nil {
			return nil, claimStatusError, err
		}
	}

	revenue, err := e.cumulativeRevenue(ctx)
	if err != nil {
		return nil, claimStatusError, err
	}
	owed, err := e.owed(caller, units, revenue)
	if err != nil {
		return nil, claimStatusError, err
	}
	if owed == 0 {
		return nil, claimStatusNoop, nil
	}

	paid := &events.DividendsPaid{
		ClaimID:     uuid.NewString(),
		Shareholder: caller,
		Value:       owed,
	}

	prev := e.snapshot()
	if err := e.advance(caller, owed); err != nil {
		e.reset(prev)
		return nil, claimStatusError, err
	}
	e.pending = &models.PendingClaim{ClaimID: paid.ClaimID, Shareholder: caller, Value: owed}
	if err := e.persist(ctx); err != nil {
		e.reset(prev)
		return nil, claimStatusError, fmt.Errorf("sharing: persist checkpoint: %w", err)
	}

	// the checkpoint already covers owed, so anything the transfer triggers
	// finds nothing left to claim
	if err := e.ledger.Pay(ctx, paid.ClaimID, e.account, caller, owed); err != nil {
		settled, serr := e.ledger.Settled(context.WithoutCancel(ctx), paid.ClaimID)
		switch {
		case serr != nil:
			// outcome unknown: the claim stays pending until the ledger can answer
			e.logger.Error("transfer status unknown", "claim_id", paid.ClaimID, "error", serr)
			return nil, claimStatusTransferFailed, fmt.Errorf("%w: %w", ErrTransferFailed, errors.Join(err, serr))
		case !settled:
			return nil, claimStatusTransferFailed, e.rollback(ctx, prev, paid, err)
		}
		e.logger.Warn("transfer reported failure but was recorded", "claim_id", paid.ClaimID, "error", err)
	}

	e.pending = nil
	if err := e.persist(context.WithoutCancel(ctx)); err != nil {
		// the stored claim stays pending and is settled on the next start
		e.logger.Error("finalize checkpoint failed", "claim_id", paid.ClaimID, "error", err)
	}

	paid.OccurredAt = e.updatedAt
	e.logger.Info("dividends paid",
		"claim_id", paid.ClaimID,
		"shareholder", caller,
		"value", owed,
		"total_paid_out", e.totalPaidOut,
	)
	return paid, claimStatusPaid, nil
}

func (e *Engine) rollback(ctx context.Context, prev models.Checkpoint, paid *events.DividendsPaid, cause error) error {
	e.reset(prev)
	err := fmt.Errorf("%w: %w", ErrTransferFailed, cause)
	if e.store != nil {
		if serr := e.store.SaveCheckpoint(context.WithoutCancel(ctx), prev); serr != nil {
			err = errors.Join(err, fmt.Errorf("sharing: restore checkpoint: %w", serr))
		}
	}
	e.logger.Error("claim rolled back",
		"claim_id", paid.ClaimID,
		"shareholder", paid.Shareholder,
		"value", paid.Value,
		"error", err,
	)
	return err
}

func (e *Engine) persist(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	return e.store.SaveCheckpoint(ctx, e.snapshot())
}

func (e *Engine) cumulativeRevenue(ctx context.Context) (uint64, error) {
	balance, err := e.ledger.BalanceOf(ctx, e.account)
	if err != nil {
		return 0, fmt.Errorf("sharing: custody balance: %w", err)
	}
	revenue, err := addChecked(balance, e.totalPaidOut)
	if err != nil {
		return 0, err
	}
	if e.metrics != nil {
		e.metrics.CumulativeRevenue.Set(float64(revenue))
	}
	return revenue, nil
}

func (e *Engine) owed(shareholder string, units, revenue uint64) (uint64, error) {
	due, err := entitled(revenue, units)
	if err != nil {
		return 0, err
	}
	paid := e.paidOut[shareholder]
	if due < paid {
		// custody was drained by someone other than this engine
		e.logger.Warn("checkpoint ahead of entitlement",
			"shareholder", shareholder,
			"entitled", due,
			"paid_out", paid,
		)
		return 0, nil
	}
	return due - paid, nil
}

func (e *Engine) advance(shareholder string, amount uint64) error {
	paid, err := addChecked(e.paidOut[shareholder], amount)
	if err != nil {
		return err
	}
	total, err := addChecked(e.totalPaidOut, amount)
	if err != nil {
		return err
	}
	e.paidOut[shareholder] = paid
	e.totalPaidOut = total
	e.updatedAt = time.Now().UTC()
	return nil
}

func (e *Engine) snapshot() models.Checkpoint {
	return models.Checkpoint{
		TotalPaidOut: e.totalPaidOut,
		PaidOut:      e.paidOut,
		Pending:      e.pending,
		UpdatedAt:    e.updatedAt,
	}.Clone()
}

func (e *Engine) reset(cp models.Checkpoint) {
	e.totalPaidOut = cp.TotalPaidOut
	e.paidOut = cp.PaidOut
	e.pending = cp.Pending
	e.updatedAt = cp.UpdatedAt
}

func (e *Engine) publish(ctx context.Context, paid *events.DividendsPaid) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, paid.Shareholder, paid); err != nil {
		if e.metrics != nil {
			e.metrics.PublishFailures.Inc()
		}
		e.logger.Error("publish dividends paid failed",
			"claim_id", paid.ClaimID,
			"shareholder", paid.Shareholder,
			"error", err,
		)
	}
}
