package ledger

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	interfaces "github.com/sheikh-saqib/revenue-sharing-ledger/internal/interfaces"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/models"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount      = errors.New("ledger: amount must be positive")
	ErrInvalidAccount     = errors.New("ledger: invalid account")
	ErrInsufficientFunds  = errors.New("ledger: insufficient funds")
	ErrNonIntegralBalance = errors.New("ledger: balance is not a non-negative integer")
	ErrProtectedAccount   = errors.New("ledger: account is held in custody")
)

// DefaultIssuerAccount is the account minted supply is debited from.
const DefaultIssuerAccount = "issuer"

// keyStripes is the number of locks idempotency keys are hashed onto.
const keyStripes = 64

// Ledger is a double-entry token ledger.
// Each transfer becomes a debit on the sender and a credit on the receiver,
// and an account's balance is the sum of its entries.
type Ledger struct {
	store  interfaces.LedgerStore
	issuer string
	logger *slog.Logger

	muMap map[string]*sync.Mutex // one mutex per account
	mapMu sync.Mutex             // protects muMap
	keyMu [keyStripes]sync.Mutex // serializes postings that share an idempotency key

	protectedMu sync.RWMutex
	protected   map[string]struct{}
}

// NewLedger creates a ledger over store. The issuer account may run a
// negative balance; every other account must cover its debits.
func NewLedger(store interfaces.LedgerStore, issuer string, logger *slog.Logger) *Ledger {
	if issuer == "" {
		issuer = DefaultIssuerAccount
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:  store,
		issuer: issuer,
		logger:    logger,
		muMap:     make(map[string]*sync.Mutex),
		protected: make(map[string]struct{}),
	}
}

// Protect puts account in custody: PostTransaction and Transfer refuse to
// debit it, and only Pay can move its funds.
func (l *Ledger) Protect(account string) {
	l.protectedMu.Lock()
	defer l.protectedMu.Unlock()
	l.protected[account] = struct{}{}
}

func (l *Ledger) isProtected(account string) bool {
	l.protectedMu.RLock()
	defer l.protectedMu.RUnlock()
	_, ok := l.protected[account]
	return ok
}

// Issuer returns the account minted supply comes from.
func (l *Ledger) Issuer() string { return l.issuer }

func (l *Ledger) getAccountLock(accountId string) *sync.Mutex {
	l.mapMu.Lock()
	defer l.mapMu.Unlock()

	if _, exists := l.muMap[accountId]; !exists {
		l.muMap[accountId] = &sync.Mutex{}
	}
	return l.muMap[accountId]
}

func (l *Ledger) getKeyLock(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &l.keyMu[h.Sum32()%keyStripes]
}

// PostTransaction records tx as a debit and a credit entry.
// A transaction whose idempotency key was already seen is a successful no-op.
// Accounts in custody cannot be debited this way.
func (l *Ledger) PostTransaction(ctx context.Context, tx models.Transaction) error {
	if l.isProtected(tx.FromAccount) {
		return fmt.Errorf("%w: %s", ErrProtectedAccount, tx.FromAccount)
	}
	return l.post(ctx, tx)
}

func (l *Ledger) post(ctx context.Context, tx models.Transaction) error {
	if tx.Amount.Cmp(decimal.Zero) <= 0 || !tx.Amount.IsInteger() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, tx.Amount)
	}
	if strings.TrimSpace(tx.FromAccount) == "" || strings.TrimSpace(tx.ToAccount) == "" {
		return fmt.Errorf("%w: from and to are required", ErrInvalidAccount)
	}
	if tx.FromAccount == tx.ToAccount {
		return fmt.Errorf("%w: %s pays itself", ErrInvalidAccount, tx.FromAccount)
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.IdempotencyKey == "" {
		tx.IdempotencyKey = tx.ID
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	// the key lock is always taken first and alone, so it can't deadlock
	// with the account locks below
	keyMutex := l.getKeyLock(tx.IdempotencyKey)
	keyMutex.Lock()
	defer keyMutex.Unlock()

	debitMutex := l.getAccountLock(tx.FromAccount)
	creditMutex := l.getAccountLock(tx.ToAccount)

	// lock in a fixed order to avoid deadlocks
	if tx.FromAccount < tx.ToAccount {
		debitMutex.Lock()
		creditMutex.Lock()
	} else {
		creditMutex.Lock()
		debitMutex.Lock()
	}
	defer debitMutex.Unlock()
	defer creditMutex.Unlock()

	exists, err := l.store.TransactionExists(ctx, tx.IdempotencyKey)
	if err != nil {
		return err
	}
	if exists {
		l.logger.Debug("transaction replayed", "idempotency_key", tx.IdempotencyKey)
		return nil
	}

	if tx.FromAccount != l.issuer {
		balance, err := l.sum(ctx, tx.FromAccount)
		if err != nil {
			return err
		}
		if balance.LessThan(tx.Amount) {
			return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientFunds, tx.FromAccount, balance, tx.Amount)
		}
	}

	debit := models.LedgerEntry{
		ID:            tx.ID + "-debit",
		TransactionID: tx.ID,
		AccountID:     tx.FromAccount,
		Amount:        tx.Amount.Neg(),
		CreatedAt:     tx.CreatedAt,
	}
	credit := models.LedgerEntry{
		ID:            tx.ID + "-credit",
		TransactionID: tx.ID,
		AccountID:     tx.ToAccount,
		Amount:        tx.Amount,
		CreatedAt:     tx.CreatedAt,
	}

	err = l.store.SaveTransactionWithEntries(ctx, tx, debit, credit)
	if errors.Is(err, interfaces.ErrDuplicateTransaction) {
		// another process posted the same key first
		l.logger.Debug("transaction replayed", "idempotency_key", tx.IdempotencyKey)
		return nil
	}
	return err
}

// Transfer moves amount minor units from one account to another.
func (l *Ledger) Transfer(ctx context.Context, from, to string, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("%w: 0", ErrInvalidAmount)
	}
	return l.PostTransaction(ctx, models.Transaction{
		FromAccount: from,
		ToAccount:   to,
		Amount:      Amount(amount),
	})
}

// Pay moves amount out of from, custody accounts included, at most once per
// key. A key that was already posted is a successful no-op.
func (l *Ledger) Pay(ctx context.Context, key, from, to string, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("%w: 0", ErrInvalidAmount)
	}
	return l.post(ctx, models.Transaction{
		IdempotencyKey: key,
		FromAccount:    from,
		ToAccount:      to,
		Amount:         Amount(amount),
	})
}

// Settled reports whether a transaction with idempotency key key was posted.
func (l *Ledger) Settled(ctx context.Context, key string) (bool, error) {
	return l.store.TransactionExists(ctx, key)
}

// Issue mints amount minor units into account.
func (l *Ledger) Issue(ctx context.Context, to string, amount uint64) error {
	return l.Transfer(ctx, l.issuer, to, amount)
}

// Amount converts minor units to a ledger amount.
func Amount(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

// GetBalance returns the signed balance of accountId.
func (l *Ledger) GetBalance(ctx context.Context, accountId string) (decimal.Decimal, error) {
	return l.sum(ctx, accountId)
}

// BalanceOf returns the balance of account in minor units.
func (l *Ledger) BalanceOf(ctx context.Context, account string) (uint64, error) {
	balance, err := l.sum(ctx, account)
	if err != nil {
		return 0, err
	}
	if balance.IsNegative() || !balance.IsInteger() {
		return 0, fmt.Errorf("%w: %s has %s", ErrNonIntegralBalance, account, balance)
	}
	n := balance.BigInt()
	if !n.IsUint64() {
		return 0, fmt.Errorf("%w: %s has %s", ErrNonIntegralBalance, account, balance)
	}
	return n.Uint64(), nil
}

func (l *Ledger) sum(ctx context.Context, accountId string) (decimal.Decimal, error) {
	ledgerEntries, err := l.store.GetEntriesByAccount(ctx, accountId)
	if err != nil {
		return decimal.Zero, err
	}
	balance := decimal.Zero
	for _, ledgerEntry := range ledgerEntries {
		balance = balance.Add(ledgerEntry.Amount)
	}
	return balance, nil
}

func (l *Ledger) GetLedgerEntries(ctx context.Context) ([]models.LedgerEntry, error) {
	ledgerEntries, err := l.store.GetLedgerEntries(ctx)
	if err != nil {
		return []models.LedgerEntry{}, err
	}
	return ledgerEntries, nil
}

var _ interfaces.TokenLedger = (*Ledger)(nil)
