// Package offline buffers transactions captured while the ledger's store is
// unreachable and replays them once it is back.
package offline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/retailcore/ledger-core/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Recorder is the part of the ledger the queue replays into.
type Recorder interface {
	Record(ctx context.Context, tx models.Transaction) (models.Transaction, error)
	Exists(tx models.Transaction) bool
}

// Store holds queued transactions in insertion order.
type Store interface {
	Append(ctx context.Context, tx models.Transaction) error
	Remove(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.Transaction, error)
}

// Queue owns offline transactions until they are replayed into the ledger.
// A single mutex covers both enqueueing and a whole drain.
type Queue struct {
	mu       sync.Mutex
	recorder Recorder
	store    Store
	now      func() time.Time
	newID    func() string
	logger   *zap.Logger
}

type Option func(*Queue)

func WithLogger(logger *zap.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// WithStore replaces the default in-memory store.
func WithStore(s Store) Option {
	return func(q *Queue) {
		if s != nil {
			q.store = s
		}
	}
}

func NewQueue(recorder Recorder, opts ...Option) *Queue {
	q := &Queue{
		recorder: recorder,
		store:    NewMemoryStore(),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue queues an offline sale of the given items. It only fails on bad
// input or when the queue store itself fails; connectivity is irrelevant.
func (q *Queue) Enqueue(ctx context.Context, items []models.SaleItem, paymentMethod string, total, discount decimal.Decimal) (models.Transaction, error) {
	if len(items) == 0 {
		return models.Transaction{}, models.NewValidationError("sale has no items")
	}
	if !total.IsPositive() {
		return models.Transaction{}, models.NewValidationError("sale total must be positive")
	}
	if discount.IsNegative() {
		return models.Transaction{}, models.NewValidationError("discount must not be negative")
	}

	units := 0
	for _, it := range items {
		if it.Quantity <= 0 {
			return models.Transaction{}, models.NewValidationError(fmt.Sprintf("item %q has a non-positive quantity", it.Barcode))
		}
		units += it.Quantity
	}

	tx := models.Transaction{
		Kind:          models.KindSale,
		Amount:        total,
		PaymentMethod: paymentMethod,
		Description:   SaleDescription(len(items), units, discount),
	}
	return q.EnqueueTransaction(ctx, tx)
}

// SaleDescription summarises a ticket for the ledger description.
func SaleDescription(items, units int, discount decimal.Decimal) string {
	desc := fmt.Sprintf("Sale: %d items, %d units", items, units)
	if discount.IsPositive() {
		desc += fmt.Sprintf(", discount %s", discount.StringFixed(2))
	}
	return desc
}

// EnqueueTransaction queues any kind of transaction as its offline variant.
func (q *Queue) EnqueueTransaction(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	if !tx.Kind.IsValid() {
		return models.Transaction{}, models.NewValidationError(fmt.Sprintf("unknown transaction kind %q", tx.Kind))
	}
	if tx.IsReversal() {
		return models.Transaction{}, models.NewValidationError("reversals cannot be queued offline")
	}
	if tx.Amount.IsZero() {
		return models.Transaction{}, models.NewValidationError("amount must not be zero")
	}

	tx.Variant = models.VariantOffline
	tx.Amount = tx.Amount.Abs().Mul(decimal.NewFromInt(int64(tx.Kind.Sign())))
	if tx.ID == "" {
		tx.ID = q.newID()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = q.now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.store.Append(ctx, tx); err != nil {
		return models.Transaction{}, models.NewPersistenceError("failed to queue offline transaction", err)
	}
	q.logger.Info("transaction queued offline",
		zap.String("transaction_id", tx.ID),
		zap.String("type", tx.Tag()),
		zap.String("amount", tx.Amount.StringFixed(2)),
	)
	return tx, nil
}

// SyncPending replays every queued transaction into the ledger under its
// base type and removes each one that lands. Entries already present in the
// ledger are dropped without recording them again. It returns true only when
// the queue ends up empty; failed entries stay queued for the next attempt.
func (q *Queue) SyncPending(ctx context.Context) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending, err := q.store.List(ctx)
	if err != nil {
		return false, models.NewPersistenceError("failed to list offline queue", err)
	}

	allSynced := true
	for _, queued := range pending {
		tx := queued
		tx.Variant = models.VariantNone

		if q.recorder.Exists(tx) {
			q.logger.Info("offline transaction already in ledger", zap.String("transaction_id", tx.ID))
		} else if _, err := q.recorder.Record(ctx, tx); models.IsKind(err, models.ErrDuplicate) {
			q.logger.Info("offline transaction id already recorded", zap.String("transaction_id", tx.ID))
		} else if err != nil {
			allSynced = false
			q.logger.Warn("failed to replay offline transaction",
				zap.String("transaction_id", tx.ID),
				zap.Error(err),
			)
			continue
		}

		if err := q.store.Remove(ctx, queued.ID); err != nil {
			allSynced = false
			q.logger.Error("failed to remove replayed transaction from queue",
				zap.String("transaction_id", queued.ID),
				zap.Error(err),
			)
		}
	}
	return allSynced, nil
}

// Pending returns the queued transactions in insertion order.
func (q *Queue) Pending(ctx context.Context) ([]models.Transaction, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending, err := q.store.List(ctx)
	if err != nil {
		return nil, models.NewPersistenceError("failed to list offline queue", err)
	}
	return pending, nil
}

func (q *Queue) Len(ctx context.Context) (int, error) {
	pending, err := q.Pending(ctx)
	return len(pending), err
}
