package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/retailcore/ledger-core/internal/accounts"
	interfaces "github.com/retailcore/ledger-core/internal/interfaces"
	"github.com/retailcore/ledger-core/internal/models"
	"github.com/retailcore/ledger-core/internal/models/events"
	"github.com/retailcore/ledger-core/internal/notify"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultTaxRate is the surcharge applied to sales.
var DefaultTaxRate = decimal.NewFromFloat(0.12)

// Ledger is the single source of truth for recorded transactions. One
// instance is built by the composition root and shared by every flow.
//
// Writes hold mu for the whole persist-then-append step so the in-memory
// list never diverges from the store. Listeners run after mu is released.
type Ledger struct {
	mu           sync.RWMutex
	store        interfaces.LedgerStore
	transactions []models.Transaction
	audit        *AuditLog
	notifier     *notify.Notifier

	publisher interfaces.EventPublisher
	topic     string
	chart     *accounts.Chart
	taxRate   decimal.Decimal
	now       func() time.Time
	newID     func() string
	logger    *zap.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock replaces time.Now for timestamps and period filters.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithIDGenerator replaces the uuid generator used for missing ids.
func WithIDGenerator(gen func() string) Option {
	return func(l *Ledger) {
		if gen != nil {
			l.newID = gen
		}
	}
}

// WithTaxRate sets the sales surcharge rate, e.g. 0.12.
func WithTaxRate(rate decimal.Decimal) Option {
	return func(l *Ledger) {
		l.taxRate = rate
	}
}

// WithPublisher publishes a TransactionRecorded event after each record.
func WithPublisher(p interfaces.EventPublisher, topic string) Option {
	return func(l *Ledger) {
		l.publisher = p
		if topic != "" {
			l.topic = topic
		}
	}
}

// WithChart sets the chart used for default categories and derived journals.
func WithChart(c *accounts.Chart) Option {
	return func(l *Ledger) {
		if c != nil {
			l.chart = c
		}
	}
}

// NewLedger creates a Ledger over the given store.
func NewLedger(store interfaces.LedgerStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:        store,
		transactions: make([]models.Transaction, 0),
		taxRate:      DefaultTaxRate,
		topic:        events.TopicTransactionRecorded,
		chart:        accounts.DefaultChart(),
		now:          time.Now,
		newID:        func() string { return uuid.New().String() },
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.audit = NewAuditLog(l.now)
	l.notifier = notify.NewNotifier(l.logger)
	return l
}

// Record validates tx, fills in id and timestamp when missing, applies the
// sales surcharge and persists it. Only a successful store write touches
// in-memory state; listeners are notified afterwards, exactly once.
func (l *Ledger) Record(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	l.mu.Lock()
	recorded, err := l.recordLocked(ctx, tx)
	l.mu.Unlock()
	if err != nil {
		return models.Transaction{}, err
	}

	l.afterRecord(ctx, recorded)
	return recorded, nil
}

func (l *Ledger) recordLocked(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	tx, err := l.prepare(tx)
	if err != nil {
		return models.Transaction{}, err
	}
	if l.indexOf(tx.ID) >= 0 {
		return models.Transaction{}, models.NewDuplicateError(fmt.Sprintf("transaction %q is already recorded", tx.ID))
	}

	if err := l.store.Save(ctx, tx); err != nil {
		l.logger.Error("failed to persist transaction",
			zap.String("transaction_id", tx.ID),
			zap.String("type", tx.Tag()),
			zap.Error(err),
		)
		if models.IsKind(err, models.ErrDuplicate) {
			return models.Transaction{}, err
		}
		return models.Transaction{}, models.NewPersistenceError("failed to save transaction", err)
	}

	l.transactions = append(l.transactions, tx)
	l.audit.Append(fmt.Sprintf("Recorded %s %s (%s)", tx.Tag(), tx.Amount.StringFixed(2), tx.ID))
	return tx, nil
}

// Stores keep cents and microsecond timestamps. Recorded values are cut to
// the same precision so a reload matches what is held in memory.
const amountPlaces = 2

// prepare normalises a transaction before it is persisted.
func (l *Ledger) prepare(tx models.Transaction) (models.Transaction, error) {
	if !tx.Kind.IsValid() {
		return tx, models.NewValidationError(fmt.Sprintf("unknown transaction kind %q", tx.Kind))
	}
	if !tx.Variant.IsValid() {
		return tx, models.NewValidationError(fmt.Sprintf("unknown transaction variant %q", tx.Variant))
	}
	if tx.IsOffline() {
		return tx, models.NewValidationError("offline transactions must be synchronised through the offline queue")
	}
	if tx.IsReversal() {
		return tx, models.NewValidationError("reversals are created by reversing the original transaction")
	}
	tx.Amount = tx.Amount.Round(amountPlaces)
	if tx.Amount.IsZero() {
		return tx, models.NewValidationError("amount must not be zero")
	}

	if tx.ID == "" {
		tx.ID = l.newID()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = l.now()
	}
	tx.Timestamp = tx.Timestamp.Truncate(time.Microsecond)
	tx.Amount = tx.Amount.Abs().Mul(decimal.NewFromInt(int64(tx.Kind.Sign())))
	tx.Reversed = false
	tx.ReversalReason = ""
	tx.ReversalOf = ""
	tx.Tax = decimal.Zero
	if tx.Kind == models.KindSale {
		tx.Tax = tx.Amount.Mul(l.taxRate).Round(amountPlaces)
	}
	if tx.Category == "" {
		tx.Category = l.chart.Category(tx.Kind)
	}
	return tx, nil
}

func (l *Ledger) afterRecord(ctx context.Context, tx models.Transaction) {
	if l.publisher != nil {
		event := events.TransactionRecorded{
			TransactionID: tx.ID,
			Type:          tx.Tag(),
			Amount:        tx.Amount,
			Tax:           tx.Tax,
			ReversalOf:    tx.ReversalOf,
			OccurredAt:    tx.Timestamp,
			RecordedAt:    l.now(),
		}
		if err := l.publisher.Publish(ctx, l.topic, event); err != nil {
			l.logger.Warn("failed to publish transaction event",
				zap.String("transaction_id", tx.ID),
				zap.Error(err),
			)
		}
	}
	l.notifier.Notify()
}

// Reverse records an offsetting transaction for the one with tx.ID and flags
// the original as reversed. Both happen in a single store call.
func (l *Ledger) Reverse(ctx context.Context, tx models.Transaction, reason string) (models.Transaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.Transaction{}, models.NewValidationError("reversal reason is required")
	}

	l.mu.Lock()
	reversal, err := l.reverseLocked(ctx, tx.ID, reason)
	l.mu.Unlock()
	if err != nil {
		return models.Transaction{}, err
	}

	l.afterRecord(ctx, reversal)
	return reversal, nil
}

func (l *Ledger) reverseLocked(ctx context.Context, id, reason string) (models.Transaction, error) {
	idx := l.indexOf(id)
	if idx < 0 {
		return models.Transaction{}, models.NewNotFoundError(fmt.Sprintf("transaction %q is not in the ledger", id))
	}
	original := l.transactions[idx]
	if original.IsReversal() {
		return models.Transaction{}, models.NewValidationError("a reversal cannot be reversed")
	}
	if original.Reversed {
		return models.Transaction{}, models.NewValidationError(fmt.Sprintf("transaction %q is already reversed", id))
	}

	reversal := models.Transaction{
		ID:             l.newID(),
		Kind:           original.Kind,
		Variant:        models.VariantReversal,
		Amount:         original.Amount.Neg(),
		Tax:            original.Tax.Neg(),
		Description:    "Reversal: " + original.Description,
		PaymentMethod:  original.PaymentMethod,
		Category:       original.Category,
		AdditionalInfo: original.AdditionalInfo,
		Timestamp:      l.now().Truncate(time.Microsecond),
		ReversalOf:     original.ID,
		ReversalReason: reason,
	}

	if err := l.store.SaveReversal(ctx, reversal, original.ID, reason); err != nil {
		l.logger.Error("failed to persist reversal",
			zap.String("original_id", original.ID),
			zap.Error(err),
		)
		return models.Transaction{}, models.NewPersistenceError("failed to save reversal", err)
	}

	l.transactions[idx].Reversed = true
	l.transactions[idx].ReversalReason = reason
	l.transactions = append(l.transactions, reversal)
	l.audit.Append(fmt.Sprintf("Reversed %s %s (%s): %s", original.Tag(), original.Amount.StringFixed(2), original.ID, reason))
	return reversal, nil
}

func (l *Ledger) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range l.transactions {
		if l.transactions[i].ID == id {
			return i
		}
	}
	return -1
}

// Load merges persisted transactions in [start, end] into memory, skipping
// those already present. It returns how many were added.
func (l *Ledger) Load(ctx context.Context, start, end time.Time) (int, error) {
	loaded, err := l.store.LoadByDateRange(ctx, start, end)
	if err != nil {
		l.logger.Error("failed to load transactions", zap.Error(err))
		if models.IsKind(err, models.ErrPersistence) {
			return 0, err
		}
		return 0, models.NewPersistenceError("failed to load transactions", err)
	}

	l.mu.Lock()
	added := 0
	for _, tx := range loaded {
		if l.existsLocked(tx) {
			l.logger.Debug("skipping duplicate transaction", zap.String("transaction_id", tx.ID))
			continue
		}
		l.transactions = append(l.transactions, tx)
		added++
	}
	if added > 0 {
		l.audit.Append(fmt.Sprintf("Loaded %d transactions from store", added))
	}
	l.mu.Unlock()

	if added > 0 {
		l.notifier.Notify()
	}
	return added, nil
}

// AddListener registers a change listener; duplicates are ignored.
func (l *Ledger) AddListener(listener notify.Listener) bool {
	return l.notifier.Add(listener)
}

func (l *Ledger) RemoveListener(listener notify.Listener) bool {
	return l.notifier.Remove(listener)
}

// AuditLog returns every audit line joined by newlines.
func (l *Ledger) AuditLog() string {
	return l.audit.String()
}

// Categories lists the categories known to the store.
func (l *Ledger) Categories(ctx context.Context) ([]string, error) {
	cats, err := l.store.AllCategories(ctx)
	if err != nil {
		return nil, models.NewPersistenceError("failed to load categories", err)
	}
	return cats, nil
}

// AccountBalance returns debits minus credits for a code over posted entries up to asOf.
func (l *Ledger) AccountBalance(ctx context.Context, accountCode string, asOf time.Time) (decimal.Decimal, error) {
	bal, err := l.store.AccountBalance(ctx, accountCode, asOf)
	if err != nil {
		return decimal.Zero, models.NewPersistenceError("failed to compute account balance", err)
	}
	return bal, nil
}
