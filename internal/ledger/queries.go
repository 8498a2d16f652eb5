package ledger

import (
	"time"

	"github.com/retailcore/ledger-core/internal/models"
	"github.com/shopspring/decimal"
)

// Exists reports whether an equivalent transaction is already recorded:
// same type tag, amount within epsilon, same timestamp, and the same
// description or id.
func (l *Ledger) Exists(tx models.Transaction) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.existsLocked(tx)
}

func (l *Ledger) existsLocked(tx models.Transaction) bool {
	for _, t := range l.transactions {
		if sameTransaction(t, tx) {
			return true
		}
	}
	return false
}

func sameTransaction(a, b models.Transaction) bool {
	if a.Kind != b.Kind || a.Variant != b.Variant {
		return false
	}
	if !models.AmountsEqual(a.Amount, b.Amount) || !a.Timestamp.Equal(b.Timestamp) {
		return false
	}
	return a.Description == b.Description || (a.ID != "" && a.ID == b.ID)
}

// Transactions returns a copy of every recorded transaction in insertion order.
func (l *Ledger) Transactions() []models.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Transaction, len(l.transactions))
	copy(out, l.transactions)
	return out
}

// Find returns the transaction with the given id.
func (l *Ledger) Find(id string) (models.Transaction, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i := l.indexOf(id); i >= 0 {
		return l.transactions[i], true
	}
	return models.Transaction{}, false
}

// TransactionsByPeriod returns transactions whose timestamp falls in the
// rolling window ending now.
func (l *Ledger) TransactionsByPeriod(p models.Period) []models.Transaction {
	now := l.now()
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Transaction, 0)
	for _, t := range l.transactions {
		if p.Contains(t.Timestamp, now) {
			out = append(out, t)
		}
	}
	return out
}

// TotalByType sums amounts for a type tag. A bare kind such as "venta"
// covers the whole family including its reversals; a tag with a variant
// such as "venta_reverso" matches exactly. Unknown tags total zero.
func (l *Ledger) TotalByType(tag string) decimal.Decimal {
	match, ok := tagMatcher(tag)
	if !ok {
		return decimal.Zero
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return sum(l.transactions, match)
}

// TotalByTypeAndPeriod is TotalByType restricted to a rolling window.
func (l *Ledger) TotalByTypeAndPeriod(tag string, p models.Period) decimal.Decimal {
	match, ok := tagMatcher(tag)
	if !ok {
		return decimal.Zero
	}
	now := l.now()
	l.mu.RLock()
	defer l.mu.RUnlock()
	return sum(l.transactions, func(t models.Transaction) bool {
		return match(t) && p.Contains(t.Timestamp, now)
	})
}

func tagMatcher(tag string) (func(models.Transaction) bool, bool) {
	kind, variant, err := models.ParseTag(tag)
	if err != nil {
		return nil, false
	}
	if variant == models.VariantNone {
		return func(t models.Transaction) bool { return t.Kind == kind }, true
	}
	return func(t models.Transaction) bool { return t.Kind == kind && t.Variant == variant }, true
}

func sum(txs []models.Transaction, match func(models.Transaction) bool) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		if match(t) {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// Reconcile returns the external transactions with no internal counterpart
// at exactly the same timestamp and an amount within epsilon. Nothing is merged.
func (l *Ledger) Reconcile(external []models.Transaction) []models.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	unmatched := make([]models.Transaction, 0)
	for _, ext := range external {
		if !l.hasCounterpart(ext.Timestamp, ext.Amount) {
			unmatched = append(unmatched, ext)
		}
	}
	return unmatched
}

func (l *Ledger) hasCounterpart(ts time.Time, amount decimal.Decimal) bool {
	for _, t := range l.transactions {
		if t.Timestamp.Equal(ts) && models.AmountsEqual(t.Amount, amount) {
			return true
		}
	}
	return false
}
