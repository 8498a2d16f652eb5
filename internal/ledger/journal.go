package ledger

import (
	"context"
	"fmt"

	"github.com/retailcore/ledger-core/internal/models"
	"go.uber.org/zap"
)

// PostEntry posts a manual journal entry and persists it. An unbalanced
// entry is rejected with an IMBALANCE error and stays unposted; a store
// failure also leaves it unposted.
func (l *Ledger) PostEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if entry == nil {
		return models.NewValidationError("journal entry is required")
	}
	if entry.Posted {
		return models.NewValidationError(fmt.Sprintf("journal entry %q is already posted", entry.ID))
	}
	if len(entry.Lines) == 0 {
		return models.NewValidationError("journal entry has no lines")
	}
	if !entry.IsBalanced() {
		return models.NewImbalanceError(fmt.Sprintf("journal entry %q does not balance: debits %s, credits %s",
			entry.ID, entry.TotalDebits().StringFixed(2), entry.TotalCredits().StringFixed(2)))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	posted := *entry
	posted.Lines = append([]models.LineItem(nil), entry.Lines...)
	posted.Post()
	if err := l.store.SaveEntry(ctx, posted); err != nil {
		l.logger.Error("failed to persist journal entry", zap.String("entry_id", entry.ID), zap.Error(err))
		if models.IsKind(err, models.ErrDuplicate) {
			return err
		}
		return models.NewPersistenceError("failed to save journal entry", err)
	}

	entry.Post()
	l.audit.Append(fmt.Sprintf("Posted journal entry %s (%s) for %s", entry.ID, entry.Reference, entry.TotalDebits().StringFixed(2)))
	return nil
}

// PostTransactionJournal derives the double-entry posting for a recorded
// transaction from the chart of accounts and posts it.
func (l *Ledger) PostTransactionJournal(ctx context.Context, id string) (*models.LedgerEntry, error) {
	tx, ok := l.Find(id)
	if !ok {
		return nil, models.NewNotFoundError(fmt.Sprintf("transaction %q is not in the ledger", id))
	}
	entry, err := l.chart.JournalFor(tx)
	if err != nil {
		return nil, err
	}
	if err := l.PostEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Entries returns every persisted journal entry.
func (l *Ledger) Entries(ctx context.Context) ([]models.LedgerEntry, error) {
	entries, err := l.store.GetLedgerEntries(ctx)
	if err != nil {
		return []models.LedgerEntry{}, models.NewPersistenceError("failed to load journal entries", err)
	}
	return entries, nil
}
