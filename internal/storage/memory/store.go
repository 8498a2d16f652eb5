package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	interfaces "github.com/retailcore/ledger-core/internal/interfaces"
	"github.com/retailcore/ledger-core/internal/models"
	"github.com/shopspring/decimal"
)

// MemoryLedgerStore is an in-memory LedgerStore, safe for concurrent use.
// Reads return copies so callers cannot mutate stored state.
type MemoryLedgerStore struct {
	mu           sync.Mutex
	transactions []models.Transaction
	index        map[string]int // transaction id -> position
	entries      []models.LedgerEntry
}

func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		transactions: make([]models.Transaction, 0),
		index:        make(map[string]int),
		entries:      make([]models.LedgerEntry, 0),
	}
}

func (m *MemoryLedgerStore) Save(ctx context.Context, tx models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.index[tx.ID]; exists {
		return models.NewDuplicateError(fmt.Sprintf("transaction %q already stored", tx.ID))
	}
	m.index[tx.ID] = len(m.transactions)
	m.transactions = append(m.transactions, tx)
	return nil
}

func (m *MemoryLedgerStore) SaveReversal(ctx context.Context, reversal models.Transaction, originalID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.index[originalID]
	if !ok {
		return fmt.Errorf("original transaction %q not stored", originalID)
	}
	if m.transactions[pos].Reversed {
		return fmt.Errorf("original transaction %q already reversed", originalID)
	}
	if _, exists := m.index[reversal.ID]; exists {
		return models.NewDuplicateError(fmt.Sprintf("transaction %q already stored", reversal.ID))
	}

	m.transactions[pos].Reversed = true
	m.transactions[pos].ReversalReason = reason
	m.index[reversal.ID] = len(m.transactions)
	m.transactions = append(m.transactions, reversal)
	return nil
}

// LoadByDateRange returns transactions with start <= timestamp <= end in
// insertion order.
func (m *MemoryLedgerStore) LoadByDateRange(ctx context.Context, start, end time.Time) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.Transaction
	for _, tx := range m.transactions {
		if !tx.Timestamp.Before(start) && !tx.Timestamp.After(end) {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (m *MemoryLedgerStore) AllCategories(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]struct{})
	for _, tx := range m.transactions {
		if tx.Category != "" {
			seen[tx.Category] = struct{}{}
		}
	}
	cats := make([]string, 0, len(seen))
	for c := range seen {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats, nil
}

// AccountBalance sums debits minus credits for accountCode across posted
// entries dated on or before asOf.
func (m *MemoryLedgerStore) AccountBalance(ctx context.Context, accountCode string, asOf time.Time) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	balance := decimal.Zero
	for _, e := range m.entries {
		if !e.Posted || e.Date.After(asOf) {
			continue
		}
		for _, l := range e.Lines {
			if l.AccountCode == accountCode {
				balance = balance.Add(l.Debit).Sub(l.Credit)
			}
		}
	}
	return balance, nil
}

func (m *MemoryLedgerStore) SaveEntry(ctx context.Context, entry models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if e.ID == entry.ID {
			return models.NewDuplicateError(fmt.Sprintf("journal entry %q already stored", entry.ID))
		}
	}
	entry.Lines = append([]models.LineItem(nil), entry.Lines...)
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MemoryLedgerStore) GetLedgerEntries(ctx context.Context) ([]models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]models.LedgerEntry, len(m.entries))
	for i, e := range m.entries {
		e.Lines = append([]models.LineItem(nil), e.Lines...)
		copied[i] = e
	}
	return copied, nil
}

// Compile-time check: ensure MemoryLedgerStore implements LedgerStore interface
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
