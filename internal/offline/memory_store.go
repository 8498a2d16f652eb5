package offline

import (
	"context"
	"fmt"
	"sync"

	"github.com/retailcore/ledger-core/internal/models"
)

// MemoryStore keeps the queue in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	items []models.Transaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make([]models.Transaction, 0)}
}

func (m *MemoryStore) Append(ctx context.Context, tx models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.ID == tx.ID {
			return fmt.Errorf("transaction %q already queued", tx.ID)
		}
	}
	m.items = append(m.items, tx)
	return nil
}

func (m *MemoryStore) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, it := range m.items {
		if it.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("transaction %q not queued", id)
}

func (m *MemoryStore) List(ctx context.Context) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Transaction, len(m.items))
	copy(out, m.items)
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
