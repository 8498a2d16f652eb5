package memory

import (
	"context"
	"sync"

	interfaces "github.com/retailcore/ledger-core/internal/interfaces"
)

// StockCatalog is an in-memory StockChecker keyed by barcode.
type StockCatalog struct {
	mu     sync.RWMutex
	levels map[string]int
}

func NewStockCatalog(levels map[string]int) *StockCatalog {
	c := &StockCatalog{levels: make(map[string]int, len(levels))}
	for k, v := range levels {
		c.levels[k] = v
	}
	return c
}

func (c *StockCatalog) SetQuantity(barcode string, quantity int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.levels[barcode] = quantity
}

func (c *StockCatalog) Available(ctx context.Context, barcode string, quantity int) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.levels[barcode] >= quantity, nil
}

var _ interfaces.StockChecker = (*StockCatalog)(nil)
