package interfaces

import "context"

// StockChecker answers whether a barcode has at least quantity units on hand.
// The ledger never mutates stock.
type StockChecker interface {
	Available(ctx context.Context, barcode string, quantity int) (bool, error)
}
