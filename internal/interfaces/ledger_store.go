package interfaces

import (
	"context"
	"time"

	"github.com/retailcore/ledger-core/internal/models"
	"github.com/shopspring/decimal"
)

// LedgerStore persists transactions and journal entries. Every call is a
// single fail-fast write or read; callers must not assume retries.
type LedgerStore interface {
	Save(ctx context.Context, tx models.Transaction) error
	// SaveReversal persists the reversal and flags the original as reversed
	// in one unit of work.
	SaveReversal(ctx context.Context, reversal models.Transaction, originalID, reason string) error
	LoadByDateRange(ctx context.Context, start, end time.Time) ([]models.Transaction, error)
	AllCategories(ctx context.Context) ([]string, error)
	AccountBalance(ctx context.Context, accountCode string, asOf time.Time) (decimal.Decimal, error)

	SaveEntry(ctx context.Context, entry models.LedgerEntry) error
	GetLedgerEntries(ctx context.Context) ([]models.LedgerEntry, error)
}
