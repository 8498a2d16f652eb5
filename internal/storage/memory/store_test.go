package memory

import (
	"context"
	"testing"
	"time"

	"github.com/retailcore/ledger-core/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sale(id string, amount int64, ts time.Time, category string) models.Transaction {
	return models.Transaction{
		ID:        id,
		Kind:      models.KindSale,
		Amount:    decimal.NewFromInt(amount),
		Timestamp: ts,
		Category:  category,
	}
}

func TestMemoryLedgerStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryLedgerStore()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, sale("a", 10, base, "ventas")))
	require.NoError(t, store.Save(ctx, sale("b", 20, base.Add(24*time.Hour), "ventas")))
	require.NoError(t, store.Save(ctx, sale("c", 30, base.Add(48*time.Hour), "mostrador")))

	got, err := store.LoadByDateRange(ctx, base, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)

	err = store.Save(ctx, sale("a", 10, base, ""))
	assert.True(t, models.IsKind(err, models.ErrDuplicate))

	cats, err := store.AllCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"mostrador", "ventas"}, cats)
}

func TestMemoryLedgerStore_SaveReversal(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryLedgerStore()
	now := time.Now()
	require.NoError(t, store.Save(ctx, sale("orig", 100, now, "")))

	rev := models.Transaction{ID: "rev", Kind: models.KindSale, Variant: models.VariantReversal,
		Amount: decimal.NewFromInt(-100), Timestamp: now, ReversalOf: "orig"}
	require.NoError(t, store.SaveReversal(ctx, rev, "orig", "wrong price"))

	all, err := store.LoadByDateRange(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].Reversed)
	assert.Equal(t, "wrong price", all[0].ReversalReason)

	rev.ID = "rev-2"
	assert.Error(t, store.SaveReversal(ctx, rev, "orig", "again"))
	assert.Error(t, store.SaveReversal(ctx, rev, "missing", "x"))
}

func TestMemoryLedgerStore_Entries(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryLedgerStore()
	asOf := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

	e := models.NewLedgerEntry(asOf.Add(-24*time.Hour), "JE-1", "Cash sale", "admin")
	e.AddLineItem("1101", "Cash", decimal.NewFromInt(50), decimal.Zero)
	e.AddLineItem("4101", "Sales", decimal.Zero, decimal.NewFromInt(50))
	require.True(t, e.Post())
	require.NoError(t, store.SaveEntry(ctx, *e))

	later := models.NewLedgerEntry(asOf.Add(24*time.Hour), "JE-2", "Later sale", "admin")
	later.AddLineItem("1101", "Cash", decimal.NewFromInt(70), decimal.Zero)
	later.AddLineItem("4101", "Sales", decimal.Zero, decimal.NewFromInt(70))
	require.True(t, later.Post())
	require.NoError(t, store.SaveEntry(ctx, *later))

	assert.True(t, models.IsKind(store.SaveEntry(ctx, *e), models.ErrDuplicate))

	cash, err := store.AccountBalance(ctx, "1101", asOf)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(50).Equal(cash))

	sales, err := store.AccountBalance(ctx, "4101", asOf.Add(48*time.Hour))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(-120).Equal(sales))

	entries, err := store.GetLedgerEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	entries[0].Lines[0].AccountCode = "mutated"
	again, _ := store.GetLedgerEntries(ctx)
	assert.Equal(t, "1101", again[0].Lines[0].AccountCode)
}

func TestStockCatalog(t *testing.T) {
	ctx := context.Background()
	c := NewStockCatalog(map[string]int{"750100": 5})

	ok, err := c.Available(ctx, "750100", 5)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = c.Available(ctx, "750100", 6)
	assert.False(t, ok)

	ok, _ = c.Available(ctx, "unknown", 1)
	assert.False(t, ok)

	c.SetQuantity("unknown", 2)
	ok, _ = c.Available(ctx, "unknown", 1)
	assert.True(t, ok)
}
