package sales

import (
	"context"
	"errors"
	"testing"

	"github.com/retailcore/ledger-core/internal/models"
	"github.com/retailcore/ledger-core/internal/offline"
	"github.com/retailcore/ledger-core/internal/storage/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	err      error
	recorded []models.Transaction
}

func (f *fakeLedger) Record(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	if f.err != nil {
		return models.Transaction{}, f.err
	}
	tx.ID = "tx-1"
	f.recorded = append(f.recorded, tx)
	return tx, nil
}

func (f *fakeLedger) Exists(tx models.Transaction) bool { return false }

type brokenStock struct{}

func (brokenStock) Available(ctx context.Context, barcode string, quantity int) (bool, error) {
	return false, errors.New("catalog offline")
}

func items() []models.SaleItem {
	return []models.SaleItem{
		{Barcode: "750100", Name: "Pan", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
		{Barcode: "750200", Name: "Leche", Quantity: 1, UnitPrice: decimal.RequireFromString("25.50")},
	}
}

func newService(l *fakeLedger) (*Service, *offline.Queue) {
	q := offline.NewQueue(l)
	stock := memory.NewStockCatalog(map[string]int{"750100": 5, "750200": 1})
	return NewService(l, q, stock, nil), q
}

func TestCheckout_RecordsSale(t *testing.T) {
	l := &fakeLedger{}
	svc, q := newService(l)

	receipt, err := svc.Checkout(context.Background(), CheckoutRequest{
		Items:         items(),
		PaymentMethod: "efectivo",
		Discount:      decimal.RequireFromString("5.50"),
	})
	require.NoError(t, err)
	assert.False(t, receipt.Offline)
	require.Len(t, l.recorded, 1)

	tx := l.recorded[0]
	assert.Equal(t, models.KindSale, tx.Kind)
	assert.True(t, tx.Amount.Equal(decimal.RequireFromString("40.00")))
	assert.Equal(t, "efectivo", tx.PaymentMethod)
	assert.Equal(t, "Sale: 2 items, 3 units, discount 5.50", tx.Description)

	n, err := q.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCheckout_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  CheckoutRequest
	}{
		{"no items", CheckoutRequest{}},
		{"negative discount", CheckoutRequest{Items: items(), Discount: decimal.NewFromInt(-1)}},
		{"zero quantity", CheckoutRequest{Items: []models.SaleItem{{Barcode: "750100", UnitPrice: decimal.NewFromInt(1)}}}},
		{"insufficient stock", CheckoutRequest{Items: []models.SaleItem{{Barcode: "750200", Quantity: 2, UnitPrice: decimal.NewFromInt(1)}}}},
		{"unknown barcode", CheckoutRequest{Items: []models.SaleItem{{Barcode: "999", Quantity: 1, UnitPrice: decimal.NewFromInt(1)}}}},
		{"discount exceeds total", CheckoutRequest{Items: items(), Discount: decimal.NewFromInt(100)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &fakeLedger{}
			svc, _ := newService(l)
			_, err := svc.Checkout(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, models.IsKind(err, models.ErrValidation), "got %v", err)
			assert.Empty(t, l.recorded)
		})
	}
}

func TestCheckout_StockCheckFailure(t *testing.T) {
	l := &fakeLedger{}
	svc := NewService(l, nil, brokenStock{}, nil)
	_, err := svc.Checkout(context.Background(), CheckoutRequest{Items: items()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog offline")
	assert.Empty(t, l.recorded)
}

func TestCheckout_FallsBackToOfflineQueue(t *testing.T) {
	l := &fakeLedger{err: models.NewPersistenceError("failed to save transaction", errors.New("connection refused"))}
	svc, q := newService(l)

	receipt, err := svc.Checkout(context.Background(), CheckoutRequest{Items: items()})
	require.NoError(t, err)
	assert.True(t, receipt.Offline)
	assert.Equal(t, "venta_offline", receipt.Transaction.Tag())
	assert.True(t, receipt.Transaction.Amount.Equal(decimal.RequireFromString("45.50")))

	pending, err := q.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, receipt.Transaction.ID, pending[0].ID)
}

func TestCheckout_NonPersistenceErrorIsNotQueued(t *testing.T) {
	l := &fakeLedger{err: models.NewDuplicateError("already recorded")}
	svc, q := newService(l)

	_, err := svc.Checkout(context.Background(), CheckoutRequest{Items: items()})
	assert.True(t, models.IsKind(err, models.ErrDuplicate))

	n, err := q.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecordPurchaseAndExpense(t *testing.T) {
	l := &fakeLedger{}
	svc, _ := newService(l)
	ctx := context.Background()

	_, err := svc.RecordPurchase(ctx, decimal.NewFromInt(300), "harina", "transferencia")
	require.NoError(t, err)
	_, err = svc.RecordExpense(ctx, decimal.NewFromInt(80), "luz", "tarjeta", "servicios")
	require.NoError(t, err)
	_, err = svc.RecordPayroll(ctx, decimal.NewFromInt(500), "quincena")
	require.NoError(t, err)

	require.Len(t, l.recorded, 3)
	assert.Equal(t, models.KindPurchase, l.recorded[0].Kind)
	assert.Equal(t, "transferencia", l.recorded[0].PaymentMethod)
	assert.Equal(t, models.KindExpense, l.recorded[1].Kind)
	assert.Equal(t, "servicios", l.recorded[1].Category)
	assert.Equal(t, "tarjeta", l.recorded[1].PaymentMethod)
	assert.Equal(t, models.KindPayroll, l.recorded[2].Kind)

	_, err = svc.RecordExpense(ctx, decimal.Zero, "nada", "", "")
	assert.True(t, models.IsKind(err, models.ErrValidation))
}

func TestRecordExpense_FallsBackToOfflineQueue(t *testing.T) {
	l := &fakeLedger{err: models.NewPersistenceError("failed to save transaction", errors.New("timeout"))}
	svc, q := newService(l)

	receipt, err := svc.RecordExpense(context.Background(), decimal.NewFromInt(80), "luz", "efectivo", "")
	require.NoError(t, err)
	assert.True(t, receipt.Offline)
	assert.Equal(t, "gasto_offline", receipt.Transaction.Tag())
	assert.True(t, receipt.Transaction.Amount.Equal(decimal.NewFromInt(-80)))
	assert.Equal(t, "efectivo", receipt.Transaction.PaymentMethod)

	n, err := q.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
