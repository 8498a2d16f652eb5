package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		tag     string
		kind    Kind
		variant Variant
		wantErr bool
	}{
		{tag: "venta", kind: KindSale, variant: VariantNone},
		{tag: "VENTA", kind: KindSale, variant: VariantNone},
		{tag: "venta_reverso", kind: KindSale, variant: VariantReversal},
		{tag: "gasto_reversal", kind: KindExpense, variant: VariantReversal},
		{tag: "compra_offline", kind: KindPurchase, variant: VariantOffline},
		{tag: " nomina ", kind: KindPayroll, variant: VariantNone},
		{tag: "refund", wantErr: true},
		{tag: "venta_pending", wantErr: true},
		{tag: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			k, v, err := ParseTag(tt.tag)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, k)
			assert.Equal(t, tt.variant, v)
		})
	}
}

func TestTransaction_Tag(t *testing.T) {
	assert.Equal(t, "venta", Transaction{Kind: KindSale}.Tag())
	assert.Equal(t, "venta_reverso", Transaction{Kind: KindSale, Variant: VariantReversal}.Tag())
	assert.Equal(t, "gasto_offline", Transaction{Kind: KindExpense, Variant: VariantOffline}.Tag())

	k, v, err := ParseTag(Transaction{Kind: KindPayroll, Variant: VariantReversal}.Tag())
	require.NoError(t, err)
	assert.Equal(t, KindPayroll, k)
	assert.Equal(t, VariantReversal, v)
}

func TestKind_Sign(t *testing.T) {
	assert.Equal(t, 1, KindSale.Sign())
	assert.Equal(t, -1, KindPurchase.Sign())
	assert.Equal(t, -1, KindExpense.Sign())
	assert.Equal(t, -1, KindPayroll.Sign())
	assert.False(t, Kind("otro").IsValid())
}

func TestSaleItem_Subtotal(t *testing.T) {
	item := SaleItem{Barcode: "750100", Quantity: 3, UnitPrice: decimal.RequireFromString("12.50")}
	assert.True(t, decimal.RequireFromString("37.50").Equal(item.Subtotal()))
}

func TestAmountsEqual(t *testing.T) {
	assert.True(t, AmountsEqual(decimal.RequireFromString("10.0000"), decimal.RequireFromString("10.0009")))
	assert.False(t, AmountsEqual(decimal.RequireFromString("10.00"), decimal.RequireFromString("10.01")))
}
