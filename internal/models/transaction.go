package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the business event a Transaction records.
type Kind string

const (
	KindSale     Kind = "venta"
	KindPurchase Kind = "compra"
	KindExpense  Kind = "gasto"
	KindPayroll  Kind = "nomina"
)

// Kinds lists every known kind in a stable order.
var Kinds = []Kind{KindSale, KindPurchase, KindExpense, KindPayroll}

// IsValid reports whether k is one of the known kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindSale, KindPurchase, KindExpense, KindPayroll:
		return true
	}
	return false
}

// IsIncome reports whether the kind brings money in.
func (k Kind) IsIncome() bool {
	return k == KindSale
}

// Sign is the conventional sign of a non-reversal amount of this kind.
func (k Kind) Sign() int {
	if k.IsIncome() {
		return 1
	}
	return -1
}

// Variant qualifies a Kind: a plain event, a reversal of one, or one captured offline.
type Variant string

const (
	VariantNone     Variant = ""
	VariantReversal Variant = "reverso"
	VariantOffline  Variant = "offline"
)

// IsValid reports whether v is a known variant.
func (v Variant) IsValid() bool {
	return v == VariantNone || v == VariantReversal || v == VariantOffline
}

// Transaction is one signed monetary event in the ledger.
// Amount is positive for sales and negative for purchases, expenses and payroll.
type Transaction struct {
	ID             string          `json:"id"`
	Kind           Kind            `json:"kind"`
	Variant        Variant         `json:"variant,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Tax            decimal.Decimal `json:"tax"`
	Description    string          `json:"description"`
	PaymentMethod  string          `json:"payment_method,omitempty"`
	Category       string          `json:"category,omitempty"`
	AdditionalInfo string          `json:"additional_info,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	Reversed       bool            `json:"reversed"`
	ReversalReason string          `json:"reversal_reason,omitempty"`
	ReversalOf     string          `json:"reversal_of,omitempty"`
}

// Tag renders the kind and variant the way they are stored and exported,
// e.g. "venta", "venta_reverso", "compra_offline".
func (t Transaction) Tag() string {
	return FormatTag(t.Kind, t.Variant)
}

// IsReversal reports whether t offsets another transaction.
func (t Transaction) IsReversal() bool {
	return t.Variant == VariantReversal
}

// IsOffline reports whether t is still waiting in the offline queue.
func (t Transaction) IsOffline() bool {
	return t.Variant == VariantOffline
}

// FormatTag joins a kind and variant into a type tag.
func FormatTag(k Kind, v Variant) string {
	if v == VariantNone {
		return string(k)
	}
	return string(k) + "_" + string(v)
}

// ParseTag splits a type tag into its kind and variant. Matching is
// case-insensitive and "_reversal" is accepted as an alias of "_reverso".
func ParseTag(tag string) (Kind, Variant, error) {
	s := strings.ToLower(strings.TrimSpace(tag))
	kind, variant := s, ""
	if i := strings.IndexByte(s, '_'); i >= 0 {
		kind, variant = s[:i], s[i+1:]
	}

	k := Kind(kind)
	if !k.IsValid() {
		return "", "", fmt.Errorf("unknown transaction kind %q", kind)
	}

	var v Variant
	switch variant {
	case "":
		v = VariantNone
	case "reverso", "reversal":
		v = VariantReversal
	case "offline":
		v = VariantOffline
	default:
		return "", "", fmt.Errorf("unknown transaction variant %q", variant)
	}
	return k, v, nil
}

// SaleItem is one line of a point-of-sale ticket.
type SaleItem struct {
	Barcode   string          `json:"barcode"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Subtotal is quantity times unit price.
func (i SaleItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// AmountEpsilon is the tolerance used when comparing monetary amounts.
var AmountEpsilon = decimal.New(1, -3)

// AmountsEqual reports whether a and b differ by less than AmountEpsilon.
func AmountsEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(AmountEpsilon)
}
