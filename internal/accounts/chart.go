// Package accounts maps transaction kinds onto account codes and derives
// balanced journal postings from recorded transactions.
package accounts

import (
	"fmt"
	"os"
	"sort"

	"github.com/retailcore/ledger-core/internal/models"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Mapping says which accounts a kind moves money between. For income kinds
// Debit is the cash side and Credit the revenue side; for outflows Debit is
// the cost account and Credit the cash side.
type Mapping struct {
	Debit    string `yaml:"debit"`
	Credit   string `yaml:"credit"`
	Category string `yaml:"category"`
}

// Chart is the set of mappings loaded from a chart file.
type Chart struct {
	TaxAccount string                  `yaml:"tax_account"`
	Accounts   map[models.Kind]Mapping `yaml:"accounts"`
}

// DefaultChart is used when no chart file is configured.
func DefaultChart() *Chart {
	return &Chart{
		TaxAccount: "2105",
		Accounts: map[models.Kind]Mapping{
			models.KindSale:     {Debit: "1101", Credit: "4101", Category: "ventas"},
			models.KindPurchase: {Debit: "5101", Credit: "1101", Category: "compras"},
			models.KindExpense:  {Debit: "6101", Credit: "1101", Category: "gastos"},
			models.KindPayroll:  {Debit: "6201", Credit: "1101", Category: "nomina"},
		},
	}
}

// LoadChart reads a YAML chart file.
func LoadChart(path string) (*Chart, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chart file: %w", err)
	}
	return ParseChart(data)
}

// ParseChart decodes and validates a YAML chart.
//
//	tax_account: "2105"
//	accounts:
//	  venta: {debit: "1101", credit: "4101", category: ventas}
func ParseChart(data []byte) (*Chart, error) {
	var c Chart
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse chart: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Chart) validate() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("chart has no accounts")
	}
	kinds := make([]string, 0, len(c.Accounts))
	for k := range c.Accounts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		kind := models.Kind(k)
		if !kind.IsValid() {
			return fmt.Errorf("chart: unknown kind %q", k)
		}
		m := c.Accounts[kind]
		if m.Debit == "" || m.Credit == "" {
			return fmt.Errorf("chart: kind %q needs both debit and credit accounts", k)
		}
	}
	return nil
}

// Lookup returns the mapping for a kind.
func (c *Chart) Lookup(k models.Kind) (Mapping, bool) {
	m, ok := c.Accounts[k]
	return m, ok
}

// Category returns the reporting category for a kind, or "" when unmapped.
func (c *Chart) Category(k models.Kind) string {
	return c.Accounts[k].Category
}

// JournalFor derives a balanced, unposted journal entry from tx. A sale
// with tax debits cash for amount plus tax and credits revenue and the tax
// account separately. Reversals produce the mirror image of the original.
func (c *Chart) JournalFor(tx models.Transaction) (*models.LedgerEntry, error) {
	m, ok := c.Lookup(tx.Kind)
	if !ok {
		return nil, models.NewValidationError(fmt.Sprintf("no accounts mapped for kind %q", tx.Kind))
	}

	amount := tx.Amount.Abs()
	tax := tx.Tax.Abs()
	if tax.IsPositive() && c.TaxAccount == "" {
		return nil, models.NewValidationError("chart has no tax account")
	}

	entry := models.NewLedgerEntry(tx.Timestamp, tx.ID, tx.Description, "ledger")
	entry.ID = tx.ID + "-journal"
	if tx.Kind.IsIncome() {
		entry.AddLineItem(m.Debit, "Cash received", amount.Add(tax), decimal.Zero)
		entry.AddLineItem(m.Credit, "Revenue", decimal.Zero, amount)
		if tax.IsPositive() {
			entry.AddLineItem(c.TaxAccount, "Sales tax payable", decimal.Zero, tax)
		}
	} else {
		entry.AddLineItem(m.Debit, string(tx.Kind), amount, decimal.Zero)
		entry.AddLineItem(m.Credit, "Cash paid", decimal.Zero, amount)
	}

	if tx.IsReversal() {
		rev := entry.NewReversal(tx.ReversalReason)
		rev.ID = tx.ID + "-journal"
		rev.Date = tx.Timestamp
		rev.OriginalEntryID = tx.ReversalOf + "-journal"
		return rev, nil
	}
	return entry, nil
}
