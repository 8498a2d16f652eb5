package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem is one debit or credit against an account code.
type LineItem struct {
	AccountCode string          `json:"account_code"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

// LedgerEntry is a double-entry journal posting. It can only move from
// unposted to posted, and only while its debits and credits balance.
type LedgerEntry struct {
	ID              string     `json:"id"`
	Date            time.Time  `json:"date"`
	Reference       string     `json:"reference"`
	Description     string     `json:"description"`
	Lines           []LineItem `json:"lines"`
	Posted          bool       `json:"posted"`
	CreatedBy       string     `json:"created_by"`
	OriginalEntryID string     `json:"original_entry_id,omitempty"`
	ReversalReason  string     `json:"reversal_reason,omitempty"`
	IsReversal      bool       `json:"is_reversal"`
}

// NewLedgerEntry returns an empty unposted entry with a fresh id.
func NewLedgerEntry(date time.Time, reference, description, createdBy string) *LedgerEntry {
	return &LedgerEntry{
		ID:          uuid.New().String(),
		Date:        date,
		Reference:   reference,
		Description: description,
		Lines:       make([]LineItem, 0),
		CreatedBy:   createdBy,
	}
}

// AddLineItem appends a line. Balance is only checked when posting.
func (e *LedgerEntry) AddLineItem(accountCode, description string, debit, credit decimal.Decimal) {
	e.Lines = append(e.Lines, LineItem{
		AccountCode: accountCode,
		Description: description,
		Debit:       debit,
		Credit:      credit,
	})
}

func (e *LedgerEntry) TotalDebits() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Debit)
	}
	return total
}

func (e *LedgerEntry) TotalCredits() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Credit)
	}
	return total
}

// IsBalanced reports whether debits and credits agree within AmountEpsilon.
func (e *LedgerEntry) IsBalanced() bool {
	return AmountsEqual(e.TotalDebits(), e.TotalCredits())
}

// Post marks the entry posted. It returns false and leaves the entry
// untouched when the entry does not balance.
func (e *LedgerEntry) Post() bool {
	if !e.IsBalanced() {
		return false
	}
	e.Posted = true
	return true
}

// NewReversal builds an unposted entry with every line's debit and credit
// swapped. The caller still has to post it.
func (e *LedgerEntry) NewReversal(reason string) *LedgerEntry {
	rev := &LedgerEntry{
		ID:              uuid.New().String(),
		Date:            time.Now(),
		Reference:       "REV-" + e.Reference,
		Description:     "Reversal: " + e.Description,
		Lines:           make([]LineItem, 0, len(e.Lines)),
		CreatedBy:       e.CreatedBy,
		OriginalEntryID: e.ID,
		ReversalReason:  reason,
		IsReversal:      true,
	}
	for _, l := range e.Lines {
		rev.Lines = append(rev.Lines, LineItem{
			AccountCode: l.AccountCode,
			Description: "Reversal: " + l.Description,
			Debit:       l.Credit,
			Credit:      l.Debit,
		})
	}
	return rev
}
