// Package report aggregates ledger transactions into period summaries. It
// only reads from its source and never mutates the ledger.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/retailcore/ledger-core/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Source supplies a snapshot of recorded transactions.
type Source interface {
	Transactions() []models.Transaction
}

// Trend keys returned by AnalyzeTrends.
const (
	IncomeChange   = "incomeChange"
	ExpensesChange = "expensesChange"
	ProfitChange   = "profitChange"
)

const (
	csvHeader      = "Tipo,Monto,Descripción,Fecha/Hora"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// BalanceReport computes income, expenses and trends over a reporting window.
type BalanceReport struct {
	mu     sync.RWMutex
	source Source
	start  time.Time
	end    time.Time
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*BalanceReport)

func WithClock(now func() time.Time) Option {
	return func(r *BalanceReport) {
		if now != nil {
			r.now = now
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *BalanceReport) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewBalanceReport returns a report whose window defaults to the current
// calendar month up to now.
func NewBalanceReport(source Source, opts ...Option) *BalanceReport {
	r := &BalanceReport{
		source: source,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	now := r.now()
	r.start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	r.end = now
	return r
}

// SetPeriod fixes the window, inclusive on both ends, for later calls.
func (r *BalanceReport) SetPeriod(start, end time.Time) error {
	if end.Before(start) {
		return models.NewValidationError("report period ends before it starts")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start, r.end = start, end
	return nil
}

// Period returns the current window.
func (r *BalanceReport) Period() (time.Time, time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.start, r.end
}

// TransactionsForPeriod returns transactions with start <= timestamp <= end.
func (r *BalanceReport) TransactionsForPeriod(start, end time.Time) []models.Transaction {
	out := make([]models.Transaction, 0)
	for _, tx := range r.source.Transactions() {
		if !tx.Timestamp.Before(start) && !tx.Timestamp.After(end) {
			out = append(out, tx)
		}
	}
	return out
}

func (r *BalanceReport) windowTransactions() []models.Transaction {
	start, end := r.Period()
	return r.TransactionsForPeriod(start, end)
}

// TotalIncome is the net of all sale-family amounts in the window.
func (r *BalanceReport) TotalIncome() decimal.Decimal {
	return income(r.windowTransactions(), "")
}

// TotalExpenses is the magnitude of all outflow amounts in the window.
func (r *BalanceReport) TotalExpenses() decimal.Decimal {
	return expenses(r.windowTransactions(), "")
}

func (r *BalanceReport) Profit() decimal.Decimal {
	txs := r.windowTransactions()
	return income(txs, "").Sub(expenses(txs, ""))
}

// CurrentBalance is the running sum of every signed amount up to now,
// regardless of the window.
func (r *BalanceReport) CurrentBalance() decimal.Decimal {
	now := r.now()
	total := decimal.Zero
	for _, tx := range r.source.Transactions() {
		if !tx.Timestamp.After(now) {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

func (r *BalanceReport) CategoryIncome(category string) decimal.Decimal {
	return income(r.windowTransactions(), category)
}

func (r *BalanceReport) CategoryExpenses(category string) decimal.Decimal {
	return expenses(r.windowTransactions(), category)
}

func income(txs []models.Transaction, category string) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		if tx.Kind.IsIncome() && inCategory(tx, category) {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

func expenses(txs []models.Transaction, category string) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		if !tx.Kind.IsIncome() && inCategory(tx, category) {
			total = total.Sub(tx.Amount)
		}
	}
	return total
}

func inCategory(tx models.Transaction, category string) bool {
	return category == "" || strings.EqualFold(tx.Category, category)
}

// AnalyzeTrends compares the report window with the window that ends right
// before it starts and reaches back lag units. It returns percentage changes
// for income, expenses and profit. A zero prior total yields 0 instead of an
// infinite change. unit is one of day, week, month or year (plural accepted).
func (r *BalanceReport) AnalyzeTrends(lag int, unit string) (map[string]float64, error) {
	if lag <= 0 {
		return nil, models.NewValidationError("trend lag must be positive")
	}
	shift, err := shiftFor(unit, lag)
	if err != nil {
		return nil, err
	}

	start, end := r.Period()
	priorStart := shift(start)

	current := r.TransactionsForPeriod(start, end)
	prior := make([]models.Transaction, 0)
	for _, tx := range r.TransactionsForPeriod(priorStart, start) {
		if tx.Timestamp.Before(start) {
			prior = append(prior, tx)
		}
	}

	curIncome, curExpenses := income(current, ""), expenses(current, "")
	prevIncome, prevExpenses := income(prior, ""), expenses(prior, "")

	trends := map[string]float64{
		IncomeChange:   percentChange(prevIncome, curIncome),
		ExpensesChange: percentChange(prevExpenses, curExpenses),
		ProfitChange:   percentChange(prevIncome.Sub(prevExpenses), curIncome.Sub(curExpenses)),
	}
	r.logger.Debug("computed trends",
		zap.Int("lag", lag),
		zap.String("unit", unit),
		zap.Any("trends", trends),
	)
	return trends, nil
}

func shiftFor(unit string, lag int) (func(time.Time) time.Time, error) {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(unit)), "s") {
	case "day":
		return func(t time.Time) time.Time { return t.AddDate(0, 0, -lag) }, nil
	case "week":
		return func(t time.Time) time.Time { return t.AddDate(0, 0, -7*lag) }, nil
	case "month":
		return func(t time.Time) time.Time { return t.AddDate(0, -lag, 0) }, nil
	case "year":
		return func(t time.Time) time.Time { return t.AddDate(-lag, 0, 0) }, nil
	}
	return nil, models.NewValidationError(fmt.Sprintf("unknown trend unit %q", unit))
}

func percentChange(prev, cur decimal.Decimal) float64 {
	if prev.IsZero() {
		return 0
	}
	return cur.Sub(prev).Div(prev.Abs()).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

// GenerateBalanceSheet renders the window's summary as plain text,
// optionally followed by one line per transaction.
func (r *BalanceReport) GenerateBalanceSheet(includeTransactions bool) string {
	start, end := r.Period()
	txs := r.TransactionsForPeriod(start, end)
	inc, exp := income(txs, ""), expenses(txs, "")

	var b strings.Builder
	b.WriteString("BALANCE SHEET\n")
	fmt.Fprintf(&b, "Period: %s to %s\n", start.Format(dateTimeLayout), end.Format(dateTimeLayout))
	b.WriteString(strings.Repeat("=", 40) + "\n")
	fmt.Fprintf(&b, "%-20s %19s\n", "Total income:", inc.StringFixed(2))
	fmt.Fprintf(&b, "%-20s %19s\n", "Total expenses:", exp.StringFixed(2))
	fmt.Fprintf(&b, "%-20s %19s\n", "Profit:", inc.Sub(exp).StringFixed(2))
	fmt.Fprintf(&b, "%-20s %19s\n", "Current balance:", r.CurrentBalance().StringFixed(2))

	if includeTransactions {
		b.WriteString(strings.Repeat("-", 40) + "\n")
		fmt.Fprintf(&b, "Transactions (%d):\n", len(txs))
		for _, tx := range txs {
			line := fmt.Sprintf("%s  %-16s %12s  %s", tx.Timestamp.Format(dateTimeLayout), tx.Tag(), tx.Amount.StringFixed(2), tx.Description)
			if tx.Reversed {
				line += " [reversed]"
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

// WriteCSV writes the window's transactions. Fields are joined with commas
// and not quoted, so embedded commas are not escaped.
func (r *BalanceReport) WriteCSV(w io.Writer) error {
	if _, err := io.WriteString(w, csvHeader+"\n"); err != nil {
		return err
	}
	for _, tx := range r.windowTransactions() {
		row := strings.Join([]string{
			tx.Tag(),
			tx.Amount.StringFixed(2),
			tx.Description,
			tx.Timestamp.Format(dateTimeLayout),
		}, ",")
		if _, err := io.WriteString(w, row+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// ExportToCSV writes the window's transactions to path.
func (r *BalanceReport) ExportToCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		r.logger.Warn("failed to create csv export", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := r.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
