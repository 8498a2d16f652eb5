package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/retailcore/ledger-core/internal/models"
	"github.com/retailcore/ledger-core/internal/report"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// parseTime accepts RFC3339 or a plain date. A plain date used as the end
// of a range covers the whole day.
func parseTime(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, models.NewValidationError("invalid time " + strconv.Quote(raw) + ", want RFC3339 or YYYY-MM-DD")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func (h *Handler) newReport(r *http.Request) (*report.BalanceReport, error) {
	rep := report.NewBalanceReport(h.ledger, report.WithClock(h.now), report.WithLogger(h.logger))

	q := r.URL.Query()
	start, end := rep.Period()
	if raw := q.Get("start"); raw != "" {
		t, err := parseTime(raw, false)
		if err != nil {
			return nil, err
		}
		start = t
	}
	if raw := q.Get("end"); raw != "" {
		t, err := parseTime(raw, true)
		if err != nil {
			return nil, err
		}
		end = t
	}
	if err := rep.SetPeriod(start, end); err != nil {
		return nil, err
	}
	return rep, nil
}

func (h *Handler) balanceReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.newReport(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	switch q.Get("format") {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="balance.csv"`)
		w.WriteHeader(http.StatusOK)
		if err := rep.WriteCSV(w); err != nil {
			h.logger.Warn("failed to stream csv report", zap.Error(err))
		}
	case "json":
		start, end := rep.Period()
		writeJSON(w, http.StatusOK, map[string]any{
			"start":           start,
			"end":             end,
			"total_income":    rep.TotalIncome(),
			"total_expenses":  rep.TotalExpenses(),
			"profit":          rep.Profit(),
			"current_balance": rep.CurrentBalance(),
		})
	default:
		include, _ := strconv.ParseBool(q.Get("transactions"))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(rep.GenerateBalanceSheet(include)))
	}
}

func (h *Handler) trends(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lag := 1
	if raw := q.Get("lag"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, r, models.NewValidationError("lag must be an integer"))
			return
		}
		lag = n
	}
	unit := q.Get("unit")
	if unit == "" {
		unit = "months"
	}

	rep, err := h.newReport(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	trends, err := rep.AnalyzeTrends(lag, unit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trends)
}
