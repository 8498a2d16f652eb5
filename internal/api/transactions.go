package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/retailcore/ledger-core/internal/models"
	"github.com/retailcore/ledger-core/internal/sales"
	"github.com/shopspring/decimal"
)

type transactionRequest struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description"`
	PaymentMethod  string          `json:"payment_method"`
	Category       string          `json:"category"`
	AdditionalInfo string          `json:"additional_info"`
	Timestamp      time.Time       `json:"timestamp"`
}

func (req transactionRequest) toTransaction() (models.Transaction, error) {
	kind, variant, err := models.ParseTag(req.Type)
	if err != nil {
		return models.Transaction{}, models.NewValidationError(err.Error())
	}
	return models.Transaction{
		ID:             req.ID,
		Kind:           kind,
		Variant:        variant,
		Amount:         req.Amount,
		Description:    req.Description,
		PaymentMethod:  req.PaymentMethod,
		Category:       req.Category,
		AdditionalInfo: req.AdditionalInfo,
		Timestamp:      req.Timestamp,
	}, nil
}

func (h *Handler) recordTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	tx, err := req.toTransaction()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	recorded, err := h.ledger.Record(r.Context(), tx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, recorded)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		writeJSON(w, http.StatusOK, h.ledger.Transactions())
		return
	}
	p, err := models.ParsePeriod(period)
	if err != nil {
		h.writeError(w, r, models.NewValidationError(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, h.ledger.TransactionsByPeriod(p))
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	tx, ok := h.ledger.Find(id)
	if !ok {
		h.writeError(w, r, models.NewNotFoundError("transaction "+id+" is not in the ledger"))
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *Handler) reverseTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	reversal, err := h.ledger.Reverse(r.Context(), models.Transaction{ID: mux.Vars(r)["id"]}, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reversal)
}

func (h *Handler) postTransactionJournal(w http.ResponseWriter, r *http.Request) {
	entry, err := h.ledger.PostTransactionJournal(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

type totalResponse struct {
	Type   string          `json:"type"`
	Period string          `json:"period,omitempty"`
	Total  decimal.Decimal `json:"total"`
}

func (h *Handler) totals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tag := strings.TrimSpace(q.Get("type"))
	if _, _, err := models.ParseTag(tag); err != nil {
		h.writeError(w, r, models.NewValidationError(err.Error()))
		return
	}

	resp := totalResponse{Type: tag}
	if period := q.Get("period"); period != "" {
		p, err := models.ParsePeriod(period)
		if err != nil {
			h.writeError(w, r, models.NewValidationError(err.Error()))
			return
		}
		resp.Period = string(p)
		resp.Total = h.ledger.TotalByTypeAndPeriod(tag, p)
	} else {
		resp.Total = h.ledger.TotalByType(tag)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	var external []models.Transaction
	if err := decode(w, r, &external); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ledger.Reconcile(external))
}

func (h *Handler) audit(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(h.ledger.AuditLog()))
}

func (h *Handler) categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.ledger.Categories(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req sales.CheckoutRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	receipt, err := h.sales.Checkout(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeReceipt(w, receipt)
}

type outflowRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	PaymentMethod string          `json:"payment_method"`
	Category      string          `json:"category"`
}

func (h *Handler) outflow(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req outflowRequest
		if err := decode(w, r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}

		var (
			receipt sales.Receipt
			err     error
		)
		switch kind {
		case models.KindPurchase:
			receipt, err = h.sales.RecordPurchase(r.Context(), req.Amount, req.Description, req.PaymentMethod)
		case models.KindExpense:
			receipt, err = h.sales.RecordExpense(r.Context(), req.Amount, req.Description, req.PaymentMethod, req.Category)
		default:
			receipt, err = h.sales.RecordPayroll(r.Context(), req.Amount, req.Description)
		}
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeReceipt(w, receipt)
	}
}

// writeReceipt answers 202 when the transaction only reached the offline queue.
func writeReceipt(w http.ResponseWriter, receipt sales.Receipt) {
	status := http.StatusCreated
	if receipt.Offline {
		status = http.StatusAccepted
	}
	writeJSON(w, status, receipt)
}
