package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/retailcore/ledger-core/internal/models"
	"github.com/shopspring/decimal"
)

type journalRequest struct {
	Date        time.Time         `json:"date"`
	Reference   string            `json:"reference"`
	Description string            `json:"description"`
	CreatedBy   string            `json:"created_by"`
	Lines       []models.LineItem `json:"lines"`
}

func (h *Handler) postJournal(w http.ResponseWriter, r *http.Request) {
	var req journalRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Date.IsZero() {
		req.Date = h.now()
	}

	entry := models.NewLedgerEntry(req.Date, req.Reference, req.Description, req.CreatedBy)
	for _, l := range req.Lines {
		entry.AddLineItem(l.AccountCode, l.Description, l.Debit, l.Credit)
	}
	if err := h.ledger.PostEntry(r.Context(), entry); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) listJournal(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ledger.Entries(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type balanceResponse struct {
	AccountCode string          `json:"account_code"`
	AsOf        time.Time       `json:"as_of"`
	Balance     decimal.Decimal `json:"balance"`
}

func (h *Handler) accountBalance(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	asOf := h.now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		t, err := parseTime(raw, true)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		asOf = t
	}

	balance, err := h.ledger.AccountBalance(r.Context(), code, asOf)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{AccountCode: code, AsOf: asOf, Balance: balance})
}
