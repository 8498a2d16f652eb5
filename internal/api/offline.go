package api

import (
	"net/http"

	"github.com/retailcore/ledger-core/internal/models"
	"github.com/shopspring/decimal"
)

type offlineSaleRequest struct {
	Items         []models.SaleItem `json:"items"`
	PaymentMethod string            `json:"payment_method"`
	Total         decimal.Decimal   `json:"total"`
	Discount      decimal.Decimal   `json:"discount"`
}

func (h *Handler) enqueueOfflineSale(w http.ResponseWriter, r *http.Request) {
	var req offlineSaleRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	tx, err := h.queue.Enqueue(r.Context(), req.Items, req.PaymentMethod, req.Total, req.Discount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, tx)
}

type syncResponse struct {
	Synced  bool `json:"synced"`
	Pending int  `json:"pending"`
}

func (h *Handler) syncOffline(w http.ResponseWriter, r *http.Request) {
	synced, err := h.queue.SyncPending(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	pending, err := h.queue.Len(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{Synced: synced, Pending: pending})
}

func (h *Handler) listOffline(w http.ResponseWriter, r *http.Request) {
	pending, err := h.queue.Pending(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}
