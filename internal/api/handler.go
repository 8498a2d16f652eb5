// Package api exposes the ledger over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/retailcore/ledger-core/internal/ledger"
	"github.com/retailcore/ledger-core/internal/models"
	"github.com/retailcore/ledger-core/internal/offline"
	"github.com/retailcore/ledger-core/internal/sales"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Handler serves the ledger, offline queue and report endpoints.
type Handler struct {
	ledger *ledger.Ledger
	queue  *offline.Queue
	sales  *sales.Service
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*Handler)

func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithClock sets the clock used for report windows.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

func NewHandler(l *ledger.Ledger, q *offline.Queue, s *sales.Service, opts ...Option) *Handler {
	h := &Handler{
		ledger: l,
		queue:  q,
		sales:  s,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router registers every route on a new mux router.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)

	r.HandleFunc("/transactions", h.recordTransaction).Methods(http.MethodPost)
	r.HandleFunc("/transactions", h.listTransactions).Methods(http.MethodGet)
	r.HandleFunc("/transactions/{id}", h.getTransaction).Methods(http.MethodGet)
	r.HandleFunc("/transactions/{id}/reverse", h.reverseTransaction).Methods(http.MethodPost)
	r.HandleFunc("/transactions/{id}/journal", h.postTransactionJournal).Methods(http.MethodPost)
	r.HandleFunc("/totals", h.totals).Methods(http.MethodGet)
	r.HandleFunc("/reconcile", h.reconcile).Methods(http.MethodPost)
	r.HandleFunc("/audit", h.audit).Methods(http.MethodGet)
	r.HandleFunc("/categories", h.categories).Methods(http.MethodGet)

	r.HandleFunc("/sales", h.checkout).Methods(http.MethodPost)
	r.HandleFunc("/purchases", h.outflow(models.KindPurchase)).Methods(http.MethodPost)
	r.HandleFunc("/expenses", h.outflow(models.KindExpense)).Methods(http.MethodPost)
	r.HandleFunc("/payroll", h.outflow(models.KindPayroll)).Methods(http.MethodPost)

	r.HandleFunc("/offline", h.listOffline).Methods(http.MethodGet)
	r.HandleFunc("/offline/sales", h.enqueueOfflineSale).Methods(http.MethodPost)
	r.HandleFunc("/offline/sync", h.syncOffline).Methods(http.MethodPost)

	r.HandleFunc("/journal", h.postJournal).Methods(http.MethodPost)
	r.HandleFunc("/journal", h.listJournal).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{code}/balance", h.accountBalance).Methods(http.MethodGet)

	r.HandleFunc("/reports/balance", h.balanceReport).Methods(http.MethodGet)
	r.HandleFunc("/reports/trends", h.trends).Methods(http.MethodGet)
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return models.NewValidationError("invalid request body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string           `json:"error"`
	Kind  models.ErrorKind `json:"kind,omitempty"`
}

func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.ErrValidation:
		return http.StatusBadRequest
	case models.ErrImbalance:
		return http.StatusUnprocessableEntity
	case models.ErrNotFound:
		return http.StatusNotFound
	case models.ErrDuplicate:
		return http.StatusConflict
	case models.ErrPersistence:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := models.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}

	msg := err.Error()
	var le *models.Error
	if errors.As(err, &le) && kind == models.ErrPersistence {
		// store details stay in the log
		msg = le.Message
	}
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}
