// Package sales runs the checkout, purchase and expense flows on top of the
// ledger, falling back to the offline queue when the store is unreachable.
package sales

import (
	"context"
	"fmt"

	interfaces "github.com/retailcore/ledger-core/internal/interfaces"
	"github.com/retailcore/ledger-core/internal/models"
	"github.com/retailcore/ledger-core/internal/offline"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Recorder is the ledger entry point used by the flows.
type Recorder interface {
	Record(ctx context.Context, tx models.Transaction) (models.Transaction, error)
}

// Queuer buffers transactions the ledger could not persist.
type Queuer interface {
	Enqueue(ctx context.Context, items []models.SaleItem, paymentMethod string, total, discount decimal.Decimal) (models.Transaction, error)
	EnqueueTransaction(ctx context.Context, tx models.Transaction) (models.Transaction, error)
}

var _ Queuer = (*offline.Queue)(nil)

type CheckoutRequest struct {
	Items         []models.SaleItem `json:"items"`
	PaymentMethod string            `json:"payment_method"`
	Discount      decimal.Decimal   `json:"discount"`
}

// Receipt is the outcome of a flow. Offline is set when the transaction was
// queued instead of recorded.
type Receipt struct {
	Transaction models.Transaction `json:"transaction"`
	Offline     bool               `json:"offline"`
}

type Service struct {
	ledger Recorder
	queue  Queuer
	stock  interfaces.StockChecker
	logger *zap.Logger
}

func NewService(ledger Recorder, queue Queuer, stock interfaces.StockChecker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		ledger: ledger,
		queue:  queue,
		stock:  stock,
		logger: logger,
	}
}

// Checkout records a sale for the requested items. Stock is only consulted,
// never decremented here.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (Receipt, error) {
	if len(req.Items) == 0 {
		return Receipt{}, models.NewValidationError("sale has no items")
	}
	if req.Discount.IsNegative() {
		return Receipt{}, models.NewValidationError("discount must not be negative")
	}

	subtotal := decimal.Zero
	units := 0
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return Receipt{}, models.NewValidationError(fmt.Sprintf("item %q has a non-positive quantity", it.Barcode))
		}
		if it.UnitPrice.IsNegative() {
			return Receipt{}, models.NewValidationError(fmt.Sprintf("item %q has a negative price", it.Barcode))
		}
		if s.stock != nil {
			ok, err := s.stock.Available(ctx, it.Barcode, it.Quantity)
			if err != nil {
				return Receipt{}, fmt.Errorf("failed to check stock for %s: %w", it.Barcode, err)
			}
			if !ok {
				return Receipt{}, models.NewValidationError(fmt.Sprintf("insufficient stock for %q", it.Barcode))
			}
		}
		subtotal = subtotal.Add(it.Subtotal())
		units += it.Quantity
	}

	total := subtotal.Sub(req.Discount)
	if !total.IsPositive() {
		return Receipt{}, models.NewValidationError("sale total must be positive")
	}

	tx := models.Transaction{
		Kind:          models.KindSale,
		Amount:        total,
		PaymentMethod: req.PaymentMethod,
		Description:   offline.SaleDescription(len(req.Items), units, req.Discount),
	}

	recorded, err := s.ledger.Record(ctx, tx)
	if err == nil {
		return Receipt{Transaction: recorded}, nil
	}
	if !models.IsKind(err, models.ErrPersistence) || s.queue == nil {
		return Receipt{}, err
	}

	s.logger.Warn("ledger unavailable, queueing sale offline", zap.Error(err))
	queued, qerr := s.queue.Enqueue(ctx, req.Items, req.PaymentMethod, total, req.Discount)
	if qerr != nil {
		return Receipt{}, qerr
	}
	return Receipt{Transaction: queued, Offline: true}, nil
}

// RecordPurchase records a stock purchase. amount may be given with either sign.
func (s *Service) RecordPurchase(ctx context.Context, amount decimal.Decimal, description, paymentMethod string) (Receipt, error) {
	return s.record(ctx, models.Transaction{
		Kind:          models.KindPurchase,
		Amount:        amount,
		Description:   description,
		PaymentMethod: paymentMethod,
	})
}

// RecordExpense records an operating expense under category, or the chart's
// default when category is empty.
func (s *Service) RecordExpense(ctx context.Context, amount decimal.Decimal, description, paymentMethod, category string) (Receipt, error) {
	return s.record(ctx, models.Transaction{
		Kind:          models.KindExpense,
		Amount:        amount,
		Description:   description,
		PaymentMethod: paymentMethod,
		Category:      category,
	})
}

// RecordPayroll records a payroll payment.
func (s *Service) RecordPayroll(ctx context.Context, amount decimal.Decimal, description string) (Receipt, error) {
	return s.record(ctx, models.Transaction{
		Kind:        models.KindPayroll,
		Amount:      amount,
		Description: description,
	})
}

func (s *Service) record(ctx context.Context, tx models.Transaction) (Receipt, error) {
	if tx.Amount.IsZero() {
		return Receipt{}, models.NewValidationError("amount must not be zero")
	}

	recorded, err := s.ledger.Record(ctx, tx)
	if err == nil {
		return Receipt{Transaction: recorded}, nil
	}
	if !models.IsKind(err, models.ErrPersistence) || s.queue == nil {
		return Receipt{}, err
	}

	s.logger.Warn("ledger unavailable, queueing transaction offline",
		zap.String("type", tx.Tag()),
		zap.Error(err),
	)
	queued, qerr := s.queue.EnqueueTransaction(ctx, tx)
	if qerr != nil {
		return Receipt{}, qerr
	}
	return Receipt{Transaction: queued, Offline: true}, nil
}
