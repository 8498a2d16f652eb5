package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// TopicTransactionRecorded is the default topic for TransactionRecorded events.
const TopicTransactionRecorded = "ledger.transaction_recorded"

// TransactionRecorded is published once a transaction has been persisted.
type TransactionRecorded struct {
	TransactionID string          `json:"transaction_id"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Tax           decimal.Decimal `json:"tax"`
	ReversalOf    string          `json:"reversal_of,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
	RecordedAt    time.Time       `json:"recorded_at"`
}

// Key groups a reversal with its original so both land on one partition.
func (e TransactionRecorded) Key() string {
	if e.ReversalOf != "" {
		return e.ReversalOf
	}
	return e.TransactionID
}
