package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	interfaces "github.com/retailcore/ledger-core/internal/interfaces" // interface LedgerStore
	"github.com/retailcore/ledger-core/internal/models"
	"github.com/shopspring/decimal"
)

// Schema creates the ledger tables when they do not exist yet.
const Schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id              TEXT PRIMARY KEY,
	type            TEXT NOT NULL,
	amount          NUMERIC(18,2) NOT NULL,
	tax             NUMERIC(18,2) NOT NULL DEFAULT 0,
	description     TEXT NOT NULL DEFAULT '',
	payment_method  TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL DEFAULT '',
	additional_info TEXT NOT NULL DEFAULT '',
	occurred_at     TIMESTAMPTZ NOT NULL,
	reversed        BOOLEAN NOT NULL DEFAULT FALSE,
	reversal_reason TEXT NOT NULL DEFAULT '',
	reversal_of     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS transactions_occurred_at_idx ON transactions (occurred_at);

CREATE TABLE IF NOT EXISTS journal_entries (
	id                TEXT PRIMARY KEY,
	entry_date        TIMESTAMPTZ NOT NULL,
	reference         TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	posted            BOOLEAN NOT NULL DEFAULT FALSE,
	created_by        TEXT NOT NULL DEFAULT '',
	original_entry_id TEXT NOT NULL DEFAULT '',
	reversal_reason   TEXT NOT NULL DEFAULT '',
	is_reversal       BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS journal_lines (
	entry_id     TEXT NOT NULL REFERENCES journal_entries (id),
	line_no      INT NOT NULL,
	account_code TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	debit        NUMERIC(18,2) NOT NULL DEFAULT 0,
	credit       NUMERIC(18,2) NOT NULL DEFAULT 0,
	PRIMARY KEY (entry_id, line_no)
);
CREATE INDEX IF NOT EXISTS journal_lines_account_idx ON journal_lines (account_code);
`

const uniqueViolation = "23505"

type PostgresLedgerStore struct {
	db *sql.DB
}

func NewPostgresLedgerStore(db *sql.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		db: db,
	}
}

// Migrate applies Schema.
func (p *PostgresLedgerStore) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

const insertTransaction = `INSERT INTO transactions (id, type, amount, tax, description, payment_method, category, additional_info, occurred_at, reversed, reversal_reason, reversal_of)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

func transactionArgs(tx models.Transaction) []any {
	return []any{
		tx.ID, tx.Tag(), tx.Amount, tx.Tax, tx.Description, tx.PaymentMethod,
		tx.Category, tx.AdditionalInfo, tx.Timestamp, tx.Reversed, tx.ReversalReason, tx.ReversalOf,
	}
}

func (p *PostgresLedgerStore) Save(ctx context.Context, tx models.Transaction) error {
	_, err := p.db.ExecContext(ctx, insertTransaction, transactionArgs(tx)...)
	if isUniqueViolation(err) {
		return models.NewDuplicateError(fmt.Sprintf("transaction %q already stored", tx.ID))
	}
	if err != nil {
		return fmt.Errorf("failed to insert transaction %s: %w", tx.ID, err)
	}
	return nil
}

// SaveReversal flags the original and inserts the reversal in one database
// transaction. An original that is missing or already reversed aborts both.
func (p *PostgresLedgerStore) SaveReversal(ctx context.Context, reversal models.Transaction, originalID, reason string) (err error) {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	const markReversed = `UPDATE transactions SET reversed = TRUE, reversal_reason = $2
	WHERE id = $1 AND NOT reversed`

	res, err := dbTx.ExecContext(ctx, markReversed, originalID, reason)
	if err != nil {
		return fmt.Errorf("failed to mark %s reversed: %w", originalID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("original transaction %q not stored or already reversed", originalID)
	}

	if _, err = dbTx.ExecContext(ctx, insertTransaction, transactionArgs(reversal)...); err != nil {
		if isUniqueViolation(err) {
			return models.NewDuplicateError(fmt.Sprintf("transaction %q already stored", reversal.ID))
		}
		return fmt.Errorf("failed to insert reversal %s: %w", reversal.ID, err)
	}
	return dbTx.Commit()
}

// LoadByDateRange returns transactions with start <= occurred_at <= end.
func (p *PostgresLedgerStore) LoadByDateRange(ctx context.Context, start, end time.Time) ([]models.Transaction, error) {
	const query = `SELECT id, type, amount, tax, description, payment_method, category, additional_info, occurred_at, reversed, reversal_reason, reversal_of
	FROM transactions WHERE occurred_at BETWEEN $1 AND $2 ORDER BY occurred_at, id`

	rows, err := p.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.Transaction
	for rows.Next() {
		var (
			tx  models.Transaction
			tag string
		)
		if err := rows.Scan(
			&tx.ID,
			&tag,
			&tx.Amount,
			&tx.Tax,
			&tx.Description,
			&tx.PaymentMethod,
			&tx.Category,
			&tx.AdditionalInfo,
			&tx.Timestamp,
			&tx.Reversed,
			&tx.ReversalReason,
			&tx.ReversalOf,
		); err != nil {
			return nil, err
		}
		tx.Kind, tx.Variant, err = models.ParseTag(tag)
		if err != nil {
			return nil, models.NewPersistenceError(fmt.Sprintf("transaction %s has an unreadable type", tx.ID), err)
		}
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *PostgresLedgerStore) AllCategories(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT category FROM transactions WHERE category <> '' ORDER BY category`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cats := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (p *PostgresLedgerStore) AccountBalance(ctx context.Context, accountCode string, asOf time.Time) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(l.debit - l.credit), 0)
	FROM journal_lines l JOIN journal_entries e ON e.id = l.entry_id
	WHERE l.account_code = $1 AND e.posted AND e.entry_date <= $2`

	var balance decimal.Decimal
	if err := p.db.QueryRowContext(ctx, query, accountCode, asOf).Scan(&balance); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (p *PostgresLedgerStore) SaveEntry(ctx context.Context, entry models.LedgerEntry) (err error) {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	const insertEntry = `INSERT INTO journal_entries (id, entry_date, reference, description, posted, created_by, original_entry_id, reversal_reason, is_reversal)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = dbTx.ExecContext(ctx, insertEntry,
		entry.ID, entry.Date, entry.Reference, entry.Description, entry.Posted,
		entry.CreatedBy, entry.OriginalEntryID, entry.ReversalReason, entry.IsReversal,
	)
	if isUniqueViolation(err) {
		return models.NewDuplicateError(fmt.Sprintf("journal entry %q already stored", entry.ID))
	}
	if err != nil {
		return fmt.Errorf("failed to insert journal entry %s: %w", entry.ID, err)
	}

	const insertLine = `INSERT INTO journal_lines (entry_id, line_no, account_code, description, debit, credit)
	VALUES ($1,$2,$3,$4,$5,$6)`

	for i, l := range entry.Lines {
		if _, err = dbTx.ExecContext(ctx, insertLine, entry.ID, i, l.AccountCode, l.Description, l.Debit, l.Credit); err != nil {
			return fmt.Errorf("failed to insert line %d of %s: %w", i, entry.ID, err)
		}
	}
	return dbTx.Commit()
}

func (p *PostgresLedgerStore) GetLedgerEntries(ctx context.Context) ([]models.LedgerEntry, error) {
	const query = `SELECT id, entry_date, reference, description, posted, created_by, original_entry_id, reversal_reason, is_reversal
	FROM journal_entries ORDER BY entry_date, id`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.LedgerEntry, 0)
	index := make(map[string]int)
	ids := make([]string, 0)
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(
			&e.ID,
			&e.Date,
			&e.Reference,
			&e.Description,
			&e.Posted,
			&e.CreatedBy,
			&e.OriginalEntryID,
			&e.ReversalReason,
			&e.IsReversal,
		); err != nil {
			return nil, err
		}
		e.Lines = make([]models.LineItem, 0)
		index[e.ID] = len(entries)
		ids = append(ids, e.ID)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return entries, nil
	}

	const linesQuery = `SELECT entry_id, account_code, description, debit, credit
	FROM journal_lines WHERE entry_id = ANY($1) ORDER BY entry_id, line_no`

	lineRows, err := p.db.QueryContext(ctx, linesQuery, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var (
			entryID string
			l       models.LineItem
		)
		if err := lineRows.Scan(&entryID, &l.AccountCode, &l.Description, &l.Debit, &l.Credit); err != nil {
			return nil, err
		}
		if i, ok := index[entryID]; ok {
			entries[i].Lines = append(entries[i].Lines, l)
		}
	}
	if err := lineRows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

var _ interfaces.LedgerStore = (*PostgresLedgerStore)(nil)
