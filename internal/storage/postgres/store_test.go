package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/retailcore/ledger-core/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var storeNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

var transactionColumns = []string{
	"id", "type", "amount", "tax", "description", "payment_method", "category",
	"additional_info", "occurred_at", "reversed", "reversal_reason", "reversal_of",
}

func newMockStore(t *testing.T) (*PostgresLedgerStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresLedgerStore(db), mock
}

func sale(id string) models.Transaction {
	return models.Transaction{
		ID:          id,
		Kind:        models.KindSale,
		Amount:      decimal.RequireFromString("100.00"),
		Tax:         decimal.RequireFromString("12.00"),
		Description: "ticket",
		Category:    "ventas",
		Timestamp:   storeNow,
	}
}

func anyArgs(n int) []driver.Value {
	out := make([]driver.Value, n)
	for i := range out {
		out[i] = sqlmock.AnyArg()
	}
	return out
}

func TestSave(t *testing.T) {
	t.Run("inserts row", func(t *testing.T) {
		store, mock := newMockStore(t)
		args := anyArgs(12)
		args[0], args[1], args[8] = "t-1", "venta", storeNow
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions")).
			WithArgs(args...).
			WillReturnResult(sqlmock.NewResult(1, 1))

		require.NoError(t, store.Save(context.Background(), sale("t-1")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation is a duplicate", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions")).
			WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

		err := store.Save(context.Background(), sale("t-1"))
		assert.True(t, models.IsKind(err, models.ErrDuplicate))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other errors are wrapped", func(t *testing.T) {
		store, mock := newMockStore(t)
		connErr := errors.New("connection reset")
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions")).WillReturnError(connErr)

		err := store.Save(context.Background(), sale("t-1"))
		assert.ErrorIs(t, err, connErr)
		assert.False(t, models.IsKind(err, models.ErrDuplicate))
	})
}

func TestSaveReversal(t *testing.T) {
	reversal := sale("r-1")
	reversal.Variant = models.VariantReversal
	reversal.Amount = reversal.Amount.Neg()
	reversal.ReversalOf = "t-1"

	t.Run("commits both writes", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE transactions SET reversed = TRUE")).
			WithArgs("t-1", "wrong price").
			WillReturnResult(sqlmock.NewResult(0, 1))
		args := anyArgs(12)
		args[0], args[1], args[11] = "r-1", "venta_reverso", "t-1"
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions")).
			WithArgs(args...).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		require.NoError(t, store.SaveReversal(context.Background(), reversal, "t-1", "wrong price"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing or already reversed original rolls back", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE transactions SET reversed = TRUE")).
			WithArgs("t-1", "wrong price").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := store.SaveReversal(context.Background(), reversal, "t-1", "wrong price")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already reversed")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert failure rolls back", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE transactions SET reversed = TRUE")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions")).
			WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		err := store.SaveReversal(context.Background(), reversal, "t-1", "wrong price")
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLoadByDateRange(t *testing.T) {
	start, end := storeNow.AddDate(0, 0, -7), storeNow

	t.Run("parses rows", func(t *testing.T) {
		store, mock := newMockStore(t)
		rows := sqlmock.NewRows(transactionColumns).
			AddRow("t-1", "venta", "100.00", "12.00", "ticket", "efectivo", "ventas", "", storeNow.Add(-time.Hour), true, "wrong price", "").
			AddRow("r-1", "VENTA_REVERSAL", "-100.00", "-12.00", "Reversal: ticket", "efectivo", "ventas", "", storeNow, false, "wrong price", "t-1")
		mock.ExpectQuery(regexp.QuoteMeta("FROM transactions WHERE occurred_at BETWEEN $1 AND $2")).
			WithArgs(start, end).
			WillReturnRows(rows)

		got, err := store.LoadByDateRange(context.Background(), start, end)
		require.NoError(t, err)
		require.Len(t, got, 2)

		assert.Equal(t, models.KindSale, got[0].Kind)
		assert.Equal(t, models.VariantNone, got[0].Variant)
		assert.True(t, got[0].Amount.Equal(decimal.NewFromInt(100)))
		assert.True(t, got[0].Reversed)

		assert.Equal(t, models.VariantReversal, got[1].Variant)
		assert.Equal(t, "t-1", got[1].ReversalOf)
		assert.True(t, got[1].Tax.Equal(decimal.NewFromInt(-12)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown type is a persistence error", func(t *testing.T) {
		store, mock := newMockStore(t)
		rows := sqlmock.NewRows(transactionColumns).
			AddRow("t-9", "donacion", "1.00", "0", "", "", "", "", storeNow, false, "", "")
		mock.ExpectQuery(regexp.QuoteMeta("FROM transactions")).WillReturnRows(rows)

		_, err := store.LoadByDateRange(context.Background(), start, end)
		assert.True(t, models.IsKind(err, models.ErrPersistence))
	})

	t.Run("query error", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM transactions")).WillReturnError(errors.New("timeout"))

		_, err := store.LoadByDateRange(context.Background(), start, end)
		assert.EqualError(t, err, "timeout")
	})
}

func TestAllCategories(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT category FROM transactions")).
		WillReturnRows(sqlmock.NewRows([]string{"category"}).AddRow("compras").AddRow("ventas"))

	cats, err := store.AllCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"compras", "ventas"}, cats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountBalance(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(l.debit - l.credit), 0)")).
		WithArgs("2105", storeNow).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("-120.00"))

	bal, err := store.AccountBalance(context.Background(), "2105", storeNow)
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(-120)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func journalEntry() models.LedgerEntry {
	e := models.NewLedgerEntry(storeNow, "JR-1", "opening balance", "admin")
	e.AddLineItem("1101", "cash", decimal.NewFromInt(500), decimal.Zero)
	e.AddLineItem("3101", "capital", decimal.Zero, decimal.NewFromInt(500))
	e.Post()
	return *e
}

func TestSaveEntry(t *testing.T) {
	t.Run("writes entry and lines", func(t *testing.T) {
		store, mock := newMockStore(t)
		entry := journalEntry()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO journal_entries")).
			WithArgs(entry.ID, storeNow, "JR-1", "opening balance", true, "admin", "", "", false).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO journal_lines")).
			WithArgs(entry.ID, int64(0), "1101", "cash", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO journal_lines")).
			WithArgs(entry.ID, int64(1), "3101", "capital", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		require.NoError(t, store.SaveEntry(context.Background(), entry))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate entry rolls back", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO journal_entries")).
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		err := store.SaveEntry(context.Background(), journalEntry())
		assert.True(t, models.IsKind(err, models.ErrDuplicate))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetLedgerEntries(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM journal_entries ORDER BY entry_date, id")).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "entry_date", "reference", "description", "posted", "created_by",
			"original_entry_id", "reversal_reason", "is_reversal",
		}).
			AddRow("e-1", storeNow, "JR-1", "opening", true, "admin", "", "", false).
			AddRow("e-2", storeNow, "REV-JR-1", "Reversal: opening", false, "admin", "e-1", "typo", true))
	mock.ExpectQuery(regexp.QuoteMeta("FROM journal_lines WHERE entry_id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"entry_id", "account_code", "description", "debit", "credit"}).
			AddRow("e-1", "1101", "cash", "500.00", "0").
			AddRow("e-1", "3101", "capital", "0", "500.00").
			AddRow("e-2", "1101", "Reversal: cash", "0", "500.00"))

	entries, err := store.GetLedgerEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Len(t, entries[0].Lines, 2)
	assert.True(t, entries[0].IsBalanced())
	assert.True(t, entries[1].IsReversal)
	assert.Equal(t, "e-1", entries[1].OriginalEntryID)
	require.Len(t, entries[1].Lines, 1)
	assert.True(t, entries[1].Lines[0].Credit.Equal(decimal.NewFromInt(500)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLedgerEntries_Empty(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM journal_entries")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	entries, err := store.GetLedgerEntries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS transactions")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
