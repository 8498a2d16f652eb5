package offline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/retailcore/ledger-core/internal/models"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS offline_queue (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	id        TEXT NOT NULL UNIQUE,
	payload   TEXT NOT NULL,
	queued_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// SQLiteStore keeps the queue in a local SQLite file so queued sales
// survive a restart while the main database is unreachable.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLiteStore opens (creating if needed) the queue database at dbPath.
func OpenSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create queue directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database: %w", err)
	}
	// one writer; SQLite serialises anyway
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping queue database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize queue schema: %w", err)
	}
	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Path() string {
	return s.dbPath
}

func (s *SQLiteStore) Append(ctx context.Context, tx models.Transaction) error {
	payload, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to encode transaction: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO offline_queue (id, payload) VALUES (?, ?)`, tx.ID, string(payload))
	if err != nil {
		return fmt.Errorf("failed to queue transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM offline_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove queued transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to remove queued transaction: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %q not queued", id)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM offline_queue ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	defer rows.Close()

	out := make([]models.Transaction, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan queued transaction: %w", err)
		}
		var tx models.Transaction
		if err := json.Unmarshal([]byte(payload), &tx); err != nil {
			return nil, fmt.Errorf("failed to decode queued transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

var _ Store = (*SQLiteStore)(nil)
