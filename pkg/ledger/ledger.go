package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// StatusPending is the status every appended query starts in. Transitions
// happen through a human follow-up process outside this service.
const StatusPending = "pending"

// ErrWriteFailed marks a ledger append that did not reach durable storage.
// Callers must not acknowledge the query to the user when they see it.
var ErrWriteFailed = errors.New("ledger write failed")

// Entry is one appended order-status query.
type Entry struct {
	ID        int64
	UserID    string
	Query     string
	CreatedAt time.Time
	Status    string
}

// Store is an append-only ledger of order-status queries backed by SQLite.
// No update or delete operation exists in this flow.
type Store struct {
	db *sql.DB
}

// Open creates the database file (and parent directory) if needed and
// prepares the order_queries table.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("ledger path is required")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS order_queries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			query TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			status TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create order_queries table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_order_queries_status ON order_queries(status)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create status index: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends exactly one pending query and returns the stored row.
//
// On failure it returns ErrWriteFailed (wrapped) so the caller reports a
// generic failure instead of falsely confirming the query was logged.
func (s *Store) Record(ctx context.Context, userID string, query string) (Entry, error) {
	userID = strings.TrimSpace(userID)
	query = strings.TrimSpace(query)
	if userID == "" || query == "" {
		return Entry{}, fmt.Errorf("%w: user id and query are required", ErrWriteFailed)
	}

	createdAt := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO order_queries (user_id, query, created_at, status)
		VALUES (?, ?, ?, ?)
	`, userID, query, createdAt.Unix(), StatusPending)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	return Entry{
		ID:        id,
		UserID:    userID,
		Query:     query,
		CreatedAt: createdAt,
		Status:    StatusPending,
	}, nil
}

// Pending lists queries awaiting human follow-up, oldest first.
func (s *Store) Pending(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, query, created_at, status
		FROM order_queries
		WHERE status = ?
		ORDER BY created_at ASC
		LIMIT ?
	`, StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var createdAt int64
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Query, &createdAt, &entry.Status); err != nil {
			return nil, fmt.Errorf("scan pending entry: %w", err)
		}
		entry.CreatedAt = time.Unix(createdAt, 0).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending entries: %w", err)
	}

	return entries, nil
}
