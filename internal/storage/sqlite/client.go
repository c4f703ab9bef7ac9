package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/supportdesk/backend/internal/metrics"
	"github.com/supportdesk/backend/internal/storage/models"
	"github.com/supportdesk/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string, busyTimeoutMs int) (*Client, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Immediate transactions take the write lock up front so a resolve
	// never fails while upgrading from a read lock.
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=%d", dbPath, busyTimeoutMs)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS queries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		question TEXT,
		email TEXT,
		escalated INTEGER DEFAULT 0,
		resolution TEXT,
		flag TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_queries_escalated ON queries(escalated);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// InsertEscalation stores a new escalated query and returns it with its
// assigned id.
func (c *Client) InsertEscalation(ctx context.Context, question, email string) (*models.QueryRecord, error) {
	query := `INSERT INTO queries (question, email, escalated) VALUES (?, ?, 1)`

	result, err := c.db.ExecContext(ctx, query, question, email)
	if err != nil {
		return nil, fmt.Errorf("failed to insert escalated query: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read escalated query id: %w", err)
	}

	logger.Debug("Escalated query inserted", zap.Int64("query_id", id))
	return models.NewEscalated(id, question, email), nil
}

func (c *Client) GetQuery(ctx context.Context, id int64) (*models.QueryRecord, error) {
	query := `SELECT id, question, email, escalated, resolution, flag FROM queries WHERE id = ?`

	record, err := scanRecord(c.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get query: %w", err)
	}

	return record, nil
}

// ListPending returns escalated queries oldest first. Rows whose columns
// disagree are logged, counted and left out.
func (c *Client) ListPending(ctx context.Context) ([]models.QueryRecord, error) {
	query := `
		SELECT id, question, email, escalated, resolution, flag
		FROM queries
		WHERE escalated = 1
		ORDER BY id ASC
	`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending queries: %w", err)
	}
	defer rows.Close()

	records := make([]models.QueryRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if errors.Is(err, models.ErrInconsistentRecord) {
			metrics.InconsistentRecords.Inc()
			logger.Warn("Skipping inconsistent query row", zap.Error(err))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending queries: %w", err)
	}

	return records, nil
}

func (c *Client) CountPending(ctx context.Context) (int, error) {
	var count int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queries WHERE escalated = 1`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending queries: %w", err)
	}
	return count, nil
}

// ResolveQuery sets the resolution and flag and clears the escalated flag
// in one transaction. It returns the state the record was in beforehand.
func (c *Client) ResolveQuery(ctx context.Context, id int64, res models.Resolution) (models.State, *models.QueryRecord, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	record, err := scanRecord(tx.QueryRowContext(ctx,
		`SELECT id, question, email, escalated, resolution, flag FROM queries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, fmt.Errorf("%w: id %d", models.ErrNotFound, id)
	}
	if err != nil {
		return 0, nil, fmt.Errorf("failed to load query: %w", err)
	}
	previous := record.State

	_, err = tx.ExecContext(ctx,
		`UPDATE queries SET escalated = 0, resolution = ?, flag = ? WHERE id = ?`,
		res.Text, res.Flag, id)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to resolve query: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("failed to commit resolution: %w", err)
	}

	record.Resolve(res)

	logger.Debug("Query resolved",
		zap.Int64("query_id", id),
		zap.String("previous_state", previous.String()),
	)

	return previous, record, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.QueryRecord, error) {
	var (
		id               int64
		question, email  sql.NullString
		escalated        sql.NullInt64
		resolution, flag sql.NullString
	)

	if err := row.Scan(&id, &question, &email, &escalated, &resolution, &flag); err != nil {
		return nil, err
	}

	return models.Decode(id, question.String, email.String, int(escalated.Int64),
		nullable(resolution), nullable(flag))
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

// IsBusy reports whether err is SQLite lock contention that a retry may
// clear.
func IsBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
