package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/feedback-insights/backend/internal/storage/models"
	"github.com/feedback-insights/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: keeps ":memory:" databases shared and serialises writers.
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
	CREATE TABLE IF NOT EXISTS ingestion_runs (
		batch_id TEXT PRIMARY KEY,
		item_count INTEGER NOT NULL,
		succeeded INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ingestion_runs_created ON ingestion_runs(created_at);

	CREATE TABLE IF NOT EXISTS question_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_key TEXT NOT NULL,
		batch_id TEXT NOT NULL,
		item_id INTEGER NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_question_session ON question_history(session_key);
	CREATE INDEX IF NOT EXISTS idx_question_created ON question_history(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertIngestionRun(run *models.IngestionRun) error {
	query := `
		INSERT INTO ingestion_runs (batch_id, item_count, succeeded, failed, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		run.BatchID,
		run.ItemCount,
		run.Succeeded,
		run.Failed,
		run.DurationMS,
		run.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert ingestion run: %w", err)
	}

	logger.Debug("Ingestion run recorded", zap.String("batch_id", run.BatchID))
	return nil
}

// ListIngestionRuns returns the most recent runs first.
func (c *Client) ListIngestionRuns(limit int) ([]models.IngestionRun, error) {
	query := `
		SELECT batch_id, item_count, succeeded, failed, duration_ms, created_at
		FROM ingestion_runs
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingestion runs: %w", err)
	}
	defer rows.Close()

	runs := []models.IngestionRun{}
	for rows.Next() {
		var r models.IngestionRun
		var createdAt int64

		err := rows.Scan(&r.BatchID, &r.ItemCount, &r.Succeeded, &r.Failed, &r.DurationMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.CreatedAt = time.UnixMilli(createdAt)
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

func (c *Client) InsertQuestion(record *models.QuestionRecord) error {
	query := `
		INSERT INTO question_history (session_key, batch_id, item_id, question, answer, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	res, err := c.db.Exec(
		query,
		record.SessionKey,
		record.BatchID,
		record.ItemID,
		record.Question,
		record.Answer,
		record.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert question: %w", err)
	}

	record.ID, _ = res.LastInsertId()

	logger.Debug("Question recorded",
		zap.String("session", record.SessionKey),
		zap.Int64("item_id", record.ItemID),
	)

	return nil
}

func (c *Client) GetQuestionHistory(sessionKey string, limit int) ([]models.QuestionRecord, error) {
	query := `
		SELECT id, session_key, batch_id, item_id, question, answer, created_at
		FROM question_history
		WHERE session_key = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, sessionKey, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get question history: %w", err)
	}
	defer rows.Close()

	records := []models.QuestionRecord{}
	for rows.Next() {
		var r models.QuestionRecord
		var createdAt int64

		err := rows.Scan(&r.ID, &r.SessionKey, &r.BatchID, &r.ItemID, &r.Question, &r.Answer, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.CreatedAt = time.UnixMilli(createdAt)
		records = append(records, r)
	}

	return records, rows.Err()
}
