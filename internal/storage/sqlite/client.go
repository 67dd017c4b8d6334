package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/worklens/backend/internal/semantic"
	"github.com/worklens/backend/internal/storage/models"
	"github.com/worklens/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS correlation_runs (
		id TEXT PRIMARY KEY,
		evidence_count INTEGER NOT NULL,
		work_stories_created INTEGER NOT NULL,
		relationships_detected INTEGER NOT NULL,
		avg_confidence_score REAL,
		correlation_coverage REAL,
		confidence_threshold REAL,
		success INTEGER NOT NULL,
		message TEXT,
		processing_time_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON correlation_runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_success ON correlation_runs(success);

	CREATE TABLE IF NOT EXISTS cost_ledger (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		month TEXT NOT NULL,
		spend REAL NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertRunRecord(record *models.RunRecord) error {
	query := `
		INSERT INTO correlation_runs (
			id, evidence_count, work_stories_created, relationships_detected,
			avg_confidence_score, correlation_coverage, confidence_threshold,
			success, message, processing_time_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		record.ID,
		record.EvidenceCount,
		record.WorkStoriesCreated,
		record.RelationshipsDetected,
		record.AvgConfidenceScore,
		record.CorrelationCoverage,
		record.ConfidenceThreshold,
		boolToInt(record.Success),
		record.Message,
		record.ProcessingTimeMS,
		record.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert run record: %w", err)
	}

	logger.Debug("Run record inserted", zap.String("run_id", record.ID))
	return nil
}

func (c *Client) GetRunHistory(limit int) ([]*models.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, evidence_count, work_stories_created, relationships_detected,
			avg_confidence_score, correlation_coverage, confidence_threshold,
			success, message, processing_time_ms, created_at
		FROM correlation_runs
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	var records []*models.RunRecord
	for rows.Next() {
		var record models.RunRecord
		var success int
		var createdAt int64

		err := rows.Scan(
			&record.ID,
			&record.EvidenceCount,
			&record.WorkStoriesCreated,
			&record.RelationshipsDetected,
			&record.AvgConfidenceScore,
			&record.CorrelationCoverage,
			&record.ConfidenceThreshold,
			&success,
			&record.Message,
			&record.ProcessingTimeMS,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run record: %w", err)
		}

		record.Success = success != 0
		record.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, &record)
	}

	return records, rows.Err()
}

// Load implements semantic.LedgerStore. A missing row means no spend yet.
func (c *Client) Load(ctx context.Context) (semantic.LedgerRecord, error) {
	query := `SELECT month, spend FROM cost_ledger WHERE id = 1`

	var record semantic.LedgerRecord
	err := c.db.QueryRowContext(ctx, query).Scan(&record.Month, &record.Spend)
	if err == sql.ErrNoRows {
		return semantic.LedgerRecord{}, nil
	}
	if err != nil {
		return semantic.LedgerRecord{}, fmt.Errorf("failed to load cost ledger: %w", err)
	}
	return record, nil
}

// Save implements semantic.LedgerStore.
func (c *Client) Save(ctx context.Context, record semantic.LedgerRecord) error {
	query := `
		INSERT INTO cost_ledger (id, month, spend, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			month = excluded.month,
			spend = excluded.spend,
			updated_at = excluded.updated_at
	`

	_, err := c.db.ExecContext(ctx, query, record.Month, record.Spend, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save cost ledger: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
