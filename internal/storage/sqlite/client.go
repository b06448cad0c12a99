package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/iq-workshop/builder/internal/storage/models"
	"github.com/iq-workshop/builder/pkg/logger"
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

// DB exposes the underlying handle for the warehouse loader, which creates
// tables with schemas known only at runtime.
func (c *Client) DB() *sql.DB {
	return c.db
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		industry TEXT NOT NULL,
		use_case TEXT,
		size TEXT,
		status TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		ended_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS run_steps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		step_id TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		started_at INTEGER NOT NULL,
		ended_at INTEGER,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_run_steps_run ON run_steps(run_id);

	CREATE TABLE IF NOT EXISTS datasets (
		id TEXT PRIMARY KEY,
		folder TEXT UNIQUE NOT NULL,
		industry TEXT NOT NULL,
		use_case TEXT,
		size TEXT,
		table_count INTEGER DEFAULT 0,
		doc_count INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		dataset_id TEXT,
		path TEXT UNIQUE NOT NULL,
		title TEXT NOT NULL,
		format TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_dataset ON documents(dataset_id);

	CREATE TABLE IF NOT EXISTS document_chunks (
		id TEXT PRIMARY KEY,
		doc_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		vector_id TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (doc_id) REFERENCES documents(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_doc ON document_chunks(doc_id);

	CREATE TABLE IF NOT EXISTS chat_history (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT,
		tool_name TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_session ON chat_history(session_id);

	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("Database schema initialized")
	return nil
}

func (c *Client) CreateRun(run *models.Run) error {
	_, err := c.db.Exec(
		`INSERT INTO runs (id, industry, use_case, size, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Industry, run.UseCase, run.Size, run.Status, run.StartedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

func (c *Client) FinishRun(runID, status string) error {
	_, err := c.db.Exec(
		`UPDATE runs SET status = ?, ended_at = ? WHERE id = ?`,
		status, time.Now().Unix(), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

func (c *Client) RecordStep(step *models.RunStep) error {
	var endedAt interface{}
	if step.EndedAt != nil {
		endedAt = step.EndedAt.Unix()
	}

	_, err := c.db.Exec(
		`INSERT INTO run_steps (run_id, step_id, status, error, started_at, ended_at) VALUES (?, ?, ?, ?, ?, ?)`,
		step.RunID, step.StepID, step.Status, step.Error, step.StartedAt.Unix(), endedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record step: %w", err)
	}
	return nil
}

func (c *Client) GetRunSteps(runID string) ([]*models.RunStep, error) {
	rows, err := c.db.Query(
		`SELECT id, run_id, step_id, status, COALESCE(error, ''), started_at, ended_at
		 FROM run_steps WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query run steps: %w", err)
	}
	defer rows.Close()

	var steps []*models.RunStep
	for rows.Next() {
		step := &models.RunStep{}
		var startedAt int64
		var endedAt sql.NullInt64

		if err := rows.Scan(&step.ID, &step.RunID, &step.StepID, &step.Status, &step.Error, &startedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run step: %w", err)
		}

		step.StartedAt = time.Unix(startedAt, 0)
		if endedAt.Valid {
			t := time.Unix(endedAt.Int64, 0)
			step.EndedAt = &t
		}
		steps = append(steps, step)
	}

	return steps, rows.Err()
}

func (c *Client) SaveDataset(ds *models.Dataset) error {
	_, err := c.db.Exec(
		`INSERT INTO datasets (id, folder, industry, use_case, size, table_count, doc_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(folder) DO UPDATE SET
			table_count = excluded.table_count,
			doc_count = excluded.doc_count`,
		ds.ID, ds.Folder, ds.Industry, ds.UseCase, ds.Size, ds.TableCount, ds.DocCount, ds.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}
	return nil
}

func (c *Client) SaveDocument(doc *models.Document) error {
	_, err := c.db.Exec(
		`INSERT INTO documents (id, dataset_id, path, title, format, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET title = excluded.title, format = excluded.format`,
		doc.ID, doc.DatasetID, doc.Path, doc.Title, doc.Format, doc.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (c *Client) SaveChunks(chunks []*models.DocumentChunk) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO document_chunks (id, doc_id, chunk_index, text, vector_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if _, err := stmt.Exec(chunk.ID, chunk.DocID, chunk.ChunkIndex, chunk.Text, chunk.VectorID, chunk.CreatedAt.Unix()); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
		}
	}

	return tx.Commit()
}

func (c *Client) SaveChatMessage(msg *models.ChatMessage) error {
	_, err := c.db.Exec(
		`INSERT INTO chat_history (id, session_id, role, content, tool_name, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, msg.ToolName, msg.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save chat message: %w", err)
	}
	return nil
}

// GetValue reads a key from the kv table. Missing keys return "" without error.
func (c *Client) GetValue(key string) (string, error) {
	var value string
	err := c.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return value, nil
}

func (c *Client) SetValue(key, value string) error {
	_, err := c.db.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}
