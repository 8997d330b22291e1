// Package pg implements taskstore.Store on Postgres using the pgx driver via
// database/sql.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Kochanac/pi-mono/taskstore"
)

// Schema statements are executed one by one: the pgx extended protocol does
// not accept multi-statement strings.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id              TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		subject         TEXT NOT NULL,
		status          TEXT NOT NULL,
		created         TIMESTAMPTZ NOT NULL,
		updated         TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (conversation_id, id)
	)`,
	`CREATE INDEX IF NOT EXISTS tasks_conversation_idx ON tasks (conversation_id, created)`,
}

// OpenDB creates a database/sql connection to Postgres using the pgx driver
// with pool limits suitable for a single agent process.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

// Store implements taskstore.Store on a Postgres database.
type Store struct {
	db *sql.DB
}

// New wraps an open database and ensures the tasks schema exists.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("create tasks schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Create inserts a new task row.
func (s *Store) Create(ctx context.Context, task taskstore.Task) error {
	now := time.Now().UTC()
	if task.Created.IsZero() {
		task.Created = now
	}
	if task.Updated.IsZero() {
		task.Updated = now
	}
	if task.Status == "" {
		task.Status = taskstore.StatusPending
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, conversation_id, subject, status, created, updated)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		task.ID, task.ConversationID, task.Subject, task.Status, task.Created, task.Updated,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// Get returns the task or taskstore.ErrNotFound.
func (s *Store) Get(ctx context.Context, conversationID, id string) (*taskstore.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, conversation_id, subject, status, created, updated
		 FROM tasks WHERE conversation_id = $1 AND id = $2`,
		conversationID, id,
	)

	var task taskstore.Task
	err := row.Scan(&task.ID, &task.ConversationID, &task.Subject, &task.Status, &task.Created, &task.Updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, taskstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select task: %w", err)
	}
	return &task, nil
}

// List returns the conversation's tasks ordered by creation time.
func (s *Store) List(ctx context.Context, conversationID string) ([]taskstore.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, subject, status, created, updated
		 FROM tasks WHERE conversation_id = $1 ORDER BY created`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	defer rows.Close()

	var out []taskstore.Task
	for rows.Next() {
		var task taskstore.Task
		if err := rows.Scan(&task.ID, &task.ConversationID, &task.Subject, &task.Status, &task.Created, &task.Updated); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// UpdateStatus transitions a task to the given status.
func (s *Store) UpdateStatus(ctx context.Context, conversationID, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = $3, updated = $4 WHERE conversation_id = $1 AND id = $2`,
		conversationID, id, status, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return taskstore.ErrNotFound
	}
	return nil
}

// Delete removes a task or returns taskstore.ErrNotFound.
func (s *Store) Delete(ctx context.Context, conversationID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE conversation_id = $1 AND id = $2`,
		conversationID, id,
	)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return taskstore.ErrNotFound
	}
	return nil
}
