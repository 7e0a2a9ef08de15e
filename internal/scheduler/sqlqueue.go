package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lox/holdemd/internal/engine"
)

// SQLQueue is a durable Queue backed by sqlite. It survives restarts:
// tasks enqueued before a crash deliver after the process comes back.
type SQLQueue struct {
	db *sql.DB
}

// NewSQLQueue opens (and migrates) a sqlite-backed queue at path
func NewSQLQueue(path string) (*SQLQueue, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open queue: %w", err)
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		table_id TEXT NOT NULL,
		token TEXT NOT NULL,
		due_at INTEGER NOT NULL,
		claimed_until INTEGER NOT NULL DEFAULT 0,
		attempts INTEGER NOT NULL DEFAULT 0
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate queue: %w", err)
	}
	return &SQLQueue{db: db}, nil
}

func (q *SQLQueue) Enqueue(ctx context.Context, task engine.Task, dueAt time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO tasks (kind, table_id, token, due_at) VALUES (?, ?, ?, ?)`,
		string(task.Kind), task.TableID, task.Token, dueAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

func (q *SQLQueue) Claim(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, kind, table_id, token, attempts FROM tasks
		 WHERE due_at <= ? AND claimed_until < ?
		 ORDER BY due_at, id LIMIT ?`,
		now.UnixMilli(), now.UnixMilli(), limit)
	if err != nil {
		return nil, err
	}
	var out []Delivery
	for rows.Next() {
		var d Delivery
		var kind string
		if err := rows.Scan(&d.ID, &kind, &d.Task.TableID, &d.Task.Token, &d.Attempts); err != nil {
			rows.Close()
			return nil, err
		}
		d.Task.Kind = engine.TaskKind(kind)
		d.Attempts++
		out = append(out, d)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	until := now.Add(lease).UnixMilli()
	for _, d := range out {
		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET claimed_until = ?, attempts = attempts + 1 WHERE id = ?`, until, d.ID); err != nil {
			return nil, err
		}
	}
	return out, tx.Commit()
}

func (q *SQLQueue) Ack(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	return err
}

func (q *SQLQueue) Close() error { return q.db.Close() }
