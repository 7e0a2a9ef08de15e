package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/lox/holdemd/internal/deck"
	"github.com/lox/holdemd/internal/engine"
)

// SQLStore is the durable Store backed by sqlite. Table documents are
// stored as JSON with a version column for optimistic concurrency; events,
// private cards and hand records live in their own tables (the event
// subcollection exists precisely because server timestamps cannot live
// inside the table document).
type SQLStore struct {
	db    *sql.DB
	clock quartz.Clock
}

// NewSQLStore opens (and migrates) a sqlite-backed store at path
func NewSQLStore(path string, clock quartz.Clock) (*SQLStore, error) {
	if clock == nil {
		clock = quartz.NewReal()
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_fk=1")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite serializes writers; a single connection avoids spurious
	// SQLITE_BUSY under concurrent table transactions.
	db.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLStore{db: db, clock: clock}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tables (
			id TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			doc TEXT NOT NULL,
			deck TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL,
			turn_id TEXT NOT NULL DEFAULT '',
			turn_expires_at INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			table_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			doc TEXT NOT NULL,
			PRIMARY KEY (table_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS private_cards (
			table_id TEXT NOT NULL,
			player_id TEXT NOT NULL,
			cards TEXT NOT NULL,
			PRIMARY KEY (table_id, player_id)
		)`,
		`CREATE TABLE IF NOT EXISTS hands (
			table_id TEXT NOT NULL,
			hand_number INTEGER NOT NULL,
			doc TEXT NOT NULL,
			PRIMARY KEY (table_id, hand_number)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

func encodeTable(t *engine.Table) (doc, deckJSON string, err error) {
	docBytes, err := json.Marshal(t)
	if err != nil {
		return "", "", fmt.Errorf("marshal table: %w", err)
	}
	// The deck is excluded from the document on purpose; it rides in its
	// own column so no read surface ever serializes it by accident.
	deckBytes, err := json.Marshal(deck.Encode(t.Deck))
	if err != nil {
		return "", "", fmt.Errorf("marshal deck: %w", err)
	}
	return string(docBytes), string(deckBytes), nil
}

func decodeTable(doc, deckJSON string) (*engine.Table, error) {
	var t engine.Table
	if err := json.Unmarshal([]byte(doc), &t); err != nil {
		return nil, fmt.Errorf("unmarshal table: %w", err)
	}
	var encoded []string
	if err := json.Unmarshal([]byte(deckJSON), &encoded); err != nil {
		return nil, fmt.Errorf("unmarshal deck: %w", err)
	}
	cards, err := deck.ParseAll(encoded)
	if err != nil {
		return nil, err
	}
	t.Deck = cards
	return &t, nil
}

func (s *SQLStore) CreateTable(ctx context.Context, t *engine.Table) error {
	doc, deckJSON, err := encodeTable(t)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tables (id, version, doc, deck, status, turn_id, turn_expires_at) VALUES (?, 1, ?, ?, ?, '', 0)`,
		t.ID, doc, deckJSON, string(t.Status))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return ErrConflict
		}
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

func (s *SQLStore) GetTable(ctx context.Context, tableID string) (*engine.Table, error) {
	var doc, deckJSON string
	err := s.db.QueryRowContext(ctx, `SELECT doc, deck FROM tables WHERE id = ?`, tableID).Scan(&doc, &deckJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get table: %w", err)
	}
	return decodeTable(doc, deckJSON)
}

func (s *SQLStore) RunTableTxn(ctx context.Context, tableID string, fn func(txn Txn) error) error {
	// READ phase: snapshot the table and every private-card doc before fn
	// computes or stages any write.
	var doc, deckJSON string
	var version int64
	err := s.db.QueryRowContext(ctx,
		`SELECT version, doc, deck FROM tables WHERE id = ?`, tableID).Scan(&version, &doc, &deckJSON)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load table: %w", err)
	}
	table, err := decodeTable(doc, deckJSON)
	if err != nil {
		return err
	}

	hole := make(map[string][]deck.Card)
	rows, err := s.db.QueryContext(ctx,
		`SELECT player_id, cards FROM private_cards WHERE table_id = ?`, tableID)
	if err != nil {
		return fmt.Errorf("load private cards: %w", err)
	}
	for rows.Next() {
		var pid, cardsJSON string
		if err := rows.Scan(&pid, &cardsJSON); err != nil {
			rows.Close()
			return err
		}
		var encoded []string
		if err := json.Unmarshal([]byte(cardsJSON), &encoded); err != nil {
			rows.Close()
			return err
		}
		cards, err := deck.ParseAll(encoded)
		if err != nil {
			rows.Close()
			return err
		}
		hole[pid] = cards
	}
	if err := rows.Close(); err != nil {
		return err
	}

	tx := &memTxn{table: table, hole: hole, puts: make(map[string][]deck.Card)}
	if err := fn(tx); err != nil {
		return err
	}

	// WRITE phase: apply staged writes atomically, guarded by the version
	// read above.
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer dbtx.Rollback()

	staged := tx.staged
	if staged == nil {
		staged = table
	}
	newDoc, newDeck, err := encodeTable(staged)
	if err != nil {
		return err
	}
	res, err := dbtx.ExecContext(ctx,
		`UPDATE tables SET version = version + 1, doc = ?, deck = ?, status = ?, turn_id = ?, turn_expires_at = ?
		 WHERE id = ? AND version = ?`,
		newDoc, newDeck, string(staged.Status), staged.CurrentTurnID, staged.TurnExpiresAt.UnixMilli(),
		tableID, version)
	if err != nil {
		return fmt.Errorf("commit table: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConflict
	}

	now := s.clock.Now()
	for _, ev := range tx.events {
		ev.ID = uuid.NewString()
		ev.Timestamp = now
		evDoc, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		_, err = dbtx.ExecContext(ctx,
			`INSERT INTO events (table_id, seq, id, ts, doc)
			 VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM events WHERE table_id = ?), ?, ?, ?)`,
			tableID, tableID, ev.ID, now.UnixMilli(), string(evDoc))
		if err != nil {
			return fmt.Errorf("append event: %w", err)
		}
	}

	if tx.delAll {
		if _, err := dbtx.ExecContext(ctx, `DELETE FROM private_cards WHERE table_id = ?`, tableID); err != nil {
			return err
		}
	}
	for _, pid := range tx.deletes {
		if _, err := dbtx.ExecContext(ctx,
			`DELETE FROM private_cards WHERE table_id = ? AND player_id = ?`, tableID, pid); err != nil {
			return err
		}
	}
	for pid, cards := range tx.puts {
		cardsJSON, err := json.Marshal(deck.Encode(cards))
		if err != nil {
			return err
		}
		_, err = dbtx.ExecContext(ctx,
			`INSERT INTO private_cards (table_id, player_id, cards) VALUES (?, ?, ?)
			 ON CONFLICT (table_id, player_id) DO UPDATE SET cards = excluded.cards`,
			tableID, pid, string(cardsJSON))
		if err != nil {
			return fmt.Errorf("put private cards: %w", err)
		}
	}

	if tx.record != nil {
		recDoc, err := json.Marshal(tx.record)
		if err != nil {
			return fmt.Errorf("marshal hand record: %w", err)
		}
		_, err = dbtx.ExecContext(ctx,
			`INSERT INTO hands (table_id, hand_number, doc) VALUES (?, ?, ?)`,
			tableID, tx.record.HandNumber, string(recDoc))
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE") {
				return ErrConflict
			}
			return fmt.Errorf("put hand record: %w", err)
		}
	}

	return dbtx.Commit()
}

func (s *SQLStore) GetPrivateCards(ctx context.Context, tableID, playerID string) ([]deck.Card, error) {
	var cardsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT cards FROM private_cards WHERE table_id = ? AND player_id = ?`, tableID, playerID).Scan(&cardsJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var encoded []string
	if err := json.Unmarshal([]byte(cardsJSON), &encoded); err != nil {
		return nil, err
	}
	return deck.ParseAll(encoded)
}

func (s *SQLStore) GetHandRecord(ctx context.Context, tableID string, handNumber int) (*engine.HandRecord, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM hands WHERE table_id = ? AND hand_number = ?`, tableID, handNumber).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec engine.HandRecord
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SQLStore) ListEvents(ctx context.Context, tableID string, afterSeq int64, limit int) ([]engine.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, doc FROM events WHERE table_id = ? AND seq > ? ORDER BY seq LIMIT ?`,
		tableID, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Event
	for rows.Next() {
		var seq int64
		var doc string
		if err := rows.Scan(&seq, &doc); err != nil {
			return nil, err
		}
		var ev engine.Event
		if err := json.Unmarshal([]byte(doc), &ev); err != nil {
			return nil, err
		}
		ev.Seq = seq
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLStore) OverdueTurns(ctx context.Context, cutoff time.Time) ([]OverdueTurn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, turn_id FROM tables
		 WHERE status = ? AND turn_id != '' AND turn_expires_at > 0 AND turn_expires_at < ?
		 ORDER BY id`,
		string(engine.TablePlaying), cutoff.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OverdueTurn
	for rows.Next() {
		var o OverdueTurn
		if err := rows.Scan(&o.TableID, &o.TurnID); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListOpenTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM tables WHERE status != ? ORDER BY id`, string(engine.TableClosed))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
