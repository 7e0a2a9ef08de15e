// Package store is the persistence adapter for table state. It provides
// per-table optimistic transactions with read-your-writes, an append-only
// event subcollection, per-player private hole cards and immutable hand
// records. The engine never touches storage directly; everything flows
// through a Txn so read/compute/write phases cannot interleave.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/lox/holdemd/internal/deck"
	"github.com/lox/holdemd/internal/engine"
)

// ErrConflict is returned when an optimistic transaction loses the race.
// Callers retry with fresh state, bounded with jitter.
var ErrConflict = errors.New("store: transaction conflict")

// ErrNotFound is returned for missing tables, records or cards
var ErrNotFound = errors.New("store: not found")

// Txn is one per-table transaction. The table snapshot and the hand's
// private cards are read up front; all writes are staged and applied
// atomically at commit, guarded by the table version read at load.
type Txn interface {
	// Table returns the snapshot loaded at transaction start. Mutations to
	// it are committed via SetTable.
	Table() *engine.Table

	// HoleCards returns all private hole cards for the table, pre-read at
	// transaction start so showdown paths never read after writing.
	HoleCards() map[string][]deck.Card

	// SetTable stages the mutated snapshot for commit
	SetTable(t *engine.Table)

	// AppendEvent stages an audit event; the store assigns id, sequence
	// and server timestamp at commit.
	AppendEvent(ev engine.Event)

	// PutPrivateCards stages a private hole-card write for one player
	PutPrivateCards(playerID string, cards []deck.Card)

	// DeletePrivateCards stages deletion for the named players, or for
	// every player when none are named.
	DeletePrivateCards(playerIDs ...string)

	// PutHandRecord stages the immutable hand summary. Writing a hand
	// number that already exists is a conflict.
	PutHandRecord(rec *engine.HandRecord)
}

// Store is the storage contract consumed by the server layer
type Store interface {
	// CreateTable persists a fresh table document
	CreateTable(ctx context.Context, t *engine.Table) error

	// GetTable reads the current table document
	GetTable(ctx context.Context, tableID string) (*engine.Table, error)

	// RunTableTxn runs fn against a consistent snapshot of one table and
	// commits its staged writes atomically. Returns ErrConflict if the
	// table changed underneath; fn must be safe to re-run.
	RunTableTxn(ctx context.Context, tableID string, fn func(txn Txn) error) error

	// GetPrivateCards reads one player's hole cards for the current hand
	GetPrivateCards(ctx context.Context, tableID, playerID string) ([]deck.Card, error)

	// GetHandRecord reads an immutable hand summary
	GetHandRecord(ctx context.Context, tableID string, handNumber int) (*engine.HandRecord, error)

	// ListEvents reads events after the given sequence in commit order
	ListEvents(ctx context.Context, tableID string, afterSeq int64, limit int) ([]engine.Event, error)

	// OverdueTurns lists playing tables whose turn deadline passed before
	// cutoff. The sweeper uses it to adjudicate turns whose scheduled
	// delivery was lost.
	OverdueTurns(ctx context.Context, cutoff time.Time) ([]OverdueTurn, error)

	// ListOpenTables lists ids of tables that are not closed
	ListOpenTables(ctx context.Context) ([]string, error)

	Close() error
}

// OverdueTurn identifies a turn the sweeper should adjudicate
type OverdueTurn struct {
	TableID string
	TurnID  string
}
