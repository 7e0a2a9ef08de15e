package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/lox/holdemd/internal/deck"
	"github.com/lox/holdemd/internal/engine"
)

// MemStore is an in-memory Store used by tests and single-process demos.
// It implements the same optimistic-concurrency semantics as SQLStore:
// transactions snapshot at load and conflict at commit on version skew.
type MemStore struct {
	mu     sync.Mutex
	clock  quartz.Clock
	tables map[string]*memTable
}

type memTable struct {
	version int64
	doc     *engine.Table
	events  []engine.Event
	seq     int64
	cards   map[string][]deck.Card
	hands   map[int]*engine.HandRecord
}

// NewMemStore creates an empty in-memory store
func NewMemStore(clock quartz.Clock) *MemStore {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &MemStore{clock: clock, tables: make(map[string]*memTable)}
}

func (m *MemStore) CreateTable(_ context.Context, t *engine.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[t.ID]; ok {
		return ErrConflict
	}
	m.tables[t.ID] = &memTable{
		version: 1,
		doc:     t.Clone(),
		cards:   make(map[string][]deck.Card),
		hands:   make(map[int]*engine.HandRecord),
	}
	return nil
}

func (m *MemStore) GetTable(_ context.Context, tableID string) (*engine.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.tables[tableID]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.doc.Clone(), nil
}

type memTxn struct {
	table   *engine.Table
	hole    map[string][]deck.Card
	staged  *engine.Table
	events  []engine.Event
	puts    map[string][]deck.Card
	deletes []string
	delAll  bool
	record  *engine.HandRecord
}

func (tx *memTxn) Table() *engine.Table               { return tx.table }
func (tx *memTxn) HoleCards() map[string][]deck.Card  { return tx.hole }
func (tx *memTxn) SetTable(t *engine.Table)           { tx.staged = t }
func (tx *memTxn) AppendEvent(ev engine.Event)        { tx.events = append(tx.events, ev) }
func (tx *memTxn) PutHandRecord(r *engine.HandRecord) { tx.record = r }

func (tx *memTxn) PutPrivateCards(p string, c []deck.Card) {
	tx.puts[p] = append([]deck.Card(nil), c...)
}
func (tx *memTxn) DeletePrivateCards(playerIDs ...string) {
	if len(playerIDs) == 0 {
		tx.delAll = true
		return
	}
	tx.deletes = append(tx.deletes, playerIDs...)
}

func (m *MemStore) RunTableTxn(_ context.Context, tableID string, fn func(txn Txn) error) error {
	m.mu.Lock()
	rec, ok := m.tables[tableID]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	loadedVersion := rec.version
	tx := &memTxn{
		table: rec.doc.Clone(),
		hole:  make(map[string][]deck.Card, len(rec.cards)),
		puts:  make(map[string][]deck.Card),
	}
	for pid, cards := range rec.cards {
		tx.hole[pid] = append([]deck.Card(nil), cards...)
	}
	m.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.version != loadedVersion {
		return ErrConflict
	}
	if tx.record != nil {
		if _, exists := rec.hands[tx.record.HandNumber]; exists {
			return ErrConflict
		}
	}

	rec.version++
	if tx.staged != nil {
		rec.doc = tx.staged.Clone()
	}
	now := m.clock.Now()
	for _, ev := range tx.events {
		rec.seq++
		ev.ID = uuid.NewString()
		ev.Seq = rec.seq
		ev.Timestamp = now
		rec.events = append(rec.events, ev)
	}
	if tx.delAll {
		rec.cards = make(map[string][]deck.Card)
	}
	for _, pid := range tx.deletes {
		delete(rec.cards, pid)
	}
	for pid, cards := range tx.puts {
		rec.cards[pid] = cards
	}
	if tx.record != nil {
		rec.hands[tx.record.HandNumber] = tx.record
	}
	return nil
}

func (m *MemStore) GetPrivateCards(_ context.Context, tableID, playerID string) ([]deck.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.tables[tableID]
	if !ok {
		return nil, ErrNotFound
	}
	cards, ok := rec.cards[playerID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]deck.Card(nil), cards...), nil
}

func (m *MemStore) GetHandRecord(_ context.Context, tableID string, handNumber int) (*engine.HandRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.tables[tableID]
	if !ok {
		return nil, ErrNotFound
	}
	hand, ok := rec.hands[handNumber]
	if !ok {
		return nil, ErrNotFound
	}
	return hand, nil
}

func (m *MemStore) ListEvents(_ context.Context, tableID string, afterSeq int64, limit int) ([]engine.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.tables[tableID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]engine.Event, 0, limit)
	for _, ev := range rec.events {
		if ev.Seq > afterSeq {
			out = append(out, ev)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MemStore) OverdueTurns(_ context.Context, cutoff time.Time) ([]OverdueTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []OverdueTurn
	for id, rec := range m.tables {
		t := rec.doc
		if t.Status == engine.TablePlaying && t.CurrentTurnID != "" && !t.TurnExpiresAt.IsZero() && t.TurnExpiresAt.Before(cutoff) {
			out = append(out, OverdueTurn{TableID: id, TurnID: t.CurrentTurnID})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableID < out[j].TableID })
	return out, nil
}

func (m *MemStore) ListOpenTables(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id, rec := range m.tables {
		if rec.doc.Status != engine.TableClosed {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemStore) Close() error { return nil }
