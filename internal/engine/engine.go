// Package engine implements the authoritative Texas Hold'em table state
// machine: hand lifecycle, action validation and processing, side-pot and
// showdown resolution, and timeout adjudication.
//
// Every operation is pure compute over a table snapshot: the caller loads
// the table inside a transaction, the engine mutates the snapshot and
// returns an Effects list (events, private-card writes, hand record, and
// post-commit tasks). The caller persists the snapshot and effects and
// enqueues tasks only after the transaction commits.
package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/lox/holdemd/internal/deck"
)

// Params tune hand-flow delays. Zero values fall back to defaults.
type Params struct {
	ShowdownAdmire  time.Duration // pause between showdown reveal and cleanup
	WinByFoldReveal time.Duration // window for the winner to show cards
	NextHandDelay   time.Duration // pause before an auto-started next hand
	IdleClose       time.Duration // idle time before a table auto-closes
}

const (
	defaultShowdownAdmire  = 5 * time.Second
	defaultWinByFoldReveal = 5 * time.Second
	defaultNextHandDelay   = 1 * time.Second
	defaultIdleClose       = 30 * time.Minute
)

func (p Params) withDefaults() Params {
	if p.ShowdownAdmire == 0 {
		p.ShowdownAdmire = defaultShowdownAdmire
	}
	if p.WinByFoldReveal == 0 {
		p.WinByFoldReveal = defaultWinByFoldReveal
	}
	if p.NextHandDelay == 0 {
		p.NextHandDelay = defaultNextHandDelay
	}
	if p.IdleClose == 0 {
		p.IdleClose = defaultIdleClose
	}
	return p
}

// Engine evolves table snapshots. It holds no per-table state of its own
// and is safe for concurrent use across tables.
type Engine struct {
	params    Params
	newDeck   func() *deck.Deck
	mintToken func() string
}

// Option customizes engine construction
type Option func(*Engine)

// WithDeckFunc overrides how fresh decks are produced. Tests use this to
// rig deterministic deals; production always gets a crypto-shuffled deck.
func WithDeckFunc(fn func() *deck.Deck) Option {
	return func(e *Engine) { e.newDeck = fn }
}

// WithTokenFunc overrides zombie-token minting
func WithTokenFunc(fn func() string) Option {
	return func(e *Engine) { e.mintToken = fn }
}

// New creates an engine
func New(params Params, opts ...Option) *Engine {
	e := &Engine{
		params: params.withDefaults(),
		newDeck: func() *deck.Deck {
			d := deck.New()
			d.Shuffle()
			return d
		},
		mintToken: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateTable builds a fresh WAITING table and arms its idle-close window
func (e *Engine) CreateTable(id string, cfg Config, autoNext bool, now time.Time) (*Table, *Effects, error) {
	t, err := NewTable(id, cfg, autoNext, now)
	if err != nil {
		return nil, nil, err
	}
	t.AutoCloseToken = e.mintToken()

	eff := &Effects{}
	eff.task(TaskRoomAutoClose, t.ID, t.AutoCloseToken, e.params.IdleClose)
	return t, eff, nil
}
