package engine

import (
	"time"

	"github.com/lox/holdemd/internal/deck"
)

// TableStatus is the lifecycle status of a table
type TableStatus string

const (
	TableWaiting TableStatus = "waiting"
	TablePlaying TableStatus = "playing"
	TablePaused  TableStatus = "paused"
	TableEnded   TableStatus = "ended"
	TableClosed  TableStatus = "closed"
)

// Round is a betting round within a hand
type Round string

const (
	RoundNone     Round = ""
	RoundPreflop  Round = "preflop"
	RoundFlop     Round = "flop"
	RoundTurn     Round = "turn"
	RoundRiver    Round = "river"
	RoundShowdown Round = "showdown"
)

// Stage marks how the current or just-finished hand is resolving
type Stage string

const (
	StageNone             Stage = ""
	StageShowdown         Stage = "showdown"
	StageShowdownComplete Stage = "showdown_complete"
	StageWinByFold        Stage = "win_by_fold"
)

// SeatStatus is the in-hand status of a seated player
type SeatStatus string

const (
	SeatActive         SeatStatus = "active"
	SeatFolded         SeatStatus = "folded"
	SeatAllIn          SeatStatus = "all_in"
	SeatSittingOut     SeatStatus = "sitting_out"
	SeatWaitingForHand SeatStatus = "waiting_for_hand"
)

// NoSeat marks the absence of a seat index (no current turn, no dealer yet).
const NoSeat = -1

// Config is the immutable-ish table configuration set at creation.
// AutoNext lives on the Table because AFK protection can flip it.
type Config struct {
	Name        string        `json:"name"`
	SmallBlind  int           `json:"smallBlind"`
	BigBlind    int           `json:"bigBlind"`
	MinBuyIn    int           `json:"minBuyIn"`
	MaxBuyIn    int           `json:"maxBuyIn"`
	MaxSeats    int           `json:"maxSeats"`
	TurnTimeout time.Duration `json:"turnTimeout"`
	CreatorID   string        `json:"creatorId"`
}

// Validate checks config sanity at room creation
func (c Config) Validate() error {
	if c.SmallBlind <= 0 || c.BigBlind <= c.SmallBlind {
		return Errorf(CodeInvalidConfig, "blinds must satisfy 0 < small < big, got %d/%d", c.SmallBlind, c.BigBlind)
	}
	if c.MinBuyIn <= 0 || c.MaxBuyIn < c.MinBuyIn {
		return Errorf(CodeInvalidConfig, "buy-in range %d..%d invalid", c.MinBuyIn, c.MaxBuyIn)
	}
	if c.MaxSeats < 2 || c.MaxSeats > 10 {
		return Errorf(CodeInvalidConfig, "max seats must be 2..10, got %d", c.MaxSeats)
	}
	if c.TurnTimeout <= 0 {
		return Errorf(CodeInvalidConfig, "turn timeout must be positive")
	}
	return nil
}

// Seat holds one player's occupancy at the table
type Seat struct {
	Index        int         `json:"index"`
	PlayerID     string      `json:"playerId"`
	DisplayName  string      `json:"displayName"`
	Chips        int         `json:"chips"`
	InitialBuyIn int         `json:"initialBuyIn"`
	Status       SeatStatus  `json:"status"`
	RoundBet     int         `json:"roundBet"`
	TotalBet     int         `json:"totalBet"`
	TurnActed    bool        `json:"turnActed"`
	IsDealer     bool        `json:"isDealer"`
	IsSmallBlind bool        `json:"isSmallBlind"`
	IsBigBlind   bool        `json:"isBigBlind"`
	HoleCards    []deck.Card `json:"holeCards,omitempty"` // public; set only on legal reveal
	TimedOut     bool        `json:"timedOut"`
	SitOutNext   bool        `json:"sitOutNext,omitempty"` // sit-out requested mid-hand; lands at hand end
}

// InHand reports whether the seat was dealt into the current hand and has
// not folded.
func (s *Seat) InHand() bool {
	return s.Status == SeatActive || s.Status == SeatAllIn
}

// CanAct reports whether the seat can still make betting decisions
func (s *Seat) CanAct() bool {
	return s.Status == SeatActive
}

// DeadContribution records chips left behind in the pot by a player who
// left mid-hand. The seat itself is gone, so pot math reads these instead.
type DeadContribution struct {
	PlayerID  string `json:"playerId"`
	SeatIndex int    `json:"seatIndex"`
	TotalBet  int    `json:"totalBet"`
}

// WinnerResult describes one winner of one pot at resolution
type WinnerResult struct {
	PlayerID    string      `json:"playerId"`
	SeatIndex   int         `json:"seatIndex"`
	Amount      int         `json:"amount"`
	HandName    string      `json:"handName,omitempty"`
	Tiebreakers []int       `json:"tiebreakers,omitempty"`
	BestCards   []deck.Card `json:"bestCards,omitempty"`
}

// HandResultSummary is the table-visible outcome of the hand just resolved
type HandResultSummary struct {
	HandNumber int            `json:"handNumber"`
	WinByFold  bool           `json:"winByFold"`
	Pot        int            `json:"pot"`
	Winners    []WinnerResult `json:"winners"`
}

// ActionLogEntry is one line of the per-hand action log kept for the
// immutable HandRecord.
type ActionLogEntry struct {
	Round    Round      `json:"round"`
	PlayerID string     `json:"playerId"`
	Action   ActionType `json:"action"`
	Amount   int        `json:"amount,omitempty"`
	Auto     bool       `json:"auto,omitempty"`
}

// Table is the authoritative per-table state. It is the arena: seats are
// addressed by index, private cards and hand records by compound keys in
// the store. There are no pointer cycles to persist.
type Table struct {
	ID     string      `json:"id"`
	Config Config      `json:"config"`
	Status TableStatus `json:"status"`

	AutoNext     bool `json:"autoNext"`
	EndAfterHand bool `json:"endAfterHand"`

	HandNumber     int         `json:"handNumber"`
	Pot            int         `json:"pot"`
	CommunityCards []deck.Card `json:"communityCards,omitempty"`
	CurrentRound   Round       `json:"currentRound"`
	Stage          Stage       `json:"stage"`

	DealerSeat        int `json:"dealerSeat"`
	CurrentTurn       int `json:"currentTurn"`
	CurrentBet        int `json:"currentBet"`
	MinRaise          int `json:"minRaise"`
	LastAggressorSeat int `json:"lastAggressorSeat"`

	// Zombie-prevention tokens, re-minted on every legitimate transition.
	CurrentTurnID  string `json:"currentTurnId,omitempty"`
	ShowdownID     string `json:"showdownId,omitempty"`
	WinByFoldID    string `json:"winByFoldId,omitempty"`
	NextHandID     string `json:"nextHandId,omitempty"`
	AutoCloseToken string `json:"autoCloseToken,omitempty"`

	TurnExpiresAt   time.Time     `json:"turnExpiresAt,omitempty"`
	PausedRemaining time.Duration `json:"pausedRemaining,omitempty"`

	ConsecutiveAutoActions int `json:"consecutiveAutoActions"`

	DeadContributors []DeadContribution `json:"deadContributors,omitempty"`
	HandResult       *HandResultSummary `json:"handResult,omitempty"`
	ActionLog        []ActionLogEntry   `json:"actionLog,omitempty"`

	// Undealt remainder of the hand's deck. Private to the engine, cleared
	// at hand resolution, never exposed on any read surface.
	Deck []deck.Card `json:"-"`

	// DeckHash commits to the hand's shuffled order at deal time without
	// revealing it; carried into the HandRecord for audit.
	DeckHash string `json:"deckHash,omitempty"`

	Seats []*Seat `json:"seats"` // fixed length MaxSeats; nil means empty

	LastActivityAt time.Time `json:"lastActivityAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NewTable creates a WAITING table from a validated config
func NewTable(id string, cfg Config, autoNext bool, now time.Time) (*Table, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Table{
		ID:                id,
		Config:            cfg,
		Status:            TableWaiting,
		AutoNext:          autoNext,
		DealerSeat:        NoSeat,
		CurrentTurn:       NoSeat,
		LastAggressorSeat: NoSeat,
		Seats:             make([]*Seat, cfg.MaxSeats),
		LastActivityAt:    now,
		CreatedAt:         now,
	}, nil
}

// SeatOf returns the seat occupied by playerID, or nil
func (t *Table) SeatOf(playerID string) *Seat {
	for _, s := range t.Seats {
		if s != nil && s.PlayerID == playerID {
			return s
		}
	}
	return nil
}

// CurrentSeat returns the seat whose turn it is, or nil
func (t *Table) CurrentSeat() *Seat {
	if t.CurrentTurn == NoSeat {
		return nil
	}
	return t.Seats[t.CurrentTurn]
}

// nextOccupied walks clockwise from (but excluding) start and returns the
// first seat index accepted by keep, or NoSeat.
func (t *Table) nextOccupied(start int, keep func(*Seat) bool) int {
	n := len(t.Seats)
	if start < 0 {
		start = n - 1
	}
	for i := 1; i <= n; i++ {
		idx := (start + i) % n
		if s := t.Seats[idx]; s != nil && keep(s) {
			return idx
		}
	}
	return NoSeat
}

// countSeats counts occupied seats accepted by keep
func (t *Table) countSeats(keep func(*Seat) bool) int {
	n := 0
	for _, s := range t.Seats {
		if s != nil && keep(s) {
			n++
		}
	}
	return n
}

// contestants returns seats still in the hand (active or all-in)
func (t *Table) contestants() []*Seat {
	out := make([]*Seat, 0, len(t.Seats))
	for _, s := range t.Seats {
		if s != nil && s.InHand() {
			out = append(out, s)
		}
	}
	return out
}

// eligibleForDeal reports whether a seat can be dealt into a new hand
func (t *Table) eligibleForDeal(s *Seat) bool {
	switch s.Status {
	case SeatActive, SeatWaitingForHand, SeatFolded, SeatAllIn:
		// Folded/all-in statuses are leftovers from the previous hand and
		// get reset when dealing.
		return s.Chips >= t.Config.BigBlind
	default:
		return false
	}
}

// TotalChips sums all chips in play at the table: stacks, streets bets and
// the collected pot. Used by the conservation checks in tests.
func (t *Table) TotalChips() int {
	total := t.Pot
	for _, s := range t.Seats {
		if s != nil {
			total += s.Chips + s.RoundBet
		}
	}
	return total
}

// Clone deep-copies the table so transaction compute can work on a private
// snapshot.
func (t *Table) Clone() *Table {
	c := *t
	c.Seats = make([]*Seat, len(t.Seats))
	for i, s := range t.Seats {
		if s == nil {
			continue
		}
		seat := *s
		seat.HoleCards = append([]deck.Card(nil), s.HoleCards...)
		c.Seats[i] = &seat
	}
	c.CommunityCards = append([]deck.Card(nil), t.CommunityCards...)
	c.Deck = append([]deck.Card(nil), t.Deck...)
	c.DeadContributors = append([]DeadContribution(nil), t.DeadContributors...)
	c.ActionLog = append([]ActionLogEntry(nil), t.ActionLog...)
	if t.HandResult != nil {
		hr := *t.HandResult
		hr.Winners = append([]WinnerResult(nil), t.HandResult.Winners...)
		c.HandResult = &hr
	}
	return &c
}
