package engine

import (
	"time"

	"github.com/lox/holdemd/internal/deck"
)

// EventType classifies audit-log entries
type EventType string

const (
	EventHandStarted   EventType = "hand_started"
	EventBlindPosted   EventType = "blind_posted"
	EventAction        EventType = "action"
	EventTimeout       EventType = "timeout"
	EventRoundAdvanced EventType = "round_advanced"
	EventShowdown      EventType = "showdown"
	EventWinByFold     EventType = "win_by_fold"
	EventCardsShown    EventType = "cards_shown"
	EventCardsMucked   EventType = "cards_mucked"
	EventHandEnded     EventType = "hand_ended"
	EventSeatJoined    EventType = "seat_joined"
	EventSeatLeft      EventType = "seat_left"
	EventSatOut        EventType = "sat_out"
	EventReturned      EventType = "returned"
	EventPaused        EventType = "paused"
	EventResumed       EventType = "resumed"
	EventRoomClosed    EventType = "room_closed"
)

// Event is one append-only audit entry. Seq and Timestamp are assigned by
// the store at append time; consumers order by timestamp then id.
type Event struct {
	ID         string      `json:"id,omitempty"`
	TableID    string      `json:"tableId"`
	Type       EventType   `json:"type"`
	HandNumber int         `json:"handNumber,omitempty"`
	Round      Round       `json:"round,omitempty"`
	PlayerID   string      `json:"playerId,omitempty"`
	Action     ActionType  `json:"action,omitempty"`
	Amount     int         `json:"amount,omitempty"`
	Cards      []deck.Card `json:"cards,omitempty"`
	Auto       bool        `json:"auto,omitempty"`
	Seq        int64       `json:"seq,omitempty"`
	Timestamp  time.Time   `json:"timestamp,omitempty"`
}

// TaskKind identifies a delayed task variety
type TaskKind string

const (
	TaskTurnTimeout      TaskKind = "turn_timeout"
	TaskShowdownResolve  TaskKind = "showdown_resolve"
	TaskWinByFoldTimeout TaskKind = "win_by_fold_timeout"
	TaskStartNextHand    TaskKind = "start_next_hand"
	TaskRoomAutoClose    TaskKind = "room_auto_close"
)

// Task is a delayed delivery request. It carries the zombie-prevention
// token minted at schedule time; the handler re-reads the table and drops
// the delivery if the token no longer matches.
type Task struct {
	Kind    TaskKind      `json:"kind"`
	TableID string        `json:"tableId"`
	Token   string        `json:"token"`
	Delay   time.Duration `json:"delay"`
}

// PotResult records one resolved pot for the hand record
type PotResult struct {
	Amount   int      `json:"amount"`
	Eligible []string `json:"eligible"` // player ids
	Winners  []string `json:"winners"`
}

// HandFlags mark notable hands for history browsing
type HandFlags struct {
	LargePot        bool `json:"largePot,omitempty"`
	BigHand         bool `json:"bigHand,omitempty"` // full house or better
	AllIn           bool `json:"allIn,omitempty"`
	LastManStanding bool `json:"lastManStanding,omitempty"`
}

// HandRecord is the immutable-once-written summary of a finished hand
type HandRecord struct {
	TableID        string           `json:"tableId"`
	HandNumber     int              `json:"handNumber"`
	DeckHash       string           `json:"deckHash,omitempty"`
	CommunityCards []deck.Card      `json:"communityCards"`
	Actions        []ActionLogEntry `json:"actions"`
	Pots           []PotResult      `json:"pots"`
	Winners        []WinnerResult   `json:"winners"`
	Flags          HandFlags        `json:"flags"`
	EndedAt        time.Time        `json:"endedAt"`
}

// Effects is everything a state transition wants done besides mutating the
// table snapshot itself. Events, private-card writes and the hand record
// are applied inside the same transaction; Tasks are enqueued strictly
// after commit.
type Effects struct {
	Events             []Event
	Tasks              []Task
	PrivateCards       map[string][]deck.Card // playerID -> hole cards to write
	DeletePrivateCards bool                   // drop all private cards for this table
	DeletePlayers      []string               // drop private cards for specific players
	HandRecord         *HandRecord
}

func (e *Effects) event(ev Event) {
	e.Events = append(e.Events, ev)
}

func (e *Effects) task(kind TaskKind, tableID, token string, delay time.Duration) {
	e.Tasks = append(e.Tasks, Task{Kind: kind, TableID: tableID, Token: token, Delay: delay})
}
