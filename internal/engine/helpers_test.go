package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/lox/holdemd/internal/deck"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// testEngine builds an engine with a deterministic deck and predictable
// tokens. cards is the deal order; every new hand gets the same order.
func testEngine(cards []deck.Card) *Engine {
	n := 0
	return New(Params{},
		WithDeckFunc(func() *deck.Deck { return deck.FromCards(cards) }),
		WithTokenFunc(func() string {
			n++
			return fmt.Sprintf("tok-%d", n)
		}),
	)
}

func testConfig() Config {
	return Config{
		Name:        "test",
		SmallBlind:  10,
		BigBlind:    20,
		MinBuyIn:    40,
		MaxBuyIn:    10000,
		MaxSeats:    6,
		TurnTimeout: 30 * time.Second,
		CreatorID:   "p0",
	}
}

// testTable creates a table and seats players p0..pN-1 at indexes 0..N-1
// with the given stacks.
func testTable(t *testing.T, e *Engine, autoNext bool, stacks ...int) *Table {
	t.Helper()
	table, _, err := e.CreateTable("t1", testConfig(), autoNext, testNow)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	for i, chips := range stacks {
		pid := fmt.Sprintf("p%d", i)
		if _, err := e.JoinSeat(table, pid, pid, i, chips, testNow); err != nil {
			t.Fatalf("JoinSeat %s: %v", pid, err)
		}
	}
	return table
}

func mustCards(encoded ...string) []deck.Card {
	cards, err := deck.ParseAll(encoded)
	if err != nil {
		panic(err)
	}
	return cards
}

// startHand begins a hand and returns the dealt hole cards keyed by player
func startHand(t *testing.T, e *Engine, table *Table) map[string][]deck.Card {
	t.Helper()
	eff, err := e.StartHand(table, testNow)
	if err != nil {
		t.Fatalf("StartHand: %v", err)
	}
	return eff.PrivateCards
}

// act applies a player action with the current turn token
func act(t *testing.T, e *Engine, table *Table, hole map[string][]deck.Card, pid string, action ActionType, amount int) *Effects {
	t.Helper()
	eff, err := e.ApplyAction(table, pid, Action{Type: action, Amount: amount, TurnID: table.CurrentTurnID}, hole, testNow)
	if err != nil {
		t.Fatalf("%s %s %d: %v", pid, action, amount, err)
	}
	return eff
}

func assertCode(t *testing.T, err error, code Code) {
	t.Helper()
	if CodeOf(err) != code {
		t.Fatalf("expected error code %s, got %v", code, err)
	}
}

func hasTask(eff *Effects, kind TaskKind) bool {
	for _, task := range eff.Tasks {
		if task.Kind == kind {
			return true
		}
	}
	return false
}

func hasEvent(eff *Effects, typ EventType) bool {
	for _, ev := range eff.Events {
		if ev.Type == typ {
			return true
		}
	}
	return false
}
