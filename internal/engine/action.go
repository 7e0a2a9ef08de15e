package engine

import (
	"time"

	"github.com/lox/holdemd/internal/deck"
)

// ActionType is a player betting action
type ActionType string

const (
	ActionFold  ActionType = "fold"
	ActionCheck ActionType = "check"
	ActionCall  ActionType = "call"
	ActionRaise ActionType = "raise"
	ActionAllIn ActionType = "allin"
)

// Action is a player intent. Amount is the raise-to level and only read
// for raises. TurnID, when set, must match the table's current turn token.
type Action struct {
	Type   ActionType `json:"type"`
	Amount int        `json:"amount,omitempty"`
	TurnID string     `json:"turnId,omitempty"`
}

// ApplyAction validates and processes one player action, then drives the
// hand forward (round close, next turn, runout, win by fold, showdown).
// hole carries the hand's private cards, pre-read by the caller inside
// the same transaction; they are needed if this action ends the hand.
func (e *Engine) ApplyAction(t *Table, playerID string, action Action, hole map[string][]deck.Card, now time.Time) (*Effects, error) {
	switch t.Status {
	case TablePlaying:
	case TablePaused:
		return nil, Errorf(CodeGamePaused, "table is paused")
	default:
		return nil, Errorf(CodeInvalidGameState, "table is %s, not playing", t.Status)
	}
	if t.CurrentTurn == NoSeat || t.Stage != StageNone {
		return nil, Errorf(CodeInvalidGameState, "no action pending")
	}
	if action.TurnID != "" && action.TurnID != t.CurrentTurnID {
		return nil, Errorf(CodeStaleAction, "turn token does not match; state has moved on")
	}
	seat := t.CurrentSeat()
	if seat == nil || seat.PlayerID != playerID {
		return nil, Errorf(CodeNotYourTurn, "it is not %s's turn", playerID)
	}

	eff := &Effects{}
	if err := e.applySeatAction(t, seat, action, false, eff); err != nil {
		return nil, err
	}

	// A real decision resets the AFK counter.
	t.ConsecutiveAutoActions = 0
	seat.TimedOut = false
	t.LastActivityAt = now

	if err := e.postActionFlow(t, hole, now, eff); err != nil {
		return nil, err
	}
	return eff, nil
}

// applySeatAction validates per-action legality and mutates the seat and
// betting state. It appends the action event and log entry but does not
// advance the turn.
func (e *Engine) applySeatAction(t *Table, seat *Seat, action Action, auto bool, eff *Effects) error {
	toCall := t.CurrentBet - seat.RoundBet

	applied := action.Type
	amount := 0

	switch action.Type {
	case ActionFold:
		seat.Status = SeatFolded

	case ActionCheck:
		if toCall != 0 {
			return Errorf(CodeInvalidAction, "cannot check facing a bet of %d", toCall)
		}

	case ActionCall:
		if toCall <= 0 {
			return Errorf(CodeInvalidAction, "nothing to call")
		}
		amount = min(seat.Chips, toCall)
		e.commitChips(seat, amount)
		if seat.Status == SeatAllIn {
			applied = ActionAllIn
		}

	case ActionRaise:
		if err := e.applyRaise(t, seat, action.Amount); err != nil {
			return err
		}
		amount = action.Amount
		if seat.Status == SeatAllIn {
			applied = ActionAllIn
		}

	case ActionAllIn:
		if seat.Chips <= 0 {
			return Errorf(CodeInvalidAction, "no chips to move all-in")
		}
		level := seat.RoundBet + seat.Chips
		if level > t.CurrentBet {
			if err := e.applyRaise(t, seat, level); err != nil {
				return err
			}
		} else {
			// All-in for less than the bet: a call for the full stack.
			e.commitChips(seat, seat.Chips)
		}
		amount = level

	default:
		return Errorf(CodeInvalidAction, "unknown action %q", action.Type)
	}

	seat.TurnActed = true

	eff.event(Event{
		TableID:    t.ID,
		Type:       EventAction,
		HandNumber: t.HandNumber,
		Round:      t.CurrentRound,
		PlayerID:   seat.PlayerID,
		Action:     applied,
		Amount:     amount,
		Auto:       auto,
	})
	t.ActionLog = append(t.ActionLog, ActionLogEntry{
		Round:    t.CurrentRound,
		PlayerID: seat.PlayerID,
		Action:   applied,
		Amount:   amount,
		Auto:     auto,
	})
	return nil
}

// applyRaise processes a raise to the given total bet level, enforcing the
// min-raise and the reopen rule.
func (e *Engine) applyRaise(t *Table, seat *Seat, level int) error {
	if level <= t.CurrentBet {
		return Errorf(CodeInvalidAction, "raise to %d must exceed current bet %d", level, t.CurrentBet)
	}
	needed := level - seat.RoundBet
	if needed > seat.Chips {
		return Errorf(CodeInsufficientChips, "raise to %d needs %d chips, have %d", level, needed, seat.Chips)
	}

	increment := level - t.CurrentBet
	allIn := needed == seat.Chips
	if increment < t.MinRaise && !allIn {
		return Errorf(CodeInvalidAction, "raise increment %d is below minimum %d", increment, t.MinRaise)
	}

	e.commitChips(seat, needed)
	t.CurrentBet = level

	if increment >= t.MinRaise {
		// A full raise reopens the action: everyone else must act again.
		t.MinRaise = increment
		t.LastAggressorSeat = seat.Index
		for _, other := range t.Seats {
			if other != nil && other != seat && other.CanAct() {
				other.TurnActed = false
			}
		}
	}
	// A short all-in raise leaves MinRaise and prior callers' TurnActed
	// untouched: they may only call the new level or fold when the turn
	// reaches them naturally.
	return nil
}

// commitChips moves chips from the seat's stack into its street bet
func (e *Engine) commitChips(seat *Seat, amount int) {
	seat.Chips -= amount
	seat.RoundBet += amount
	seat.TotalBet += amount
	if seat.Chips == 0 {
		seat.Status = SeatAllIn
	}
}

// ApplyTimeout adjudicates an expired turn: auto-check when checking is
// free, otherwise auto-fold. Stale deliveries are dropped via the token.
func (e *Engine) ApplyTimeout(t *Table, turnID string, hole map[string][]deck.Card, now time.Time) (*Effects, error) {
	if t.Status != TablePlaying || turnID == "" || turnID != t.CurrentTurnID {
		return nil, ErrZombieTask
	}
	seat := t.CurrentSeat()
	if seat == nil {
		return nil, ErrZombieTask
	}

	chosen := ActionCheck
	if t.CurrentBet-seat.RoundBet > 0 {
		chosen = ActionFold
	}

	eff := &Effects{}
	eff.event(Event{
		TableID:    t.ID,
		Type:       EventTimeout,
		HandNumber: t.HandNumber,
		Round:      t.CurrentRound,
		PlayerID:   seat.PlayerID,
		Action:     chosen,
	})

	if err := e.applySeatAction(t, seat, Action{Type: chosen}, true, eff); err != nil {
		return nil, err
	}
	seat.TimedOut = true
	t.ConsecutiveAutoActions++
	t.LastActivityAt = now

	// AFK protection: a full orbit of auto-actions means nobody is home;
	// require a manual start for the next hand.
	alive := t.countSeats(func(s *Seat) bool {
		return s.Status != SeatFolded && s.Status != SeatSittingOut
	})
	if t.ConsecutiveAutoActions >= alive && alive > 0 {
		t.AutoNext = false
	}

	if err := e.postActionFlow(t, hole, now, eff); err != nil {
		return nil, err
	}
	return eff, nil
}
