package engine

import (
	"time"

	"github.com/lox/holdemd/internal/deck"
)

// JoinSeat seats a player at an explicit seat index with a buy-in
func (e *Engine) JoinSeat(t *Table, playerID, displayName string, seatIndex, buyIn int, now time.Time) (*Effects, error) {
	switch t.Status {
	case TableEnded, TableClosed:
		return nil, Errorf(CodeInvalidGameState, "table is %s", t.Status)
	}
	if t.SeatOf(playerID) != nil {
		return nil, Errorf(CodeSeatTaken, "player %s is already seated", playerID)
	}
	if t.countSeats(func(*Seat) bool { return true }) >= t.Config.MaxSeats {
		return nil, Errorf(CodeTableFull, "all %d seats are taken", t.Config.MaxSeats)
	}
	if seatIndex < 0 || seatIndex >= len(t.Seats) {
		return nil, Errorf(CodeInvalidAction, "seat index %d out of range", seatIndex)
	}
	if t.Seats[seatIndex] != nil {
		return nil, Errorf(CodeSeatTaken, "seat %d is occupied", seatIndex)
	}
	if buyIn < t.Config.MinBuyIn || buyIn > t.Config.MaxBuyIn {
		return nil, Errorf(CodeBuyinOutOfRange, "buy-in %d outside %d..%d", buyIn, t.Config.MinBuyIn, t.Config.MaxBuyIn)
	}

	t.Seats[seatIndex] = &Seat{
		Index:        seatIndex,
		PlayerID:     playerID,
		DisplayName:  displayName,
		Chips:        buyIn,
		InitialBuyIn: buyIn,
		Status:       SeatWaitingForHand,
	}
	t.LastActivityAt = now

	eff := &Effects{}
	eff.event(Event{
		TableID:  t.ID,
		Type:     EventSeatJoined,
		PlayerID: playerID,
		Amount:   buyIn,
	})
	return eff, nil
}

// LeaveSeat removes a player from the table. Mid-hand the seat is force
// folded and its contributions stay in the pot as dead money.
func (e *Engine) LeaveSeat(t *Table, playerID string, hole map[string][]deck.Card, now time.Time) (*Effects, error) {
	seat := t.SeatOf(playerID)
	if seat == nil {
		return nil, Errorf(CodeNotSeated, "player %s has no seat", playerID)
	}

	eff := &Effects{}
	eff.event(Event{
		TableID:  t.ID,
		Type:     EventSeatLeft,
		PlayerID: playerID,
	})
	t.LastActivityAt = now

	midHand := (t.Status == TablePlaying || t.Status == TablePaused) && t.CurrentRound != RoundNone
	if !midHand {
		t.Seats[seat.Index] = nil
		return eff, nil
	}

	// Dead money: the seat's street bet moves to the pot immediately and
	// the hand total stays eligible for distribution to the remaining
	// players. This applies to already-folded seats too, or their earlier
	// contributions would vanish from the pot math.
	t.Pot += seat.RoundBet
	if seat.TotalBet > 0 {
		t.DeadContributors = append(t.DeadContributors, DeadContribution{
			PlayerID:  playerID,
			SeatIndex: seat.Index,
			TotalBet:  seat.TotalBet,
		})
	}
	wasInHand := seat.InHand()
	wasTurn := t.CurrentTurn == seat.Index
	t.Seats[seat.Index] = nil
	eff.DeletePlayers = append(eff.DeletePlayers, playerID)

	if !wasInHand || t.Stage != StageNone {
		return eff, nil
	}

	t.ActionLog = append(t.ActionLog, ActionLogEntry{
		Round:    t.CurrentRound,
		PlayerID: playerID,
		Action:   ActionFold,
		Auto:     true,
	})

	if len(t.contestants()) == 1 {
		if err := e.winByFold(t, now, eff); err != nil {
			return nil, err
		}
		return eff, nil
	}
	if wasTurn {
		if err := e.postActionFlow(t, hole, now, eff); err != nil {
			return nil, err
		}
	}
	return eff, nil
}

// SitOut benches a player from future hands while they keep their seat and
// chips. With live cards the hand is folded first; an all-in seat stays in
// the hand and the sit-out lands when it resolves.
func (e *Engine) SitOut(t *Table, playerID string, hole map[string][]deck.Card, now time.Time) (*Effects, error) {
	switch t.Status {
	case TableEnded, TableClosed:
		return nil, Errorf(CodeInvalidGameState, "table is %s", t.Status)
	}
	seat := t.SeatOf(playerID)
	if seat == nil {
		return nil, Errorf(CodeNotSeated, "player %s has no seat", playerID)
	}
	if seat.Status == SeatSittingOut || seat.SitOutNext {
		return nil, Errorf(CodeInvalidAction, "player %s is already sitting out", playerID)
	}

	eff := &Effects{}
	eff.event(Event{TableID: t.ID, Type: EventSatOut, PlayerID: playerID})
	t.LastActivityAt = now

	if t.CurrentRound == RoundNone || !seat.InHand() {
		seat.Status = SeatSittingOut
		return eff, nil
	}

	seat.SitOutNext = true
	if t.Stage != StageNone || seat.Status == SeatAllIn {
		// The hand is already resolving, or the seat is all-in and cannot
		// fold; finishHand applies the flag.
		return eff, nil
	}

	wasTurn := t.CurrentTurn == seat.Index
	seat.Status = SeatFolded
	eff.event(Event{
		TableID:    t.ID,
		Type:       EventAction,
		HandNumber: t.HandNumber,
		Round:      t.CurrentRound,
		PlayerID:   playerID,
		Action:     ActionFold,
		Auto:       true,
	})
	t.ActionLog = append(t.ActionLog, ActionLogEntry{
		Round:    t.CurrentRound,
		PlayerID: playerID,
		Action:   ActionFold,
		Auto:     true,
	})

	if len(t.contestants()) == 1 {
		if err := e.winByFold(t, now, eff); err != nil {
			return nil, err
		}
		return eff, nil
	}
	if wasTurn {
		if err := e.postActionFlow(t, hole, now, eff); err != nil {
			return nil, err
		}
	}
	return eff, nil
}

// Return brings a sitting-out player back into rotation for the next hand
func (e *Engine) Return(t *Table, playerID string, now time.Time) (*Effects, error) {
	switch t.Status {
	case TableEnded, TableClosed:
		return nil, Errorf(CodeInvalidGameState, "table is %s", t.Status)
	}
	seat := t.SeatOf(playerID)
	if seat == nil {
		return nil, Errorf(CodeNotSeated, "player %s has no seat", playerID)
	}
	if !seat.SitOutNext && seat.Status != SeatSittingOut {
		return nil, Errorf(CodeInvalidAction, "player %s is not sitting out", playerID)
	}
	seat.SitOutNext = false
	if seat.Status == SeatSittingOut {
		seat.Status = SeatWaitingForHand
	}
	t.LastActivityAt = now

	eff := &Effects{}
	eff.event(Event{TableID: t.ID, Type: EventReturned, PlayerID: playerID})
	return eff, nil
}

// TogglePause pauses a playing table or resumes a paused one. Host only.
func (e *Engine) TogglePause(t *Table, by string, now time.Time) (*Effects, error) {
	if by != t.Config.CreatorID {
		return nil, Errorf(CodeNotAuthorized, "only the host may pause or resume")
	}
	switch t.Status {
	case TablePlaying:
		return e.pause(t, now)
	case TablePaused:
		return e.Resume(t, by, now)
	default:
		return nil, Errorf(CodeInvalidGameState, "cannot toggle pause while %s", t.Status)
	}
}

func (e *Engine) pause(t *Table, now time.Time) (*Effects, error) {
	t.Status = TablePaused
	if t.CurrentTurn != NoSeat {
		remaining := t.TurnExpiresAt.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		t.PausedRemaining = remaining
		// Invalidate the armed timeout; resume re-mints and re-arms.
		t.CurrentTurnID = ""
	}
	t.LastActivityAt = now

	eff := &Effects{}
	eff.event(Event{TableID: t.ID, Type: EventPaused, HandNumber: t.HandNumber})
	return eff, nil
}

// Resume restarts a paused table, re-arming the interrupted turn with its
// snapshotted remaining time.
func (e *Engine) Resume(t *Table, by string, now time.Time) (*Effects, error) {
	if by != t.Config.CreatorID {
		return nil, Errorf(CodeNotAuthorized, "only the host may resume")
	}
	if t.Status != TablePaused {
		return nil, Errorf(CodeInvalidGameState, "table is %s, not paused", t.Status)
	}
	t.Status = TablePlaying
	t.LastActivityAt = now

	eff := &Effects{}
	eff.event(Event{TableID: t.ID, Type: EventResumed, HandNumber: t.HandNumber})

	if t.CurrentTurn != NoSeat {
		remaining := t.PausedRemaining
		if remaining <= 0 {
			remaining = t.Config.TurnTimeout
		}
		e.beginTurn(t, t.CurrentTurn, remaining, now, eff)
	}
	return eff, nil
}

// SetEndAfterHand schedules the table to end once the current hand
// resolves. On a waiting table it ends immediately.
func (e *Engine) SetEndAfterHand(t *Table, by string, now time.Time) (*Effects, error) {
	if by != t.Config.CreatorID {
		return nil, Errorf(CodeNotAuthorized, "only the host may end the table")
	}
	t.EndAfterHand = true
	t.LastActivityAt = now

	eff := &Effects{}
	if t.Status == TableWaiting {
		t.Status = TableEnded
		eff.event(Event{TableID: t.ID, Type: EventHandEnded, HandNumber: t.HandNumber})
	}
	return eff, nil
}

// DeleteRoom closes a table that is not mid-hand. Host only.
func (e *Engine) DeleteRoom(t *Table, by string, now time.Time) (*Effects, error) {
	if by != t.Config.CreatorID {
		return nil, Errorf(CodeNotAuthorized, "only the host may delete the room")
	}
	if t.Status == TablePlaying || t.Status == TablePaused {
		return nil, Errorf(CodeRoomInPlay, "cannot delete a room mid-hand")
	}
	t.Status = TableClosed
	t.LastActivityAt = now

	eff := &Effects{DeletePrivateCards: true}
	eff.event(Event{TableID: t.ID, Type: EventRoomClosed})
	return eff, nil
}

// AutoClose handles the scheduled idle-close delivery. Active tables
// ignore it; the token is re-armed at every hand end.
func (e *Engine) AutoClose(t *Table, token string, now time.Time) (*Effects, error) {
	if token == "" || token != t.AutoCloseToken {
		return nil, ErrZombieTask
	}
	if t.Status == TablePlaying || t.Status == TablePaused {
		return nil, ErrZombieTask
	}
	if now.Sub(t.LastActivityAt) < e.params.IdleClose {
		return nil, ErrZombieTask
	}
	t.Status = TableClosed

	eff := &Effects{DeletePrivateCards: true}
	eff.event(Event{TableID: t.ID, Type: EventRoomClosed})
	return eff, nil
}
