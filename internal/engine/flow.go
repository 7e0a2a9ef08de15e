package engine

import (
	"time"

	"github.com/lox/holdemd/internal/deck"
)

// beginTurn hands the action to seatIdx: mints a fresh turn token, stamps
// the deadline and schedules the timeout delivery for after commit.
func (e *Engine) beginTurn(t *Table, seatIdx int, timeout time.Duration, now time.Time, eff *Effects) {
	t.CurrentTurn = seatIdx
	t.CurrentTurnID = e.mintToken()
	t.TurnExpiresAt = now.Add(timeout)
	t.PausedRemaining = 0
	eff.task(TaskTurnTimeout, t.ID, t.CurrentTurnID, timeout)
}

// clearTurn removes the current turn marker; stale timeout deliveries die
// on the token check.
func (t *Table) clearTurn() {
	t.CurrentTurn = NoSeat
	t.CurrentTurnID = ""
	t.TurnExpiresAt = time.Time{}
}

// roundClosed reports whether the current betting round is settled: every
// seat that can still act has acted and matched the bet. Blinds do not
// count as acting, which is what gives the big blind its preflop option.
func (t *Table) roundClosed() bool {
	for _, s := range t.Seats {
		if s == nil || !s.CanAct() {
			continue
		}
		if !s.TurnActed || s.RoundBet != t.CurrentBet {
			return false
		}
	}
	return true
}

// collectBets sweeps street bets into the pot and resets per-round state
func (t *Table) collectBets() {
	for _, s := range t.Seats {
		if s == nil {
			continue
		}
		t.Pot += s.RoundBet
		s.RoundBet = 0
		s.TurnActed = false
	}
	t.CurrentBet = 0
	t.MinRaise = t.Config.BigBlind
	t.LastAggressorSeat = NoSeat
}

// postActionFlow runs after any applied action (voluntary, timeout or
// forced fold on leave): detects last man standing, closes the round, or
// passes the turn to the next seat.
func (e *Engine) postActionFlow(t *Table, hole map[string][]deck.Card, now time.Time, eff *Effects) error {
	if len(t.contestants()) == 1 {
		return e.winByFold(t, now, eff)
	}
	if t.roundClosed() {
		return e.advance(t, hole, now, eff)
	}

	next := t.nextOccupied(t.CurrentTurn, func(s *Seat) bool {
		return s.CanAct() && (!s.TurnActed || s.RoundBet != t.CurrentBet)
	})
	if next == NoSeat {
		// Every remaining decision is settled but the round did not close
		// through the normal predicate; treat as closed.
		return e.advance(t, hole, now, eff)
	}
	e.beginTurn(t, next, t.Config.TurnTimeout, now, eff)
	return nil
}

// advance closes the current betting round and deals the next street.
// When no further betting is possible (effective all-in) it keeps dealing
// until the river and resolves the showdown.
func (e *Engine) advance(t *Table, hole map[string][]deck.Card, now time.Time, eff *Effects) error {
	t.clearTurn()
	for {
		t.collectBets()

		if t.CurrentRound == RoundRiver {
			return e.enterShowdown(t, hole, now, eff)
		}

		var count int
		switch t.CurrentRound {
		case RoundPreflop:
			t.CurrentRound, count = RoundFlop, 3
		case RoundFlop:
			t.CurrentRound, count = RoundTurn, 1
		case RoundTurn:
			t.CurrentRound, count = RoundRiver, 1
		default:
			return Errorf(CodeInvalidGameState, "cannot advance from round %q", t.CurrentRound)
		}

		d := deck.FromCards(t.Deck)
		dealtCards := d.DealN(count)
		t.Deck = d.Remaining()
		t.CommunityCards = append(t.CommunityCards, dealtCards...)
		eff.event(Event{
			TableID:    t.ID,
			Type:       EventRoundAdvanced,
			HandNumber: t.HandNumber,
			Round:      t.CurrentRound,
			Cards:      dealtCards,
		})

		// A street only gets a betting round if two or more players can
		// still make decisions.
		if t.countSeats(func(s *Seat) bool { return s.CanAct() }) >= 2 {
			first := t.nextOccupied(t.DealerSeat, func(s *Seat) bool { return s.CanAct() })
			e.beginTurn(t, first, t.Config.TurnTimeout, now, eff)
			return nil
		}
	}
}

// runOut deals the remaining board immediately and resolves the showdown.
// Used when blinds alone put everyone all-in.
func (e *Engine) runOut(t *Table, hole map[string][]deck.Card, now time.Time, eff *Effects) error {
	return e.advance(t, hole, now, eff)
}

// winByFold ends the hand with a single contestant remaining. The pot is
// awarded without a showdown; the winner keeps a short window to reveal.
func (e *Engine) winByFold(t *Table, now time.Time, eff *Effects) error {
	t.clearTurn()
	t.collectBets()

	winner := t.contestants()[0]
	amount := t.Pot
	winner.Chips += amount
	t.Pot = 0
	t.Stage = StageWinByFold

	t.HandResult = &HandResultSummary{
		HandNumber: t.HandNumber,
		WinByFold:  true,
		Pot:        amount,
		Winners: []WinnerResult{{
			PlayerID:  winner.PlayerID,
			SeatIndex: winner.Index,
			Amount:    amount,
		}},
	}

	eff.event(Event{
		TableID:    t.ID,
		Type:       EventWinByFold,
		HandNumber: t.HandNumber,
		PlayerID:   winner.PlayerID,
		Amount:     amount,
	})

	eff.HandRecord = &HandRecord{
		TableID:        t.ID,
		HandNumber:     t.HandNumber,
		DeckHash:       t.DeckHash,
		CommunityCards: append([]deck.Card(nil), t.CommunityCards...),
		Actions:        append([]ActionLogEntry(nil), t.ActionLog...),
		Pots: []PotResult{{
			Amount:   amount,
			Eligible: []string{winner.PlayerID},
			Winners:  []string{winner.PlayerID},
		}},
		Winners: t.HandResult.Winners,
		Flags: HandFlags{
			LargePot:        amount >= 50*t.Config.BigBlind,
			AllIn:           t.anyAllIn(),
			LastManStanding: true,
		},
		EndedAt: now,
	}

	t.WinByFoldID = e.mintToken()
	eff.task(TaskWinByFoldTimeout, t.ID, t.WinByFoldID, e.params.WinByFoldReveal)
	return nil
}

// ShowCards reveals the winner's hole cards during the win-by-fold window
func (e *Engine) ShowCards(t *Table, playerID string, hole map[string][]deck.Card) (*Effects, error) {
	if t.Stage != StageWinByFold || t.WinByFoldID == "" {
		return nil, Errorf(CodeInvalidGameState, "no reveal window open")
	}
	if t.HandResult == nil || len(t.HandResult.Winners) == 0 || t.HandResult.Winners[0].PlayerID != playerID {
		return nil, Errorf(CodeNotAuthorized, "only the winner may show cards")
	}
	seat := t.SeatOf(playerID)
	if seat == nil {
		return nil, Errorf(CodeNotSeated, "player %s has no seat", playerID)
	}
	cards := hole[playerID]
	if len(cards) == 0 {
		return nil, Errorf(CodeInvalidGameState, "no hole cards to show")
	}
	seat.HoleCards = append([]deck.Card(nil), cards...)

	eff := &Effects{}
	eff.event(Event{
		TableID:    t.ID,
		Type:       EventCardsShown,
		HandNumber: t.HandNumber,
		PlayerID:   playerID,
		Cards:      seat.HoleCards,
	})
	return eff, nil
}

// WinByFoldTimeout closes the reveal window: unrevealed cards muck and the
// hand finishes.
func (e *Engine) WinByFoldTimeout(t *Table, winByFoldID string, now time.Time) (*Effects, error) {
	if t.Stage != StageWinByFold || winByFoldID == "" || winByFoldID != t.WinByFoldID {
		return nil, ErrZombieTask
	}
	t.WinByFoldID = ""

	eff := &Effects{}
	if w := t.HandResult; w != nil && len(w.Winners) > 0 {
		if seat := t.SeatOf(w.Winners[0].PlayerID); seat != nil && len(seat.HoleCards) == 0 {
			eff.event(Event{
				TableID:    t.ID,
				Type:       EventCardsMucked,
				HandNumber: t.HandNumber,
				PlayerID:   w.Winners[0].PlayerID,
			})
		}
	}
	e.finishHand(t, now, eff)
	return eff, nil
}

func (t *Table) anyAllIn() bool {
	for _, s := range t.Seats {
		if s != nil && s.Status == SeatAllIn {
			return true
		}
	}
	return false
}

// finishHand returns the table to WAITING (or ENDED), clears hand-private
// state, removes busted seats and schedules the next hand when auto-next
// is on.
func (e *Engine) finishHand(t *Table, now time.Time, eff *Effects) {
	eff.DeletePrivateCards = true
	t.Deck = nil
	t.DeckHash = ""
	t.CurrentRound = RoundNone
	t.clearTurn()
	t.LastAggressorSeat = NoSeat
	t.CurrentBet = 0
	t.MinRaise = 0
	t.LastActivityAt = now

	for i, s := range t.Seats {
		if s == nil {
			continue
		}
		if s.Chips <= 0 {
			// Busted: the seat opens up and the player must re-buy.
			eff.event(Event{
				TableID:  t.ID,
				Type:     EventSeatLeft,
				PlayerID: s.PlayerID,
				Auto:     true,
			})
			t.Seats[i] = nil
			continue
		}
		if s.InHand() || s.Status == SeatFolded {
			s.Status = SeatWaitingForHand
		}
		if s.SitOutNext {
			s.SitOutNext = false
			s.Status = SeatSittingOut
		}
		s.RoundBet = 0
		s.TotalBet = 0
		s.TurnActed = false
	}

	if t.EndAfterHand {
		t.Status = TableEnded
		eff.event(Event{TableID: t.ID, Type: EventHandEnded, HandNumber: t.HandNumber})
		return
	}
	t.Status = TableWaiting
	eff.event(Event{TableID: t.ID, Type: EventHandEnded, HandNumber: t.HandNumber})

	// Re-arm the idle close window now that the table is quiet again.
	t.AutoCloseToken = e.mintToken()
	eff.task(TaskRoomAutoClose, t.ID, t.AutoCloseToken, e.params.IdleClose)

	playable := t.countSeats(func(s *Seat) bool { return t.eligibleForDeal(s) })
	if t.AutoNext && playable >= 2 {
		t.NextHandID = e.mintToken()
		eff.task(TaskStartNextHand, t.ID, t.NextHandID, e.params.NextHandDelay)
	}
}
