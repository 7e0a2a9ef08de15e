package engine

import (
	"time"

	"github.com/lox/holdemd/internal/deck"
)

// StartHand begins a new hand on a WAITING table: rotates the dealer,
// posts blinds, deals hole cards and arms the first turn timer.
//
// Returns INSUFFICIENT_PLAYERS if fewer than two seats can be dealt; the
// table stays WAITING and is otherwise untouched.
func (e *Engine) StartHand(t *Table, now time.Time) (*Effects, error) {
	if t.Status != TableWaiting {
		return nil, Errorf(CodeInvalidGameState, "cannot start hand while table is %s", t.Status)
	}

	dealt := make([]int, 0, len(t.Seats))
	for i, s := range t.Seats {
		if s != nil && t.eligibleForDeal(s) {
			dealt = append(dealt, i)
		}
	}
	if len(dealt) < 2 {
		return nil, Errorf(CodeInsufficientPlayers, "need at least 2 players with %d+ chips, have %d", t.Config.BigBlind, len(dealt))
	}

	eff := &Effects{PrivateCards: make(map[string][]deck.Card)}

	t.HandNumber++
	t.Pot = 0
	t.CommunityCards = nil
	t.CurrentRound = RoundPreflop
	t.Stage = StageNone
	t.HandResult = nil
	t.ActionLog = nil
	t.DeadContributors = nil
	t.Status = TablePlaying
	t.LastActivityAt = now
	t.NextHandID = ""
	t.WinByFoldID = ""
	t.ShowdownID = ""

	inHand := make(map[int]bool, len(dealt))
	for _, i := range dealt {
		inHand[i] = true
	}
	for i, s := range t.Seats {
		if s == nil {
			continue
		}
		// Prior hand's reveals must not leak into this hand.
		s.HoleCards = nil
		s.RoundBet = 0
		s.TotalBet = 0
		s.TurnActed = false
		s.TimedOut = false
		s.IsDealer = false
		s.IsSmallBlind = false
		s.IsBigBlind = false
		switch {
		case inHand[i]:
			s.Status = SeatActive
		case s.Status == SeatSittingOut:
			// stays sitting out
		default:
			// Occupied but short of a big blind: bench until a re-buy.
			s.Status = SeatSittingOut
		}
	}

	isInHand := func(s *Seat) bool { return inHand[s.Index] }
	t.DealerSeat = t.nextOccupied(t.DealerSeat, isInHand)
	t.Seats[t.DealerSeat].IsDealer = true

	// Heads-up: the dealer posts the small blind and acts first preflop.
	var sbSeat, bbSeat int
	if len(dealt) == 2 {
		sbSeat = t.DealerSeat
		bbSeat = t.nextOccupied(sbSeat, isInHand)
	} else {
		sbSeat = t.nextOccupied(t.DealerSeat, isInHand)
		bbSeat = t.nextOccupied(sbSeat, isInHand)
	}
	t.Seats[sbSeat].IsSmallBlind = true
	t.Seats[bbSeat].IsBigBlind = true

	eff.event(Event{
		TableID:    t.ID,
		Type:       EventHandStarted,
		HandNumber: t.HandNumber,
		Amount:     len(dealt),
	})

	e.postBlind(t, t.Seats[sbSeat], t.Config.SmallBlind, eff)
	e.postBlind(t, t.Seats[bbSeat], t.Config.BigBlind, eff)

	// The big blind sets the bet level regardless of whether it was posted
	// short; a short post simply leaves its seat all-in below the bet.
	t.CurrentBet = t.Config.BigBlind
	t.MinRaise = t.Config.BigBlind
	t.LastAggressorSeat = bbSeat

	// Deal two cards to each player, one at a time starting left of the
	// dealer.
	d := e.newDeck()
	t.DeckHash = deck.Hash(d.Remaining())
	hole := make(map[string][]deck.Card, len(dealt))
	order := make([]int, 0, len(dealt))
	for idx := t.nextOccupied(t.DealerSeat, isInHand); len(order) < len(dealt); idx = t.nextOccupied(idx, isInHand) {
		order = append(order, idx)
	}
	for range 2 {
		for _, idx := range order {
			card, ok := d.Deal()
			if !ok {
				return nil, Errorf(CodeInvalidGameState, "deck exhausted while dealing")
			}
			pid := t.Seats[idx].PlayerID
			hole[pid] = append(hole[pid], card)
		}
	}
	t.Deck = d.Remaining()
	for pid, cards := range hole {
		eff.PrivateCards[pid] = cards
	}

	var first int
	if len(dealt) == 2 {
		first = sbSeat
	} else {
		first = t.nextOccupied(bbSeat, func(s *Seat) bool { return s.CanAct() })
	}
	if first == NoSeat || t.countSeats(func(s *Seat) bool { return s.CanAct() }) < 2 {
		// Blinds put everyone all-in; no betting is possible.
		if err := e.runOut(t, hole, now, eff); err != nil {
			return nil, err
		}
		return eff, nil
	}
	e.beginTurn(t, first, t.Config.TurnTimeout, now, eff)

	return eff, nil
}

// StartNextHand handles a scheduled auto-next delivery
func (e *Engine) StartNextHand(t *Table, nextHandID string, now time.Time) (*Effects, error) {
	if t.Status != TableWaiting || nextHandID == "" || nextHandID != t.NextHandID {
		return nil, ErrZombieTask
	}
	t.NextHandID = ""
	eff, err := e.StartHand(t, now)
	if CodeOf(err) == CodeInsufficientPlayers {
		// Players left during the delay; stay WAITING without failing the
		// delivery.
		return &Effects{}, nil
	}
	return eff, err
}

func (e *Engine) postBlind(t *Table, s *Seat, blind int, eff *Effects) {
	amount := min(blind, s.Chips)
	s.Chips -= amount
	s.RoundBet += amount
	s.TotalBet += amount
	if s.Chips == 0 {
		s.Status = SeatAllIn
	}
	eff.event(Event{
		TableID:    t.ID,
		Type:       EventBlindPosted,
		HandNumber: t.HandNumber,
		Round:      RoundPreflop,
		PlayerID:   s.PlayerID,
		Amount:     amount,
	})
}
