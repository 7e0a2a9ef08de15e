package engine

import (
	"sort"
	"time"

	"github.com/lox/holdemd/internal/deck"
	"github.com/lox/holdemd/internal/evaluator"
)

// Contribution is one player's total stake in the hand, including dead
// money from folded or departed players.
type Contribution struct {
	PlayerID  string
	SeatIndex int
	TotalBet  int
	Folded    bool
}

// Pot is one resolved pot tier with its eligibility set
type Pot struct {
	Amount   int
	Eligible []Contribution // non-folded contributors whose stake reached the tier
}

// contributions gathers every stake in the hand: seated players (folded
// or not) plus dead money left by players who departed mid-hand.
func (t *Table) contributions() []Contribution {
	out := make([]Contribution, 0, len(t.Seats))
	for _, s := range t.Seats {
		if s != nil && s.TotalBet > 0 {
			out = append(out, Contribution{
				PlayerID:  s.PlayerID,
				SeatIndex: s.Index,
				TotalBet:  s.TotalBet,
				Folded:    s.Status == SeatFolded,
			})
		}
	}
	for _, d := range t.DeadContributors {
		out = append(out, Contribution{
			PlayerID:  d.PlayerID,
			SeatIndex: d.SeatIndex,
			TotalBet:  d.TotalBet,
			Folded:    true,
		})
	}
	return out
}

// ComputePots layers contributions into a main pot and side pots. Each
// distinct total-bet tier forms a pot; a pot's eligibility set is every
// non-folded contributor whose stake reached that tier.
func ComputePots(contribs []Contribution) []Pot {
	tiers := make([]int, 0, len(contribs))
	seen := make(map[int]bool, len(contribs))
	for _, c := range contribs {
		if !seen[c.TotalBet] {
			seen[c.TotalBet] = true
			tiers = append(tiers, c.TotalBet)
		}
	}
	sort.Ints(tiers)

	var pots []Pot
	prev := 0
	for _, tier := range tiers {
		pot := Pot{}
		for _, c := range contribs {
			if c.TotalBet > prev {
				pot.Amount += min(c.TotalBet-prev, tier-prev)
			}
			if !c.Folded && c.TotalBet >= tier {
				pot.Eligible = append(pot.Eligible, c)
			}
		}
		prev = tier
		if pot.Amount == 0 {
			continue
		}
		// A tier above every live stake holds only dead money and cannot
		// form its own pot; the excess rides down to the last contested
		// tier so every chip is still distributed.
		if len(pot.Eligible) == 0 && len(pots) > 0 {
			pots[len(pots)-1].Amount += pot.Amount
			continue
		}
		pots = append(pots, pot)
	}
	return pots
}

// enterShowdown evaluates hands, resolves every pot, pays winners and
// writes the hand record. Cleanup is deferred to the scheduled resolve so
// clients get a beat to see the result.
func (e *Engine) enterShowdown(t *Table, hole map[string][]deck.Card, now time.Time, eff *Effects) error {
	t.Stage = StageShowdown
	t.CurrentRound = RoundShowdown

	contestants := t.contestants()
	results := make(map[string]evaluator.Result, len(contestants))
	for _, s := range contestants {
		cards := hole[s.PlayerID]
		if len(cards) != 2 {
			return Errorf(CodeInvalidGameState, "missing hole cards for %s", s.PlayerID)
		}
		r, err := evaluator.Evaluate(append(append([]deck.Card(nil), cards...), t.CommunityCards...))
		if err != nil {
			return err
		}
		results[s.PlayerID] = r
		// Showdown reveal: contested hole cards become public.
		s.HoleCards = append([]deck.Card(nil), cards...)
	}

	pots := ComputePots(t.contributions())

	totalPot := t.Pot
	winnings := make(map[string]int)
	potResults := make([]PotResult, 0, len(pots))
	winnerByPlayer := make(map[string]*WinnerResult)
	order := make([]string, 0, len(contestants))

	for _, pot := range pots {
		potWinners := e.potWinners(pot, results)
		e.splitPot(t, pot.Amount, potWinners, winnings)

		pr := PotResult{Amount: pot.Amount}
		for _, c := range pot.Eligible {
			pr.Eligible = append(pr.Eligible, c.PlayerID)
		}
		for _, w := range potWinners {
			pr.Winners = append(pr.Winners, w.PlayerID)
			if _, ok := winnerByPlayer[w.PlayerID]; !ok {
				r := results[w.PlayerID]
				tb := append([]int(nil), r.Tiebreakers[:]...)
				winnerByPlayer[w.PlayerID] = &WinnerResult{
					PlayerID:    w.PlayerID,
					SeatIndex:   w.SeatIndex,
					HandName:    r.Category.String(),
					Tiebreakers: tb,
					BestCards:   r.Best,
				}
				order = append(order, w.PlayerID)
			}
		}
		potResults = append(potResults, pr)
	}

	bigHand := false
	for _, s := range contestants {
		seat := t.Seats[s.Index]
		if won := winnings[s.PlayerID]; won > 0 {
			seat.Chips += won
		}
		if results[s.PlayerID].Category >= evaluator.FullHouse {
			bigHand = true
		}
	}
	t.Pot = 0

	winners := make([]WinnerResult, 0, len(order))
	for _, pid := range order {
		w := *winnerByPlayer[pid]
		w.Amount = winnings[pid]
		winners = append(winners, w)
	}

	t.HandResult = &HandResultSummary{
		HandNumber: t.HandNumber,
		Pot:        totalPot,
		Winners:    winners,
	}

	eff.event(Event{
		TableID:    t.ID,
		Type:       EventShowdown,
		HandNumber: t.HandNumber,
		Amount:     totalPot,
	})

	eff.HandRecord = &HandRecord{
		TableID:        t.ID,
		HandNumber:     t.HandNumber,
		DeckHash:       t.DeckHash,
		CommunityCards: append([]deck.Card(nil), t.CommunityCards...),
		Actions:        append([]ActionLogEntry(nil), t.ActionLog...),
		Pots:           potResults,
		Winners:        winners,
		Flags: HandFlags{
			LargePot: totalPot >= 50*t.Config.BigBlind,
			BigHand:  bigHand,
			AllIn:    t.anyAllIn(),
		},
		EndedAt: now,
	}

	t.ShowdownID = e.mintToken()
	eff.task(TaskShowdownResolve, t.ID, t.ShowdownID, e.params.ShowdownAdmire)
	return nil
}

// potWinners returns the eligible contributors holding the best hand.
// Degenerate pots with a single eligible player collapse to a refund.
func (e *Engine) potWinners(pot Pot, results map[string]evaluator.Result) []Contribution {
	if len(pot.Eligible) == 1 {
		return pot.Eligible
	}
	var best []Contribution
	for _, c := range pot.Eligible {
		if len(best) == 0 {
			best = []Contribution{c}
			continue
		}
		switch results[c.PlayerID].Compare(results[best[0].PlayerID]) {
		case 1:
			best = []Contribution{c}
		case 0:
			best = append(best, c)
		}
	}
	return best
}

// splitPot divides a pot equally among its winners. Any remainder goes one
// chip at a time to winners in clockwise order starting from the first
// winner after the dealer seat; the rule is deterministic so replays and
// independent implementations agree to the chip.
func (e *Engine) splitPot(t *Table, amount int, winners []Contribution, winnings map[string]int) {
	share := amount / len(winners)
	remainder := amount % len(winners)

	for _, w := range winners {
		winnings[w.PlayerID] += share
	}
	if remainder == 0 {
		return
	}

	ordered := make([]Contribution, len(winners))
	copy(ordered, winners)
	n := len(t.Seats)
	clockwiseFromDealer := func(seat int) int {
		return (seat - t.DealerSeat - 1 + 2*n) % n
	}
	sort.Slice(ordered, func(i, j int) bool {
		return clockwiseFromDealer(ordered[i].SeatIndex) < clockwiseFromDealer(ordered[j].SeatIndex)
	})
	for i := 0; i < remainder; i++ {
		winnings[ordered[i%len(ordered)].PlayerID]++
	}
}

// ResolveShowdown handles the scheduled post-showdown cleanup delivery
func (e *Engine) ResolveShowdown(t *Table, showdownID string, now time.Time) (*Effects, error) {
	if t.Stage != StageShowdown || showdownID == "" || showdownID != t.ShowdownID {
		return nil, ErrZombieTask
	}
	t.ShowdownID = ""
	t.Stage = StageShowdownComplete

	eff := &Effects{}
	e.finishHand(t, now, eff)
	return eff, nil
}
