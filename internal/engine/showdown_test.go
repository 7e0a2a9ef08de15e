package engine

import (
	"testing"
)

// Three-way all-in layering: stakes of 100, 200 and 500 form a main pot,
// one side pot and a single-player refund tier.
func TestComputePotsThreeWay(t *testing.T) {
	t.Parallel()

	pots := ComputePots([]Contribution{
		{PlayerID: "a", SeatIndex: 0, TotalBet: 100},
		{PlayerID: "b", SeatIndex: 1, TotalBet: 200},
		{PlayerID: "c", SeatIndex: 2, TotalBet: 500},
	})

	if len(pots) != 3 {
		t.Fatalf("expected 3 pots, got %d: %+v", len(pots), pots)
	}
	if pots[0].Amount != 300 || len(pots[0].Eligible) != 3 {
		t.Errorf("main pot: amount=%d eligible=%d, want 300/3", pots[0].Amount, len(pots[0].Eligible))
	}
	if pots[1].Amount != 200 || len(pots[1].Eligible) != 2 {
		t.Errorf("side pot: amount=%d eligible=%d, want 200/2", pots[1].Amount, len(pots[1].Eligible))
	}
	// The uncontested excess goes back to its lone contributor.
	if pots[2].Amount != 300 || len(pots[2].Eligible) != 1 || pots[2].Eligible[0].PlayerID != "c" {
		t.Errorf("refund tier wrong: %+v", pots[2])
	}

	total := 0
	for _, p := range pots {
		total += p.Amount
	}
	if total != 800 {
		t.Errorf("pots must sum to all contributions, got %d", total)
	}
}

// Folded stakes fund the pots but never join an eligibility set.
func TestComputePotsFoldedMoneyStays(t *testing.T) {
	t.Parallel()

	pots := ComputePots([]Contribution{
		{PlayerID: "a", SeatIndex: 0, TotalBet: 100},
		{PlayerID: "b", SeatIndex: 1, TotalBet: 100},
		{PlayerID: "dead", SeatIndex: 2, TotalBet: 60, Folded: true},
	})

	if len(pots) != 2 {
		t.Fatalf("expected 2 pots, got %d", len(pots))
	}
	if pots[0].Amount != 180 {
		t.Errorf("first tier = %d, want 180 (60 from each)", pots[0].Amount)
	}
	for _, p := range pots {
		for _, c := range p.Eligible {
			if c.PlayerID == "dead" {
				t.Error("folded contributor must not be eligible")
			}
		}
	}
}

// A departed player's stake can sit above every live stack. The orphan
// tier has no eligible players, so its chips fold into the last contested
// pot instead of forming a pot nobody can win.
func TestComputePotsDeadMoneyAboveLiveStakes(t *testing.T) {
	t.Parallel()

	pots := ComputePots([]Contribution{
		{PlayerID: "a", SeatIndex: 1, TotalBet: 150},
		{PlayerID: "b", SeatIndex: 2, TotalBet: 100},
		{PlayerID: "gone", SeatIndex: 0, TotalBet: 200, Folded: true},
	})

	if len(pots) != 2 {
		t.Fatalf("expected 2 pots, got %d: %+v", len(pots), pots)
	}
	if pots[0].Amount != 300 || len(pots[0].Eligible) != 2 {
		t.Errorf("main pot: amount=%d eligible=%d, want 300/2", pots[0].Amount, len(pots[0].Eligible))
	}
	if pots[1].Amount != 150 || len(pots[1].Eligible) != 1 || pots[1].Eligible[0].PlayerID != "a" {
		t.Errorf("top tier should absorb the dead excess: %+v", pots[1])
	}

	total := 0
	for _, p := range pots {
		total += p.Amount
	}
	if total != 450 {
		t.Errorf("pots must sum to all contributions, got %d", total)
	}
}

func TestComputePotsEqualStakes(t *testing.T) {
	t.Parallel()

	pots := ComputePots([]Contribution{
		{PlayerID: "a", TotalBet: 50},
		{PlayerID: "b", TotalBet: 50},
	})
	if len(pots) != 1 || pots[0].Amount != 100 || len(pots[0].Eligible) != 2 {
		t.Errorf("equal stakes should form one pot: %+v", pots)
	}
}

// Odd chips go one at a time to winners clockwise from the dealer.
func TestSplitPotOddChip(t *testing.T) {
	t.Parallel()

	e := testEngine(nil)
	table, _, err := e.CreateTable("t1", testConfig(), false, testNow)
	if err != nil {
		t.Fatal(err)
	}
	table.DealerSeat = 2

	winners := []Contribution{
		{PlayerID: "a", SeatIndex: 1},
		{PlayerID: "b", SeatIndex: 4},
	}
	winnings := map[string]int{}
	e.splitPot(table, 25, winners, winnings)

	// Seat 4 is first clockwise from dealer seat 2, so it takes the odd chip.
	if winnings["b"] != 13 || winnings["a"] != 12 {
		t.Errorf("odd chip should land clockwise from the dealer: %v", winnings)
	}
}

// Full hand checked down to showdown: the better pair takes the pot.
func TestShowdownAwardsPot(t *testing.T) {
	t.Parallel()

	e := testEngine(mustCards("Kh", "Ah", "Kd", "Ad", "2c", "7d", "9s", "4h", "Js"))
	table := testTable(t, e, false, 1000, 1000)
	hole := startHand(t, e, table)

	act(t, e, table, hole, "p0", ActionCall, 0)
	act(t, e, table, hole, "p1", ActionCheck, 0)
	for _, round := range []Round{RoundFlop, RoundTurn, RoundRiver} {
		if table.CurrentRound != round {
			t.Fatalf("expected %s, got %s", round, table.CurrentRound)
		}
		act(t, e, table, hole, "p1", ActionCheck, 0)
		act(t, e, table, hole, "p0", ActionCheck, 0)
	}

	if table.Stage != StageShowdown {
		t.Fatalf("stage = %q, want showdown", table.Stage)
	}

	// p0 holds aces, p1 kings; the board misses both.
	if table.Seats[0].Chips != 1020 {
		t.Errorf("winner chips = %d, want 1020", table.Seats[0].Chips)
	}
	if table.Seats[1].Chips != 980 {
		t.Errorf("loser chips = %d, want 980", table.Seats[1].Chips)
	}
	if table.Pot != 0 {
		t.Errorf("pot should be empty after resolution, got %d", table.Pot)
	}
	if table.TotalChips() != 2000 {
		t.Errorf("chip conservation broken: %d", table.TotalChips())
	}

	hr := table.HandResult
	if hr == nil || len(hr.Winners) != 1 {
		t.Fatalf("hand result missing or wrong: %+v", hr)
	}
	if hr.Winners[0].PlayerID != "p0" || hr.Winners[0].Amount != 40 {
		t.Errorf("winner = %+v, want p0 for 40", hr.Winners[0])
	}
	if hr.Winners[0].HandName != "Pair" {
		t.Errorf("hand name = %q, want Pair", hr.Winners[0].HandName)
	}

	// Showdown reveals contested hole cards.
	if len(table.Seats[0].HoleCards) != 2 || len(table.Seats[1].HoleCards) != 2 {
		t.Error("showdown should reveal both hands")
	}
}

// A chopped board splits the pot evenly.
func TestShowdownSplitsTie(t *testing.T) {
	t.Parallel()

	// Both players play the board: a broadway straight.
	e := testEngine(mustCards("2h", "3h", "2d", "3d", "Ts", "Js", "Qs", "Kd", "Ac"))
	table := testTable(t, e, false, 1000, 1000)
	hole := startHand(t, e, table)

	act(t, e, table, hole, "p0", ActionCall, 0)
	act(t, e, table, hole, "p1", ActionCheck, 0)
	for range 3 {
		act(t, e, table, hole, "p1", ActionCheck, 0)
		act(t, e, table, hole, "p0", ActionCheck, 0)
	}

	if table.Seats[0].Chips != 1000 || table.Seats[1].Chips != 1000 {
		t.Errorf("chopped pot should return stakes: %d/%d",
			table.Seats[0].Chips, table.Seats[1].Chips)
	}
	if len(table.HandResult.Winners) != 2 {
		t.Errorf("both players should be recorded as winners: %+v", table.HandResult.Winners)
	}
}

// Side pots pay out independently: the short stack can win the main pot
// while the bigger stacks contest the side pot.
func TestShowdownSidePots(t *testing.T) {
	t.Parallel()

	// Deal order with dealer seat 0: p1, p2, p0. p2 is the short stack and
	// holds aces; p0's kings beat p1's queens for the side pot.
	e := testEngine(mustCards("Qh", "Ah", "Kh", "Qd", "Ad", "Kd", "2c", "7d", "9s", "4h", "Js"))
	table := testTable(t, e, false, 1000, 1000, 100)
	hole := startHand(t, e, table)

	// p2 posted the 20 big blind and shoves their last 80 for less than
	// the raise, which closes the preflop round.
	act(t, e, table, hole, "p0", ActionRaise, 300)
	act(t, e, table, hole, "p1", ActionCall, 0)
	act(t, e, table, hole, "p2", ActionAllIn, 0)

	// p0 and p1 still have chips, so betting continues on later streets;
	// check it down.
	for table.Stage == StageNone {
		act(t, e, table, hole, table.CurrentSeat().PlayerID, ActionCheck, 0)
	}

	if table.Stage != StageShowdown {
		t.Fatalf("stage = %q, want showdown", table.Stage)
	}

	// Main pot 300 (100 from each) to p2's aces; side pot 400 to p0's kings.
	if table.Seats[2].Chips != 300 {
		t.Errorf("short stack chips = %d, want 300", table.Seats[2].Chips)
	}
	if table.Seats[0].Chips != 1100 {
		t.Errorf("side pot winner chips = %d, want 1100", table.Seats[0].Chips)
	}
	if table.Seats[1].Chips != 700 {
		t.Errorf("side pot loser chips = %d, want 700", table.Seats[1].Chips)
	}
	if table.TotalChips() != 2100 {
		t.Errorf("chip conservation broken: %d", table.TotalChips())
	}
}

// A raiser who leaves mid-hand can strand dead money above every live
// stack. The hand must still run out and distribute every chip.
func TestShowdownDeadMoneyAboveLiveStacks(t *testing.T) {
	t.Parallel()

	// Deal order with dealer seat 0: p1, p2, p0. p1 holds aces, p2 kings;
	// p0's cards never reach showdown.
	e := testEngine(mustCards("Ah", "Kh", "Qh", "Ad", "Kd", "Qd", "2c", "7d", "9s", "4h", "Js"))
	table := testTable(t, e, false, 1000, 150, 100)
	hole := startHand(t, e, table)

	// p0 raises above both remaining stacks, then walks away.
	act(t, e, table, hole, "p0", ActionRaise, 200)
	if _, err := e.LeaveSeat(table, "p0", hole, testNow); err != nil {
		t.Fatalf("LeaveSeat: %v", err)
	}
	if len(table.DeadContributors) != 1 || table.DeadContributors[0].TotalBet != 200 {
		t.Fatalf("dead contribution wrong: %+v", table.DeadContributors)
	}

	// Both survivors call for less than the dead raise; the second call
	// closes the round and runs the board out.
	act(t, e, table, hole, "p1", ActionCall, 0)
	act(t, e, table, hole, "p2", ActionCall, 0)

	if table.Stage != StageShowdown {
		t.Fatalf("stage = %q, want showdown", table.Stage)
	}

	// Main pot 300 (100 from each contributor); the dead excess above
	// p1's 150 stake rides down to the p1-only tier: 50 + 2*50 = 150.
	// p1's aces take both.
	if table.Seats[1].Chips != 450 {
		t.Errorf("winner chips = %d, want 450", table.Seats[1].Chips)
	}
	if table.Seats[2].Chips != 0 {
		t.Errorf("loser chips = %d, want 0", table.Seats[2].Chips)
	}
	if table.Pot != 0 {
		t.Errorf("pot should be empty after resolution, got %d", table.Pot)
	}
	if table.TotalChips() != 450 {
		t.Errorf("every contributed chip must be distributed, got %d", table.TotalChips())
	}

	hr := table.HandResult
	if hr == nil || len(hr.Winners) != 1 || hr.Winners[0].PlayerID != "p1" || hr.Winners[0].Amount != 450 {
		t.Errorf("hand result wrong: %+v", hr)
	}
}

func TestResolveShowdownTokenAndCleanup(t *testing.T) {
	t.Parallel()

	e := testEngine(mustCards("Kh", "Ah", "Kd", "Ad", "2c", "7d", "9s", "4h", "Js"))
	table := testTable(t, e, false, 1000, 1000)
	hole := startHand(t, e, table)

	act(t, e, table, hole, "p0", ActionCall, 0)
	act(t, e, table, hole, "p1", ActionCheck, 0)
	for range 3 {
		act(t, e, table, hole, "p1", ActionCheck, 0)
		act(t, e, table, hole, "p0", ActionCheck, 0)
	}

	if _, err := e.ResolveShowdown(table, "tok-bogus", testNow); !IsZombie(err) {
		t.Fatalf("mismatched token should be a zombie, got %v", err)
	}

	eff, err := e.ResolveShowdown(table, table.ShowdownID, testNow)
	if err != nil {
		t.Fatalf("ResolveShowdown: %v", err)
	}
	if !eff.DeletePrivateCards {
		t.Error("cleanup must delete the hand's private cards")
	}
	if table.Status != TableWaiting {
		t.Errorf("table should return to waiting, got %s", table.Status)
	}
	if table.Seats[0].Status != SeatWaitingForHand {
		t.Errorf("seats should wait for the next hand, got %s", table.Seats[0].Status)
	}

	// The delivery is one-shot.
	if _, err := e.ResolveShowdown(table, table.ShowdownID, testNow); !IsZombie(err) {
		t.Error("second delivery should be a zombie")
	}
}
