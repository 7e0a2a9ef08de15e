package engine

import (
	"testing"
	"time"
)

func TestJoinSeatValidation(t *testing.T) {
	t.Parallel()

	e := testEngine(nil)
	table := testTable(t, e, false, 1000)

	_, err := e.JoinSeat(table, "p0", "p0", 1, 1000, testNow)
	assertCode(t, err, CodeSeatTaken) // already seated elsewhere

	_, err = e.JoinSeat(table, "px", "px", 0, 1000, testNow)
	assertCode(t, err, CodeSeatTaken) // seat occupied

	_, err = e.JoinSeat(table, "px", "px", 9, 1000, testNow)
	assertCode(t, err, CodeInvalidAction) // out of range

	_, err = e.JoinSeat(table, "px", "px", 1, 10, testNow)
	assertCode(t, err, CodeBuyinOutOfRange)

	_, err = e.JoinSeat(table, "px", "px", 1, 99999, testNow)
	assertCode(t, err, CodeBuyinOutOfRange)

	if _, err := e.JoinSeat(table, "px", "px", 1, 500, testNow); err != nil {
		t.Fatalf("valid join failed: %v", err)
	}
	if table.Seats[1].Chips != 500 || table.Seats[1].Status != SeatWaitingForHand {
		t.Errorf("joined seat wrong: %+v", table.Seats[1])
	}
}

func TestJoinSeatTableFull(t *testing.T) {
	t.Parallel()

	e := testEngine(nil)
	table := testTable(t, e, false, 1000, 1000, 1000, 1000, 1000, 1000)

	_, err := e.JoinSeat(table, "late", "late", 0, 1000, testNow)
	assertCode(t, err, CodeTableFull)
}

func TestLeaveSeatBetweenHands(t *testing.T) {
	t.Parallel()

	e := testEngine(nil)
	table := testTable(t, e, false, 1000, 1000)

	eff, err := e.LeaveSeat(table, "p1", nil, testNow)
	if err != nil {
		t.Fatalf("LeaveSeat: %v", err)
	}
	if table.Seats[1] != nil {
		t.Error("seat should be vacated")
	}
	if !hasEvent(eff, EventSeatLeft) {
		t.Error("seat_left event missing")
	}
	if len(table.DeadContributors) != 0 {
		t.Error("no dead money outside a hand")
	}

	_, err = e.LeaveSeat(table, "p1", nil, testNow)
	assertCode(t, err, CodeNotSeated)
}

// Leaving mid-hand abandons the stake as dead money that the remaining
// players contest.
func TestLeaveSeatMidHandDeadMoney(t *testing.T) {
	t.Parallel()

	e := testEngine(mustCards("Kh", "Ah", "Qh", "Kd", "Ad", "Qd", "2c", "7d", "9s", "4h", "Js"))
	table := testTable(t, e, false, 1000, 1000, 1000)
	hole := startHand(t, e, table)

	// The big blind walks away before acting.
	eff, err := e.LeaveSeat(table, "p2", hole, testNow)
	if err != nil {
		t.Fatalf("LeaveSeat: %v", err)
	}
	if table.Seats[2] != nil {
		t.Fatal("seat should be vacated")
	}
	if table.Pot != 20 {
		t.Errorf("street bet should move to the pot, got %d", table.Pot)
	}
	if len(table.DeadContributors) != 1 || table.DeadContributors[0].TotalBet != 20 {
		t.Fatalf("dead contribution wrong: %+v", table.DeadContributors)
	}
	if len(eff.DeletePlayers) != 1 || eff.DeletePlayers[0] != "p2" {
		t.Errorf("leaver's private cards should be deleted: %v", eff.DeletePlayers)
	}

	// The hand continues heads-up; the dead 20 stays in play.
	act(t, e, table, hole, "p0", ActionCall, 0)
	act(t, e, table, hole, "p1", ActionCall, 0)
	if table.Pot != 60 {
		t.Errorf("pot = %d, want 60 including dead money", table.Pot)
	}
	for table.Stage == StageNone {
		act(t, e, table, hole, table.CurrentSeat().PlayerID, ActionCheck, 0)
	}

	// The survivors split the departed player's blind between them via the
	// winner: stakes 40 in, 60 out.
	if got := table.Seats[0].Chips + table.Seats[1].Chips; got != 2020 {
		t.Errorf("remaining chips = %d, want 2020", got)
	}
}

// When everyone else has folded, the leaver's departure ends the hand.
func TestLeaveSeatTriggersWinByFold(t *testing.T) {
	t.Parallel()

	e := testEngine(mustCards("Kh", "Ah", "Kd", "Ad", "2c", "7d", "9s", "4h", "Js"))
	table := testTable(t, e, false, 1000, 1000)
	hole := startHand(t, e, table)

	if _, err := e.LeaveSeat(table, "p0", hole, testNow); err != nil {
		t.Fatalf("LeaveSeat: %v", err)
	}
	if table.Stage != StageWinByFold {
		t.Errorf("stage = %q, want win_by_fold", table.Stage)
	}
	if table.Seats[1].Chips != 1010 {
		t.Errorf("survivor should collect the pot, got %d", table.Seats[1].Chips)
	}
}

// Boundary scenario: the winner of an uncontested pot gets a reveal window
// before the hand is finalized.
func TestWinByFoldRevealWindow(t *testing.T) {
	t.Parallel()

	e := testEngine(mustCards("Kh", "Ah", "Kd", "Ad", "2c", "7d", "9s", "4h", "Js"))
	table := testTable(t, e, false, 1000, 1000)
	hole := startHand(t, e, table)

	eff := act(t, e, table, hole, "p0", ActionFold, 0)
	if !hasEvent(eff, EventWinByFold) {
		t.Fatal("win_by_fold event missing")
	}
	if !hasTask(eff, TaskWinByFoldTimeout) {
		t.Fatal("reveal window task missing")
	}
	if table.Seats[1].Chips != 1010 {
		t.Errorf("winner chips = %d, want 1010 (pot of 30)", table.Seats[1].Chips)
	}
	if eff.HandRecord == nil || !eff.HandRecord.Flags.LastManStanding {
		t.Error("hand record should flag last man standing")
	}

	// Only the winner may show.
	_, err := e.ShowCards(table, "p0", hole)
	assertCode(t, err, CodeNotAuthorized)

	showEff, err := e.ShowCards(table, "p1", hole)
	if err != nil {
		t.Fatalf("ShowCards: %v", err)
	}
	if !hasEvent(showEff, EventCardsShown) {
		t.Error("cards_shown event missing")
	}
	if len(table.Seats[1].HoleCards) != 2 {
		t.Error("winner's cards should be revealed on the seat")
	}

	// Stale token is dropped; the live one finishes the hand without a
	// muck event because the cards were already shown.
	if _, err := e.WinByFoldTimeout(table, "tok-bogus", testNow); !IsZombie(err) {
		t.Fatalf("expected zombie, got %v", err)
	}
	doneEff, err := e.WinByFoldTimeout(table, table.WinByFoldID, testNow)
	if err != nil {
		t.Fatalf("WinByFoldTimeout: %v", err)
	}
	if hasEvent(doneEff, EventCardsMucked) {
		t.Error("shown cards must not muck")
	}
	if table.Status != TableWaiting {
		t.Errorf("table should return to waiting, got %s", table.Status)
	}
}

func TestWinByFoldMucksUnshownCards(t *testing.T) {
	t.Parallel()

	e := testEngine(mustCards("Kh", "Ah", "Kd", "Ad", "2c", "7d", "9s", "4h", "Js"))
	table := testTable(t, e, false, 1000, 1000)
	hole := startHand(t, e, table)

	act(t, e, table, hole, "p0", ActionFold, 0)
	eff, err := e.WinByFoldTimeout(table, table.WinByFoldID, testNow)
	if err != nil {
		t.Fatalf("WinByFoldTimeout: %v", err)
	}
	if !hasEvent(eff, EventCardsMucked) {
		t.Error("unshown cards should muck at window close")
	}
	if len(table.Seats[1].HoleCards) != 0 {
		t.Error("mucked cards must stay private")
	}
}

func TestPauseAndResume(t *testing.T) {
	t.Parallel()

	e := testEngine(mustCards("Kh", "Ah", "Kd", "Ad", "2c", "7d", "9s", "4h", "Js"))
	table := testTable(t, e, false, 1000, 1000)
	hole := startHand(t, e, table)

	// Only the host may pause.
	_, err := e.TogglePause(table, "p1", testNow)
	assertCode(t, err, CodeNotAuthorized)

	pauseAt := testNow.Add(10 * time.Second)
	if _, err := e.TogglePause(table, "p0", pauseAt); err != nil {
		t.Fatalf("TogglePause: %v", err)
	}
	if table.Status != TablePaused {
		t.Fatalf("status = %s, want paused", table.Status)
	}
	if table.CurrentTurnID != "" {
		t.Error("pause should invalidate the armed turn token")
	}
	if table.PausedRemaining != 20*time.Second {
		t.Errorf("remaining = %s, want 20s", table.PausedRemaining)
	}

	// Actions bounce while paused.
	_, err = e.ApplyAction(table, "p0", Action{Type: ActionCall}, hole, pauseAt)
	assertCode(t, err, CodeGamePaused)

	resumeAt := pauseAt.Add(time.Minute)
	eff, err := e.Resume(table, "p0", resumeAt)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if table.Status != TablePlaying {
		t.Fatalf("status = %s, want playing", table.Status)
	}
	if table.CurrentTurnID == "" {
		t.Error("resume should mint a fresh turn token")
	}
	if want := resumeAt.Add(20 * time.Second); !table.TurnExpiresAt.Equal(want) {
		t.Errorf("deadline = %s, want %s", table.TurnExpiresAt, want)
	}
	if !hasTask(eff, TaskTurnTimeout) {
		t.Error("resume should re-arm the turn timeout")
	}
}

func TestSetEndAfterHand(t *testing.T) {
	t.Parallel()

	e := testEngine(mustCards("Kh", "Ah", "Kd", "Ad", "2c", "7d", "9s", "4h", "Js"))
	table := testTable(t, e, false, 1000, 1000)
	hole := startHand(t, e, table)

	if _, err := e.SetEndAfterHand(table, "p0", testNow); err != nil {
		t.Fatalf("SetEndAfterHand: %v", err)
	}
	if table.Status != TablePlaying {
		t.Error("mid-hand the table keeps playing until resolution")
	}

	act(t, e, table, hole, "p0", ActionFold, 0)
	if _, err := e.WinByFoldTimeout(table, table.WinByFoldID, testNow); err != nil {
		t.Fatal(err)
	}
	if table.Status != TableEnded {
		t.Errorf("status = %s, want ended after the hand", table.Status)
	}
}

func TestDeleteRoom(t *testing.T) {
	t.Parallel()

	e := testEngine(mustCards("Kh", "Ah", "Kd", "Ad", "2c", "7d", "9s", "4h", "Js"))
	table := testTable(t, e, false, 1000, 1000)
	startHand(t, e, table)

	_, err := e.DeleteRoom(table, "p0", testNow)
	assertCode(t, err, CodeRoomInPlay)

	table2 := testTable(t, testEngine(nil), false, 1000)
	_, err = e.DeleteRoom(table2, "p1", testNow)
	assertCode(t, err, CodeNotAuthorized)

	eff, err := e.DeleteRoom(table2, "p0", testNow)
	if err != nil {
		t.Fatalf("DeleteRoom: %v", err)
	}
	if table2.Status != TableClosed {
		t.Errorf("status = %s, want closed", table2.Status)
	}
	if !eff.DeletePrivateCards {
		t.Error("closing must drop private cards")
	}
}

func TestAutoClose(t *testing.T) {
	t.Parallel()

	e := testEngine(nil)
	table := testTable(t, e, false, 1000, 1000)

	// Fresh activity: the delivery is premature and ignored.
	if _, err := e.AutoClose(table, table.AutoCloseToken, testNow); !IsZombie(err) {
		t.Fatalf("premature close should be a zombie, got %v", err)
	}

	idleAt := testNow.Add(31 * time.Minute)
	if _, err := e.AutoClose(table, "tok-bogus", idleAt); !IsZombie(err) {
		t.Fatalf("bad token should be a zombie, got %v", err)
	}

	eff, err := e.AutoClose(table, table.AutoCloseToken, idleAt)
	if err != nil {
		t.Fatalf("AutoClose: %v", err)
	}
	if table.Status != TableClosed {
		t.Errorf("status = %s, want closed", table.Status)
	}
	if !hasEvent(eff, EventRoomClosed) {
		t.Error("room_closed event missing")
	}
}

// A sitting-out player keeps their seat and chips but is not dealt in.
func TestSitOutBetweenHands(t *testing.T) {
	t.Parallel()

	e := testEngine(mustCards("Kh", "Ah", "Kd", "Ad", "2c", "7d", "9s", "4h", "Js"))
	table := testTable(t, e, false, 1000, 1000, 1000)

	eff, err := e.SitOut(table, "p2", nil, testNow)
	if err != nil {
		t.Fatalf("SitOut: %v", err)
	}
	if !hasEvent(eff, EventSatOut) {
		t.Error("sat_out event missing")
	}
	if table.Seats[2].Status != SeatSittingOut {
		t.Fatalf("status = %s, want sitting_out", table.Seats[2].Status)
	}
	_, err = e.SitOut(table, "p2", nil, testNow)
	assertCode(t, err, CodeInvalidAction) // already out

	// The hand deals heads-up around the benched seat.
	hole := startHand(t, e, table)
	if _, dealt := hole["p2"]; dealt {
		t.Fatal("sitting-out player must not be dealt cards")
	}
	if table.Seats[2].Status != SeatSittingOut {
		t.Errorf("benched seat changed status: %s", table.Seats[2].Status)
	}

	act(t, e, table, hole, "p0", ActionFold, 0)
	if _, err := e.WinByFoldTimeout(table, table.WinByFoldID, testNow); err != nil {
		t.Fatal(err)
	}

	_, err = e.Return(table, "p0", testNow)
	assertCode(t, err, CodeInvalidAction) // not sitting out

	retEff, err := e.Return(table, "p2", testNow)
	if err != nil {
		t.Fatalf("Return: %v", err)
	}
	if !hasEvent(retEff, EventReturned) {
		t.Error("returned event missing")
	}
	if table.Seats[2].Status != SeatWaitingForHand {
		t.Errorf("status = %s, want waiting_for_hand", table.Seats[2].Status)
	}
}

// Sitting out with live cards folds the hand; the bench lands at hand end.
func TestSitOutMidHandFolds(t *testing.T) {
	t.Parallel()

	e := testEngine(mustCards("Kh", "Ah", "Qh", "Kd", "Ad", "Qd", "2c", "7d", "9s", "4h", "Js"))
	table := testTable(t, e, false, 1000, 1000, 1000)
	hole := startHand(t, e, table)

	// The small blind sits out while the turn is elsewhere.
	if _, err := e.SitOut(table, "p1", hole, testNow); err != nil {
		t.Fatalf("SitOut: %v", err)
	}
	if table.Seats[1].Status != SeatFolded || !table.Seats[1].SitOutNext {
		t.Fatalf("seat should fold with the sit-out pending: %+v", table.Seats[1])
	}

	// The fold leaves two contestants; folding the turn ends the hand.
	act(t, e, table, hole, "p0", ActionFold, 0)
	if table.Stage != StageWinByFold {
		t.Fatalf("stage = %q, want win_by_fold", table.Stage)
	}
	if table.Seats[2].Chips != 1010 {
		t.Errorf("winner chips = %d, want 1010", table.Seats[2].Chips)
	}

	if _, err := e.WinByFoldTimeout(table, table.WinByFoldID, testNow); err != nil {
		t.Fatal(err)
	}
	if table.Seats[1].Status != SeatSittingOut || table.Seats[1].SitOutNext {
		t.Errorf("bench should land at hand end: %+v", table.Seats[1])
	}
}

// A busted seat is removed when the hand finishes.
func TestBustedSeatRemoved(t *testing.T) {
	t.Parallel()

	// p1 holds the worse hand and is all-in for their whole stack.
	e := testEngine(mustCards("Kh", "Ah", "Kd", "Ad", "2c", "7d", "9s", "4h", "Js"))
	table := testTable(t, e, false, 1000, 1000)
	hole := startHand(t, e, table)

	act(t, e, table, hole, "p0", ActionAllIn, 0)
	act(t, e, table, hole, "p1", ActionCall, 0)
	if table.Stage != StageShowdown {
		t.Fatalf("stage = %q, want showdown", table.Stage)
	}

	if _, err := e.ResolveShowdown(table, table.ShowdownID, testNow); err != nil {
		t.Fatal(err)
	}
	if table.Seats[1] != nil {
		t.Error("busted seat should be removed")
	}
	if table.Seats[0].Chips != 2000 {
		t.Errorf("winner should hold all chips, got %d", table.Seats[0].Chips)
	}
}
