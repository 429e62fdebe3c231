package localdb

import (
	"errors"
	"testing"
)

func TestInsertWinnerTx_DuplicateValueRejected(t *testing.T) {
	setupTestDB(t)
	db := GetDB()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if err := InsertWinnerTx(tx, "g1", "alice", "cookie", 42); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	tx, err = db.Begin()
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	err = InsertWinnerTx(tx, "g1", "bob", "cookie", 42)
	_ = tx.Rollback()
	if !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("unexpected error: got=%v want=%v", err, ErrAlreadyClaimed)
	}
}

func TestInsertWinnerTx_SameValueOtherGuild(t *testing.T) {
	setupTestDB(t)
	db := GetDB()

	for _, guild := range []string{"g1", "g2"} {
		tx, err := db.Begin()
		if err != nil {
			t.Fatalf("begin failed: %v", err)
		}
		if err := InsertWinnerTx(tx, guild, "alice", "cookie", 42); err != nil {
			t.Fatalf("insert for %s failed: %v", guild, err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("commit failed: %v", err)
		}
	}
}

func TestHasWinnerAndGetWinners(t *testing.T) {
	setupTestDB(t)
	db := GetDB()

	has, err := HasWinner("g1", 42)
	if err != nil {
		t.Fatalf("HasWinner failed: %v", err)
	}
	if has {
		t.Fatalf("no winner expected yet")
	}

	for i, v := range []int64{10, 20, 30} {
		tx, _ := db.Begin()
		if err := InsertWinnerTx(tx, "g1", "alice", "cookie", v); err != nil {
			t.Fatalf("insert %d failed: %v", i, err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("commit failed: %v", err)
		}
	}

	if has, _ := HasWinner("g1", 20); !has {
		t.Fatalf("winner at 20 expected")
	}

	winners, err := GetWinners("g1", 2)
	if err != nil {
		t.Fatalf("GetWinners failed: %v", err)
	}
	if len(winners) != 2 {
		t.Fatalf("unexpected winner count: got=%d want=2", len(winners))
	}
	// 新しい当選が先
	if winners[0].ValueWonAt != 30 {
		t.Fatalf("unexpected order: got=%d want=30", winners[0].ValueWonAt)
	}
}

func TestTallies_BadgesAndOrdering(t *testing.T) {
	setupTestDB(t)

	// 49回目まではバッジなし、50回目でcounter
	for i := 0; i < 50; i++ {
		if err := RecordCorrect("g1", "alice", int64(i)); err != nil {
			t.Fatalf("RecordCorrect failed: %v", err)
		}
	}
	tal, err := GetTally("g1", "alice")
	if err != nil {
		t.Fatalf("GetTally failed: %v", err)
	}
	if tal.Correct != 50 || tal.Badges != "counter" {
		t.Fatalf("unexpected tally: correct=%d badges=%q", tal.Correct, tal.Badges)
	}
	if tal.BestStreak != 49 {
		t.Fatalf("unexpected best streak: got=%d want=49", tal.BestStreak)
	}

	if err := RecordWrong("g1", "alice"); err != nil {
		t.Fatalf("RecordWrong failed: %v", err)
	}
	if err := RecordCorrect("g1", "bob", 1); err != nil {
		t.Fatalf("RecordCorrect failed: %v", err)
	}

	top, err := TopTallies("g1", 10)
	if err != nil {
		t.Fatalf("TopTallies failed: %v", err)
	}
	if len(top) != 2 || top[0].UserID != "alice" || top[1].UserID != "bob" {
		t.Fatalf("unexpected ordering: %+v", top)
	}
	if top[0].Wrong != 1 {
		t.Fatalf("wrong count not recorded: got=%d", top[0].Wrong)
	}
}

func TestGetTally_AbsentIsZero(t *testing.T) {
	setupTestDB(t)

	tal, err := GetTally("g1", "ghost")
	if err != nil {
		t.Fatalf("GetTally failed: %v", err)
	}
	if tal.Correct != 0 || tal.Wrong != 0 || tal.Badges != "" {
		t.Fatalf("absent tally should be zero-valued: %+v", tal)
	}
}

func TestTickets_IdempotentInsert(t *testing.T) {
	setupTestDB(t)

	first := &Ticket{GuildID: "g1", ValueWonAt: 42, Handle: "h1", UserID: "alice", Prize: "cookie"}
	if err := SaveTicket(first); err != nil {
		t.Fatalf("SaveTicket failed: %v", err)
	}

	// 同じ当選への2枚目はDO NOTHINGで先勝ち
	second := &Ticket{GuildID: "g1", ValueWonAt: 42, Handle: "h2", UserID: "alice", Prize: "cookie"}
	if err := SaveTicket(second); err != nil {
		t.Fatalf("second SaveTicket failed: %v", err)
	}

	got, err := GetTicket("g1", 42)
	if err != nil {
		t.Fatalf("GetTicket failed: %v", err)
	}
	if got == nil || got.Handle != "h1" {
		t.Fatalf("first ticket should win: %+v", got)
	}

	byHandle, err := GetTicketByHandle("h1")
	if err != nil {
		t.Fatalf("GetTicketByHandle failed: %v", err)
	}
	if byHandle == nil || byHandle.GuildID != "g1" || byHandle.ValueWonAt != 42 {
		t.Fatalf("unexpected ticket: %+v", byHandle)
	}

	if missing, _ := GetTicketByHandle("nope"); missing != nil {
		t.Fatalf("absent handle should return nil")
	}
}
