package jackpot

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/nantokaworks/counting-bot/internal/localdb"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	if _, err := localdb.SetupDB(dbPath); err != nil {
		t.Fatalf("failed to setup test database: %v", err)
	}
	t.Cleanup(func() {
		if err := localdb.CloseDB(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
}

func testState() *localdb.GuildState {
	st := localdb.DefaultGuildState("g1")
	st.CurrentValue = 10
	st.JackpotMin = 5
	st.JackpotMax = 20
	st.JackpotPrize = "a cookie"
	return st
}

func TestEngine_ArmWithinRange(t *testing.T) {
	e := NewEngine()
	st := testState()

	for i := 0; i < 200; i++ {
		target := e.Arm(st)
		step := target - st.CurrentValue
		if step < st.JackpotMin || step > st.JackpotMax {
			t.Fatalf("armed step out of range: got=%d want=[%d,%d]", step, st.JackpotMin, st.JackpotMax)
		}
	}
}

func TestEngine_ArmFixedWindow(t *testing.T) {
	e := NewEngine()
	st := testState()
	st.JackpotMode = localdb.ArmingFixedWindow
	st.JackpotWindow = 3

	for i := 0; i < 100; i++ {
		target := e.Arm(st)
		step := target - st.CurrentValue
		if step < 1 || step > 3 {
			t.Fatalf("fixed window step out of range: got=%d want=[1,3]", step)
		}
	}
}

func TestEngine_ArmDegenerateRange(t *testing.T) {
	e := NewEngine()
	st := testState()
	st.JackpotMin = 7
	st.JackpotMax = 7

	if target := e.Arm(st); target != st.CurrentValue+7 {
		t.Fatalf("degenerate range: got=%d want=%d", target, st.CurrentValue+7)
	}
}

func TestEngine_ArmIfNeeded(t *testing.T) {
	e := NewEngine()
	st := testState()

	st.JackpotTarget = 0
	if !e.ArmIfNeeded(st) {
		t.Fatalf("unarmed state should arm")
	}
	if st.JackpotTarget <= st.CurrentValue {
		t.Fatalf("armed target must be ahead: target=%d current=%d", st.JackpotTarget, st.CurrentValue)
	}

	prev := st.JackpotTarget
	if e.ArmIfNeeded(st) {
		t.Fatalf("live target must not be re-armed")
	}
	if st.JackpotTarget != prev {
		t.Fatalf("target changed: got=%d want=%d", st.JackpotTarget, prev)
	}

	// カウントがターゲットを追い越した古い状態は再アーム
	st.CurrentValue = st.JackpotTarget + 5
	if !e.ArmIfNeeded(st) {
		t.Fatalf("stale target should re-arm")
	}
}

func TestEngine_CheckAndClaim_NotTarget(t *testing.T) {
	setupTestDB(t)
	e := NewEngine()
	st := testState()
	st.JackpotTarget = 42

	res, err := e.CheckAndClaim(st, 41, "alice")
	if err != nil {
		t.Fatalf("CheckAndClaim failed: %v", err)
	}
	if res != NotTarget {
		t.Fatalf("unexpected result: got=%v want=%v", res, NotTarget)
	}

	st.JackpotTarget = 0
	if res, _ := e.CheckAndClaim(st, 0, "alice"); res != NotTarget {
		t.Fatalf("unarmed state must never award: got=%v", res)
	}
}

func TestEngine_CheckAndClaim_Awarded(t *testing.T) {
	setupTestDB(t)
	e := NewEngine()
	st := testState()
	st.CurrentValue = 42
	st.JackpotTarget = 42

	res, err := e.CheckAndClaim(st, 42, "alice")
	if err != nil {
		t.Fatalf("CheckAndClaim failed: %v", err)
	}
	if res != Awarded {
		t.Fatalf("unexpected result: got=%v want=%v", res, Awarded)
	}
	if st.LastAwardValue != 42 {
		t.Fatalf("unexpected last award: got=%d want=42", st.LastAwardValue)
	}
	if st.JackpotTarget <= st.CurrentValue {
		t.Fatalf("new target must be ahead: target=%d current=%d", st.JackpotTarget, st.CurrentValue)
	}

	winners, err := localdb.GetWinners("g1", 10)
	if err != nil {
		t.Fatalf("GetWinners failed: %v", err)
	}
	if len(winners) != 1 {
		t.Fatalf("unexpected winner count: got=%d want=1", len(winners))
	}
	if winners[0].UserID != "alice" || winners[0].Prize != "a cookie" || winners[0].ValueWonAt != 42 {
		t.Fatalf("unexpected winner record: %+v", winners[0])
	}

	// 状態もトランザクションで永続化されている
	saved, err := localdb.GetGuildState("g1")
	if err != nil {
		t.Fatalf("GetGuildState failed: %v", err)
	}
	if saved.LastAwardValue != 42 || saved.JackpotTarget != st.JackpotTarget {
		t.Fatalf("state not persisted with the claim: %+v", saved)
	}
}

func TestEngine_CheckAndClaim_SecondClaimLoses(t *testing.T) {
	setupTestDB(t)
	e := NewEngine()
	st := testState()
	st.CurrentValue = 42
	st.JackpotTarget = 42

	if res, err := e.CheckAndClaim(st, 42, "alice"); err != nil || res != Awarded {
		t.Fatalf("setup claim: res=%v err=%v", res, err)
	}

	// 同じ値への2件目は既存の当選記録で弾かれる
	st2 := testState()
	st2.CurrentValue = 42
	st2.JackpotTarget = 42
	res, err := e.CheckAndClaim(st2, 42, "bob")
	if err != nil {
		t.Fatalf("second claim errored: %v", err)
	}
	if res != AlreadyClaimed {
		t.Fatalf("unexpected result: got=%v want=%v", res, AlreadyClaimed)
	}

	winners, _ := localdb.GetWinners("g1", 10)
	if len(winners) != 1 || winners[0].UserID != "alice" {
		t.Fatalf("exactly one winner expected: %+v", winners)
	}
}

func TestEngine_CheckAndClaim_ConcurrentSingleWinner(t *testing.T) {
	setupTestDB(t)
	e := NewEngine()

	const claimers = 16
	results := make([]ClaimResult, claimers)
	var wg sync.WaitGroup
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st := testState()
			st.CurrentValue = 42
			st.JackpotTarget = 42
			res, err := e.CheckAndClaim(st, 42, "user")
			if err != nil {
				t.Errorf("claim %d errored: %v", i, err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	awarded := 0
	for _, r := range results {
		if r == Awarded {
			awarded++
		}
	}
	if awarded != 1 {
		t.Fatalf("exactly one claimer must win: got=%d", awarded)
	}

	winners, _ := localdb.GetWinners("g1", 100)
	if len(winners) != 1 {
		t.Fatalf("exactly one winner row expected: got=%d", len(winners))
	}
}

func TestEngine_CheckAndClaim_FixedWindowRevertsToRandom(t *testing.T) {
	setupTestDB(t)
	e := NewEngine()
	st := testState()
	st.CurrentValue = 12
	st.JackpotMode = localdb.ArmingFixedWindow
	st.JackpotWindow = 3
	st.JackpotTarget = 12

	res, err := e.CheckAndClaim(st, 12, "alice")
	if err != nil || res != Awarded {
		t.Fatalf("claim: res=%v err=%v", res, err)
	}
	if st.JackpotMode != localdb.ArmingRandom || st.JackpotWindow != 0 {
		t.Fatalf("fixed window should revert after the award: mode=%q window=%d", st.JackpotMode, st.JackpotWindow)
	}
}
