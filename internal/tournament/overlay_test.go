package tournament

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

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

func TestOverlay_StartValidation(t *testing.T) {
	setupTestDB(t)
	o := NewOverlay()

	if _, err := o.Start("g1", 0, "", 3, false); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := o.Start("g1", time.Hour, "", 0, false); !errors.Is(err, ErrInvalidCap) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOverlay_AccountCountsUpToCap(t *testing.T) {
	setupTestDB(t)
	o := NewOverlay()
	now := time.Now()

	if _, err := o.Start("g1", time.Hour, "trophy", 2, false); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	out, err := o.Account("g1", "alice", now)
	if err != nil || out != Counted {
		t.Fatalf("first award: out=%v err=%v", out, err)
	}
	out, err = o.Account("g1", "bob", now)
	if err != nil || out != Counted {
		t.Fatalf("second award: out=%v err=%v", out, err)
	}

	// 上限到達後は計上されない
	out, err = o.Account("g1", "carol", now)
	if err != nil || out != Uncounted {
		t.Fatalf("over-cap award: out=%v err=%v", out, err)
	}

	wins, err := o.Leaderboard("g1", 10)
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	if len(wins) != 2 {
		t.Fatalf("unexpected leaderboard size: got=%d want=2", len(wins))
	}
	for _, w := range wins {
		if w.UserID == "carol" {
			t.Fatalf("over-cap winner must not appear on the leaderboard")
		}
	}
}

func TestOverlay_SilentAfterCap(t *testing.T) {
	setupTestDB(t)
	o := NewOverlay()
	now := time.Now()

	if _, err := o.Start("g1", time.Hour, "", 1, true); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if out, _ := o.Account("g1", "alice", now); out != Counted {
		t.Fatalf("first award should count: got=%v", out)
	}
	if out, _ := o.Account("g1", "bob", now); out != Silent {
		t.Fatalf("over-cap award should be silent: got=%v", out)
	}
}

func TestOverlay_InactiveGuild(t *testing.T) {
	setupTestDB(t)
	o := NewOverlay()

	out, err := o.Account("g1", "alice", time.Now())
	if err != nil || out != Inactive {
		t.Fatalf("no tournament: out=%v err=%v", out, err)
	}
}

func TestOverlay_LazyExpiry(t *testing.T) {
	setupTestDB(t)
	o := NewOverlay()

	if _, err := o.Start("g1", time.Minute, "", 5, false); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	later := time.Now().Add(2 * time.Minute)
	st, err := o.Status("g1", later)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.Active {
		t.Fatalf("tournament should have expired")
	}

	// 期限後の当選は計上されない
	if out, _ := o.Account("g1", "alice", later); out != Inactive {
		t.Fatalf("expired tournament must not count awards: got=%v", out)
	}

	// 失効は永続化されている
	saved, err := localdb.GetTournament("g1")
	if err != nil {
		t.Fatalf("GetTournament failed: %v", err)
	}
	if saved.Active {
		t.Fatalf("expiry must be persisted")
	}
}

func TestOverlay_FailedTallyKeepsCapIntact(t *testing.T) {
	setupTestDB(t)
	o := NewOverlay()
	now := time.Now()

	if _, err := o.Start("g1", time.Hour, "", 2, false); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// 計上側の書き込みを失敗させる
	if _, err := localdb.GetDB().Exec(`DROP TABLE tournament_wins`); err != nil {
		t.Fatalf("failed to drop table: %v", err)
	}

	out, err := o.Account("g1", "alice", now)
	if err == nil {
		t.Fatalf("Account should fail: out=%v", out)
	}

	// 失敗した当選で枠だけが消費されてはならない
	saved, err := localdb.GetTournament("g1")
	if err != nil {
		t.Fatalf("GetTournament failed: %v", err)
	}
	if saved.AwardsSoFar != 0 {
		t.Fatalf("cap consumed without a tally row: got=%d want=0", saved.AwardsSoFar)
	}
}

func TestOverlay_StartClearsPreviousTallies(t *testing.T) {
	setupTestDB(t)
	o := NewOverlay()
	now := time.Now()

	if _, err := o.Start("g1", time.Hour, "", 5, false); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if out, _ := o.Account("g1", "alice", now); out != Counted {
		t.Fatalf("setup award failed")
	}

	// EndしてもLeaderboardは残る
	if err := o.End("g1"); err != nil {
		t.Fatalf("End failed: %v", err)
	}
	wins, _ := o.Leaderboard("g1", 10)
	if len(wins) != 1 {
		t.Fatalf("tallies should survive End: got=%d", len(wins))
	}

	// 次のStartでクリアされる
	if _, err := o.Start("g1", time.Hour, "", 5, false); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	wins, _ = o.Leaderboard("g1", 10)
	if len(wins) != 0 {
		t.Fatalf("Start must clear previous tallies: got=%d", len(wins))
	}
}
