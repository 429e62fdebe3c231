package antiabuse

import (
	"testing"
	"time"
)

func TestGuard_ThirdRejectionBenches(t *testing.T) {
	g := NewGuard()
	now := time.Now()

	for i := 0; i < StreakLimit-1; i++ {
		eff := g.RecordRejection("g1", "c1", "alice", 5, now)
		if eff.LockedUntil != nil {
			t.Fatalf("rejection %d should not bench", i+1)
		}
	}

	eff := g.RecordRejection("g1", "c1", "alice", 5, now)
	if eff.LockedUntil == nil {
		t.Fatalf("rejection %d should bench", StreakLimit)
	}
	want := now.Add(5 * time.Minute)
	if !eff.LockedUntil.Equal(want) {
		t.Fatalf("unexpected lock end: got=%v want=%v", eff.LockedUntil, want)
	}

	locked, until := g.CheckLock("g1", "alice", now)
	if !locked || !until.Equal(want) {
		t.Fatalf("contributor should be locked until %v: locked=%v until=%v", want, locked, until)
	}
}

func TestGuard_LockExpiresLazily(t *testing.T) {
	g := NewGuard()
	now := time.Now()

	for i := 0; i < StreakLimit; i++ {
		g.RecordRejection("g1", "c1", "alice", 5, now)
	}

	if locked, _ := g.CheckLock("g1", "alice", now.Add(4*time.Minute)); !locked {
		t.Fatalf("lock should still hold before expiry")
	}
	if locked, _ := g.CheckLock("g1", "alice", now.Add(5*time.Minute)); locked {
		t.Fatalf("lock should expire at the boundary")
	}
	// 期限切れのロックは消えている
	if locked, _ := g.CheckLock("g1", "alice", now); locked {
		t.Fatalf("expired lock must be removed, not resurrected")
	}
}

func TestGuard_AcceptClearsStreak(t *testing.T) {
	g := NewGuard()
	now := time.Now()

	g.RecordRejection("g1", "c1", "alice", 5, now)
	g.RecordRejection("g1", "c1", "alice", 5, now)
	g.ClearStreak("g1", "c1", "alice")

	// ストリークが消えたので次の誤答は1回目扱い
	eff := g.RecordRejection("g1", "c1", "alice", 5, now)
	if eff.LockedUntil != nil {
		t.Fatalf("streak should have been cleared by an accept")
	}
}

func TestGuard_StreaksAreScopedPerContributor(t *testing.T) {
	g := NewGuard()
	now := time.Now()

	g.RecordRejection("g1", "c1", "alice", 5, now)
	g.RecordRejection("g1", "c1", "alice", 5, now)

	// 別人の誤答はaliceのストリークに乗らない
	if eff := g.RecordRejection("g1", "c1", "bob", 5, now); eff.LockedUntil != nil {
		t.Fatalf("bob's first rejection must not bench")
	}
	// 別ギルドの同名ユーザーも独立
	if eff := g.RecordRejection("g2", "c1", "alice", 5, now); eff.LockedUntil != nil {
		t.Fatalf("another guild's streak must be independent")
	}
}

func TestGuard_GuildWrongLimitFiresIndependently(t *testing.T) {
	g := NewGuard()
	now := time.Now()

	// 5人が1回ずつ間違える。誰もベンチされないがtidy resetは発火する。
	users := []string{"a", "b", "c", "d", "e"}
	var tidy bool
	for _, u := range users {
		eff := g.RecordRejection("g1", "c1", u, 5, now)
		if eff.LockedUntil != nil {
			t.Fatalf("single rejection must not bench %q", u)
		}
		tidy = tidy || eff.TidyReset
	}
	if !tidy {
		t.Fatalf("guild counter should have fired after %d rejections", GuildWrongLimit)
	}

	// 発火後はカウンタが0に戻る
	if eff := g.RecordRejection("g1", "c1", "f", 5, now); eff.TidyReset {
		t.Fatalf("guild counter should have reset after firing")
	}
}

func TestGuard_BothThresholdsCanFireTogether(t *testing.T) {
	g := NewGuard()
	now := time.Now()

	g.RecordRejection("g1", "c1", "alice", 5, now)
	g.RecordRejection("g1", "c1", "alice", 5, now)
	g.RecordRejection("g1", "c1", "bob", 5, now)
	g.RecordRejection("g1", "c1", "bob", 5, now)

	// 5件目のギルド誤答がaliceの3連続でもある
	eff := g.RecordRejection("g1", "c1", "alice", 5, now)
	if eff.LockedUntil == nil {
		t.Fatalf("streak threshold should fire")
	}
	if !eff.TidyReset {
		t.Fatalf("guild threshold should fire on the same rejection")
	}
}

func TestGuard_Unlock(t *testing.T) {
	g := NewGuard()
	now := time.Now()

	for i := 0; i < StreakLimit; i++ {
		g.RecordRejection("g1", "c1", "alice", 60, now)
	}
	if locked, _ := g.CheckLock("g1", "alice", now); !locked {
		t.Fatalf("setup: contributor should be locked")
	}

	g.Unlock("g1", "alice")
	if locked, _ := g.CheckLock("g1", "alice", now); locked {
		t.Fatalf("manual unbench should clear the lock")
	}
}
