package antiabuse

import (
	"sync"
	"time"
)

// しきい値は独立して評価される。同じ1回の誤答で両方が発火してよい。
const (
	// StreakLimit 回連続で誤答・連投した投稿者をベンチ入りさせる。
	StreakLimit = 3
	// GuildWrongLimit 回のギルド累計誤答で整理リセットを要求する。
	GuildWrongLimit = 5
)

type lockKey struct {
	guildID string
	userID  string
}

type streakKey struct {
	guildID   string
	channelID string
	userID    string
}

// Effect は1回の誤答を記録した結果。
type Effect struct {
	// LockedUntil is non-nil when this rejection benched the contributor.
	LockedUntil *time.Time
	// TidyReset is true when the guild-wide counter hit its limit.
	TidyReset bool
}

// Guard tracks per-contributor wrong streaks and temporary locks.
// プロセス内メモリのみ。再起動で消えても正しさには影響しない。
type Guard struct {
	mu         sync.Mutex
	locks      map[lockKey]time.Time
	streaks    map[streakKey]int
	guildWrong map[string]int
}

func NewGuard() *Guard {
	return &Guard{
		locks:      make(map[lockKey]time.Time),
		streaks:    make(map[streakKey]int),
		guildWrong: make(map[string]int),
	}
}

// CheckLock reports whether the contributor is benched. Expired locks are
// removed lazily on the contributor's next message.
func (g *Guard) CheckLock(guildID, userID string, now time.Time) (bool, time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := lockKey{guildID, userID}
	until, ok := g.locks[key]
	if !ok {
		return false, time.Time{}
	}
	if !now.Before(until) {
		delete(g.locks, key)
		return false, time.Time{}
	}
	return true, until
}

// RecordRejection updates both wrong counters for one REJECTED_* outcome and
// returns which thresholds fired.
func (g *Guard) RecordRejection(guildID, channelID, userID string, benchMinutes int64, now time.Time) Effect {
	g.mu.Lock()
	defer g.mu.Unlock()

	var effect Effect

	sk := streakKey{guildID, channelID, userID}
	g.streaks[sk]++
	if g.streaks[sk] >= StreakLimit {
		g.streaks[sk] = 0
		until := now.Add(time.Duration(benchMinutes) * time.Minute)
		g.locks[lockKey{guildID, userID}] = until
		effect.LockedUntil = &until
	}

	g.guildWrong[guildID]++
	if g.guildWrong[guildID] >= GuildWrongLimit {
		g.guildWrong[guildID] = 0
		effect.TidyReset = true
	}

	return effect
}

// ClearStreak zeroes the contributor's wrong streak (on ACCEPTED).
func (g *Guard) ClearStreak(guildID, channelID, userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.streaks, streakKey{guildID, channelID, userID})
}

// Unlock removes a contributor's lock (manual unbench).
func (g *Guard) Unlock(guildID, userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.locks, lockKey{guildID, userID})
}
