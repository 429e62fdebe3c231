package jackpot

import (
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/nantokaworks/counting-bot/internal/localdb"
	"github.com/nantokaworks/counting-bot/internal/shared/logger"
	"go.uber.org/zap"
)

// ClaimResult はジャックポット申請の判定結果。
type ClaimResult string

const (
	NotTarget      ClaimResult = "not_target"
	Awarded        ClaimResult = "awarded"
	AlreadyClaimed ClaimResult = "already_claimed"
)

var randInt = secureRandomRange

// Engine owns target arming and the atomic single-winner claim.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Arm re-arms the hidden target ahead of the current position, mutating st.
// random: target = current + [lo, hi]。fixed_window: target = current + [1, window]。
// アーム時点で必ず target > current になる。
func (e *Engine) Arm(st *localdb.GuildState) int64 {
	lo := st.JackpotMin
	if lo < 1 {
		lo = 1
	}
	hi := st.JackpotMax
	if hi < lo {
		hi = lo
	}

	if st.JackpotMode == localdb.ArmingFixedWindow && st.JackpotWindow > 0 {
		lo = 1
		hi = st.JackpotWindow
	}

	step, err := randInt(lo, hi)
	if err != nil {
		// crypto/randが失敗するのは環境異常のみ。最小ステップで続行する。
		logger.Error("Failed to draw jackpot step", zap.Error(err))
		step = lo
	}

	st.JackpotTarget = st.CurrentValue + step
	return st.JackpotTarget
}

// ArmIfNeeded arms a target when none is armed or the armed one is stale.
func (e *Engine) ArmIfNeeded(st *localdb.GuildState) bool {
	if st.JackpotTarget != 0 && st.JackpotTarget > st.CurrentValue {
		return false
	}
	e.Arm(st)
	return true
}

// CheckAndClaim resolves whether reaching reachedValue wins the jackpot.
// 当選時はWinnerRecordの追記とGuildStateの更新を1トランザクションで確定する。
// 同じ値への競合申請はUNIQUE制約でちょうど1件だけ通る。
func (e *Engine) CheckAndClaim(st *localdb.GuildState, reachedValue int64, userID string) (ClaimResult, error) {
	if st.JackpotTarget == 0 || reachedValue != st.JackpotTarget {
		return NotTarget, nil
	}

	// 記録済みならトランザクションを張るまでもない。最終判定はUNIQUE制約が行う。
	if claimed, err := localdb.HasWinner(st.GuildID, reachedValue); err == nil && claimed {
		return AlreadyClaimed, nil
	}

	db := localdb.GetDB()
	if db == nil {
		return NotTarget, fmt.Errorf("database not initialized")
	}

	tx, err := db.Begin()
	if err != nil {
		return NotTarget, fmt.Errorf("failed to begin claim transaction: %w", err)
	}

	prize := st.JackpotPrize
	if err := localdb.InsertWinnerTx(tx, st.GuildID, userID, prize, reachedValue); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, localdb.ErrAlreadyClaimed) {
			return AlreadyClaimed, nil
		}
		return NotTarget, err
	}

	st.LastAwardValue = reachedValue
	st.JackpotTarget = 0
	// fixed_windowは次の1回限り。当選後はrandomに戻す。
	if st.JackpotMode == localdb.ArmingFixedWindow {
		st.JackpotMode = localdb.ArmingRandom
		st.JackpotWindow = 0
	}
	e.Arm(st)

	if err := localdb.SaveGuildStateTx(tx, st); err != nil {
		_ = tx.Rollback()
		return NotTarget, err
	}
	if err := tx.Commit(); err != nil {
		return NotTarget, fmt.Errorf("failed to commit claim transaction: %w", err)
	}

	logger.Info("Jackpot awarded",
		zap.String("guild_id", st.GuildID),
		zap.String("user_id", userID),
		zap.Int64("value", reachedValue),
		zap.Int64("next_target", st.JackpotTarget))
	return Awarded, nil
}

func secureRandomRange(lo, hi int64) (int64, error) {
	if hi < lo {
		hi = lo
	}
	n, err := crand.Int(crand.Reader, big.NewInt(hi-lo+1))
	if err != nil {
		return 0, err
	}
	return lo + n.Int64(), nil
}
