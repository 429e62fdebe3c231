package counting

import (
	crand "crypto/rand"
	"math/big"

	"github.com/nantokaworks/counting-bot/internal/localdb"
)

// Outcome は1投稿に対するカウント判定の結果。
type Outcome string

const (
	Accepted           Outcome = "accepted"
	RejectedDoublePost Outcome = "rejected_double_post"
	RejectedWrongValue Outcome = "rejected_wrong_value"
	IgnoredNotAToken   Outcome = "ignored_not_a_token"
	IgnoredPaused      Outcome = "ignored_paused"
)

// Rejected reports whether the outcome resets the count.
func (o Outcome) Rejected() bool {
	return o == RejectedDoublePost || o == RejectedWrongValue
}

// Result は判定結果と表示に必要な値を持つ。
type Result struct {
	Outcome      Outcome
	Posted       int64 // パースされたトークン（IGNORED_*では未定義）
	Expected     int64 // 判定時点で期待されていたトークン
	MilestoneHit bool  // ACCEPTEDかつマイルストーン到達
}

// Machine validates contributions against a guild's state and mutates it.
// 永続化は呼び出し側の責務（1投稿分の変更は1回のupsertで書く）。
type Machine struct {
	// WordNumbers は数字モードで数詞を受けるときの語→値テーブル。
	WordNumbers map[string]int64
}

var milestoneRandInt = secureRandomRange

// GrammarFor returns the grammar matching the guild's mode settings.
func (m *Machine) GrammarFor(st *localdb.GuildState) Grammar {
	if st.Mode == localdb.ModeAlphabetic {
		return AlphabeticGrammar{Wrap: st.WrapLetters, Reverse: st.ReverseLetters}
	}
	var words map[string]int64
	if st.WordNumbers {
		words = m.WordNumbers
	}
	return NumericGrammar{Words: words}
}

// ExpectedNext returns the token the guild expects next.
func (m *Machine) ExpectedNext(st *localdb.GuildState) int64 {
	return m.GrammarFor(st).Advance(st.CurrentValue)
}

// Apply runs one contribution through the counting rules, mutating st in place.
func (m *Machine) Apply(st *localdb.GuildState, userID, text string) Result {
	if st.Paused {
		return Result{Outcome: IgnoredPaused}
	}

	g := m.GrammarFor(st)
	posted, ok := g.Parse(text, st.StrictParsing)
	if !ok {
		// カウントと無関係の雑談。ペナルティなし。
		return Result{Outcome: IgnoredNotAToken}
	}

	expected := g.Advance(st.CurrentValue)

	if st.LastUserID != "" && st.LastUserID == userID {
		m.Reset(st)
		return Result{Outcome: RejectedDoublePost, Posted: posted, Expected: expected}
	}

	if posted != expected {
		m.Reset(st)
		return Result{Outcome: RejectedWrongValue, Posted: posted, Expected: expected}
	}

	st.CurrentValue = expected
	st.LastUserID = userID
	st.GuildStreak++
	if st.GuildStreak > st.BestGuildStreak {
		st.BestGuildStreak = st.GuildStreak
	}

	res := Result{Outcome: Accepted, Posted: posted, Expected: expected}
	if st.NextMilestone != 0 && st.CurrentValue == st.NextMilestone {
		res.MilestoneHit = true
		ArmMilestone(st)
	}

	if g.Advance(st.CurrentValue) == 0 {
		// 列の終端（巻き戻しなしの文字モード）。次の周は誰が始めてもよい。
		st.CurrentValue = 0
		st.LastUserID = ""
	}
	return res
}

// Reset puts the count back to its starting position.
// 数字モードはstart-1、文字モードは「Aの手前」に戻す。
func (m *Machine) Reset(st *localdb.GuildState) {
	if st.Mode == localdb.ModeAlphabetic {
		st.CurrentValue = 0
	} else {
		st.CurrentValue = st.StartValue - 1
	}
	st.LastUserID = ""
	st.GuildStreak = 0
}

// ArmMilestone rolls the next milestone from [MilestoneMin, MilestoneMax],
// always ahead of the current count.
// 範囲が不正、または範囲全体を追い越し済みなら解除する。
func ArmMilestone(st *localdb.GuildState) {
	if st.MilestoneMin <= 0 || st.MilestoneMax < st.MilestoneMin || st.MilestoneMax <= st.CurrentValue {
		st.NextMilestone = 0
		return
	}
	lo := st.MilestoneMin
	if lo <= st.CurrentValue {
		lo = st.CurrentValue + 1
	}
	n, err := milestoneRandInt(lo, st.MilestoneMax)
	if err != nil {
		st.NextMilestone = 0
		return
	}
	st.NextMilestone = n
}

// EnsureMilestone re-arms the milestone when none is set or the count has
// already passed it.
func EnsureMilestone(st *localdb.GuildState) {
	if st.NextMilestone == 0 || st.NextMilestone <= st.CurrentValue {
		ArmMilestone(st)
	}
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
