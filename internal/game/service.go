package game

import (
	"context"
	"sync"
	"time"

	"github.com/nantokaworks/counting-bot/internal/antiabuse"
	"github.com/nantokaworks/counting-bot/internal/broadcast"
	"github.com/nantokaworks/counting-bot/internal/counting"
	"github.com/nantokaworks/counting-bot/internal/jackpot"
	"github.com/nantokaworks/counting-bot/internal/localdb"
	"github.com/nantokaworks/counting-bot/internal/shared/logger"
	"github.com/nantokaworks/counting-bot/internal/ticketissuer"
	"github.com/nantokaworks/counting-bot/internal/tournament"
	"go.uber.org/zap"
)

// Outcome は1投稿に対するパイプライン全体の結果種別。
type Outcome string

const (
	OutcomeAccepted           Outcome = "accepted"
	OutcomeRejectedDoublePost Outcome = "rejected_double_post"
	OutcomeRejectedWrongValue Outcome = "rejected_wrong_value"
	OutcomeIgnoredNotAToken   Outcome = "ignored_not_a_token"
	OutcomeIgnoredPaused      Outcome = "ignored_paused"
	// OutcomeLockedDiscard: ベンチ中の投稿。下流には何も流さず破棄する。
	OutcomeLockedDiscard Outcome = "locked_discard"
)

// Event は受信した1投稿。
type Event struct {
	GuildID   string
	ChannelID string
	UserID    string
	Content   string
	Timestamp time.Time
}

// Result は表示層が必要とする判定結果の全て。
type Result struct {
	Outcome  Outcome
	Posted   string // 表示用のパース済みトークン
	Expected string // 表示用の期待トークン

	GuildStreak     int64
	BestGuildStreak int64

	// 拒否系
	LockedUntil  *time.Time
	BenchMinutes int64
	TidyReset    bool

	// 受理系
	Value          int64
	MilestoneHit   bool
	Jackpot        jackpot.ClaimResult
	Prize          string
	Tournament     tournament.TallyOutcome
	Ticket         *localdb.Ticket
	TicketIssueErr error // 当選は確定済み。表示層は代替の受取案内を出す。
}

// Service runs the counting pipeline:
// lock check → parse/apply → tallies → jackpot claim → tournament → ticket.
// ギルドごとに直列化する。別ギルドは並行処理してよい。
type Service struct {
	machine *counting.Machine
	guard   *antiabuse.Guard
	engine  *jackpot.Engine
	overlay *tournament.Overlay
	issuer  *ticketissuer.Issuer

	mu      sync.Mutex
	guildMu map[string]*sync.Mutex
}

func NewService(machine *counting.Machine, guard *antiabuse.Guard, engine *jackpot.Engine, overlay *tournament.Overlay, issuer *ticketissuer.Issuer) *Service {
	return &Service{
		machine: machine,
		guard:   guard,
		engine:  engine,
		overlay: overlay,
		issuer:  issuer,
		guildMu: make(map[string]*sync.Mutex),
	}
}

func (s *Service) lockGuild(guildID string) func() {
	s.mu.Lock()
	m, ok := s.guildMu[guildID]
	if !ok {
		m = &sync.Mutex{}
		s.guildMu[guildID] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// HandleMessage runs one inbound contribution through the pipeline.
// 対象チャンネル外の投稿は(nil, nil)で無視する。
func (s *Service) HandleMessage(ctx context.Context, ev Event) (*Result, error) {
	unlock := s.lockGuild(ev.GuildID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st, err := localdb.GetGuildState(ev.GuildID)
	if err != nil {
		return nil, err
	}

	if st.ChannelID == "" || st.ChannelID != ev.ChannelID {
		return nil, nil
	}

	now := ev.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	if locked, until := s.guard.CheckLock(ev.GuildID, ev.UserID, now); locked {
		return &Result{Outcome: OutcomeLockedDiscard, LockedUntil: &until}, nil
	}

	// 参照時にターゲット/マイルストーンを確実にアームしておく
	armed := s.engine.ArmIfNeeded(st)
	before := st.NextMilestone
	counting.EnsureMilestone(st)
	armed = armed || st.NextMilestone != before

	g := s.machine.GrammarFor(st)
	res := s.machine.Apply(st, ev.UserID, ev.Content)

	switch res.Outcome {
	case counting.IgnoredPaused, counting.IgnoredNotAToken:
		if armed {
			if err := localdb.SaveGuildState(st); err != nil {
				return nil, err
			}
		}
		return &Result{Outcome: Outcome(res.Outcome)}, nil

	case counting.RejectedDoublePost, counting.RejectedWrongValue:
		return s.handleRejection(st, g, ev, res, now)

	case counting.Accepted:
		return s.handleAccepted(st, g, ev, res, now)
	}

	return &Result{Outcome: Outcome(res.Outcome)}, nil
}

func (s *Service) handleRejection(st *localdb.GuildState, g counting.Grammar, ev Event, res counting.Result, now time.Time) (*Result, error) {
	// リセット後の位置を基準にターゲットを引き直す
	s.engine.Arm(st)

	effect := s.guard.RecordRejection(ev.GuildID, ev.ChannelID, ev.UserID, st.BenchMinutes, now)
	if effect.TidyReset {
		// ギルド累計のしきい値。直前の誤答処理で既にリセット済みだが、
		// 整理リセットとして独立に適用する（同一イベントで両方発火しうる）。
		s.machine.Reset(st)
	}

	if err := localdb.SaveGuildState(st); err != nil {
		return nil, err
	}

	if err := localdb.RecordWrong(ev.GuildID, ev.UserID); err != nil {
		logger.Warn("Failed to record wrong tally", zap.Error(err), zap.String("guild_id", ev.GuildID))
	}

	out := &Result{
		Outcome:      Outcome(res.Outcome),
		Posted:       g.Format(res.Posted),
		Expected:     g.Format(res.Expected),
		BenchMinutes: st.BenchMinutes,
		LockedUntil:  effect.LockedUntil,
		TidyReset:    effect.TidyReset,
	}

	broadcast.Send(map[string]interface{}{
		"type": "count-outcome",
		"data": map[string]interface{}{
			"guildId": ev.GuildID,
			"outcome": string(out.Outcome),
			"posted":  out.Posted,
			"locked":  out.LockedUntil != nil,
		},
	})
	return out, nil
}

func (s *Service) handleAccepted(st *localdb.GuildState, g counting.Grammar, ev Event, res counting.Result, now time.Time) (*Result, error) {
	s.guard.ClearStreak(ev.GuildID, ev.ChannelID, ev.UserID)

	// 周回完了でCurrentValueが先頭へ戻っていても、受理された値自体で判定する
	out := &Result{
		Outcome:         OutcomeAccepted,
		Posted:          g.Format(res.Posted),
		Expected:        g.Format(res.Expected),
		Value:           res.Posted,
		GuildStreak:     st.GuildStreak,
		BestGuildStreak: st.BestGuildStreak,
		MilestoneHit:    res.MilestoneHit,
		Prize:           st.JackpotPrize,
		Jackpot:         jackpot.NotTarget,
		Tournament:      tournament.Inactive,
	}

	// 当選時はGuildStateの保存までトランザクション内で確定する。
	// それ以外はここで1回のupsertで確定する。
	claim, err := s.engine.CheckAndClaim(st, res.Posted, ev.UserID)
	if err != nil {
		return nil, err
	}
	out.Jackpot = claim
	if claim != jackpot.Awarded {
		if err := localdb.SaveGuildState(st); err != nil {
			return nil, err
		}
	}

	if err := localdb.RecordCorrect(ev.GuildID, ev.UserID, st.GuildStreak); err != nil {
		logger.Warn("Failed to record correct tally", zap.Error(err), zap.String("guild_id", ev.GuildID))
	}

	if claim == jackpot.Awarded {
		tallyOutcome, err := s.overlay.Account(ev.GuildID, ev.UserID, now)
		if err != nil {
			logger.Error("Failed to account tournament award", zap.Error(err), zap.String("guild_id", ev.GuildID))
		} else {
			out.Tournament = tallyOutcome
		}

		ticket, err := s.issuer.Issue(ev.GuildID, ev.UserID, out.Prize, out.Value)
		if err != nil {
			// 当選記録は既にコミット済み。チケットは後から再発行できる。
			logger.Error("Failed to issue prize ticket", zap.Error(err),
				zap.String("guild_id", ev.GuildID), zap.Int64("value", out.Value))
			out.TicketIssueErr = err
		} else {
			out.Ticket = ticket
		}
	}

	broadcast.Send(map[string]interface{}{
		"type": "count-outcome",
		"data": map[string]interface{}{
			"guildId":   ev.GuildID,
			"outcome":   string(out.Outcome),
			"value":     out.Value,
			"streak":    out.GuildStreak,
			"milestone": out.MilestoneHit,
			"jackpot":   string(out.Jackpot),
		},
	})
	return out, nil
}
