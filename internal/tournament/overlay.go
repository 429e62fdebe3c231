package tournament

import (
	"errors"
	"time"

	"github.com/nantokaworks/counting-bot/internal/localdb"
	"github.com/nantokaworks/counting-bot/internal/shared/logger"
	"go.uber.org/zap"
)

// TallyOutcome はジャックポット当選のトーナメント計上結果。
type TallyOutcome string

const (
	// Inactive: トーナメント外の当選。計上なし。
	Inactive TallyOutcome = "inactive"
	// Counted: リーダーボードに計上された。
	Counted TallyOutcome = "counted"
	// Silent: 上限到達後、告知なしで素通しされた。
	Silent TallyOutcome = "silent"
	// Uncounted: 上限到達後、告知ありだが計上なし。
	Uncounted TallyOutcome = "uncounted"
)

var ErrInvalidDuration = errors.New("tournament duration must be positive")
var ErrInvalidCap = errors.New("tournament award cap must be positive")

// Overlay caps how many jackpot awards count toward the leaderboard
// within a time-boxed window.
type Overlay struct{}

func NewOverlay() *Overlay {
	return &Overlay{}
}

// Status returns the guild's tournament, expiring it lazily.
// 期限切れはバックグラウンドタイマーではなく次のアクセス時に評価する。
func (o *Overlay) Status(guildID string, now time.Time) (*localdb.Tournament, error) {
	t, err := localdb.GetTournament(guildID)
	if err != nil {
		return nil, err
	}
	if t.Active && !now.Before(t.EndsAt) {
		t.Active = false
		if err := localdb.SaveTournament(t); err != nil {
			return nil, err
		}
		logger.Info("Tournament expired", zap.String("guild_id", guildID))
	}
	return t, nil
}

// Account records one jackpot award against the active tournament, if any.
func (o *Overlay) Account(guildID, userID string, now time.Time) (TallyOutcome, error) {
	t, err := o.Status(guildID, now)
	if err != nil {
		return Inactive, err
	}
	if !t.Active {
		return Inactive, nil
	}

	if t.AwardsSoFar >= t.MaxAwards {
		if t.SilentAfterCap {
			return Silent, nil
		}
		return Uncounted, nil
	}

	// 枠の消費と計上は1トランザクションで確定する
	t.AwardsSoFar++
	if err := localdb.RecordTournamentAwardTx(t, userID); err != nil {
		return Inactive, err
	}
	return Counted, nil
}

// Start opens a new tournament window and clears previous tallies.
func (o *Overlay) Start(guildID string, duration time.Duration, reward string, maxAwards int64, silentAfterCap bool) (*localdb.Tournament, error) {
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if maxAwards <= 0 {
		return nil, ErrInvalidCap
	}

	t := &localdb.Tournament{
		GuildID:        guildID,
		Active:         true,
		EndsAt:         time.Now().Add(duration),
		Reward:         reward,
		MaxAwards:      maxAwards,
		AwardsSoFar:    0,
		SilentAfterCap: silentAfterCap,
	}
	if err := localdb.SaveTournament(t); err != nil {
		return nil, err
	}
	if err := localdb.ResetTournamentWins(guildID); err != nil {
		return nil, err
	}

	logger.Info("Tournament started",
		zap.String("guild_id", guildID),
		zap.Duration("duration", duration),
		zap.Int64("max_awards", maxAwards))
	return t, nil
}

// End closes the tournament. Tallies stay queryable until the next Start.
func (o *Overlay) End(guildID string) error {
	t, err := localdb.GetTournament(guildID)
	if err != nil {
		return err
	}
	if !t.Active {
		return nil
	}
	t.Active = false
	if err := localdb.SaveTournament(t); err != nil {
		return err
	}
	logger.Info("Tournament ended", zap.String("guild_id", guildID))
	return nil
}

// Leaderboard returns the current win tallies.
func (o *Overlay) Leaderboard(guildID string, limit int) ([]localdb.TournamentWin, error) {
	return localdb.TournamentLeaderboard(guildID, limit)
}
