package game

import (
	"errors"
	"fmt"
	"time"

	"github.com/nantokaworks/counting-bot/internal/counting"
	"github.com/nantokaworks/counting-bot/internal/localdb"
	"github.com/nantokaworks/counting-bot/internal/shared/logger"
	"go.uber.org/zap"
)

// 管理操作のバリデーションエラー。状態は変更されない。
var (
	ErrInvalidMode   = errors.New("mode must be numeric or alphabetic")
	ErrInvalidStart  = errors.New("start value must be at least 1")
	ErrInvalidBench  = errors.New("bench minutes must be between 1 and 1440")
	ErrInvalidRange  = errors.New("jackpot range requires 1 <= min <= max")
	ErrInvalidWindow = errors.New("fixed window must be at least 1")
	ErrInvalidSpan   = errors.New("milestone range requires 1 <= min <= max")
)

// update runs a read-modify-write on the guild state under the guild lock.
func (s *Service) update(guildID string, fn func(st *localdb.GuildState) error) (*localdb.GuildState, error) {
	unlock := s.lockGuild(guildID)
	defer unlock()

	st, err := localdb.GetGuildState(guildID)
	if err != nil {
		return nil, err
	}
	if err := fn(st); err != nil {
		return nil, err
	}
	if err := localdb.SaveGuildState(st); err != nil {
		return nil, err
	}
	return st, nil
}

// State returns a snapshot of the guild state.
func (s *Service) State(guildID string) (*localdb.GuildState, error) {
	unlock := s.lockGuild(guildID)
	defer unlock()
	return localdb.GetGuildState(guildID)
}

// SetChannel binds the counting channel and optionally the start value.
func (s *Service) SetChannel(guildID, channelID string, startValue int64) (*localdb.GuildState, error) {
	if startValue < 1 {
		return nil, ErrInvalidStart
	}
	return s.update(guildID, func(st *localdb.GuildState) error {
		st.ChannelID = channelID
		st.StartValue = startValue
		s.machine.Reset(st)
		s.engine.Arm(st)
		counting.ArmMilestone(st)
		logger.Info("Counting channel set",
			zap.String("guild_id", guildID),
			zap.String("channel_id", channelID),
			zap.Int64("start", startValue))
		return nil
	})
}

// SetMode switches between numeric and alphabetic counting. The count restarts.
func (s *Service) SetMode(guildID, mode string) (*localdb.GuildState, error) {
	if mode != localdb.ModeNumeric && mode != localdb.ModeAlphabetic {
		return nil, ErrInvalidMode
	}
	return s.update(guildID, func(st *localdb.GuildState) error {
		st.Mode = mode
		s.machine.Reset(st)
		s.engine.Arm(st)
		return nil
	})
}

// SetStrict toggles whole-message token matching.
func (s *Service) SetStrict(guildID string, strict bool) (*localdb.GuildState, error) {
	return s.update(guildID, func(st *localdb.GuildState) error {
		st.StrictParsing = strict
		return nil
	})
}

// SetWordNumbers toggles word-number parsing in numeric mode.
func (s *Service) SetWordNumbers(guildID string, enabled bool) (*localdb.GuildState, error) {
	return s.update(guildID, func(st *localdb.GuildState) error {
		st.WordNumbers = enabled
		return nil
	})
}

// SetReverseLetters toggles descending letter order in alphabetic mode.
func (s *Service) SetReverseLetters(guildID string, reverse bool) (*localdb.GuildState, error) {
	return s.update(guildID, func(st *localdb.GuildState) error {
		st.ReverseLetters = reverse
		if st.Mode == localdb.ModeAlphabetic {
			s.machine.Reset(st)
		}
		return nil
	})
}

// SetWrapLetters toggles whether the letter sequence wraps past the final
// letter. Off means each pass of the alphabet is a separate round.
func (s *Service) SetWrapLetters(guildID string, wrap bool) (*localdb.GuildState, error) {
	return s.update(guildID, func(st *localdb.GuildState) error {
		st.WrapLetters = wrap
		return nil
	})
}

// SetBench sets the bench duration in minutes (1–1440).
func (s *Service) SetBench(guildID string, minutes int64) (*localdb.GuildState, error) {
	if minutes < 1 || minutes > 1440 {
		return nil, ErrInvalidBench
	}
	return s.update(guildID, func(st *localdb.GuildState) error {
		st.BenchMinutes = minutes
		return nil
	})
}

// SetJackpotRange sets the random arming range and optionally the prize label.
func (s *Service) SetJackpotRange(guildID string, min, max int64, prize string) (*localdb.GuildState, error) {
	if min < 1 || max < min {
		return nil, ErrInvalidRange
	}
	return s.update(guildID, func(st *localdb.GuildState) error {
		st.JackpotMin = min
		st.JackpotMax = max
		st.JackpotMode = localdb.ArmingRandom
		st.JackpotWindow = 0
		if prize != "" {
			st.JackpotPrize = prize
		}
		target := s.engine.Arm(st)
		logger.Info("Jackpot range set",
			zap.String("guild_id", guildID),
			zap.Int64("min", min), zap.Int64("max", max),
			zap.Int64("target", target))
		return nil
	})
}

// SetJackpotPrize sets the prize label.
func (s *Service) SetJackpotPrize(guildID, prize string) (*localdb.GuildState, error) {
	return s.update(guildID, func(st *localdb.GuildState) error {
		st.JackpotPrize = prize
		return nil
	})
}

// SetJackpotWindow arms one fixed-window target within [1, window].
// 次の当選後はrandomモードへ自動で戻る。
func (s *Service) SetJackpotWindow(guildID string, window int64) (*localdb.GuildState, error) {
	if window < 1 {
		return nil, ErrInvalidWindow
	}
	return s.update(guildID, func(st *localdb.GuildState) error {
		st.JackpotMode = localdb.ArmingFixedWindow
		st.JackpotWindow = window
		s.engine.Arm(st)
		return nil
	})
}

// SetMilestoneRange sets the milestone draw range and rolls a new milestone.
func (s *Service) SetMilestoneRange(guildID string, min, max int64) (*localdb.GuildState, error) {
	if min < 1 || max < min {
		return nil, ErrInvalidSpan
	}
	return s.update(guildID, func(st *localdb.GuildState) error {
		st.MilestoneMin = min
		st.MilestoneMax = max
		counting.ArmMilestone(st)
		return nil
	})
}

// SetPaused pauses or resumes the game.
func (s *Service) SetPaused(guildID string, paused bool) (*localdb.GuildState, error) {
	return s.update(guildID, func(st *localdb.GuildState) error {
		st.Paused = paused
		return nil
	})
}

// ResetCount manually restarts the count and re-arms the jackpot.
func (s *Service) ResetCount(guildID string) (*localdb.GuildState, error) {
	return s.update(guildID, func(st *localdb.GuildState) error {
		s.machine.Reset(st)
		s.engine.Arm(st)
		counting.ArmMilestone(st)
		return nil
	})
}

// Unbench clears a contributor's lock.
func (s *Service) Unbench(guildID, userID string) {
	s.guard.Unlock(guildID, userID)
}

// ExpectedNext returns the display form of the next expected token.
func (s *Service) ExpectedNext(st *localdb.GuildState) string {
	g := s.machine.GrammarFor(st)
	return g.Format(s.machine.ExpectedNext(st))
}

// StartTournament opens a tournament window.
func (s *Service) StartTournament(guildID string, duration time.Duration, reward string, maxAwards int64, silent bool) (*localdb.Tournament, error) {
	return s.overlay.Start(guildID, duration, reward, maxAwards, silent)
}

// EndTournament closes the current tournament.
func (s *Service) EndTournament(guildID string) error {
	return s.overlay.End(guildID)
}

// TournamentStatus returns the current tournament with lazy expiry applied.
func (s *Service) TournamentStatus(guildID string) (*localdb.Tournament, error) {
	return s.overlay.Status(guildID, time.Now())
}

// Leaderboard returns the tournament win tallies.
func (s *Service) Leaderboard(guildID string, limit int) ([]localdb.TournamentWin, error) {
	return s.overlay.Leaderboard(guildID, limit)
}

// Winners returns recent jackpot winners.
func (s *Service) Winners(guildID string, limit int) ([]localdb.Winner, error) {
	return localdb.GetWinners(guildID, limit)
}

// TopTallies returns the all-time counting tallies.
func (s *Service) TopTallies(guildID string, limit int) ([]localdb.Tally, error) {
	return localdb.TopTallies(guildID, limit)
}

// TicketFor returns the ticket issued for one winning value, reissuing if missing.
func (s *Service) TicketFor(guildID string, value int64) (*localdb.Ticket, error) {
	t, err := localdb.GetTicket(guildID, value)
	if err != nil {
		return nil, err
	}
	if t != nil {
		return t, nil
	}

	winners, err := localdb.GetWinners(guildID, 0)
	if err != nil {
		return nil, err
	}
	for _, w := range winners {
		if w.ValueWonAt == value {
			return s.issuer.Issue(w.GuildID, w.UserID, w.Prize, w.ValueWonAt)
		}
	}
	return nil, fmt.Errorf("no winner recorded for value %d", value)
}
