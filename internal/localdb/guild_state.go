package localdb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/nantokaworks/counting-bot/internal/shared/logger"
	"go.uber.org/zap"
)

// カウントモード
const (
	ModeNumeric    = "numeric"
	ModeAlphabetic = "alphabetic"
)

// ジャックポットのアーミングモード
const (
	ArmingRandom      = "random"
	ArmingFixedWindow = "fixed_window"
)

// GuildState は1ギルド分のカウント進行状況と設定を保持する。
// LastUserID は空文字列で「直前の投稿者なし」を表す。
// JackpotTarget は0で「未アーム」を表す（StartValueは1以上に制限されるため
// 有効なターゲットは常に正になる）。
type GuildState struct {
	GuildID         string    `json:"guild_id"`
	ChannelID       string    `json:"channel_id"`
	Mode            string    `json:"mode"`
	CurrentValue    int64     `json:"current_value"`
	StartValue      int64     `json:"start_value"`
	LastUserID      string    `json:"last_user_id"`
	StrictParsing   bool      `json:"strict_parsing"`
	WordNumbers     bool      `json:"word_numbers"`
	ReverseLetters  bool      `json:"reverse_letters"`
	WrapLetters     bool      `json:"wrap_letters"`
	Paused          bool      `json:"paused"`
	GuildStreak     int64     `json:"guild_streak"`
	BestGuildStreak int64     `json:"best_guild_streak"`
	BenchMinutes    int64     `json:"bench_minutes"`
	JackpotMin      int64     `json:"jackpot_min"`
	JackpotMax      int64     `json:"jackpot_max"`
	JackpotPrize    string    `json:"jackpot_prize"`
	JackpotMode     string    `json:"jackpot_mode"`
	JackpotWindow   int64     `json:"jackpot_window"`
	JackpotTarget   int64     `json:"jackpot_target"`
	LastAwardValue  int64     `json:"last_award_value"`
	MilestoneMin    int64     `json:"milestone_min"`
	MilestoneMax    int64     `json:"milestone_max"`
	NextMilestone   int64     `json:"next_milestone"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SetupGuildStatesTable creates the guild_states table.
func SetupGuildStatesTable(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS guild_states (
			guild_id TEXT PRIMARY KEY,
			channel_id TEXT NOT NULL DEFAULT '',
			mode TEXT NOT NULL DEFAULT 'numeric',
			current_value INTEGER NOT NULL DEFAULT 0,
			start_value INTEGER NOT NULL DEFAULT 1,
			last_user_id TEXT NOT NULL DEFAULT '',
			strict_parsing BOOLEAN NOT NULL DEFAULT false,
			word_numbers BOOLEAN NOT NULL DEFAULT false,
			reverse_letters BOOLEAN NOT NULL DEFAULT false,
			wrap_letters BOOLEAN NOT NULL DEFAULT true,
			paused BOOLEAN NOT NULL DEFAULT false,
			guild_streak INTEGER NOT NULL DEFAULT 0,
			best_guild_streak INTEGER NOT NULL DEFAULT 0,
			bench_minutes INTEGER NOT NULL DEFAULT 5,
			jackpot_min INTEGER NOT NULL DEFAULT 10,
			jackpot_max INTEGER NOT NULL DEFAULT 100,
			jackpot_prize TEXT NOT NULL DEFAULT 'Lucky number prize',
			jackpot_mode TEXT NOT NULL DEFAULT 'random',
			jackpot_window INTEGER NOT NULL DEFAULT 0,
			jackpot_target INTEGER NOT NULL DEFAULT 0,
			last_award_value INTEGER NOT NULL DEFAULT 0,
			milestone_min INTEGER NOT NULL DEFAULT 20,
			milestone_max INTEGER NOT NULL DEFAULT 150,
			next_milestone INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		logger.Error("Failed to create guild_states table", zap.Error(err))
		return fmt.Errorf("failed to create guild_states table: %w", err)
	}
	return nil
}

// DefaultGuildState returns the state a guild gets on first contact.
func DefaultGuildState(guildID string) *GuildState {
	return &GuildState{
		GuildID:      guildID,
		Mode:         ModeNumeric,
		CurrentValue: 0,
		StartValue:   1,
		WrapLetters:  true,
		BenchMinutes: 5,
		JackpotMin:   10,
		JackpotMax:   100,
		JackpotPrize: "Lucky number prize",
		JackpotMode:  ArmingRandom,
		MilestoneMin: 20,
		MilestoneMax: 150,
		UpdatedAt:    time.Now(),
	}
}

const guildStateColumns = `
	guild_id, channel_id, mode, current_value, start_value, last_user_id,
	strict_parsing, word_numbers, reverse_letters, wrap_letters, paused,
	guild_streak, best_guild_streak, bench_minutes,
	jackpot_min, jackpot_max, jackpot_prize, jackpot_mode, jackpot_window,
	jackpot_target, last_award_value,
	milestone_min, milestone_max, next_milestone, updated_at`

func scanGuildState(row *sql.Row) (*GuildState, error) {
	var st GuildState
	err := row.Scan(
		&st.GuildID, &st.ChannelID, &st.Mode, &st.CurrentValue, &st.StartValue, &st.LastUserID,
		&st.StrictParsing, &st.WordNumbers, &st.ReverseLetters, &st.WrapLetters, &st.Paused,
		&st.GuildStreak, &st.BestGuildStreak, &st.BenchMinutes,
		&st.JackpotMin, &st.JackpotMax, &st.JackpotPrize, &st.JackpotMode, &st.JackpotWindow,
		&st.JackpotTarget, &st.LastAwardValue,
		&st.MilestoneMin, &st.MilestoneMax, &st.NextMilestone, &st.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// GetGuildState returns the guild's state, creating it with defaults on first contact.
func GetGuildState(guildID string) (*GuildState, error) {
	db := GetDB()
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	st, err := scanGuildState(db.QueryRow(
		`SELECT `+guildStateColumns+` FROM guild_states WHERE guild_id = ?`, guildID))
	if err == sql.ErrNoRows {
		created := DefaultGuildState(guildID)
		if err := SaveGuildState(created); err != nil {
			return nil, err
		}
		return created, nil
	}
	if err != nil {
		logger.Error("Failed to get guild state", zap.Error(err), zap.String("guild_id", guildID))
		return nil, fmt.Errorf("failed to get guild state: %w", err)
	}
	return st, nil
}

// SaveGuildState upserts the full guild state row.
func SaveGuildState(st *GuildState) error {
	db := GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	st.UpdatedAt = time.Now()
	_, err := db.Exec(`
		INSERT INTO guild_states (`+guildStateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			channel_id = excluded.channel_id,
			mode = excluded.mode,
			current_value = excluded.current_value,
			start_value = excluded.start_value,
			last_user_id = excluded.last_user_id,
			strict_parsing = excluded.strict_parsing,
			word_numbers = excluded.word_numbers,
			reverse_letters = excluded.reverse_letters,
			wrap_letters = excluded.wrap_letters,
			paused = excluded.paused,
			guild_streak = excluded.guild_streak,
			best_guild_streak = excluded.best_guild_streak,
			bench_minutes = excluded.bench_minutes,
			jackpot_min = excluded.jackpot_min,
			jackpot_max = excluded.jackpot_max,
			jackpot_prize = excluded.jackpot_prize,
			jackpot_mode = excluded.jackpot_mode,
			jackpot_window = excluded.jackpot_window,
			jackpot_target = excluded.jackpot_target,
			last_award_value = excluded.last_award_value,
			milestone_min = excluded.milestone_min,
			milestone_max = excluded.milestone_max,
			next_milestone = excluded.next_milestone,
			updated_at = excluded.updated_at
	`,
		st.GuildID, st.ChannelID, st.Mode, st.CurrentValue, st.StartValue, st.LastUserID,
		st.StrictParsing, st.WordNumbers, st.ReverseLetters, st.WrapLetters, st.Paused,
		st.GuildStreak, st.BestGuildStreak, st.BenchMinutes,
		st.JackpotMin, st.JackpotMax, st.JackpotPrize, st.JackpotMode, st.JackpotWindow,
		st.JackpotTarget, st.LastAwardValue,
		st.MilestoneMin, st.MilestoneMax, st.NextMilestone, st.UpdatedAt,
	)
	if err != nil {
		logger.Error("Failed to save guild state", zap.Error(err), zap.String("guild_id", st.GuildID))
		return fmt.Errorf("failed to save guild state: %w", err)
	}
	return nil
}

// SaveGuildStateTx upserts the guild state inside an existing transaction.
func SaveGuildStateTx(tx *sql.Tx, st *GuildState) error {
	st.UpdatedAt = time.Now()
	_, err := tx.Exec(`
		INSERT INTO guild_states (`+guildStateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			channel_id = excluded.channel_id,
			mode = excluded.mode,
			current_value = excluded.current_value,
			start_value = excluded.start_value,
			last_user_id = excluded.last_user_id,
			strict_parsing = excluded.strict_parsing,
			word_numbers = excluded.word_numbers,
			reverse_letters = excluded.reverse_letters,
			wrap_letters = excluded.wrap_letters,
			paused = excluded.paused,
			guild_streak = excluded.guild_streak,
			best_guild_streak = excluded.best_guild_streak,
			bench_minutes = excluded.bench_minutes,
			jackpot_min = excluded.jackpot_min,
			jackpot_max = excluded.jackpot_max,
			jackpot_prize = excluded.jackpot_prize,
			jackpot_mode = excluded.jackpot_mode,
			jackpot_window = excluded.jackpot_window,
			jackpot_target = excluded.jackpot_target,
			last_award_value = excluded.last_award_value,
			milestone_min = excluded.milestone_min,
			milestone_max = excluded.milestone_max,
			next_milestone = excluded.next_milestone,
			updated_at = excluded.updated_at
	`,
		st.GuildID, st.ChannelID, st.Mode, st.CurrentValue, st.StartValue, st.LastUserID,
		st.StrictParsing, st.WordNumbers, st.ReverseLetters, st.WrapLetters, st.Paused,
		st.GuildStreak, st.BestGuildStreak, st.BenchMinutes,
		st.JackpotMin, st.JackpotMax, st.JackpotPrize, st.JackpotMode, st.JackpotWindow,
		st.JackpotTarget, st.LastAwardValue,
		st.MilestoneMin, st.MilestoneMax, st.NextMilestone, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save guild state: %w", err)
	}
	return nil
}
