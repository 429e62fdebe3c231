package localdb

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nantokaworks/counting-bot/internal/shared/logger"
	"go.uber.org/zap"
)

// Tally は1ギルド内の1ユーザーの通算成績。
type Tally struct {
	GuildID    string    `json:"guild_id"`
	UserID     string    `json:"user_id"`
	Correct    int64     `json:"correct"`
	Wrong      int64     `json:"wrong"`
	BestStreak int64     `json:"best_streak"`
	Badges     string    `json:"badges"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// 正解数に応じて自動付与するバッジ。
var badgeThresholds = []struct {
	Count int64
	Name  string
}{
	{50, "counter"},
	{250, "sharp"},
	{1000, "legend"},
}

// SetupTalliesTable creates the per-user tally table.
func SetupTalliesTable(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tallies (
			guild_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			correct INTEGER NOT NULL DEFAULT 0,
			wrong INTEGER NOT NULL DEFAULT 0,
			best_streak INTEGER NOT NULL DEFAULT 0,
			badges TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (guild_id, user_id)
		)
	`); err != nil {
		logger.Error("Failed to create tallies table", zap.Error(err))
		return fmt.Errorf("failed to create tallies table: %w", err)
	}
	return nil
}

func badgesFor(correct int64, existing string) string {
	have := map[string]bool{}
	for _, b := range strings.Split(existing, ",") {
		if b != "" {
			have[b] = true
		}
	}
	for _, t := range badgeThresholds {
		if correct >= t.Count {
			have[t.Name] = true
		}
	}

	// しきい値順で安定した並びにする
	out := make([]string, 0, len(badgeThresholds))
	for _, t := range badgeThresholds {
		if have[t.Name] {
			out = append(out, t.Name)
		}
	}
	return strings.Join(out, ",")
}

// GetTally returns one user's tally, zero-valued when absent.
func GetTally(guildID, userID string) (*Tally, error) {
	db := GetDB()
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	var t Tally
	err := db.QueryRow(`
		SELECT guild_id, user_id, correct, wrong, best_streak, badges, updated_at
		FROM tallies WHERE guild_id = ? AND user_id = ?
	`, guildID, userID).Scan(&t.GuildID, &t.UserID, &t.Correct, &t.Wrong, &t.BestStreak, &t.Badges, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return &Tally{GuildID: guildID, UserID: userID, UpdatedAt: time.Now()}, nil
	}
	if err != nil {
		logger.Error("Failed to get tally", zap.Error(err), zap.String("guild_id", guildID), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to get tally: %w", err)
	}
	return &t, nil
}

// RecordCorrect increments a user's correct count and refreshes streak/badges.
func RecordCorrect(guildID, userID string, streak int64) error {
	t, err := GetTally(guildID, userID)
	if err != nil {
		return err
	}

	t.Correct++
	if streak > t.BestStreak {
		t.BestStreak = streak
	}
	t.Badges = badgesFor(t.Correct, t.Badges)
	return saveTally(t)
}

// RecordWrong increments a user's wrong count.
func RecordWrong(guildID, userID string) error {
	t, err := GetTally(guildID, userID)
	if err != nil {
		return err
	}
	t.Wrong++
	return saveTally(t)
}

func saveTally(t *Tally) error {
	db := GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	_, err := db.Exec(`
		INSERT INTO tallies (guild_id, user_id, correct, wrong, best_streak, badges, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET
			correct = excluded.correct,
			wrong = excluded.wrong,
			best_streak = excluded.best_streak,
			badges = excluded.badges,
			updated_at = excluded.updated_at
	`, t.GuildID, t.UserID, t.Correct, t.Wrong, t.BestStreak, t.Badges, time.Now())
	if err != nil {
		logger.Error("Failed to save tally", zap.Error(err), zap.String("guild_id", t.GuildID))
		return fmt.Errorf("failed to save tally: %w", err)
	}
	return nil
}

// TopTallies returns tallies ordered by correct count.
func TopTallies(guildID string, limit int) ([]Tally, error) {
	db := GetDB()
	if db == nil {
		return []Tally{}, fmt.Errorf("database not initialized")
	}

	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Query(`
		SELECT guild_id, user_id, correct, wrong, best_streak, badges, updated_at
		FROM tallies
		WHERE guild_id = ?
		ORDER BY correct DESC, best_streak DESC
		LIMIT ?
	`, guildID, limit)
	if err != nil {
		logger.Error("Failed to get tallies", zap.Error(err), zap.String("guild_id", guildID))
		return []Tally{}, fmt.Errorf("failed to get tallies: %w", err)
	}
	defer rows.Close()

	tallies := []Tally{}
	for rows.Next() {
		var t Tally
		if err := rows.Scan(&t.GuildID, &t.UserID, &t.Correct, &t.Wrong, &t.BestStreak, &t.Badges, &t.UpdatedAt); err != nil {
			logger.Error("Failed to scan tally", zap.Error(err))
			continue
		}
		tallies = append(tallies, t)
	}

	if err := rows.Err(); err != nil {
		return []Tally{}, fmt.Errorf("failed to iterate tallies: %w", err)
	}
	return tallies, nil
}
