package localdb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/nantokaworks/counting-bot/internal/shared/logger"
	"go.uber.org/zap"
)

// Tournament は1ギルドのトーナメント状態（シングルトン行）。
type Tournament struct {
	GuildID        string    `json:"guild_id"`
	Active         bool      `json:"active"`
	EndsAt         time.Time `json:"ends_at"`
	Reward         string    `json:"reward"`
	MaxAwards      int64     `json:"max_awards"`
	AwardsSoFar    int64     `json:"awards_so_far"`
	SilentAfterCap bool      `json:"silent_after_cap"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TournamentWin は (guild, user) ごとのトーナメント当選数。
type TournamentWin struct {
	GuildID string `json:"guild_id"`
	UserID  string `json:"user_id"`
	Wins    int64  `json:"wins"`
}

// SetupTournamentTables creates tournaments and tournament_wins tables.
func SetupTournamentTables(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tournaments (
			guild_id TEXT PRIMARY KEY,
			active BOOLEAN NOT NULL DEFAULT false,
			ends_at TIMESTAMP,
			reward TEXT NOT NULL DEFAULT '',
			max_awards INTEGER NOT NULL DEFAULT 0,
			awards_so_far INTEGER NOT NULL DEFAULT 0,
			silent_after_cap BOOLEAN NOT NULL DEFAULT false,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		logger.Error("Failed to create tournaments table", zap.Error(err))
		return fmt.Errorf("failed to create tournaments table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tournament_wins (
			guild_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			wins INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (guild_id, user_id)
		)
	`); err != nil {
		logger.Error("Failed to create tournament_wins table", zap.Error(err))
		return fmt.Errorf("failed to create tournament_wins table: %w", err)
	}
	return nil
}

// GetTournament returns the guild's tournament row, inactive-zero when absent.
func GetTournament(guildID string) (*Tournament, error) {
	db := GetDB()
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	var (
		t      Tournament
		endsAt sql.NullTime
	)
	err := db.QueryRow(`
		SELECT guild_id, active, ends_at, reward, max_awards, awards_so_far, silent_after_cap, updated_at
		FROM tournaments WHERE guild_id = ?
	`, guildID).Scan(&t.GuildID, &t.Active, &endsAt, &t.Reward, &t.MaxAwards, &t.AwardsSoFar, &t.SilentAfterCap, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return &Tournament{GuildID: guildID, UpdatedAt: time.Now()}, nil
	}
	if err != nil {
		logger.Error("Failed to get tournament", zap.Error(err), zap.String("guild_id", guildID))
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	if endsAt.Valid {
		t.EndsAt = endsAt.Time
	}
	return &t, nil
}

const tournamentUpsert = `
	INSERT INTO tournaments (guild_id, active, ends_at, reward, max_awards, awards_so_far, silent_after_cap, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(guild_id) DO UPDATE SET
		active = excluded.active,
		ends_at = excluded.ends_at,
		reward = excluded.reward,
		max_awards = excluded.max_awards,
		awards_so_far = excluded.awards_so_far,
		silent_after_cap = excluded.silent_after_cap,
		updated_at = excluded.updated_at`

const tournamentWinUpsert = `
	INSERT INTO tournament_wins (guild_id, user_id, wins)
	VALUES (?, ?, 1)
	ON CONFLICT(guild_id, user_id) DO UPDATE SET wins = wins + 1`

// SaveTournament upserts the tournament singleton row.
func SaveTournament(t *Tournament) error {
	db := GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	_, err := db.Exec(tournamentUpsert,
		t.GuildID, t.Active, t.EndsAt, t.Reward, t.MaxAwards, t.AwardsSoFar, t.SilentAfterCap, time.Now())
	if err != nil {
		logger.Error("Failed to save tournament", zap.Error(err), zap.String("guild_id", t.GuildID))
		return fmt.Errorf("failed to save tournament: %w", err)
	}
	return nil
}

// RecordTournamentAwardTx saves the consumed award slot and the winner's
// tally as one transaction.
// 枠の消費と計上のどちらか片方だけが残ることはない。
func RecordTournamentAwardTx(t *Tournament, userID string) error {
	db := GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin tournament transaction: %w", err)
	}

	if _, err := tx.Exec(tournamentUpsert,
		t.GuildID, t.Active, t.EndsAt, t.Reward, t.MaxAwards, t.AwardsSoFar, t.SilentAfterCap, time.Now()); err != nil {
		_ = tx.Rollback()
		logger.Error("Failed to save tournament", zap.Error(err), zap.String("guild_id", t.GuildID))
		return fmt.Errorf("failed to save tournament: %w", err)
	}
	if _, err := tx.Exec(tournamentWinUpsert, t.GuildID, userID); err != nil {
		_ = tx.Rollback()
		logger.Error("Failed to add tournament win", zap.Error(err), zap.String("guild_id", t.GuildID))
		return fmt.Errorf("failed to add tournament win: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tournament transaction: %w", err)
	}
	return nil
}

// ResetTournamentWins clears all win tallies for a guild (new tournament start).
func ResetTournamentWins(guildID string) error {
	db := GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	_, err := db.Exec(`DELETE FROM tournament_wins WHERE guild_id = ?`, guildID)
	if err != nil {
		logger.Error("Failed to reset tournament wins", zap.Error(err), zap.String("guild_id", guildID))
		return fmt.Errorf("failed to reset tournament wins: %w", err)
	}
	return nil
}

// TournamentLeaderboard returns win tallies ordered by wins.
func TournamentLeaderboard(guildID string, limit int) ([]TournamentWin, error) {
	db := GetDB()
	if db == nil {
		return []TournamentWin{}, fmt.Errorf("database not initialized")
	}

	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Query(`
		SELECT guild_id, user_id, wins
		FROM tournament_wins
		WHERE guild_id = ?
		ORDER BY wins DESC, user_id ASC
		LIMIT ?
	`, guildID, limit)
	if err != nil {
		logger.Error("Failed to get tournament leaderboard", zap.Error(err), zap.String("guild_id", guildID))
		return []TournamentWin{}, fmt.Errorf("failed to get tournament leaderboard: %w", err)
	}
	defer rows.Close()

	wins := []TournamentWin{}
	for rows.Next() {
		var w TournamentWin
		if err := rows.Scan(&w.GuildID, &w.UserID, &w.Wins); err != nil {
			logger.Error("Failed to scan tournament win", zap.Error(err))
			continue
		}
		wins = append(wins, w)
	}

	if err := rows.Err(); err != nil {
		return []TournamentWin{}, fmt.Errorf("failed to iterate tournament wins: %w", err)
	}
	return wins, nil
}
