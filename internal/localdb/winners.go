package localdb

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/nantokaworks/counting-bot/internal/shared/logger"
	"go.uber.org/zap"
)

// ErrAlreadyClaimed は同じ値に対する当選記録が既に存在することを示す。
var ErrAlreadyClaimed = errors.New("winner already recorded for this value")

// Winner は当選台帳の1レコード。(guild_id, value_won_at) で一意。
type Winner struct {
	ID         int64     `json:"id"`
	GuildID    string    `json:"guild_id"`
	UserID     string    `json:"user_id"`
	Prize      string    `json:"prize"`
	ValueWonAt int64     `json:"value_won_at"`
	WonAt      time.Time `json:"won_at"`
}

// SetupWinnersTable creates the append-only winners ledger.
func SetupWinnersTable(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS winners (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			prize TEXT NOT NULL,
			value_won_at INTEGER NOT NULL,
			won_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(guild_id, value_won_at)
		)
	`); err != nil {
		logger.Error("Failed to create winners table", zap.Error(err))
		return fmt.Errorf("failed to create winners table: %w", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_winners_won_at ON winners(guild_id, won_at DESC)`); err != nil {
		logger.Warn("Failed to create winners index", zap.Error(err))
	}
	return nil
}

// InsertWinnerTx appends one winner record inside the caller's transaction.
// UNIQUE(guild_id, value_won_at)違反はErrAlreadyClaimedとして返す。
// 同一ターゲットへ競合した2番目の申請者を弾く唯一の判定点。
func InsertWinnerTx(tx *sql.Tx, guildID, userID, prize string, valueWonAt int64) error {
	_, err := tx.Exec(`
		INSERT INTO winners (guild_id, user_id, prize, value_won_at, won_at)
		VALUES (?, ?, ?, ?, ?)
	`, guildID, userID, prize, valueWonAt, time.Now())
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrAlreadyClaimed
		}
		return fmt.Errorf("failed to insert winner: %w", err)
	}
	return nil
}

// HasWinner reports whether a winner is recorded for (guild, value).
func HasWinner(guildID string, valueWonAt int64) (bool, error) {
	db := GetDB()
	if db == nil {
		return false, fmt.Errorf("database not initialized")
	}

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM winners WHERE guild_id = ? AND value_won_at = ?`,
		guildID, valueWonAt).Scan(&count)
	if err != nil {
		logger.Error("Failed to check winner", zap.Error(err), zap.String("guild_id", guildID))
		return false, fmt.Errorf("failed to check winner: %w", err)
	}
	return count > 0, nil
}

// GetWinners returns winner records for a guild, latest first.
func GetWinners(guildID string, limit int) ([]Winner, error) {
	db := GetDB()
	if db == nil {
		return []Winner{}, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT id, guild_id, user_id, prize, value_won_at, won_at
		FROM winners
		WHERE guild_id = ?
		ORDER BY won_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = db.Query(query+" LIMIT ?", guildID, limit)
	} else {
		rows, err = db.Query(query, guildID)
	}
	if err != nil {
		logger.Error("Failed to get winners", zap.Error(err), zap.String("guild_id", guildID))
		return []Winner{}, fmt.Errorf("failed to get winners: %w", err)
	}
	defer rows.Close()

	winners := []Winner{}
	for rows.Next() {
		var w Winner
		if err := rows.Scan(&w.ID, &w.GuildID, &w.UserID, &w.Prize, &w.ValueWonAt, &w.WonAt); err != nil {
			logger.Error("Failed to scan winner", zap.Error(err))
			continue
		}
		winners = append(winners, w)
	}

	if err := rows.Err(); err != nil {
		return []Winner{}, fmt.Errorf("failed to iterate winners: %w", err)
	}
	return winners, nil
}
