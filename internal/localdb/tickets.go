package localdb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/nantokaworks/counting-bot/internal/shared/logger"
	"go.uber.org/zap"
)

// Ticket はジャックポット当選者への賞品チケット。
// (guild_id, value_won_at) 主キーが発行の冪等性を担保する。
type Ticket struct {
	GuildID    string    `json:"guild_id"`
	ValueWonAt int64     `json:"value_won_at"`
	Handle     string    `json:"handle"`
	UserID     string    `json:"user_id"`
	Prize      string    `json:"prize"`
	CreatedAt  time.Time `json:"created_at"`
}

// SetupTicketsTable creates the tickets table.
func SetupTicketsTable(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tickets (
			guild_id TEXT NOT NULL,
			value_won_at INTEGER NOT NULL,
			handle TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			prize TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (guild_id, value_won_at)
		)
	`); err != nil {
		logger.Error("Failed to create tickets table", zap.Error(err))
		return fmt.Errorf("failed to create tickets table: %w", err)
	}
	return nil
}

// GetTicket returns the ticket for (guild, value), or nil when absent.
func GetTicket(guildID string, valueWonAt int64) (*Ticket, error) {
	db := GetDB()
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	var t Ticket
	err := db.QueryRow(`
		SELECT guild_id, value_won_at, handle, user_id, prize, created_at
		FROM tickets WHERE guild_id = ? AND value_won_at = ?
	`, guildID, valueWonAt).Scan(&t.GuildID, &t.ValueWonAt, &t.Handle, &t.UserID, &t.Prize, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logger.Error("Failed to get ticket", zap.Error(err), zap.String("guild_id", guildID))
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return &t, nil
}

// GetTicketByHandle returns the ticket with the given handle, or nil.
func GetTicketByHandle(handle string) (*Ticket, error) {
	db := GetDB()
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	var t Ticket
	err := db.QueryRow(`
		SELECT guild_id, value_won_at, handle, user_id, prize, created_at
		FROM tickets WHERE handle = ?
	`, handle).Scan(&t.GuildID, &t.ValueWonAt, &t.Handle, &t.UserID, &t.Prize, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logger.Error("Failed to get ticket by handle", zap.Error(err))
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return &t, nil
}

// SaveTicket inserts a ticket record. Existing (guild, value) rows are kept as-is.
func SaveTicket(t *Ticket) error {
	db := GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	_, err := db.Exec(`
		INSERT INTO tickets (guild_id, value_won_at, handle, user_id, prize, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, value_won_at) DO NOTHING
	`, t.GuildID, t.ValueWonAt, t.Handle, t.UserID, t.Prize, time.Now())
	if err != nil {
		logger.Error("Failed to save ticket", zap.Error(err), zap.String("guild_id", t.GuildID))
		return fmt.Errorf("failed to save ticket: %w", err)
	}
	return nil
}
