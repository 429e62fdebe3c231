package localdb

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/nantokaworks/counting-bot/internal/shared/logger"
	"go.uber.org/zap"
)

var DBClient *sql.DB

// SetupDB opens the sqlite database and creates all tables.
func SetupDB(dbPath string) (*sql.DB, error) {
	if DBClient != nil {
		return DBClient, nil
	}

	// WALモードとBusy Timeoutを設定（Race Condition対策）
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	// SQLiteは単一ライターなので接続プールを1に制限
	db.SetMaxOpenConns(1)

	DBClient = db

	if err := SetupGuildStatesTable(db); err != nil {
		return nil, err
	}
	if err := SetupWinnersTable(db); err != nil {
		return nil, err
	}
	if err := SetupTalliesTable(db); err != nil {
		return nil, err
	}
	if err := SetupTournamentTables(db); err != nil {
		return nil, err
	}
	if err := SetupTicketsTable(db); err != nil {
		return nil, err
	}

	logger.Info("Database initialized", zap.String("path", dbPath))
	return db, nil
}

// GetDB は現在のデータベース接続を返します
func GetDB() *sql.DB {
	return DBClient
}

// CloseDB closes the database connection.
func CloseDB() error {
	if DBClient == nil {
		return nil
	}
	err := DBClient.Close()
	DBClient = nil
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
