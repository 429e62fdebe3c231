package env

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/nantokaworks/counting-bot/internal/shared/logger"
	"go.uber.org/zap"
)

// EnvValue は起動時に.envと環境変数から読み込む設定値。
type EnvValue struct {
	DiscordToken *string
	ServerPort   int
	DBPath       string
	BanterPath   string
	DebugMode    bool
}

var Value EnvValue

// LoadEnv は.envを読み込んでValueを初期化する。
// .envが無い場合はプロセス環境変数のみを使う。
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using process environment", zap.Error(err))
	}

	Value = EnvValue{
		ServerPort: 8080,
		DBPath:     "./data/counting.db",
		BanterPath: "./banter.json",
	}

	if token := strings.TrimSpace(os.Getenv("DISCORD_TOKEN")); token != "" {
		Value.DiscordToken = &token
	}

	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 && p < 65536 {
			Value.ServerPort = p
		} else {
			logger.Warn("Invalid SERVER_PORT, falling back to default", zap.String("value", port))
		}
	}

	if dbPath := strings.TrimSpace(os.Getenv("DB_PATH")); dbPath != "" {
		Value.DBPath = dbPath
	}

	if banterPath := strings.TrimSpace(os.Getenv("BANTER_PATH")); banterPath != "" {
		Value.BanterPath = banterPath
	}

	Value.DebugMode = strings.EqualFold(strings.TrimSpace(os.Getenv("DEBUG_MODE")), "true")
}
