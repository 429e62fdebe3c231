package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nantokaworks/counting-bot/internal/antiabuse"
	"github.com/nantokaworks/counting-bot/internal/banter"
	"github.com/nantokaworks/counting-bot/internal/counting"
	"github.com/nantokaworks/counting-bot/internal/discordbot"
	"github.com/nantokaworks/counting-bot/internal/env"
	"github.com/nantokaworks/counting-bot/internal/game"
	"github.com/nantokaworks/counting-bot/internal/jackpot"
	"github.com/nantokaworks/counting-bot/internal/localdb"
	"github.com/nantokaworks/counting-bot/internal/shared/logger"
	"github.com/nantokaworks/counting-bot/internal/ticketissuer"
	"github.com/nantokaworks/counting-bot/internal/tournament"
	"github.com/nantokaworks/counting-bot/internal/version"
	"github.com/nantokaworks/counting-bot/internal/webserver"
	"go.uber.org/zap"
)

func main() {
	logger.Init(false)
	defer logger.Sync()

	logger.Info("Starting counting-bot server", zap.String("version", version.String()))

	env.LoadEnv()
	if env.Value.DebugMode {
		logger.Init(true)
		logger.Info("Debug mode enabled")
	}

	if err := os.MkdirAll(filepath.Dir(env.Value.DBPath), 0o755); err != nil {
		logger.Fatal("Failed to ensure data directory", zap.Error(err))
	}
	if _, err := localdb.SetupDB(env.Value.DBPath); err != nil {
		logger.Fatal("Failed to setup database", zap.Error(err))
	}

	catalog := banter.Load(env.Value.BanterPath)

	machine := &counting.Machine{WordNumbers: catalog.WordNumbers()}
	guard := antiabuse.NewGuard()
	engine := jackpot.NewEngine()
	overlay := tournament.NewOverlay()
	issuer := ticketissuer.NewIssuer(fmt.Sprintf("http://localhost:%d/claim", env.Value.ServerPort))

	svc := game.NewService(machine, guard, engine, overlay, issuer)

	if err := webserver.StartWebServer(env.Value.ServerPort, svc, issuer); err != nil {
		logger.Fatal("Failed to start web server", zap.Error(err))
	}

	var bot *discordbot.Bot
	if env.Value.DiscordToken != nil {
		b, err := discordbot.New(*env.Value.DiscordToken, svc, catalog, issuer)
		if err != nil {
			logger.Fatal("Failed to create discord bot", zap.Error(err))
		}
		if err := b.Start(); err != nil {
			logger.Fatal("Failed to start discord bot", zap.Error(err))
		}
		bot = b
	} else {
		// トークン無しでもHTTP APIだけで動かせる（開発用）。
		logger.Warn("DISCORD_TOKEN not set, running without the Discord gateway")
	}

	logger.Info("Server started",
		zap.Int("port", env.Value.ServerPort),
		zap.String("api", fmt.Sprintf("http://localhost:%d/api/", env.Value.ServerPort)))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")

	if bot != nil {
		if err := bot.Stop(); err != nil {
			logger.Warn("Failed to close discord session", zap.Error(err))
		}
	}
	webserver.Shutdown()
	if err := localdb.CloseDB(); err != nil {
		logger.Warn("Failed to close database", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}
