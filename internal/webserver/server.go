package webserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nantokaworks/counting-bot/internal/broadcast"
	"github.com/nantokaworks/counting-bot/internal/game"
	"github.com/nantokaworks/counting-bot/internal/shared/logger"
	"github.com/nantokaworks/counting-bot/internal/ticketissuer"
	"go.uber.org/zap"
)

var (
	gameService *game.Service
	issuer      *ticketissuer.Issuer
	httpServer  *http.Server
)

// webSocketBroadcaster implements the Broadcaster interface using WebSocket
type webSocketBroadcaster struct{}

// BroadcastMessage implements broadcast.Broadcaster
func (w *webSocketBroadcaster) BroadcastMessage(message interface{}) {
	if m, ok := message.(map[string]interface{}); ok {
		if msgType, ok := m["type"].(string); ok {
			BroadcastWSMessage(msgType, m["data"])
			return
		}
	}
	BroadcastWSMessage("message", message)
}

// corsMiddleware adds CORS headers to HTTP handlers
func corsMiddleware(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		handler(w, r)
	}
}

// StartWebServer starts the admin/ops HTTP server.
func StartWebServer(port int, svc *game.Service, ti *ticketissuer.Issuer) error {
	gameService = svc
	issuer = ti

	// WebSocket broadcasterを登録
	broadcast.SetBroadcaster(&webSocketBroadcaster{})
	StartWSHub()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handleWS)
	mux.HandleFunc("/api/status", corsMiddleware(handleStatus))
	mux.HandleFunc("/api/counting/settings", corsMiddleware(handleCountingSettings))
	mux.HandleFunc("/api/counting/reset", corsMiddleware(handleCountingReset))
	mux.HandleFunc("/api/winners", corsMiddleware(handleWinners))
	mux.HandleFunc("/api/tallies", corsMiddleware(handleTallies))
	mux.HandleFunc("/api/tournament", corsMiddleware(handleTournament))
	mux.HandleFunc("/api/tournament/leaderboard", corsMiddleware(handleLeaderboard))
	mux.HandleFunc("/api/tickets/qr", corsMiddleware(handleTicketQR))
	mux.HandleFunc("/claim/", corsMiddleware(handleClaim))

	httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Web server listening", zap.Int("port", port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Web server failed", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown stops the HTTP server gracefully.
func Shutdown() {
	if httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("Web server shutdown error", zap.Error(err))
	}
}
