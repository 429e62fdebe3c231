package webserver

import (
	"net/http"
	"time"

	"github.com/nantokaworks/counting-bot/internal/version"
)

var startedAt = time.Now()

// handleStatus returns process liveness info for the ops UI.
func handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, map[string]interface{}{
		"version":        version.String(),
		"uptime_seconds": int64(time.Since(startedAt).Seconds()),
		"ws_clients":     wsHub.ClientCount(),
	})
}
