package webserver

import (
	"net/http"
	"strconv"
	"strings"
)

func limitParam(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// handleWinners は当選台帳を新しい順で返す。
func handleWinners(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	guildID := guildIDParam(r)
	if guildID == "" {
		http.Error(w, "guild_id is required", http.StatusBadRequest)
		return
	}

	winners, err := gameService.Winners(guildID, limitParam(r, 50))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, winners)
}

// handleTallies は通算成績を正解数順で返す。
func handleTallies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	guildID := guildIDParam(r)
	if guildID == "" {
		http.Error(w, "guild_id is required", http.StatusBadRequest)
		return
	}

	tallies, err := gameService.TopTallies(guildID, limitParam(r, 10))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, tallies)
}

// handleTicketQR はチケットの受取QRコードをPNGで返す。
func handleTicketQR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	handle := strings.TrimSpace(r.URL.Query().Get("handle"))
	if handle == "" {
		http.Error(w, "handle is required", http.StatusBadRequest)
		return
	}

	png, err := issuer.ClaimQR(handle)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}
