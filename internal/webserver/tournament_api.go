package webserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/nantokaworks/counting-bot/internal/localdb"
)

type tournamentStartRequest struct {
	GuildID        string `json:"guild_id"`
	DurationMin    int64  `json:"duration_minutes"`
	Reward         string `json:"reward"`
	MaxAwards      int64  `json:"max_awards"`
	SilentAfterCap bool   `json:"silent_after_cap"`
}

// handleTournament はトーナメントの照会・開始・終了を処理する。
func handleTournament(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		guildID := guildIDParam(r)
		if guildID == "" {
			http.Error(w, "guild_id is required", http.StatusBadRequest)
			return
		}
		t, err := gameService.TournamentStatus(guildID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, t)

	case http.MethodPost:
		var req tournamentStartRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.GuildID == "" {
			http.Error(w, "guild_id is required", http.StatusBadRequest)
			return
		}
		t, err := gameService.StartTournament(req.GuildID,
			time.Duration(req.DurationMin)*time.Minute, req.Reward, req.MaxAwards, req.SilentAfterCap)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, t)

	case http.MethodDelete:
		guildID := guildIDParam(r)
		if guildID == "" {
			http.Error(w, "guild_id is required", http.StatusBadRequest)
			return
		}
		if err := gameService.EndTournament(guildID); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleLeaderboard はトーナメントの当選数ランキングを返す。
func handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	guildID := guildIDParam(r)
	if guildID == "" {
		http.Error(w, "guild_id is required", http.StatusBadRequest)
		return
	}

	wins, err := gameService.Leaderboard(guildID, limitParam(r, 10))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, wins)
}

// handleClaim はチケットハンドルから受取情報を返す（当選者向けのフォールバック導線）。
func handleClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	handle := strings.TrimPrefix(r.URL.Path, "/claim/")
	handle = strings.TrimSpace(handle)
	if handle == "" {
		http.Error(w, "ticket handle is required", http.StatusBadRequest)
		return
	}

	ticket, err := localdb.GetTicketByHandle(handle)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if ticket == nil {
		http.Error(w, "ticket not found", http.StatusNotFound)
		return
	}
	writeJSON(w, ticket)
}
