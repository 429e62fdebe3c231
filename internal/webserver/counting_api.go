package webserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/nantokaworks/counting-bot/internal/game"
	"github.com/nantokaworks/counting-bot/internal/localdb"
	"github.com/nantokaworks/counting-bot/internal/shared/logger"
	"go.uber.org/zap"
)

type countingSettingsUpdateRequest struct {
	GuildID        string  `json:"guild_id"`
	ChannelID      *string `json:"channel_id"`
	StartValue     *int64  `json:"start_value"`
	Mode           *string `json:"mode"`
	StrictParsing  *bool   `json:"strict_parsing"`
	WordNumbers    *bool   `json:"word_numbers"`
	ReverseLetters *bool   `json:"reverse_letters"`
	WrapLetters    *bool   `json:"wrap_letters"`
	BenchMinutes   *int64  `json:"bench_minutes"`
	JackpotMin     *int64  `json:"jackpot_min"`
	JackpotMax     *int64  `json:"jackpot_max"`
	JackpotPrize   *string `json:"jackpot_prize"`
	JackpotWindow  *int64  `json:"jackpot_window"`
	MilestoneMin   *int64  `json:"milestone_min"`
	MilestoneMax   *int64  `json:"milestone_max"`
	Paused         *bool   `json:"paused"`
}

func guildIDParam(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("guild_id"))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// バリデーションエラーは400、それ以外は500で返す。
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrInvalidMode),
		errors.Is(err, game.ErrInvalidStart),
		errors.Is(err, game.ErrInvalidBench),
		errors.Is(err, game.ErrInvalidRange),
		errors.Is(err, game.ErrInvalidWindow),
		errors.Is(err, game.ErrInvalidSpan):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logger.Error("Admin API error", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// handleCountingSettings はカウント設定の取得・更新を処理する。
func handleCountingSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		handleGetCountingSettings(w, r)
	case http.MethodPut:
		handlePutCountingSettings(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func handleGetCountingSettings(w http.ResponseWriter, r *http.Request) {
	guildID := guildIDParam(r)
	if guildID == "" {
		http.Error(w, "guild_id is required", http.StatusBadRequest)
		return
	}

	st, err := gameService.State(guildID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, st)
}

func handlePutCountingSettings(w http.ResponseWriter, r *http.Request) {
	var req countingSettingsUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.GuildID == "" {
		http.Error(w, "guild_id is required", http.StatusBadRequest)
		return
	}

	var (
		st  *localdb.GuildState
		err error
	)

	apply := func(f func() (*localdb.GuildState, error)) bool {
		st, err = f()
		if err != nil {
			writeServiceError(w, err)
			return false
		}
		return true
	}

	if req.ChannelID != nil {
		start := int64(1)
		if req.StartValue != nil {
			start = *req.StartValue
		}
		if !apply(func() (*localdb.GuildState, error) {
			return gameService.SetChannel(req.GuildID, *req.ChannelID, start)
		}) {
			return
		}
	}
	if req.Mode != nil {
		if !apply(func() (*localdb.GuildState, error) {
			return gameService.SetMode(req.GuildID, *req.Mode)
		}) {
			return
		}
	}
	if req.StrictParsing != nil {
		if !apply(func() (*localdb.GuildState, error) {
			return gameService.SetStrict(req.GuildID, *req.StrictParsing)
		}) {
			return
		}
	}
	if req.WordNumbers != nil {
		if !apply(func() (*localdb.GuildState, error) {
			return gameService.SetWordNumbers(req.GuildID, *req.WordNumbers)
		}) {
			return
		}
	}
	if req.ReverseLetters != nil {
		if !apply(func() (*localdb.GuildState, error) {
			return gameService.SetReverseLetters(req.GuildID, *req.ReverseLetters)
		}) {
			return
		}
	}
	if req.WrapLetters != nil {
		if !apply(func() (*localdb.GuildState, error) {
			return gameService.SetWrapLetters(req.GuildID, *req.WrapLetters)
		}) {
			return
		}
	}
	if req.BenchMinutes != nil {
		if !apply(func() (*localdb.GuildState, error) {
			return gameService.SetBench(req.GuildID, *req.BenchMinutes)
		}) {
			return
		}
	}
	if req.JackpotMin != nil || req.JackpotMax != nil {
		cur, err := gameService.State(req.GuildID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		min, max := cur.JackpotMin, cur.JackpotMax
		if req.JackpotMin != nil {
			min = *req.JackpotMin
		}
		if req.JackpotMax != nil {
			max = *req.JackpotMax
		}
		prize := ""
		if req.JackpotPrize != nil {
			prize = *req.JackpotPrize
		}
		if !apply(func() (*localdb.GuildState, error) {
			return gameService.SetJackpotRange(req.GuildID, min, max, prize)
		}) {
			return
		}
	} else if req.JackpotPrize != nil {
		if !apply(func() (*localdb.GuildState, error) {
			return gameService.SetJackpotPrize(req.GuildID, *req.JackpotPrize)
		}) {
			return
		}
	}
	if req.JackpotWindow != nil {
		if !apply(func() (*localdb.GuildState, error) {
			return gameService.SetJackpotWindow(req.GuildID, *req.JackpotWindow)
		}) {
			return
		}
	}
	if req.MilestoneMin != nil || req.MilestoneMax != nil {
		cur, err := gameService.State(req.GuildID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		min, max := cur.MilestoneMin, cur.MilestoneMax
		if req.MilestoneMin != nil {
			min = *req.MilestoneMin
		}
		if req.MilestoneMax != nil {
			max = *req.MilestoneMax
		}
		if !apply(func() (*localdb.GuildState, error) {
			return gameService.SetMilestoneRange(req.GuildID, min, max)
		}) {
			return
		}
	}
	if req.Paused != nil {
		if !apply(func() (*localdb.GuildState, error) {
			return gameService.SetPaused(req.GuildID, *req.Paused)
		}) {
			return
		}
	}

	if st == nil {
		st, err = gameService.State(req.GuildID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
	}
	writeJSON(w, st)
}

// handleCountingReset は手動リセットを実行する。
func handleCountingReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	guildID := guildIDParam(r)
	if guildID == "" {
		http.Error(w, "guild_id is required", http.StatusBadRequest)
		return
	}

	st, err := gameService.ResetCount(guildID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, st)
}
