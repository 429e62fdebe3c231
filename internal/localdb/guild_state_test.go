package localdb

import (
	"path/filepath"
	"testing"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	if _, err := SetupDB(dbPath); err != nil {
		t.Fatalf("failed to setup test database: %v", err)
	}
	t.Cleanup(func() {
		if err := CloseDB(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
}

func TestGetGuildState_CreatesDefaults(t *testing.T) {
	setupTestDB(t)

	st, err := GetGuildState("g1")
	if err != nil {
		t.Fatalf("GetGuildState failed: %v", err)
	}
	if st.GuildID != "g1" {
		t.Fatalf("unexpected guild id: got=%q want=%q", st.GuildID, "g1")
	}
	if st.Mode != ModeNumeric || st.StartValue != 1 || st.CurrentValue != 0 {
		t.Fatalf("unexpected defaults: mode=%q start=%d current=%d", st.Mode, st.StartValue, st.CurrentValue)
	}
	if st.BenchMinutes != 5 || st.JackpotMin != 10 || st.JackpotMax != 100 {
		t.Fatalf("unexpected defaults: bench=%d jackpot=[%d,%d]", st.BenchMinutes, st.JackpotMin, st.JackpotMax)
	}
	if st.JackpotTarget != 0 {
		t.Fatalf("new guild must start unarmed: target=%d", st.JackpotTarget)
	}
	if !st.WrapLetters {
		t.Fatalf("letters must wrap by default")
	}

	// 初回アクセスで行が作られている
	again, err := GetGuildState("g1")
	if err != nil {
		t.Fatalf("second GetGuildState failed: %v", err)
	}
	if again.GuildID != "g1" {
		t.Fatalf("persisted row missing")
	}
}

func TestSaveGuildState_RoundTrip(t *testing.T) {
	setupTestDB(t)

	st := DefaultGuildState("g1")
	st.ChannelID = "c9"
	st.Mode = ModeAlphabetic
	st.CurrentValue = 13
	st.LastUserID = "alice"
	st.StrictParsing = true
	st.ReverseLetters = true
	st.WrapLetters = false
	st.GuildStreak = 13
	st.BestGuildStreak = 40
	st.JackpotTarget = 55
	st.NextMilestone = 77

	if err := SaveGuildState(st); err != nil {
		t.Fatalf("SaveGuildState failed: %v", err)
	}

	got, err := GetGuildState("g1")
	if err != nil {
		t.Fatalf("GetGuildState failed: %v", err)
	}
	if got.ChannelID != "c9" || got.Mode != ModeAlphabetic || got.CurrentValue != 13 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.LastUserID != "alice" || !got.StrictParsing || !got.ReverseLetters || got.WrapLetters {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.BestGuildStreak != 40 || got.JackpotTarget != 55 || got.NextMilestone != 77 {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	// 上書き保存
	st.CurrentValue = 14
	if err := SaveGuildState(st); err != nil {
		t.Fatalf("second save failed: %v", err)
	}
	got, _ = GetGuildState("g1")
	if got.CurrentValue != 14 {
		t.Fatalf("upsert did not update: got=%d want=14", got.CurrentValue)
	}
}

func TestGuildStates_AreIsolated(t *testing.T) {
	setupTestDB(t)

	a, _ := GetGuildState("g1")
	a.CurrentValue = 100
	if err := SaveGuildState(a); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	b, err := GetGuildState("g2")
	if err != nil {
		t.Fatalf("GetGuildState failed: %v", err)
	}
	if b.CurrentValue != 0 {
		t.Fatalf("guilds must not share state: got=%d", b.CurrentValue)
	}
}
