package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/performance"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/storage"
)

func seed(t *testing.T) (*storage.MemoryStore, int64) {
	t.Helper()
	ctx := context.Background()
	st := storage.NewMemoryStore()
	g := &models.Game{HomeTeam: "Celtics", AwayTeam: "Heat", Status: models.StatusLive}
	if err := st.CreateGame(ctx, g); err != nil {
		t.Fatal(err)
	}
	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	var snaps []models.Snapshot
	for _, off := range []int{0, 60, 200} {
		snaps = append(snaps, models.Snapshot{GameID: g.ID, Timestamp: base.Add(time.Duration(off) * time.Second), Stage: models.StageLive})
	}
	if err := st.InsertSnapshots(ctx, snaps); err != nil {
		t.Fatal(err)
	}
	return st, g.ID
}

func get(t *testing.T, mux http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestMux_Health(t *testing.T) {
	mux := NewMux(Deps{Tracker: performance.NewTracker()})
	if rec := get(t, mux, "/ping"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "pong") {
		t.Errorf("/ping = %d %q", rec.Code, rec.Body.String())
	}
	if rec := get(t, mux, "/health"); rec.Code != http.StatusOK || rec.Body.String() != "ok\n" {
		t.Errorf("/health = %d %q", rec.Code, rec.Body.String())
	}

	tr := performance.NewTracker()
	tr.RecordCycle(time.Second, time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC))
	rec := get(t, NewMux(Deps{Tracker: tr}), "/health")
	if want := "ok last_cycle=2026-03-10T01:00:00Z\n"; rec.Body.String() != want {
		t.Errorf("/health = %q, want %q", rec.Body.String(), want)
	}
}

func TestMux_Metrics(t *testing.T) {
	tr := performance.NewTracker()
	tr.RecordPoll(performance.PollTiming{GameID: 1, Duration: time.Second, Success: true})
	rec := get(t, NewMux(Deps{Tracker: tr}), "/metrics")

	var m performance.MetricsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatal(err)
	}
	if m.Overall.TotalPolls != 1 {
		t.Errorf("total_polls = %d, want 1", m.Overall.TotalPolls)
	}
}

func TestMux_Gaps(t *testing.T) {
	st, id := seed(t)
	mux := NewMux(Deps{Store: st, MaxGap: 120 * time.Second})

	rec := get(t, mux, "/games/gaps?id=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	var resp struct {
		GameID int64 `json:"game_id"`
		Count  int   `json:"count"`
		OK     bool  `json:"ok"`
		Gaps   []struct {
			Seconds int64 `json:"gap_seconds"`
		} `json:"gaps"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.GameID != id || resp.Count != 3 || resp.OK || len(resp.Gaps) != 1 || resp.Gaps[0].Seconds != 140 {
		t.Errorf("response = %+v", resp)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/games/gaps", http.StatusBadRequest},
		{"/games/gaps?id=abc", http.StatusBadRequest},
		{"/games/gaps?id=99", http.StatusNotFound},
		{"/games/alerts?id=1", http.StatusOK},
		{"/games", http.StatusOK},
		{"/games?status=final", http.StatusOK},
		{"/games?status=bogus", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := get(t, mux, tt.path); rec.Code != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}
}

func TestMux_GamesList(t *testing.T) {
	st, _ := seed(t)
	rec := get(t, NewMux(Deps{Store: st}), "/games")
	var resp struct {
		Count int           `json:"count"`
		Games []models.Game `json:"games"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 || resp.Games[0].Name() != "Heat @ Celtics" {
		t.Errorf("response = %+v", resp)
	}
}
