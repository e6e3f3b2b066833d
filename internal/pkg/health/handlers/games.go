package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/storage"
	"github.com/Vodeneev/hoopsmomentum/internal/replay"
)

// GameReader is the read side of the store used by the HTTP handlers.
type GameReader interface {
	GetGame(ctx context.Context, id int64) (*models.Game, error)
	ListGamesByStatus(ctx context.Context, statuses ...models.GameStatus) ([]models.Game, error)
	ListSnapshots(ctx context.Context, gameID int64, q storage.SnapshotQuery) ([]models.Snapshot, error)
	ListAlerts(ctx context.Context, gameID int64) ([]models.AlertRecord, error)
}

const requestTimeout = 10 * time.Second

// GamesHandler lists tracked games on /games. ?status=final selects finished
// games; the default is every scheduled and live game.
func GamesHandler(store GameReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		statuses := []models.GameStatus{models.StatusScheduled, models.StatusLive}
		if s := r.URL.Query().Get("status"); s != "" {
			st := models.GameStatus(s)
			if !st.Valid() {
				http.Error(w, "unknown status "+s, http.StatusBadRequest)
				return
			}
			statuses = []models.GameStatus{st}
		}

		games, err := store.ListGamesByStatus(ctx, statuses...)
		if err != nil {
			slog.Error("List games failed", "error", err)
			http.Error(w, "failed to list games", http.StatusInternalServerError)
			return
		}
		if games == nil {
			games = []models.Game{}
		}
		writeJSON(w, map[string]any{"games": games, "count": len(games)})
	}
}

// gapsResponse is the /games/gaps payload.
type gapsResponse struct {
	GameID int64 `json:"game_id"`
	replay.Report
}

// GapsHandler reports polling gaps for one game on /games/gaps?id=N.
func GapsHandler(store GameReader, maxGap time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := gameID(w, r)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		if _, err := store.GetGame(ctx, id); err != nil {
			writeStoreError(w, err)
			return
		}
		snaps, err := store.ListSnapshots(ctx, id, storage.SnapshotQuery{})
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, gapsResponse{GameID: id, Report: replay.Analyze(snaps, maxGap)})
	}
}

// AlertsHandler lists the alert history of one game on /games/alerts?id=N.
func AlertsHandler(store GameReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := gameID(w, r)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		if _, err := store.GetGame(ctx, id); err != nil {
			writeStoreError(w, err)
			return
		}
		recs, err := store.ListAlerts(ctx, id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if recs == nil {
			recs = []models.AlertRecord{}
		}
		writeJSON(w, map[string]any{"game_id": id, "alerts": recs})
	}
}

func gameID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "id query parameter must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrGameNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	slog.Error("Store query failed", "error", err)
	http.Error(w, "store query failed", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Encode response failed", "error", err)
	}
}
