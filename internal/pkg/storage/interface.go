package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
)

// ErrGameNotFound is returned when a game id does not exist.
var ErrGameNotFound = errors.New("game not found")

// SnapshotQuery narrows ListSnapshots. Zero values mean no bound.
type SnapshotQuery struct {
	// Since keeps snapshots with timestamp >= Since.
	Since *time.Time
	// Limit keeps only the most recent Limit snapshots (still returned oldest first).
	Limit int
}

// Repository covers games, snapshots and alert records.
type Repository interface {
	// UpsertGameByURL inserts a discovered game or refreshes the one with the same external URL.
	// Team names and start time are refreshed when provided, pregame odds are captured once and
	// status only moves forward. Returns the stored game and whether it was created.
	UpsertGameByURL(ctx context.Context, d models.DiscoveredGame) (*models.Game, bool, error)
	// CreateGame inserts a manually tracked game and sets its ID.
	CreateGame(ctx context.Context, g *models.Game) error
	GetGame(ctx context.Context, id int64) (*models.Game, error)
	// ListGamesByStatus returns games in any of the given statuses, oldest first.
	ListGamesByStatus(ctx context.Context, statuses ...models.GameStatus) ([]models.Game, error)
	// UpdateGameStatus moves a game forward; regressions return models.ErrStatusRegression.
	UpdateGameStatus(ctx context.Context, id int64, status models.GameStatus) error
	// UpdateGameTeams fills in team names; empty arguments leave the stored value unchanged.
	UpdateGameTeams(ctx context.Context, id int64, home, away string) error
	// TouchGame records the time of the last poll.
	TouchGame(ctx context.Context, id int64, polledAt time.Time) error

	// InsertSnapshots appends snapshots and sets their IDs. Snapshots are never updated.
	InsertSnapshots(ctx context.Context, snaps []models.Snapshot) error
	// ListSnapshots returns a game's snapshots ordered by timestamp, then insertion order.
	ListSnapshots(ctx context.Context, gameID int64, q SnapshotQuery) ([]models.Snapshot, error)
	// DeleteSnapshots drops every snapshot of a game (wholesale reset) and returns how many were removed.
	DeleteSnapshots(ctx context.Context, gameID int64) (int64, error)

	// LastAlertTime returns the most recent alert time for a game, nil if it never alerted.
	LastAlertTime(ctx context.Context, gameID int64) (*time.Time, error)
	InsertAlert(ctx context.Context, rec *models.AlertRecord) error
	ListAlerts(ctx context.Context, gameID int64) ([]models.AlertRecord, error)
}

// Store is a Repository with transactions.
type Store interface {
	Repository
	// InTx runs fn against a transaction-scoped repository. Returning an error rolls back.
	InTx(ctx context.Context, fn func(Repository) error) error
	Close() error
}

// mergeDiscovered applies the refresh rules of UpsertGameByURL to an existing game.
func mergeDiscovered(g *models.Game, d models.DiscoveredGame) {
	if d.HomeTeam != "" {
		g.HomeTeam = d.HomeTeam
	}
	if d.AwayTeam != "" {
		g.AwayTeam = d.AwayTeam
	}
	if d.StartTime != nil {
		ts := *d.StartTime
		g.StartTime = &ts
	}
	if g.Pregame.Empty() && !d.Pregame.Empty() {
		p := *d.Pregame
		g.Pregame = &p
	}
	if d.Status.Valid() {
		if next, err := g.Status.Advance(d.Status); err == nil {
			g.Status = next
		}
	}
}

func newGameFromDiscovered(d models.DiscoveredGame, now time.Time) *models.Game {
	g := &models.Game{
		ExternalURL: d.ExternalURL,
		Status:      models.StatusScheduled,
		CreatedAt:   now,
	}
	mergeDiscovered(g, d)
	return g
}
