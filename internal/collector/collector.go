// Package collector defines the external data sources the orchestrator polls.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
	"github.com/Vodeneev/hoopsmomentum/internal/timeline"
)

// GameLister discovers the roster of games. It never fails: on total failure it
// returns an empty list and logs the cause.
type GameLister interface {
	DiscoverGames(ctx context.Context) []models.DiscoveredGame
}

// LivePoller captures the current state of one game. A nil result with a nil
// error means the source had no usable data this cycle.
type LivePoller interface {
	Name() string
	PollGame(ctx context.Context, game models.Game) (*PollResult, error)
}

// PollResult carries raw records in the vocabulary of the source that produced them.
type PollResult struct {
	HomeTeam string
	AwayTeam string
	Quarter  []timeline.QuarterRecord
	Live     []timeline.LiveOddsRecord
}

// Empty reports whether the result carries no records.
func (r *PollResult) Empty() bool {
	return r == nil || (len(r.Quarter) == 0 && len(r.Live) == 0)
}

// Snapshots maps every record through its source adapter. Records with a missing
// timestamp are dropped; field-level problems are reported alongside the kept snapshots.
func (r *PollResult) Snapshots(gameID int64) ([]models.Snapshot, error) {
	if r == nil {
		return nil, nil
	}
	var (
		out  []models.Snapshot
		errs []error
	)
	add := func(s models.Snapshot, err error) {
		if err != nil {
			errs = append(errs, err)
			if errors.Is(err, timeline.ErrMissingTimestamp) {
				return
			}
		}
		out = append(out, s)
	}
	for _, q := range r.Quarter {
		add(timeline.FromQuarterRecord(gameID, q))
	}
	for _, l := range r.Live {
		add(timeline.FromLiveOddsRecord(gameID, l))
	}
	return out, errors.Join(errs...)
}

// Chain polls several sources for the same game and merges what they return.
type Chain []LivePoller

func (c Chain) Name() string { return "chain" }

// PollGame queries every source in order. One failing source does not hide the
// others; an error is returned only when every source failed.
func (c Chain) PollGame(ctx context.Context, game models.Game) (*PollResult, error) {
	var (
		merged PollResult
		errs   []error
	)
	for _, p := range c {
		res, err := p.PollGame(ctx, game)
		if err != nil {
			slog.Warn("Source poll failed", "source", p.Name(), "game_id", game.ID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		if res.Empty() {
			continue
		}
		if merged.HomeTeam == "" {
			merged.HomeTeam = res.HomeTeam
		}
		if merged.AwayTeam == "" {
			merged.AwayTeam = res.AwayTeam
		}
		merged.Quarter = append(merged.Quarter, res.Quarter...)
		merged.Live = append(merged.Live, res.Live...)
	}
	if len(c) > 0 && len(errs) == len(c) {
		return nil, errors.Join(errs...)
	}
	if merged.Empty() {
		return nil, nil
	}
	return &merged, nil
}
