// Package scheduler drives the game lifecycle: it keeps the roster in sync,
// polls active games, feeds new snapshots to the detector and alert gate, and
// moves games scheduled -> live -> final.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Vodeneev/hoopsmomentum/internal/alerts"
	"github.com/Vodeneev/hoopsmomentum/internal/collector"
	"github.com/Vodeneev/hoopsmomentum/internal/momentum"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/config"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/keylock"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/performance"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/storage"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/validation"
	"github.com/Vodeneev/hoopsmomentum/internal/timeline"
)

// Orchestrator runs poll cycles over every scheduled and live game.
type Orchestrator struct {
	cfg     config.SchedulerConfig
	store   storage.Store
	lister  collector.GameLister
	poller  collector.LivePoller
	gate    *alerts.Gate
	guard   *PollGuard
	locks   *keylock.Mutex
	tracker *performance.Tracker
	now     func() time.Time

	cycle int
}

// New builds an orchestrator. lister may be nil, in which case only games
// already in the store are tracked.
func New(cfg config.SchedulerConfig, store storage.Store, lister collector.GameLister, poller collector.LivePoller, gate *alerts.Gate) *Orchestrator {
	if gate == nil {
		gate = alerts.NewGate(nil, 0)
	}
	return &Orchestrator{
		cfg:     cfg,
		store:   store,
		lister:  lister,
		poller:  poller,
		gate:    gate,
		guard:   NewPollGuard(cfg.PollTimeout),
		locks:   &keylock.Mutex{},
		tracker: performance.NewTracker(),
		now:     time.Now,
	}
}

// WithClock overrides the time source.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	if now != nil {
		o.now = now
	}
	return o
}

// WithTracker records metrics into t instead of a private tracker.
func (o *Orchestrator) WithTracker(t *performance.Tracker) *Orchestrator {
	if t != nil {
		o.tracker = t
	}
	return o
}

func (o *Orchestrator) Tracker() *performance.Tracker { return o.tracker }

// Run executes cycles at a fixed cadence until ctx is cancelled. The sleep
// between cycles is the interval minus the time the cycle took, never negative.
func (o *Orchestrator) Run(ctx context.Context) error {
	slog.Info("Starting game scheduler",
		"interval", o.cfg.Interval,
		"pre_start_window", o.cfg.PreStartWindow,
		"final_quiet_window", o.cfg.FinalQuietWindow,
		"poll_timeout", o.cfg.PollTimeout)

	for {
		start := o.now()
		if err := o.RunCycle(ctx); err != nil && ctx.Err() == nil {
			slog.Error("Cycle failed", "cycle", o.cycle, "error", err)
		}
		wait := nextSleep(o.cfg.Interval, o.now().Sub(start))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("Scheduler stopped", "cycles", o.cycle)
			return nil
		case <-timer.C:
		}
	}
}

func nextSleep(interval, elapsed time.Duration) time.Duration {
	if d := interval - elapsed; d > 0 {
		return d
	}
	return 0
}

// RunCycle syncs the roster and then handles every active game in turn. A
// failing game is logged and never stops the others.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	o.cycle++
	start := o.now()
	defer func() {
		elapsed := o.now().Sub(start)
		o.tracker.RecordCycle(elapsed, o.now())
		slog.Info("Cycle finished", "cycle", o.cycle, "elapsed", elapsed)
	}()

	if o.lister != nil {
		if _, err := o.SyncRoster(ctx); err != nil {
			slog.Warn("Roster sync incomplete", "cycle", o.cycle, "error", err)
		}
	}

	games, err := o.store.ListGamesByStatus(ctx, models.StatusScheduled, models.StatusLive)
	if err != nil {
		return fmt.Errorf("list active games: %w", err)
	}
	slog.Info("Cycle started", "cycle", o.cycle, "games", len(games))

	for _, game := range games {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := o.handleGame(ctx, game); err != nil {
			slog.Error("Game poll failed", "game_id", game.ID, "game", game.Name(), "error", err)
		}
	}
	return nil
}

func (o *Orchestrator) handleGame(ctx context.Context, game models.Game) error {
	switch game.Status {
	case models.StatusScheduled:
		switch {
		case ShouldGoLive(game, o.now(), o.cfg.PreStartWindow):
			if err := o.store.UpdateGameStatus(ctx, game.ID, models.StatusLive); err != nil {
				return fmt.Errorf("start live polling: %w", err)
			}
			slog.Info("Game close to start, polling live", "game_id", game.ID, "start_time", game.StartTime)
		case game.StartTime != nil:
			slog.Debug("Game scheduled but not close to start", "game_id", game.ID, "start_time", game.StartTime)
			return nil
		}
		// Without a start time the game is polled until data shows it in play.
	case models.StatusLive:
	default:
		return nil
	}
	_, err := o.PollGame(ctx, game.ID)
	return err
}

// SyncRoster upserts every discovered game by external URL and returns how many
// were new. Rows that fail validation are skipped; store failures are joined.
func (o *Orchestrator) SyncRoster(ctx context.Context) (int, error) {
	if o.lister == nil {
		return 0, nil
	}
	discovered := o.lister.DiscoverGames(ctx)

	var (
		created int
		errs    []error
	)
	for _, d := range discovered {
		validation.SanitizeDiscovered(&d)
		if err := validation.ValidateDiscovered(d, o.now()); err != nil {
			slog.Warn("Skipping game list row", "url", d.ExternalURL, "error", err)
			continue
		}
		g, isNew, err := o.store.UpsertGameByURL(ctx, d)
		if err != nil {
			errs = append(errs, fmt.Errorf("upsert %s: %w", d.ExternalURL, err))
			continue
		}
		if isNew {
			created++
			slog.Info("New game discovered", "game_id", g.ID, "game", g.Name(), "status", g.Status, "start_time", g.StartTime)
		}
	}
	slog.Info("Roster synced", "discovered", len(discovered), "created", created)
	return created, errors.Join(errs...)
}

// PollOutcome summarizes one poll.
type PollOutcome struct {
	GameID    int64
	NoData    bool
	Snapshots int
	Events    []models.Event
	Alerts    []models.AlertRecord
	Status    models.GameStatus
}

// PollGame captures the current state of one game, stores it as one merged
// snapshot, runs detection and alerting over recent history and applies
// lifecycle transitions. Calls for the same game are serialized.
func (o *Orchestrator) PollGame(ctx context.Context, gameID int64) (out *PollOutcome, err error) {
	unlock, err := o.locks.Lock(ctx, "game:"+strconv.FormatInt(gameID, 10))
	if err != nil {
		return nil, err
	}
	defer unlock()

	game, err := o.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	out = &PollOutcome{GameID: game.ID, Status: game.Status}
	if game.Status == models.StatusFinal {
		return out, nil
	}

	start := o.now()
	defer func() {
		pt := performance.PollTiming{
			GameID:    game.ID,
			Duration:  o.now().Sub(start),
			Success:   err == nil,
			TimedOut:  errors.Is(err, ErrPollTimeout),
			Timestamp: start,
		}
		if err != nil {
			pt.Error = err.Error()
		}
		if out != nil {
			pt.Snapshots, pt.Events, pt.Alerts = out.Snapshots, len(out.Events), len(out.Alerts)
		}
		o.tracker.RecordPoll(pt)
	}()

	slog.Info("Polling game", "game_id", game.ID, "game", game.Name(), "status", game.Status)
	res, err := o.guard.Poll(ctx, o.poller, *game)
	if err != nil {
		return out, fmt.Errorf("poll game %d: %w", game.ID, err)
	}
	if res.Empty() {
		out.NoData = true
		slog.Info("No live data", "game_id", game.ID)
		return out, nil
	}

	snaps, verr := res.Snapshots(game.ID)
	if verr != nil {
		slog.Warn("Rejected snapshot fields", "game_id", game.ID, "error", verr)
	}
	merged, ok := timeline.Merge(snaps)
	if !ok {
		out.NoData = true
		return out, nil
	}
	fresh := timeline.Timeline{merged}

	goLive := game.Status == models.StatusScheduled && inPlay(fresh)
	err = o.store.InTx(ctx, func(r storage.Repository) error {
		if err := r.InsertSnapshots(ctx, fresh); err != nil {
			return err
		}
		if err := r.UpdateGameTeams(ctx, game.ID, res.HomeTeam, res.AwayTeam); err != nil {
			return err
		}
		if err := r.TouchGame(ctx, game.ID, o.now()); err != nil {
			return err
		}
		if goLive {
			return r.UpdateGameStatus(ctx, game.ID, models.StatusLive)
		}
		return nil
	})
	if err != nil {
		return out, fmt.Errorf("store poll of game %d: %w", game.ID, err)
	}
	out.Snapshots = len(fresh)
	if res.HomeTeam != "" {
		game.HomeTeam = res.HomeTeam
	}
	if res.AwayTeam != "" {
		game.AwayTeam = res.AwayTeam
	}
	if goLive {
		game.Status = models.StatusLive
		slog.Info("Game went live on in-play data", "game_id", game.ID)
	}
	out.Status = game.Status

	history, err := o.store.ListSnapshots(ctx, game.ID, storage.SnapshotQuery{Limit: o.cfg.HistorySize})
	if err != nil {
		return out, fmt.Errorf("load history of game %d: %w", game.ID, err)
	}
	tl, _ := timeline.Normalize(history)

	firstNew := fresh[0].Timestamp
	for _, ev := range momentum.Detect(tl) {
		if !ev.Timestamp.Before(firstNew) {
			out.Events = append(out.Events, ev)
		}
	}
	out.Alerts, err = o.gate.Process(ctx, o.store, *game, out.Events)
	if err != nil {
		return out, fmt.Errorf("alerts for game %d: %w", game.ID, err)
	}

	if game.Status == models.StatusLive {
		now := o.now()
		since := now.Add(-o.cfg.FinalQuietWindow)
		recent, err := o.store.ListSnapshots(ctx, game.ID, storage.SnapshotQuery{Since: &since})
		if err != nil {
			return out, fmt.Errorf("load recent snapshots of game %d: %w", game.ID, err)
		}
		if ShouldFinish(recent, now, o.cfg.FinalQuietWindow, o.cfg.MinQuietSnapshots) {
			if err := o.store.UpdateGameStatus(ctx, game.ID, models.StatusFinal); err != nil {
				return out, fmt.Errorf("finish game %d: %w", game.ID, err)
			}
			out.Status = models.StatusFinal
			o.tracker.RecordFinal()
			slog.Info("Game marked final", "game_id", game.ID, "game", game.Name())
		}
	}

	slog.Info("Game polled", "game_id", game.ID, "snapshots", out.Snapshots, "events", len(out.Events), "alerts", len(out.Alerts), "status", out.Status)
	return out, nil
}
