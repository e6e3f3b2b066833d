// Package alerts decides which momentum events notify and dispatches them.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/keylock"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
)

// DefaultCooldown is the minimum spacing between two alerts for the same game.
const DefaultCooldown = 10 * time.Minute

// ShouldAlert reports whether a game whose last alert went out at last may alert
// again at now. A nil last means the game never alerted.
func ShouldAlert(last *time.Time, now time.Time, cooldown time.Duration) bool {
	if last == nil {
		return true
	}
	return now.Sub(*last) > cooldown
}

// Alertable reports whether events of this kind may notify at all.
func Alertable(kind models.EventKind) bool {
	switch kind {
	case models.EventUnderdogSurge, models.EventFavoriteDip, models.EventReversal:
		return true
	default:
		return false
	}
}

// Store is the persistence the gate needs for cooldown bookkeeping.
type Store interface {
	LastAlertTime(ctx context.Context, gameID int64) (*time.Time, error)
	InsertAlert(ctx context.Context, rec *models.AlertRecord) error
}

// Locker serializes the cooldown check-then-write per game.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Gate applies the per-game cooldown and dispatches allowed events.
type Gate struct {
	notifier Notifier
	locker   Locker
	cooldown time.Duration
	now      func() time.Time
}

// NewGate creates a gate with an in-process lock and the wall clock.
// A non-positive cooldown falls back to DefaultCooldown.
func NewGate(notifier Notifier, cooldown time.Duration) *Gate {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Gate{
		notifier: notifier,
		locker:   &keylock.Mutex{},
		cooldown: cooldown,
		now:      time.Now,
	}
}

// WithLocker replaces the in-process lock, e.g. with a Redis lock shared by several processes.
func (g *Gate) WithLocker(l Locker) *Gate {
	if l != nil {
		g.locker = l
	}
	return g
}

// WithClock replaces the clock used for cooldown decisions.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	if now != nil {
		g.now = now
	}
	return g
}

// Cooldown returns the configured cooldown.
func (g *Gate) Cooldown() time.Duration { return g.cooldown }

// Process runs every event through the gate and returns the alerts it recorded.
// Delivery failures are logged and never prevent the record from being written.
// A persistence error stops processing for this game.
func (g *Gate) Process(ctx context.Context, store Store, game models.Game, events []models.Event) ([]models.AlertRecord, error) {
	var sent []models.AlertRecord
	for _, ev := range events {
		if !Alertable(ev.Kind) {
			continue
		}
		rec, err := g.processOne(ctx, store, game, ev)
		if err != nil {
			return sent, err
		}
		if rec != nil {
			sent = append(sent, *rec)
		}
	}
	return sent, nil
}

func (g *Gate) processOne(ctx context.Context, store Store, game models.Game, ev models.Event) (*models.AlertRecord, error) {
	unlock, err := g.locker.Lock(ctx, "alerts:game:"+strconv.FormatInt(game.ID, 10))
	if err != nil {
		return nil, fmt.Errorf("lock game %d: %w", game.ID, err)
	}
	defer unlock()

	last, err := store.LastAlertTime(ctx, game.ID)
	if err != nil {
		return nil, fmt.Errorf("last alert time for game %d: %w", game.ID, err)
	}
	now := g.now()
	if !ShouldAlert(last, now, g.cooldown) {
		slog.Debug("Alert suppressed by cooldown", "game_id", game.ID, "type", ev.Kind, "last_alert", last)
		return nil, nil
	}

	n := Notification{
		GameID:    game.ID,
		GameName:  game.Name(),
		Kind:      ev.Kind,
		Detail:    ev.Detail,
		Magnitude: ev.Magnitude,
		EventTime: ev.Timestamp,
	}
	if err := g.notifier.Deliver(ctx, n); err != nil {
		slog.Warn("Alert delivery failed", "game_id", game.ID, "type", ev.Kind, "channel", g.notifier.Name(), "error", err)
	}

	rec := &models.AlertRecord{
		GameID:    game.ID,
		Kind:      ev.Kind,
		Message:   n.Message(),
		Timestamp: now,
		Channel:   g.notifier.Name(),
	}
	if err := store.InsertAlert(ctx, rec); err != nil {
		return nil, fmt.Errorf("record alert for game %d: %w", game.ID, err)
	}
	slog.Info("Alert sent", "game_id", game.ID, "type", ev.Kind, "channel", rec.Channel)
	return rec, nil
}
