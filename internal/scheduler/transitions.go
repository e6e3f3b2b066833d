package scheduler

import (
	"time"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
	"github.com/Vodeneev/hoopsmomentum/internal/timeline"
)

// ShouldGoLive reports whether a scheduled game has entered its pre-start window.
// A start time already in the past also qualifies. Games without a start time
// only go live once a poll returns in-play data.
func ShouldGoLive(game models.Game, now time.Time, window time.Duration) bool {
	if game.Status != models.StatusScheduled || game.StartTime == nil {
		return false
	}
	return !now.Before(game.StartTime.Add(-window))
}

// ShouldFinish reports whether a live game is over: either a snapshot carries the
// final stage, or at least minQuiet scored snapshots taken within quietWindow of
// now, spanning more than one poll time, all show the same score. snaps must be
// ordered by timestamp.
func ShouldFinish(snaps []models.Snapshot, now time.Time, quietWindow time.Duration, minQuiet int) bool {
	if minQuiet < 2 {
		minQuiet = 2
	}
	tl := timeline.Timeline(snaps)
	if tl.HasFinal() {
		return true
	}
	var recent []models.Snapshot
	for _, s := range tl.Since(now.Add(-quietWindow)) {
		if s.HasScore() {
			recent = append(recent, s)
		}
	}
	if len(recent) < minQuiet {
		return false
	}
	first, last := recent[0], recent[len(recent)-1]
	if !last.Timestamp.After(first.Timestamp) {
		return false
	}
	for _, s := range recent[1:] {
		if !s.SameScore(first) {
			return false
		}
	}
	return true
}

// inPlay reports whether any snapshot shows the game underway.
func inPlay(snaps []models.Snapshot) bool {
	for _, s := range snaps {
		if s.Stage.InPlay() || s.Stage.IsFinal() {
			return true
		}
	}
	return false
}
