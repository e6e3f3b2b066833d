// Package timeline merges snapshot records from every upstream source into one
// ordered per-game sequence.
package timeline

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
)

// Timeline is an ascending, timestamp-ordered sequence of snapshots for one game.
type Timeline []models.Snapshot

// Normalize orders records by timestamp. Records without a timestamp are dropped and
// reported as ErrMissingTimestamp; equal timestamps keep their input order. Records
// are never deduplicated.
func Normalize(records []models.Snapshot) (Timeline, error) {
	out := make(Timeline, 0, len(records))
	var errs []error
	for i, r := range records {
		if r.Timestamp.IsZero() {
			errs = append(errs, fmt.Errorf("record %d for game %d: %w", i, r.GameID, ErrMissingTimestamp))
			continue
		}
		if r.Stage == "" {
			r.Stage = models.StageLive
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, errors.Join(errs...)
}

// Last returns the latest snapshot.
func (t Timeline) Last() (models.Snapshot, bool) {
	if len(t) == 0 {
		return models.Snapshot{}, false
	}
	return t[len(t)-1], true
}

// Tail returns the last n snapshots (all of them if n exceeds the length).
func (t Timeline) Tail(n int) Timeline {
	if n <= 0 {
		return nil
	}
	if n >= len(t) {
		return t
	}
	return t[len(t)-n:]
}

// Since returns the snapshots taken at or after cutoff.
func (t Timeline) Since(cutoff time.Time) Timeline {
	i := sort.Search(len(t), func(i int) bool { return !t[i].Timestamp.Before(cutoff) })
	return t[i:]
}

// UntilFinal returns the prefix ending at the first final snapshot. Nothing after a
// final snapshot counts toward momentum.
func (t Timeline) UntilFinal() Timeline {
	for i, s := range t {
		if s.Stage.IsFinal() {
			return t[:i+1]
		}
	}
	return t
}

// HasFinal reports whether any snapshot carries the final stage.
func (t Timeline) HasFinal() bool {
	for _, s := range t {
		if s.Stage.IsFinal() {
			return true
		}
	}
	return false
}
