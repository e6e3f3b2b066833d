// Package replay inspects stored timelines after the fact: polling gaps and
// frame-by-frame playback.
package replay

import (
	"time"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
)

// DefaultMaxGap is the longest tolerated silence between two snapshots.
const DefaultMaxGap = 120 * time.Second

// Gap is a stretch of missing data between two consecutive snapshots.
type Gap struct {
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	Seconds int64     `json:"gap_seconds"`
}

// Report is the health verdict for one game's timeline.
type Report struct {
	Count int   `json:"count"`
	Gaps  []Gap `json:"gaps"`
	OK    bool  `json:"ok"`
}

// DetectGaps returns every consecutive pair of snapshots whose spacing exceeds
// maxGap. Snapshots must already be in chronological order. A non-positive
// maxGap falls back to DefaultMaxGap.
func DetectGaps(snaps []models.Snapshot, maxGap time.Duration) []Gap {
	if maxGap <= 0 {
		maxGap = DefaultMaxGap
	}
	var gaps []Gap
	for i := 1; i < len(snaps); i++ {
		delta := snaps[i].Timestamp.Sub(snaps[i-1].Timestamp)
		if delta > maxGap {
			gaps = append(gaps, Gap{
				From:    snaps[i-1].Timestamp,
				To:      snaps[i].Timestamp,
				Seconds: int64(delta / time.Second),
			})
		}
	}
	return gaps
}

// Analyze runs DetectGaps and wraps the result; a game with no gaps is healthy.
func Analyze(snaps []models.Snapshot, maxGap time.Duration) Report {
	gaps := DetectGaps(snaps, maxGap)
	if gaps == nil {
		gaps = []Gap{}
	}
	return Report{Count: len(snaps), Gaps: gaps, OK: len(gaps) == 0}
}
