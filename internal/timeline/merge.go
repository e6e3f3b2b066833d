package timeline

import (
	"slices"
	"strconv"
	"strings"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
)

// Merge folds the records one poll captured from several sources into a single
// snapshot. Records are given in source priority order: the score pair, spread
// and total each come from the first record that carries them, and the moneyline
// pair from the first record quoting both sides.
// The stage is the most advanced one reported and the timestamp is the latest.
// Records without a timestamp are ignored; ok is false when none remain.
func Merge(records []models.Snapshot) (s models.Snapshot, ok bool) {
	var (
		sources []string
		fullML  bool
	)
	for _, r := range records {
		if r.Timestamp.IsZero() {
			continue
		}
		if !ok {
			s = models.Snapshot{GameID: r.GameID, Timestamp: r.Timestamp, Stage: r.Stage}
			ok = true
		}
		if r.Timestamp.After(s.Timestamp) {
			s.Timestamp = r.Timestamp
		}
		if stageRank(r.Stage) > stageRank(s.Stage) {
			s.Stage = r.Stage
		}
		switch {
		case fullML:
		case r.MoneylineHome != nil && r.MoneylineAway != nil:
			s.MoneylineHome, s.MoneylineAway = r.MoneylineHome, r.MoneylineAway
			fullML = true
		case s.MoneylineHome == nil && s.MoneylineAway == nil:
			s.MoneylineHome, s.MoneylineAway = r.MoneylineHome, r.MoneylineAway
		}
		if !s.HasScore() && r.HasScore() {
			s.ScoreHome, s.ScoreAway = r.ScoreHome, r.ScoreAway
		}
		if s.Spread == nil {
			s.Spread = r.Spread
		}
		if s.Total == nil {
			s.Total = r.Total
		}
		if r.Source != "" && !slices.Contains(sources, r.Source) {
			sources = append(sources, r.Source)
		}
	}
	if !ok {
		return models.Snapshot{}, false
	}
	if s.Stage == "" {
		s.Stage = models.StageLive
	}
	s.Source = strings.Join(sources, "+")
	return s, true
}

// stageRank orders stages by game progress: pregame, live, Q1..Qn, final.
func stageRank(st models.Stage) int {
	switch {
	case st == models.StageFinal:
		return 1 << 16
	case st == models.StagePregame || st == "":
		return 0
	case strings.HasPrefix(string(st), "Q"):
		if n, err := strconv.Atoi(strings.TrimPrefix(string(st), "Q")); err == nil {
			return 1 + n
		}
	}
	return 1
}

