package timeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
)

var (
	// ErrMissingTimestamp rejects a record that cannot be placed on a timeline.
	ErrMissingTimestamp = errors.New("snapshot record has no timestamp")
	// ErrInvalidOdds reports a decimal price of 1.0 or less; the field is dropped to null.
	ErrInvalidOdds = errors.New("invalid decimal odds")
	// ErrInvalidScore reports a negative score; the field is dropped to null.
	ErrInvalidScore = errors.New("invalid score")
)

// QuarterRecord is the shape produced by the OddsPortal page scraper.
type QuarterRecord struct {
	Timestamp time.Time
	Stage     string
	ScoreHome *int
	ScoreAway *int
	MLHome    *float64
	MLAway    *float64
	Spread    *float64
	Total     *float64
}

// LiveOddsRecord is the shape produced by live feeds (Pinnacle, ESPN).
// Team A is the home side, team B the away side.
type LiveOddsRecord struct {
	Source     string // defaults to pinnacle
	Timestamp  time.Time
	Quarter    *int
	GameClock  string
	Final      bool // the feed reports the game as completed
	TeamAScore *int
	TeamBScore *int
	TeamAML    *float64
	TeamBML    *float64
	SpreadLine *float64
	TotalLine  *float64
}

// FromQuarterRecord maps an OddsPortal record onto the canonical snapshot.
// Field problems other than a missing timestamp null the field and are reported
// in the returned error while the snapshot is still produced.
func FromQuarterRecord(gameID int64, r QuarterRecord) (models.Snapshot, error) {
	if r.Timestamp.IsZero() {
		return models.Snapshot{}, fmt.Errorf("game %d (%s): %w", gameID, models.SourceOddsPortal, ErrMissingTimestamp)
	}
	v := &validator{source: models.SourceOddsPortal, gameID: gameID}
	snap := models.Snapshot{
		GameID:        gameID,
		Timestamp:     r.Timestamp.UTC(),
		Stage:         models.ParseStage(r.Stage),
		ScoreHome:     v.score("score_home", r.ScoreHome),
		ScoreAway:     v.score("score_away", r.ScoreAway),
		MoneylineHome: v.price("ml_home", r.MLHome),
		MoneylineAway: v.price("ml_away", r.MLAway),
		Spread:        r.Spread,
		Total:         r.Total,
		Source:        models.SourceOddsPortal,
	}
	return snap, v.err()
}

// FromLiveOddsRecord maps a live feed record onto the canonical snapshot.
// An unknown quarter yields stage "live"; a completed game yields "final".
func FromLiveOddsRecord(gameID int64, r LiveOddsRecord) (models.Snapshot, error) {
	source := r.Source
	if source == "" {
		source = models.SourcePinnacle
	}
	if r.Timestamp.IsZero() {
		return models.Snapshot{}, fmt.Errorf("game %d (%s): %w", gameID, source, ErrMissingTimestamp)
	}
	stage := models.StageLive
	switch {
	case r.Final:
		stage = models.StageFinal
	case r.Quarter != nil:
		stage = models.QuarterStage(*r.Quarter)
	}
	v := &validator{source: source, gameID: gameID}
	snap := models.Snapshot{
		GameID:        gameID,
		Timestamp:     r.Timestamp.UTC(),
		Stage:         stage,
		ScoreHome:     v.score("teamA_score", r.TeamAScore),
		ScoreAway:     v.score("teamB_score", r.TeamBScore),
		MoneylineHome: v.price("teamA_ml", r.TeamAML),
		MoneylineAway: v.price("teamB_ml", r.TeamBML),
		Spread:        r.SpreadLine,
		Total:         r.TotalLine,
		Source:        source,
	}
	return snap, v.err()
}

type validator struct {
	source string
	gameID int64
	errs   []error
}

func (v *validator) price(field string, p *float64) *float64 {
	if p == nil {
		return nil
	}
	if !(*p > 1) {
		v.errs = append(v.errs, fmt.Errorf("game %d (%s) %s=%v: %w", v.gameID, v.source, field, *p, ErrInvalidOdds))
		return nil
	}
	out := *p
	return &out
}

func (v *validator) score(field string, s *int) *int {
	if s == nil {
		return nil
	}
	if *s < 0 {
		v.errs = append(v.errs, fmt.Errorf("game %d (%s) %s=%d: %w", v.gameID, v.source, field, *s, ErrInvalidScore))
		return nil
	}
	out := *s
	return &out
}

func (v *validator) err() error {
	return errors.Join(v.errs...)
}
