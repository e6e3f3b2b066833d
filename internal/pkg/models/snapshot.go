package models

import (
	"strconv"
	"strings"
	"time"
)

// Stage labels game progress on a snapshot.
type Stage string

const (
	StagePregame Stage = "pregame"
	StageLive    Stage = "live"
	StageFinal   Stage = "final"
)

// QuarterStage returns the stage label for quarter n (Q1..Q4, Q5+ for overtime).
func QuarterStage(n int) Stage {
	if n <= 0 {
		return StageLive
	}
	return Stage("Q" + strconv.Itoa(n))
}

// ParseStage normalizes a raw stage label. Unknown or empty labels map to "live".
func ParseStage(raw string) Stage {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return StageLive
	case s == "pregame" || s == "pre-game" || s == "prematch":
		return StagePregame
	case s == "final" || s == "ft" || s == "finished" || s == "aot":
		return StageFinal
	case strings.HasPrefix(s, "ot"):
		n, err := strconv.Atoi(strings.TrimPrefix(s, "ot"))
		if err != nil || n < 1 {
			n = 1
		}
		return QuarterStage(4 + n)
	case strings.HasPrefix(s, "q"):
		if n, err := strconv.Atoi(strings.TrimPrefix(s, "q")); err == nil {
			return QuarterStage(n)
		}
	}
	return StageLive
}

// IsFinal reports whether the stage ends the game.
func (s Stage) IsFinal() bool { return s == StageFinal }

// InPlay reports whether the stage means the game is underway.
func (s Stage) InPlay() bool { return s != StagePregame && s != StageFinal && s != "" }

// Snapshot source labels.
const (
	SourceOddsPortal = "oddsportal"
	SourcePinnacle   = "pinnacle"
	SourceESPN       = "espn"
	SourceManual     = "manual"
)

// Snapshot is one point on a game's canonical timeline. Snapshots are immutable once stored.
type Snapshot struct {
	ID            int64     `json:"id,omitempty"`
	GameID        int64     `json:"game_id"`
	Timestamp     time.Time `json:"timestamp"`
	Stage         Stage     `json:"stage"`
	ScoreHome     *int      `json:"score_home"`
	ScoreAway     *int      `json:"score_away"`
	MoneylineHome *float64  `json:"ml_home"`
	MoneylineAway *float64  `json:"ml_away"`
	Spread        *float64  `json:"spread"`
	Total         *float64  `json:"total"`
	Source        string    `json:"source,omitempty"`
}

// HasScore reports whether both scores are known.
func (s Snapshot) HasScore() bool {
	return s.ScoreHome != nil && s.ScoreAway != nil
}

// SameScore reports whether both snapshots carry the same known score pair.
func (s Snapshot) SameScore(o Snapshot) bool {
	return s.HasScore() && o.HasScore() && *s.ScoreHome == *o.ScoreHome && *s.ScoreAway == *o.ScoreAway
}
