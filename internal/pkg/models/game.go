package models

import (
	"errors"
	"fmt"
	"time"
)

// GameStatus is the lifecycle state of a tracked game.
type GameStatus string

const (
	StatusScheduled GameStatus = "scheduled"
	StatusLive      GameStatus = "live"
	StatusFinal     GameStatus = "final"
)

// ErrStatusRegression is returned when a transition would move a game backwards.
var ErrStatusRegression = errors.New("game status cannot move backwards")

func (s GameStatus) rank() int {
	switch s {
	case StatusScheduled:
		return 0
	case StatusLive:
		return 1
	case StatusFinal:
		return 2
	default:
		return -1
	}
}

// Valid reports whether s is one of the known statuses.
func (s GameStatus) Valid() bool {
	return s.rank() >= 0
}

// Active reports whether the orchestrator still has work to do for a game in this status.
func (s GameStatus) Active() bool {
	return s == StatusScheduled || s == StatusLive
}

// Advance returns the status after moving from s to next.
// Moving to the same status is a no-op; moving backwards returns ErrStatusRegression.
func (s GameStatus) Advance(next GameStatus) (GameStatus, error) {
	if !next.Valid() {
		return s, fmt.Errorf("unknown game status %q", next)
	}
	if !s.Valid() {
		return next, nil
	}
	if next.rank() < s.rank() {
		return s, fmt.Errorf("%s -> %s: %w", s, next, ErrStatusRegression)
	}
	return next, nil
}

// ParseGameStatus maps a free-form status label to a GameStatus (unknown labels are scheduled).
func ParseGameStatus(s string) GameStatus {
	switch GameStatus(s) {
	case StatusLive, StatusFinal:
		return GameStatus(s)
	default:
		return StatusScheduled
	}
}

// PregameOdds are captured once before live polling begins.
type PregameOdds struct {
	MoneylineHome *float64 `json:"moneyline_home,omitempty"`
	MoneylineAway *float64 `json:"moneyline_away,omitempty"`
	Spread        *float64 `json:"spread,omitempty"`
	Total         *float64 `json:"total,omitempty"`
}

// Empty reports whether no pregame value has been captured.
func (p *PregameOdds) Empty() bool {
	return p == nil || (p.MoneylineHome == nil && p.MoneylineAway == nil && p.Spread == nil && p.Total == nil)
}

// Game is a tracked match. Games are never deleted.
type Game struct {
	ID           int64        `json:"id"`
	HomeTeam     string       `json:"home_team"`
	AwayTeam     string       `json:"away_team"`
	ExternalURL  string       `json:"external_url"`
	Status       GameStatus   `json:"status"`
	StartTime    *time.Time   `json:"start_time,omitempty"`
	LastPolledAt *time.Time   `json:"last_polled_at,omitempty"`
	Pregame      *PregameOdds `json:"pregame,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Name returns "Away @ Home" for logs and alert messages.
func (g Game) Name() string {
	home, away := g.HomeTeam, g.AwayTeam
	if home == "" {
		home = "Home"
	}
	if away == "" {
		away = "Away"
	}
	return away + " @ " + home
}

// DiscoveredGame is one row returned by a game list collector.
type DiscoveredGame struct {
	HomeTeam    string
	AwayTeam    string
	ExternalURL string
	Status      GameStatus
	StartTime   *time.Time
	Pregame     *PregameOdds
}
