package models

import "time"

// EventKind classifies a momentum event.
type EventKind string

const (
	EventUnderdogSurge EventKind = "underdog_surge"
	EventFavoriteDip   EventKind = "favorite_dip"
	EventReversal      EventKind = "reversal"
	EventStabilizing   EventKind = "stabilizing"
)

// Side is home or away.
type Side string

const (
	SideHome Side = "home"
	SideAway Side = "away"
)

// Label returns "Home" or "Away".
func (s Side) Label() string {
	if s == SideHome {
		return "Home"
	}
	return "Away"
}

// Event is a detected momentum shift. Events are derived and never stored by the detector.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      EventKind `json:"type"`
	Side      Side      `json:"side,omitempty"`
	Detail    string    `json:"detail"`
	// Magnitude is the percentage-point swing that triggered the event (0 for stabilizing).
	Magnitude float64 `json:"magnitude"`
}

// AlertRecord is evidence of a sent notification.
type AlertRecord struct {
	ID        int64     `json:"id,omitempty"`
	GameID    int64     `json:"game_id"`
	Kind      EventKind `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Channel   string    `json:"sent_to"`
}
