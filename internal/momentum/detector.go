// Package momentum classifies swings in moneyline-implied win probability.
package momentum

import (
	"fmt"
	"math"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/odds"
	"github.com/Vodeneev/hoopsmomentum/internal/timeline"
)

// Detection policy. These are fixed, not learned from data.
const (
	// SwingThresholdPP is the percentage-point move between two consecutive
	// snapshots that counts as a dip (below -SwingThresholdPP) or a surge (above it).
	SwingThresholdPP = 8.0
	// StableThresholdPP bounds every home-side move inside the trailing window
	// for the game to count as stabilizing.
	StableThresholdPP = 2.0
	// StableWindow is the number of trailing snapshots checked for stabilization.
	StableWindow = 3
	// ReversalLine is the probability a side must cross upward to flag a reversal.
	ReversalLine = 0.5
)

type sideProbs struct {
	home, away *float64
}

func probsOf(s models.Snapshot) sideProbs {
	return sideProbs{
		home: odds.ImpliedProbabilityPtr(s.MoneylineHome),
		away: odds.ImpliedProbabilityPtr(s.MoneylineAway),
	}
}

func (p sideProbs) complete() bool { return p.home != nil && p.away != nil }

func (p sideProbs) of(side models.Side) *float64 {
	if side == models.SideHome {
		return p.home
	}
	return p.away
}

var sides = [...]models.Side{models.SideHome, models.SideAway}

// Detect scans consecutive snapshot pairs and returns events in timeline order.
// Pairs missing any of the four probabilities are skipped. Snapshots after the
// first final snapshot are ignored. The result depends only on tl.
func Detect(tl timeline.Timeline) []models.Event {
	tl = tl.UntilFinal()
	if len(tl) < 2 {
		return nil
	}

	var events []models.Event
	for i := 1; i < len(tl); i++ {
		prev, curr := probsOf(tl[i-1]), probsOf(tl[i])
		if !prev.complete() || !curr.complete() {
			continue
		}
		ts := tl[i].Timestamp

		var swings [2]float64
		for j, side := range sides {
			swings[j] = *odds.SwingPP(prev.of(side), curr.of(side))
		}

		for j, side := range sides {
			if swings[j] < -SwingThresholdPP {
				mag := math.Abs(swings[j])
				events = append(events, models.Event{
					Timestamp: ts,
					Kind:      models.EventFavoriteDip,
					Side:      side,
					Magnitude: mag,
					Detail:    fmt.Sprintf("%s prob dropped %.2fpp to %s", side.Label(), mag, odds.FormatPercent(*curr.of(side))),
				})
			}
		}
		for j, side := range sides {
			if swings[j] > SwingThresholdPP {
				events = append(events, models.Event{
					Timestamp: ts,
					Kind:      models.EventUnderdogSurge,
					Side:      side,
					Magnitude: swings[j],
					Detail:    fmt.Sprintf("%s prob surged %.2fpp to %s", side.Label(), swings[j], odds.FormatPercent(*curr.of(side))),
				})
			}
		}
		for j, side := range sides {
			p, c := *prev.of(side), *curr.of(side)
			if p <= ReversalLine && c > ReversalLine {
				events = append(events, models.Event{
					Timestamp: ts,
					Kind:      models.EventReversal,
					Side:      side,
					Magnitude: math.Abs(swings[j]),
					Detail:    fmt.Sprintf("%s crossed 50%% to %s", side.Label(), odds.FormatPercent(c)),
				})
			}
		}
	}

	if ev, ok := stabilizing(tl); ok {
		events = append(events, ev)
	}
	return events
}

// stabilizing checks the trailing window: every measurable home-side move must be
// under StableThresholdPP and at least one move must be measurable.
func stabilizing(tl timeline.Timeline) (models.Event, bool) {
	if len(tl) < StableWindow {
		return models.Event{}, false
	}
	window := tl.Tail(StableWindow)
	measured := 0
	for i := 1; i < len(window); i++ {
		swing := odds.SwingPP(
			odds.ImpliedProbabilityPtr(window[i-1].MoneylineHome),
			odds.ImpliedProbabilityPtr(window[i].MoneylineHome),
		)
		if swing == nil {
			continue
		}
		if math.Abs(*swing) >= StableThresholdPP {
			return models.Event{}, false
		}
		measured++
	}
	if measured == 0 {
		return models.Event{}, false
	}
	return models.Event{
		Timestamp: window[len(window)-1].Timestamp,
		Kind:      models.EventStabilizing,
		Side:      models.SideHome,
		Detail:    fmt.Sprintf("Stable odds, home swings < %.0fpp over last %d snapshots", StableThresholdPP, StableWindow),
	}, true
}
