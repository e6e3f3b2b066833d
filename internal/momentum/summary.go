package momentum

import (
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/odds"
	"github.com/Vodeneev/hoopsmomentum/internal/timeline"
)

// Summary describes the current market view of a game.
type Summary struct {
	Favorite models.Side      `json:"favorite,omitempty"`
	HomeProb *float64         `json:"current_prob_home"`
	AwayProb *float64         `json:"current_prob_away"`
	Latest   *models.Snapshot `json:"latest,omitempty"`
}

// Summarize reports implied probabilities from the latest snapshot. The favorite is
// left empty when the home probability is unknown.
func Summarize(tl timeline.Timeline) Summary {
	last, ok := tl.Last()
	if !ok {
		return Summary{}
	}
	s := Summary{
		HomeProb: odds.ImpliedProbabilityPtr(last.MoneylineHome),
		AwayProb: odds.ImpliedProbabilityPtr(last.MoneylineAway),
		Latest:   &last,
	}
	switch {
	case s.HomeProb == nil:
	case *s.HomeProb > ReversalLine:
		s.Favorite = models.SideHome
	default:
		s.Favorite = models.SideAway
	}
	return s
}
