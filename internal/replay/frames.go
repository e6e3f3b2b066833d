package replay

import (
	"time"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/odds"
	"github.com/Vodeneev/hoopsmomentum/internal/timeline"
)

// Frame is one step of a replayed game.
type Frame struct {
	Timestamp time.Time    `json:"timestamp"`
	Stage     models.Stage `json:"stage"`
	ScoreHome *int         `json:"score_home"`
	ScoreAway *int         `json:"score_away"`
	ScoreDiff *int         `json:"score_diff"`
	HomeProb  *float64     `json:"prob_home"`
	AwayProb  *float64     `json:"prob_away"`
	Spread    *float64     `json:"spread"`
	Source    string       `json:"source,omitempty"`
}

// Frames turns a merged timeline into playback frames. Score difference is home
// minus away and stays nil unless both scores are known.
func Frames(tl timeline.Timeline) []Frame {
	frames := make([]Frame, 0, len(tl))
	for _, s := range tl {
		f := Frame{
			Timestamp: s.Timestamp,
			Stage:     s.Stage,
			ScoreHome: s.ScoreHome,
			ScoreAway: s.ScoreAway,
			HomeProb:  odds.ImpliedProbabilityPtr(s.MoneylineHome),
			AwayProb:  odds.ImpliedProbabilityPtr(s.MoneylineAway),
			Spread:    s.Spread,
			Source:    s.Source,
		}
		if s.HasScore() {
			d := *s.ScoreHome - *s.ScoreAway
			f.ScoreDiff = &d
		}
		frames = append(frames, f)
	}
	return frames
}
