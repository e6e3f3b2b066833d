package pinnacle

import (
	"context"
	"time"

	"github.com/Vodeneev/hoopsmomentum/internal/collector"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/odds"
	"github.com/Vodeneev/hoopsmomentum/internal/timeline"
)

var _ collector.LivePoller = (*Poller)(nil)

// Poller matches a tracked game to its live Pinnacle matchup and reads the
// full-game moneyline, spread and total.
type Poller struct {
	client *Client
	now    func() time.Time
}

func NewPoller(client *Client) *Poller {
	return &Poller{client: client, now: time.Now}
}

func (p *Poller) Name() string { return models.SourcePinnacle }

// PollGame returns nil when the game has no live matchup or no open full-game lines.
func (p *Poller) PollGame(ctx context.Context, game models.Game) (*collector.PollResult, error) {
	matchups, err := p.client.GetLeagueMatchups(ctx, p.client.leagueID)
	if err != nil {
		return nil, err
	}
	m, ok := FindMatchup(matchups, game.HomeTeam, game.AwayTeam)
	if !ok {
		return nil, nil
	}
	markets, err := p.client.GetLeagueStraightMarkets(ctx, p.client.leagueID)
	if err != nil {
		return nil, err
	}
	rec, ok := BuildRecord(m.ID, markets, p.now())
	if !ok {
		return nil, nil
	}
	return &collector.PollResult{
		HomeTeam: m.Team("home"),
		AwayTeam: m.Team("away"),
		Live:     []timeline.LiveOddsRecord{rec},
	}, nil
}

// FindMatchup picks the live main-line matchup whose teams match the game.
func FindMatchup(matchups []Matchup, home, away string) (Matchup, bool) {
	for _, m := range matchups {
		if !m.IsLive || m.ParentID != nil || (m.Type != "" && m.Type != "matchup") {
			continue
		}
		if models.SameTeam(m.Team("home"), home) && models.SameTeam(m.Team("away"), away) {
			return m, true
		}
	}
	return Matchup{}, false
}

// BuildRecord converts the open full-game markets of one matchup into a live
// record. It reports false when no moneyline, spread or total is available.
func BuildRecord(matchupID int64, markets []Market, ts time.Time) (timeline.LiveOddsRecord, bool) {
	rec := timeline.LiveOddsRecord{Timestamp: ts}
	found := false
	for _, m := range markets {
		if m.MatchupID != matchupID || m.Period != 0 || m.IsAlternate || (m.Status != "" && m.Status != "open") {
			continue
		}
		switch m.Type {
		case "moneyline":
			for _, pr := range m.Prices {
				d, ok := odds.AmericanToDecimal(pr.Price)
				if !ok {
					continue
				}
				switch pr.Designation {
				case "home":
					rec.TeamAML = &d
					found = true
				case "away":
					rec.TeamBML = &d
					found = true
				}
			}
		case "spread":
			for _, pr := range m.Prices {
				if pr.Designation == "home" && pr.Points != nil {
					v := *pr.Points
					rec.SpreadLine = &v
					found = true
				}
			}
		case "total":
			for _, pr := range m.Prices {
				if pr.Designation == "over" && pr.Points != nil {
					v := *pr.Points
					rec.TotalLine = &v
					found = true
				}
			}
		}
	}
	return rec, found
}
