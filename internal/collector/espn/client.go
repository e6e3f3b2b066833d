// Package espn reads live scores and periods from the public ESPN NBA scoreboard.
package espn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Vodeneev/hoopsmomentum/internal/collector"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/config"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
	"github.com/Vodeneev/hoopsmomentum/internal/timeline"
)

const defaultBaseURL = "https://site.api.espn.com/apis/site/v2/sports/basketball/nba"

// The scoreboard covers every game, so one fetch serves all polls of a cycle.
const scoreboardTTL = 15 * time.Second

var _ collector.LivePoller = (*Client)(nil)

type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time

	mu        sync.Mutex
	cached    []Event
	fetchedAt time.Time
}

func NewClient(cfg config.ESPNConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 2),
		now:        time.Now,
	}
}

func (c *Client) Name() string { return "espn" }

// Event is one scoreboard game flattened to what the poller needs.
type Event struct {
	ID        string
	HomeTeam  string
	AwayTeam  string
	HomeScore *int
	AwayScore *int
	Period    int
	Clock     string
	State     string // pre | in | post
	Completed bool
}

type scoreboard struct {
	Events []struct {
		ID           string `json:"id"`
		Competitions []struct {
			Competitors []struct {
				HomeAway string `json:"homeAway"`
				Score    string `json:"score"`
				Team     struct {
					DisplayName string `json:"displayName"`
				} `json:"team"`
			} `json:"competitors"`
			Status status `json:"status"`
		} `json:"competitions"`
		Status status `json:"status"`
	} `json:"events"`
}

type status struct {
	Period       int    `json:"period"`
	DisplayClock string `json:"displayClock"`
	Type         struct {
		State     string `json:"state"`
		Completed bool   `json:"completed"`
	} `json:"type"`
}

// Scoreboard returns today's games, served from a short-lived cache.
func (c *Client) Scoreboard(ctx context.Context) ([]Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached != nil && c.now().Sub(c.fetchedAt) < scoreboardTTL {
		return c.cached, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/scoreboard", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("espn scoreboard: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("espn scoreboard returned %d", resp.StatusCode)
	}
	events, err := parseScoreboard(body)
	if err != nil {
		return nil, err
	}
	c.cached, c.fetchedAt = events, c.now()
	return events, nil
}

func parseScoreboard(body []byte) ([]Event, error) {
	var sb scoreboard
	if err := json.Unmarshal(body, &sb); err != nil {
		return nil, fmt.Errorf("decode scoreboard: %w", err)
	}
	events := make([]Event, 0, len(sb.Events))
	for _, ev := range sb.Events {
		if len(ev.Competitions) == 0 {
			continue
		}
		comp := ev.Competitions[0]
		if len(comp.Competitors) < 2 {
			continue
		}
		st := comp.Status
		if st.Type.State == "" {
			st = ev.Status
		}
		out := Event{
			ID:        ev.ID,
			Period:    st.Period,
			Clock:     st.DisplayClock,
			State:     st.Type.State,
			Completed: st.Type.Completed,
		}
		for _, cp := range comp.Competitors {
			score := parseScore(cp.Score)
			if cp.HomeAway == "home" {
				out.HomeTeam, out.HomeScore = cp.Team.DisplayName, score
			} else {
				out.AwayTeam, out.AwayScore = cp.Team.DisplayName, score
			}
		}
		events = append(events, out)
	}
	return events, nil
}

func parseScore(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &n
}

// PollGame reports score and period for a game that has started. Games not yet
// tipped off or missing from the scoreboard yield nil.
func (c *Client) PollGame(ctx context.Context, game models.Game) (*collector.PollResult, error) {
	events, err := c.Scoreboard(ctx)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		if !models.SameTeam(ev.HomeTeam, game.HomeTeam) || !models.SameTeam(ev.AwayTeam, game.AwayTeam) {
			continue
		}
		if ev.State == "pre" {
			return nil, nil
		}
		rec := timeline.LiveOddsRecord{
			Source:     models.SourceESPN,
			Timestamp:  c.now(),
			GameClock:  ev.Clock,
			TeamAScore: ev.HomeScore,
			TeamBScore: ev.AwayScore,
			Final:      ev.Completed || ev.State == "post",
		}
		if ev.Period > 0 {
			p := ev.Period
			rec.Quarter = &p
		}
		return &collector.PollResult{
			HomeTeam: ev.HomeTeam,
			AwayTeam: ev.AwayTeam,
			Live:     []timeline.LiveOddsRecord{rec},
		}, nil
	}
	return nil, nil
}
