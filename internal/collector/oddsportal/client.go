// Package oddsportal scrapes the league page and live game pages with a headless browser.
package oddsportal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/Vodeneev/hoopsmomentum/internal/collector"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/config"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
	"github.com/Vodeneev/hoopsmomentum/internal/timeline"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36"

const siteURL = "https://www.oddsportal.com"

const listRowsJS = `Array.from(document.querySelectorAll('.eventRow')).map(r => {
	const p = r.querySelector("[data-testid*='participant']");
	const a = r.querySelector("a[href*='/basketball/usa/nba/']");
	return {participants: p ? p.innerText : '', href: a ? a.getAttribute('href') : '', text: r.innerText};
})`

const inPlayTabJS = `(() => {
	const tab = Array.from(document.querySelectorAll("a[data-testid='sub-nav-inactive-tab']")).find(a => a.innerText.includes('In-Play'));
	if (tab) { tab.click(); return true; }
	return false;
})()`

const pageJS = `(() => {
	const h = document.getElementById('react-event-header');
	const h1 = document.querySelector('h1');
	return {
		title: document.title,
		h1: h1 ? h1.innerText : '',
		text: document.body ? document.body.innerText : '',
		eventHeader: h ? (h.getAttribute('data') || '') : '',
		ldJson: Array.from(document.querySelectorAll('script[type="application/ld+json"]')).map(s => s.textContent),
	};
})()`

// Client implements collector.GameLister and collector.LivePoller.
type Client struct {
	cfg config.OddsPortalConfig
	now func() time.Time
}

var (
	_ collector.GameLister = (*Client)(nil)
	_ collector.LivePoller = (*Client)(nil)
)

func NewClient(cfg config.OddsPortalConfig) *Client {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 20 * time.Second
	}
	return &Client{cfg: cfg, now: time.Now}
}

func (c *Client) Name() string { return models.SourceOddsPortal }

// browser starts a fresh Chrome for one page visit, bounded by the page timeout.
func (c *Client) browser(ctx context.Context) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !c.cfg.Headful),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(c.cfg.UserAgent),
	)

	timeoutCtx, cancelTimeout := context.WithTimeout(ctx, c.cfg.PageTimeout+c.cfg.SettleDelay*2)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(timeoutCtx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, v ...interface{}) {
		if os.Getenv("ODDSPORTAL_DEBUG") == "1" {
			slog.Debug(fmt.Sprintf("chromedp: "+format, v...))
		}
	}))
	return browserCtx, func() {
		cancelBrowser()
		cancelAlloc()
		cancelTimeout()
	}
}

// DiscoverGames reads the league page. Failures are logged and yield an empty roster.
func (c *Client) DiscoverGames(ctx context.Context) []models.DiscoveredGame {
	bctx, cancel := c.browser(ctx)
	defer cancel()

	var rows []ListRow
	err := chromedp.Run(bctx,
		chromedp.Navigate(c.cfg.ListURL),
		chromedp.Sleep(c.cfg.SettleDelay),
		chromedp.Evaluate(listRowsJS, &rows),
	)
	if err != nil {
		slog.Error("OddsPortal: failed to load game list", "url", c.cfg.ListURL, "error", err)
		return nil
	}

	now := c.now()
	games := make([]models.DiscoveredGame, 0, len(rows))
	for _, row := range rows {
		if g, ok := ParseListRow(row, siteURL, now); ok {
			games = append(games, g)
		}
	}
	slog.Info("OddsPortal: game list loaded", "rows", len(rows), "games", len(games))
	return games
}

// PollGame opens the game page, switches to in-play odds when offered and parses
// score, period and moneylines.
func (c *Client) PollGame(ctx context.Context, game models.Game) (*collector.PollResult, error) {
	if game.ExternalURL == "" {
		return nil, nil
	}
	bctx, cancel := c.browser(ctx)
	defer cancel()

	var clicked bool
	if err := chromedp.Run(bctx,
		chromedp.Navigate(game.ExternalURL),
		chromedp.Sleep(c.cfg.SettleDelay),
		chromedp.Evaluate(inPlayTabJS, &clicked),
	); err != nil {
		return nil, fmt.Errorf("oddsportal: load %s: %w", game.ExternalURL, err)
	}

	actions := []chromedp.Action{}
	if clicked {
		actions = append(actions, chromedp.Sleep(2*time.Second))
	}
	var page Page
	actions = append(actions, chromedp.Evaluate(pageJS, &page))
	if err := chromedp.Run(bctx, actions...); err != nil {
		return nil, fmt.Errorf("oddsportal: read %s: %w", game.ExternalURL, err)
	}

	rec, away, home, ok := ParsePage(page, c.now())
	if !ok {
		slog.Info("OddsPortal: game not started", "game_id", game.ID)
		return nil, nil
	}
	slog.Debug("OddsPortal: page parsed", "game_id", game.ID, "in_play_tab", clicked, "stage", rec.Stage)
	return &collector.PollResult{
		HomeTeam: home,
		AwayTeam: away,
		Quarter:  []timeline.QuarterRecord{rec},
	}, nil
}
