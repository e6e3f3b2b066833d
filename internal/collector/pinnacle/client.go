// Package pinnacle reads live NBA lines from the Pinnacle guest API.
package pinnacle

import (
	"compress/gzip"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/config"
)

const defaultBaseURL = "https://guest.api.arcadia.pinnacle.com"

type Client struct {
	baseURL    string
	apiKey     string
	deviceUUID string
	leagueID   int64
	httpClient *http.Client
}

func NewClient(cfg config.PinnacleConfig) *Client {
	deviceUUID := cfg.DeviceUUID
	if deviceUUID == "" {
		deviceUUID = os.Getenv("PINNACLE_DEVICE_UUID")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	}
	if os.Getenv("PINNACLE_INSECURE_TLS") == "1" {
		// Some networks intercept TLS and present invalid certs.
		transport.TLSClientConfig.InsecureSkipVerify = true
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		deviceUUID: deviceUUID,
		leagueID:   cfg.LeagueID,
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
	}
}

// GetLeagueMatchups lists the matchups of a league, live and upcoming.
func (c *Client) GetLeagueMatchups(ctx context.Context, leagueID int64) ([]Matchup, error) {
	var out []Matchup
	if err := c.getJSON(ctx, fmt.Sprintf("/0.1/leagues/%d/matchups", leagueID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetLeagueStraightMarkets lists moneyline, spread and total markets of a league.
func (c *Client) GetLeagueStraightMarkets(ctx context.Context, leagueID int64) ([]Market, error) {
	var out []Market
	if err := c.getJSON(ctx, fmt.Sprintf("/0.1/leagues/%d/markets/straight", leagueID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36")
	// Referer helps with the guest API's bot filtering; Origin triggers 401s.
	req.Header.Set("Referer", "https://www.pinnacle.com/")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if c.deviceUUID != "" {
		req.Header.Set("X-Device-UUID", c.deviceUUID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		slog.Warn("Pinnacle API error response", "status", resp.StatusCode, "path", path, "cf_ray", resp.Header.Get("Cf-Ray"))
		return fmt.Errorf("unexpected status %d for %s: %s", resp.StatusCode, url, string(b))
	}

	body, err := readBodyMaybeGzip(resp)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		preview := string(body)
		if len(preview) > 500 {
			preview = preview[:500] + "..."
		}
		if len(body) > 0 && (body[0] == '<' || strings.Contains(strings.ToLower(preview), "<html")) {
			return fmt.Errorf("unmarshal: received HTML instead of JSON: %s", preview)
		}
		return fmt.Errorf("unmarshal: %w (body preview: %s)", err, preview)
	}
	return nil
}

func readBodyMaybeGzip(resp *http.Response) ([]byte, error) {
	if resp.Header.Get("Content-Encoding") == "gzip" {
		r, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer r.Close()
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read gzip body: %w", err)
		}
		return b, nil
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return b, nil
}
