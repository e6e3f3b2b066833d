package oddsportal

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
	"github.com/Vodeneev/hoopsmomentum/internal/pkg/odds"
	"github.com/Vodeneev/hoopsmomentum/internal/timeline"
)

// ListRow is one event row of the league page, as extracted in the browser.
type ListRow struct {
	Participants string `json:"participants"`
	Href         string `json:"href"`
	Text         string `json:"text"`
}

// Page is the part of a game page the parser needs, as extracted in the browser.
type Page struct {
	Title       string   `json:"title"`
	H1          string   `json:"h1"`
	Text        string   `json:"text"`
	EventHeader string   `json:"eventHeader"`
	LDJSON      []string `json:"ldJson"`
}

var (
	edgeDigitsRe = regexp.MustCompile(`^\d+\s*|\s*\d+$`)
	rowFinalRe   = regexp.MustCompile(`\b(final|ft|finished)\b`)
	rowLiveRe    = regexp.MustCompile(`\blive\b|\bq\d\b`)
	clockRe      = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	decimalRe    = regexp.MustCompile(`\b(\d{1,2}\.\d{2})\b`)

	titleRes = []*regexp.Regexp{
		regexp.MustCompile(`(.+?)\s*[-–]\s*(.+?)\s+Odds`),
		regexp.MustCompile(`(.+?)\s*[-–]\s*(.+?)\s+Predictions`),
		regexp.MustCompile(`(.+?)\s*[-–]\s*(.+?)\s+Basketball`),
	}
	h1Re = regexp.MustCompile(`(.+?)\s+vs\s+(.+?)\s*-`)

	finalTextRe = regexp.MustCompile(`(?i)final result|\bfinal\b`)
	overtimeRe  = regexp.MustCompile(`(?i)\b(?:OT|Overtime)\s*(\d?)\b`)
	quarterRes  = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}(\d)(?:st|nd|rd|th)?\s*Quarter`),
		regexp.MustCompile(`(?i)(?:^|\D)(\d{1,2})(?:st|nd|rd|th)?\s*Quarter`),
		regexp.MustCompile(`(?i)\b(\d)Q\b`),
		regexp.MustCompile(`(?i)\bQ(\d)\b`),
		regexp.MustCompile(`(?i)\bQuarter\s+(\d)\b`),
	}
	americanPairRe = regexp.MustCompile(`([+-]\d{2,3})\s*([+-]\d{2,3})`)
)

// ParseListRow turns a league page row into a discovered game. Rows list the away
// team first. Rows without two teams or a game link are skipped.
func ParseListRow(row ListRow, baseURL string, now time.Time) (models.DiscoveredGame, bool) {
	away, home, ok := splitTeams(row.Participants)
	if !ok || row.Href == "" {
		return models.DiscoveredGame{}, false
	}
	d := models.DiscoveredGame{
		HomeTeam:    home,
		AwayTeam:    away,
		ExternalURL: absoluteURL(baseURL, row.Href),
		Status:      rowStatus(row.Text),
	}
	if m := clockRe.FindStringSubmatch(row.Text); m != nil {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		if ts, ok := resolveClock(h, min, now); ok {
			d.StartTime = &ts
		}
	}
	if d.Status == models.StatusScheduled {
		if decimals := decimalRe.FindAllString(row.Text, -1); len(decimals) >= 2 {
			a, _ := strconv.ParseFloat(decimals[0], 64)
			h, _ := strconv.ParseFloat(decimals[1], 64)
			if a > 1 && h > 1 {
				d.Pregame = &models.PregameOdds{MoneylineAway: &a, MoneylineHome: &h}
			}
		}
	}
	return d, true
}

func splitTeams(s string) (away, home string, ok bool) {
	s = strings.NewReplacer("–", "|", " - ", "|").Replace(s)
	parts := strings.Split(s, "|")
	if len(parts) < 2 {
		return "", "", false
	}
	away = strings.TrimSpace(edgeDigitsRe.ReplaceAllString(strings.TrimSpace(parts[0]), ""))
	home = strings.TrimSpace(edgeDigitsRe.ReplaceAllString(strings.TrimSpace(parts[1]), ""))
	return away, home, away != "" && home != ""
}

func rowStatus(text string) models.GameStatus {
	t := strings.ToLower(text)
	switch {
	case rowFinalRe.MatchString(t):
		return models.StatusFinal
	case rowLiveRe.MatchString(t):
		return models.StatusLive
	default:
		return models.StatusScheduled
	}
}

// resolveClock places an HH:MM list time on the calendar: today (UTC) unless that
// is more than 12 hours ago, in which case tomorrow.
func resolveClock(h, m int, now time.Time) (time.Time, bool) {
	if h > 23 || m > 59 {
		return time.Time{}, false
	}
	now = now.UTC()
	ts := time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, time.UTC)
	if ts.Before(now.Add(-12 * time.Hour)) {
		ts = ts.Add(24 * time.Hour)
	}
	return ts, true
}

func absoluteURL(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(href, "/")
}

// EventHeader is the JSON embedded in the react-event-header element.
type EventHeader struct {
	EventData struct {
		Home string `json:"home"`
		Away string `json:"away"`
	} `json:"eventData"`
	EventBody struct {
		StartDate int64 `json:"startDate"`
	} `json:"eventBody"`
}

// ParseEventHeader decodes the react-event-header payload.
func ParseEventHeader(raw string) (*EventHeader, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty event header")
	}
	var h EventHeader
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		return nil, fmt.Errorf("failed to decode event header: %w", err)
	}
	return &h, nil
}

// EventStatus returns the schema.org eventStatus from the page's JSON-LD blocks, if any.
func EventStatus(blocks []string) string {
	for _, b := range blocks {
		var obj map[string]any
		if err := json.Unmarshal([]byte(b), &obj); err != nil {
			continue
		}
		switch st := obj["eventStatus"].(type) {
		case string:
			return st
		case map[string]any:
			if id, ok := st["@id"].(string); ok {
				return id
			}
			if name, ok := st["name"].(string); ok {
				return name
			}
		}
	}
	return ""
}

// Teams returns the away and home team names of a game page. The event header
// wins over the title, the title over the H1.
func Teams(p Page) (away, home string) {
	if h, err := ParseEventHeader(p.EventHeader); err == nil && h.EventData.Home != "" && h.EventData.Away != "" {
		return h.EventData.Away, h.EventData.Home
	}
	for _, re := range titleRes {
		if m := re.FindStringSubmatch(p.Title); m != nil {
			return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		}
	}
	if m := h1Re.FindStringSubmatch(p.H1); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	return "", ""
}

// Score finds "Away 87 - 91 Home" in the page text, anchored on the team names so
// clock values are not mistaken for a score.
func Score(text, away, home string) (scoreAway, scoreHome *int) {
	if away == "" || home == "" {
		return nil, nil
	}
	re, err := regexp.Compile(regexp.QuoteMeta(away) + `\D*?(\d{1,3})\D+(\d{1,3})\D*?` + regexp.QuoteMeta(home))
	if err != nil {
		return nil, nil
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil, nil
	}
	a, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	return &a, &h
}

// Stage reads the game period from the page text. Unknown periods return "".
func Stage(text string) string {
	text = strings.ReplaceAll(text, "\u00a0", " ")
	if finalTextRe.MatchString(text) {
		return string(models.StageFinal)
	}
	for _, re := range quarterRes {
		if m := re.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				return string(models.QuarterStage(n))
			}
		}
	}
	if m := overtimeRe.FindStringSubmatch(text); m != nil {
		return "OT" + m[1]
	}
	return ""
}

// Moneylines picks the in-play American moneyline pair from the page text and
// returns decimal prices. Pairs must have one favorite and one underdog; the
// tightest pair wins. The pair follows the page's away-then-home order.
func Moneylines(text string) (away, home *float64) {
	type pair struct{ a, b int }
	var pairs []pair
	for _, m := range americanPairRe.FindAllStringSubmatch(text, -1) {
		a, errA := strconv.Atoi(m[1])
		b, errB := strconv.Atoi(m[2])
		if errA != nil || errB != nil || (a < 0) == (b < 0) {
			continue
		}
		pairs = append(pairs, pair{a, b})
	}
	if len(pairs) == 0 {
		return nil, nil
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return minAbs(pairs[i].a, pairs[i].b) < minAbs(pairs[j].a, pairs[j].b)
	})
	da, okA := odds.AmericanToDecimal(pairs[0].a)
	dh, okH := odds.AmericanToDecimal(pairs[0].b)
	if !okA || !okH {
		return nil, nil
	}
	return &da, &dh
}

func minAbs(a, b int) int {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	if a < b {
		return a
	}
	return b
}

// ParsePage builds a record from a game page captured at ts. It returns ok=false
// when the page shows a scheduled game with no score yet.
func ParsePage(p Page, ts time.Time) (rec timeline.QuarterRecord, away, home string, ok bool) {
	text := strings.ReplaceAll(p.Text, "\u00a0", " ")
	away, home = Teams(p)
	scoreAway, scoreHome := Score(text, away, home)
	if strings.Contains(EventStatus(p.LDJSON), "EventScheduled") && scoreAway == nil && scoreHome == nil {
		return timeline.QuarterRecord{}, away, home, false
	}
	mlAway, mlHome := Moneylines(text)
	rec = timeline.QuarterRecord{
		Timestamp: ts,
		Stage:     Stage(text),
		ScoreHome: scoreHome,
		ScoreAway: scoreAway,
		MLHome:    mlHome,
		MLAway:    mlAway,
	}
	return rec, away, home, true
}
