package validation

import (
	"regexp"
	"strings"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
)

var (
	controlChars = regexp.MustCompile(`[\x00-\x1F\x7F]`)
	spaces       = regexp.MustCompile(`\s+`)
)

const maxTeamNameLen = 100

// SanitizeDiscovered cleans a scraped game list row in place: team names lose
// control characters and repeated whitespace, the URL is trimmed, and pregame
// prices that are not valid decimal odds are dropped.
func SanitizeDiscovered(d *models.DiscoveredGame) {
	if d == nil {
		return
	}
	d.HomeTeam = sanitizeTeamName(d.HomeTeam)
	d.AwayTeam = sanitizeTeamName(d.AwayTeam)
	d.ExternalURL = strings.TrimSpace(d.ExternalURL)
	if !d.Status.Valid() {
		d.Status = models.StatusScheduled
	}
	if p := d.Pregame; p != nil {
		p.MoneylineHome = validPrice(p.MoneylineHome)
		p.MoneylineAway = validPrice(p.MoneylineAway)
		if p.Empty() {
			d.Pregame = nil
		}
	}
}

func sanitizeTeamName(name string) string {
	sanitized := controlChars.ReplaceAllString(name, "")
	sanitized = strings.TrimSpace(spaces.ReplaceAllString(sanitized, " "))
	if r := []rune(sanitized); len(r) > maxTeamNameLen {
		sanitized = string(r[:maxTeamNameLen])
	}
	return sanitized
}

func validPrice(p *float64) *float64 {
	if p == nil || *p <= 1 {
		return nil
	}
	return p
}
