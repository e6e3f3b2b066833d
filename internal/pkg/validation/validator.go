// Package validation cleans and checks game list rows before they reach storage.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
)

var (
	ErrMissingURL  = errors.New("external url is required")
	ErrInvalidURL  = errors.New("external url must be absolute http(s)")
	ErrInvalidTeam = errors.New("invalid team name")
	ErrSameTeams   = errors.New("home and away teams are the same")
	ErrStartTime   = errors.New("start time out of range")
)

// Team names are letters, digits, spaces and a little punctuation ("76ers", "St. Louis").
var teamNamePattern = regexp.MustCompile(`^[\p{L}0-9 .'&()-]+$`)

// maxStartDrift bounds how far from now a listed start time may be.
const maxStartDrift = 14 * 24 * time.Hour

// ValidateDiscovered checks a sanitized row. Empty team names are allowed (the
// game page fills them in later) but present names must look like team names.
func ValidateDiscovered(d models.DiscoveredGame, now time.Time) error {
	if d.ExternalURL == "" {
		return ErrMissingURL
	}
	u, err := url.Parse(d.ExternalURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, d.ExternalURL)
	}

	for _, name := range []string{d.HomeTeam, d.AwayTeam} {
		if name != "" && !teamNamePattern.MatchString(name) {
			return fmt.Errorf("%w: %q", ErrInvalidTeam, name)
		}
	}
	if d.HomeTeam != "" && models.NormalizeTeamName(d.HomeTeam) == models.NormalizeTeamName(d.AwayTeam) {
		return fmt.Errorf("%w: %q", ErrSameTeams, d.HomeTeam)
	}

	if d.StartTime != nil {
		if diff := d.StartTime.Sub(now); diff > maxStartDrift || diff < -maxStartDrift {
			return fmt.Errorf("%w: %s", ErrStartTime, d.StartTime.Format(time.RFC3339))
		}
	}
	return nil
}
