package models

import (
	"strings"
)

// teamAliases folds short or legacy names used by some sources onto one key.
var teamAliases = map[string]string{
	"la clippers":  "los angeles clippers",
	"la lakers":    "los angeles lakers",
	"ny knicks":    "new york knicks",
	"philadelphia": "philadelphia 76ers",
	"phi 76ers":    "philadelphia 76ers",
	"okc thunder":  "oklahoma city thunder",
	"gs warriors":  "golden state warriors",
}

// NormalizeTeamName builds a comparison key for a team name so that the same team
// reported by different sources ("LA Clippers", "Los Angeles  Clippers") compares equal.
func NormalizeTeamName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	s = strings.NewReplacer(".", "", "-", " ", "–", " ", "/", " ", "|", " ").Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	if alias, ok := teamAliases[s]; ok {
		return alias
	}
	return s
}

// MatchupKey returns "away|home" built from normalized names, or "" if either is missing.
func MatchupKey(homeTeam, awayTeam string) string {
	home := NormalizeTeamName(homeTeam)
	away := NormalizeTeamName(awayTeam)
	if home == "" || away == "" {
		return ""
	}
	return away + "|" + home
}

// SameTeam reports whether two names refer to the same team. A name that is a
// suffix of the other ("Clippers" vs "Los Angeles Clippers") also matches.
func SameTeam(a, b string) bool {
	na, nb := NormalizeTeamName(a), NormalizeTeamName(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	return strings.HasSuffix(na, " "+nb) || strings.HasSuffix(nb, " "+na)
}
