package pinnacle

// Minimal Pinnacle guest API models (Arcadia v0.1).

type Matchup struct {
	ID        int64  `json:"id"`
	ParentID  *int64 `json:"parentId,omitempty"`
	StartTime string `json:"startTime"` // RFC3339
	Type      string `json:"type"`      // "matchup" for the main game line
	IsLive    bool   `json:"isLive"`

	League struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"league"`

	Participants []Participant `json:"participants"`
}

type Participant struct {
	Alignment string `json:"alignment"` // "home" | "away"
	Name      string `json:"name"`
}

// Team returns the participant name for an alignment.
func (m Matchup) Team(alignment string) string {
	for _, p := range m.Participants {
		if p.Alignment == alignment {
			return p.Name
		}
	}
	return ""
}

type Market struct {
	MatchupID   int64   `json:"matchupId"`
	Period      int     `json:"period"` // 0=full game
	Type        string  `json:"type"`   // moneyline | spread | total | team_total
	Key         string  `json:"key"`
	IsAlternate bool    `json:"isAlternate"`
	Status      string  `json:"status"`
	Prices      []Price `json:"prices"`
}

type Price struct {
	Designation string   `json:"designation"` // home/away OR over/under
	Points      *float64 `json:"points,omitempty"`
	Price       int      `json:"price"` // American odds
}
