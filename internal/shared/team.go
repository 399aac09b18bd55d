package shared

// TeamCount is the size of the round-robin group.
const TeamCount = 6

// Points awarded per result. A tie gives both sides TiePoints and no win or loss.
const (
	WinPoints = 2
	TiePoints = 1
)

// Team is one pair of players in the tournament together with the statistics
// folded in from recorded results.
type Team struct {
	ID      int       `json:"id"`             // Stable external identifier
	Name    string    `json:"name"`           // Unique, used as join key for results
	Players [2]string `json:"players"`        // The two partners
	Logo    string    `json:"logo,omitempty"` // Optional image path
	Wins    int       `json:"wins"`
	Losses  int       `json:"losses"`
	Points  int       `json:"points"`
}

// Played returns the number of decisive results the team has recorded.
// Ties are not counted.
func (t *Team) Played() int {
	return t.Wins + t.Losses
}

// ResetStats zeroes wins, losses and points.
func (t *Team) ResetStats() {
	t.Wins = 0
	t.Losses = 0
	t.Points = 0
}

// DefaultTeams returns the placeholder roster used when no snapshot exists.
func DefaultTeams() []Team {
	names := DefaultTeamNames()
	teams := make([]Team, len(names))
	for i, name := range names {
		teams[i] = Team{ID: i + 1, Name: name}
	}
	return teams
}

// DefaultTeamNames lists the placeholder team names in roster order.
func DefaultTeamNames() [TeamCount]string {
	return [TeamCount]string{
		"Team Aces",
		"Team Spades",
		"Team Hearts",
		"Team Diamonds",
		"Team Clubs",
		"Team Jokers",
	}
}
