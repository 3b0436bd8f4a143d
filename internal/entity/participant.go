package entity

// Participant - a player as seen by the synchronisation layer.
type Participant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Mark  Mark   `json:"mark,omitempty"`
	Score int    `json:"score"`
	Alive bool   `json:"alive"`
}

const DefaultName = "Player"

// DisplayName - falls back to a generic name when the peer sent none.
func DisplayName(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
