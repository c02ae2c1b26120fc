package catalog

// GameDTO is a catalog record as served by the backend. The backend has used
// both name/genre and title/genres spellings; either is accepted.
type GameDTO struct {
	ID       int64       `json:"id"`
	Name     string      `json:"name,omitempty"`
	Title    string      `json:"title,omitempty"`
	Genre    []string    `json:"genre,omitempty"`
	Genres   []string    `json:"genres,omitempty"`
	ImageURL string      `json:"imageUrl"`
	Reviews  []ReviewDTO `json:"reviews"`
}

type ReviewDTO struct {
	Text     string   `json:"text"`
	Positive bool     `json:"positive"`
	Hours    *float64 `json:"hours,omitempty"`
}

type batchRequest struct {
	Limit       int     `json:"limit"`
	ExcludedIDs []int64 `json:"excludedIds"`
}
