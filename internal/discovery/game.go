package discovery

import "encoding/json"

// MainGameCategory is the catalog category of a base game, as opposed to
// DLC, expansions, bundles, remasters or ports.
const MainGameCategory = 0

// Game is the typed projection of a catalog game record. Only the fields
// ranking needs are decoded; the full record is kept verbatim and written
// back unchanged when the game is encoded.
type Game struct {
	ID               int64
	Name             string
	TotalRating      *float64 // 0..100, nil when not yet aggregated
	TotalRatingCount *float64
	Category         *int
	FirstReleaseDate *int64

	raw map[string]json.RawMessage
}

type gameFields struct {
	ID               int64    `json:"id"`
	Name             string   `json:"name,omitempty"`
	TotalRating      *float64 `json:"total_rating,omitempty"`
	TotalRatingCount *float64 `json:"total_rating_count,omitempty"`
	Category         *int     `json:"category,omitempty"`
	FirstReleaseDate *int64   `json:"first_release_date,omitempty"`
}

// UnmarshalJSON decodes the typed fields and retains the whole record.
func (g *Game) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var f gameFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}

	*g = Game{
		ID:               f.ID,
		Name:             f.Name,
		TotalRating:      f.TotalRating,
		TotalRatingCount: f.TotalRatingCount,
		Category:         f.Category,
		FirstReleaseDate: f.FirstReleaseDate,
		raw:              raw,
	}
	return nil
}

// MarshalJSON writes the raw catalog record when there is one, otherwise the
// typed fields.
func (g Game) MarshalJSON() ([]byte, error) {
	if g.raw != nil {
		return json.Marshal(g.raw)
	}
	return json.Marshal(gameFields{
		ID:               g.ID,
		Name:             g.Name,
		TotalRating:      g.TotalRating,
		TotalRatingCount: g.TotalRatingCount,
		Category:         g.Category,
		FirstReleaseDate: g.FirstReleaseDate,
	})
}

// IsMainGame reports whether the record is a base game. A record without a
// category is not treated as one.
func (g Game) IsMainGame() bool {
	return g.Category != nil && *g.Category == MainGameCategory
}

// Hotness returns the game's popularity score.
func (g Game) Hotness() float64 {
	return Hotness(g.TotalRating, g.TotalRatingCount)
}

// Field returns a raw field of the catalog record.
func (g Game) Field(name string) (json.RawMessage, bool) {
	v, ok := g.raw[name]
	return v, ok
}
