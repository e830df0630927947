package igdb

// Genre is a catalog genre.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Platform is a catalog platform.
type Platform struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation,omitempty"`
}

// Image references a catalog image by id.
type Image struct {
	ImageID string `json:"image_id"`
}

// GameRecord is the minimal game projection mirrored locally.
type GameRecord struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Summary string `json:"summary,omitempty"`
	Cover   *Image `json:"cover,omitempty"`
}

// CoverID returns the cover image id, or "".
func (g GameRecord) CoverID() string {
	if g.Cover == nil {
		return ""
	}
	return g.Cover.ImageID
}
