package library

import "time"

// Game is a catalog game mirrored into the local database.
type Game struct {
	ID        int64     `json:"id"`
	IGDBID    int64     `json:"igdbId"`
	Name      string    `json:"name"`
	Summary   string    `json:"summary,omitempty"`
	CoverID   string    `json:"coverId,omitempty"`
	CoverURL  string    `json:"coverUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ListOptions contains options for listing mirrored games.
type ListOptions struct {
	Page     int
	PageSize int
}

// ListResponse contains paginated games.
type ListResponse struct {
	Items      []*Game `json:"items"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
	TotalCount int64   `json:"totalCount"`
	TotalPages int     `json:"totalPages"`
}
