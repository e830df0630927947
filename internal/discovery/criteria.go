package discovery

import "fmt"

// SortMode selects how a discovery listing is ordered.
type SortMode string

const (
	SortHot        SortMode = "hot"
	SortRating     SortMode = "rating"
	SortCount      SortMode = "count"
	SortNewest     SortMode = "newest"
	SortReleaseAsc SortMode = "release_asc"
)

// ParseSortMode validates s. The empty string maps to SortHot.
func ParseSortMode(s string) (SortMode, error) {
	switch m := SortMode(s); m {
	case "":
		return SortHot, nil
	case SortHot, SortRating, SortCount, SortNewest, SortReleaseAsc:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown sort mode %q", ErrInvalidCriteria, s)
	}
}

// IsHot reports whether results need client-side hotness ranking.
func (m SortMode) IsHot() bool {
	return m == "" || m == SortHot
}

// Criteria are the user-facing filters of a discovery listing. Every field
// is optional; the zero value lists all scoreable games.
//
// Range checks belong to the caller: BuildQuery trusts its input.
type Criteria struct {
	MinRating          *float64 // 0..100
	GenreIDs           []int64
	PlatformIDs        []int64
	DeveloperCompanyID *int64
	ReleaseYear        *int
	ComingSoonOnly     bool
	Sort               SortMode
	Limit              int // page size the caller receives; 0 means default
	Offset             int
}
