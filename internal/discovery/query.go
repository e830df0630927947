package discovery

import (
	"time"

	"github.com/backlogd/backlogd/internal/apicalypse"
)

const (
	DefaultLimit  = 48
	MaxFetch      = 200
	HotMultiplier = 4
)

// Catalog field names used by discovery queries.
const (
	fieldRating       = "total_rating"
	fieldRatingCount  = "total_rating_count"
	fieldReleaseDate  = "first_release_date"
	fieldGenres       = "genres"
	fieldPlatforms    = "platforms"
	fieldCompany      = "involved_companies.company"
	fieldDeveloper    = "involved_companies.developer"
	fieldCategory     = "category"
	fieldVersionOf    = "version_parent"
	fieldPlatformKind = "category"
)

// ListingFields is the projection requested for discovery listings.
var ListingFields = []string{
	"id", "name", "summary", fieldCategory, fieldReleaseDate, fieldRating, fieldRatingCount,
	"genres.id", "genres.name",
	"platforms.id", "platforms.name", "platforms.abbreviation",
	"involved_companies.company.id", "involved_companies.company.name", "involved_companies.developer",
	"cover.image_id",
}

// Query is a rendered catalog query plus the paging it implies.
type Query struct {
	Text       string
	FetchLimit int  // limit sent to the catalog
	Offset     int  // offset sent to the catalog, never inflated
	PageSize   int  // records the caller finally receives
	Rerank     bool // results must go through Rank before truncation
}

// Limits tunes page sizing for BuildQuery.
type Limits struct {
	DefaultLimit  int
	MaxFetch      int
	HotMultiplier int
}

// DefaultLimits returns the standard page sizing.
func DefaultLimits() Limits {
	return Limits{
		DefaultLimit:  DefaultLimit,
		MaxFetch:      MaxFetch,
		HotMultiplier: HotMultiplier,
	}
}

// BuildQuery translates c into a catalog query using DefaultLimits.
// now anchors the coming-soon filter.
func BuildQuery(c Criteria, now time.Time) Query {
	return DefaultLimits().Build(c, now)
}

// Build translates c into a catalog query. It never fails.
//
// Hot sorting cannot be expressed by the catalog, so the query asks for the
// most-reviewed games and over-fetches HotMultiplier pages (capped at
// MaxFetch) for Rank to re-order. Only the limit is inflated; the offset is
// passed through as given, so hot pages past the first re-rank a shifted
// window and may overlap or skip records.
func (l Limits) Build(c Criteria, now time.Time) Query {
	b := apicalypse.New(ListingFields...).
		Where(apicalypse.NotNull(fieldRating), apicalypse.NotNull(fieldRatingCount))

	if c.MinRating != nil {
		b = b.Where(apicalypse.Gte(fieldRating, *c.MinRating))
	}
	if ids := uniqueIDs(c.GenreIDs); len(ids) > 0 {
		b = b.Where(apicalypse.In(fieldGenres, ids...))
	}
	if ids := uniqueIDs(c.PlatformIDs); len(ids) > 0 {
		b = b.Where(apicalypse.In(fieldPlatforms, ids...))
	}
	if c.DeveloperCompanyID != nil {
		b = b.Where(
			apicalypse.In(fieldCompany, *c.DeveloperCompanyID),
			apicalypse.Eq(fieldDeveloper, true),
		)
	}
	if c.ReleaseYear != nil {
		from, to := YearRange(*c.ReleaseYear)
		b = b.Where(apicalypse.Gte(fieldReleaseDate, from), apicalypse.Lt(fieldReleaseDate, to))
	}
	if c.ComingSoonOnly {
		b = b.Where(apicalypse.Gt(fieldReleaseDate, now.Unix()))
	}

	pageSize := c.Limit
	if pageSize <= 0 {
		pageSize = l.DefaultLimit
	}
	fetch := pageSize
	offset := max(c.Offset, 0)

	mode, err := ParseSortMode(string(c.Sort))
	if err != nil {
		mode = SortHot
	}

	switch mode {
	case SortRating:
		b = b.Sort(fieldRating, apicalypse.Desc)
	case SortCount:
		b = b.Sort(fieldRatingCount, apicalypse.Desc)
	case SortNewest:
		b = b.Sort(fieldReleaseDate, apicalypse.Desc)
	case SortReleaseAsc:
		b = b.Sort(fieldReleaseDate, apicalypse.Asc)
	case SortHot:
		b = b.Sort(fieldRatingCount, apicalypse.Desc)
		fetch = min(l.MaxFetch, pageSize*l.HotMultiplier)
	}

	return Query{
		Text:       b.Limit(fetch).Offset(offset).Build(),
		FetchLimit: fetch,
		Offset:     offset,
		PageSize:   pageSize,
		Rerank:     mode.IsHot(),
	}
}

// YearRange returns the UTC half-open interval [Jan 1 year, Jan 1 year+1)
// in epoch seconds.
func YearRange(year int) (from, to int64) {
	from = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()
	to = time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()
	return from, to
}

func uniqueIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
