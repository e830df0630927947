package discovery

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListParams(t *testing.T) {
	values := url.Values{
		"minRating":          {"75"},
		"genreIds":           {"12, 31,abc,,5"},
		"platformIds":        {"48"},
		"developerCompanyId": {"70"},
		"year":               {"2025"},
		"comingSoon":         {"1"},
		"sort":               {"rating"},
		"limit":              {"24"},
		"offset":             {"48"},
	}

	p, err := ParseListParams(values)
	require.NoError(t, err)

	c := p.Criteria()
	assert.Equal(t, 75.0, *c.MinRating)
	assert.Equal(t, []int64{12, 31, 5}, c.GenreIDs)
	assert.Equal(t, []int64{48}, c.PlatformIDs)
	assert.Equal(t, int64(70), *c.DeveloperCompanyID)
	assert.Equal(t, 2025, *c.ReleaseYear)
	assert.True(t, c.ComingSoonOnly)
	assert.Equal(t, SortRating, c.Sort)
	assert.Equal(t, 24, c.Limit)
	assert.Equal(t, 48, c.Offset)
}

func TestParseListParams_Empty(t *testing.T) {
	p, err := ParseListParams(url.Values{})
	require.NoError(t, err)

	assert.Equal(t, Criteria{}, p.Criteria())
	assert.True(t, p.Criteria().Sort.IsHot())
}

func TestParseListParams_ComingSoonRequiresOne(t *testing.T) {
	p, err := ParseListParams(url.Values{"comingSoon": {"true"}})
	require.NoError(t, err)
	assert.False(t, p.ComingSoon)
}

func TestParseListParams_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"rating above range", "minRating", "101"},
		{"negative rating", "minRating", "-1"},
		{"non-numeric rating", "minRating", "high"},
		{"zero limit", "limit", "0"},
		{"limit above range", "limit", "101"},
		{"negative offset", "offset", "-5"},
		{"unknown sort", "sort", "popular"},
		{"unknown type", "type", "trending"},
		{"non-numeric year", "year", "last"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseListParams(url.Values{tt.key: {tt.value}})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidCriteria)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			require.Len(t, verr.Fields, 1)
			assert.Equal(t, tt.key, verr.Fields[0].Field)
		})
	}
}

func TestListBody_Validate(t *testing.T) {
	limit := 200
	assert.NoError(t, ListBody{Limit: &limit, Sort: "newest"}.Validate())

	limit = 201
	err := ListBody{Limit: &limit}.Validate()
	assert.ErrorIs(t, err, ErrInvalidCriteria)

	rating := 100.5
	assert.Error(t, ListBody{MinRating: &rating}.Validate())
}

func TestListBody_Criteria(t *testing.T) {
	offset := 10
	b := ListBody{GenreIDs: []int64{4, 4, 5}, Offset: &offset}

	c := b.Criteria()
	assert.Equal(t, []int64{4, 4, 5}, c.GenreIDs)
	assert.Equal(t, 10, c.Offset)
	assert.Zero(t, c.Limit)
}
