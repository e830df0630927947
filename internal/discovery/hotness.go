package discovery

import (
	"cmp"
	"math"
	"slices"
)

// Hotness scores popularity as rating * ln(1 + count). Absent values count
// as zero, so an unrated game and a rated game without reviews both score 0.
func Hotness(rating, count *float64) float64 {
	r, c := valueOrZero(rating), valueOrZero(count)
	if r <= 0 || c <= 0 {
		return 0
	}
	return r * math.Log1p(c)
}

func valueOrZero(v *float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return 0
	}
	return *v
}

type scoredGame struct {
	game  Game
	score float64
}

// Rank returns games ordered by hotness, highest first. On equal scores
// main games come before other categories; remaining ties keep input order.
// The input slice is not modified.
func Rank(games []Game) []Game {
	scored := make([]scoredGame, len(games))
	for i, g := range games {
		scored[i] = scoredGame{game: g, score: g.Hotness()}
	}

	slices.SortStableFunc(scored, func(a, b scoredGame) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(mainRank(a.game), mainRank(b.game))
	})

	ranked := make([]Game, len(scored))
	for i, s := range scored {
		ranked[i] = s.game
	}
	return ranked
}

func mainRank(g Game) int {
	if g.IsMainGame() {
		return 0
	}
	return 1
}

// Page returns games[offset:offset+limit], clamped to the slice bounds.
// A non-positive limit yields an empty page.
func Page(games []Game, offset, limit int) []Game {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || offset >= len(games) {
		return []Game{}
	}
	end := min(offset+limit, len(games))
	return slices.Clone(games[offset:end])
}

// TopK returns the first k games.
func TopK(games []Game, k int) []Game {
	return Page(games, 0, k)
}
