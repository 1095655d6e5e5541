package news

import (
	"cmp"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/samber/lo"
)

const (
	// preferenceBonus is added to the rank of articles in a preferred category.
	preferenceBonus = 1.0
	// jitterSpan is the width of the uniform noise added to every rank.
	// It must stay below preferenceBonus so preferred articles always lead.
	jitterSpan = 0.3
)

// personalize orders articles so that the preferred categories come first.
// Each article is ranked once with a bonus for a preferred category plus
// uniform jitter in [-jitterSpan/2, jitterSpan/2), then stable-sorted by rank.
// The order inside each group depends only on rnd.
func personalize(articles []Article, categories []string, rnd *rand.Rand) []Article {
	preferred := categorySet(categories)

	type ranked struct {
		article Article
		rank    float64
	}
	rs := lo.Map(articles, func(a Article, _ int) ranked {
		r := rnd.Float64()*jitterSpan - jitterSpan/2
		if preferred[strings.ToLower(a.Category)] {
			r += preferenceBonus
		}
		return ranked{article: a, rank: r}
	})
	slices.SortStableFunc(rs, func(a, b ranked) int {
		return cmp.Compare(b.rank, a.rank)
	})
	return lo.Map(rs, func(r ranked, _ int) Article { return r.article })
}

// keepCategories returns the articles whose category is in categories.
func keepCategories(articles []Article, categories []string) []Article {
	preferred := categorySet(categories)
	return lo.Filter(articles, func(a Article, _ int) bool {
		return preferred[strings.ToLower(a.Category)]
	})
}

func categorySet(categories []string) map[string]bool {
	set := make(map[string]bool, len(categories))
	for _, c := range categories {
		set[strings.ToLower(c)] = true
	}
	return set
}
