// Package search filters and ranks the in-memory merchant collection. It works
// on the slices handed to it and never modifies them, so callers can pass the
// Directory's current state directly.
//
// Matching is a case-folded substring test over a merchant's name, category
// and menu item names. Ranking is deterministic: ties keep collection order.
package search

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/tbourn/go-merchant-directory/internal/domain"
)

// AllCategories is the category value that matches every merchant. The empty
// string and "semua" are accepted as well.
const AllCategories = "all"

// DefaultTopK is the size of a Top listing when k <= 0.
const DefaultTopK = 8

// Query selects merchants. Zero values match everything.
type Query struct {
	Text     string
	Category string
}

// anyCategory reports whether c selects every category.
func anyCategory(c string) bool {
	c = strings.TrimSpace(c)
	return c == "" || strings.EqualFold(c, AllCategories) || strings.EqualFold(c, "semua")
}

// Filter returns the merchants matching q in collection order.
func Filter(ms []domain.Merchant, q Query) []domain.Merchant {
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(q.Text))
	category := strings.TrimSpace(q.Category)
	allCats := anyCategory(category)

	out := make([]domain.Merchant, 0, len(ms))
	for _, m := range ms {
		if !allCats && m.Category != category {
			continue
		}
		if needle != "" && !strings.Contains(fold.String(haystack(m)), needle) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func haystack(m domain.Merchant) string {
	var b strings.Builder
	b.WriteString(m.Name)
	b.WriteByte(' ')
	b.WriteString(m.Category)
	for _, it := range m.Menu {
		b.WriteByte(' ')
		b.WriteString(it.Name)
	}
	return b.String()
}

// Categories lists the distinct non-empty categories of ms in first-seen
// order.
func Categories(ms []domain.Merchant) []string {
	seen := make(map[string]struct{}, len(ms))
	out := make([]string, 0)
	for _, m := range ms {
		c := strings.TrimSpace(m.Category)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Ranked is a merchant with the score it was ranked by.
type Ranked struct {
	Merchant domain.Merchant
	Score    float64
}

// Top returns up to k merchants with the highest score, best first. Merchants
// with equal scores keep their collection order.
func Top(ms []domain.Merchant, score func(domain.Merchant) float64, k int) []Ranked {
	if len(ms) == 0 {
		return nil
	}
	if k <= 0 {
		k = DefaultTopK
	}
	buf := make([]Ranked, len(ms))
	for i, m := range ms {
		buf[i] = Ranked{Merchant: m, Score: score(m)}
	}
	sort.SliceStable(buf, func(a, b int) bool { return buf[a].Score > buf[b].Score })
	if k > len(buf) {
		k = len(buf)
	}
	return buf[:k]
}
