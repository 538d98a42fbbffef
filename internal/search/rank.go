package search

import (
	"regexp"
	"sort"

	"golang.org/x/text/cases"

	"github.com/tbourn/go-merchant-directory/internal/domain"
)

// Index ranks merchants by token overlap with a query. Scores are the Jaccard
// similarity between the query token set and the merchant's token set, taken
// over name, category and menu item names: |Q ∩ M| / |Q ∪ M|.
//
// An Index is immutable after NewIndex and safe for concurrent use.
type Index struct {
	stop map[string]struct{}
	docs []doc
}

type doc struct {
	m      domain.Merchant
	tokens map[string]struct{}
}

// Option configures an Index.
type Option func(*Index)

// WithStopwords drops the given words from both sides of the comparison.
func WithStopwords(words ...string) Option {
	return func(i *Index) {
		if len(words) == 0 {
			return
		}
		fold := cases.Fold()
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			if w = fold.String(w); w != "" {
				m[w] = struct{}{}
			}
		}
		i.stop = m
	}
}

// DefaultStopwords are filler words common in Indonesian and English menus.
var DefaultStopwords = []string{"dan", "di", "yang", "the", "and", "of"}

// NewIndex tokenizes ms. Merchants without any token are skipped.
func NewIndex(ms []domain.Merchant, opts ...Option) *Index {
	idx := &Index{}
	for _, o := range opts {
		o(idx)
	}
	idx.docs = make([]doc, 0, len(ms))
	for _, m := range ms {
		toks := tokenize(haystack(m), idx.stop)
		if len(toks) == 0 {
			continue
		}
		idx.docs = append(idx.docs, doc{m: m, tokens: toks})
	}
	return idx
}

// Rank returns up to k merchants sharing at least one token with q, best
// first. k <= 0 returns every match. Ties prefer the merchant with fewer
// tokens, then collection order.
func (i *Index) Rank(q string, k int) []Ranked {
	qTokens := tokenize(q, i.stop)
	if len(qTokens) == 0 || len(i.docs) == 0 {
		return nil
	}

	type scored struct {
		Ranked
		size int
	}
	buf := make([]scored, 0, len(i.docs))
	for _, d := range i.docs {
		over := overlap(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		union := len(qTokens) + len(d.tokens) - over
		buf = append(buf, scored{
			Ranked: Ranked{Merchant: d.m, Score: float64(over) / float64(union)},
			size:   len(d.tokens),
		})
	}
	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].Score != buf[b].Score {
			return buf[a].Score > buf[b].Score
		}
		return buf[a].size < buf[b].size
	})

	if k <= 0 || k > len(buf) {
		k = len(buf)
	}
	out := make([]Ranked, k)
	for n := range out {
		out[n] = buf[n].Ranked
	}
	return out
}

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(cases.Fold().String(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
