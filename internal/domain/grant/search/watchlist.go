package search

import (
	"sort"
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"

	"github.com/FACorreiaa/patentgrant/internal/domain/grant/export"
)

// Watchlist matches a fixed set of terms against patent titles and claims
// using the Aho-Corasick algorithm, so every row is scanned once regardless
// of how many terms are watched. Matching is case-insensitive substring
// matching.
type Watchlist struct {
	matcher *ahocorasick.Matcher
	terms   []string // original spelling, same order as the matcher
	mu      sync.RWMutex
}

// NewWatchlist builds a watchlist. Blank and duplicate terms are dropped.
func NewWatchlist(terms []string) *Watchlist {
	w := &Watchlist{}
	w.Build(terms)
	return w
}

// Build replaces the watched terms.
func (w *Watchlist) Build(terms []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	seen := make(map[string]bool, len(terms))
	w.terms = w.terms[:0]
	patterns := make([][]byte, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		norm := strings.ToUpper(term)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		w.terms = append(w.terms, term)
		patterns = append(patterns, []byte(norm))
	}

	if len(patterns) == 0 {
		w.matcher = nil
		return
	}
	w.matcher = ahocorasick.NewMatcher(patterns)
}

// Match returns the watched terms found in text, in watchlist order.
func (w *Watchlist) Match(text string) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.match(text)
}

func (w *Watchlist) match(text string) []string {
	if w.matcher == nil {
		return nil
	}

	hits := w.matcher.Match([]byte(strings.ToUpper(text)))
	if len(hits) == 0 {
		return nil
	}
	sort.Ints(hits)

	found := make([]string, 0, len(hits))
	for _, idx := range hits {
		if idx >= 0 && idx < len(w.terms) {
			found = append(found, w.terms[idx])
		}
	}
	return found
}

// Tally maps each watched term to the WKUs of rows whose title or claims
// mention it. Terms with no match are present with an empty slice.
func (w *Watchlist) Tally(rows []export.PatentRow) map[string][]string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	tally := make(map[string][]string, len(w.terms))
	for _, term := range w.terms {
		tally[term] = []string{}
	}
	for _, row := range rows {
		for _, term := range w.match(row.Title + "\n" + row.Claims) {
			tally[term] = append(tally[term], row.WKU)
		}
	}
	return tally
}

// TermCount returns the number of watched terms.
func (w *Watchlist) TermCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.terms)
}
