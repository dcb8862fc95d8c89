package search

import (
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/FACorreiaa/patentgrant/internal/domain/grant/export"
)

// AssigneeMatch is a known assignee ranked against a query.
type AssigneeMatch struct {
	Name     string
	Patents  int // number of rows naming this assignee
	Score    int // similarity 0-100
	Distance int // Levenshtein distance
}

// AssigneeMatcher suggests assignee names despite spelling variants such
// as "Acme Corp" and "ACME Corporation".
type AssigneeMatcher struct {
	names []assigneeName
	mu    sync.RWMutex
}

type assigneeName struct {
	display    string
	normalized string
	patents    int
}

// NewAssigneeMatcher collects the distinct assignees of rows.
func NewAssigneeMatcher(rows []export.PatentRow) *AssigneeMatcher {
	am := &AssigneeMatcher{}
	am.Build(rows)
	return am
}

// Build replaces the known assignees.
func (am *AssigneeMatcher) Build(rows []export.PatentRow) {
	am.mu.Lock()
	defer am.mu.Unlock()

	byName := make(map[string]int)
	am.names = am.names[:0]
	for _, row := range rows {
		for _, name := range row.AssigneeList() {
			norm := normalizeName(name)
			if norm == "" {
				continue
			}
			if idx, ok := byName[norm]; ok {
				am.names[idx].patents++
				continue
			}
			byName[norm] = len(am.names)
			am.names = append(am.names, assigneeName{display: strings.TrimSpace(name), normalized: norm, patents: 1})
		}
	}
}

// Suggest ranks known assignees against name and returns those scoring at
// least threshold, best first.
func (am *AssigneeMatcher) Suggest(name string, threshold, limit int) []AssigneeMatch {
	am.mu.RLock()
	defer am.mu.RUnlock()

	norm := normalizeName(name)
	if norm == "" {
		return nil
	}

	var results []AssigneeMatch
	for _, n := range am.names {
		score := fuzzyScore(norm, n.normalized)
		if score < threshold {
			continue
		}
		results = append(results, AssigneeMatch{
			Name:     n.display,
			Patents:  n.patents,
			Score:    score,
			Distance: levenshteinDistance(norm, n.normalized),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Patents > results[j].Patents
	})
	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results
}

// GroupVariants groups known assignee names whose similarity to the first
// name of the group is at least threshold. Keys are the first-seen names.
func (am *AssigneeMatcher) GroupVariants(threshold int) map[string][]string {
	am.mu.RLock()
	defer am.mu.RUnlock()

	groups := make(map[string][]string)
	assigned := make([]bool, len(am.names))
	for i, n := range am.names {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		group := []string{n.display}
		for j := i + 1; j < len(am.names); j++ {
			if !assigned[j] && fuzzyScore(n.normalized, am.names[j].normalized) >= threshold {
				group = append(group, am.names[j].display)
				assigned[j] = true
			}
		}
		groups[n.display] = group
	}
	return groups
}

// NameCount returns the number of distinct assignees.
func (am *AssigneeMatcher) NameCount() int {
	am.mu.RLock()
	defer am.mu.RUnlock()
	return len(am.names)
}

var corporateSuffixes = []string{" CORPORATION", " CORP", " INCORPORATED", " INC", " COMPANY", " CO", " LIMITED", " LTD"}

// normalizeName uppercases, drops punctuation and strips one trailing
// corporate suffix.
func normalizeName(name string) string {
	name = strings.ToUpper(name)
	name = strings.Map(func(r rune) rune {
		if r == '.' || r == ',' {
			return -1
		}
		return r
	}, name)
	name = strings.Join(strings.Fields(name), " ")
	for _, suffix := range corporateSuffixes {
		if trimmed, ok := strings.CutSuffix(name, suffix); ok && trimmed != "" {
			return trimmed
		}
	}
	return name
}

// fuzzyScore calculates a similarity score between two strings (0-100)
func fuzzyScore(s1, s2 string) int {
	if s1 == s2 {
		return 100
	}
	if strings.Contains(s1, s2) {
		return 75 + (25 * len(s2) / len(s1))
	}
	if strings.Contains(s2, s1) {
		return 75 + (25 * len(s1) / len(s2))
	}

	maxLen := max(len(s1), len(s2))
	if maxLen == 0 {
		return 0
	}
	levenshteinScore := 100 * (maxLen - levenshteinDistance(s1, s2)) / maxLen

	// RankMatch is the edit distance when s2's characters appear in order in s1
	subsequenceScore := 0
	if rank := fuzzy.RankMatch(s2, s1); rank >= 0 && rank < len(s1) {
		subsequenceScore = 60 - (rank * 40 / len(s1))
	}

	return max(levenshteinScore, subsequenceScore)
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	r1, r2 := []rune(s1), []rune(s2)
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(r2)]
}
