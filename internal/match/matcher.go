package match

import (
	"errors"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/doorlist/backend/internal/roster"
)

const (
	// Threshold is the minimum similarity for a candidate to qualify
	// without falling back to substring containment.
	Threshold = 0.5
	// MaxResults caps the ranked list returned by Match.
	MaxResults = 50
)

// ErrEmptyQuery indicates the query was empty or whitespace only.
var ErrEmptyQuery = errors.New("match: empty query")

// Candidate pairs a roster guest with its similarity score against a query.
type Candidate struct {
	Guest roster.Guest
	Score float64
}

// Match scores every candidate against the query using normalized edit
// distance and returns the qualifying candidates ranked by descending score.
// Ties keep the candidates' original enumeration order (stable sort). When no
// candidate reaches the threshold, candidates whose normalized name contains
// the first token of the normalized query are returned with score 1.0.
// Inputs are never mutated.
func Match(query string, candidates []roster.Guest) ([]Candidate, error) {
	normQuery := Normalize(query)
	if normQuery == "" {
		return nil, ErrEmptyQuery
	}

	queryLen := utf8.RuneCountInString(normQuery)
	scored := make([]Candidate, 0, len(candidates))
	for _, guest := range candidates {
		normName := Normalize(guest.Name)
		score := similarity(normQuery, queryLen, normName)
		if score >= Threshold {
			scored = append(scored, Candidate{Guest: guest, Score: score})
		}
	}

	if len(scored) == 0 {
		firstToken := strings.Fields(normQuery)[0]
		for _, guest := range candidates {
			if strings.Contains(Normalize(guest.Name), firstToken) {
				scored = append(scored, Candidate{Guest: guest, Score: 1.0})
			}
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > MaxResults {
		scored = scored[:MaxResults]
	}
	return scored, nil
}

// similarity is the normalized inverse edit distance between the already
// normalized query and name. Lengths are rune counts so multi-byte names
// score the same as their visual length suggests.
func similarity(normQuery string, queryLen int, normName string) float64 {
	distance := levenshtein.ComputeDistance(normQuery, normName)
	maxLen := queryLen
	if nameLen := utf8.RuneCountInString(normName); nameLen > maxLen {
		maxLen = nameLen
	}
	if maxLen == 0 {
		maxLen = 1
	}
	return 1 - float64(distance)/float64(maxLen)
}
