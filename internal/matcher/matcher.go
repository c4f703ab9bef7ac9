// Package matcher decides whether a free-text question is close enough to a
// known corpus response to be answered directly.
package matcher

import (
	"errors"
	"fmt"

	"github.com/supportdesk/backend/internal/corpus"
)

const DefaultThreshold = 0.3

var ErrInvalidThreshold = errors.New("matcher: threshold must be within [0, 1]")

// Result describes the best corpus candidate for a query. Index and Score
// are reported even when the candidate did not clear the threshold.
type Result struct {
	Matched  bool
	Index    int
	Response string
	Score    float64
}

type Matcher struct {
	index     *corpus.Index
	threshold float64
}

func New(index *corpus.Index, threshold float64) (*Matcher, error) {
	if index == nil {
		return nil, errors.New("matcher: corpus index is required")
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidThreshold, threshold)
	}

	return &Matcher{
		index:     index,
		threshold: threshold,
	}, nil
}

func (m *Matcher) Threshold() float64 {
	return m.threshold
}

func (m *Matcher) Index() *corpus.Index {
	return m.index
}

// Match returns the most similar corpus entry. Ties go to the lowest index.
// An empty or unrecognised query scores zero against every entry.
func (m *Matcher) Match(query string) Result {
	q := m.index.Vectorize(query)

	best, bestScore := 0, -1.0
	for i := 0; i < m.index.Len(); i++ {
		score := q.Cosine(m.index.Entry(i).Vector)
		if score > bestScore {
			best, bestScore = i, score
		}
	}

	result := Result{Index: best, Score: bestScore}
	if bestScore >= m.threshold {
		result.Matched = true
		result.Response = m.index.Entry(best).Response
	}
	return result
}
