package corpus

import (
	"math"
	"sort"
)

// Vector is a sparse, L2-normalized term-weight vector. Terms are sorted
// ascending so two vectors can be merged in a single pass.
type Vector struct {
	terms   []int
	weights []float64
}

func newVector(weights map[int]float64) Vector {
	if len(weights) == 0 {
		return Vector{}
	}

	terms := make([]int, 0, len(weights))
	for term := range weights {
		terms = append(terms, term)
	}
	sort.Ints(terms)

	// Summed in term order so equal inputs always give bit-identical vectors.
	var norm float64
	for _, term := range terms {
		norm += weights[term] * weights[term]
	}
	norm = math.Sqrt(norm)

	v := Vector{terms: terms, weights: make([]float64, len(terms))}
	for i, term := range terms {
		v.weights[i] = weights[term] / norm
	}
	return v
}

func (v Vector) IsZero() bool {
	return len(v.terms) == 0
}

// Len is the number of non-zero terms.
func (v Vector) Len() int {
	return len(v.terms)
}

// Cosine returns the cosine similarity of two normalized vectors, which is
// their dot product. Either side being zero yields 0.
func (v Vector) Cosine(other Vector) float64 {
	var dot float64
	i, j := 0, 0
	for i < len(v.terms) && j < len(other.terms) {
		switch {
		case v.terms[i] == other.terms[j]:
			dot += v.weights[i] * other.weights[j]
			i++
			j++
		case v.terms[i] < other.terms[j]:
			i++
		default:
			j++
		}
	}
	if dot > 1 {
		return 1
	}
	return dot
}
