package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
)

var (
	ErrEmptyCorpus     = errors.New("corpus: no entries")
	ErrEmptyVocabulary = errors.New("corpus: responses contain no indexable terms")
)

// Tokens are maximal runs of two or more word characters.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]{2,}`)

// Entry is one indexed response.
type Entry struct {
	Question string
	Response string
	Vector   Vector
}

type Index struct {
	vocabulary  map[string]int
	idf         []float64
	entries     []Entry
	fingerprint string
}

// NewIndex fits the vocabulary over every response and vectorizes each one,
// keeping input order.
func NewIndex(pairs []Pair) (*Index, error) {
	if len(pairs) == 0 {
		return nil, ErrEmptyCorpus
	}

	docs := make([][]string, len(pairs))
	df := make(map[string]int)
	for i, p := range pairs {
		docs[i] = Tokenize(p.Response)
		seen := make(map[string]struct{}, len(docs[i]))
		for _, term := range docs[i] {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			df[term]++
		}
	}
	if len(df) == 0 {
		return nil, ErrEmptyVocabulary
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(pairs))
	idx := &Index{
		vocabulary: make(map[string]int, len(terms)),
		idf:        make([]float64, len(terms)),
		entries:    make([]Entry, len(pairs)),
	}
	for i, term := range terms {
		idx.vocabulary[term] = i
		idx.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	hash := sha256.New()
	for i, p := range pairs {
		idx.entries[i] = Entry{
			Question: p.Question,
			Response: p.Response,
			Vector:   idx.weigh(docs[i]),
		}
		hash.Write([]byte(p.Response))
		hash.Write([]byte{0})
	}
	idx.fingerprint = hex.EncodeToString(hash.Sum(nil))[:16]

	return idx, nil
}

// Tokenize lowercases text and splits it into vocabulary terms.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// Vectorize projects text into the fitted space. Terms outside the
// vocabulary carry no weight, so unknown or empty text gives the zero vector.
func (idx *Index) Vectorize(text string) Vector {
	return idx.weigh(Tokenize(text))
}

func (idx *Index) weigh(tokens []string) Vector {
	counts := make(map[int]int, len(tokens))
	for _, token := range tokens {
		if term, ok := idx.vocabulary[token]; ok {
			counts[term]++
		}
	}

	weights := make(map[int]float64, len(counts))
	for term, count := range counts {
		weights[term] = float64(count) * idx.idf[term]
	}
	return newVector(weights)
}

func (idx *Index) Len() int {
	return len(idx.entries)
}

// Entry returns the i-th entry in corpus order.
func (idx *Index) Entry(i int) Entry {
	return idx.entries[i]
}

func (idx *Index) VocabularySize() int {
	return len(idx.vocabulary)
}

// Fingerprint identifies the corpus contents; it changes whenever any
// response text or the response order changes.
func (idx *Index) Fingerprint() string {
	return idx.fingerprint
}
