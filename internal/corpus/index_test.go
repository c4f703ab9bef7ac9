package corpus

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pairsOf(responses ...string) []Pair {
	pairs := make([]Pair, len(responses))
	for i, r := range responses {
		pairs[i] = Pair{Response: r}
	}
	return pairs
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"lowercases and strips punctuation", "Reset your Password!", []string{"reset", "your", "password"}},
		{"drops single characters", "I need 5 days", []string{"need", "days"}},
		{"keeps digits and underscores", "order_id 42x", []string{"order_id", "42x"}},
		{"unicode letters", "Café déjà-vu", []string{"café", "déjà", "vu"}},
		{"empty", "   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestNewIndex_Errors(t *testing.T) {
	t.Run("empty corpus", func(t *testing.T) {
		_, err := NewIndex(nil)
		assert.ErrorIs(t, err, ErrEmptyCorpus)
	})

	t.Run("no indexable terms", func(t *testing.T) {
		_, err := NewIndex(pairsOf("", "a b c", "!!"))
		assert.ErrorIs(t, err, ErrEmptyVocabulary)
	})
}

func TestNewIndex_Vectors(t *testing.T) {
	idx, err := NewIndex(pairsOf(
		"Reset your password via settings.",
		"Refunds take 5 business days.",
	))
	require.NoError(t, err)

	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, 9, idx.VocabularySize())
	assert.Equal(t, "Reset your password via settings.", idx.Entry(0).Response)
	assert.Equal(t, "Refunds take 5 business days.", idx.Entry(1).Response)

	for i := 0; i < idx.Len(); i++ {
		v := idx.Entry(i).Vector
		var norm float64
		for _, w := range v.weights {
			norm += w * w
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-12, "entry %d not unit length", i)
	}

	assert.Equal(t, 0.0, idx.Entry(0).Vector.Cosine(idx.Entry(1).Vector))
}

func TestIndex_IDFWeighting(t *testing.T) {
	// "account" appears in every response, "refund" only in one.
	idx, err := NewIndex(pairsOf(
		"account refund",
		"account login",
		"account email",
	))
	require.NoError(t, err)

	v := idx.Vectorize("account refund")
	require.Equal(t, 2, v.Len())

	weights := map[int]float64{}
	for i, term := range v.terms {
		weights[term] = v.weights[i]
	}
	account := weights[idx.vocabulary["account"]]
	refund := weights[idx.vocabulary["refund"]]
	assert.Greater(t, refund, account)

	// idf = ln((1+n)/(1+df)) + 1
	assert.InDelta(t, 1.0, idx.idf[idx.vocabulary["account"]], 1e-12)
	assert.InDelta(t, math.Log(2)+1, idx.idf[idx.vocabulary["refund"]], 1e-12)
}

func TestIndex_Vectorize(t *testing.T) {
	idx, err := NewIndex(pairsOf("shipping address change", "cancel order"))
	require.NoError(t, err)

	t.Run("unknown terms give zero vector", func(t *testing.T) {
		assert.True(t, idx.Vectorize("asdkjqwe zzz").IsZero())
	})

	t.Run("empty text gives zero vector", func(t *testing.T) {
		assert.True(t, idx.Vectorize("").IsZero())
		assert.True(t, idx.Vectorize(" \t\n").IsZero())
	})

	t.Run("identical text has similarity one", func(t *testing.T) {
		v := idx.Vectorize("shipping address change")
		assert.InDelta(t, 1.0, v.Cosine(idx.Entry(0).Vector), 1e-12)
	})

	t.Run("zero vector has zero similarity", func(t *testing.T) {
		assert.Equal(t, 0.0, Vector{}.Cosine(idx.Entry(0).Vector))
	})
}

func TestIndex_VectorsAreBitIdentical(t *testing.T) {
	text := "refund refund refund refund order order order delivery delivery invoice"
	want, err := NewIndex(pairsOf(text, "other words here"))
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		idx, err := NewIndex(pairsOf(text, "other words here"))
		require.NoError(t, err)
		require.Equal(t, want.Entry(0).Vector, idx.Entry(0).Vector)
		require.Equal(t, want.Entry(0).Vector, idx.Vectorize(text))
	}
}

func TestIndex_Fingerprint(t *testing.T) {
	a, err := NewIndex(pairsOf("one answer", "two answer"))
	require.NoError(t, err)
	b, err := NewIndex(pairsOf("one answer", "two answer"))
	require.NoError(t, err)
	c, err := NewIndex(pairsOf("two answer", "one answer"))
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.Len(t, a.Fingerprint(), 16)
}

func TestLoadCSV(t *testing.T) {
	t.Run("reads response and question columns in order", func(t *testing.T) {
		data := "flags,instruction,category,response\n" +
			"B,how do I reset my password,ACCOUNT,\"Reset your password via settings.\"\n" +
			"B,where is my refund,REFUND,\"Refunds take 5 business days.\"\n"

		pairs, err := LoadCSV(strings.NewReader(data), LoadOptions{ResponseColumn: "response", QuestionColumn: "instruction"})
		require.NoError(t, err)
		require.Len(t, pairs, 2)
		assert.Equal(t, Pair{Question: "how do I reset my password", Response: "Reset your password via settings."}, pairs[0])
		assert.Equal(t, "Refunds take 5 business days.", pairs[1].Response)
	})

	t.Run("header match ignores case and BOM", func(t *testing.T) {
		data := "\ufeffResponse\nhello there\n"
		pairs, err := LoadCSV(strings.NewReader(data), LoadOptions{})
		require.NoError(t, err)
		assert.Equal(t, []Pair{{Response: "hello there"}}, pairs)
	})

	t.Run("missing response column", func(t *testing.T) {
		_, err := LoadCSV(strings.NewReader("question,answer\na,b\n"), LoadOptions{ResponseColumn: "response"})
		assert.ErrorIs(t, err, ErrMissingColumn)
	})

	t.Run("header only", func(t *testing.T) {
		_, err := LoadCSV(strings.NewReader("response\n"), LoadOptions{})
		assert.ErrorIs(t, err, ErrEmptyCorpus)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := LoadCSV(strings.NewReader(""), LoadOptions{})
		assert.ErrorIs(t, err, ErrEmptyCorpus)
	})
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(t.TempDir()+"/nope.csv", LoadOptions{})
	assert.Error(t, err)
}
