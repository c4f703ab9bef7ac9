package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportdesk/backend/internal/corpus"
	"github.com/supportdesk/backend/internal/matcher"
)

func newEvaluator(t *testing.T, threshold float64, pairs ...corpus.Pair) *Evaluator {
	t.Helper()
	idx, err := corpus.NewIndex(pairs)
	require.NoError(t, err)
	m, err := matcher.New(idx, threshold)
	require.NoError(t, err)
	return NewEvaluator(m)
}

func TestRun(t *testing.T) {
	e := newEvaluator(t, 0.3,
		corpus.Pair{Question: "how do I reset my password", Response: "Reset your password via settings."},
		corpus.Pair{Question: "refund timing", Response: "Refunds take 5 business days."},
		corpus.Pair{Question: "where is my parcel", Response: "Track the parcel from your orders page."},
		corpus.Pair{Response: "Contact us by phone."},
	)

	report, err := e.Run()
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalQueries)
	assert.Equal(t, 3, report.AnsweredCount+report.MisroutedCount+report.EscalatedCount)
	assert.GreaterOrEqual(t, report.AnsweredCount, 2)
	assert.InDelta(t, 100.0, report.AnsweredPercentage+report.MisroutedPercentage+report.EscalatedPercentage, 1e-9)
	assert.Contains(t, GenerateReport(report), "Total Questions: 3")
}

func TestEvaluateEntry(t *testing.T) {
	e := newEvaluator(t, 0.3,
		corpus.Pair{Question: "refunds in business days", Response: "Refunds take 5 business days."},
		corpus.Pair{Question: "unrelated words entirely", Response: "Reset your password via settings."},
	)

	t.Run("answered", func(t *testing.T) {
		item := e.EvaluateEntry(0)
		assert.Equal(t, OutcomeAnswered, item.Outcome)
		assert.Equal(t, 0, item.Matched)
	})

	t.Run("escalated", func(t *testing.T) {
		item := e.EvaluateEntry(1)
		assert.Equal(t, OutcomeEscalated, item.Outcome)
		assert.Zero(t, item.Score)
	})
}

func TestRun_Misrouted(t *testing.T) {
	e := newEvaluator(t, 0.3,
		corpus.Pair{Question: "password settings", Response: "Refunds take 5 business days."},
		corpus.Pair{Question: "reset password", Response: "Reset your password via settings."},
	)

	item := e.EvaluateEntry(0)
	assert.Equal(t, OutcomeMisrouted, item.Outcome)
	assert.Equal(t, 1, item.Matched)
}

func TestRun_NoQuestions(t *testing.T) {
	e := newEvaluator(t, 0.3, corpus.Pair{Response: "Refunds take 5 business days."})

	_, err := e.Run()
	assert.ErrorIs(t, err, ErrNoQuestions)
}
