package evaluation

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/supportdesk/backend/internal/matcher"
	"github.com/supportdesk/backend/pkg/logger"
)

// ErrNoQuestions is returned when the corpus was loaded without a question
// column, leaving nothing to replay.
var ErrNoQuestions = errors.New("corpus has no questions to evaluate")

const (
	OutcomeAnswered  = "answered"
	OutcomeMisrouted = "misrouted"
	OutcomeEscalated = "escalated"
)

type ItemResult struct {
	Entry    int
	Question string
	Outcome  string
	Matched  int
	Score    float64
}

type EvaluationReport struct {
	Threshold      float64
	TotalQueries   int
	AnsweredCount  int
	MisroutedCount int
	EscalatedCount int
	AvgScore       float64

	AnsweredPercentage  float64
	MisroutedPercentage float64
	EscalatedPercentage float64

	// Misrouted holds the items answered with another entry's response.
	Misrouted []ItemResult
}

type Evaluator struct {
	matcher *matcher.Matcher
}

func NewEvaluator(m *matcher.Matcher) *Evaluator {
	return &Evaluator{matcher: m}
}

// EvaluateEntry replays the stored question of corpus entry i. A match
// counts as answered when it returns the entry's own response text, since
// a corpus may hold the same response under several rows.
func (e *Evaluator) EvaluateEntry(i int) ItemResult {
	entry := e.matcher.Index().Entry(i)
	res := e.matcher.Match(entry.Question)

	item := ItemResult{
		Entry:    i,
		Question: entry.Question,
		Matched:  res.Index,
		Score:    res.Score,
	}

	switch {
	case !res.Matched:
		item.Outcome = OutcomeEscalated
	case res.Response == entry.Response:
		item.Outcome = OutcomeAnswered
	default:
		item.Outcome = OutcomeMisrouted
	}

	return item
}

// Run replays every corpus question through the matcher.
func (e *Evaluator) Run() (*EvaluationReport, error) {
	index := e.matcher.Index()
	report := &EvaluationReport{Threshold: e.matcher.Threshold()}

	logger.Info("Running corpus evaluation", zap.Int("entries", index.Len()))

	var totalScore float64
	for i := 0; i < index.Len(); i++ {
		if strings.TrimSpace(index.Entry(i).Question) == "" {
			continue
		}

		item := e.EvaluateEntry(i)
		report.TotalQueries++
		totalScore += item.Score

		switch item.Outcome {
		case OutcomeAnswered:
			report.AnsweredCount++
		case OutcomeMisrouted:
			report.MisroutedCount++
			report.Misrouted = append(report.Misrouted, item)
		case OutcomeEscalated:
			report.EscalatedCount++
		}
	}

	if report.TotalQueries == 0 {
		return nil, ErrNoQuestions
	}

	total := float64(report.TotalQueries)
	report.AvgScore = totalScore / total
	report.AnsweredPercentage = float64(report.AnsweredCount) / total * 100
	report.MisroutedPercentage = float64(report.MisroutedCount) / total * 100
	report.EscalatedPercentage = float64(report.EscalatedCount) / total * 100

	logger.Info("Corpus evaluation completed",
		zap.Int("total", report.TotalQueries),
		zap.Int("answered", report.AnsweredCount),
		zap.Int("misrouted", report.MisroutedCount),
		zap.Int("escalated", report.EscalatedCount),
	)

	return report, nil
}

func GenerateReport(report *EvaluationReport) string {
	return fmt.Sprintf(`
Evaluation Report
=================

Threshold: %.2f
Total Questions: %d

Outcomes:
- Answered: %d (%.1f%%)
- Misrouted: %d (%.1f%%)
- Escalated: %d (%.1f%%)

Average Best Score: %.3f
`,
		report.Threshold,
		report.TotalQueries,
		report.AnsweredCount, report.AnsweredPercentage,
		report.MisroutedCount, report.MisroutedPercentage,
		report.EscalatedCount, report.EscalatedPercentage,
		report.AvgScore,
	)
}
