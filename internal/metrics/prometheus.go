package metrics

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/supportdesk/backend/pkg/logger"
)

const (
	OutcomeMatched   = "matched"
	OutcomeEscalated = "escalated"
	OutcomeFailed    = "failed"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supportdesk_query_duration_seconds",
			Help:    "Question processing duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"outcome"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportdesk_query_total",
			Help: "Total number of questions processed",
		},
		[]string{"outcome"},
	)

	SimilarityScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "supportdesk_similarity_score",
			Help:    "Best corpus similarity per question",
			Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	EscalationsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "supportdesk_escalations_created_total",
			Help: "Total questions escalated to staff",
		},
	)

	EscalationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "supportdesk_escalation_failures_total",
			Help: "Escalations that could not be recorded",
		},
	)

	Resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportdesk_resolutions_total",
			Help: "Total staff resolutions",
		},
		[]string{"kind"},
	)

	PendingEscalations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "supportdesk_pending_escalations",
			Help: "Escalated questions awaiting staff",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportdesk_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportdesk_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	InconsistentRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "supportdesk_inconsistent_records_total",
			Help: "Query rows skipped because their escalation columns disagree",
		},
	)

	CorpusEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "supportdesk_corpus_entries",
			Help: "Responses in the loaded corpus",
		},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(QueryDuration)
		prometheus.MustRegister(QueryTotal)
		prometheus.MustRegister(SimilarityScore)
		prometheus.MustRegister(EscalationsCreated)
		prometheus.MustRegister(EscalationFailures)
		prometheus.MustRegister(Resolutions)
		prometheus.MustRegister(PendingEscalations)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
		prometheus.MustRegister(InconsistentRecords)
		prometheus.MustRegister(CorpusEntries)
	})
}

// Refresher updates gauges whose source of truth lives outside this
// process, such as the pending count another process can change.
type Refresher func(ctx context.Context) error

// MetricsHandler serves the default registry, running every refresher before
// each scrape. A failing refresher is logged and the scrape still proceeds.
func MetricsHandler(refreshers ...Refresher) fiber.Handler {
	serve := adaptor.HTTPHandler(promhttp.Handler())

	return func(c *fiber.Ctx) error {
		for _, refresh := range refreshers {
			if err := refresh(c.Context()); err != nil {
				logger.Warn("Failed to refresh metrics", zap.Error(err))
			}
		}
		return serve(c)
	}
}
