package query

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/supportdesk/backend/internal/cache/redis"
	"github.com/supportdesk/backend/internal/matcher"
	"github.com/supportdesk/backend/internal/metrics"
	"github.com/supportdesk/backend/internal/storage/models"
	"github.com/supportdesk/backend/pkg/circuitbreaker"
	"github.com/supportdesk/backend/pkg/logger"
	"github.com/supportdesk/backend/pkg/utils"
)

const EscalatedAnswer = "Query not found. Your request has been escalated to the support team."

// Escalator records questions the matcher could not answer.
type Escalator interface {
	Create(ctx context.Context, question, email string) (*models.QueryRecord, error)
}

// AnswerCache stores matched answers. Implementations report a miss as
// (nil, false, nil).
type AnswerCache interface {
	GetAnswer(ctx context.Context, key string) (*redis.CachedAnswer, bool, error)
	SetAnswer(ctx context.Context, key string, answer redis.CachedAnswer) error
}

type Engine struct {
	matcher   *matcher.Matcher
	escalator Escalator
	cache     AnswerCache
	breaker   *circuitbreaker.CircuitBreaker
}

type Option func(*Engine)

// WithCache enables the answer cache, guarded by a circuit breaker so a
// failing cache falls back to matching directly.
func WithCache(cache AnswerCache) Option {
	return func(e *Engine) {
		e.cache = cache
		e.breaker = circuitbreaker.NewCircuitBreaker("answer-cache", circuitbreaker.Config{
			FailureThreshold: 5,
			Timeout:          30 * time.Second,
			Logger:           logger.Log,
		})
	}
}

type QueryRequest struct {
	Question string
	Email    string
}

type QueryResponse struct {
	ID           string
	Question     string
	Answer       string
	Matched      bool
	Escalated    bool
	EscalationID int64
	Score        float64
	Cached       bool
	LatencyMS    int
}

func NewEngine(m *matcher.Matcher, escalator Escalator, opts ...Option) *Engine {
	e := &Engine{
		matcher:   m,
		escalator: escalator,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessQuery answers the question from the corpus or escalates it. An
// error means the question was neither answered nor escalated.
func (e *Engine) ProcessQuery(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	startTime := time.Now()
	requestID := uuid.New().String()

	logger.Debug("Processing query",
		zap.String("request_id", requestID),
		zap.Int("question_length", len(req.Question)),
	)

	key := e.cacheKey(req.Question)
	if cached := e.lookupCache(ctx, key); cached != nil {
		resp := &QueryResponse{
			ID:       requestID,
			Question: req.Question,
			Answer:   cached.Response,
			Matched:  true,
			Score:    cached.Score,
			Cached:   true,
		}
		e.finish(resp, startTime, metrics.OutcomeMatched)
		return resp, nil
	}

	result := e.matcher.Match(req.Question)
	metrics.SimilarityScore.Observe(result.Score)

	resp := &QueryResponse{
		ID:       requestID,
		Question: req.Question,
		Score:    result.Score,
	}

	if result.Matched {
		resp.Matched = true
		resp.Answer = result.Response
		e.storeCache(ctx, key, redis.CachedAnswer{Index: result.Index, Response: result.Response, Score: result.Score})

		logger.Info("Query matched",
			zap.String("request_id", requestID),
			zap.Int("entry", result.Index),
			zap.Float64("score", result.Score),
		)
		e.finish(resp, startTime, metrics.OutcomeMatched)
		return resp, nil
	}

	record, err := e.escalator.Create(ctx, req.Question, req.Email)
	if err != nil {
		e.finish(resp, startTime, metrics.OutcomeFailed)
		return nil, fmt.Errorf("failed to escalate query: %w", err)
	}

	resp.Escalated = true
	resp.EscalationID = record.ID
	resp.Answer = EscalatedAnswer

	logger.Info("Query escalated",
		zap.String("request_id", requestID),
		zap.Int64("query_id", record.ID),
		zap.Float64("best_score", result.Score),
	)
	e.finish(resp, startTime, metrics.OutcomeEscalated)
	return resp, nil
}

func (e *Engine) finish(resp *QueryResponse, startTime time.Time, outcome string) {
	elapsed := time.Since(startTime)
	resp.LatencyMS = int(elapsed.Milliseconds())
	metrics.QueryTotal.WithLabelValues(outcome).Inc()
	metrics.QueryDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// cacheKey ties a cached answer to the corpus and threshold that produced
// it. Matching is case-insensitive and whitespace-insensitive, so the key is
// too.
func (e *Engine) cacheKey(question string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	return utils.HashParts(
		e.matcher.Index().Fingerprint(),
		strconv.FormatFloat(e.matcher.Threshold(), 'g', -1, 64),
		normalized,
	)
}

func (e *Engine) lookupCache(ctx context.Context, key string) *redis.CachedAnswer {
	if e.cache == nil {
		return nil
	}

	var (
		answer *redis.CachedAnswer
		hit    bool
	)
	err := e.breaker.Execute(ctx, func() error {
		var err error
		answer, hit, err = e.cache.GetAnswer(ctx, key)
		return err
	})
	if err != nil {
		logger.Warn("Answer cache lookup failed", zap.Error(err))
		return nil
	}
	if !hit {
		metrics.CacheMisses.WithLabelValues("answer").Inc()
		return nil
	}

	metrics.CacheHits.WithLabelValues("answer").Inc()
	return answer
}

func (e *Engine) storeCache(ctx context.Context, key string, answer redis.CachedAnswer) {
	if e.cache == nil {
		return
	}

	err := e.breaker.Execute(ctx, func() error {
		return e.cache.SetAnswer(ctx, key, answer)
	})
	if err != nil {
		logger.Warn("Failed to cache answer", zap.Error(err))
	}
}
