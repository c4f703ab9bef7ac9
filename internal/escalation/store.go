// Package escalation records questions the matcher could not answer and
// lets staff close them out.
//
// Store covers creation and triage listing; Workflow owns the single
// Escalated -> Resolved transition. Both sit on a Repository, implemented by
// the SQLite client.
package escalation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/supportdesk/backend/internal/metrics"
	"github.com/supportdesk/backend/internal/storage/models"
	"github.com/supportdesk/backend/internal/storage/sqlite"
	"github.com/supportdesk/backend/pkg/logger"
	"github.com/supportdesk/backend/pkg/retry"
)

type Repository interface {
	InsertEscalation(ctx context.Context, question, email string) (*models.QueryRecord, error)
	GetQuery(ctx context.Context, id int64) (*models.QueryRecord, error)
	ListPending(ctx context.Context) ([]models.QueryRecord, error)
	CountPending(ctx context.Context) (int, error)
	ResolveQuery(ctx context.Context, id int64, res models.Resolution) (models.State, *models.QueryRecord, error)
}

type Store struct {
	repo  Repository
	retry retry.Config
}

type StoreOption func(*Store)

// WithRetry replaces the retry policy used when inserting escalations.
func WithRetry(cfg retry.Config) StoreOption {
	return func(s *Store) {
		s.retry = cfg
	}
}

func NewStore(repo Repository, opts ...StoreOption) *Store {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 4
	cfg.InitialDelay = 50 * time.Millisecond
	cfg.MaxDelay = time.Second
	cfg.Retryable = sqlite.IsBusy
	cfg.Logger = logger.Log

	s := &Store{repo: repo, retry: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create persists a new escalated query. Any error means the escalation was
// not recorded.
func (s *Store) Create(ctx context.Context, question, email string) (*models.QueryRecord, error) {
	record, err := retry.DoWithResult(ctx, s.retry, func() (*models.QueryRecord, error) {
		return s.repo.InsertEscalation(ctx, question, email)
	})
	if err != nil {
		metrics.EscalationFailures.Inc()
		logger.Error("Failed to record escalation", zap.Error(err), zap.String("email", email))
		return nil, fmt.Errorf("escalation not recorded: %w", err)
	}

	metrics.EscalationsCreated.Inc()
	metrics.PendingEscalations.Inc()

	logger.Info("Query escalated",
		zap.Int64("query_id", record.ID),
		zap.String("email", email),
	)

	return record, nil
}

// ListPending returns escalated queries oldest first.
func (s *Store) ListPending(ctx context.Context) ([]models.QueryRecord, error) {
	records, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending escalations: %w", err)
	}
	return records, nil
}

func (s *Store) Get(ctx context.Context, id int64) (*models.QueryRecord, error) {
	return s.repo.GetQuery(ctx, id)
}

// SyncPendingGauge sets the pending gauge from the database. Resolves made by
// another process (staffctl) only show up through this.
func (s *Store) SyncPendingGauge(ctx context.Context) (int, error) {
	count, err := s.repo.CountPending(ctx)
	if err != nil {
		return 0, err
	}
	metrics.PendingEscalations.Set(float64(count))
	return count, nil
}

// RefreshPending adapts SyncPendingGauge to metrics.Refresher.
func (s *Store) RefreshPending(ctx context.Context) error {
	_, err := s.SyncPendingGauge(ctx)
	return err
}
