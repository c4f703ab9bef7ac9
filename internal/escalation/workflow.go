package escalation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/supportdesk/backend/internal/metrics"
	"github.com/supportdesk/backend/internal/storage/models"
	"github.com/supportdesk/backend/pkg/logger"
)

var ErrInvalidResolution = errors.New("resolution and flag are both required")

type Workflow struct {
	repo Repository
}

func NewWorkflow(repo Repository) *Workflow {
	return &Workflow{repo: repo}
}

// Resolve closes an escalated query with a resolution and category flag.
//
// Resolving a query that is already resolved overwrites the earlier
// resolution; concurrent resolves of one id are last-write-wins.
func (w *Workflow) Resolve(ctx context.Context, id int64, resolution, flag string) (*models.QueryRecord, error) {
	resolution = strings.TrimSpace(resolution)
	flag = strings.TrimSpace(flag)
	if resolution == "" || flag == "" {
		return nil, ErrInvalidResolution
	}

	previous, record, err := w.repo.ResolveQuery(ctx, id, models.Resolution{Text: resolution, Flag: flag})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			logger.Warn("Resolve requested for unknown query", zap.Int64("query_id", id))
		}
		return nil, fmt.Errorf("failed to resolve query %d: %w", id, err)
	}

	if previous == models.StateResolved {
		metrics.Resolutions.WithLabelValues("re-resolve").Inc()
		logger.Warn("Overwriting existing resolution", zap.Int64("query_id", id), zap.String("flag", flag))
		return record, nil
	}

	metrics.Resolutions.WithLabelValues("first").Inc()
	metrics.PendingEscalations.Dec()

	logger.Info("Query resolved", zap.Int64("query_id", id), zap.String("flag", flag))
	return record, nil
}
