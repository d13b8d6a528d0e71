package storage

import (
	"context"

	"esnkit/internal/model"
)

// Store defines persistence operations for training runs and their results.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveClusterSummaries(ctx context.Context, runID string, clusters []model.ClusterSummary) error
	GetClusterSummaries(ctx context.Context, runID string) ([]model.ClusterSummary, bool, error)
	SaveErrorSeries(ctx context.Context, runID string, series []float64) error
	GetErrorSeries(ctx context.Context, runID string) ([]float64, bool, error)
}
