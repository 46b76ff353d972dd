package store

import (
	"context"

	"github.com/me/queuesim/pkg/model"
)

// Store persists finished simulation runs.
type Store interface {
	// SaveRun stores a run together with its per-client results.
	SaveRun(ctx context.Context, run *model.Run, results []model.ClientResult) error
	// GetRun returns nil, nil when the run does not exist.
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error)
	ListResults(ctx context.Context, runID string) ([]model.ClientResult, error)
	DeleteRun(ctx context.Context, id string) error

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
