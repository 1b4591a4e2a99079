package repository

import (
	"context"

	"shopsync/feedhub/internal/model"
)

type SyncRunRepository interface {
	Create(ctx context.Context, run *model.SyncRun) error
	// Latest returns the most recent run by start time, (nil, nil) when none exist.
	Latest(ctx context.Context) (*model.SyncRun, error)
	List(ctx context.Context, limit int) ([]model.SyncRun, error)
}
