package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"shopsync/feedhub/internal/model"
)

type pgSyncRunRepository struct {
	db *gorm.DB
}

func NewPGSyncRunRepository(db *gorm.DB) SyncRunRepository {
	return &pgSyncRunRepository{db: db}
}

func (r *pgSyncRunRepository) Create(ctx context.Context, run *model.SyncRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *pgSyncRunRepository) Latest(ctx context.Context) (*model.SyncRun, error) {
	var run model.SyncRun
	err := r.db.WithContext(ctx).Order("started_at DESC").First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (r *pgSyncRunRepository) List(ctx context.Context, limit int) ([]model.SyncRun, error) {
	var runs []model.SyncRun
	err := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}
