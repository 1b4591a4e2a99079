package model

import "gorm.io/gorm"

// AutoMigrate runs GORM auto-migration for all models and creates custom indexes.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&SyncRun{},
	); err != nil {
		return err
	}

	// The dashboard reads runs newest-first; keep that path off a table scan.
	return db.Exec(
		"CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs (started_at DESC)",
	).Error
}
