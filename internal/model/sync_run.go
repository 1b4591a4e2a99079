package model

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

type RunTrigger string

const (
	RunTriggerCron   RunTrigger = "cron"
	RunTriggerManual RunTrigger = "manual"
)

// SyncRun records one execution of the fetch→transform→upload pipeline.
// The dashboard reads the latest record for status display and the recent
// history for troubleshooting; failure records carry the sanitized error
// code and message, never internals.
type SyncRun struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Status        RunStatus  `gorm:"type:varchar(16);not null;index" json:"status"`
	Trigger       RunTrigger `gorm:"type:varchar(16);not null" json:"trigger"`
	ListingsCount int        `gorm:"not null;default:0" json:"listings_count"`
	FeedURL       string     `gorm:"type:varchar(512)" json:"feed_url,omitempty"`
	ErrorCode     string     `gorm:"type:varchar(64)" json:"error_code,omitempty"`
	ErrorMessage  string     `gorm:"type:varchar(1024)" json:"error_message,omitempty"`
	StartedAt     time.Time  `gorm:"not null" json:"started_at"`
	FinishedAt    time.Time  `gorm:"not null" json:"finished_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (SyncRun) TableName() string { return "sync_runs" }
