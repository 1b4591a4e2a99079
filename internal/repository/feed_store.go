package repository

import (
	"context"

	"shopsync/feedhub/internal/model"
)

// FeedStore abstracts the blob store hosting generated feed artifacts.
// Put overwrites; Get returns (nil, nil) when the object does not exist.
type FeedStore interface {
	Put(ctx context.Context, name string, content []byte, contentType string) (string, error)
	Get(ctx context.Context, name string) (*model.FeedObject, error)
}
