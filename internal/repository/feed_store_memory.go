package repository

import (
	"context"
	"sync"
	"time"

	"shopsync/feedhub/internal/model"
)

type memoryFeedStore struct {
	mu      sync.RWMutex
	objects map[string]model.FeedObject
	baseURL string
}

// NewMemoryFeedStore backs FeedStore with a map, for tests and local runs.
func NewMemoryFeedStore(baseURL string) FeedStore {
	return &memoryFeedStore{
		objects: make(map[string]model.FeedObject),
		baseURL: baseURL,
	}
}

func (s *memoryFeedStore) Put(_ context.Context, name string, content []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	url := s.baseURL + "/" + name
	cp := make([]byte, len(content))
	copy(cp, content)
	s.objects[name] = model.FeedObject{
		Content:     cp,
		ContentType: contentType,
		URL:         url,
		UploadedAt:  time.Now(),
	}
	return url, nil
}

func (s *memoryFeedStore) Get(_ context.Context, name string) (*model.FeedObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[name]
	if !ok {
		return nil, nil
	}
	return &obj, nil
}
