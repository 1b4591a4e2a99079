package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"shopsync/feedhub/internal/config"
	"shopsync/feedhub/internal/etsy"
	"shopsync/feedhub/internal/feed"
	"shopsync/feedhub/internal/model"
	"shopsync/feedhub/internal/repository"
)

const feedContentType = "text/csv; charset=utf-8"

// Catalog is the slice of the marketplace client the pipeline needs.
type Catalog interface {
	GetShop(ctx context.Context, shopID string) (*etsy.Shop, error)
	GetShopByName(ctx context.Context, name string) (*etsy.Shop, error)
	GetShopListings(ctx context.Context, shopID string) ([]etsy.Listing, error)
	GetListingsWithImages(ctx context.Context, listingIDs []int64) (map[int64][]etsy.ListingImage, error)
}

// TokenInfo exposes the stored token record for status reporting and
// shop-id caching.
type TokenInfo interface {
	Current(ctx context.Context) (*model.TokenRecord, error)
	SetShopID(ctx context.Context, shopID string) error
}

// SyncStatus is the connection summary the dashboard polls.
type SyncStatus struct {
	Connected      bool           `json:"connected"`
	UserID         string         `json:"user_id,omitempty"`
	ShopID         string         `json:"shop_id,omitempty"`
	TokenExpiresAt *time.Time     `json:"token_expires_at,omitempty"`
	LastRun        *model.SyncRun `json:"last_run,omitempty"`
}

type SyncService interface {
	Run(ctx context.Context, trigger model.RunTrigger) (*model.SyncRun, error)
	Status(ctx context.Context) (*SyncStatus, error)
	RecentRuns(ctx context.Context, limit int) ([]model.SyncRun, error)
}

type syncService struct {
	catalog   Catalog
	tokens    TokenInfo
	runs      repository.SyncRunRepository
	feedStore repository.FeedStore
	etsyCfg   config.EtsyConfig
	syncCfg   config.SyncConfig
	logger    *zap.Logger

	// runMu rejects overlapping runs within this process. Cross-process
	// overlap is tolerated: both runs draw from the shared rate budget.
	runMu   sync.Mutex
	nowFunc func() time.Time
}

func NewSyncService(
	catalog Catalog,
	tokens TokenInfo,
	runs repository.SyncRunRepository,
	feedStore repository.FeedStore,
	etsyCfg config.EtsyConfig,
	syncCfg config.SyncConfig,
	logger *zap.Logger,
) SyncService {
	return &syncService{
		catalog:   catalog,
		tokens:    tokens,
		runs:      runs,
		feedStore: feedStore,
		etsyCfg:   etsyCfg,
		syncCfg:   syncCfg,
		logger:    logger,
		nowFunc:   time.Now,
	}
}

// Run executes the full fetch→transform→upload pipeline and records the
// outcome. The returned run is also persisted; persistence failures are
// logged, never allowed to mask the pipeline outcome.
func (s *syncService) Run(ctx context.Context, trigger model.RunTrigger) (*model.SyncRun, error) {
	if !s.runMu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.runMu.Unlock()

	started := s.nowFunc()
	s.logger.Info("sync run started", zap.String("trigger", string(trigger)))

	count, feedURL, err := s.pipeline(ctx)

	run := &model.SyncRun{
		Trigger:    trigger,
		StartedAt:  started,
		FinishedAt: s.nowFunc(),
	}
	if err != nil {
		run.Status = model.RunStatusFailed
		run.ErrorCode = ClassifyError(err)
		run.ErrorMessage = truncateMessage(err.Error())
		if persistErr := s.runs.Create(ctx, run); persistErr != nil {
			s.logger.Error("persist failure record", zap.Error(persistErr))
		}
		s.logger.Error("sync run failed",
			zap.String("code", run.ErrorCode),
			zap.Error(err),
		)
		return run, err
	}

	run.Status = model.RunStatusSuccess
	run.ListingsCount = count
	run.FeedURL = feedURL
	if persistErr := s.runs.Create(ctx, run); persistErr != nil {
		s.logger.Error("persist success record", zap.Error(persistErr))
	}
	s.logger.Info("sync run finished",
		zap.Int("listings", count),
		zap.String("feed_url", feedURL),
		zap.Duration("took", run.FinishedAt.Sub(started)),
	)
	return run, nil
}

func (s *syncService) pipeline(ctx context.Context) (int, string, error) {
	shop, err := s.resolveShop(ctx)
	if err != nil {
		return 0, "", err
	}

	shopID := strconv.FormatInt(shop.ShopID, 10)
	listings, err := s.catalog.GetShopListings(ctx, shopID)
	if err != nil {
		return 0, "", err
	}

	ids := make([]int64, len(listings))
	for i := range listings {
		ids[i] = listings[i].ListingID
	}
	images, err := s.catalog.GetListingsWithImages(ctx, ids)
	if err != nil {
		return 0, "", err
	}

	records := feed.Transform(shop, listings, images)
	content, err := feed.RenderCSV(records)
	if err != nil {
		return 0, "", fmt.Errorf("render feed: %w", err)
	}

	feedURL, err := s.feedStore.Put(ctx, s.syncCfg.FeedObject, content, feedContentType)
	if err != nil {
		return 0, "", &StorageError{Op: "upload feed", Err: err}
	}
	return len(listings), feedURL, nil
}

// resolveShop picks the shop to sync: the configured id wins, then the id
// cached on the token record, then a name search whose result is cached
// back best-effort.
func (s *syncService) resolveShop(ctx context.Context) (*etsy.Shop, error) {
	if s.etsyCfg.ShopID != "" {
		return s.catalog.GetShop(ctx, s.etsyCfg.ShopID)
	}
	if rec, err := s.tokens.Current(ctx); err == nil && rec.ShopID != "" {
		return s.catalog.GetShop(ctx, rec.ShopID)
	}
	if s.etsyCfg.ShopName != "" {
		shop, err := s.catalog.GetShopByName(ctx, s.etsyCfg.ShopName)
		if err != nil {
			return nil, err
		}
		if err := s.tokens.SetShopID(ctx, strconv.FormatInt(shop.ShopID, 10)); err != nil {
			s.logger.Warn("cache resolved shop id", zap.Error(err))
		}
		return shop, nil
	}
	return nil, ErrShopNotConfigured
}

// Status reports whether a shop is connected and how the last run went.
func (s *syncService) Status(ctx context.Context) (*SyncStatus, error) {
	status := &SyncStatus{}

	rec, err := s.tokens.Current(ctx)
	switch {
	case err == nil:
		status.Connected = true
		status.UserID = rec.UserID
		status.ShopID = rec.ShopID
		if s.etsyCfg.ShopID != "" {
			status.ShopID = s.etsyCfg.ShopID
		}
		expires := rec.ExpiresAt
		status.TokenExpiresAt = &expires
	case errors.Is(err, etsy.ErrNotAuthorized):
		// Not connected yet.
	default:
		return nil, err
	}

	latest, err := s.runs.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("load latest run: %w", err)
	}
	status.LastRun = latest
	return status, nil
}

func (s *syncService) RecentRuns(ctx context.Context, limit int) ([]model.SyncRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.runs.List(ctx, limit)
}

// truncateMessage keeps persisted error messages inside the column limit.
func truncateMessage(msg string) string {
	const maxLen = 1000
	if len(msg) > maxLen {
		return msg[:maxLen]
	}
	return msg
}
