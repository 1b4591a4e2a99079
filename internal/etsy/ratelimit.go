package etsy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"shopsync/feedhub/internal/model"
	"shopsync/feedhub/internal/repository"
)

const (
	// qpsWindow is the sliding window the per-second budget applies to.
	qpsWindow = time.Second

	// waitBuffer pads the computed wait so the oldest stamp has actually
	// left the window when we wake up.
	waitBuffer = 50 * time.Millisecond
)

// Limiter enforces Etsy's per-second and per-day request budgets. State
// lives in the shared store so every process draining the same API key
// draws from one budget. Writes are last-writer-wins; the 429 handling
// in the executor is the backstop for transient over-admission.
type Limiter struct {
	store  repository.StateStore
	qps    int
	qpd    int
	logger *zap.Logger

	nowFunc   func() time.Time
	sleepFunc func(ctx context.Context, d time.Duration) error
}

func NewLimiter(store repository.StateStore, qps, qpd int, logger *zap.Logger) *Limiter {
	return &Limiter{
		store:     store,
		qps:       qps,
		qpd:       qpd,
		logger:    logger,
		nowFunc:   time.Now,
		sleepFunc: sleepContext,
	}
}

// Admit blocks until one request may be sent, then records it. It waits
// at most one window for a per-second slot and never waits for the daily
// budget: when that is spent it fails fast with a QuotaError carrying
// the reset time.
func (l *Limiter) Admit(ctx context.Context) error {
	state, err := l.load(ctx)
	if err != nil {
		return err
	}

	now := l.nowFunc()
	if !now.Before(state.DailyReset) {
		state.DailyCount = 0
		state.DailyReset = nextUTCMidnight(now)
	}
	if state.DailyCount >= l.qpd {
		l.logger.Warn("daily request quota exhausted",
			zap.Int("count", state.DailyCount),
			zap.Time("reset_at", state.DailyReset),
		)
		return &QuotaError{ResetAt: state.DailyReset}
	}

	state.SecondStamps = pruneStamps(state.SecondStamps, now)
	if len(state.SecondStamps) >= l.qps {
		// Stamps are appended in order, so the head is the oldest.
		wait := qpsWindow - now.Sub(state.SecondStamps[0]) + waitBuffer
		l.logger.Debug("per-second window full, waiting",
			zap.Duration("wait", wait),
		)
		if err := l.sleepFunc(ctx, wait); err != nil {
			return err
		}
		now = l.nowFunc()
		state.SecondStamps = pruneStamps(state.SecondStamps, now)
	}

	state.SecondStamps = append(state.SecondStamps, now)
	state.DailyCount++
	return l.save(ctx, state)
}

func (l *Limiter) load(ctx context.Context) (*model.LimiterState, error) {
	data, err := l.store.Get(ctx, repository.KeyRateLimit)
	if err != nil {
		return nil, fmt.Errorf("read limiter state: %w", err)
	}
	if data == nil {
		return &model.LimiterState{}, nil
	}
	var state model.LimiterState
	if err := json.Unmarshal(data, &state); err != nil {
		// A corrupt record must not wedge every request, so start over.
		l.logger.Warn("limiter state corrupt, resetting", zap.Error(err))
		return &model.LimiterState{}, nil
	}
	return &state, nil
}

func (l *Limiter) save(ctx context.Context, state *model.LimiterState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal limiter state: %w", err)
	}
	if err := l.store.Set(ctx, repository.KeyRateLimit, data, 0); err != nil {
		return fmt.Errorf("persist limiter state: %w", err)
	}
	return nil
}

func pruneStamps(stamps []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-qpsWindow)
	kept := make([]time.Time, 0, len(stamps))
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}

func nextUTCMidnight(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day()+1, 0, 0, 0, 0, time.UTC)
}

// sleepContext sleeps for d or until the context is done, whichever
// comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
