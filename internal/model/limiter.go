package model

import "time"

// LimiterState is the shared rate-limiter state persisted under
// "etsy_rate_limit" so that admission decisions survive process restarts.
// SecondStamps holds only timestamps inside the trailing one-second window
// at the time of any read; the limiter prunes stale entries before use.
// DailyCount resets when the clock passes DailyReset (next UTC midnight).
type LimiterState struct {
	DailyCount   int         `json:"daily_count"`
	DailyReset   time.Time   `json:"daily_reset"`
	SecondStamps []time.Time `json:"second_timestamps"`
}
