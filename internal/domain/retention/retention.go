// Package retention purges accumulated records once per fixed-length epoch.
package retention

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/slashboard/internal/adapters/marker"
	"github.com/okian/slashboard/pkg/logger"
	"github.com/okian/slashboard/pkg/metrics"
)

// Defaults for the competitive cycle.
const (
	DefaultLengthDays = 28
)

// DefaultOrigin is the first cycle boundary, 04:00 UTC+8.
var DefaultOrigin = time.Date(2025, time.August, 4, 4, 0, 0, 0, time.FixedZone("UTC+8", 8*60*60))

const day = 24 * time.Hour

// Purger deletes every stored record.
type Purger interface {
	PurgeAll(ctx context.Context) error
}

// Cycler decides whether the current epoch has already been cleaned.
type Cycler struct {
	purger     Purger
	marker     marker.Store
	origin     time.Time
	lengthDays int64
	now        func() time.Time
	logger     logger.Logger

	mu sync.Mutex
}

// New creates a cycler with the default origin and length.
func New(p Purger, m marker.Store, opts ...Option) *Cycler {
	c := &Cycler{
		purger:     p,
		marker:     m,
		origin:     DefaultOrigin,
		lengthDays: DefaultLengthDays,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("retention")
	}
	return c
}

// Epoch returns the cycle number containing now. Instants before origin give
// negative epochs.
func Epoch(now, origin time.Time, lengthDays int64) int64 {
	if lengthDays <= 0 {
		lengthDays = DefaultLengthDays
	}
	elapsed := now.Sub(origin)
	days := int64(elapsed / day)
	if elapsed < 0 && elapsed%day != 0 {
		days--
	}
	return floorDiv(days, lengthDays)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Current returns the epoch for the cycler's clock.
func (c *Cycler) Current() int64 {
	return Epoch(c.now(), c.origin, c.lengthDays)
}

// Check purges the store when the persisted marker differs from the current
// epoch and reports whether a purge happened. Failures are logged and leave
// the marker untouched so the next call retries.
func (c *Cycler) Check(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	epoch := c.Current()
	metrics.UpdateRetentionEpoch(epoch)

	last, err := c.marker.Load(ctx)
	switch {
	case err == nil && last == epoch:
		metrics.RecordRetentionCheck("fresh")
		return false
	case err != nil && !errors.Is(err, marker.ErrNoMarker):
		c.logger.Warn(ctx, "retention marker unreadable, treating as stale", logger.Error(err))
	}

	if err := c.purger.PurgeAll(ctx); err != nil {
		metrics.RecordRetentionCheck("purge_failed")
		c.logger.Error(ctx, "retention purge failed",
			logger.Int64("epoch", epoch),
			logger.Error(err),
		)
		return false
	}

	if err := c.marker.Save(ctx, epoch); err != nil {
		metrics.RecordRetentionCheck("marker_failed")
		c.logger.Error(ctx, "retention marker write failed",
			logger.Int64("epoch", epoch),
			logger.Error(err),
		)
		return true
	}

	metrics.RecordRetentionCheck("purged")
	c.logger.Info(ctx, "retention epoch cleaned",
		logger.Int64("epoch", epoch),
		logger.Int64("previous", last),
	)
	return true
}
