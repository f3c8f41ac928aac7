package retention

import (
	"time"

	"github.com/okian/slashboard/pkg/logger"
)

// Option configures a Cycler.
type Option func(*Cycler)

// WithOrigin sets the first cycle boundary.
func WithOrigin(origin time.Time) Option {
	return func(c *Cycler) {
		if !origin.IsZero() {
			c.origin = origin
		}
	}
}

// WithLengthDays sets the cycle length. Non-positive values are ignored.
func WithLengthDays(days int) Option {
	return func(c *Cycler) {
		if days > 0 {
			c.lengthDays = int64(days)
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cycler) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Cycler) {
		c.logger = l
	}
}
