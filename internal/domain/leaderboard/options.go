package leaderboard

import "github.com/okian/slashboard/pkg/logger"

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		a.logger = l
	}
}
