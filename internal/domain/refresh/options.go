package refresh

import "github.com/okian/slashboard/pkg/logger"

// Option configures a Refresher.
type Option func(*Refresher)

// WithConcurrency caps simultaneous accounts. Non-positive values are ignored.
func WithConcurrency(n int) Option {
	return func(r *Refresher) {
		if n > 0 {
			r.limit = n
		}
	}
}

// WithChallengeID selects which challenge results are stored.
func WithChallengeID(id int) Option {
	return func(r *Refresher) {
		if id > 0 {
			r.challengeID = id
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Refresher) {
		r.logger = l
	}
}
