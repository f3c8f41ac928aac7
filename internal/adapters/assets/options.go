package assets

import (
	"time"

	"github.com/okian/slashboard/internal/adapters/imagecache"
	"github.com/okian/slashboard/pkg/logger"
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache sets the result cache. A nil cache keeps the default.
func WithCache(c imagecache.Cache) Option {
	return func(r *Resolver) {
		if c != nil {
			r.cache = c
		}
	}
}

// WithDefaultAvatar sets the character whose icon replaces failed avatars.
func WithDefaultAvatar(charID string) Option {
	return func(r *Resolver) {
		if charID != "" {
			r.defaultAvatar = charID
		}
	}
}

// WithSizes sets the output edge length of avatars and icons.
func WithSizes(avatar, icon int) Option {
	return func(r *Resolver) {
		if avatar > 0 {
			r.avatarSize = avatar
		}
		if icon > 0 {
			r.iconSize = icon
		}
	}
}

// WithFetchTimeout bounds each shared fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.fetchTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}
