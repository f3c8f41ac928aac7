package service

import (
	"time"

	"github.com/okian/slashboard/internal/adapters/assets"
	"github.com/okian/slashboard/internal/adapters/render"
	"github.com/okian/slashboard/internal/adapters/upstream"
	"github.com/okian/slashboard/internal/config"
	"github.com/okian/slashboard/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig replaces the default configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAssetSource replaces the HTTP image source.
func WithAssetSource(src assets.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// WithUpstream replaces the game API client selected by configuration.
func WithUpstream(c upstream.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.client = c
		}
	}
}

// WithRenderer replaces the PNG renderer.
func WithRenderer(r render.Renderer) Option {
	return func(s *Service) {
		if r != nil {
			s.renderer = r
		}
	}
}

// WithClock sets the time source used for retention cycles.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
