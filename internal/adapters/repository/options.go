// Package repository defines the record and binding stores and their gorm
// implementation.
package repository

import "github.com/okian/slashboard/pkg/logger"

// Option applies a configuration option to the GormStore.
type Option func(*GormStore)

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *GormStore) {
		if l != nil {
			s.logger = l
		}
	}
}
