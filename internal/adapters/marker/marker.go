// Package marker persists the retention epoch that was last cleaned.
package marker

import (
	"context"
	"errors"
)

var (
	// ErrNoMarker is returned by Load when nothing has been saved yet.
	ErrNoMarker = errors.New("marker: not set")
	// ErrCorrupt is returned by Load when the stored value is not an integer.
	ErrCorrupt = errors.New("marker: corrupt value")
)

// Store reads and writes a single epoch number.
type Store interface {
	Load(ctx context.Context) (int64, error)
	Save(ctx context.Context, epoch int64) error
}
