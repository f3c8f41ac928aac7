package assets

import "errors"

var (
	// ErrFetch is returned when a remote image could not be downloaded.
	ErrFetch = errors.New("asset fetch failed")
	// ErrDecode is returned when downloaded bytes are not a supported image.
	ErrDecode = errors.New("asset decode failed")
	// ErrInvalidID is returned for identifiers that cannot name a remote image.
	ErrInvalidID = errors.New("invalid asset id")
)
