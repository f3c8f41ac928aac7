package render

import "errors"

// ErrNothingToRender is returned for a sheet without rows. Callers should send
// EmptyMessage instead.
var ErrNothingToRender = errors.New("render: no rows")
