package loadgen

import "time"

// HTTP status code constants.
const (
	StatusOK              = 200
	StatusCreated         = 201
	StatusAccepted        = 202
	StatusTooManyRequests = 429
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	DrainPollInterval    = 100 * time.Millisecond
	ThrottleBackoff      = 50 * time.Millisecond
	MaxSubmitAttempts    = 5
	PercentageMultiplier = 100
)
