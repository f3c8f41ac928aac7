package worker

import (
	"github.com/okian/slashboard/pkg/logger"
)

// Option applies a configuration option to the IngestWorker.
type Option func(*IngestWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *IngestWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *IngestWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

func withStoredHook(fn func()) Option {
	return func(w *IngestWorker) {
		w.onStored = fn
	}
}
