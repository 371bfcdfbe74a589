package repository

import (
	"time"

	"github.com/okian/verdict/pkg/logger"
)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithLogger sets the logger used for coercion warnings.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source stamped on rollup writes.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}
