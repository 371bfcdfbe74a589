package memo

import "time"

type settings struct {
	maxSize int
	ttl     time.Duration
	clock   func() time.Time
}

func defaultSettings() settings {
	return settings{maxSize: 1024, clock: time.Now}
}

// Option applies a configuration option to the cache.
type Option func(*settings)

// WithMaxSize sets the maximum number of entries.
// If maxSize <= 0 the cache is unbounded.
func WithMaxSize(maxSize int) Option {
	return func(s *settings) {
		s.maxSize = maxSize
	}
}

// WithTTL expires entries ttl after they are stored. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *settings) {
		if ttl >= 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.clock = now
		}
	}
}
