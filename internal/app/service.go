// Package service computes scope-restricted forecast reports from the
// read-only store and maintains the daily rollup cache.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/verdict/internal/domain/channel"
	"github.com/okian/verdict/internal/domain/forecast"
	"github.com/okian/verdict/internal/domain/memo"
	"github.com/okian/verdict/internal/domain/model"
	"github.com/okian/verdict/internal/domain/scope"
	"github.com/okian/verdict/pkg/logger"
)

// Service implements the forecast API dependencies.
type Service struct {
	store    Store
	resolver *scope.Resolver

	// Configuration
	fetchConcurrency int
	limiter          *rate.Limiter
	defaults         model.StageProbabilities
	thresholds       forecast.Thresholds
	channelOpts      channel.Options

	cache memo.Cache[*Report]
	now   func() time.Time

	mu      sync.Mutex
	started time.Time
	stats   counters

	logger logger.Logger
}

type counters struct {
	computed   int64
	cached     int64
	scopeEmpty int64
	notFound   int64
	failed     int64
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFetchConcurrency bounds parallel store reads per request.
func WithFetchConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.fetchConcurrency = n
		}
	}
}

// WithRateLimit throttles store reads to perSecond; zero disables throttling.
func WithRateLimit(perSecond float64) Option {
	return func(s *Service) {
		if perSecond <= 0 {
			s.limiter = nil
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithCache memoises reports. Reports served from the cache must not be
// mutated by callers.
func WithCache(c memo.Cache[*Report]) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithDefaults sets the fallback stage probabilities.
func WithDefaults(p model.StageProbabilities) Option {
	return func(s *Service) {
		s.defaults = p.Normalize(model.DefaultStageProbabilities())
	}
}

// WithThresholds sets the coverage tier cutoffs.
func WithThresholds(th forecast.Thresholds) Option {
	return func(s *Service) {
		s.thresholds = th
	}
}

// WithChannelOptions sets the channel scoring options.
func WithChannelOptions(o channel.Options) Option {
	return func(s *Service) {
		s.channelOpts = o
	}
}

// WithClock overrides the clock used for "today".
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service over store.
func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("service: nil store")
	}
	s := &Service{
		store:            store,
		resolver:         scope.NewResolver(store),
		fetchConcurrency: runtime.NumCPU(),
		defaults:         model.DefaultStageProbabilities(),
		thresholds:       forecast.DefaultThresholds(),
		channelOpts:      channel.DefaultOptions(),
		cache:            memo.Nop[*Report](),
		now:              time.Now,
		logger:           logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.started = s.now()
	return s, nil
}

// Purge drops every memoised report. Call it after the snapshot is reloaded.
func (s *Service) Purge(ctx context.Context) {
	s.cache.Purge(ctx)
}

// GetStats returns service statistics.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.Lock()
	c := s.stats
	s.mu.Unlock()

	return map[string]interface{}{
		"computed":          c.computed,
		"cached":            c.cached,
		"scope_empty":       c.scopeEmpty,
		"period_not_found":  c.notFound,
		"failed":            c.failed,
		"cache_size":        s.cache.Size(),
		"fetch_concurrency": s.fetchConcurrency,
		"uptime_seconds":    int64(s.now().Sub(s.started).Seconds()),
	}
}

func (s *Service) count(f func(*counters)) {
	s.mu.Lock()
	f(&s.stats)
	s.mu.Unlock()
}

// wait blocks on the fetch limiter, if any.
func (s *Service) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}
