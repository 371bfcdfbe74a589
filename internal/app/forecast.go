package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/verdict/internal/domain/annotate"
	"github.com/okian/verdict/internal/domain/channel"
	"github.com/okian/verdict/internal/domain/forecast"
	"github.com/okian/verdict/internal/domain/health"
	"github.com/okian/verdict/internal/domain/model"
	"github.com/okian/verdict/internal/domain/scope"
	"github.com/okian/verdict/pkg/logger"
	"github.com/okian/verdict/pkg/metrics"
)

// Forecast computes the caller's report for req.PeriodID. A restricted caller
// whose scope resolves to nobody gets an all-zero report with
// Signals.ScopeEmpty set; an unknown period gets one with PeriodNotFound.
// Neither is an error: Signals.Err surfaces them for callers that want one.
func (s *Service) Forecast(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()
	rep, outcome, err := s.forecast(ctx, req)
	metrics.RecordComputeLatency(float64(time.Since(start).Milliseconds()))
	metrics.RecordComputation(outcome)
	switch outcome {
	case metrics.OutcomeOK:
		s.count(func(c *counters) { c.computed++ })
	case metrics.OutcomeCached:
		s.count(func(c *counters) { c.cached++ })
	case metrics.OutcomeScopeEmpty:
		s.count(func(c *counters) { c.scopeEmpty++ })
	case metrics.OutcomePeriodNotFound:
		s.count(func(c *counters) { c.notFound++ })
	default:
		s.count(func(c *counters) { c.failed++ })
	}
	return rep, err
}

func (s *Service) forecast(ctx context.Context, req Request) (*Report, string, error) {
	periodID := strings.TrimSpace(req.PeriodID)
	if periodID == "" {
		return nil, metrics.OutcomeError, ErrMissingPeriod
	}
	if err := req.Caller.Validate(); err != nil {
		return nil, metrics.OutcomeError, fmt.Errorf("%w: %w", ErrInvalidCaller, err)
	}
	orgID := req.Caller.OrgID
	level := req.Caller.QuotaLevel()

	sc, err := s.resolver.Resolve(ctx, req.Caller)
	if err != nil {
		s.logger.Error(ctx, "scope resolution failed", logger.String("org_id", orgID), logger.Error(err))
		return nil, metrics.OutcomeError, fmt.Errorf("resolve scope: %w", err)
	}
	if sc.Empty() {
		metrics.RecordScopeFailClosed()
		s.logger.Warn(ctx, "restricted caller resolved to an empty scope",
			logger.String("org_id", orgID),
			logger.String("user_id", req.Caller.UserID),
			logger.String("role", string(req.Caller.Role)),
		)
		r := s.zeroReport(orgID, periodID, sc, level)
		r.Signals.ScopeEmpty = true
		return r, metrics.OutcomeScopeEmpty, nil
	}

	key := s.cacheKey(orgID, periodID, req.PreviousPeriodID, sc, level)
	if cached, ok := s.cache.Get(ctx, key); ok {
		metrics.RecordCacheHit()
		return cached, metrics.OutcomeCached, nil
	}
	metrics.RecordCacheMiss()

	period, prev, found, err := s.resolveWindow(ctx, orgID, periodID, req.PreviousPeriodID)
	if err != nil {
		return nil, metrics.OutcomeError, err
	}
	if !found {
		s.logger.Info(ctx, "quota period not found", logger.String("org_id", orgID), logger.String("period_id", periodID))
		r := s.zeroReport(orgID, periodID, sc, level)
		r.Signals.PeriodNotFound = true
		return r, metrics.OutcomePeriodNotFound, nil
	}

	in, err := s.load(ctx, orgID, period, prev, level, sc)
	if err != nil {
		return nil, metrics.OutcomeError, err
	}

	deals := annotate.All(visible(orgID, sc, in.deals), in.matcher)
	prevDeals := annotate.All(visible(orgID, sc, in.prevDeals), in.matcher)

	r := &Report{
		OrgID:          orgID,
		PeriodID:       periodID,
		Period:         &period,
		Previous:       prev,
		Scope:          sc.Summary(),
		QuotaLevel:     level,
		Probabilities:  in.probs,
		DealsEvaluated: len(deals),
		RulesRejected:  len(in.matcher.Rejected()),
		Signals:        Signals{NoPreviousPeriod: prev == nil},
		GeneratedAt:    s.now().UTC(),
	}

	var g errgroup.Group
	g.Go(func() error {
		r.Forecast = forecast.Aggregate(forecast.Input{
			Period:        period,
			Previous:      prev,
			Deals:         deals,
			PreviousDeals: prevDeals,
			Probabilities: in.probs,
			Quota:         in.quota,
			Thresholds:    s.thresholds,
			Now:           r.GeneratedAt,
		})
		return nil
	})
	g.Go(func() error {
		r.Channel = channel.Score(deals, period, s.channelOpts)
		return nil
	})
	_ = g.Wait()

	metrics.RecordDealsEvaluated(len(deals))
	s.cache.Put(ctx, key, r)
	metrics.UpdateCacheSize(s.cache.Size())

	s.logger.Debug(ctx, "forecast computed",
		logger.String("org_id", orgID),
		logger.String("period_id", periodID),
		logger.Int("deals", len(deals)),
		logger.Float64("ai_forecast", r.Forecast.Forecast.AI),
	)
	return r, metrics.OutcomeOK, nil
}

// zeroReport is the all-zero report for a caller that sees nothing or whose
// period does not resolve.
func (s *Service) zeroReport(orgID, periodID string, sc scope.Scope, level model.RoleLevel) *Report {
	return &Report{
		OrgID:         orgID,
		PeriodID:      periodID,
		Scope:         sc.Summary(),
		QuotaLevel:    level,
		Probabilities: s.defaults,
		Forecast:      forecast.Zero(s.thresholds),
		Channel:       channel.Score(nil, model.QuotaPeriod{}, s.channelOpts),
		GeneratedAt:   s.now().UTC(),
	}
}

// cacheKey identifies a report. The day component expires cohort ages that
// depend on "today".
func (s *Service) cacheKey(orgID, periodID, prevID string, sc scope.Scope, level model.RoleLevel) string {
	var b strings.Builder
	b.WriteString(orgID)
	b.WriteByte('|')
	b.WriteString(periodID)
	b.WriteByte('|')
	b.WriteString(strings.TrimSpace(prevID))
	b.WriteByte('|')
	b.WriteString(strconv.FormatUint(sc.Fingerprint(), 16))
	b.WriteByte('|')
	b.WriteString(string(level))
	b.WriteByte('|')
	b.WriteString(model.DateOf(s.now()).Format(time.DateOnly))
	return b.String()
}

// resolveWindow finds the requested period and its predecessor. An explicit
// previous id that does not resolve is treated as no predecessor.
func (s *Service) resolveWindow(ctx context.Context, orgID, periodID, prevID string) (model.QuotaPeriod, *model.QuotaPeriod, bool, error) {
	if err := s.wait(ctx); err != nil {
		return model.QuotaPeriod{}, nil, false, err
	}
	periods, err := s.store.Periods(ctx, orgID)
	if err != nil {
		return model.QuotaPeriod{}, nil, false, fmt.Errorf("load periods: %w", err)
	}
	period, ok := model.FindPeriod(periods, periodID)
	if !ok || period.OrgID != orgID {
		return model.QuotaPeriod{}, nil, false, nil
	}

	var prev model.QuotaPeriod
	var found bool
	if id := strings.TrimSpace(prevID); id != "" {
		prev, found = model.FindPeriod(periods, id)
		found = found && prev.OrgID == orgID
	} else {
		prev, found = model.PreviousPeriod(periods, period)
	}
	if !found {
		return period, nil, true, nil
	}
	return period, &prev, true, nil
}

// loaded is one request's store reads.
type loaded struct {
	matcher   *health.Matcher
	probs     model.StageProbabilities
	deals     []model.Deal
	prevDeals []model.Deal
	quota     float64
}

// load fetches config, deals and quota with bounded concurrency. An empty
// level skips the quota read.
func (s *Service) load(ctx context.Context, orgID string, period model.QuotaPeriod, prev *model.QuotaPeriod, level model.RoleLevel, sc scope.Scope) (*loaded, error) {
	var (
		out loaded
		cfg model.OrgConfig
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fetchConcurrency)

	g.Go(func() error {
		if err := s.wait(gctx); err != nil {
			return err
		}
		c, err := s.store.OrgConfig(gctx, orgID)
		if err != nil {
			return fmt.Errorf("load org config: %w", err)
		}
		cfg = c
		return nil
	})
	g.Go(func() error {
		if err := s.wait(gctx); err != nil {
			return err
		}
		d, err := s.store.Deals(gctx, orgID, period)
		if err != nil {
			return fmt.Errorf("load deals: %w", err)
		}
		out.deals = d
		return nil
	})
	if prev != nil {
		g.Go(func() error {
			if err := s.wait(gctx); err != nil {
				return err
			}
			d, err := s.store.Deals(gctx, orgID, *prev)
			if err != nil {
				return fmt.Errorf("load previous deals: %w", err)
			}
			out.prevDeals = d
			return nil
		})
	}
	if level != "" {
		g.Go(func() error {
			if err := s.wait(gctx); err != nil {
				return err
			}
			q, err := s.store.Quota(gctx, orgID, period.ID, level, sc)
			if err != nil {
				return fmt.Errorf("load quota: %w", err)
			}
			out.quota = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error(ctx, "store fetch failed", logger.String("org_id", orgID), logger.Error(err))
		return nil, err
	}

	out.matcher = health.NewMatcher(orgID, cfg.Rules)
	for _, rej := range out.matcher.Rejected() {
		metrics.RecordRuleRejected()
		s.logger.Warn(ctx, "health rule rejected",
			logger.String("org_id", orgID),
			logger.String("rule_id", rej.Rule.ID),
			logger.Error(rej.Err),
		)
	}
	out.probs = s.defaults
	if cfg.Probabilities != nil {
		out.probs = cfg.Probabilities.Normalize(s.defaults)
	}
	return &out, nil
}

// visible returns the deals of orgID inside sc.
func visible(orgID string, sc scope.Scope, deals []model.Deal) []model.Deal {
	in := sc.Filter(deals)
	out := make([]model.Deal, 0, len(in))
	for _, d := range in {
		if d.OrgID == orgID {
			out = append(out, d)
		}
	}
	return out
}
