package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/okian/verdict/internal/domain/annotate"
	"github.com/okian/verdict/internal/domain/forecast"
	"github.com/okian/verdict/internal/domain/model"
	"github.com/okian/verdict/internal/domain/scope"
	"github.com/okian/verdict/pkg/logger"
)

// RepRollup breaks the caller's view down by visible rep. Each rep gets
// a narrowed single-owner scope, rep-level quota, and the same forecast math
// as Forecast. A rep's name only claims deals without an owner id, and only
// when no other visible rep shares it. Reps come back sorted by name then id.
func (s *Service) RepRollup(ctx context.Context, req Request) (*RepReport, error) {
	periodID := strings.TrimSpace(req.PeriodID)
	if periodID == "" {
		return nil, ErrMissingPeriod
	}
	if err := req.Caller.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCaller, err)
	}
	orgID := req.Caller.OrgID
	out := &RepReport{OrgID: orgID, PeriodID: periodID, Reps: []RepForecast{}, GeneratedAt: s.now().UTC()}

	sc, err := s.resolver.Resolve(ctx, req.Caller)
	if err != nil {
		return nil, fmt.Errorf("resolve scope: %w", err)
	}
	if sc.Empty() {
		out.Signals.ScopeEmpty = true
		return out, nil
	}

	period, prev, found, err := s.resolveWindow(ctx, orgID, periodID, req.PreviousPeriodID)
	if err != nil {
		return nil, err
	}
	if !found {
		out.Signals.PeriodNotFound = true
		return out, nil
	}
	out.Signals.NoPreviousPeriod = prev == nil

	reps, err := s.resolver.VisibleReps(ctx, orgID, sc)
	if err != nil {
		return nil, err
	}
	if len(reps) == 0 {
		return out, nil
	}

	// Previous deals are not needed; the quota read happens per rep below.
	in, err := s.load(ctx, orgID, period, nil, "", sc)
	if err != nil {
		return nil, err
	}
	all := annotate.All(visible(orgID, sc, in.deals), in.matcher)

	// A name shared by two visible reps cannot attribute id-less deals.
	names := make(map[string]int, len(reps))
	for _, rep := range reps {
		names[scope.NormalizeName(rep.Name)]++
	}

	results := make([]RepForecast, len(reps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fetchConcurrency)
	for i, rep := range reps {
		g.Go(func() error {
			narrowed := sc.Narrow(rep, names[scope.NormalizeName(rep.Name)] == 1)
			var own []annotate.Deal
			for j := range all {
				if narrowed.Contains(&all[j].Deal) {
					own = append(own, all[j])
				}
			}
			if err := s.wait(gctx); err != nil {
				return err
			}
			quota, err := s.store.Quota(gctx, orgID, period.ID, model.LevelRep, narrowed)
			if err != nil {
				return fmt.Errorf("load quota for rep %s: %w", rep.ID, err)
			}
			inQuarter := annotate.ClosedIn(own, period)
			totals := forecast.Summarize(inQuarter)
			results[i] = RepForecast{
				Rep:      rep,
				Totals:   totals,
				Forecast: forecast.Weigh(totals, forecast.AggModifiers(inQuarter), in.probs, quota),
				Coverage: forecast.CoverageOf(totals, quota, s.thresholds),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error(ctx, "rep rollup failed", logger.String("org_id", orgID), logger.Error(err))
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].Rep, results[j].Rep
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	out.Reps = results
	return out, nil
}
