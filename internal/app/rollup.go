package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/okian/verdict/internal/domain/channel"
	"github.com/okian/verdict/internal/domain/classify"
	"github.com/okian/verdict/internal/domain/model"
	"github.com/okian/verdict/internal/domain/ratio"
	"github.com/okian/verdict/pkg/logger"
	"github.com/okian/verdict/pkg/metrics"
)

// BuildRollup computes the daily rollup rows for orgID from its full deal
// snapshot, one row per (motion, classification) pair, sorted by workflow
// then stage.
func (s *Service) BuildRollup(ctx context.Context, orgID string, day time.Time) ([]model.RollupRow, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	deals, err := s.store.Snapshot(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return rollupRows(orgID, model.DateOf(day), deals), nil
}

// RefreshOrg rebuilds and upserts one org's rollup for day.
func (s *Service) RefreshOrg(ctx context.Context, orgID string, day time.Time) (int, error) {
	rows, err := s.BuildRollup(ctx, orgID, day)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := s.store.UpsertRollups(ctx, rows); err != nil {
		return 0, fmt.Errorf("write rollup: %w", err)
	}
	metrics.RecordRollupRows(len(rows))
	return len(rows), nil
}

// RefreshRollups rebuilds every org's rollup for day. A failing org does not
// stop the others; their errors are joined.
func (s *Service) RefreshRollups(ctx context.Context, day time.Time) (int, error) {
	orgs, err := s.store.Orgs(ctx)
	if err != nil {
		metrics.RecordRollupRun(metrics.OutcomeError)
		return 0, fmt.Errorf("list orgs: %w", err)
	}
	total := 0
	var errs []error
	for _, org := range orgs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		n, err := s.RefreshOrg(ctx, org, day)
		if err != nil {
			s.logger.Error(ctx, "rollup refresh failed", logger.String("org_id", org), logger.Error(err))
			errs = append(errs, fmt.Errorf("org %s: %w", org, err))
			continue
		}
		total += n
	}
	if err := errors.Join(errs...); err != nil {
		metrics.RecordRollupRun(metrics.OutcomeError)
		return total, err
	}
	metrics.RecordRollupRun(metrics.OutcomeOK)
	s.logger.Info(ctx, "rollups refreshed", logger.Int("orgs", len(orgs)), logger.Int("rows", total))
	return total, nil
}

type rollupKey struct {
	workflow string
	stage    string
}

type rollupGroup struct {
	amounts []float64
	health  []float64
}

func rollupRows(orgID string, day time.Time, deals []model.Deal) []model.RollupRow {
	groups := make(map[rollupKey]*rollupGroup)
	for i := range deals {
		d := &deals[i]
		if d.OrgID != orgID {
			continue
		}
		k := rollupKey{
			workflow: string(channel.MotionOf(d)),
			stage:    classify.Classify(d.Stage).Label(),
		}
		g, ok := groups[k]
		if !ok {
			g = &rollupGroup{}
			groups[k] = g
		}
		g.amounts = append(g.amounts, d.Amount)
		if d.Scored() {
			g.health = append(g.health, d.HealthScore)
		}
	}

	rows := make([]model.RollupRow, 0, len(groups))
	for k, g := range groups {
		sort.Float64s(g.amounts)
		sum := 0.0
		for _, a := range g.amounts {
			sum += a
		}
		rows = append(rows, model.RollupRow{
			Day:         day,
			OrgID:       orgID,
			Workflow:    k.workflow,
			Stage:       k.stage,
			DealCount:   len(g.amounts),
			TotalAmount: sum,
			P50Amount:   nearestRank(g.amounts, 0.5),
			P90Amount:   nearestRank(g.amounts, 0.9),
			AvgHealth:   ratio.Mean(g.health),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Workflow != rows[j].Workflow {
			return rows[i].Workflow < rows[j].Workflow
		}
		return rows[i].Stage < rows[j].Stage
	})
	return rows
}

// nearestRank returns the p-th percentile of sorted by the nearest-rank method.
func nearestRank(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
