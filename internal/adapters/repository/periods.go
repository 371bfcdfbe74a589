package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/verdict/internal/domain/model"
	"github.com/okian/verdict/pkg/logger"
)

// Periods returns the org's quota periods ordered by descending start date.
// Rows with unparsable dates are skipped.
func (s *Store) Periods(ctx context.Context, orgID string) (periods []model.QuotaPeriod, err error) {
	done := track(SourcePeriods)
	defer func() { done(err) }()

	if err := requireOrg(orgID); err != nil {
		return nil, err
	}

	const q = `SELECT id, org_id, period_start, period_end, fiscal_year, fiscal_quarter
FROM quota_periods WHERE org_id = ? ORDER BY period_start DESC`
	rows, err := s.db.QueryContext(ctx, q, orgID)
	if err != nil {
		return nil, fmt.Errorf("query periods: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p          model.QuotaPeriod
			start, end string
		)
		if err := rows.Scan(&p.ID, &p.OrgID, &start, &end, &p.FiscalYear, &p.FiscalQuarter); err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		var okStart, okEnd bool
		p.Start, okStart = model.CoerceTime(start)
		p.End, okEnd = model.CoerceTime(end)
		if !okStart || !okEnd || p.Start.IsZero() || p.End.IsZero() {
			s.log.Warn(ctx, "skipping quota period with bad range", logger.String("period_id", p.ID))
			continue
		}
		periods = append(periods, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate periods: %w", err)
	}
	return periods, nil
}

// UpsertPeriod writes a quota period.
func (s *Store) UpsertPeriod(ctx context.Context, p model.QuotaPeriod) error {
	if p.ID == "" || p.OrgID == "" || p.End.Before(p.Start) {
		return fmt.Errorf("%w: period %q", ErrInvalidData, p.ID)
	}
	const q = `INSERT INTO quota_periods (id, org_id, period_start, period_end, fiscal_year, fiscal_quarter)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(org_id, id) DO UPDATE SET
	period_start = excluded.period_start,
	period_end = excluded.period_end,
	fiscal_year = excluded.fiscal_year,
	fiscal_quarter = excluded.fiscal_quarter`
	_, err := s.db.ExecContext(ctx, q, p.ID, p.OrgID, p.Start.UTC().Format(dateLayout), p.End.UTC().Format(dateLayout),
		p.FiscalYear, p.FiscalQuarter)
	if err != nil {
		return fmt.Errorf("upsert period: %w", err)
	}
	return nil
}

func formatDay(t time.Time) string {
	return model.DateOf(t).Format(dateLayout)
}
