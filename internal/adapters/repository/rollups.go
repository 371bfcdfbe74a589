package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/okian/verdict/internal/domain/model"
)

// UpsertRollups writes rows keyed by (day, org, workflow, stage). Re-running
// a day replaces its rows.
func (s *Store) UpsertRollups(ctx context.Context, rows []model.RollupRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	const q = `INSERT INTO daily_rollups (day, org_id, workflow, stage, deal_count, total_amount, p50_amount, p90_amount, avg_health, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(day, org_id, workflow, stage) DO UPDATE SET
	deal_count = excluded.deal_count,
	total_amount = excluded.total_amount,
	p50_amount = excluded.p50_amount,
	p90_amount = excluded.p90_amount,
	avg_health = excluded.avg_health,
	updated_at = excluded.updated_at`
	stamp := s.now().Unix()
	for _, r := range rows {
		if r.OrgID == "" {
			return fmt.Errorf("%w: rollup row needs org_id", ErrInvalidData)
		}
		var health sql.NullFloat64
		if r.AvgHealth != nil {
			health = sql.NullFloat64{Float64: *r.AvgHealth, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, q, formatDay(r.Day), r.OrgID, r.Workflow, r.Stage, r.DealCount,
			r.TotalAmount, r.P50Amount, r.P90Amount, health, stamp); err != nil {
			return fmt.Errorf("upsert rollup: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rollups: %w", err)
	}
	return nil
}

// Rollups returns the rows stored for org on day.
func (s *Store) Rollups(ctx context.Context, orgID string, day time.Time) (out []model.RollupRow, err error) {
	done := track(SourceRollups)
	defer func() { done(err) }()

	const q = `SELECT day, org_id, workflow, stage, deal_count, total_amount, p50_amount, p90_amount, avg_health
FROM daily_rollups WHERE org_id = ? AND day = ? ORDER BY workflow, stage`
	rows, err := s.db.QueryContext(ctx, q, orgID, formatDay(day))
	if err != nil {
		return nil, fmt.Errorf("query rollups: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r      model.RollupRow
			d      string
			health sql.NullFloat64
		)
		if err := rows.Scan(&d, &r.OrgID, &r.Workflow, &r.Stage, &r.DealCount, &r.TotalAmount,
			&r.P50Amount, &r.P90Amount, &health); err != nil {
			return nil, fmt.Errorf("scan rollup: %w", err)
		}
		r.Day, _ = model.CoerceTime(d)
		if health.Valid {
			v := health.Float64
			r.AvgHealth = &v
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rollups: %w", err)
	}
	return out, nil
}
