package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/okian/verdict/internal/domain/model"
)

// Rep returns a single directory entry.
func (s *Store) Rep(ctx context.Context, orgID, repID string) (rep model.Rep, ok bool, err error) {
	done := track(SourceReps)
	defer func() { done(err) }()

	const q = `SELECT org_id, rep_id, name, manager_id FROM reps WHERE org_id = ? AND rep_id = ?`
	err = s.db.QueryRowContext(ctx, q, orgID, repID).Scan(&rep.OrgID, &rep.ID, &rep.Name, &rep.ManagerID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Rep{}, false, nil
	}
	if err != nil {
		return model.Rep{}, false, fmt.Errorf("query rep: %w", err)
	}
	return rep, true, nil
}

// DirectReports returns the reps managed by managerID.
func (s *Store) DirectReports(ctx context.Context, orgID, managerID string) (reps []model.Rep, err error) {
	done := track(SourceReps)
	defer func() { done(err) }()

	const q = `SELECT org_id, rep_id, name, manager_id FROM reps WHERE org_id = ? AND manager_id = ? ORDER BY rep_id`
	return s.queryReps(ctx, q, orgID, managerID)
}

// Reps returns the org's whole directory.
func (s *Store) Reps(ctx context.Context, orgID string) (reps []model.Rep, err error) {
	done := track(SourceReps)
	defer func() { done(err) }()

	const q = `SELECT org_id, rep_id, name, manager_id FROM reps WHERE org_id = ? ORDER BY rep_id`
	return s.queryReps(ctx, q, orgID)
}

func (s *Store) queryReps(ctx context.Context, q string, args ...any) ([]model.Rep, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query reps: %w", err)
	}
	defer rows.Close()

	var out []model.Rep
	for rows.Next() {
		var r model.Rep
		if err := rows.Scan(&r.OrgID, &r.ID, &r.Name, &r.ManagerID); err != nil {
			return nil, fmt.Errorf("scan rep: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reps: %w", err)
	}
	return out, nil
}

// UpsertRep writes a directory entry.
func (s *Store) UpsertRep(ctx context.Context, r model.Rep) error {
	if r.OrgID == "" || r.ID == "" {
		return fmt.Errorf("%w: rep needs org_id and rep_id", ErrInvalidData)
	}
	const q = `INSERT INTO reps (org_id, rep_id, name, manager_id) VALUES (?, ?, ?, ?)
ON CONFLICT(org_id, rep_id) DO UPDATE SET name = excluded.name, manager_id = excluded.manager_id`
	if _, err := s.db.ExecContext(ctx, q, r.OrgID, r.ID, r.Name, r.ManagerID); err != nil {
		return fmt.Errorf("upsert rep: %w", err)
	}
	return nil
}
