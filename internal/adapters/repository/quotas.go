package repository

import (
	"context"
	"fmt"

	"github.com/okian/verdict/internal/domain/model"
	"github.com/okian/verdict/internal/domain/scope"
	"github.com/okian/verdict/pkg/metrics"
)

// Quota sums the quota rows of a period at level that belong to s. Company
// rows and unrestricted scopes ignore owner_ref. Rep rows count when their
// owner_ref is anywhere in s; manager and exec rows only when it names the
// scope's root, so a manager's total never includes sub-manager cells.
func (s *Store) Quota(ctx context.Context, orgID, periodID string, level model.RoleLevel, sc scope.Scope) (total float64, err error) {
	done := track(SourceQuota)
	defer func() { done(err) }()

	if err := requireOrg(orgID); err != nil {
		return 0, err
	}
	if sc.Empty() {
		return 0, nil
	}

	const q = `SELECT owner_ref, amount FROM quotas WHERE org_id = ? AND quota_period_id = ? AND role_level = ?`
	rows, err := s.db.QueryContext(ctx, q, orgID, periodID, string(level))
	if err != nil {
		return 0, fmt.Errorf("query quota: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var owner, raw string
		if err := rows.Scan(&owner, &raw); err != nil {
			return 0, fmt.Errorf("scan quota: %w", err)
		}
		if !quotaCounts(level, sc, owner) {
			continue
		}
		amt, ok := model.CoerceAmount(raw)
		if !ok {
			metrics.RecordMalformedField("quota_amount")
		}
		total += amt
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate quota: %w", err)
	}
	return total, nil
}

func quotaCounts(level model.RoleLevel, sc scope.Scope, owner string) bool {
	switch level {
	case model.LevelCompany:
		return true
	case model.LevelManager, model.LevelExec:
		return sc.MatchesRoot(owner)
	default:
		return sc.MatchesRef(owner)
	}
}

// UpsertQuota writes a quota cell.
func (s *Store) UpsertQuota(ctx context.Context, q model.Quota) error {
	if q.OrgID == "" || q.QuotaPeriodID == "" || q.RoleLevel == "" {
		return fmt.Errorf("%w: quota needs org, period and level", ErrInvalidData)
	}
	const stmt = `INSERT INTO quotas (org_id, quota_period_id, role_level, owner_ref, amount)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(org_id, quota_period_id, role_level, owner_ref) DO UPDATE SET amount = excluded.amount`
	_, err := s.db.ExecContext(ctx, stmt, q.OrgID, q.QuotaPeriodID, string(q.RoleLevel), q.OwnerRef,
		fmt.Sprintf("%.2f", q.Amount))
	if err != nil {
		return fmt.Errorf("upsert quota: %w", err)
	}
	return nil
}
