package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/okian/verdict/internal/domain/model"
)

// OrgConfig returns the org's stage probabilities and health rules. A missing
// probability row leaves Probabilities nil; NULL columns are reported as NaN
// so the caller's normalization substitutes its default.
func (s *Store) OrgConfig(ctx context.Context, orgID string) (cfg model.OrgConfig, err error) {
	done := track(SourceConfig)
	defer func() { done(err) }()

	if err := requireOrg(orgID); err != nil {
		return cfg, err
	}

	probs, err := s.probabilities(ctx, orgID)
	if err != nil {
		return cfg, err
	}
	rules, err := s.rules(ctx, orgID)
	if err != nil {
		return cfg, err
	}
	return model.OrgConfig{Probabilities: probs, Rules: rules}, nil
}

func (s *Store) probabilities(ctx context.Context, orgID string) (*model.StageProbabilities, error) {
	const q = `SELECT commit_p, best_case, pipeline FROM stage_probabilities WHERE org_id = ?`
	var c, b, p sql.NullFloat64
	err := s.db.QueryRowContext(ctx, q, orgID).Scan(&c, &b, &p)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query probabilities: %w", err)
	}
	return &model.StageProbabilities{Commit: nullOrNaN(c), BestCase: nullOrNaN(b), Pipeline: nullOrNaN(p)}, nil
}

func (s *Store) rules(ctx context.Context, orgID string) ([]model.HealthScoreRule, error) {
	const q = `SELECT id, org_id, mapped_bucket, min_score, max_score, suppression, probability_modifier
FROM health_rules WHERE org_id = ? ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, orgID)
	if err != nil {
		return nil, fmt.Errorf("query health rules: %w", err)
	}
	defer rows.Close()

	var out []model.HealthScoreRule
	for rows.Next() {
		var (
			r      model.HealthScoreRule
			bucket string
			suppr  int
			mod    sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.OrgID, &bucket, &r.MinScore, &r.MaxScore, &suppr, &mod); err != nil {
			return nil, fmt.Errorf("scan health rule: %w", err)
		}
		r.Bucket = model.Bucket(bucket)
		r.Suppression = suppr != 0
		if mod.Valid {
			v := mod.Float64
			r.ProbabilityModifier = &v
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate health rules: %w", err)
	}
	return out, nil
}

// SetProbabilities writes the org's stage probabilities.
func (s *Store) SetProbabilities(ctx context.Context, orgID string, p model.StageProbabilities) error {
	if err := requireOrg(orgID); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	const q = `INSERT INTO stage_probabilities (org_id, commit_p, best_case, pipeline) VALUES (?, ?, ?, ?)
ON CONFLICT(org_id) DO UPDATE SET commit_p = excluded.commit_p, best_case = excluded.best_case, pipeline = excluded.pipeline`
	if _, err := s.db.ExecContext(ctx, q, orgID, p.Commit, p.BestCase, p.Pipeline); err != nil {
		return fmt.Errorf("set probabilities: %w", err)
	}
	return nil
}

// UpsertRule writes a health score rule. Rules are stored as given; the
// engine validates them when it builds a matcher.
func (s *Store) UpsertRule(ctx context.Context, r model.HealthScoreRule) error {
	if r.ID == "" || r.OrgID == "" {
		return fmt.Errorf("%w: rule needs id and org_id", ErrInvalidData)
	}
	var mod sql.NullFloat64
	if r.ProbabilityModifier != nil {
		mod = sql.NullFloat64{Float64: *r.ProbabilityModifier, Valid: true}
	}
	suppr := 0
	if r.Suppression {
		suppr = 1
	}
	const q = `INSERT INTO health_rules (id, org_id, mapped_bucket, min_score, max_score, suppression, probability_modifier)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(org_id, id) DO UPDATE SET
	mapped_bucket = excluded.mapped_bucket,
	min_score = excluded.min_score,
	max_score = excluded.max_score,
	suppression = excluded.suppression,
	probability_modifier = excluded.probability_modifier`
	if _, err := s.db.ExecContext(ctx, q, r.ID, r.OrgID, string(r.Bucket), r.MinScore, r.MaxScore, suppr, mod); err != nil {
		return fmt.Errorf("upsert rule: %w", err)
	}
	return nil
}

func nullOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
