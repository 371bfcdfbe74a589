package model

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Bucket is an open-forecast category.
type Bucket string

// Forecast buckets.
const (
	BucketCommit   Bucket = "commit"
	BucketBestCase Bucket = "best_case"
	BucketPipeline Bucket = "pipeline"
)

// Buckets lists every bucket in reporting order.
var Buckets = []Bucket{BucketCommit, BucketBestCase, BucketPipeline}

// Default stage probabilities used when an org has none configured.
const (
	DefaultCommitProbability   = 0.80
	DefaultBestCaseProbability = 0.325
	DefaultPipelineProbability = 0.10
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// StageProbabilities holds an org's fractional weight per bucket.
type StageProbabilities struct {
	Commit   float64 `json:"commit" validate:"gte=0,lte=1"`
	BestCase float64 `json:"best_case" validate:"gte=0,lte=1"`
	Pipeline float64 `json:"pipeline" validate:"gte=0,lte=1"`
}

// DefaultStageProbabilities returns {0.80, 0.325, 0.10}.
func DefaultStageProbabilities() StageProbabilities {
	return StageProbabilities{
		Commit:   DefaultCommitProbability,
		BestCase: DefaultBestCaseProbability,
		Pipeline: DefaultPipelineProbability,
	}
}

// For returns the probability for bucket b.
func (p StageProbabilities) For(b Bucket) float64 {
	switch b {
	case BucketCommit:
		return p.Commit
	case BucketBestCase:
		return p.BestCase
	default:
		return p.Pipeline
	}
}

// Normalize replaces every out-of-range value with the matching value from
// fallback. A value is out of range when it is NaN or outside [0, 1].
func (p StageProbabilities) Normalize(fallback StageProbabilities) StageProbabilities {
	out := p
	if validate.Var(p.Commit, "gte=0,lte=1") != nil {
		out.Commit = fallback.Commit
	}
	if validate.Var(p.BestCase, "gte=0,lte=1") != nil {
		out.BestCase = fallback.BestCase
	}
	if validate.Var(p.Pipeline, "gte=0,lte=1") != nil {
		out.Pipeline = fallback.Pipeline
	}
	return out
}

// Validate checks every probability lies in [0, 1].
func (p StageProbabilities) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("stage probabilities: %w", err)
	}
	return nil
}

// HealthScoreRule maps a health score band within a bucket to a modifier.
// A nil ProbabilityModifier means 1.0.
type HealthScoreRule struct {
	ID                  string   `json:"id,omitempty"`
	OrgID               string   `json:"org_id" validate:"required"`
	Bucket              Bucket   `json:"mapped_bucket" validate:"oneof=commit best_case pipeline"`
	MinScore            float64  `json:"min_score"`
	MaxScore            float64  `json:"max_score" validate:"gtefield=MinScore"`
	Suppression         bool     `json:"suppression"`
	ProbabilityModifier *float64 `json:"probability_modifier,omitempty" validate:"omitempty,gte=0"`
}

// Modifier returns the stored modifier, defaulting to 1.0.
func (r *HealthScoreRule) Modifier() float64 {
	if r.ProbabilityModifier == nil {
		return 1.0
	}
	return *r.ProbabilityModifier
}

// Validate checks the rule at the configuration boundary.
func (r *HealthScoreRule) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("health score rule %q: %w", r.ID, err)
	}
	return nil
}

// OrgConfig is the per-org configuration snapshot the engine reads.
type OrgConfig struct {
	Probabilities *StageProbabilities `json:"probabilities,omitempty"`
	Rules         []HealthScoreRule   `json:"rules"`
}
