// Package health resolves an org's health score rules into a suppression flag
// and a probability modifier for a deal.
package health

import (
	"sort"

	"github.com/okian/verdict/internal/domain/model"
)

// Modifier is the resolved rule outcome for a deal.
type Modifier struct {
	Suppressed bool    `json:"suppressed"`
	Value      float64 `json:"modifier"`
	RuleID     string  `json:"rule_id,omitempty"`
}

// PassThrough is returned when no rule matches.
var PassThrough = Modifier{Value: 1.0}

// Matcher holds one org's validated rules grouped by bucket. It is immutable
// after construction and safe for concurrent use.
type Matcher struct {
	orgID    string
	byBucket map[model.Bucket][]model.HealthScoreRule
	rejected []RejectedRule
}

// RejectedRule records a rule dropped at construction and why.
type RejectedRule struct {
	Rule model.HealthScoreRule
	Err  error
}

// NewMatcher builds a Matcher for orgID. Rules belonging to other orgs or
// failing validation are dropped and reported by Rejected.
func NewMatcher(orgID string, rules []model.HealthScoreRule) *Matcher {
	m := &Matcher{
		orgID:    orgID,
		byBucket: make(map[model.Bucket][]model.HealthScoreRule),
	}
	for _, r := range rules {
		if r.OrgID != orgID {
			m.rejected = append(m.rejected, RejectedRule{Rule: r, Err: ErrForeignOrg})
			continue
		}
		if err := r.Validate(); err != nil {
			m.rejected = append(m.rejected, RejectedRule{Rule: r, Err: err})
			continue
		}
		m.byBucket[r.Bucket] = append(m.byBucket[r.Bucket], r)
	}
	// Highest min_score first; narrower band first on ties; input order last.
	for b := range m.byBucket {
		rs := m.byBucket[b]
		sort.SliceStable(rs, func(i, j int) bool {
			if rs[i].MinScore != rs[j].MinScore {
				return rs[i].MinScore > rs[j].MinScore
			}
			return rs[i].MaxScore < rs[j].MaxScore
		})
	}
	return m
}

// Rejected returns the rules dropped by NewMatcher.
func (m *Matcher) Rejected() []RejectedRule {
	return m.rejected
}

// Len returns the number of usable rules.
func (m *Matcher) Len() int {
	n := 0
	for _, rs := range m.byBucket {
		n += len(rs)
	}
	return n
}

// Resolve returns the modifier for a deal in bucket with score. Unscored
// deals (score 0) are looked up like any other score. A suppressing rule
// always yields a modifier of exactly 0.
func (m *Matcher) Resolve(bucket model.Bucket, score float64) Modifier {
	if m == nil {
		return PassThrough
	}
	for _, r := range m.byBucket[bucket] {
		if score < r.MinScore || score > r.MaxScore {
			continue
		}
		if r.Suppression {
			return Modifier{Suppressed: true, Value: 0, RuleID: r.ID}
		}
		return Modifier{Value: r.Modifier(), RuleID: r.ID}
	}
	return PassThrough
}
