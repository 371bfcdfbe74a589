// Package annotate attaches a classification and a health modifier to each
// deal. Aggregation and channel scoring both consume the annotated stream.
package annotate

import (
	"github.com/okian/verdict/internal/domain/classify"
	"github.com/okian/verdict/internal/domain/health"
	"github.com/okian/verdict/internal/domain/model"
)

// Deal is a deal with its resolved stage and modifier. Mod is PassThrough for
// deals that are not open.
type Deal struct {
	model.Deal
	Class classify.Classification `json:"classification"`
	Mod   health.Modifier         `json:"modifier"`
}

// Open reports whether the deal sits in an open bucket.
func (d *Deal) Open() bool { return d.Class.Status == classify.StatusOpen }

// Won reports whether the deal is closed won.
func (d *Deal) Won() bool { return d.Class.Status == classify.StatusWon }

// Lost reports whether the deal is closed lost.
func (d *Deal) Lost() bool { return d.Class.Status == classify.StatusLost }

// One annotates a single deal.
func One(d model.Deal, m *health.Matcher) Deal {
	c := classify.Classify(d.Stage)
	mod := health.PassThrough
	if c.Status == classify.StatusOpen {
		mod = m.Resolve(c.Bucket, d.HealthScore)
	}
	return Deal{Deal: d, Class: c, Mod: mod}
}

// All annotates deals in order.
func All(deals []model.Deal, m *health.Matcher) []Deal {
	out := make([]Deal, len(deals))
	for i := range deals {
		out[i] = One(deals[i], m)
	}
	return out
}

// ClosedIn returns the deals whose close date falls inside p. Deals with no
// close date are dropped.
func ClosedIn(deals []Deal, p model.QuotaPeriod) []Deal {
	out := make([]Deal, 0, len(deals))
	for i := range deals {
		if p.Contains(deals[i].CloseDate) {
			out = append(out, deals[i])
		}
	}
	return out
}

// CreatedIn returns the deals whose create timestamp falls inside p.
func CreatedIn(deals []Deal, p model.QuotaPeriod) []Deal {
	out := make([]Deal, 0, len(deals))
	for i := range deals {
		if p.Contains(deals[i].CreatedAt) {
			out = append(out, deals[i])
		}
	}
	return out
}
