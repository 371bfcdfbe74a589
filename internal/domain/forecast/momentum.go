package forecast

import (
	"github.com/okian/verdict/internal/domain/model"
	"github.com/okian/verdict/internal/domain/ratio"
)

// Change is one quarter-over-quarter comparison. Pct is nil when the
// previous value is not positive.
type Change struct {
	Current  float64  `json:"current"`
	Previous float64  `json:"previous"`
	Pct      *float64 `json:"pct"`
}

// ChangeOf compares current against previous.
func ChangeOf(current, previous float64) Change {
	return Change{Current: current, Previous: previous, Pct: ratio.Change(current, previous)}
}

// Momentum compares open pipeline with the previous quarter in total and per bucket.
type Momentum struct {
	Total   Change                  `json:"total"`
	Buckets map[model.Bucket]Change `json:"buckets"`
}

// MomentumOf compares cur with prev. A zero prev yields nil percentages.
func MomentumOf(cur, prev Totals) Momentum {
	m := Momentum{
		Total:   ChangeOf(cur.OpenAmount, prev.OpenAmount),
		Buckets: make(map[model.Bucket]Change, len(model.Buckets)),
	}
	for _, b := range model.Buckets {
		m.Buckets[b] = ChangeOf(cur.Bucket(b).Amount, prev.Bucket(b).Amount)
	}
	return m
}
