// Package forecast computes bucket totals, weighted forecasts, coverage,
// quarter-over-quarter momentum and the created-pipeline cohort from an
// annotated deal set.
package forecast

import (
	"github.com/okian/verdict/internal/domain/annotate"
	"github.com/okian/verdict/internal/domain/classify"
	"github.com/okian/verdict/internal/domain/model"
)

// BucketTotal is the open amount and count for one bucket.
type BucketTotal struct {
	Amount float64 `json:"amount"`
	Count  int     `json:"count"`
}

// Totals partitions a quarter's deals by status and open bucket.
type Totals struct {
	Buckets          map[model.Bucket]BucketTotal `json:"buckets"`
	OpenAmount       float64                      `json:"open_amount"`
	OpenCount        int                          `json:"open_count"`
	WonAmount        float64                      `json:"won_amount"`
	WonCount         int                          `json:"won_count"`
	LostAmount       float64                      `json:"lost_amount"`
	LostCount        int                          `json:"lost_count"`
	ClosedOtherCount int                          `json:"closed_other_count"`
}

func emptyBuckets() map[model.Bucket]BucketTotal {
	m := make(map[model.Bucket]BucketTotal, len(model.Buckets))
	for _, b := range model.Buckets {
		m[b] = BucketTotal{}
	}
	return m
}

// Summarize totals deals. The caller selects the window beforehand.
func Summarize(deals []annotate.Deal) Totals {
	t := Totals{Buckets: emptyBuckets()}
	for i := range deals {
		d := &deals[i]
		switch d.Class.Status {
		case classify.StatusOpen:
			bt := t.Buckets[d.Class.Bucket]
			bt.Amount += d.Amount
			bt.Count++
			t.Buckets[d.Class.Bucket] = bt
			t.OpenAmount += d.Amount
			t.OpenCount++
		case classify.StatusWon:
			t.WonAmount += d.Amount
			t.WonCount++
		case classify.StatusLost:
			t.LostAmount += d.Amount
			t.LostCount++
		default:
			t.ClosedOtherCount++
		}
	}
	return t
}

// Bucket returns the total for b, zero when absent.
func (t Totals) Bucket(b model.Bucket) BucketTotal {
	return t.Buckets[b]
}

// AggModifiers returns the value-weighted modifier per bucket over open deals.
// A bucket with no amount gets 1.0.
func AggModifiers(deals []annotate.Deal) map[model.Bucket]float64 {
	weighted := make(map[model.Bucket]float64, len(model.Buckets))
	amount := make(map[model.Bucket]float64, len(model.Buckets))
	for i := range deals {
		d := &deals[i]
		if !d.Open() {
			continue
		}
		weighted[d.Class.Bucket] += d.Amount * d.Mod.Value
		amount[d.Class.Bucket] += d.Amount
	}
	out := make(map[model.Bucket]float64, len(model.Buckets))
	for _, b := range model.Buckets {
		if amount[b] > 0 {
			out[b] = weighted[b] / amount[b]
			continue
		}
		out[b] = 1.0
	}
	return out
}
