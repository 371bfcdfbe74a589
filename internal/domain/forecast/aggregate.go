package forecast

import (
	"time"

	"github.com/okian/verdict/internal/domain/annotate"
	"github.com/okian/verdict/internal/domain/model"
)

// Input is everything Aggregate needs. Deals must already be scope filtered
// and annotated. Previous is nil when the quarter has no predecessor.
type Input struct {
	Period        model.QuotaPeriod
	Previous      *model.QuotaPeriod
	Deals         []annotate.Deal
	PreviousDeals []annotate.Deal
	Probabilities model.StageProbabilities
	Quota         float64
	Thresholds    Thresholds
	Now           time.Time
}

// Result is the plain-data aggregate for one quarter.
type Result struct {
	Totals   Totals   `json:"totals"`
	Forecast Weighted `json:"forecast"`
	Coverage Coverage `json:"coverage"`
	Momentum Momentum `json:"momentum"`
	Cohort   Cohort   `json:"created_cohort"`
}

// Aggregate computes every quarter metric for in.
func Aggregate(in Input) Result {
	inQuarter := annotate.ClosedIn(in.Deals, in.Period)
	totals := Summarize(inQuarter)
	res := Result{
		Totals:   totals,
		Forecast: Weigh(totals, AggModifiers(inQuarter), in.Probabilities, in.Quota),
		Coverage: CoverageOf(totals, in.Quota, in.Thresholds),
		Cohort:   CreatedCohort(in.Deals, in.Period, in.Now),
	}

	var prevTotals Totals
	if in.Previous != nil {
		prevTotals = Summarize(annotate.ClosedIn(in.PreviousDeals, *in.Previous))
		res.Cohort = res.Cohort.Compare(CreatedCohort(in.PreviousDeals, *in.Previous, in.Now))
	}
	res.Momentum = MomentumOf(totals, prevTotals)
	return res
}

// Zero returns the all-zero result used when a caller sees nothing or the
// period does not resolve.
func Zero(th Thresholds) Result {
	return Aggregate(Input{Thresholds: th, Probabilities: model.DefaultStageProbabilities()})
}
