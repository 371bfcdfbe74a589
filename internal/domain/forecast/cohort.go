package forecast

import (
	"time"

	"github.com/okian/verdict/internal/domain/annotate"
	"github.com/okian/verdict/internal/domain/classify"
	"github.com/okian/verdict/internal/domain/model"
)

// Age band labels.
const (
	Band0To30  = "0-30"
	Band31To60 = "31-60"
	Band61Plus = "61+"
)

// AgeBand counts active created deals within an age range in days.
type AgeBand struct {
	Label  string  `json:"label"`
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// Cohort describes deals created in a quarter. A created deal is active
// unless it also closed within the quarter.
type Cohort struct {
	ActiveAmount      float64   `json:"active_amount"`
	ActiveCount       int       `json:"active_count"`
	ClosedWonAmount   float64   `json:"closed_won_amount"`
	ClosedWonCount    int       `json:"closed_won_count"`
	ClosedLostAmount  float64   `json:"closed_lost_amount"`
	ClosedLostCount   int       `json:"closed_lost_count"`
	ClosedOtherAmount float64   `json:"closed_other_amount"`
	ClosedOtherCount  int       `json:"closed_other_count"`
	AllAmount         float64   `json:"all_amount"`
	AllCount          int       `json:"all_count"`
	AgeBands          []AgeBand `json:"age_bands"`
	ActiveChange      Change    `json:"active_change"`
	AllChange         Change    `json:"all_change"`
}

func bandIndex(days int) int {
	switch {
	case days <= 30:
		return 0
	case days <= 60:
		return 1
	default:
		return 2
	}
}

// CreatedCohort builds the created-in-quarter cohort for p. Ages are measured
// to min(now, period end) so in-flight quarters are not inflated.
func CreatedCohort(deals []annotate.Deal, p model.QuotaPeriod, now time.Time) Cohort {
	c := Cohort{AgeBands: []AgeBand{{Label: Band0To30}, {Label: Band31To60}, {Label: Band61Plus}}}
	asOf := now
	if p.End.Before(asOf) {
		asOf = p.End
	}
	for i := range deals {
		d := &deals[i]
		if !p.Contains(d.CreatedAt) {
			continue
		}
		c.AllAmount += d.Amount
		c.AllCount++

		if d.Class.Status != classify.StatusOpen && p.Contains(d.CloseDate) {
			switch d.Class.Status {
			case classify.StatusWon:
				c.ClosedWonAmount += d.Amount
				c.ClosedWonCount++
			case classify.StatusLost:
				c.ClosedLostAmount += d.Amount
				c.ClosedLostCount++
			default:
				c.ClosedOtherAmount += d.Amount
				c.ClosedOtherCount++
			}
			continue
		}

		c.ActiveAmount += d.Amount
		c.ActiveCount++
		b := &c.AgeBands[bandIndex(model.DaysBetween(d.CreatedAt, asOf))]
		b.Count++
		b.Amount += d.Amount
	}
	c.ActiveChange = ChangeOf(c.ActiveAmount, 0)
	c.AllChange = ChangeOf(c.AllAmount, 0)
	return c
}

// Compare fills the QoQ changes of c against the previous quarter's cohort.
func (c Cohort) Compare(prev Cohort) Cohort {
	c.ActiveChange = ChangeOf(c.ActiveAmount, prev.ActiveAmount)
	c.AllChange = ChangeOf(c.AllAmount, prev.AllAmount)
	return c
}
