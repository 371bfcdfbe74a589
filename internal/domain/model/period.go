package model

import (
	"sort"
	"time"
)

// QuotaPeriod is a fiscal quarter with an inclusive date range.
type QuotaPeriod struct {
	ID            string    `json:"id"`
	OrgID         string    `json:"org_id"`
	Start         time.Time `json:"period_start"`
	End           time.Time `json:"period_end"`
	FiscalYear    int       `json:"fiscal_year"`
	FiscalQuarter int       `json:"fiscal_quarter"`
}

// Contains reports whether t falls on a calendar day within [Start, End].
// A zero t is never contained.
func (p *QuotaPeriod) Contains(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	d := DateOf(t)
	return !d.Before(DateOf(p.Start)) && !d.After(DateOf(p.End))
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from a to b, clamped at zero.
func DaysBetween(a, b time.Time) int {
	days := int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// FindPeriod returns the period with id, if present.
func FindPeriod(periods []QuotaPeriod, id string) (QuotaPeriod, bool) {
	for _, p := range periods {
		if p.ID == id {
			return p, true
		}
	}
	return QuotaPeriod{}, false
}

// PreviousPeriod returns the row that follows current when the org's periods
// are ordered by descending start date.
func PreviousPeriod(periods []QuotaPeriod, current QuotaPeriod) (QuotaPeriod, bool) {
	ordered := make([]QuotaPeriod, 0, len(periods))
	for _, p := range periods {
		if p.OrgID == current.OrgID {
			ordered = append(ordered, p)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start.After(ordered[j].Start)
	})
	for _, p := range ordered {
		if p.ID != current.ID && p.Start.Before(current.Start) {
			return p, true
		}
	}
	return QuotaPeriod{}, false
}
