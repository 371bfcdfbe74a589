package service

import (
	"errors"
	"time"

	"github.com/okian/verdict/internal/domain/channel"
	"github.com/okian/verdict/internal/domain/forecast"
	"github.com/okian/verdict/internal/domain/model"
	"github.com/okian/verdict/internal/domain/scope"
)

// Request asks for one quarter's forecast. PreviousPeriodID is optional; when
// blank the predecessor is the next period by descending start date.
type Request struct {
	Caller           scope.Caller `json:"caller"`
	PeriodID         string       `json:"period_id"`
	PreviousPeriodID string       `json:"previous_period_id,omitempty"`
}

// Signals flag zeroed or partial reports. Callers must treat ScopeEmpty as a
// signal, not as "no data".
type Signals struct {
	ScopeEmpty       bool `json:"scope_empty"`
	PeriodNotFound   bool `json:"period_not_found"`
	NoPreviousPeriod bool `json:"no_previous_period"`
}

// Err returns the sentinel errors matching s, or nil.
func (s Signals) Err() error {
	var errs []error
	if s.ScopeEmpty {
		errs = append(errs, ErrScopeEmpty)
	}
	if s.PeriodNotFound {
		errs = append(errs, ErrPeriodNotFound)
	}
	return errors.Join(errs...)
}

// Report is the plain-data result of a forecast computation.
type Report struct {
	OrgID          string                   `json:"org_id"`
	PeriodID       string                   `json:"period_id"`
	Period         *model.QuotaPeriod       `json:"period,omitempty"`
	Previous       *model.QuotaPeriod       `json:"previous_period,omitempty"`
	Scope          scope.Summary            `json:"scope"`
	QuotaLevel     model.RoleLevel          `json:"quota_level"`
	Probabilities  model.StageProbabilities `json:"probabilities"`
	Forecast       forecast.Result          `json:"forecast"`
	Channel        channel.Report           `json:"channel"`
	DealsEvaluated int                      `json:"deals_evaluated"`
	RulesRejected  int                      `json:"rules_rejected"`
	Signals        Signals                  `json:"signals"`
	GeneratedAt    time.Time                `json:"generated_at"`
}

// RepReport is the per-rep breakdown of the caller's view.
type RepReport struct {
	OrgID       string        `json:"org_id"`
	PeriodID    string        `json:"period_id"`
	Reps        []RepForecast `json:"reps"`
	Signals     Signals       `json:"signals"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// RepForecast is one rep's slice of a rollup.
type RepForecast struct {
	Rep      model.Rep         `json:"rep"`
	Totals   forecast.Totals   `json:"totals"`
	Forecast forecast.Weighted `json:"forecast"`
	Coverage forecast.Coverage `json:"coverage"`
}
