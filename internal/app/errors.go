package service

import "errors"

// Sentinel errors. ErrScopeEmpty and ErrPeriodNotFound are reported through
// Report.Signals rather than returned.
var (
	ErrInvalidCaller  = errors.New("invalid caller")
	ErrMissingPeriod  = errors.New("period id is required")
	ErrScopeEmpty     = errors.New("caller scope is empty")
	ErrPeriodNotFound = errors.New("quota period not found")
)
