package repository

import "errors"

// Sentinel errors for the forecast store.
var (
	ErrNilDB       = errors.New("nil database handle")
	ErrMissingOrg  = errors.New("org id is required")
	ErrInvalidData = errors.New("invalid record")
)
