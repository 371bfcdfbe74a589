package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrMissingCaller = errors.New("missing caller identity")
)
