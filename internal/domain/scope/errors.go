package scope

import "errors"

// Sentinel kinds for scope errors.
var (
	ErrUnknownRole = errors.New("unknown role")
	ErrMissingOrg  = errors.New("caller has no org")
)
