package health

import "errors"

// Sentinel kinds for rule errors.
var (
	ErrForeignOrg = errors.New("rule belongs to another org")
)
