package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cast"

	"github.com/okian/verdict/internal/domain/scope"
)

// Caller identity headers. An upstream identity proxy authenticates the user
// and sets these; the API trusts them as-is.
const (
	HeaderOrgID   = "X-Org-ID"
	HeaderUserID  = "X-User-ID"
	HeaderName    = "X-User-Name"
	HeaderRole    = "X-Role"
	HeaderSeeAll  = "X-See-All"
	HeaderRequest = "X-Request-ID"
)

// callerFromRequest reads the pre-authenticated caller from r's headers.
func callerFromRequest(r *http.Request) (scope.Caller, error) {
	org := strings.TrimSpace(r.Header.Get(HeaderOrgID))
	if org == "" {
		return scope.Caller{}, fmt.Errorf("%w: %s header is required", ErrMissingCaller, HeaderOrgID)
	}
	role, err := scope.ParseRole(r.Header.Get(HeaderRole))
	if err != nil {
		return scope.Caller{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	var seeAll bool
	if raw := strings.TrimSpace(r.Header.Get(HeaderSeeAll)); raw != "" {
		seeAll, err = cast.ToBoolE(raw)
		if err != nil {
			return scope.Caller{}, fmt.Errorf("%w: %s must be a boolean", ErrBadRequest, HeaderSeeAll)
		}
	}
	return scope.Caller{
		OrgID:  org,
		UserID: strings.TrimSpace(r.Header.Get(HeaderUserID)),
		Name:   strings.TrimSpace(r.Header.Get(HeaderName)),
		Role:   role,
		SeeAll: seeAll,
	}, nil
}
