package scope

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/verdict/internal/domain/model"
)

// Role is the caller's organisational role.
type Role string

// Caller roles.
const (
	RoleAdmin   Role = "admin"
	RoleExec    Role = "exec"
	RoleManager Role = "manager"
	RoleRep     Role = "rep"
)

// ParseRole maps text to a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleExec, RoleManager, RoleRep:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// Caller is a pre-authenticated identity. UserID is the caller's rep id when
// they own deals; Name is their free-text owner name.
type Caller struct {
	OrgID  string `json:"org_id"`
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Role   Role   `json:"role"`
	SeeAll bool   `json:"see_all"`
}

// Validate checks the caller can be resolved at all.
func (c Caller) Validate() error {
	if strings.TrimSpace(c.OrgID) == "" {
		return ErrMissingOrg
	}
	if _, err := ParseRole(string(c.Role)); err != nil {
		return err
	}
	return nil
}

// QuotaLevel returns the quota role level that matches the caller's view.
func (c Caller) QuotaLevel() model.RoleLevel {
	switch {
	case c.Role == RoleAdmin, c.Role == RoleExec && c.SeeAll:
		return model.LevelCompany
	case c.Role == RoleExec:
		return model.LevelExec
	case c.Role == RoleManager:
		return model.LevelManager
	default:
		return model.LevelRep
	}
}

// Directory exposes the org's rep hierarchy.
type Directory interface {
	// Rep returns a rep by id; ok is false when unknown.
	Rep(ctx context.Context, orgID, repID string) (rep model.Rep, ok bool, err error)
	// DirectReports returns the reps whose manager is managerID.
	DirectReports(ctx context.Context, orgID, managerID string) ([]model.Rep, error)
	// Reps returns every rep in the org.
	Reps(ctx context.Context, orgID string) ([]model.Rep, error)
}

// Resolver turns callers into scopes.
type Resolver struct {
	dir Directory
}

// NewResolver creates a Resolver backed by dir.
func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve returns the caller's scope. Restricted roles resolve to owner sets
// which may be empty; an empty set never widens to Unrestricted.
func (r *Resolver) Resolve(ctx context.Context, c Caller) (Scope, error) {
	if err := c.Validate(); err != nil {
		return NewOwnerSet(nil, nil), err
	}
	switch {
	case c.Role == RoleAdmin:
		return Unrestricted(), nil
	case c.Role == RoleExec && c.SeeAll:
		return Unrestricted(), nil
	}

	s := NewOwnerSet(nil, nil)
	userID := strings.TrimSpace(c.UserID)
	if userID == "" {
		s.addRoot("", c.Name)
		return s, nil
	}

	self, ok, err := r.dir.Rep(ctx, c.OrgID, userID)
	if err != nil {
		return NewOwnerSet(nil, nil), fmt.Errorf("lookup caller: %w", err)
	}
	if ok {
		s.addRoot(userID, c.Name, self.Name)
	} else {
		s.addRoot(userID, c.Name)
	}
	if c.Role == RoleRep {
		return s, nil
	}

	team, err := r.team(ctx, c.OrgID, userID)
	if err != nil {
		return NewOwnerSet(nil, nil), err
	}
	for _, rep := range team {
		s.addID(rep.ID)
		s.addName(rep.Name)
	}
	return s, nil
}

// team walks the reporting tree below managerID. Cycles are tolerated.
func (r *Resolver) team(ctx context.Context, orgID, managerID string) ([]model.Rep, error) {
	seen := map[string]struct{}{managerID: {}}
	queue := []string{managerID}
	var out []model.Rep
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		reports, err := r.dir.DirectReports(ctx, orgID, id)
		if err != nil {
			return nil, fmt.Errorf("list reports of %s: %w", id, err)
		}
		for _, rep := range reports {
			if rep.OrgID != "" && rep.OrgID != orgID {
				continue
			}
			if _, dup := seen[rep.ID]; dup {
				continue
			}
			seen[rep.ID] = struct{}{}
			out = append(out, rep)
			queue = append(queue, rep.ID)
		}
	}
	return out, nil
}

// VisibleReps returns the directory reps visible in s for orgID.
func (r *Resolver) VisibleReps(ctx context.Context, orgID string, s Scope) ([]model.Rep, error) {
	if s.Empty() {
		return nil, nil
	}
	all, err := r.dir.Reps(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list reps: %w", err)
	}
	out := make([]model.Rep, 0, len(all))
	for _, rep := range all {
		if rep.OrgID != "" && rep.OrgID != orgID {
			continue
		}
		if s.MatchesOwner(rep.ID, rep.Name) {
			out = append(out, rep)
		}
	}
	return out, nil
}
