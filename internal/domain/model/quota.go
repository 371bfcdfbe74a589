package model

// RoleLevel identifies the organisational level a quota row belongs to.
type RoleLevel string

// Quota role levels.
const (
	LevelCompany RoleLevel = "company"
	LevelExec    RoleLevel = "exec"
	LevelManager RoleLevel = "manager"
	LevelRep     RoleLevel = "rep"
)

// Quota is a single quota cell for a period.
type Quota struct {
	OrgID         string    `json:"org_id"`
	QuotaPeriodID string    `json:"quota_period_id"`
	RoleLevel     RoleLevel `json:"role_level"`
	OwnerRef      string    `json:"owner_ref,omitempty"`
	Amount        float64   `json:"amount"`
}
