package model

// Rep is a directory entry for a deal owner. ManagerID links to the rep's
// manager within the same org.
type Rep struct {
	OrgID     string `json:"org_id"`
	ID        string `json:"rep_id"`
	Name      string `json:"name"`
	ManagerID string `json:"manager_id,omitempty"`
}
