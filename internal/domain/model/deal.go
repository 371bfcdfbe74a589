// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// UnspecifiedProduct is used when a deal carries no product.
const UnspecifiedProduct = "(Unspecified)"

// Deal is a read-only CRM opportunity snapshot. Zero time values mean the
// timestamp was absent or unparsable.
type Deal struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"org_id"`
	Amount      float64   `json:"amount"`
	Stage       string    `json:"raw_stage_text"`
	HealthScore float64   `json:"health_score"`
	OwnerID     string    `json:"owner_id,omitempty"`
	OwnerName   string    `json:"owner_name,omitempty"`
	PartnerName string    `json:"partner_name,omitempty"`
	CreatedAt   time.Time `json:"create_ts"`
	CloseDate   time.Time `json:"close_date"`
	Product     string    `json:"product"`
}

// Scored reports whether the deal carries a usable health score.
func (d *Deal) Scored() bool {
	return d.HealthScore > 0
}

// IsPartner reports whether the deal was sourced through a partner.
func (d *Deal) IsPartner() bool {
	return strings.TrimSpace(d.PartnerName) != ""
}

// ProductOrDefault returns the product or UnspecifiedProduct when blank.
func (d *Deal) ProductOrDefault() string {
	if p := strings.TrimSpace(d.Product); p != "" {
		return p
	}
	return UnspecifiedProduct
}
