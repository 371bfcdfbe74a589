package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/verdict/internal/domain/model"
	"github.com/okian/verdict/pkg/logger"
	"github.com/okian/verdict/pkg/metrics"
)

// RawDeal is a deal row as synced from the CRM. Every field is text.
type RawDeal struct {
	ID          string `json:"id"`
	OrgID       string `json:"org_id"`
	Amount      string `json:"amount"`
	Stage       string `json:"stage"`
	HealthScore string `json:"health_score"`
	OwnerID     string `json:"owner_id"`
	OwnerName   string `json:"owner_name"`
	PartnerName string `json:"partner_name"`
	CreatedAt   string `json:"create_ts"`
	CloseDate   string `json:"close_date"`
	Product     string `json:"product"`
}

// Deals returns the org's deals that closed or were created within window.
// Malformed fields are coerced to their safe default and counted; a bad
// record never fails the fetch.
func (s *Store) Deals(ctx context.Context, orgID string, window model.QuotaPeriod) ([]model.Deal, error) {
	return s.scanDeals(ctx, orgID, func(d *model.Deal) bool {
		return window.Contains(d.CloseDate) || window.Contains(d.CreatedAt)
	})
}

// Snapshot returns every deal of the org.
func (s *Store) Snapshot(ctx context.Context, orgID string) ([]model.Deal, error) {
	return s.scanDeals(ctx, orgID, func(*model.Deal) bool { return true })
}

func (s *Store) scanDeals(ctx context.Context, orgID string, keep func(*model.Deal) bool) (deals []model.Deal, err error) {
	done := track(SourceDeals)
	defer func() { done(err) }()

	if err := requireOrg(orgID); err != nil {
		return nil, err
	}

	const q = `SELECT id, org_id, amount, stage, health_score, owner_id, owner_name, partner_name, create_ts, close_date, product
FROM deals WHERE org_id = ? ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, orgID)
	if err != nil {
		return nil, fmt.Errorf("query deals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r RawDeal
		if err := rows.Scan(&r.ID, &r.OrgID, &r.Amount, &r.Stage, &r.HealthScore, &r.OwnerID, &r.OwnerName,
			&r.PartnerName, &r.CreatedAt, &r.CloseDate, &r.Product); err != nil {
			return nil, fmt.Errorf("scan deal: %w", err)
		}
		d := s.decode(ctx, r)
		if keep(&d) {
			deals = append(deals, d)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deals: %w", err)
	}
	return deals, nil
}

// decode coerces a raw row into a Deal.
func (s *Store) decode(ctx context.Context, r RawDeal) model.Deal {
	d := model.Deal{
		ID:          r.ID,
		OrgID:       r.OrgID,
		Stage:       r.Stage,
		OwnerID:     strings.TrimSpace(r.OwnerID),
		OwnerName:   r.OwnerName,
		PartnerName: r.PartnerName,
		Product:     r.Product,
	}
	var ok bool
	if d.Amount, ok = model.CoerceAmount(r.Amount); !ok {
		s.malformed(ctx, r.ID, "amount", r.Amount)
	}
	if d.HealthScore, ok = model.CoerceScore(r.HealthScore); !ok {
		s.malformed(ctx, r.ID, "health_score", r.HealthScore)
	}
	if d.CreatedAt, ok = model.CoerceTime(r.CreatedAt); !ok {
		s.malformed(ctx, r.ID, "create_ts", r.CreatedAt)
	}
	if d.CloseDate, ok = model.CoerceTime(r.CloseDate); !ok {
		s.malformed(ctx, r.ID, "close_date", r.CloseDate)
	}
	return d
}

func (s *Store) malformed(ctx context.Context, dealID, field, raw string) {
	metrics.RecordMalformedField(field)
	s.log.Debug(ctx, "coerced malformed deal field",
		logger.String("deal_id", dealID),
		logger.String("field", field),
		logger.String("raw", raw))
}

// UpsertDeals writes raw deal rows in one transaction. It is used by sync
// jobs and seeding, never by the engine.
func (s *Store) UpsertDeals(ctx context.Context, deals []RawDeal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	const q = `INSERT INTO deals (id, org_id, amount, stage, health_score, owner_id, owner_name, partner_name, create_ts, close_date, product)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(org_id, id) DO UPDATE SET
	amount = excluded.amount,
	stage = excluded.stage,
	health_score = excluded.health_score,
	owner_id = excluded.owner_id,
	owner_name = excluded.owner_name,
	partner_name = excluded.partner_name,
	create_ts = excluded.create_ts,
	close_date = excluded.close_date,
	product = excluded.product`
	for _, d := range deals {
		if d.ID == "" || d.OrgID == "" {
			return fmt.Errorf("%w: deal needs id and org_id", ErrInvalidData)
		}
		if _, err := tx.ExecContext(ctx, q, d.ID, d.OrgID, d.Amount, d.Stage, d.HealthScore, d.OwnerID, d.OwnerName,
			d.PartnerName, d.CreatedAt, d.CloseDate, d.Product); err != nil {
			return fmt.Errorf("upsert deal %s: %w", d.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit deals: %w", err)
	}
	return nil
}
