package service

import (
	"context"

	"github.com/okian/verdict/internal/domain/model"
	"github.com/okian/verdict/internal/domain/scope"
)

// DealSource returns org-filtered deal snapshots.
type DealSource interface {
	// Deals returns deals closed or created within window.
	Deals(ctx context.Context, orgID string, window model.QuotaPeriod) ([]model.Deal, error)
	// Snapshot returns every deal of the org.
	Snapshot(ctx context.Context, orgID string) ([]model.Deal, error)
}

// PeriodSource returns an org's quota periods.
type PeriodSource interface {
	Periods(ctx context.Context, orgID string) ([]model.QuotaPeriod, error)
}

// ConfigSource returns an org's probabilities and health rules.
type ConfigSource interface {
	OrgConfig(ctx context.Context, orgID string) (model.OrgConfig, error)
}

// QuotaSource sums the quota cells matching a scope.
type QuotaSource interface {
	Quota(ctx context.Context, orgID, periodID string, level model.RoleLevel, sc scope.Scope) (float64, error)
}

// RollupStore persists the daily rollup cache.
type RollupStore interface {
	Orgs(ctx context.Context) ([]string, error)
	UpsertRollups(ctx context.Context, rows []model.RollupRow) error
}

// Store is everything the service reads and the rollup it writes.
type Store interface {
	scope.Directory
	DealSource
	PeriodSource
	ConfigSource
	QuotaSource
	RollupStore
}
