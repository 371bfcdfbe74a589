// Package repository is the SQLite-backed snapshot store the forecast engine
// reads deals, periods, quotas, org configuration and the rep directory from.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/okian/verdict/pkg/logger"
	"github.com/okian/verdict/pkg/metrics"
)

// Fetch sources used as metric labels.
const (
	SourceDeals   = "deals"
	SourcePeriods = "periods"
	SourceQuota   = "quota"
	SourceConfig  = "config"
	SourceReps    = "reps"
	SourceRollups = "rollups"
)

// dateLayout is how calendar dates are written.
const dateLayout = "2006-01-02"

// Store reads and writes the forecast snapshot. Engine reads never mutate
// deal rows.
type Store struct {
	db  *sql.DB
	log logger.Logger
	now func() time.Time
}

// New wraps db.
func New(db *sql.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	s := &Store{db: db, log: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open opens the database at path, migrates it and wraps it.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := NewDB(path)
	if err != nil {
		return nil, err
	}
	s, err := New(db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// track starts a fetch timer for source. The returned func records latency
// and, when err is non-nil, a store error.
func track(source string) func(err error) {
	start := time.Now()
	return func(err error) {
		metrics.RecordStoreFetch(source, float64(time.Since(start).Microseconds())/1000)
		if err != nil {
			metrics.RecordStoreError(source)
		}
	}
}

func requireOrg(orgID string) error {
	if strings.TrimSpace(orgID) == "" {
		return ErrMissingOrg
	}
	return nil
}

// Orgs returns every org id with at least one deal or period.
func (s *Store) Orgs(ctx context.Context) (orgs []string, err error) {
	done := track(SourceDeals)
	defer func() { done(err) }()

	const q = `SELECT org_id FROM deals UNION SELECT org_id FROM quota_periods ORDER BY org_id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list orgs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan org: %w", err)
		}
		orgs = append(orgs, id)
	}
	return orgs, rows.Err()
}
