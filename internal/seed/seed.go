// Package seed generates a deterministic synthetic CRM snapshot for local
// runs and smoke tests. The same Config always yields the same dataset.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/okian/verdict/internal/adapters/repository"
	"github.com/okian/verdict/internal/domain/model"
	"github.com/okian/verdict/pkg/logger"
)

// Defaults for a generated org.
const (
	DefaultOrgID       = "demo"
	DefaultManagers    = 2
	DefaultRepsPerTeam = 3
	DefaultDealsPerRep = 12
	DefaultSeed        = 42
	DefaultPeriods     = 4
	defaultRepQuota    = 250_000
	minDealAmount      = 5_000
	dealAmountRange    = 145_000
	partnerShare       = 0.3
	unscoredShare      = 0.1
	messyAmountShare   = 0.2
	maxDealAgeDays     = 240
)

// ErrInvalidConfig is returned for a config that cannot produce a dataset.
var ErrInvalidConfig = errors.New("invalid seed config")

var namespace = uuid.MustParse("6f1c9a52-3d0e-4b8e-9a57-0c1d2e3f4a5b")

var stages = []string{
	"Commit",
	"Verbal Commit",
	"Best Case",
	"Best Case - Upside",
	"Pipeline",
	"Discovery",
	"Negotiation",
	"Closed Won",
	"Closed Won",
	"Closed Lost",
	"Closed",
}

var partners = []string{"Northwind", "Contoso", " northwind ", "Fabrikam", "Tailspin"}

var products = []string{"Platform", "Analytics", "Support", ""}

var firstNames = []string{"Ana", "Ben", "Chloe", "Dev", "Elena", "Femi", "Gus", "Hana", "Ivo", "Jun"}

var lastNames = []string{"Ruiz", "Cho", "Adeyemi", "Novak", "Sato", "Berg", "Okafor", "Lind"}

// Config sizes the generated org.
type Config struct {
	OrgID       string
	Managers    int
	RepsPerTeam int
	DealsPerRep int
	Periods     int
	Seed        uint64
	// Now anchors the current quarter; zero means time.Now.
	Now time.Time
}

// DefaultConfig returns the config used by the CLI when no flags are given.
func DefaultConfig() Config {
	return Config{
		OrgID:       DefaultOrgID,
		Managers:    DefaultManagers,
		RepsPerTeam: DefaultRepsPerTeam,
		DealsPerRep: DefaultDealsPerRep,
		Periods:     DefaultPeriods,
		Seed:        DefaultSeed,
	}
}

func (c Config) validate() error {
	switch {
	case c.OrgID == "":
		return fmt.Errorf("%w: org id is required", ErrInvalidConfig)
	case c.Managers < 1 || c.RepsPerTeam < 1:
		return fmt.Errorf("%w: need at least one manager and one rep per team", ErrInvalidConfig)
	case c.DealsPerRep < 0:
		return fmt.Errorf("%w: deals per rep must not be negative", ErrInvalidConfig)
	case c.Periods < 1:
		return fmt.Errorf("%w: need at least one period", ErrInvalidConfig)
	}
	return nil
}

// Dataset is everything a seeded org needs.
type Dataset struct {
	OrgID         string
	Periods       []model.QuotaPeriod
	Reps          []model.Rep
	Quotas        []model.Quota
	Probabilities model.StageProbabilities
	Rules         []model.HealthScoreRule
	Deals         []repository.RawDeal
}

// Current returns the most recent generated period.
func (d *Dataset) Current() model.QuotaPeriod {
	return d.Periods[len(d.Periods)-1]
}

// Generate builds a dataset from cfg. Deal amounts and health scores are
// written in the loose shapes a CRM export carries so the store's coercion
// is exercised.
func Generate(cfg Config) (*Dataset, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	ds := &Dataset{
		OrgID:         cfg.OrgID,
		Periods:       quarters(cfg.OrgID, now.UTC(), cfg.Periods),
		Probabilities: model.StageProbabilities{Commit: 0.85, BestCase: 0.4, Pipeline: 0.12},
		Rules:         rules(cfg.OrgID),
	}

	exec := model.Rep{OrgID: cfg.OrgID, ID: id(cfg.OrgID, "rep", "exec"), Name: personName(rng)}
	ds.Reps = append(ds.Reps, exec)
	var sellers []model.Rep
	for m := range cfg.Managers {
		mgr := model.Rep{
			OrgID:     cfg.OrgID,
			ID:        id(cfg.OrgID, "rep", "mgr", strconv.Itoa(m)),
			Name:      personName(rng),
			ManagerID: exec.ID,
		}
		ds.Reps = append(ds.Reps, mgr)
		for r := range cfg.RepsPerTeam {
			rep := model.Rep{
				OrgID:     cfg.OrgID,
				ID:        id(cfg.OrgID, "rep", "mgr", strconv.Itoa(m), strconv.Itoa(r)),
				Name:      personName(rng),
				ManagerID: mgr.ID,
			}
			ds.Reps = append(ds.Reps, rep)
			sellers = append(sellers, rep)
		}
	}

	for _, p := range ds.Periods {
		ds.Quotas = append(ds.Quotas, quotasFor(p, exec, ds.Reps, cfg.RepsPerTeam, len(sellers))...)
	}

	current := ds.Current()
	first := ds.Periods[0]
	for _, rep := range sellers {
		for n := range cfg.DealsPerRep {
			ds.Deals = append(ds.Deals, deal(rng, cfg.OrgID, rep, n, first, current, now.UTC()))
		}
	}
	return ds, nil
}

// Load writes ds through the store's upserts. Loading the same dataset
// twice leaves the store unchanged.
func Load(ctx context.Context, store *repository.Store, ds *Dataset, log logger.Logger) error {
	if log == nil {
		log = logger.Nop()
	}
	for _, p := range ds.Periods {
		if err := store.UpsertPeriod(ctx, p); err != nil {
			return fmt.Errorf("seed period %s: %w", p.ID, err)
		}
	}
	for _, r := range ds.Reps {
		if err := store.UpsertRep(ctx, r); err != nil {
			return fmt.Errorf("seed rep %s: %w", r.ID, err)
		}
	}
	for _, q := range ds.Quotas {
		if err := store.UpsertQuota(ctx, q); err != nil {
			return fmt.Errorf("seed quota: %w", err)
		}
	}
	if err := store.SetProbabilities(ctx, ds.OrgID, ds.Probabilities); err != nil {
		return fmt.Errorf("seed probabilities: %w", err)
	}
	for _, r := range ds.Rules {
		if err := store.UpsertRule(ctx, r); err != nil {
			return fmt.Errorf("seed rule %s: %w", r.ID, err)
		}
	}
	if err := store.UpsertDeals(ctx, ds.Deals); err != nil {
		return fmt.Errorf("seed deals: %w", err)
	}
	log.Info(ctx, "seeded org",
		logger.String("org_id", ds.OrgID),
		logger.Int("periods", len(ds.Periods)),
		logger.Int("reps", len(ds.Reps)),
		logger.Int("deals", len(ds.Deals)))
	return nil
}

func id(parts ...string) string {
	return uuid.NewSHA1(namespace, []byte(strings.Join(parts, "/"))).String()
}

func personName(rng *rand.Rand) string {
	return firstNames[rng.IntN(len(firstNames))] + " " + lastNames[rng.IntN(len(lastNames))]
}

// quarters returns n calendar quarters ending with the one containing now,
// oldest first.
func quarters(orgID string, now time.Time, n int) []model.QuotaPeriod {
	start := time.Date(now.Year(), time.Month((int(now.Month())-1)/3*3+1), 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.QuotaPeriod, n)
	for i := n - 1; i >= 0; i-- {
		end := start.AddDate(0, 3, -1)
		q := (int(start.Month())-1)/3 + 1
		out[i] = model.QuotaPeriod{
			ID:            fmt.Sprintf("FY%d-Q%d", start.Year(), q),
			OrgID:         orgID,
			Start:         start,
			End:           end,
			FiscalYear:    start.Year(),
			FiscalQuarter: q,
		}
		start = start.AddDate(0, -3, 0)
	}
	return out
}

func quotasFor(p model.QuotaPeriod, exec model.Rep, reps []model.Rep, teamSize, sellers int) []model.Quota {
	team := float64(defaultRepQuota * teamSize)
	out := []model.Quota{
		{OrgID: p.OrgID, QuotaPeriodID: p.ID, RoleLevel: model.LevelCompany, Amount: float64(defaultRepQuota * sellers)},
		{OrgID: p.OrgID, QuotaPeriodID: p.ID, RoleLevel: model.LevelExec, OwnerRef: exec.ID, Amount: float64(defaultRepQuota * sellers)},
	}
	for _, r := range reps {
		switch r.ManagerID {
		case "":
		case exec.ID:
			out = append(out, model.Quota{OrgID: p.OrgID, QuotaPeriodID: p.ID, RoleLevel: model.LevelManager, OwnerRef: r.ID, Amount: team})
		default:
			out = append(out, model.Quota{OrgID: p.OrgID, QuotaPeriodID: p.ID, RoleLevel: model.LevelRep, OwnerRef: r.ID, Amount: defaultRepQuota})
		}
	}
	return out
}

func rules(orgID string) []model.HealthScoreRule {
	mod := func(v float64) *float64 { return &v }
	return []model.HealthScoreRule{
		{ID: "commit-at-risk", OrgID: orgID, Bucket: model.BucketCommit, MinScore: 0, MaxScore: 30, Suppression: true},
		{ID: "commit-strong", OrgID: orgID, Bucket: model.BucketCommit, MinScore: 80, MaxScore: 100, ProbabilityModifier: mod(1.1)},
		{ID: "best-case-weak", OrgID: orgID, Bucket: model.BucketBestCase, MinScore: 0, MaxScore: 40, ProbabilityModifier: mod(0.5)},
		{ID: "pipeline-hot", OrgID: orgID, Bucket: model.BucketPipeline, MinScore: 75, MaxScore: 100, ProbabilityModifier: mod(1.5)},
	}
}

func deal(rng *rand.Rand, orgID string, rep model.Rep, n int, first, current model.QuotaPeriod, now time.Time) repository.RawDeal {
	stage := stages[rng.IntN(len(stages))]
	amount := float64(minDealAmount + rng.IntN(dealAmountRange))

	span := max(1, model.DaysBetween(first.Start, now))
	created := first.Start.AddDate(0, 0, rng.IntN(min(span, maxDealAgeDays)))
	closeDate := created.AddDate(0, 0, 15+rng.IntN(120))
	if !isClosedStage(stage) {
		// Open deals are expected to land in the current quarter.
		days := max(1, model.DaysBetween(current.Start, current.End)+1)
		closeDate = current.Start.AddDate(0, 0, rng.IntN(days))
	} else if closeDate.After(now) {
		closeDate = model.DateOf(now)
	}

	raw := repository.RawDeal{
		ID:          id(orgID, "deal", rep.ID, strconv.Itoa(n)),
		OrgID:       orgID,
		Amount:      strconv.FormatFloat(amount, 'f', 2, 64),
		Stage:       stage,
		HealthScore: strconv.Itoa(rng.IntN(101)),
		OwnerID:     rep.ID,
		OwnerName:   rep.Name,
		CreatedAt:   created.Format(time.RFC3339),
		CloseDate:   closeDate.Format("2006-01-02"),
		Product:     products[rng.IntN(len(products))],
	}
	if rng.Float64() < messyAmountShare {
		raw.Amount = "$" + humanize.Comma(int64(amount))
	}
	if rng.Float64() < unscoredShare {
		raw.HealthScore = "n/a"
	}
	if rng.Float64() < partnerShare {
		raw.PartnerName = partners[rng.IntN(len(partners))]
	}
	return raw
}

func isClosedStage(stage string) bool {
	return strings.HasPrefix(stage, "Closed")
}
