package service_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	service "github.com/okian/verdict/internal/app"
	"github.com/okian/verdict/internal/domain/forecast"
	"github.com/okian/verdict/internal/domain/memo"
	"github.com/okian/verdict/internal/domain/model"
	"github.com/okian/verdict/internal/domain/scope"
	"github.com/okian/verdict/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const eps = 1e-9

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var (
	q1 = model.QuotaPeriod{ID: "q1", OrgID: "acme", Start: day(2024, 1, 1), End: day(2024, 3, 31), FiscalYear: 2024, FiscalQuarter: 1}
	q4 = model.QuotaPeriod{ID: "q4", OrgID: "acme", Start: day(2023, 10, 1), End: day(2023, 12, 31), FiscalYear: 2023, FiscalQuarter: 4}
)

type fakeStore struct {
	mu       sync.Mutex
	deals    []model.Deal
	periods  []model.QuotaPeriod
	quotas   []model.Quota
	configs  map[string]model.OrgConfig
	reps     []model.Rep
	rollups  map[string]model.RollupRow
	dealErr  error
	calls    map[string]int
	orgs     []string
	writeErr map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		configs:  make(map[string]model.OrgConfig),
		rollups:  make(map[string]model.RollupRow),
		calls:    make(map[string]int),
		writeErr: make(map[string]error),
	}
}

func (f *fakeStore) hit(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeStore) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeStore) Rep(_ context.Context, orgID, repID string) (model.Rep, bool, error) {
	for _, r := range f.reps {
		if r.OrgID == orgID && r.ID == repID {
			return r, true, nil
		}
	}
	return model.Rep{}, false, nil
}

func (f *fakeStore) DirectReports(_ context.Context, orgID, managerID string) ([]model.Rep, error) {
	var out []model.Rep
	for _, r := range f.reps {
		if r.OrgID == orgID && r.ManagerID == managerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) Reps(_ context.Context, orgID string) ([]model.Rep, error) {
	var out []model.Rep
	for _, r := range f.reps {
		if r.OrgID == orgID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) Deals(_ context.Context, orgID string, w model.QuotaPeriod) ([]model.Deal, error) {
	f.hit("deals")
	if f.dealErr != nil {
		return nil, f.dealErr
	}
	var out []model.Deal
	for _, d := range f.deals {
		if d.OrgID == orgID && (w.Contains(d.CloseDate) || w.Contains(d.CreatedAt)) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) Snapshot(_ context.Context, orgID string) ([]model.Deal, error) {
	f.hit("snapshot")
	var out []model.Deal
	for _, d := range f.deals {
		if d.OrgID == orgID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) Periods(_ context.Context, orgID string) ([]model.QuotaPeriod, error) {
	f.hit("periods")
	var out []model.QuotaPeriod
	for _, p := range f.periods {
		if p.OrgID == orgID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) OrgConfig(_ context.Context, orgID string) (model.OrgConfig, error) {
	f.hit("config")
	return f.configs[orgID], nil
}

func (f *fakeStore) Quota(_ context.Context, orgID, periodID string, level model.RoleLevel, sc scope.Scope) (float64, error) {
	f.hit("quota")
	if sc.Empty() {
		return 0, nil
	}
	total := 0.0
	for _, q := range f.quotas {
		if q.OrgID != orgID || q.QuotaPeriodID != periodID || q.RoleLevel != level {
			continue
		}
		switch level {
		case model.LevelCompany:
			total += q.Amount
		case model.LevelManager, model.LevelExec:
			if sc.MatchesRoot(q.OwnerRef) {
				total += q.Amount
			}
		default:
			if sc.MatchesRef(q.OwnerRef) {
				total += q.Amount
			}
		}
	}
	return total, nil
}

func (f *fakeStore) Orgs(context.Context) ([]string, error) {
	return f.orgs, nil
}

func (f *fakeStore) UpsertRollups(_ context.Context, rows []model.RollupRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rows {
		if err := f.writeErr[r.OrgID]; err != nil {
			return err
		}
		f.rollups[r.Day.Format(time.DateOnly)+"|"+r.OrgID+"|"+r.Workflow+"|"+r.Stage] = r
	}
	return nil
}

func (f *fakeStore) rollupKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.rollups))
	for k := range f.rollups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// seeded builds the reference quarter: three in-quarter deals, one rule,
// explicit probabilities, a predecessor quarter, and a small rep tree.
func seeded() *fakeStore {
	f := newFakeStore()
	mod := 1.1
	f.configs["acme"] = model.OrgConfig{
		Probabilities: &model.StageProbabilities{Commit: 0.8, BestCase: 0.325, Pipeline: 0.1},
		Rules: []model.HealthScoreRule{
			{ID: "r1", OrgID: "acme", Bucket: model.BucketCommit, MinScore: 20, MaxScore: 30, ProbabilityModifier: &mod},
			{ID: "bad", OrgID: "acme", Bucket: model.BucketCommit, MinScore: 50, MaxScore: 10},
		},
	}
	f.periods = []model.QuotaPeriod{q1, q4}
	f.reps = []model.Rep{
		{OrgID: "acme", ID: "m1", Name: "Mo Lee"},
		{OrgID: "acme", ID: "r1", Name: "Ana Ruiz", ManagerID: "m1"},
		{OrgID: "acme", ID: "r2", Name: "Ben Cho", ManagerID: "m1"},
		{OrgID: "acme", ID: "r3", Name: "Cy Dunn"},
	}
	closes := day(2024, 2, 15)
	f.deals = []model.Deal{
		{ID: "a", OrgID: "acme", Amount: 100, Stage: "Commit", HealthScore: 25, OwnerID: "r1", CreatedAt: day(2024, 1, 10), CloseDate: closes},
		{ID: "b", OrgID: "acme", Amount: 50, Stage: "Best Case - Upside", HealthScore: 5, OwnerID: "r2", CloseDate: closes},
		{ID: "c", OrgID: "acme", Amount: 30, Stage: "Closed Won", OwnerName: "Ana Ruiz", CreatedAt: day(2023, 12, 1), CloseDate: closes},
		{ID: "p1", OrgID: "acme", Amount: 20, Stage: "Closed Won", OwnerID: "r3", CloseDate: day(2023, 11, 20)},
		{ID: "x", OrgID: "globex", Amount: 999, Stage: "Commit", OwnerID: "r1", CloseDate: closes},
	}
	f.quotas = []model.Quota{
		{OrgID: "acme", QuotaPeriodID: "q1", RoleLevel: model.LevelCompany, Amount: 400},
		{OrgID: "acme", QuotaPeriodID: "q1", RoleLevel: model.LevelManager, OwnerRef: "m1", Amount: 300},
		{OrgID: "acme", QuotaPeriodID: "q1", RoleLevel: model.LevelRep, OwnerRef: "r1", Amount: 200},
		{OrgID: "acme", QuotaPeriodID: "q1", RoleLevel: model.LevelRep, OwnerRef: "r2", Amount: 100},
	}
	f.orgs = []string{"acme", "globex"}
	return f
}

func fixedClock() time.Time { return day(2024, 3, 1) }

func newService(t *testing.T, f *fakeStore, opts ...service.Option) *service.Service {
	t.Helper()
	opts = append([]service.Option{service.WithClock(fixedClock), service.WithFetchConcurrency(2)}, opts...)
	s, err := service.New(f, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return s
}

var admin = scope.Caller{OrgID: "acme", UserID: "admin", Role: scope.RoleAdmin}

func TestForecast(t *testing.T) {
	ctx := context.Background()

	Convey("Given the reference quarter", t, func() {
		f := seeded()
		s := newService(t, f)

		Convey("When an admin asks for q1", func() {
			r, err := s.Forecast(ctx, service.Request{Caller: admin, PeriodID: "q1"})
			So(err, ShouldBeNil)
			So(r.Signals.Err(), ShouldBeNil)

			Convey("Then totals and forecasts match the worked example", func() {
				res := r.Forecast
				So(res.Totals.Bucket(model.BucketCommit).Amount, ShouldEqual, 100)
				So(res.Totals.Bucket(model.BucketBestCase).Amount, ShouldEqual, 50)
				So(res.Totals.WonAmount, ShouldEqual, 30)
				So(res.Forecast.CRM, ShouldAlmostEqual, 126.25, eps)
				So(res.Forecast.AI, ShouldAlmostEqual, 134.25, eps)
				So(res.Forecast.Gap, ShouldAlmostEqual, 8, eps)
				So(res.Forecast.AggModifier[model.BucketCommit], ShouldAlmostEqual, 1.1, eps)
			})

			Convey("Then other orgs never leak in", func() {
				So(r.DealsEvaluated, ShouldEqual, 3)
			})

			Convey("Then company quota drives attainment and coverage", func() {
				So(r.QuotaLevel, ShouldEqual, model.LevelCompany)
				So(r.Forecast.Forecast.Quota, ShouldEqual, 400)
				So(*r.Forecast.Coverage.Ratio, ShouldAlmostEqual, 150.0/370.0, eps)
				So(r.Forecast.Coverage.Tier, ShouldEqual, forecast.TierAtRisk)
			})

			Convey("Then the predecessor quarter feeds momentum", func() {
				So(r.Previous, ShouldNotBeNil)
				So(r.Previous.ID, ShouldEqual, "q4")
				So(r.Signals.NoPreviousPeriod, ShouldBeFalse)
				So(r.Forecast.Momentum.Total.Previous, ShouldEqual, 0)
			})

			Convey("Then the invalid rule is reported", func() {
				So(r.RulesRejected, ShouldEqual, 1)
			})

			Convey("Then channel stats cover the quarter", func() {
				So(r.Channel.Direct.WonOpps, ShouldEqual, 1)
				So(r.Channel.Partners, ShouldBeEmpty)
			})
		})

		Convey("When a manager asks for q1", func() {
			r, err := s.Forecast(ctx, service.Request{
				Caller:   scope.Caller{OrgID: "acme", UserID: "m1", Role: scope.RoleManager},
				PeriodID: "q1",
			})
			So(err, ShouldBeNil)

			Convey("Then only the team's deals and manager quota count", func() {
				So(r.DealsEvaluated, ShouldEqual, 3)
				So(r.QuotaLevel, ShouldEqual, model.LevelManager)
				So(r.Forecast.Forecast.Quota, ShouldEqual, 300)
				So(r.Scope.Unrestricted, ShouldBeFalse)
				So(r.Scope.OwnerIDs, ShouldResemble, []string{"m1", "r1", "r2"})
			})
		})

		Convey("When a rep asks for q1", func() {
			r, err := s.Forecast(ctx, service.Request{
				Caller:   scope.Caller{OrgID: "acme", UserID: "r2", Role: scope.RoleRep},
				PeriodID: "q1",
			})
			So(err, ShouldBeNil)

			Convey("Then only their own deal counts", func() {
				So(r.DealsEvaluated, ShouldEqual, 1)
				So(r.Forecast.Totals.Bucket(model.BucketBestCase).Amount, ShouldEqual, 50)
				So(r.Forecast.Forecast.Quota, ShouldEqual, 100)
			})
		})

		Convey("When the previous period is named explicitly but unknown", func() {
			r, err := s.Forecast(ctx, service.Request{Caller: admin, PeriodID: "q1", PreviousPeriodID: "nope"})
			So(err, ShouldBeNil)
			So(r.Previous, ShouldBeNil)
			So(r.Signals.NoPreviousPeriod, ShouldBeTrue)
		})
	})
}

func TestForecastSignals(t *testing.T) {
	ctx := context.Background()

	Convey("Given a manager with no identity to resolve", t, func() {
		f := seeded()
		s := newService(t, f)
		r, err := s.Forecast(ctx, service.Request{
			Caller:   scope.Caller{OrgID: "acme", Role: scope.RoleManager},
			PeriodID: "q1",
		})

		Convey("Then the report fails closed without touching deals", func() {
			So(err, ShouldBeNil)
			So(r.Signals.ScopeEmpty, ShouldBeTrue)
			So(errors.Is(r.Signals.Err(), service.ErrScopeEmpty), ShouldBeTrue)
			So(r.Forecast.Totals.OpenAmount, ShouldEqual, 0)
			So(r.Forecast.Totals.WonAmount, ShouldEqual, 0)
			So(r.Forecast.Forecast.AI, ShouldEqual, 0)
			So(r.DealsEvaluated, ShouldEqual, 0)
			So(f.count("deals"), ShouldEqual, 0)
		})
	})

	Convey("Given an unknown period", t, func() {
		s := newService(t, seeded())
		r, err := s.Forecast(ctx, service.Request{Caller: admin, PeriodID: "q9"})

		Convey("Then a zeroed report carries the signal", func() {
			So(err, ShouldBeNil)
			So(r.Signals.PeriodNotFound, ShouldBeTrue)
			So(errors.Is(r.Signals.Err(), service.ErrPeriodNotFound), ShouldBeTrue)
			So(r.Period, ShouldBeNil)
			So(r.Forecast.Coverage.Ratio, ShouldBeNil)
			So(r.Forecast.Coverage.Tier, ShouldEqual, forecast.TierUnknown)
		})
	})

	Convey("Given bad requests", t, func() {
		s := newService(t, seeded())

		Convey("Then a blank period is rejected", func() {
			_, err := s.Forecast(ctx, service.Request{Caller: admin})
			So(errors.Is(err, service.ErrMissingPeriod), ShouldBeTrue)
		})

		Convey("Then an unknown role is rejected", func() {
			_, err := s.Forecast(ctx, service.Request{Caller: scope.Caller{OrgID: "acme", Role: "intern"}, PeriodID: "q1"})
			So(errors.Is(err, service.ErrInvalidCaller), ShouldBeTrue)
			So(errors.Is(err, scope.ErrUnknownRole), ShouldBeTrue)
		})

		Convey("Then a missing org is rejected", func() {
			_, err := s.Forecast(ctx, service.Request{Caller: scope.Caller{Role: scope.RoleAdmin}, PeriodID: "q1"})
			So(errors.Is(err, scope.ErrMissingOrg), ShouldBeTrue)
		})
	})

	Convey("Given a failing deal source", t, func() {
		f := seeded()
		boom := errors.New("db down")
		f.dealErr = boom
		s := newService(t, f)
		_, err := s.Forecast(ctx, service.Request{Caller: admin, PeriodID: "q1"})

		Convey("Then the store error surfaces", func() {
			So(errors.Is(err, boom), ShouldBeTrue)
			So(s.GetStats()["failed"], ShouldEqual, int64(1))
		})
	})
}

func latencySum() float64 {
	families, err := metrics.GetRegistry().Gather()
	if err != nil {
		return 0
	}
	for _, mf := range families {
		if strings.HasSuffix(mf.GetName(), "compute_latency_milliseconds") && len(mf.GetMetric()) > 0 {
			return mf.GetMetric()[0].GetHistogram().GetSampleSum()
		}
	}
	return 0
}

func TestForecastLatency(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service on a fixed clock years in the past", t, func() {
		s := newService(t, seeded())
		before := latencySum()

		Convey("When a forecast is computed", func() {
			_, err := s.Forecast(ctx, service.Request{Caller: admin, PeriodID: "q1"})
			So(err, ShouldBeNil)

			Convey("Then the recorded latency is wall time, not clock skew", func() {
				So(latencySum()-before, ShouldBeLessThan, float64(time.Minute.Milliseconds()))
			})
		})
	})
}

func TestForecastDefaults(t *testing.T) {
	Convey("Given an org without any configuration", t, func() {
		f := seeded()
		delete(f.configs, "acme")
		s := newService(t, f, service.WithDefaults(model.StageProbabilities{Commit: 0.5, BestCase: 0.25, Pipeline: 0.05}))
		rep, err := s.Forecast(context.Background(), service.Request{Caller: admin, PeriodID: "q1"})

		Convey("Then the configured defaults apply and modifiers pass through", func() {
			So(err, ShouldBeNil)
			So(rep.Probabilities.Commit, ShouldEqual, 0.5)
			So(rep.RulesRejected, ShouldEqual, 0)
			// 30 won + 100*0.5 + 50*0.25
			So(rep.Forecast.Forecast.CRM, ShouldAlmostEqual, 92.5, eps)
			So(rep.Forecast.Forecast.Gap, ShouldAlmostEqual, 0, eps)
		})
	})
}

func TestForecastCache(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service with a memo cache", t, func() {
		f := seeded()
		s := newService(t, f, service.WithCache(memo.NewInMemory[*service.Report](memo.WithMaxSize(8))))
		req := service.Request{Caller: admin, PeriodID: "q1"}

		first, err := s.Forecast(ctx, req)
		So(err, ShouldBeNil)
		second, err := s.Forecast(ctx, req)
		So(err, ShouldBeNil)

		Convey("Then the second call is served from memory", func() {
			So(second, ShouldEqual, first)
			So(f.count("periods"), ShouldEqual, 1)
			stats := s.GetStats()
			So(stats["computed"], ShouldEqual, int64(1))
			So(stats["cached"], ShouldEqual, int64(1))
			So(stats["cache_size"], ShouldEqual, int64(1))
		})

		Convey("Then a different scope is computed separately", func() {
			_, err := s.Forecast(ctx, service.Request{Caller: scope.Caller{OrgID: "acme", UserID: "r1", Role: scope.RoleRep}, PeriodID: "q1"})
			So(err, ShouldBeNil)
			So(f.count("periods"), ShouldEqual, 2)
		})

		Convey("Then purging forces a recompute", func() {
			s.Purge(ctx)
			_, err := s.Forecast(ctx, req)
			So(err, ShouldBeNil)
			So(f.count("periods"), ShouldEqual, 2)
		})
	})
}

func TestRepRollup(t *testing.T) {
	ctx := context.Background()

	Convey("Given a manager asking for a rep breakdown", t, func() {
		f := seeded()
		s := newService(t, f, service.WithRateLimit(1000))
		out, err := s.RepRollup(ctx, service.Request{
			Caller:   scope.Caller{OrgID: "acme", UserID: "m1", Role: scope.RoleManager},
			PeriodID: "q1",
		})
		So(err, ShouldBeNil)

		Convey("Then every visible rep gets a row sorted by name", func() {
			So(out.Reps, ShouldHaveLength, 3)
			So(out.Reps[0].Rep.ID, ShouldEqual, "r1")
			So(out.Reps[1].Rep.ID, ShouldEqual, "r2")
			So(out.Reps[2].Rep.ID, ShouldEqual, "m1")
		})

		Convey("Then each row uses the rep's own deals and quota", func() {
			ana := out.Reps[0]
			So(ana.Totals.Bucket(model.BucketCommit).Amount, ShouldEqual, 100)
			So(ana.Totals.WonAmount, ShouldEqual, 30)
			So(ana.Forecast.Quota, ShouldEqual, 200)
			So(ana.Forecast.AI, ShouldAlmostEqual, 30+100*1.1*0.8, eps)

			ben := out.Reps[1]
			So(ben.Totals.Bucket(model.BucketBestCase).Amount, ShouldEqual, 50)
			So(ben.Forecast.Quota, ShouldEqual, 100)

			mo := out.Reps[2]
			So(mo.Totals.OpenAmount, ShouldEqual, 0)
			So(mo.Coverage.Tier, ShouldEqual, forecast.TierUnknown)
		})
	})

	Convey("Given two visible reps who share a name", t, func() {
		f := seeded()
		f.reps = append(f.reps, model.Rep{OrgID: "acme", ID: "r4", Name: "Ana Ruiz", ManagerID: "m1"})
		f.deals = append(f.deals,
			model.Deal{ID: "d", OrgID: "acme", Amount: 70, Stage: "Commit", OwnerID: "r4", OwnerName: "Ana Ruiz", CloseDate: day(2024, 2, 20)})
		s := newService(t, f, service.WithRateLimit(1000))
		out, err := s.RepRollup(ctx, service.Request{
			Caller:   scope.Caller{OrgID: "acme", UserID: "m1", Role: scope.RoleManager},
			PeriodID: "q1",
		})
		So(err, ShouldBeNil)
		So(out.Reps, ShouldHaveLength, 4)

		Convey("Then neither sees the other's deals through the name", func() {
			first, second := out.Reps[0], out.Reps[1]
			So(first.Rep.ID, ShouldEqual, "r1")
			So(first.Totals.Bucket(model.BucketCommit).Amount, ShouldEqual, 100)
			So(first.Totals.WonAmount, ShouldEqual, 0)
			So(first.Forecast.Quota, ShouldEqual, 200)

			So(second.Rep.ID, ShouldEqual, "r4")
			So(second.Totals.Bucket(model.BucketCommit).Amount, ShouldEqual, 70)
			So(second.Totals.WonAmount, ShouldEqual, 0)
			So(second.Forecast.Quota, ShouldEqual, 0)
		})
	})

	Convey("Given a rep who cannot be resolved", t, func() {
		s := newService(t, seeded())
		out, err := s.RepRollup(ctx, service.Request{Caller: scope.Caller{OrgID: "acme", Role: scope.RoleRep}, PeriodID: "q1"})
		So(err, ShouldBeNil)
		So(out.Signals.ScopeEmpty, ShouldBeTrue)
		So(out.Reps, ShouldBeEmpty)
	})

	Convey("Given an unknown period", t, func() {
		s := newService(t, seeded())
		out, err := s.RepRollup(ctx, service.Request{Caller: admin, PeriodID: "q9"})
		So(err, ShouldBeNil)
		So(out.Signals.PeriodNotFound, ShouldBeTrue)
	})
}

func TestRollups(t *testing.T) {
	ctx := context.Background()

	Convey("Given a deal snapshot", t, func() {
		f := seeded()
		f.deals = append(f.deals,
			model.Deal{ID: "d", OrgID: "acme", Amount: 300, Stage: "Commit", HealthScore: 75, OwnerID: "r1"},
			model.Deal{ID: "e", OrgID: "acme", Amount: 10, Stage: "Closed Won", PartnerName: "Acme Resell"},
		)
		s := newService(t, f)
		d := day(2024, 3, 1)

		Convey("When building acme's rollup", func() {
			rows, err := s.BuildRollup(ctx, "acme", d.Add(13*time.Hour))
			So(err, ShouldBeNil)

			Convey("Then rows are grouped by motion and classification", func() {
				So(rows, ShouldHaveLength, 4)
				So(rows[0].Workflow, ShouldEqual, "direct")
				So(rows[0].Stage, ShouldEqual, "best_case")
				So(rows[1].Stage, ShouldEqual, "commit")
				So(rows[2].Stage, ShouldEqual, "won")
				So(rows[3].Workflow, ShouldEqual, "partner")
				So(rows[0].Day.Equal(d), ShouldBeTrue)
			})

			Convey("Then statistics use nearest-rank percentiles and scored health", func() {
				commit := rows[1]
				So(commit.DealCount, ShouldEqual, 2)
				So(commit.TotalAmount, ShouldEqual, 400)
				So(commit.P50Amount, ShouldEqual, 100)
				So(commit.P90Amount, ShouldEqual, 300)
				So(*commit.AvgHealth, ShouldAlmostEqual, 50, eps)

				won := rows[2]
				So(won.DealCount, ShouldEqual, 2)
				So(won.AvgHealth, ShouldBeNil)
			})
		})

		Convey("When refreshing every org twice", func() {
			n1, err := s.RefreshRollups(ctx, d)
			So(err, ShouldBeNil)
			n2, err := s.RefreshRollups(ctx, d)
			So(err, ShouldBeNil)

			Convey("Then the cache holds one row per key", func() {
				So(n1, ShouldEqual, n2)
				So(f.rollupKeys(), ShouldHaveLength, n1)
				So(n1, ShouldEqual, 5)
			})
		})

		Convey("When one org fails to write", func() {
			boom := errors.New("disk full")
			f.writeErr["globex"] = boom
			n, err := s.RefreshRollups(ctx, d)

			Convey("Then the others still land and the error is reported", func() {
				So(errors.Is(err, boom), ShouldBeTrue)
				So(n, ShouldEqual, 4)
			})
		})
	})
}

func TestNew(t *testing.T) {
	Convey("Given a nil store", t, func() {
		_, err := service.New(nil)
		So(err, ShouldNotBeNil)
	})
}
