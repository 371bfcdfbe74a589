package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry and custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("engine"),
				WithLatencyBuckets([]float64{1, 10, 100}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then metrics are registered on that registry", func() {
				So(manager, ShouldNotBeNil)
				manager.cacheHits.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording computations", func() {
			before := testutil.ToFloat64(globalManager.computations.WithLabelValues(OutcomeScopeEmpty))
			RecordComputation(OutcomeScopeEmpty)
			RecordComputation(OutcomeScopeEmpty)

			Convey("Then the outcome counter advances", func() {
				after := testutil.ToFloat64(globalManager.computations.WithLabelValues(OutcomeScopeEmpty))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When recording cache activity", func() {
			hits := testutil.ToFloat64(globalManager.cacheHits)
			RecordCacheHit()
			RecordCacheMiss()
			UpdateCacheSize(7)

			Convey("Then hits and size reflect the calls", func() {
				So(testutil.ToFloat64(globalManager.cacheHits)-hits, ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.cacheSize), ShouldEqual, 7)
			})
		})

		Convey("When recording malformed fields", func() {
			before := testutil.ToFloat64(globalManager.malformedFields.WithLabelValues("amount"))
			RecordMalformedField("amount")

			Convey("Then the field counter advances", func() {
				So(testutil.ToFloat64(globalManager.malformedFields.WithLabelValues("amount"))-before, ShouldEqual, 1)
			})
		})

		Convey("When recording latency and HTTP metrics", func() {
			So(func() {
				RecordComputeLatency(12)
				RecordStoreFetch("deals", 3)
				RecordStoreError("quota")
				RecordDealsEvaluated(10)
				RecordScopeFailClosed()
				RecordRuleRejected()
				RecordRollupRows(4)
				RecordRollupRun(OutcomeOK)
				RecordHTTPRequest("forecast", "GET", "200")
				RecordHTTPRequestDuration("forecast", "GET", "200", 5)
				RecordErrorByEndpoint("forecast", "GET", "client_error")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(12)
			}, ShouldNotPanic)
		})

		Convey("When recording rollup job activity", func() {
			before := testutil.ToFloat64(globalManager.jobsProcessed.WithLabelValues(OutcomeError))
			RecordQueueEnqueue()
			RecordQueueEnqueueError("queue_full")
			RecordJobProcessed(OutcomeError)
			RecordJobLatency(3)
			UpdateQueueSize(2)
			UpdateWorkersActive(4)

			Convey("Then the gauges and counters reflect the calls", func() {
				So(testutil.ToFloat64(globalManager.jobsProcessed.WithLabelValues(OutcomeError))-before, ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 2)
				So(testutil.ToFloat64(globalManager.workersActive), ShouldEqual, 4)
			})
		})

		Convey("When fetching the registry", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
