package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewManager(t *testing.T) {
	Convey("Given a dedicated registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10}),
				WithRefreshInterval(time.Second),
				WithPrometheusRegistry(registry),
			)

			Convey("Then its metrics are registered under the namespace", func() {
				So(m, ShouldNotBeNil)
				m.matchFallbacks.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_unit_match_fallbacks_total"], ShouldBeTrue)
			})

			Convey("Then the refresh interval is the configured one", func() {
				So(m.RefreshInterval(), ShouldEqual, time.Second)
			})
		})

		Convey("When empty options are given", func() {
			m := NewManager(WithNamespace(""), WithHistogramBuckets(nil), WithPrometheusRegistry(registry))

			Convey("Then defaults are kept", func() {
				So(m.namespace, ShouldEqual, "runclub")
				So(m.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
				So(m.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestGlobalRefreshInterval(t *testing.T) {
	Convey("Given the global manager", t, func() {
		So(RefreshInterval(), ShouldEqual, defaultRefreshInterval)
	})
}

func TestRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording reminder and push outcomes", func() {
			before := testutil.ToFloat64(globalManager.remindersFlagged.WithLabelValues("1h"))
			RecordRemindersFlagged("1h", 3)
			beforeFail := testutil.ToFloat64(globalManager.pushTokens.WithLabelValues("failure"))
			RecordPushTokens(4, 1)

			Convey("Then counters move by the recorded amounts", func() {
				So(testutil.ToFloat64(globalManager.remindersFlagged.WithLabelValues("1h"))-before, ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.pushTokens.WithLabelValues("failure"))-beforeFail, ShouldEqual, 1)
			})
		})

		Convey("When recording the remaining series", func() {
			So(func() {
				RecordMatchRequest("ok")
				RecordCandidatesScored(5)
				RecordMatchFallback()
				RecordMatchLatency(1.5)
				RecordMatchResults(3)
				RecordReminderSkipped("24h", "group_not_found")
				RecordRecapDigest("daily")
				RecordRecapSkipped("weekly", "no_token")
				RecordPushSend("log", "ok")
				RecordJobRun("reminder-1h", "ok", 20*time.Millisecond)
				RecordLockBusy("runclub:lock:reminder:1h")
				RecordHTTPRequest("partners", "GET", "200")
				RecordHTTPRequestDuration("partners", "GET", "200", 2)
				RecordErrorByComponent("recap", "lookup")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(10)
				RecordSystemGCPauseTime(0.2)
			}, ShouldNotPanic)

			Convey("Then the registry can be gathered", func() {
				_, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
			})
		})
	})
}
