package pace_test

import (
	"math"
	"testing"

	"github.com/okian/runclub/internal/domain/model"
	"github.com/okian/runclub/internal/domain/pace"
	. "github.com/smartystreets/goconvey/convey"
)

func run(km float64, seconds int64) model.RunRecord {
	return model.RunRecord{DistanceKm: km, DurationSeconds: seconds}
}

func TestEstimate(t *testing.T) {
	Convey("Given no run records", t, func() {
		_, ok := pace.Estimate(nil)

		Convey("Then the pace is unknown", func() {
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given only records that do not qualify", t, func() {
		records := []model.RunRecord{
			run(0.1, 60),    // distance not above 0.1 km
			run(5, 0),       // zero duration
			run(10, 600),    // 1 min/km, too fast
			run(1, 15*60),   // exactly 15 min/km, excluded
			run(10, 20*60),  // exactly 2 min/km, excluded
			run(-3, 1200),   // negative distance
		}
		_, ok := pace.Estimate(records)

		Convey("Then the pace is unknown", func() {
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given a mix of valid and noisy records", t, func() {
		records := []model.RunRecord{
			run(10, 50*60), // 5.0
			run(5, 30*60),  // 6.0
			run(0.05, 600), // noise
			run(2, 60),     // 0.5, noise
		}
		p, ok := pace.Estimate(records)

		Convey("Then only the valid ones are averaged", func() {
			So(ok, ShouldBeTrue)
			So(p, ShouldAlmostEqual, 5.5, 1e-9)
		})
	})
}

func TestOf(t *testing.T) {
	Convey("Given a 5 km run in 26 minutes", t, func() {
		p, ok := pace.Of(run(5, 26*60))

		Convey("Then the pace is 5.2 min/km", func() {
			So(ok, ShouldBeTrue)
			So(p, ShouldAlmostEqual, 5.2, 1e-9)
		})
	})
}

func TestNonFiniteDistances(t *testing.T) {
	Convey("Given records with NaN and infinite distances", t, func() {
		nan := run(math.NaN(), 1500)
		inf := run(math.Inf(1), 1500)

		Convey("Then neither qualifies on its own", func() {
			_, ok := pace.Of(nan)
			So(ok, ShouldBeFalse)
			_, ok = pace.Of(inf)
			So(ok, ShouldBeFalse)
		})

		Convey("Then they do not poison the average", func() {
			p, ok := pace.Estimate([]model.RunRecord{run(5, 1500), nan, inf})
			So(ok, ShouldBeTrue)
			So(math.IsNaN(p), ShouldBeFalse)
			So(p, ShouldAlmostEqual, 5.0, 1e-9)
		})
	})
}
