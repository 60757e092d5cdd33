package matching_test

import (
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/okian/runclub/internal/adapters/repository"
	"github.com/okian/runclub/internal/domain/matching"
	"github.com/okian/runclub/internal/domain/model"
	"github.com/okian/runclub/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init(logger.WithOutput(io.Discard))
	os.Exit(m.Run())
}

// tuesday is a Tuesday in UTC.
var tuesday = time.Date(2025, 3, 4, 18, 0, 0, 0, time.UTC)

func addMember(s *repository.MemoryStore, role model.Role, first string) model.MemberID {
	id := uuid.New()
	s.PutMember(model.Member{ID: id, Role: role, FirstName: first, LastName: "Runner", Email: first + "@club.tn"})
	return id
}

// addRuns records runs at the given pace over 5 km.
func addRuns(s *repository.MemoryStore, id model.MemberID, minPerKm float64, n int) {
	for i := 0; i < n; i++ {
		s.AddRun(model.RunRecord{
			MemberID:        id,
			DistanceKm:      5,
			DurationSeconds: int64(minPerKm * 5 * 60),
			StartedAt:       tuesday.AddDate(0, 0, -i),
		})
	}
}

func addTuesdays(s *repository.MemoryStore, id model.MemberID, n int) {
	for i := 0; i < n; i++ {
		s.AddAttendance(model.AttendanceRecord{MemberID: id, EventID: int64(i + 1), EventDate: tuesday.AddDate(0, 0, -7*i)})
	}
}

type failingRuns struct {
	*repository.MemoryStore
}

func (failingRuns) RecentRuns(context.Context, model.MemberID, int) ([]model.RunRecord, error) {
	return nil, errors.New("connection refused")
}

func TestMatcher_FindPartners(t *testing.T) {
	ctx := context.Background()

	Convey("Given a requester and a well matched co-member", t, func() {
		s := repository.NewMemoryStore()
		req := addMember(s, model.RoleMember, "Amira")
		cand := addMember(s, model.RoleMember, "Youssef")
		s.PutGroup(model.Group{ID: 1, Name: "Tempo", Level: "intermediate", MemberIDs: []model.MemberID{req, cand}})
		addRuns(s, req, 5.0, 3)
		addRuns(s, cand, 5.1, 3)
		addTuesdays(s, req, 2)
		addTuesdays(s, cand, 2)

		m := matching.New(s, matching.WithLocation(time.UTC))

		Convey("When finding partners", func() {
			got, err := m.FindPartners(ctx, req)

			Convey("Then the candidate scores 90 with every clause", func() {
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 1)
				c := got[0]
				So(c.MemberID, ShouldEqual, cand)
				So(c.Score, ShouldEqual, 90)
				So(c.DisplayName, ShouldEqual, "Youssef Runner")
				So(c.GroupName, ShouldEqual, "Tempo")
				So(c.GroupLevel, ShouldEqual, "intermediate")
				So(*c.Pace, ShouldAlmostEqual, 5.1, 0.0001)
				So(c.Rationale, ShouldEqual, "Same group (Tempo). Similar pace (you 5.0, them 5.1 min/km). Compatible availability.")
			})
		})

		Convey("When a staff member shares the group", func() {
			coach := addMember(s, model.RoleAdminCoach, "Coach")
			s.PutGroup(model.Group{ID: 1, Name: "Tempo", MemberIDs: []model.MemberID{req, cand, coach}})

			got, err := m.FindPartners(ctx, req)

			Convey("Then the staff member is not a candidate", func() {
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 1)
				So(got[0].MemberID, ShouldEqual, cand)
			})
		})

		Convey("When the requester is staff", func() {
			coach := addMember(s, model.RoleAdminGroup, "Coach")
			s.PutGroup(model.Group{ID: 2, Name: "Staff", MemberIDs: []model.MemberID{coach, cand}})

			got, err := m.FindPartners(ctx, coach)

			So(err, ShouldBeNil)
			So(got, ShouldBeEmpty)
		})

		Convey("When the requester is unknown", func() {
			got, err := m.FindPartners(ctx, uuid.New())

			So(err, ShouldBeNil)
			So(got, ShouldBeEmpty)
		})

		Convey("When run history cannot be read", func() {
			broken := matching.New(failingRuns{s})

			got, err := broken.FindPartners(ctx, req)

			Convey("Then the error is wrapped with ErrLookup", func() {
				So(got, ShouldBeNil)
				So(errors.Is(err, matching.ErrLookup), ShouldBeTrue)
			})
		})
	})

	Convey("Given a requester without groups", t, func() {
		s := repository.NewMemoryStore()
		req := addMember(s, model.RoleMember, "Lonely")
		addMember(s, model.RoleMember, "Other")

		got, err := matching.New(s).FindPartners(ctx, req)

		So(err, ShouldBeNil)
		So(got, ShouldBeEmpty)
	})

	Convey("Given a large group of equally matched members", t, func() {
		s := repository.NewMemoryStore()
		req := addMember(s, model.RoleMember, "Req")
		addRuns(s, req, 6.0, 2)
		ids := []model.MemberID{req}
		for i := 0; i < 20; i++ {
			id := addMember(s, model.RoleMember, "M")
			addRuns(s, id, 6.0, 2)
			ids = append(ids, id)
		}
		s.PutGroup(model.Group{ID: 1, Name: "Big", MemberIDs: ids})

		got, err := matching.New(s, matching.WithWorkers(3)).FindPartners(ctx, req)

		Convey("Then at most 15 are returned, requester excluded, ties by id", func() {
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, matching.MaxResults)

			var gotIDs []string
			for _, c := range got {
				So(c.MemberID, ShouldNotEqual, req)
				So(c.Score, ShouldEqual, 70)
				gotIDs = append(gotIDs, c.MemberID.String())
			}
			So(sort.StringsAreSorted(gotIDs), ShouldBeTrue)

			var all []string
			for _, id := range ids[1:] {
				all = append(all, id.String())
			}
			sort.Strings(all)
			So(gotIDs, ShouldResemble, all[:matching.MaxResults])
		})
	})

	Convey("Given candidates all below a raised threshold", t, func() {
		s := repository.NewMemoryStore()
		req := addMember(s, model.RoleMember, "Req")
		a := addMember(s, model.RoleMember, "A")
		b := addMember(s, model.RoleMember, "B")
		s.PutGroup(model.Group{ID: 1, Name: "Easy", MemberIDs: []model.MemberID{req, a, b}})
		addRuns(s, a, 7.0, 1)

		got, err := matching.New(s, matching.WithLimits(50, 15)).FindPartners(ctx, req)

		Convey("Then every scored candidate is returned", func() {
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 2)
			for _, c := range got {
				So(c.Score, ShouldEqual, 30)
			}
			So(got[0].MemberID.String() < got[1].MemberID.String(), ShouldBeTrue)
		})

		Convey("Then the candidate-only pace clause is used", func() {
			for _, c := range got {
				if c.MemberID == a {
					So(c.Rationale, ShouldEqual, "Same group (Easy). Average pace 7.0 min/km.")
				}
			}
		})
	})
}
