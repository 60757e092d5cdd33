package recap_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/okian/runclub/internal/adapters/repository"
	"github.com/okian/runclub/internal/domain/model"
	"github.com/okian/runclub/internal/domain/recap"
	"github.com/okian/runclub/internal/notify"
	"github.com/okian/runclub/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init(logger.WithOutput(io.Discard))
	os.Exit(m.Run())
}

type digest struct {
	to    model.MemberID
	title string
	body  string
}

type fakeNotifier struct {
	ready   bool
	tokens  map[model.MemberID]bool
	digests []digest
}

func (f *fakeNotifier) Ready() bool { return f.ready }

func (f *fakeNotifier) Notify(_ context.Context, recipients []model.MemberID, title, body string) notify.Report {
	rep := notify.Report{Recipients: len(recipients)}
	for _, id := range recipients {
		if f.tokens[id] {
			rep.Tokens++
			rep.Success++
			f.digests = append(f.digests, digest{to: id, title: title, body: body})
		}
	}
	return rep
}

func TestAggregator_Window(t *testing.T) {
	Convey("Given a Wednesday afternoon", t, func() {
		loc := time.FixedZone("CET", 3600)
		now := time.Date(2025, 3, 5, 15, 30, 0, 0, loc)

		Convey("Then the daily window is the local calendar day", func() {
			from, to := recap.New(recap.PeriodDaily, nil, nil, nil, recap.WithLocation(loc)).Window(now)
			So(from, ShouldEqual, time.Date(2025, 3, 5, 0, 0, 0, 0, loc))
			So(to, ShouldEqual, time.Date(2025, 3, 6, 0, 0, 0, 0, loc))
		})

		Convey("Then the weekly window runs Monday to Monday", func() {
			from, to := recap.New(recap.PeriodWeekly, nil, nil, nil, recap.WithLocation(loc)).Window(now)
			So(from, ShouldEqual, time.Date(2025, 3, 3, 0, 0, 0, 0, loc))
			So(to, ShouldEqual, time.Date(2025, 3, 10, 0, 0, 0, 0, loc))
		})

		Convey("Then a Sunday belongs to the week that started six days earlier", func() {
			sunday := time.Date(2025, 3, 9, 23, 0, 0, 0, loc)
			from, _ := recap.New(recap.PeriodWeekly, nil, nil, nil, recap.WithLocation(loc)).Window(sunday)
			So(from, ShouldEqual, time.Date(2025, 3, 3, 0, 0, 0, 0, loc))
		})
	})
}

func TestAggregator_Run(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 5, 6, 0, 0, 0, time.UTC)
	clock := recap.WithClock(func() time.Time { return now })

	Convey("Given two events today for the same group", t, func() {
		s := repository.NewMemoryStore()
		member, silent, coach := uuid.New(), uuid.New(), uuid.New()
		s.PutGroup(model.Group{ID: 1, Name: "Tempo", MemberIDs: []model.MemberID{member, silent}, ResponsibleID: &coach})
		s.PutEvent(model.Event{ID: 1, Title: "Intervals", Date: now.Add(2 * time.Hour), GroupID: 1})
		s.PutEvent(model.Event{ID: 2, Title: "Cooldown", Date: now.Add(4 * time.Hour), GroupID: 1})
		s.PutEvent(model.Event{ID: 3, Title: "Tomorrow", Date: now.Add(20 * time.Hour), GroupID: 1})
		n := &fakeNotifier{ready: true, tokens: map[model.MemberID]bool{member: true, coach: true}}

		Convey("When the daily recap runs", func() {
			sum, err := recap.New(recap.PeriodDaily, s, s, n, clock).Run(ctx)

			Convey("Then each recipient with a token gets exactly one digest", func() {
				So(err, ShouldBeNil)
				So(sum.Events, ShouldEqual, 2)
				So(sum.Recipients, ShouldEqual, 3)
				So(sum.Sent, ShouldEqual, 2)
				So(len(n.digests), ShouldEqual, 2)
				for _, d := range n.digests {
					So(d.title, ShouldEqual, "Your events today")
					So(d.body, ShouldEqual, "2 event(s) today: Intervals, Cooldown")
				}
			})

			Convey("Then recipients are processed in member id order", func() {
				want := []string{member.String(), coach.String()}
				sort.Strings(want)
				So([]string{n.digests[0].to.String(), n.digests[1].to.String()}, ShouldResemble, want)
			})

			Convey("Then no reminder flag is touched", func() {
				e, _ := s.Event(ctx, 1)
				So(e.Reminded1h, ShouldBeFalse)
				So(e.Reminded24h, ShouldBeFalse)
			})
		})

		Convey("When the recap is disabled", func() {
			_, err := recap.New(recap.PeriodDaily, s, s, n, clock, recap.WithEnabled(false)).Run(ctx)
			So(errors.Is(err, recap.ErrDisabled), ShouldBeTrue)
			So(n.digests, ShouldBeEmpty)
		})

		Convey("When the transport is not ready", func() {
			n.ready = false
			_, err := recap.New(recap.PeriodDaily, s, s, n, clock).Run(ctx)
			So(errors.Is(err, recap.ErrDisabled), ShouldBeTrue)
		})
	})

	Convey("Given a busy week", t, func() {
		s := repository.NewMemoryStore()
		member := uuid.New()
		s.PutGroup(model.Group{ID: 1, Name: "Marathon", MemberIDs: []model.MemberID{member}})
		titles := []string{"Long run", "Tempo", "Long run", "Hills", "Track", "Fartlek", "Recovery"}
		for i, title := range titles {
			s.PutEvent(model.Event{ID: int64(i + 1), Title: title, Date: now.Add(time.Duration(i+1) * 12 * time.Hour), GroupID: 1})
		}
		s.PutEvent(model.Event{ID: 99, Title: "Lost", Date: now.Add(time.Hour), GroupID: 404})
		n := &fakeNotifier{ready: true, tokens: map[model.MemberID]bool{member: true}}

		sum, err := recap.New(recap.PeriodWeekly, s, s, n, clock).Run(ctx)

		Convey("Then the digest counts every event and lists five distinct titles", func() {
			So(err, ShouldBeNil)
			So(sum.Events, ShouldEqual, 8)
			So(len(n.digests), ShouldEqual, 1)
			So(n.digests[0].title, ShouldEqual, "Events this week")
			So(n.digests[0].body, ShouldEqual, fmt.Sprintf("%d event(s) this week: Long run, Tempo, Hills, Track, Fartlek...", len(titles)))
		})
	})

	Convey("Given no events in the window", t, func() {
		s := repository.NewMemoryStore()
		n := &fakeNotifier{ready: true}

		sum, err := recap.New(recap.PeriodDaily, s, s, n, clock).Run(ctx)

		So(err, ShouldBeNil)
		So(sum.Events, ShouldEqual, 0)
		So(n.digests, ShouldBeEmpty)
	})
}
