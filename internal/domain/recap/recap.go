// Package recap sends one digest per recipient listing the events of the
// current day or week.
package recap

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/okian/runclub/internal/domain/model"
	"github.com/okian/runclub/internal/notify"
	"github.com/okian/runclub/pkg/logger"
	"github.com/okian/runclub/pkg/metrics"
)

// Digest limits.
const (
	DefaultPageSize = 200
	MaxTitles       = 5
)

var tracer = otel.Tracer("github.com/okian/runclub/internal/domain/recap")

// Period selects the calendar window of a recap.
type Period string

// Supported periods.
const (
	PeriodDaily  Period = "daily"
	PeriodWeekly Period = "weekly"
)

// EventReader lists events in a window, ordered by date.
type EventReader interface {
	EventsBetween(ctx context.Context, from, to time.Time, limit int) ([]model.Event, error)
}

// GroupDirectory resolves an event's group.
type GroupDirectory interface {
	Group(ctx context.Context, id model.GroupID) (model.Group, error)
}

// Notifier delivers one message to many members.
type Notifier interface {
	Ready() bool
	Notify(ctx context.Context, recipients []model.MemberID, title, body string) notify.Report
}

// Summary describes one completed run.
type Summary struct {
	Period     Period
	From, To   time.Time
	Events     int
	Recipients int
	Sent       int // digests that reached at least one token
}

// Aggregator builds and sends digests for one period.
type Aggregator struct {
	period   Period
	events   EventReader
	groups   GroupDirectory
	notifier Notifier
	loc      *time.Location
	now      func() time.Time
	pageSize int
	enabled  bool
	logger   logger.Logger
}

// New creates an aggregator for period.
func New(period Period, events EventReader, groups GroupDirectory, notifier Notifier, opts ...Option) *Aggregator {
	a := &Aggregator{
		period:   period,
		events:   events,
		groups:   groups,
		notifier: notifier,
		loc:      time.UTC,
		now:      time.Now,
		pageSize: DefaultPageSize,
		enabled:  true,
		logger:   logger.Get().Named("recap").With(logger.String("period", string(period))),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Period returns the period served by the aggregator.
func (a *Aggregator) Period() Period { return a.period }

// Window returns [start, end) of the period containing now, in the reference zone.
func (a *Aggregator) Window(now time.Time) (from, to time.Time) {
	local := now.In(a.loc)
	y, m, d := local.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, a.loc)
	if a.period == PeriodWeekly {
		sinceMonday := (int(local.Weekday()) + 6) % 7
		start = start.AddDate(0, 0, -sinceMonday)
		return start, start.AddDate(0, 0, 7)
	}
	return start, start.AddDate(0, 0, 1)
}

// Message builds the digest for one recipient's events.
func (a *Aggregator) Message(events []model.Event) (title, body string) {
	suffix := "event(s) today"
	title = "Your events today"
	if a.period == PeriodWeekly {
		suffix = "event(s) this week"
		title = "Events this week"
	}

	titles := make([]string, 0, MaxTitles)
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if len(titles) == MaxTitles {
			break
		}
		if _, ok := seen[e.Title]; ok {
			continue
		}
		seen[e.Title] = struct{}{}
		titles = append(titles, e.Title)
	}
	list := strings.Join(titles, ", ")
	if len(events) > MaxTitles {
		list += "..."
	}
	return title, fmt.Sprintf("%d %s: %s", len(events), suffix, list)
}

// Run sends one digest per recipient of the events in the current window.
// Recipients are processed in member id order; no state is written.
func (a *Aggregator) Run(ctx context.Context) (Summary, error) {
	sum := Summary{Period: a.period}
	if !a.enabled {
		metrics.RecordRecapSkipped(string(a.period), "disabled")
		return sum, ErrDisabled
	}
	if a.notifier == nil || !a.notifier.Ready() {
		metrics.RecordRecapSkipped(string(a.period), "transport_not_ready")
		return sum, fmt.Errorf("%w: push transport not ready", ErrDisabled)
	}

	ctx, span := tracer.Start(ctx, "recap.Run")
	defer span.End()
	span.SetAttributes(attribute.String("recap.period", string(a.period)))

	sum, err := a.run(ctx, sum)
	span.SetAttributes(
		attribute.Int("recap.events", sum.Events),
		attribute.Int("recap.sent", sum.Sent),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recap failed")
		metrics.RecordErrorByComponent("recap", "run")
	}
	return sum, err
}

func (a *Aggregator) run(ctx context.Context, sum Summary) (Summary, error) {
	sum.From, sum.To = a.Window(a.now())

	events, err := a.events.EventsBetween(ctx, sum.From, sum.To, a.pageSize)
	if err != nil {
		return sum, fmt.Errorf("events between: %w", err)
	}
	sum.Events = len(events)
	if len(events) == 0 {
		a.logger.Debug(ctx, "no events in window",
			logger.Time("from", sum.From),
			logger.Time("to", sum.To))
		return sum, nil
	}

	byRecipient := a.groupByRecipient(ctx, events)
	ids := make([]model.MemberID, 0, len(byRecipient))
	for id := range byRecipient {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	sum.Recipients = len(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		title, body := a.Message(byRecipient[id])
		rep := a.notifier.Notify(ctx, []model.MemberID{id}, title, body)
		if rep.Tokens == 0 {
			metrics.RecordRecapSkipped(string(a.period), "no_token")
			continue
		}
		sum.Sent++
		metrics.RecordRecapDigest(string(a.period))
	}

	a.logger.Info(ctx, "recap complete",
		logger.Int("events", sum.Events),
		logger.Int("recipients", sum.Recipients),
		logger.Int("sent", sum.Sent))
	return sum, nil
}

// groupByRecipient maps each member and responsible party to their events.
// Groups are resolved once per run; events whose group is gone are skipped.
func (a *Aggregator) groupByRecipient(ctx context.Context, events []model.Event) map[model.MemberID][]model.Event {
	groups := make(map[model.GroupID]*model.Group)
	out := make(map[model.MemberID][]model.Event)
	for _, e := range events {
		g, ok := groups[e.GroupID]
		if !ok {
			resolved, err := a.groups.Group(ctx, e.GroupID)
			if err != nil {
				if !errors.Is(err, model.ErrNotFound) {
					metrics.RecordErrorByComponent("recap", "group_lookup")
				}
				a.logger.Warn(ctx, "skipping event with unresolvable group",
					logger.Int64("event_id", e.ID),
					logger.Int64("group_id", e.GroupID),
					logger.Error(err))
				groups[e.GroupID] = nil
				continue
			}
			g = &resolved
			groups[e.GroupID] = g
		}
		if g == nil {
			continue
		}
		for _, id := range g.Recipients() {
			out[id] = append(out[id], e)
		}
	}
	return out
}
