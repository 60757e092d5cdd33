// Package reminder detects events entering a reminder window and notifies
// their groups exactly once per lead time.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/okian/runclub/internal/domain/dedupe"
	"github.com/okian/runclub/internal/domain/model"
	"github.com/okian/runclub/internal/notify"
	"github.com/okian/runclub/pkg/logger"
	"github.com/okian/runclub/pkg/metrics"
)

const lockKeyPrefix = "runclub:lock:reminder:"

var tracer = otel.Tracer("github.com/okian/runclub/internal/domain/reminder")

// EventStore reads due events and persists reminder flags.
type EventStore interface {
	// DueForReminder returns events in [from, to) with the lead flag unset, oldest first.
	DueForReminder(ctx context.Context, lead model.LeadTime, from, to time.Time) ([]model.Event, error)
	MarkReminded(ctx context.Context, lead model.LeadTime, ids []model.EventID) error
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

// Locker provides a lock shared by every replica.
// unlock must be called once when acquired is true.
type Locker interface {
	TryLock(ctx context.Context, key string) (unlock func(), acquired bool, err error)
}

// Summary describes one completed scan.
type Summary struct {
	Lead     model.LeadTime
	From, To time.Time
	Due      int // events returned by the store
	Notified int // events fanned out during this scan
	Flagged  int // events whose flag was persisted
	Skipped  int // events left unflagged
}

// Scanner runs the reminder tick for one lead time.
type Scanner struct {
	lead     model.LeadTime
	events   EventStore
	groups   GroupDirectory
	notifier Notifier
	ledger   dedupe.Ledger
	locker   Locker
	loc      *time.Location
	now      func() time.Time
	enabled  bool
	mu       sync.Mutex
	logger   logger.Logger
}

// NewScanner creates a scanner for lead.
func NewScanner(lead model.LeadTime, events EventStore, groups GroupDirectory, notifier Notifier, opts ...Option) *Scanner {
	s := &Scanner{
		lead:     lead,
		events:   events,
		groups:   groups,
		notifier: notifier,
		ledger:   dedupe.NewMemoryLedger(),
		loc:      time.UTC,
		now:      time.Now,
		enabled:  true,
		logger:   logger.Get().Named("reminder").With(logger.String("lead", string(lead))),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lead returns the lead time served by the scanner.
func (s *Scanner) Lead() model.LeadTime { return s.lead }

// Window returns the half-open window scanned at now.
func (s *Scanner) Window(now time.Time) (from, to time.Time) {
	switch s.lead {
	case model.LeadOneDay:
		return now.Add(23 * time.Hour), now.Add(25 * time.Hour)
	default:
		return now, now.Add(time.Hour)
	}
}

// Message builds the reminder title and body for e.
func (s *Scanner) Message(e model.Event) (title, body string) {
	switch s.lead {
	case model.LeadOneDay:
		title = "Tomorrow – " + e.Title
	default:
		title = "Starting within the hour – " + e.Title
	}
	body = fmt.Sprintf("Reminder: %s at %s", e.Title, e.Date.In(s.loc).Format("15h04"))
	return title, body
}

// Scan notifies every due event and flags it.
//
// The flag is set after the fan-out attempt even if every token failed.
// Events whose group cannot be resolved are skipped and stay unflagged.
// Overlapping scans return ErrTickInProgress.
func (s *Scanner) Scan(ctx context.Context) (Summary, error) {
	sum := Summary{Lead: s.lead}
	if !s.enabled {
		metrics.RecordReminderSkipped(string(s.lead), "disabled")
		return sum, ErrDisabled
	}
	if s.notifier == nil || !s.notifier.Ready() {
		metrics.RecordReminderSkipped(string(s.lead), "transport_not_ready")
		return sum, fmt.Errorf("%w: push transport not ready", ErrDisabled)
	}

	if !s.mu.TryLock() {
		metrics.RecordReminderSkipped(string(s.lead), "in_progress")
		return sum, ErrTickInProgress
	}
	defer s.mu.Unlock()

	if s.locker != nil {
		key := lockKeyPrefix + string(s.lead)
		unlock, ok, err := s.locker.TryLock(ctx, key)
		if err != nil {
			return sum, fmt.Errorf("acquire %s: %w", key, err)
		}
		if !ok {
			metrics.RecordLockBusy(key)
			metrics.RecordReminderSkipped(string(s.lead), "locked")
			return sum, ErrTickInProgress
		}
		defer unlock()
	}

	ctx, span := tracer.Start(ctx, "reminder.Scan")
	defer span.End()
	span.SetAttributes(attribute.String("reminder.lead", string(s.lead)))

	sum, err := s.scan(ctx, sum)
	span.SetAttributes(
		attribute.Int("reminder.due", sum.Due),
		attribute.Int("reminder.flagged", sum.Flagged),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		metrics.RecordErrorByComponent("reminder", "scan")
	}
	return sum, err
}

func (s *Scanner) scan(ctx context.Context, sum Summary) (Summary, error) {
	sum.From, sum.To = s.Window(s.now())

	due, err := s.events.DueForReminder(ctx, s.lead, sum.From, sum.To)
	if err != nil {
		return sum, fmt.Errorf("due events: %w", err)
	}
	sum.Due = len(due)
	if len(due) == 0 {
		s.logger.Debug(ctx, "no events due",
			logger.Time("from", sum.From),
			logger.Time("to", sum.To))
		return sum, nil
	}

	flagged := make([]model.EventID, 0, len(due))
	var ctxErr error
	for _, e := range due {
		if ctxErr = ctx.Err(); ctxErr != nil {
			break
		}
		key := dedupe.ReminderKey(e.ID, s.lead)
		if !s.ledger.Claim(ctx, key) {
			// Notified earlier by this process; only the flag write is missing.
			flagged = append(flagged, e.ID)
			continue
		}
		g, err := s.groups.Group(ctx, e.GroupID)
		if err != nil {
			s.ledger.Release(ctx, key)
			s.logger.Warn(ctx, "skipping event with unresolvable group",
				logger.Int64("event_id", e.ID),
				logger.Int64("group_id", e.GroupID),
				logger.Error(err))
			metrics.RecordReminderSkipped(string(s.lead), "group_unresolvable")
			sum.Skipped++
			continue
		}

		title, body := s.Message(e)
		rep := s.notifier.Notify(ctx, g.Recipients(), title, body)
		s.logger.Debug(ctx, "reminder sent",
			logger.Int64("event_id", e.ID),
			logger.Int("tokens", rep.Tokens),
			logger.Int("failure", rep.Failure))
		sum.Notified++
		flagged = append(flagged, e.ID)
	}

	if len(flagged) > 0 {
		if err := s.events.MarkReminded(context.WithoutCancel(ctx), s.lead, flagged); err != nil {
			// Claims are kept so a retry only rewrites the flags.
			return sum, fmt.Errorf("mark reminded: %w", err)
		}
		sum.Flagged = len(flagged)
		metrics.RecordRemindersFlagged(string(s.lead), len(flagged))
	}

	s.logger.Info(ctx, "reminder scan complete",
		logger.Int("due", sum.Due),
		logger.Int("notified", sum.Notified),
		logger.Int("flagged", sum.Flagged),
		logger.Int("skipped", sum.Skipped))
	if ctxErr != nil {
		return sum, ctxErr
	}
	return sum, nil
}
