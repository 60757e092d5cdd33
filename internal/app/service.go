// Package service wires the club store, the push transport and the domain
// engines together and implements the dependencies of the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/runclub/internal/adapters/lock"
	"github.com/okian/runclub/internal/adapters/push"
	repository "github.com/okian/runclub/internal/adapters/repository"
	"github.com/okian/runclub/internal/adapters/repository/postgres"
	"github.com/okian/runclub/internal/adapters/scheduler"
	"github.com/okian/runclub/internal/config"
	"github.com/okian/runclub/internal/domain/dedupe"
	"github.com/okian/runclub/internal/domain/matching"
	"github.com/okian/runclub/internal/domain/model"
	"github.com/okian/runclub/internal/domain/recap"
	"github.com/okian/runclub/internal/domain/reminder"
	"github.com/okian/runclub/internal/notify"
	"github.com/okian/runclub/internal/obs"
	"github.com/okian/runclub/pkg/logger"
)

// Job names accepted by Trigger.
const (
	JobReminder1h  = "reminder-1h"
	JobReminder24h = "reminder-24h"
	JobRecapDaily  = "recap-daily"
	JobRecapWeekly = "recap-weekly"
)

const serviceName = "runclub"

type closer struct {
	name string
	fn   func(context.Context) error
}

// Service implements the API dependencies for the club backend.
type Service struct {
	mu sync.RWMutex

	cfg     *config.Config
	version string
	now     func() time.Time

	// Collaborators, injected or opened by Start.
	store     repository.Store
	transport notify.Transport
	locker    reminder.Locker

	// Engines
	ledger    dedupe.Ledger
	fanout    *notify.Fanout
	matcher   *matching.Matcher
	scanners  map[model.LeadTime]*reminder.Scanner
	recaps    map[recap.Period]*recap.Aggregator
	scheduler *scheduler.Scheduler

	closers   []closer
	started   bool
	startedAt time.Time

	logger logger.Logger
}

// New constructs a Service for cfg. Nothing is opened until Start.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{
		cfg:     cfg,
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the collaborators that were not injected, builds the engines
// and starts the scheduler.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	loc, err := s.cfg.Location()
	if err != nil {
		return err
	}

	if err := s.openCollaborators(ctx); err != nil {
		s.closeAll(context.Background())
		return err
	}

	s.ledger = dedupe.NewMemoryLedger(dedupe.WithMaxSize(s.cfg.ClaimLedgerSize))
	s.fanout = notify.New(s.store, s.transport)
	s.matcher = matching.New(s.store,
		matching.WithWorkers(s.cfg.MatchWorkers),
		matching.WithLocation(loc),
	)

	s.scanners = make(map[model.LeadTime]*reminder.Scanner, 2)
	for _, lead := range []model.LeadTime{model.LeadOneHour, model.LeadOneDay} {
		opts := []reminder.Option{
			reminder.WithEnabled(s.cfg.RemindersEnabled),
			reminder.WithLocation(loc),
			reminder.WithLedger(s.ledger),
			reminder.WithClock(s.now),
		}
		if s.locker != nil {
			opts = append(opts, reminder.WithLocker(s.locker))
		}
		s.scanners[lead] = reminder.NewScanner(lead, s.store, s.store, s.fanout, opts...)
	}

	s.recaps = map[recap.Period]*recap.Aggregator{
		recap.PeriodDaily: recap.New(recap.PeriodDaily, s.store, s.store, s.fanout,
			recap.WithEnabled(s.cfg.DailyRecapEnabled),
			recap.WithLocation(loc),
			recap.WithPageSize(s.cfg.RecapPageSize),
			recap.WithClock(s.now),
		),
		recap.PeriodWeekly: recap.New(recap.PeriodWeekly, s.store, s.store, s.fanout,
			recap.WithEnabled(s.cfg.WeeklyRecapEnabled),
			recap.WithLocation(loc),
			recap.WithPageSize(s.cfg.RecapPageSize),
			recap.WithClock(s.now),
		),
	}

	s.scheduler = scheduler.New(
		scheduler.WithLocation(loc),
		scheduler.WithQuietErrors(reminder.ErrDisabled, reminder.ErrTickInProgress, recap.ErrDisabled),
	)
	for _, job := range s.jobs() {
		if err := s.scheduler.Register(job); err != nil {
			s.closeAll(context.Background())
			return fmt.Errorf("%w: %w", ErrStart, err)
		}
	}
	s.scheduler.Start(ctx)

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "runclub service started",
		logger.String("push_driver", s.cfg.PushDriver),
		logger.Bool("push_ready", s.fanout.Ready()),
		logger.Bool("distributed_lock", s.locker != nil),
		logger.Int("match_workers", s.cfg.MatchWorkers),
		logger.String("timezone", loc.String()),
	)
	return nil
}

// openCollaborators opens the tracer, store, lock and push transport.
func (s *Service) openCollaborators(ctx context.Context) error {
	shutdown, err := obs.InitTracer(ctx, s.cfg.OTelEndpoint, serviceName, s.version)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStart, err)
	}
	s.closers = append(s.closers, closer{name: "tracer", fn: shutdown})

	if s.store == nil {
		if s.cfg.PostgresURL != "" {
			pool, err := postgres.Connect(ctx, s.cfg.PostgresURL)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrStart, err)
			}
			s.store = postgres.New(pool)
			s.closers = append(s.closers, closer{name: "postgres", fn: func(context.Context) error {
				pool.Close()
				return nil
			}})
		} else {
			s.logger.Warn(ctx, "postgres_url is empty; using an empty in-memory store")
			s.store = repository.NewMemoryStore()
		}
	}

	if s.locker == nil {
		if client := lock.Connect(s.cfg.RedisAddr, s.cfg.RedisPassword); client != nil {
			if err := client.Ping(ctx).Err(); err != nil {
				_ = client.Close()
				return fmt.Errorf("%w: redis ping %s: %w", ErrStart, s.cfg.RedisAddr, err)
			}
			s.locker = lock.NewRedisLocker(client, lock.WithTTL(s.cfg.LockTTL()))
			s.closers = append(s.closers, closer{name: "redis", fn: func(context.Context) error {
				return client.Close()
			}})
		}
	}

	if s.transport == nil {
		t, err := s.openTransport(ctx)
		if err != nil {
			// A broken transport leaves ticks skipped, matching keeps working.
			s.logger.Error(ctx, "push transport unavailable", logger.String("driver", s.cfg.PushDriver), logger.Error(err))
			t = push.Disabled{}
		}
		s.transport = t
	}
	return nil
}

func (s *Service) openTransport(ctx context.Context) (notify.Transport, error) {
	switch s.cfg.PushDriver {
	case config.PushDriverFCM:
		return push.NewFCM(ctx, s.cfg.FCMCredentialsFile)
	case config.PushDriverAMQP:
		a, err := push.NewAMQP(s.cfg.AMQPURL, s.cfg.AMQPExchange, s.cfg.AMQPRoutingKey)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, closer{name: "amqp", fn: func(context.Context) error { return a.Close() }})
		return a, nil
	case config.PushDriverNone:
		return push.Disabled{}, nil
	default:
		return push.NewLog(), nil
	}
}

// jobs lists the scheduled ticks.
func (s *Service) jobs() []scheduler.Job {
	return []scheduler.Job{
		{
			Name:    JobReminder1h,
			Spec:    s.cfg.CronReminder1h,
			Enabled: s.cfg.RemindersEnabled,
			Run:     s.reminderJob(model.LeadOneHour),
		},
		{
			Name:    JobReminder24h,
			Spec:    s.cfg.CronReminder24h,
			Enabled: s.cfg.RemindersEnabled,
			Run:     s.reminderJob(model.LeadOneDay),
		},
		{
			Name:    JobRecapDaily,
			Spec:    s.cfg.CronRecapDaily,
			Enabled: s.cfg.DailyRecapEnabled,
			Run:     s.recapJob(recap.PeriodDaily),
		},
		{
			Name:    JobRecapWeekly,
			Spec:    s.cfg.CronRecapWeekly,
			Enabled: s.cfg.WeeklyRecapEnabled,
			Run:     s.recapJob(recap.PeriodWeekly),
		},
	}
}

func (s *Service) reminderJob(lead model.LeadTime) func(context.Context) error {
	scanner := s.scanners[lead]
	return func(ctx context.Context) error {
		sum, err := scanner.Scan(ctx)
		if err != nil {
			return err
		}
		s.logger.Info(ctx, "reminder scan done",
			logger.String("lead", string(sum.Lead)),
			logger.Int("due", sum.Due),
			logger.Int("notified", sum.Notified),
			logger.Int("flagged", sum.Flagged),
			logger.Int("skipped", sum.Skipped),
		)
		return nil
	}
}

func (s *Service) recapJob(period recap.Period) func(context.Context) error {
	agg := s.recaps[period]
	return func(ctx context.Context) error {
		sum, err := agg.Run(ctx)
		if err != nil {
			return err
		}
		s.logger.Info(ctx, "recap done",
			logger.String("period", string(sum.Period)),
			logger.Int("events", sum.Events),
			logger.Int("recipients", sum.Recipients),
			logger.Int("sent", sum.Sent),
		)
		return nil
	}
}

// Stop halts the scheduler and closes what Start opened.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping runclub service...")

	var errs []error
	if err := s.scheduler.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, s.closeAll(ctx)...)

	s.started = false
	s.logger.Info(ctx, "runclub service stopped")
	return errors.Join(errs...)
}

// closeAll runs the closers in reverse order.
func (s *Service) closeAll(ctx context.Context) []error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		c := s.closers[i]
		if err := c.fn(ctx); err != nil {
			if s.logger != nil {
				s.logger.Warn(ctx, "close failed", logger.String("component", c.name), logger.Error(err))
			}
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	s.closers = nil
	return errs
}

// FindPartners returns ranked running partners for id.
func (s *Service) FindPartners(ctx context.Context, id model.MemberID) ([]model.MatchCandidate, error) {
	s.mu.RLock()
	m := s.matcher
	s.mu.RUnlock()
	if m == nil {
		return nil, ErrNotStarted
	}
	return m.FindPartners(ctx, id)
}

// Trigger runs the named job now in the background.
func (s *Service) Trigger(name string) (string, error) {
	s.mu.RLock()
	sched, started := s.scheduler, s.started
	s.mu.RUnlock()
	if !started {
		return "", fmt.Errorf("%w: %w", scheduler.ErrStopped, ErrNotStarted)
	}
	return sched.Trigger(name)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"version":     s.version,
		"push_driver": s.cfg.PushDriver,
		"timezone":    s.cfg.Timezone,
	}
	if !s.started {
		return stats
	}

	stats["uptime_seconds"] = int64(time.Since(s.startedAt).Seconds())
	stats["push_ready"] = s.fanout.Ready()
	stats["distributed_lock"] = s.locker != nil
	stats["claimed_reminders"] = s.ledger.Size()
	stats["jobs"] = s.scheduler.Statuses()
	if mem, ok := s.store.(*repository.MemoryStore); ok {
		members, groups, events := mem.Counts()
		stats["members"] = members
		stats["groups"] = groups
		stats["events"] = events
	}
	return stats
}
