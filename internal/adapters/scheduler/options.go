package scheduler

import (
	"time"

	"github.com/okian/runclub/pkg/logger"
)

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithLocation sets the zone cron expressions are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithQuietErrors lists job errors that mean "nothing to do". They are
// logged at debug and recorded as skipped runs.
func WithQuietErrors(errs ...error) Option {
	return func(s *Scheduler) {
		s.quiet = append(s.quiet, errs...)
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}
