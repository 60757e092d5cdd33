package service

import (
	"time"

	repository "github.com/okian/runclub/internal/adapters/repository"
	"github.com/okian/runclub/internal/domain/reminder"
	"github.com/okian/runclub/internal/notify"
	"github.com/okian/runclub/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore replaces the store that Start would otherwise open.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithTransport replaces the push transport selected by push_driver.
func WithTransport(t notify.Transport) Option {
	return func(s *Service) {
		if t != nil {
			s.transport = t
		}
	}
}

// WithLocker replaces the Redis tick lock.
func WithLocker(l reminder.Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithClock overrides the time source of the reminder and recap jobs.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithVersion sets the version reported to the tracer and in stats.
func WithVersion(v string) Option {
	return func(s *Service) {
		if v != "" {
			s.version = v
		}
	}
}
