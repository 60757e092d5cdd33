package reminder

import (
	"time"

	"github.com/okian/runclub/internal/domain/dedupe"
	"github.com/okian/runclub/pkg/logger"
)

// Option applies a configuration option to the Scanner.
type Option func(*Scanner)

// WithEnabled switches the scanner on or off.
func WithEnabled(enabled bool) Option {
	return func(s *Scanner) {
		s.enabled = enabled
	}
}

// WithLocation sets the zone used to print event times.
func WithLocation(loc *time.Location) Option {
	return func(s *Scanner) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocker adds a cross-process lock around every scan.
func WithLocker(l Locker) Option {
	return func(s *Scanner) {
		s.locker = l
	}
}

// WithLedger shares a claim ledger between scanners.
func WithLedger(l dedupe.Ledger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.ledger = l
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}
