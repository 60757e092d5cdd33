package matching

import (
	"time"

	"github.com/okian/runclub/internal/domain/scoring"
	"github.com/okian/runclub/pkg/logger"
)

// Option applies a configuration option to the Matcher.
type Option func(*Matcher)

// WithWorkers bounds concurrent candidate scoring.
func WithWorkers(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithLocation sets the zone used to derive weekday availability.
func WithLocation(loc *time.Location) Option {
	return func(m *Matcher) {
		if loc != nil {
			m.loc = loc
		}
	}
}

// WithScorer replaces the default affinity scorer.
func WithScorer(s *scoring.AffinityScorer) Option {
	return func(m *Matcher) {
		if s != nil {
			m.scorer = s
		}
	}
}

// WithLimits overrides the minimum kept score and the result cap.
func WithLimits(minScore, maxResults int) Option {
	return func(m *Matcher) {
		if minScore >= 0 {
			m.minScore = minScore
		}
		if maxResults > 0 {
			m.maxResults = maxResults
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Matcher) {
		if l != nil {
			m.logger = l
		}
	}
}
