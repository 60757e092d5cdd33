package notify

import (
	"github.com/okian/runclub/pkg/logger"
)

// Option applies a configuration option to the Fanout.
type Option func(*Fanout)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(f *Fanout) {
		if l != nil {
			f.logger = l
		}
	}
}
