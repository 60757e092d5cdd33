// Package push implements notify.Transport for Firebase Cloud Messaging,
// an AMQP broker hand-off and plain logging.
package push

import (
	"context"

	"github.com/okian/runclub/internal/notify"
	"github.com/okian/runclub/pkg/logger"
)

var (
	_ notify.Transport = (*FCM)(nil)
	_ notify.Transport = (*AMQP)(nil)
	_ notify.Transport = (*Log)(nil)
	_ notify.Transport = Disabled{}
)

// Log writes every message to the logger and reports it delivered.
type Log struct {
	logger logger.Logger
}

// NewLog creates a log-only transport.
func NewLog() *Log {
	return &Log{logger: logger.Get().Named("push.log")}
}

// Name implements the driver label.
func (*Log) Name() string { return "log" }

// Ready always reports true.
func (*Log) Ready() bool { return true }

// Send logs the message once.
func (l *Log) Send(ctx context.Context, tokens []string, title, body string) (notify.Result, error) {
	l.logger.Info(ctx, "push",
		logger.Int("tokens", len(tokens)),
		logger.String("title", title),
		logger.String("body", body))
	return delivered(tokens), nil
}

// Disabled is a transport that is never ready.
type Disabled struct{}

// Name implements the driver label.
func (Disabled) Name() string { return "none" }

// Ready always reports false.
func (Disabled) Ready() bool { return false }

// Send fails every token.
func (Disabled) Send(_ context.Context, tokens []string, _, _ string) (notify.Result, error) {
	return failed(tokens, ErrNotReady), nil
}

func delivered(tokens []string) notify.Result {
	res := notify.Result{Outcomes: make([]notify.Outcome, len(tokens))}
	for i, t := range tokens {
		res.Outcomes[i] = notify.Outcome{Token: t}
	}
	return res
}

func failed(tokens []string, err error) notify.Result {
	res := notify.Result{Outcomes: make([]notify.Outcome, len(tokens))}
	for i, t := range tokens {
		res.Outcomes[i] = notify.Outcome{Token: t, Err: err}
	}
	return res
}
