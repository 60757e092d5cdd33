// Package notify resolves recipients to device tokens and hands one
// multicast message per call to a push transport.
package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/okian/runclub/internal/domain/model"
	"github.com/okian/runclub/pkg/logger"
	"github.com/okian/runclub/pkg/metrics"
)

// MemberDirectory resolves members by id. Reads must be current at call time.
type MemberDirectory interface {
	Member(ctx context.Context, id model.MemberID) (model.Member, error)
}

// Transport delivers one message to many device tokens.
type Transport interface {
	// Ready reports whether the transport was initialised.
	Ready() bool
	// Send delivers title/body to every token and reports per-token outcomes.
	Send(ctx context.Context, tokens []string, title, body string) (Result, error)
}

// Outcome is the delivery result for one token.
type Outcome struct {
	Token string
	Err   error
}

// Result lists per-token outcomes of one Send.
type Result struct {
	Outcomes []Outcome
}

// SuccessCount returns the number of delivered tokens.
func (r Result) SuccessCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// FailureCount returns the number of failed tokens.
func (r Result) FailureCount() int {
	return len(r.Outcomes) - r.SuccessCount()
}

// Report summarises one Notify call.
type Report struct {
	Recipients int // recipients requested
	Tokens     int // distinct tokens handed to the transport
	Success    int
	Failure    int
}

// Fanout implements recipient resolution and multicast hand-off.
type Fanout struct {
	members   MemberDirectory
	transport Transport
	driver    string
	logger    logger.Logger
}

// New creates a Fanout over the given directory and transport.
func New(members MemberDirectory, transport Transport, opts ...Option) *Fanout {
	f := &Fanout{
		members:   members,
		transport: transport,
		driver:    driverName(transport),
		logger:    logger.Get().Named("notify"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Ready reports whether pushes can currently be delivered.
func (f *Fanout) Ready() bool {
	return f.transport != nil && f.transport.Ready()
}

// Notify sends title/body to every recipient holding a push token.
//
// Unknown members and blank tokens are dropped, tokens are deduplicated in
// first-seen order and at most one Send is issued. Delivery problems are
// logged and counted in the Report; they are never returned.
func (f *Fanout) Notify(ctx context.Context, recipients []model.MemberID, title, body string) Report {
	rep := Report{Recipients: len(recipients)}

	tokens := f.resolveTokens(ctx, recipients)
	rep.Tokens = len(tokens)
	if len(tokens) == 0 {
		f.logger.Debug(ctx, "no push tokens, nothing to send",
			logger.Int("recipients", len(recipients)),
			logger.String("title", title))
		return rep
	}
	if !f.Ready() {
		f.logger.Warn(ctx, "push transport not ready, dropping message",
			logger.Int("tokens", len(tokens)),
			logger.String("title", title))
		metrics.RecordPushSend(f.driver, "not_ready")
		rep.Failure = len(tokens)
		return rep
	}

	res, err := f.transport.Send(ctx, tokens, title, body)
	if err != nil {
		f.logger.Error(ctx, "push send failed",
			logger.String("driver", f.driver),
			logger.Int("tokens", len(tokens)),
			logger.Error(err))
		metrics.RecordPushSend(f.driver, "error")
		metrics.RecordErrorByComponent("notify", "send")
		rep.Failure = len(tokens)
		metrics.RecordPushTokens(0, rep.Failure)
		return rep
	}

	rep.Success = res.SuccessCount()
	rep.Failure = res.FailureCount()
	for _, o := range res.Outcomes {
		if o.Err != nil {
			f.logger.Debug(ctx, "push token rejected", logger.Error(o.Err))
		}
	}
	metrics.RecordPushSend(f.driver, "sent")
	metrics.RecordPushTokens(rep.Success, rep.Failure)
	f.logger.Info(ctx, "push sent",
		logger.String("driver", f.driver),
		logger.String("title", title),
		logger.Int("success", rep.Success),
		logger.Int("failure", rep.Failure))
	return rep
}

func (f *Fanout) resolveTokens(ctx context.Context, recipients []model.MemberID) []string {
	tokens := make([]string, 0, len(recipients))
	seen := make(map[string]struct{}, len(recipients))
	for _, id := range recipients {
		m, err := f.members.Member(ctx, id)
		if err != nil {
			if !errors.Is(err, model.ErrNotFound) {
				f.logger.Warn(ctx, "recipient lookup failed",
					logger.String("member_id", id.String()),
					logger.Error(err))
				metrics.RecordErrorByComponent("notify", "lookup")
			}
			continue
		}
		if !m.HasPushToken() {
			continue
		}
		tok := strings.TrimSpace(m.PushToken)
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	return tokens
}

func driverName(t Transport) string {
	if n, ok := t.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "push"
}
