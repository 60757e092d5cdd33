package push

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/okian/runclub/internal/notify"
	"github.com/okian/runclub/pkg/logger"
)

// Message is the JSON body published to the broker.
type Message struct {
	Tokens []string  `json:"tokens"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sent_at"`
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQP hands messages to a broker; a downstream consumer owns delivery.
type AMQP struct {
	conn       *amqp.Connection
	ch         publisher
	exchange   string
	routingKey string
	now        func() time.Time
	logger     logger.Logger
}

// NewAMQP dials url and declares a durable topic exchange.
func NewAMQP(url, exchange, routingKey string) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%w: dial rabbitmq: %v", ErrInit, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: open channel: %v", ErrInit, err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%w: declare exchange: %v", ErrInit, err)
	}
	a := newAMQP(ch, exchange, routingKey)
	a.conn = conn
	return a, nil
}

func newAMQP(ch publisher, exchange, routingKey string) *AMQP {
	return &AMQP{
		ch:         ch,
		exchange:   exchange,
		routingKey: routingKey,
		now:        time.Now,
		logger:     logger.Get().Named("push.amqp"),
	}
}

// Name implements the driver label.
func (*AMQP) Name() string { return "amqp" }

// Ready reports whether the channel is open.
func (a *AMQP) Ready() bool {
	if a == nil || a.ch == nil {
		return false
	}
	return a.conn == nil || !a.conn.IsClosed()
}

// Send publishes one message carrying every token.
func (a *AMQP) Send(ctx context.Context, tokens []string, title, body string) (notify.Result, error) {
	if !a.Ready() {
		return notify.Result{}, ErrNotReady
	}
	b, err := json.Marshal(Message{Tokens: tokens, Title: title, Body: body, SentAt: a.now().UTC()})
	if err != nil {
		return notify.Result{}, fmt.Errorf("encode push message: %w", err)
	}
	err = a.ch.PublishWithContext(ctx, a.exchange, a.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    a.now(),
		Body:         b,
	})
	if err != nil {
		return notify.Result{}, fmt.Errorf("publish %s/%s: %w", a.exchange, a.routingKey, err)
	}
	a.logger.Debug(ctx, "push published", logger.Int("tokens", len(tokens)), logger.String("exchange", a.exchange))
	return delivered(tokens), nil
}

// Close releases the channel and connection.
func (a *AMQP) Close() error {
	if c, ok := a.ch.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}
