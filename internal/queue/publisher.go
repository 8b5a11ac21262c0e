package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// NopPublisher drops every event.  Used when events are disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, AuthEvent) error { return nil }

// ErrBrokerUnavailable is returned while the publisher waits out the
// cooldown that follows a failed connection attempt.
var ErrBrokerUnavailable = errors.New("broker unavailable")

const (
	defaultDialTimeout = 2 * time.Second
	defaultCooldown    = 10 * time.Second
)

// Publisher sends AuthEvents to a durable RabbitMQ queue.  The connection is
// opened lazily and reopened after a failed publish.  Dialing is bounded by
// dialTimeout, and after a failure no new dial is attempted for cooldown so
// requests never queue behind an unreachable broker.
type Publisher struct {
	url   string
	queue string

	dialTimeout time.Duration
	cooldown    time.Duration
	now         func() time.Time

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	failedAt time.Time
}

func NewPublisher(url, queue string) *Publisher {
	return &Publisher{
		url:         url,
		queue:       queue,
		dialTimeout: defaultDialTimeout,
		cooldown:    defaultCooldown,
		now:         time.Now,
	}
}

// Publish marshals ev and publishes it as a persistent message on the
// default exchange, routed by queue name.
func (p *Publisher) Publish(ctx context.Context, ev AuthEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.reset()
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	if !p.failedAt.IsZero() && p.now().Sub(p.failedAt) < p.cooldown {
		return nil, ErrBrokerUnavailable
	}

	ch, err := p.open()
	if err != nil {
		p.failedAt = p.now()
		return nil, err
	}
	p.failedAt = time.Time{}
	return ch, nil
}

func (p *Publisher) open() (*amqp.Channel, error) {
	conn, err := amqp.DialConfig(p.url, dialConfig(p.dialTimeout))
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := declare(ch, p.queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// dialConfig mirrors amqp.Dial's defaults with a bounded connect and
// handshake.
func dialConfig(timeout time.Duration) amqp.Config {
	return amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	}
}

// declare makes sure the durable queue exists; it is idempotent.
func declare(ch *amqp.Channel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(name, true, false, false, false, nil)
	if err != nil {
		return q, fmt.Errorf("queue declare: %w", err)
	}
	return q, nil
}
