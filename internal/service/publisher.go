// Package service holds the outbound integrations of the auth core.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/j0462/newspeed/internal/logging"
	"github.com/j0462/newspeed/internal/queue"
)

const (
	dialTimeout = 2 * time.Second
	// redialAfter is how long Publish fails fast after a dial failure.
	redialAfter = 5 * time.Second
)

// errBrokerUnavailable is returned without dialing while another caller is
// dialing or a recent dial failed.
var errBrokerUnavailable = errors.New("rabbitmq: broker unavailable")

// Publisher sends account security events to RabbitMQ.  The connection is
// opened lazily and re-dialed after a failure.  Only one caller dials at a
// time and the lock is never held across the dial.  Safe for concurrent use.
type Publisher struct {
	url string
	log logging.Logger
	now func() time.Time

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	dialing bool
	retryAt time.Time
}

func NewPublisher(url string, log logging.Logger) *Publisher {
	return &Publisher{url: url, log: log, now: time.Now}
}

// Publish sends ev as a persistent JSON message to the account.security
// queue.  Errors are logged and returned; callers may ignore them.
func (p *Publisher) Publish(ctx context.Context, ev queue.AccountEvent) error {
	msg, err := encodeEvent(ev)
	if err != nil {
		return err
	}

	ch, err := p.channel(ctx)
	if err != nil {
		p.log.Warn(ctx, "rabbitmq: channel unavailable", "error", err.Error())
		return err
	}
	if err := ch.PublishWithContext(ctx, "", queue.AccountEventsQueue, false, false, msg); err != nil {
		p.log.Warn(ctx, "rabbitmq: publish failed", "error", err.Error())
		p.mu.Lock()
		if p.ch == ch {
			p.reset()
		}
		p.mu.Unlock()
		return err
	}
	return nil
}

// channel returns the open channel or dials a new one.  Concurrent callers
// that find a dial in flight, or a recent failed dial, get
// errBrokerUnavailable instead of waiting.
func (p *Publisher) channel(ctx context.Context) (*amqp.Channel, error) {
	p.mu.Lock()
	if p.ch != nil && !p.ch.IsClosed() {
		ch := p.ch
		p.mu.Unlock()
		return ch, nil
	}
	if p.dialing || p.now().Before(p.retryAt) {
		p.mu.Unlock()
		return nil, errBrokerUnavailable
	}
	p.reset()
	p.dialing = true
	p.mu.Unlock()

	conn, ch, err := p.dial(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialing = false
	if err != nil {
		p.retryAt = p.now().Add(redialAfter)
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) dial(ctx context.Context) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      contextDial(ctx, dialTimeout),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("channel open: %w", err)
	}
	if _, err := ch.QueueDeclare(queue.AccountEventsQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("queue declare: %w", err)
	}
	return conn, ch, nil
}

// contextDial is amqp.DefaultDial that also gives up when ctx is done.
func contextDial(ctx context.Context, timeout time.Duration) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		// handshake deadline; amqp clears it once the connection is open
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

func encodeEvent(ev queue.AccountEvent) (amqp.Publishing, error) {
	if ev.Type == "" || ev.AccountID == "" {
		return amqp.Publishing{}, errors.New("account event missing type or account id")
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.OccurredAt,
		Type:         string(ev.Type),
		Body:         body,
	}, nil
}

// reset drops the connection.  Caller holds p.mu.
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

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}
