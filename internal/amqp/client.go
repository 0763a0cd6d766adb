// Package amqp carries the change feed: every successful mutation is
// announced on a durable direct exchange so other processes of the same user
// can refresh their caches.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rabbitmq/amqp091-go"

	"fincache/internal/log"
	"fincache/internal/repository"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures     = 5
	openTimeout     = 30 * time.Second
	maxBackoff      = 30 * time.Second
	publishTimeout  = 5 * time.Second
	dialTimeout     = 3 * time.Second
	publishAttempts = 2

	DefaultExchange   = "fincache.changes"
	DefaultRoutingKey = "changes"
)

// ErrCircuitOpen is returned while the broker is considered down.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type Config struct {
	URL      string
	Exchange string
	// Queue is declared and bound only by consumers; publishers may leave it empty.
	Queue      string
	RoutingKey string
	// Origin identifies this process in published messages. A ULID is
	// generated when empty.
	Origin string
	Logger *log.Logger
}

type Client struct {
	url          string
	exchangeName string
	queueName    string
	routingKey   string
	origin       string
	logger       *log.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time
}

var _ repository.ChangePublisher = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("amqp url is required")
	}
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	if cfg.RoutingKey == "" {
		cfg.RoutingKey = DefaultRoutingKey
	}
	if cfg.Origin == "" {
		cfg.Origin = ulid.Make().String()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default(log.ComponentAMQP)
	}

	client := &Client{
		url:          cfg.URL,
		exchangeName: cfg.Exchange,
		queueName:    cfg.Queue,
		routingKey:   cfg.RoutingKey,
		origin:       cfg.Origin,
		logger:       cfg.Logger,
	}

	client.mu.Lock()
	_, err := client.connectLocked()
	client.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Origin is the id stamped on every message this client publishes.
func (c *Client) Origin() string { return c.origin }

func (c *Client) log() *log.Logger {
	if c.logger == nil {
		return log.Default(log.ComponentAMQP)
	}
	return c.logger
}

// connectLocked returns the open channel, dialing and declaring the topology
// when there is none. c.mu must be held.
func (c *Client) connectLocked() (*amqp091.Channel, error) {
	if c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}
	c.closeLocked()

	conn, err := amqp091.DialConfig(c.url, amqp091.Config{
		Locale: "en_US",
		Dial:   amqp091.DefaultDial(dialTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	c.conn = conn
	c.channel = channel
	if err := c.setup(); err != nil {
		c.closeLocked()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	return channel, nil
}

func (c *Client) setup() error {
	// Declare exchange
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if c.queueName == "" {
		return nil
	}

	// Declare queue
	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Every consumer queue gets its own copy of each change
	err = c.channel.QueueBind(
		c.queueName,    // queue name
		c.routingKey,   // routing key
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// PublishChange announces c on the exchange. It retries once on connection
// errors and fails fast while the circuit breaker is open.
func (c *Client) PublishChange(ctx context.Context, change repository.Change) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish %s %s: %w", change.Domain, change.Op, ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := NewChangeMessage(change, c.origin)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < publishAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(exponentialBackoff(attempt - 1)):
			}
		}

		lastErr = c.publish(ctx, body)
		if lastErr == nil {
			c.recordSuccess()
			c.log().DebugContext(ctx, "Published change",
				log.FieldOperation, log.OpPublish,
				log.FieldDomain, msg.Resource,
				"op", msg.Op,
				log.FieldEntityID, msg.ID,
				"exchange", c.exchangeName)
			return nil
		}

		c.recordFailure()
		if !isConnectionError(lastErr) || c.isCircuitOpen() {
			break
		}
	}
	return fmt.Errorf("publish message: %w", lastErr)
}

func (c *Client) publish(ctx context.Context, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel, err := c.connectLocked()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.routingKey,   // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		if isConnectionError(err) {
			c.closeLocked()
		}
		return err
	}
	return nil
}

// ConsumeChanges delivers change messages to handler until ctx is done,
// reconnecting with exponential backoff when the broker goes away.
func (c *Client) ConsumeChanges(ctx context.Context, handler func(context.Context, *ChangeMessage) error) error {
	if c.queueName == "" {
		return errors.New("consume: no queue configured")
	}

	attempt := 0
	for {
		err := c.consumeOnce(ctx, handler)
		if ctx.Err() != nil {
			c.log().InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		}

		c.recordFailure()
		wait := exponentialBackoff(attempt)
		attempt++
		c.log().WarnContext(ctx, "Change consumer interrupted, reconnecting",
			log.FieldOperation, log.OpConsume,
			log.FieldError, err,
			"retry_in", wait.String())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) consumeOnce(ctx context.Context, handler func(context.Context, *ChangeMessage) error) error {
	c.mu.Lock()
	channel, err := c.connectLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	msgs, err := channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	c.recordSuccess()

	c.log().InfoContext(ctx, "Started consuming change messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			c.handle(ctx, delivery, handler)
		}
	}
}

func (c *Client) handle(ctx context.Context, delivery amqp091.Delivery, handler func(context.Context, *ChangeMessage) error) {
	msg, err := ChangeMessageFromJSON(delivery.Body)
	if err != nil {
		c.log().ErrorContext(ctx, "Failed to unmarshal message", log.FieldError, err)
		delivery.Nack(false, false) // reject and don't requeue
		return
	}

	if err := handler(ctx, msg); err != nil {
		c.log().ErrorContext(ctx, "Failed to handle message",
			log.FieldError, err,
			log.FieldDomain, msg.Resource,
			log.FieldEntityID, msg.ID)
		delivery.Nack(false, !delivery.Redelivered) // requeue once
		return
	}

	delivery.Ack(false)
	c.log().DebugContext(ctx, "Processed change message",
		log.FieldDomain, msg.Resource,
		"op", msg.Op,
		"origin", msg.Origin)
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}

	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()

	if time.Since(last) > openTimeout {
		// Let one call through to probe the broker
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)

	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()

	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		if atomic.SwapInt32(&c.state, StateOpen) != StateOpen {
			c.log().Warn("Circuit breaker opened", "failures", n)
		}
	}
}

// exponentialBackoff returns 1s, 2s, 4s... capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << uint(attempt)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "closed network"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
