package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	amqp "github.com/streadway/amqp"
)

// Client holds the RabbitMQ connection and channel used to publish events.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	mu      sync.Mutex // guards channel publishes
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL   string
	Queue string
}

// Envelope is the JSON document published for every event.
type Envelope struct {
	Event      string    `json:"event"`
	Payload    any       `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEnvelope wraps payload for publication.
func NewEnvelope(event string, payload any, now time.Time) Envelope {
	return Envelope{
		Event:      event,
		Payload:    payload,
		OccurredAt: now.UTC(),
	}
}

// NewClient connects to RabbitMQ, opens a channel and declares the event queue.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Queue == "" {
		return nil, errors.New("queue name is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", cfg.Queue, err)
	}

	log.Info().Str("queue", cfg.Queue).Msg("rabbitmq client connected")

	return &Client{
		conn:    conn,
		channel: ch,
		queue:   cfg.Queue,
	}, nil
}

// Close closes the RabbitMQ channel and connection.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

// PublishEvent publishes a persistent JSON envelope to the event queue.
func (c *Client) PublishEvent(ctx context.Context, event string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.channel == nil {
		return errors.New("rabbitmq channel is not available")
	}

	body, err := json.Marshal(NewEnvelope(event, payload, time.Now()))
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err = c.channel.Publish(
		"",      // default exchange
		c.queue, // routing key: the queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         event,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event, err)
	}

	log.Debug().Str("event", event).Str("queue", c.queue).Msg("event published")
	return nil
}
