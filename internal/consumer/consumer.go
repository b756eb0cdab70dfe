// Package consumer feeds notifications from a RabbitMQ queue into the pipeline.
package consumer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rabbitmq/amqp091-go"

	"github.com/ArionMiles/notispend/pkg/api"
	"github.com/ArionMiles/notispend/pkg/pipeline"
)

// Ingester runs one notification through the pipeline.
type Ingester interface {
	Ingest(ctx context.Context, n api.Notification) (pipeline.Outcome, error)
}

// Config holds the broker settings.
type Config struct {
	URL   string
	Queue string
	// Prefetch bounds unacknowledged deliveries. Defaults to 10.
	Prefetch int
}

// Consumer reads JSON notifications from a durable queue.
type Consumer struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	queue    string
	ingester Ingester
	logger   *slog.Logger
}

// Dial connects to the broker and declares the queue.
func Dial(cfg Config, ing Ingester, logger *slog.Logger) (*Consumer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 10
	}

	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dialing AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	c := &Consumer{
		conn:     conn,
		channel:  channel,
		queue:    cfg.Queue,
		ingester: ing,
		logger:   logger.With("component", "consumer", "queue", cfg.Queue),
	}

	if _, err := channel.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	); err != nil {
		c.Close()
		return nil, fmt.Errorf("declaring queue: %w", err)
	}

	if err := channel.Qos(cfg.Prefetch, 0, false); err != nil {
		c.Close()
		return nil, fmt.Errorf("setting prefetch: %w", err)
	}

	return c, nil
}

// Run consumes until ctx is cancelled or the broker closes the channel.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.channel.Consume(
		c.queue, // queue
		"",      // consumer
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("starting consumer: %w", err)
	}

	c.logger.Info("started consuming notifications")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("stopping consumer", "reason", ctx.Err())
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

// Action is what happened to a delivery.
type Action string

const (
	ActionAck    Action = "ack"
	ActionReject Action = "reject"
)

// handle runs one delivery through the pipeline and settles it. Duplicates
// are acknowledged since the event is already stored. Everything else that
// fails is rejected without requeue.
func (c *Consumer) handle(ctx context.Context, d amqp091.Delivery) Action {
	logger := c.logger.With("delivery_tag", d.DeliveryTag)

	action, err := c.process(ctx, d.Body)
	if err != nil {
		logger.Error("failed to process delivery", "error", err, "action", action)
	} else {
		logger.Debug("processed delivery", "action", action)
	}

	switch action {
	case ActionAck:
		if err := d.Ack(false); err != nil {
			logger.Error("failed to ack delivery", "error", err)
		}
	default:
		if err := d.Reject(false); err != nil {
			logger.Error("failed to reject delivery", "error", err)
		}
	}
	return action
}

func (c *Consumer) process(ctx context.Context, body []byte) (Action, error) {
	n, err := api.DecodeNotification(bytes.NewReader(body))
	if err != nil {
		return ActionReject, err
	}

	_, err = c.ingester.Ingest(ctx, n)
	switch {
	case err == nil:
		return ActionAck, nil
	case errors.Is(err, api.ErrConflict):
		return ActionAck, nil
	default:
		return ActionReject, err
	}
}

// Close closes the channel and the connection.
func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp091.ErrClosed) {
			return fmt.Errorf("closing AMQP connection: %w", err)
		}
	}
	return nil
}
