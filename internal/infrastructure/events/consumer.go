package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"ArticlesBot/pkg/logger"
)

// Forwarder mirrors an audit record to an external system.
type Forwarder interface {
	Forward(ctx context.Context, topic string, payload []byte) error
}

// Subscriber is the part of Bus the consumer needs.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// AuditConsumer writes every audit record to the journal and forwards it.
type AuditConsumer struct {
	subscriber Subscriber
	journal    *logger.Journal
	forwarder  Forwarder
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// NewAuditConsumer wires the journal and an optional forwarder.
func NewAuditConsumer(subscriber Subscriber, journal *logger.Journal, forwarder Forwarder, log *slog.Logger) *AuditConsumer {
	if log == nil {
		log = slog.Default()
	}
	return &AuditConsumer{
		subscriber: subscriber,
		journal:    journal,
		forwarder:  forwarder,
		logger:     log.With("component", "audit"),
	}
}

// Start subscribes to topics and consumes them in the background.
// Subscriptions outlive ctx and end when the bus is closed, so events
// published by handlers still running at shutdown reach the journal.
func (c *AuditConsumer) Start(ctx context.Context, topics []string) error {
	ctx = context.WithoutCancel(ctx)
	for _, topic := range topics {
		messages, err := c.subscriber.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			for msg := range messages {
				c.process(ctx, topic, msg)
			}
		}()
	}
	return nil
}

// Wait blocks until every subscription is closed.
func (c *AuditConsumer) Wait() {
	c.wg.Wait()
}

func (c *AuditConsumer) process(ctx context.Context, topic string, msg *message.Message) {
	c.journal.Record(topic, msg.UUID, msg.Payload)

	if c.forwarder != nil {
		if err := c.forwarder.Forward(ctx, topic, msg.Payload); err != nil {
			c.logger.Warn("forward audit event", "topic", topic, "event_id", msg.UUID, "error", err)
		}
	}

	// Acked even when forwarding failed; the journal already holds the record.
	msg.Ack()
}
