// Package events carries audit records from the bot core to the audit journal
// and, optionally, to an external NATS subject.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"ArticlesBot/internal/ports"
)

// Bus is the in-process audit channel.
type Bus struct {
	pubSub *gochannel.GoChannel
}

var _ ports.EventPublisher = (*Bus)(nil)

// NewBus creates an in-memory pub/sub. Subscribers must be attached before
// events are published; nothing is persisted.
func NewBus() *Bus {
	return &Bus{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			watermill.NewStdLogger(false, false),
		),
	}
}

// Publish marshals payload to JSON and emits it on topic.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	msg := message.NewMessage(uuid.NewString(), data)
	msg.SetContext(ctx)
	if err := b.pubSub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe returns the message stream of topic until ctx ends or the bus closes.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubSub.Subscribe(ctx, topic)
}

// Close stops delivery and closes every subscription.
func (b *Bus) Close() error {
	return b.pubSub.Close()
}
