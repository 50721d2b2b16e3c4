package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSForwarder publishes audit records to core NATS subjects.
type NATSForwarder struct {
	nc     *nats.Conn
	prefix string
}

var _ Forwarder = (*NATSForwarder)(nil)

// NewNATSForwarder connects to url. Subjects are "<prefix>.<topic>".
func NewNATSForwarder(url, prefix string) (*NATSForwarder, error) {
	nc, err := nats.Connect(url,
		nats.Name("articles-bot"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSForwarder{nc: nc, prefix: prefix}, nil
}

// Forward publishes payload on the subject of topic.
func (f *NATSForwarder) Forward(_ context.Context, topic string, payload []byte) error {
	subj := subject(f.prefix, topic)
	if err := f.nc.Publish(subj, payload); err != nil {
		return fmt.Errorf("publish to %s: %w", subj, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (f *NATSForwarder) Close() {
	if f.nc == nil {
		return
	}
	if err := f.nc.Drain(); err != nil {
		f.nc.Close()
	}
}

func subject(prefix, topic string) string {
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		return topic
	}
	return prefix + "." + topic
}
