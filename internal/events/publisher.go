package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/filipexyz/keygate/internal/engine"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher publishes engine events to JetStream. It implements
// engine.Emitter.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// Emit sends an engine event to JetStream.
// Subject: "credential.verified" -> "keygate.events.credential.verified".
func (p *Publisher) Emit(ctx context.Context, event engine.Event) error {
	subject := subjectPrefix + event.Type

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	// Synchronous publish with ack from JetStream
	ack, err := p.js.Publish(ctx, subject, data,
		jetstream.WithMsgID(event.ID), // Deduplication
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	slog.Debug("event published",
		"event_id", event.ID,
		"type", event.Type,
		"stream", ack.Stream,
		"seq", ack.Sequence,
	)

	return nil
}
