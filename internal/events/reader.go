package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/filipexyz/keygate/internal/engine"
)

// Reader reads historical engine events back out of the stream.
type Reader struct {
	stream jetstream.Stream
}

func NewReader(stream jetstream.Stream) *Reader {
	return &Reader{stream: stream}
}

// QueryOptions configures an event query.
type QueryOptions struct {
	// Type filters on one event type ("credential.verified"). Empty matches
	// everything.
	Type  string
	From  time.Time
	Limit int
}

// StoredEvent is an engine event with its stream metadata.
type StoredEvent struct {
	Seq       uint64        `json:"seq"`
	Event     *engine.Event `json:"event"`
	Timestamp time.Time     `json:"timestamp"`
}

// Query retrieves events matching the options, oldest first.
func (r *Reader) Query(ctx context.Context, opts QueryOptions) ([]StoredEvent, error) {
	if opts.Limit <= 0 {
		opts.Limit = 100
	}

	filterSubject := subjectPrefix + ">"
	if opts.Type != "" {
		filterSubject = subjectPrefix + opts.Type
	}

	cfg := jetstream.ConsumerConfig{
		FilterSubject: filterSubject,
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	}
	if !opts.From.IsZero() {
		cfg.DeliverPolicy = jetstream.DeliverByStartTimePolicy
		cfg.OptStartTime = &opts.From
	}

	consumer, err := r.stream.CreateOrUpdateConsumer(ctx, cfg)
	if err != nil {
		return nil, err
	}

	out := make([]StoredEvent, 0, opts.Limit)
	msgs, err := consumer.Fetch(opts.Limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		// No messages within the wait is not an error for a query.
		return out, nil
	}
	for msg := range msgs.Messages() {
		var event engine.Event
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			continue
		}
		stored := StoredEvent{Event: &event}
		if meta, err := msg.Metadata(); err == nil {
			stored.Seq = meta.Sequence.Stream
			stored.Timestamp = meta.Timestamp
		}
		out = append(out, stored)
		if len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}
