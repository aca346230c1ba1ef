package interfaces

import "context"

// MessagePublisher publishes stock events to the message broker. Payloads
// arrive already serialized: every event is written to the outbox first and
// published from there, so the publisher never re-marshals domain types.
type MessagePublisher interface {
	// PublishEvent publishes one serialized event. The key controls
	// partition routing; the event type travels as a message header.
	PublishEvent(ctx context.Context, key, eventType string, payload []byte) error
	Close() error
}
