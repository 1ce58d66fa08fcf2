package messaging

import (
	"context"
	"log/slog"
)

// Publisher defines an interface for publishing events to a message broker.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, key string, event any) error
}

// LogPublisher is used when no broker is configured. It only logs.
type LogPublisher struct{}

func (LogPublisher) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	slog.InfoContext(ctx, "event not published, no broker configured", "topic", topic, "key", key)
	return nil
}
