package port

import "context"

// EventPublisher announces settlement outcomes to downstream consumers.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, key string, event any) error
}
