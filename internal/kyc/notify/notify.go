// Package notify tells downstream systems that a user's KYC status changed.
// Delivery is best effort and happens after the change has been committed.
package notify

import (
	"context"
	"time"
)

// Event is published on every committed status change.
type Event struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	Status     string    `json:"status"`
	Verified   bool      `json:"is_kyc_verified"`
	Action     string    `json:"action"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Notifier interface {
	StatusChanged(ctx context.Context, event Event) error
}

// Noop drops every event. Used when no broker is configured.
type Noop struct{}

func (Noop) StatusChanged(context.Context, Event) error { return nil }

// Publisher is satisfied by the RabbitMQ producer.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body any) error
}

// Broker routes events as kyc.status.<status>.
type Broker struct {
	publisher Publisher
}

func NewBroker(publisher Publisher) *Broker {
	return &Broker{publisher: publisher}
}

func (b *Broker) StatusChanged(ctx context.Context, event Event) error {
	return b.publisher.Publish(ctx, "kyc.status."+event.Status, event)
}
