// Package pubsub fans events out from a single producer to any number of
// listeners. Delivery is best-effort: a slow subscriber loses events rather
// than stalling the producer.
package pubsub

import (
	"context"
	"time"
)

// EventType tags what a published event carries.
type EventType string

const (
	// StatusEvent carries a decoded status event from lurch-dl (title, progress, info, error).
	StatusEvent EventType = "status"
	// LogEvent carries a formatted log line.
	LogEvent EventType = "log"
	// FinishedEvent is published once when a run ends.
	FinishedEvent EventType = "finished"
)

// Event is a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
