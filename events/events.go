/*
events.go - Booking and payroll domain events

PURPOSE:
  After a state change commits, the engine publishes an event so other
  systems (notifications, analytics) can react. Publishing is best effort:
  a failed publish is logged and never rolls back or fails the operation.

EVENT TYPES:
  booking.created, booking.assigned, booking.confirmed, booking.started, booking.completed,
  booking.cancelled, booking.rescheduled, payroll.generated

IMPLEMENTATIONS:
  KafkaPublisher: segmentio/kafka-go writer, keyed for per-booking ordering
  Nop:            Used when no brokers are configured
  Recorder:       Captures events in memory for tests
*/
package events

import (
	"context"
	"sync"
	"time"

	"github.com/warp/salon-engine/logger"
)

type Type string

const (
	BookingCreated     Type = "booking.created"
	BookingAssigned    Type = "booking.assigned"
	BookingConfirmed   Type = "booking.confirmed"
	BookingStarted     Type = "booking.started"
	BookingCompleted   Type = "booking.completed"
	BookingCancelled   Type = "booking.cancelled"
	BookingRescheduled Type = "booking.rescheduled"
	PayrollGenerated   Type = "payroll.generated"
)

// Event is one published fact. Key partitions the stream; events with the
// same key keep their order.
type Event struct {
	Type       Type           `json:"type"`
	Key        string         `json:"key"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// Emit publishes and logs failures instead of returning them.
func Emit(ctx context.Context, pub Publisher, log *logger.Logger, events ...Event) {
	if pub == nil || len(events) == 0 {
		return
	}
	if err := pub.Publish(ctx, events...); err != nil && log != nil {
		log.Warn("event publish failed", "type", string(events[0].Type), "key", events[0].Key, "count", len(events), "error", err)
	}
}

// =============================================================================
// NOP & RECORDER
// =============================================================================

type Nop struct{}

func (Nop) Publish(context.Context, ...Event) error { return nil }
func (Nop) Close() error                            { return nil }

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, events ...Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types lists recorded event types in publish order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
