package booking

import (
	"time"

	"github.com/warp/salon-engine/events"
	"github.com/warp/salon-engine/logger"
	"github.com/warp/salon-engine/salon"
)

const (
	DefaultServiceMinutes  = 30
	DefaultRescheduleShift = 15
)

// Options are shared by the scheduler, lifecycle and read models.
type Options struct {
	// DefaultServiceMinutes is the slot length of a booking with no services.
	DefaultServiceMinutes int
	// RescheduleShiftMinutes is how far a reschedule moves a booking.
	RescheduleShiftMinutes int
	// Location is the salon's wall clock, used for estimated start/end.
	Location *time.Location

	Clock  salon.Clock
	Events events.Publisher
	Logger *logger.Logger
}

// WithDefaults fills unset fields.
func (o Options) WithDefaults() Options {
	if o.DefaultServiceMinutes <= 0 {
		o.DefaultServiceMinutes = DefaultServiceMinutes
	}
	if o.RescheduleShiftMinutes <= 0 {
		o.RescheduleShiftMinutes = DefaultRescheduleShift
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Clock == nil {
		o.Clock = salon.SystemClock{}
	}
	if o.Events == nil {
		o.Events = events.Nop{}
	}
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	return o
}

// EventFor builds the event published after a committed transition.
func EventFor(t events.Type, b *salon.Booking, at time.Time) events.Event {
	data := map[string]any{
		"booking_id": string(b.ID),
		"token":      b.Token(),
		"date":       salon.FormatDate(b.Date),
		"time":       b.Time.String(),
		"status":     string(b.Status),
	}
	if b.EmployeeID != nil {
		data["employee_id"] = string(*b.EmployeeID)
	}
	return events.Event{Type: t, Key: string(b.ID), OccurredAt: at.UTC(), Data: data}
}
