package salon

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// CLOCK
// =============================================================================

// Clock supplies "now" to the engine so tests can pin it.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock returns a settable instant.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func NewFixedClock(t time.Time) *FixedClock { return &FixedClock{t: t} }

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// =============================================================================
// SLOT TIME - minutes since local midnight
// =============================================================================

// SlotTime is a time of day in whole minutes since midnight.
type SlotTime int

// EndOfDay is midnight at the end of the day. Appointments must finish by it.
const EndOfDay SlotTime = 24 * 60

func NewSlotTime(hour, minute int) SlotTime { return SlotTime(hour*60 + minute) }

// ParseSlotTime accepts "HH:MM" or "HH:MM:SS" (seconds are dropped).
func ParseSlotTime(s string) (SlotTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, &ValidationError{Field: "time", Message: fmt.Sprintf("expected HH:MM, got %q", s)}
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, &ValidationError{Field: "time", Message: fmt.Sprintf("invalid hour in %q", s)}
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, &ValidationError{Field: "time", Message: fmt.Sprintf("invalid minute in %q", s)}
	}
	if len(parts) == 3 {
		if sec, err := strconv.Atoi(parts[2]); err != nil || sec < 0 || sec > 59 {
			return 0, &ValidationError{Field: "time", Message: fmt.Sprintf("invalid second in %q", s)}
		}
	}
	return NewSlotTime(h, m), nil
}

func (t SlotTime) Add(minutes int) SlotTime { return t + SlotTime(minutes) }
func (t SlotTime) Hour() int               { return int(t) / 60 }
func (t SlotTime) Minute() int             { return int(t) % 60 }

func (t SlotTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// On anchors the slot time to a day in loc.
func (t SlotTime) On(day time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc)
}

func (t SlotTime) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *SlotTime) UnmarshalText(b []byte) error {
	v, err := ParseSlotTime(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Slot is a half-open interval [Start, End) within one day.
type Slot struct {
	Start SlotTime
	End   SlotTime
}

// Overlaps reports whether two half-open intervals intersect.
// Touching endpoints (10:00-10:30 and 10:30-11:00) do not overlap.
func (s Slot) Overlaps(o Slot) bool {
	return s.Start < o.End && s.End > o.Start
}

func (s Slot) Minutes() int { return int(s.End - s.Start) }

func (s Slot) String() string { return s.Start.String() + "-" + s.End.String() }

// =============================================================================
// DATES
// =============================================================================

const DateLayout = "2006-01-02"

// ParseDate parses YYYY-MM-DD into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Message: fmt.Sprintf("expected YYYY-MM-DD, got %q", s)}
	}
	return t, nil
}

// DayOf truncates an instant to its calendar day in loc, returned as midnight UTC.
func DayOf(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthOf normalizes any day to the first of its month.
func MonthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthLayout is the short form accepted wherever a month is expected.
const MonthLayout = "2006-01"

// ParseMonth accepts YYYY-MM or any YYYY-MM-DD in the month and returns
// the first of that month.
func ParseMonth(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{MonthLayout, DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return MonthOf(t), nil
		}
	}
	return time.Time{}, &ValidationError{Field: "month", Message: fmt.Sprintf("expected YYYY-MM or YYYY-MM-DD, got %q", s)}
}

func FormatDate(t time.Time) string { return t.Format(DateLayout) }
