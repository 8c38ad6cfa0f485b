package retention

import (
	"fmt"
	"time"
)

// TimestampLayout is the wire format of every persisted timestamp. It is the
// parse contract the expiry check depends on: a producer writing any other
// format makes its records effectively immortal.
const TimestampLayout = "2006-01-02 15:04"

// DateLayout is the format of date folder names.
const DateLayout = "2006-01-02"

// Policy computes expiry instants from upload timestamps. All timestamps are
// interpreted in one fixed zone, never in device-local time, so records
// created in different zones agree on their deadlines.
type Policy struct {
	Duration time.Duration
	Location *time.Location
}

// NewPolicy creates a policy with the given retention window and fixed zone.
// A nil location falls back to UTC.
func NewPolicy(duration time.Duration, loc *time.Location) *Policy {
	if loc == nil {
		loc = time.UTC
	}
	return &Policy{Duration: duration, Location: loc}
}

// ParseTimestamp parses a wire-format timestamp in the fixed zone.
func (p *Policy) ParseTimestamp(value string) (time.Time, error) {
	ts, err := time.ParseInLocation(TimestampLayout, value, p.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", value, err)
	}
	return ts, nil
}

// DeleteDeadline returns the instant at which a record with the given upload
// timestamp becomes eligible for deletion.
func (p *Policy) DeleteDeadline(uploadedAt string) (time.Time, error) {
	ts, err := p.ParseTimestamp(uploadedAt)
	if err != nil {
		return time.Time{}, err
	}
	return ts.Add(p.Duration), nil
}

// IsExpired reports whether a record with the given upload timestamp has
// passed its deadline at the reference instant now. The check fails closed:
// an unparseable timestamp is never expired (the caller logs it). The
// boundary is strict: a record exactly at its deadline is not yet expired.
func (p *Policy) IsExpired(uploadedAt string, now time.Time) bool {
	deadline, err := p.DeleteDeadline(uploadedAt)
	if err != nil {
		return false
	}
	return now.After(deadline)
}

// Now returns the current instant in the fixed zone. Callers performing a
// sweep sample it once and evaluate every record against that single value.
func (p *Policy) Now() time.Time {
	return time.Now().In(p.Location)
}

// FormatTime renders an instant as a wire-format timestamp in the fixed zone.
func (p *Policy) FormatTime(t time.Time) string {
	return t.In(p.Location).Format(TimestampLayout)
}

// FormatDate renders an instant as a date folder name in the fixed zone.
func (p *Policy) FormatDate(t time.Time) string {
	return t.In(p.Location).Format(DateLayout)
}
