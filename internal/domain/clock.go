package domain

import "time"

// TimestampLayout is the ISO-8601 layout of the audit fields.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// FormatTimestamp renders t as an audit-field value in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
