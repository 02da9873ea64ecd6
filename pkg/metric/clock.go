package metric

import "time"

// Clock supplies the current time to time-dependent metrics.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock used when no Clock is supplied.
var SystemClock Clock = systemClock{}

func clockOrDefault(c Clock) Clock {
	if c == nil {
		return SystemClock
	}
	return c
}
