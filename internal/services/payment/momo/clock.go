package momo

import "time"

// Clock abstracts wall-clock access so polling delays and timeouts are
// deterministically testable.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the production Clock backed by the time package.
var SystemClock Clock = systemClock{}
