package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts time for schedulable components so tests can control it.
type Clock interface {
	Now() time.Time
}

// Module provides the system clock via Fx.
var Module = fx.Provide(NewSystemClock)

type systemClock struct{}

// NewSystemClock returns a Clock backed by time.Now in UTC.
func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
