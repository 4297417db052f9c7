package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts wall time so window math and retry scheduling can be
// driven deterministically in tests.
type Clock interface {
	Now() time.Time
}

// Module provides the system clock.
var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)

type systemClock struct{}

func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
