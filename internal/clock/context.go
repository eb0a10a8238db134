package clock

import (
	"context"
	"time"
)

type key string

var simulatedTimeKey key = "simulated_time"

// WithSimulatedTime returns a context in which SystemClock reports t instead
// of the wall clock.
func WithSimulatedTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, simulatedTimeKey, t.UTC())
}

// SimulatedTimeFromContext returns the simulated time carried by ctx, if any.
func SimulatedTimeFromContext(ctx context.Context) (time.Time, bool) {
	if ctx == nil {
		return time.Time{}, false
	}
	t, ok := ctx.Value(simulatedTimeKey).(time.Time)
	return t, ok
}
