package starter

import (
	"context"
)

type Startable interface {
	Start(ctx context.Context)
}

type Stopable interface {
	Stop()
}

// Start starts elems in order and returns a func stopping the Stopable ones in reverse order.
func Start(ctx context.Context, elems ...Startable) (stop func()) {
	started := make([]Startable, 0, len(elems))
	for _, ele := range elems {
		ele.Start(ctx)
		started = append(started, ele)
	}
	return func() {
		for i := len(started) - 1; i >= 0; i-- {
			if s, ok := started[i].(Stopable); ok {
				s.Stop()
			}
		}
	}
}
