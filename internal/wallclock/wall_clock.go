package wallclock

import (
	"context"
	"time"
)

type (
	// WallClock abstracts the subset of packages time and context that the
	// pipeline uses for waiting, so tests can interpose on apparent time.
	WallClock interface {
		WithTimeoutCause(
			parent context.Context,
			timeout time.Duration,
			cause error,
		) (context.Context, context.CancelFunc)
		After(d time.Duration) <-chan time.Time
		NewTimer(d time.Duration) Timer
		NewTicker(d time.Duration) Ticker
		Now() time.Time
	}

	// Timer abstracts the functionality of time.Timer.
	Timer interface {
		C() <-chan time.Time
		Reset(d time.Duration) bool
		Stop() bool
	}

	// Ticker abstracts the functionality of time.Ticker.
	Ticker interface {
		C() <-chan time.Time
		Stop()
	}

	wallClock struct{}

	timer struct{ *time.Timer }

	ticker struct{ *time.Ticker }
)

func (wallClock) WithTimeoutCause(
	parent context.Context,
	timeout time.Duration,
	cause error,
) (context.Context, context.CancelFunc) {
	return context.WithTimeoutCause(parent, timeout, cause)
}

func (wallClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

func (wallClock) NewTimer(d time.Duration) Timer {
	return timer{Timer: time.NewTimer(d)}
}

func (wallClock) NewTicker(d time.Duration) Ticker {
	return ticker{Ticker: time.NewTicker(d)}
}

func (wallClock) Now() time.Time {
	return time.Now()
}

func (t timer) C() <-chan time.Time {
	return t.Timer.C
}

func (t ticker) C() <-chan time.Time {
	return t.Ticker.C
}

// Sleep waits for the given duration on the clock, returning early with the
// context error if the context is done first.
func Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-Instance.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Instance is a WallClock singleton used for indirect time-based references to
// packages context and time. Test code can set the instance to interpose on
// functions and control apparent time.
var Instance WallClock = wallClock{}
