// Package loop runs the client's single logical event queue. Interaction
// events, inbound sync events and timer expiries all execute on the loop
// goroutine, so the local document is never mutated concurrently.
package loop

import (
	"context"
	"errors"
	"time"

	"github.com/selight/designo/internal/platform/clock"
)

// DefaultQueueSize bounds pending work before Post blocks.
const DefaultQueueSize = 256

// ErrStopped is returned when work is posted to a loop that has exited.
var ErrStopped = errors.New("event loop stopped")

// Loop is a single-goroutine work queue.
type Loop struct {
	queue chan func()
	done  chan struct{}
}

// New creates a loop with room for size pending funcs.
func New(size int) *Loop {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Loop{
		queue: make(chan func(), size),
		done:  make(chan struct{}),
	}
}

// Run drains the queue until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-l.queue:
			fn()
		}
	}
}

// Post enqueues fn. It blocks while the queue is full and fails once the
// loop has exited.
func (l *Loop) Post(fn func()) error {
	if fn == nil {
		return nil
	}
	select {
	case <-l.done:
		return ErrStopped
	default:
	}
	select {
	case l.queue <- fn:
		return nil
	case <-l.done:
		return ErrStopped
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}
}

// Drain runs every queued func on the calling goroutine without waiting
// for more. It returns how many ran. Tests use it in place of Run.
func (l *Loop) Drain() int {
	ran := 0
	for {
		select {
		case fn := <-l.queue:
			fn()
			ran++
		default:
			return ran
		}
	}
}

// Clock returns a clock whose timer callbacks are posted to the loop
// instead of running on the timer goroutine.
func (l *Loop) Clock(base clock.Clock) clock.Clock {
	return loopClock{loop: l, base: base}
}

type loopClock struct {
	loop *Loop
	base clock.Clock
}

func (c loopClock) Now() time.Time {
	return c.base.Now()
}

func (c loopClock) AfterFunc(d time.Duration, fn func()) clock.Timer {
	return c.base.AfterFunc(d, func() {
		_ = c.loop.Post(fn)
	})
}
