package agent

import (
	"context"
	"time"
)

// TimedOutReply is the sentinel answer ask_user resolves with when the
// user does not respond in time.
const TimedOutReply = "(timed out waiting for a reply)"

// Interrupt is a single-slot, single-resolution synchronization handle:
// one goroutine awaits an answer, exactly one resolution is consumed.
// The capacity-1 channel makes resolve non-blocking and first-wins.
type Interrupt struct {
	ch chan string
}

func newInterrupt() *Interrupt {
	return &Interrupt{ch: make(chan string, 1)}
}

// resolve delivers the answer. Returns false if the interrupt was
// already resolved.
func (i *Interrupt) resolve(text string) bool {
	select {
	case i.ch <- text:
		return true
	default:
		return false
	}
}

// await blocks until the interrupt is resolved, the timeout elapses, or
// ctx is cancelled. Timeout and cancellation produce [TimedOutReply].
func (i *Interrupt) await(ctx context.Context, timeout time.Duration) string {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-i.ch:
		return reply
	case <-timer.C:
		return TimedOutReply
	case <-ctx.Done():
		return TimedOutReply
	}
}
