package util

import (
	"context"
	"sync"
	"time"
)

// Completion is a one-shot signal. The first Signal releases every current
// and future waiter; later calls are no-ops.
//
// The zero value is ready to use.
type Completion struct {
	once sync.Once
	init sync.Once
	ch   chan struct{}
}

func (c *Completion) channel() chan struct{} {
	c.init.Do(func() { c.ch = make(chan struct{}) })
	return c.ch
}

// Signal completes c. It returns true only for the call that completed it.
//
// Thread-safety: safe for concurrent use.
func (c *Completion) Signal() bool {
	fired := false
	c.once.Do(func() {
		close(c.channel())
		fired = true
	})
	return fired
}

// Done returns a channel that is closed once c is signaled.
func (c *Completion) Done() <-chan struct{} {
	return c.channel()
}

// IsDone reports whether c was signaled.
func (c *Completion) IsDone() bool {
	select {
	case <-c.channel():
		return true
	default:
		return false
	}
}

// Wait blocks until c is signaled or timeout elapses and reports which
// happened first. A timeout <= 0 waits without bound.
func (c *Completion) Wait(timeout time.Duration) bool {
	if timeout <= 0 {
		<-c.channel()
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.channel():
		return true
	case <-timer.C:
		return c.IsDone()
	}
}

// WaitContext blocks until c is signaled or ctx is done.
func (c *Completion) WaitContext(ctx context.Context) error {
	select {
	case <-c.channel():
		return nil
	case <-ctx.Done():
		if c.IsDone() {
			return nil
		}
		return ctx.Err()
	}
}
