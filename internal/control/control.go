// Package control carries the operator's pause and cancel signals into a run.
//
// The orchestrator only observes the signal at named checkpoints. Work that
// is already in flight, such as a running command or an agent call, is never
// interrupted.
package control

import (
	"sync"
	"sync/atomic"
)

// Signal is the read side of a Control, as consumed by the orchestrator.
type Signal interface {
	IsCancelled() bool
	WaitIfPaused()
}

// Control holds two independent flags: paused and cancelled.
//
// Cancellation is one-way. Paused callers block in WaitIfPaused on a
// condition variable until Resume, Toggle or Cancel wakes them.
type Control struct {
	paused    atomic.Bool
	cancelled atomic.Bool

	mu   sync.Mutex
	cond *sync.Cond
}

// New returns a running, uncancelled Control.
func New() *Control {
	c := &Control{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Toggle flips the paused flag and returns the new value.
func (c *Control) Toggle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := !c.paused.Load()
	c.paused.Store(next)
	if !next {
		c.cond.Broadcast()
	}
	return next
}

// Pause sets the paused flag.
func (c *Control) Pause() {
	c.mu.Lock()
	c.paused.Store(true)
	c.mu.Unlock()
}

// Resume clears the paused flag and wakes any waiter.
func (c *Control) Resume() {
	c.mu.Lock()
	c.paused.Store(false)
	c.cond.Broadcast()
	c.mu.Unlock()
}

// Cancel marks the run cancelled. It is idempotent and also releases
// callers blocked in WaitIfPaused.
func (c *Control) Cancel() {
	c.mu.Lock()
	c.cancelled.Store(true)
	c.cond.Broadcast()
	c.mu.Unlock()
}

// IsCancelled reports whether Cancel has been called.
func (c *Control) IsCancelled() bool {
	return c.cancelled.Load()
}

// IsPaused reports the paused flag.
func (c *Control) IsPaused() bool {
	return c.paused.Load()
}

// WaitIfPaused blocks while the control is paused and not cancelled.
func (c *Control) WaitIfPaused() {
	if !c.paused.Load() || c.cancelled.Load() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.paused.Load() && !c.cancelled.Load() {
		c.cond.Wait()
	}
}

// State is a point-in-time view of the flags.
type State struct {
	Paused    bool `json:"paused"`
	Cancelled bool `json:"cancelled"`
}

// Snapshot returns both flags.
func (c *Control) Snapshot() State {
	return State{Paused: c.paused.Load(), Cancelled: c.cancelled.Load()}
}

var _ Signal = (*Control)(nil)
