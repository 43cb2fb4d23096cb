package testutil

import "sync"

// CancelAfter is a cancellation hook that starts reporting cancellation
// once it has been polled more than a fixed number of times.
//
// NewCancelAfter(1) lets the first poll through and cancels on the second,
// which is how a test says "cancel after the first path was applied".
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type CancelAfter struct {
	mu    sync.Mutex
	allow int
	polls int
}

// NewCancelAfter creates a hook that allows n polls before cancelling.
func NewCancelAfter(n int) *CancelAfter {
	return &CancelAfter{allow: n}
}

// Poll records a poll and reports whether cancellation is requested.
func (c *CancelAfter) Poll() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.polls++
	return c.polls > c.allow
}

// Polls returns how many times Poll was called.
func (c *CancelAfter) Polls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.polls
}

// Reset clears the poll count so the hook can be reused.
func (c *CancelAfter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.polls = 0
}
