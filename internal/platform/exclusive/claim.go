package exclusive

import (
	"fmt"
	"sync"

	"github.com/oshokin/alarm-clock/internal/domain/alarm"
)

// Claim binds a Lock to one owner, typically a ringing session.
//
// The first Acquire takes the device and the claim keeps it between runs, so
// the owner does not lose the device to another session while its playback
// loop waits for the next round. Close gives it back once no run is active.
// A nil Claim never blocks.
type Claim struct {
	lock  *Lock
	owner string

	mu     sync.Mutex
	held   bool
	active int
	closed bool
}

// Claim returns a claim of the device for owner.
func (l *Lock) Claim(owner string) *Claim {
	if l == nil {
		return nil
	}

	return &Claim{lock: l, owner: owner}
}

// Acquire marks the start of a run, taking the device on first use.
func (c *Claim) Acquire() error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("%w: claim of %s by %s is closed", alarm.ErrDeviceUnavailable, c.lock.path, c.owner)
	}

	if !c.held {
		if err := c.lock.Acquire(c.owner); err != nil {
			return err
		}

		c.held = true
	}

	c.active++

	return nil
}

// Release marks the end of a run. The device stays claimed until Close.
func (c *Claim) Release() error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active > 0 {
		c.active--
	}

	if c.closed && c.active == 0 {
		return c.releaseLocked()
	}

	return nil
}

// Close gives the device back. A run still in progress keeps it until it ends.
// Close is idempotent.
func (c *Claim) Close() error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true

	if c.active > 0 {
		return nil
	}

	return c.releaseLocked()
}

func (c *Claim) releaseLocked() error {
	if !c.held {
		return nil
	}

	c.held = false

	return c.lock.Release(c.owner)
}
