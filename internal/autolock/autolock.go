// Package autolock decides when an unlocked vault must lock itself.
//
// A Controller tracks only time and state. It holds no key material: when a
// lock is due it invokes the callback given to New and the owner of the
// secrets does the actual locking.
package autolock

import (
	"sync"
	"time"
)

// Reason explains why a lock happened.
type Reason int

const (
	ReasonExplicit Reason = iota
	ReasonBackground
	ReasonInactivity
)

func (r Reason) String() string {
	switch r {
	case ReasonExplicit:
		return "explicit"
	case ReasonBackground:
		return "background"
	case ReasonInactivity:
		return "inactivity"
	default:
		return "unknown"
	}
}

// State is the controller's view of the vault.
type State int

const (
	Locked State = iota
	Unlocked
)

func (s State) String() string {
	if s == Unlocked {
		return "unlocked"
	}
	return "locked"
}

// Policy configures both automatic triggers.
//
// InactivityTimeout is how long the vault may stay idle in the foreground;
// zero disables the inactivity lock. BackgroundGrace is how long the vault
// may stay unlocked in the background; zero locks immediately.
type Policy struct {
	InactivityTimeout time.Duration
	BackgroundGrace   time.Duration
}

// DefaultPolicy locks after five idle minutes and immediately on background.
var DefaultPolicy = Policy{InactivityTimeout: 5 * time.Minute}

// Timer is the part of *time.Timer the controller uses.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d, like time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type Option func(*Controller)

// WithPolicy overrides DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(c *Controller) { c.policy = p }
}

// WithAfterFunc replaces the timer factory, mostly for tests.
func WithAfterFunc(f AfterFunc) Option {
	return func(c *Controller) { c.afterFunc = f }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller is safe for concurrent use. The lock callback is never invoked
// while the controller's own mutex is held.
type Controller struct {
	mu     sync.Mutex
	policy Policy
	onLock func(Reason)

	afterFunc AfterFunc
	now       func() time.Time

	state        State
	activeSince  time.Time
	lastActivity time.Time
	background   bool

	idle     Timer
	idleGen  uint64
	grace    Timer
	graceGen uint64
}

// New returns a locked controller. onLock runs once per unlocked period,
// whichever trigger fires first.
func New(onLock func(Reason), opts ...Option) *Controller {
	c := &Controller{
		policy:    DefaultPolicy,
		onLock:    onLock,
		afterFunc: realAfterFunc,
		now:       time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start marks the vault unlocked and arms the inactivity timer.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.state = Unlocked
	c.activeSince = now
	c.lastActivity = now
	c.background = false
	c.stopGraceLocked()
	c.armIdleLocked()
}

// Touch records user activity and restarts the inactivity countdown.
func (c *Controller) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Unlocked || c.background {
		return
	}
	c.lastActivity = c.now()
	c.armIdleLocked()
}

// EnterBackground locks at once, or after the configured grace period.
func (c *Controller) EnterBackground() {
	c.mu.Lock()
	if c.state != Unlocked || c.background {
		c.mu.Unlock()
		return
	}
	c.background = true
	c.stopIdleLocked()

	if c.policy.BackgroundGrace > 0 {
		c.graceGen++
		gen := c.graceGen
		c.grace = c.afterFunc(c.policy.BackgroundGrace, func() { c.expire(&c.graceGen, gen, ReasonBackground) })
		c.mu.Unlock()
		return
	}

	cb := c.lockLocked()
	c.mu.Unlock()
	cb(ReasonBackground)
}

// EnterForeground cancels a pending background lock and resumes the
// inactivity countdown.
func (c *Controller) EnterForeground() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.background = false
	c.stopGraceLocked()
	if c.state == Unlocked {
		c.lastActivity = c.now()
		c.armIdleLocked()
	}
}

// Lock is an explicit lock request. It fires the callback if unlocked.
func (c *Controller) Lock() {
	c.mu.Lock()
	if c.state != Unlocked {
		c.mu.Unlock()
		return
	}
	cb := c.lockLocked()
	c.mu.Unlock()
	cb(ReasonExplicit)
}

// Stop marks the vault locked without calling back. The vault owner uses it
// when it locked on its own.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Locked
	c.background = false
	c.stopIdleLocked()
	c.stopGraceLocked()
}

// SetPolicy replaces the policy. A running countdown restarts under it.
func (c *Controller) SetPolicy(p Policy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policy = p
	if c.state == Unlocked && !c.background {
		c.armIdleLocked()
	}
}

func (c *Controller) Policy() Policy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy
}

// State returns the current state and when the current unlocked period began.
func (c *Controller) State() (State, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Unlocked {
		return Locked, time.Time{}
	}
	return Unlocked, c.activeSince
}

// IdleFor reports how long ago the last activity was recorded.
func (c *Controller) IdleFor() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Unlocked {
		return 0
	}
	return c.now().Sub(c.lastActivity)
}

func (c *Controller) expire(genField *uint64, gen uint64, reason Reason) {
	c.mu.Lock()
	if *genField != gen || c.state != Unlocked {
		c.mu.Unlock()
		return
	}
	cb := c.lockLocked()
	c.mu.Unlock()
	cb(reason)
}

func (c *Controller) lockLocked() func(Reason) {
	c.state = Locked
	c.stopIdleLocked()
	c.stopGraceLocked()
	if c.onLock == nil {
		return func(Reason) {}
	}
	return c.onLock
}

func (c *Controller) armIdleLocked() {
	c.stopIdleLocked()
	if c.policy.InactivityTimeout <= 0 {
		return
	}
	gen := c.idleGen
	c.idle = c.afterFunc(c.policy.InactivityTimeout, func() { c.expire(&c.idleGen, gen, ReasonInactivity) })
}

func (c *Controller) stopIdleLocked() {
	c.idleGen++
	if c.idle != nil {
		c.idle.Stop()
		c.idle = nil
	}
}

func (c *Controller) stopGraceLocked() {
	c.graceGen++
	if c.grace != nil {
		c.grace.Stop()
		c.grace = nil
	}
}
