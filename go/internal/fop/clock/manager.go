// Package clock runs the athlete and break countdowns of a platform.
package clock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Kind selects one of the two countdowns.
type Kind string

const (
	KindAthlete Kind = "ATHLETE"
	KindBreak   Kind = "BREAK"
)

// State of a single countdown.
type State string

const (
	StateStopped State = "STOPPED"
	StateRunning State = "RUNNING"
	StatePaused  State = "PAUSED"
)

const DefaultTickInterval = 100 * time.Millisecond

var (
	ErrInvalidDuration = errors.New("countdown duration must be positive")
	ErrUnknownKind     = errors.New("unknown countdown kind")
)

type countdown struct {
	state     State
	remaining time.Duration
	startedAt time.Time
}

func (c *countdown) left(now time.Time) time.Duration {
	if c.state != StateRunning {
		return c.remaining
	}
	left := c.remaining - now.Sub(c.startedAt)
	if left < 0 {
		return 0
	}
	return left
}

// TickFunc receives the remaining time of the running countdown on every tick.
type TickFunc func(kind Kind, remaining time.Duration)

// ExpireFunc is called once when a running countdown reaches zero.
type ExpireFunc func(kind Kind)

// Manager owns both countdowns. At most one of them runs at a time.
type Manager struct {
	clock    clockwork.Clock
	interval time.Duration

	mu       sync.Mutex
	timers   map[Kind]*countdown
	onTick   TickFunc
	onExpire ExpireFunc
}

// NewManager creates a manager with both countdowns stopped at zero.
func NewManager(clock clockwork.Clock, interval time.Duration) *Manager {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Manager{
		clock:    clock,
		interval: interval,
		timers: map[Kind]*countdown{
			KindAthlete: {state: StateStopped},
			KindBreak:   {state: StateStopped},
		},
	}
}

// OnTick registers the per-tick callback. It runs with the manager locked, so it
// must not block or call back into the manager. Ticks are therefore ordered
// before any Stop that follows them.
func (m *Manager) OnTick(fn TickFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTick = fn
}

// OnExpire registers the expiry callback. It is invoked without the lock held.
func (m *Manager) OnExpire(fn ExpireFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = fn
}

func (m *Manager) get(kind Kind) (*countdown, error) {
	c, ok := m.timers[kind]
	if !ok {
		return nil, ErrUnknownKind
	}
	return c, nil
}

func other(kind Kind) Kind {
	if kind == KindAthlete {
		return KindBreak
	}
	return KindAthlete
}

// stopLocked freezes a running or paused countdown at its current remaining time.
func (m *Manager) stopLocked(c *countdown, now time.Time) {
	c.remaining = c.left(now)
	c.state = StateStopped
}

// Start runs the countdown from d and stops the other one.
func (m *Manager) Start(kind Kind, d time.Duration) error {
	if d <= 0 {
		log.Warn().Str("clock", string(kind)).Dur("duration", d).Msg("ignoring start with non-positive duration")
		return ErrInvalidDuration
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.get(kind)
	if err != nil {
		return err
	}
	now := m.clock.Now()
	m.stopLocked(m.timers[other(kind)], now)
	c.remaining = d
	c.startedAt = now
	c.state = StateRunning
	return nil
}

// Resume runs the countdown from its stored remaining time.
// It reports false when nothing is left to count down or the countdown already runs.
func (m *Manager) Resume(kind Kind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.get(kind)
	if err != nil || c.state == StateRunning || c.remaining <= 0 {
		return false
	}
	now := m.clock.Now()
	m.stopLocked(m.timers[other(kind)], now)
	c.startedAt = now
	c.state = StateRunning
	return true
}

// Stop freezes the countdown and returns the time that was left.
func (m *Manager) Stop(kind Kind) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.get(kind)
	if err != nil {
		return 0
	}
	m.stopLocked(c, m.clock.Now())
	return c.remaining
}

// Pause freezes a running countdown, keeping it distinguishable from a stopped one.
func (m *Manager) Pause(kind Kind) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.get(kind)
	if err != nil {
		return 0
	}
	if c.state == StateRunning {
		c.remaining = c.left(m.clock.Now())
		c.state = StatePaused
	}
	return c.remaining
}

// SetTimeRemaining overrides the remaining time. A running countdown continues
// from d; a stopped one keeps d until the next Resume.
func (m *Manager) SetTimeRemaining(kind Kind, d time.Duration) {
	if d < 0 {
		d = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.get(kind)
	if err != nil {
		return
	}
	c.remaining = d
	if c.state == StateRunning {
		c.startedAt = m.clock.Now()
	}
}

// TimeRemaining returns the live remaining time of the countdown.
func (m *Manager) TimeRemaining(kind Kind) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.get(kind)
	if err != nil {
		return 0
	}
	return c.left(m.clock.Now())
}

// State returns the state of the countdown.
func (m *Manager) State(kind Kind) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.get(kind)
	if err != nil {
		return StateStopped
	}
	return c.state
}

// Running returns the countdown currently running, if any.
func (m *Manager) Running() (Kind, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range []Kind{KindAthlete, KindBreak} {
		if m.timers[k].state == StateRunning {
			return k, true
		}
	}
	return "", false
}

// StopAll stops both countdowns and clears their remaining time.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.timers {
		c.state = StateStopped
		c.remaining = 0
	}
}

// Run ticks until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.tick()
		}
	}
}

func (m *Manager) tick() {
	m.mu.Lock()
	now := m.clock.Now()
	var (
		kind      Kind
		remaining time.Duration
		running   bool
		expired   bool
	)
	for _, k := range []Kind{KindAthlete, KindBreak} {
		c := m.timers[k]
		if c.state != StateRunning {
			continue
		}
		kind, running = k, true
		remaining = c.left(now)
		if remaining <= 0 {
			c.remaining = 0
			c.state = StateStopped
			expired = true
		}
		break
	}
	if running && m.onTick != nil {
		m.onTick(kind, remaining)
	}
	onExpire := m.onExpire
	m.mu.Unlock()

	if expired && onExpire != nil {
		onExpire(kind)
	}
}
