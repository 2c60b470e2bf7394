// Package breaks tracks the single break that can be active on a platform.
package breaks

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Type of a break.
type Type string

const (
	TypeBeforeIntroduction Type = "BEFORE_INTRODUCTION"
	TypeFirstSnatch        Type = "FIRST_SNATCH"
	TypeFirstCJ            Type = "FIRST_CJ"
	TypeTechnical          Type = "TECHNICAL"
	TypeJury               Type = "JURY"
	TypeGroupDone          Type = "GROUP_DONE"
)

// Mode selects how the end of a break is computed.
type Mode string

const (
	ModeDuration   Mode = "DURATION"
	ModeTarget     Mode = "TARGET"
	ModeIndefinite Mode = "INDEFINITE"
)

const DefaultRoundingStep = 30 * time.Minute

var (
	ErrInvalidBreak = errors.New("invalid break")
	ErrNoBreak      = errors.New("no active break")
)

// ParseType validates a break type name.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeBeforeIntroduction, TypeFirstSnatch, TypeFirstCJ, TypeTechnical, TypeJury, TypeGroupDone:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown type %q", ErrInvalidBreak, s)
}

// ParseMode validates a countdown mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeDuration, ModeTarget, ModeIndefinite:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidBreak, s)
}

// State is the active break. Deadline is zero for INDEFINITE breaks.
type State struct {
	Type     Type          `json:"type"`
	Mode     Mode          `json:"mode"`
	Deadline time.Time     `json:"deadline,omitempty"`
	Paused   bool          `json:"paused"`
	Left     time.Duration `json:"left"`
}

// Timed reports whether the break counts down.
func (s State) Timed() bool {
	return s.Mode != ModeIndefinite
}

// Scheduler holds at most one break. It is owned by the platform actor.
type Scheduler struct {
	clock clockwork.Clock
	step  time.Duration

	current *State
}

// NewScheduler creates an idle scheduler.
func NewScheduler(clock clockwork.Clock, step time.Duration) *Scheduler {
	if step <= 0 {
		step = DefaultRoundingStep
	}
	return &Scheduler{clock: clock, step: step}
}

// Start replaces any active break. duration is used by DURATION, target by TARGET.
func (s *Scheduler) Start(typ Type, mode Mode, duration time.Duration, target time.Time) (State, error) {
	if _, err := ParseType(string(typ)); err != nil {
		return State{}, err
	}
	now := s.clock.Now()
	next := State{Type: typ, Mode: mode}

	switch mode {
	case ModeDuration:
		if duration <= 0 {
			return State{}, fmt.Errorf("%w: duration must be positive", ErrInvalidBreak)
		}
		next.Deadline = now.Add(duration)
	case ModeTarget:
		if !target.After(now) {
			return State{}, fmt.Errorf("%w: target %s is not in the future", ErrInvalidBreak, target.Format(time.RFC3339))
		}
		next.Deadline = target
	case ModeIndefinite:
	default:
		return State{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidBreak, mode)
	}

	s.current = &next
	return s.Current()
}

// Pause freezes the countdown of the active break.
func (s *Scheduler) Pause() (State, error) {
	if s.current == nil {
		return State{}, ErrNoBreak
	}
	if !s.current.Paused && s.current.Timed() {
		s.current.Left = s.remaining(s.clock.Now())
		s.current.Paused = true
	}
	return s.Current()
}

// Resume restarts a paused countdown from where it stopped.
func (s *Scheduler) Resume() (State, error) {
	if s.current == nil {
		return State{}, ErrNoBreak
	}
	if s.current.Paused {
		s.current.Deadline = s.clock.Now().Add(s.current.Left)
		s.current.Paused = false
	}
	return s.Current()
}

// Clear ends the break.
func (s *Scheduler) Clear() {
	s.current = nil
}

// Active reports whether a break exists.
func (s *Scheduler) Active() bool {
	return s.current != nil
}

// Current returns a copy of the active break with Left computed for now.
func (s *Scheduler) Current() (State, error) {
	if s.current == nil {
		return State{}, ErrNoBreak
	}
	c := *s.current
	c.Left = s.remaining(s.clock.Now())
	return c, nil
}

func (s *Scheduler) remaining(now time.Time) time.Duration {
	c := s.current
	if !c.Timed() {
		return 0
	}
	if c.Paused {
		return c.Left
	}
	left := c.Deadline.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// SuggestTarget rounds now up to the next step boundary.
func (s *Scheduler) SuggestTarget(now time.Time) time.Time {
	t := now.Truncate(s.step)
	if t.Before(now) || t.Equal(now) {
		t = t.Add(s.step)
	}
	return t
}
