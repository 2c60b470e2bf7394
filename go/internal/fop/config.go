package fop

import (
	"time"

	"github.com/mcdev12/fieldofplay/go/internal/fop/breaks"
	"github.com/mcdev12/fieldofplay/go/internal/fop/clock"
	"github.com/mcdev12/fieldofplay/go/internal/fop/decision"
)

// Config holds the timing rules and queue sizes of a field of play.
type Config struct {
	Referees int

	TimeAllowed            time.Duration
	ConsecutiveTimeAllowed time.Duration

	TickInterval       time.Duration
	DecisionWindow     time.Duration
	RefereeWakeUpDelay time.Duration
	BreakRoundingStep  time.Duration

	InboxSize      int
	OrderPreview   int
	PersistWorkers int
	PersistQueue   int
	PersistTimeout time.Duration
}

// DefaultConfig returns the IWF timings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Referees:               decision.DefaultReferees,
		TimeAllowed:            60 * time.Second,
		ConsecutiveTimeAllowed: 120 * time.Second,
		TickInterval:           clock.DefaultTickInterval,
		DecisionWindow:         300 * time.Millisecond,
		RefereeWakeUpDelay:     200 * time.Millisecond,
		BreakRoundingStep:      breaks.DefaultRoundingStep,
		InboxSize:              64,
		OrderPreview:           8,
		PersistWorkers:         2,
		PersistQueue:           128,
		PersistTimeout:         5 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Referees <= 0 {
		c.Referees = d.Referees
	}
	if c.TimeAllowed <= 0 {
		c.TimeAllowed = d.TimeAllowed
	}
	if c.ConsecutiveTimeAllowed <= 0 {
		c.ConsecutiveTimeAllowed = d.ConsecutiveTimeAllowed
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.DecisionWindow < 0 {
		c.DecisionWindow = 0
	}
	if c.RefereeWakeUpDelay < 0 {
		c.RefereeWakeUpDelay = 0
	}
	if c.BreakRoundingStep <= 0 {
		c.BreakRoundingStep = d.BreakRoundingStep
	}
	if c.InboxSize <= 0 {
		c.InboxSize = d.InboxSize
	}
	if c.OrderPreview <= 0 {
		c.OrderPreview = d.OrderPreview
	}
	if c.PersistWorkers <= 0 {
		c.PersistWorkers = d.PersistWorkers
	}
	if c.PersistQueue <= 0 {
		c.PersistQueue = d.PersistQueue
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = d.PersistTimeout
	}
	return c
}
