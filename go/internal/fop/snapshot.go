package fop

import (
	"github.com/google/uuid"
	"github.com/mcdev12/fieldofplay/go/internal/fop/clock"
	"github.com/mcdev12/fieldofplay/go/internal/fop/decision"
	"github.com/mcdev12/fieldofplay/go/internal/fop/events"
	"github.com/mcdev12/fieldofplay/go/internal/fop/liftorder"
	"github.com/mcdev12/fieldofplay/go/internal/models"
)

// ClockSnapshot is the state of one countdown.
type ClockSnapshot struct {
	State       clock.State `json:"state"`
	RemainingMs int64       `json:"remaining_ms"`
}

// Snapshot is what a display needs to draw the platform from scratch.
type Snapshot struct {
	Platform     string               `json:"platform"`
	State        State                `json:"state"`
	GroupID      *uuid.UUID           `json:"group_id,omitempty"`
	GroupName    string               `json:"group_name,omitempty"`
	Current      *liftorder.Slot      `json:"current,omitempty"`
	Next         *liftorder.Slot      `json:"next,omitempty"`
	Order        []liftorder.Slot     `json:"order"`
	AthleteClock ClockSnapshot        `json:"athlete_clock"`
	BreakClock   ClockSnapshot        `json:"break_clock"`
	Break        *events.BreakPayload `json:"break,omitempty"`
	Votes        []decision.Vote      `json:"votes,omitempty"`
	Athletes     []*models.Athlete    `json:"athletes,omitempty"`
}

func (f *FieldOfPlay) snapshot() Snapshot {
	s := Snapshot{
		Platform: f.platform,
		State:    f.state,
		Order:    append([]liftorder.Slot(nil), f.order...),
		AthleteClock: ClockSnapshot{
			State:       f.clocks.State(clock.KindAthlete),
			RemainingMs: f.clocks.TimeRemaining(clock.KindAthlete).Milliseconds(),
		},
		BreakClock: ClockSnapshot{
			State:       f.clocks.State(clock.KindBreak),
			RemainingMs: f.clocks.TimeRemaining(clock.KindBreak).Milliseconds(),
		},
		Votes: f.decisions.Votes(),
	}
	if f.group != nil {
		id := f.group.ID
		s.GroupID = &id
		s.GroupName = f.group.Name
		s.Athletes = make([]*models.Athlete, len(f.group.Athletes))
		for i, a := range f.group.Athletes {
			s.Athletes[i] = a.Clone()
		}
	}
	if f.current != nil {
		c := *f.current
		s.Current = &c
	}
	if next, ok := f.nextSlot(); ok {
		s.Next = &next
	}
	if st, err := f.breaks.Current(); err == nil {
		p := events.NewBreakPayload(st)
		s.Break = &p
	}
	return s
}
