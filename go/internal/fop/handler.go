package fop

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/fieldofplay/go/internal/fop/breaks"
	"github.com/mcdev12/fieldofplay/go/internal/fop/clock"
	"github.com/mcdev12/fieldofplay/go/internal/fop/events"
	"github.com/mcdev12/fieldofplay/go/internal/models"
	"github.com/rs/zerolog/log"
)

func (f *FieldOfPlay) handle(cmd events.Command) error {
	switch c := cmd.(type) {
	case events.SwitchGroup:
		return f.handleSwitchGroup(c)
	case events.StartLifting:
		return f.handleStartLifting(c)
	case events.TimeStarted:
		return f.handleTimeStarted(c)
	case events.TimeStopped:
		return f.handleTimeStopped(c)
	case events.ForceTime:
		return f.handleForceTime(c)
	case events.ExplicitDecision:
		return f.handleExplicitDecision(c)
	case events.JuryDecision:
		return f.handleJuryDecision(c)
	case events.BreakStarted:
		return f.handleBreakStarted(c)
	case events.BreakPaused:
		return f.handleBreakPaused(c)
	case events.BreakResumed:
		return f.handleBreakResumed(c)
	case events.BarbellOrPlatesChanged:
		f.notify(events.EventBarbellOrPlatesChanged, "")
		return nil
	case events.RefereeDecision:
		return f.handleRefereeDecision(c)
	case events.DecisionReset:
		return f.handleDecisionReset(c)
	case events.WeightChange:
		return f.handleWeightChange(c)
	case timeExpired:
		return f.handleTimeExpired(c)
	case decisionDue:
		return f.handleDecisionDue(c)
	case downSignalDue:
		return f.handleDownSignalDue(c)
	case snapshotRequest:
		c.reply <- f.snapshot()
		return nil
	default:
		return fmt.Errorf("%w: %s", events.ErrUnknownCommand, cmd.CommandType())
	}
}

func (f *FieldOfPlay) handleSwitchGroup(c events.SwitchGroup) error {
	if c.GroupID == nil {
		f.discardDecision()
		f.clocks.StopAll()
		f.breaks.Clear()
		f.group = nil
		f.lastLifter = uuid.Nil
		f.recomputeOrder()
		f.setState(StateInactive)
		f.notify(events.EventGroupUnloaded, "")
		f.orderDirty = true
		return nil
	}

	g, err := f.repo.LoadGroup(f.ctx, *c.GroupID)
	if err != nil {
		return fmt.Errorf("failed to load group %s: %w", c.GroupID, err)
	}

	reload := f.group != nil && f.group.ID == g.ID
	keepBreak := false
	if st, err := f.breaks.Current(); err == nil && f.state == StateBreak && !reload {
		keepBreak = st.Type != breaks.TypeGroupDone
	}

	f.discardDecision()
	f.clocks.Stop(clock.KindAthlete)
	if !keepBreak {
		f.breaks.Clear()
		f.clocks.Stop(clock.KindBreak)
		f.clocks.SetTimeRemaining(clock.KindBreak, 0)
	}

	f.group = g
	f.lastLifter = uuid.Nil
	f.groupDoneSent = false
	f.current = nil
	if !keepBreak {
		f.setState(StateCurrentAthlete)
	}
	f.recomputeOrder()
	f.resetAthleteClock()
	f.notify(events.EventGroupLoaded, g.Name)
	f.orderDirty = true

	if f.order.Done() {
		f.enterGroupDone()
	}

	log.Info().
		Str("platform", f.platform).
		Str("group_id", g.ID.String()).
		Str("group", g.Name).
		Int("athletes", len(g.Athletes)).
		Bool("reload", reload).
		Str("state", string(f.state)).
		Msg("group loaded")
	return nil
}

func (f *FieldOfPlay) handleStartLifting(c events.StartLifting) error {
	if f.state != StateBreak {
		return f.invalid(c)
	}
	if f.group == nil {
		return fmt.Errorf("%w: %w", f.invalid(c), ErrNoGroup)
	}
	if f.order.Done() {
		return fmt.Errorf("%w: group has no attempt left", f.invalid(c))
	}

	f.breaks.Clear()
	f.clocks.Stop(clock.KindBreak)
	f.clocks.SetTimeRemaining(clock.KindBreak, 0)
	if f.clocks.TimeRemaining(clock.KindAthlete) <= 0 {
		f.resetAthleteClock()
	}

	f.orderDirty = true
	if f.decisions.Count() > 0 {
		f.setState(StateDecisionPending)
		return f.resumeDecision()
	}
	f.setState(StateCurrentAthlete)
	return nil
}

func (f *FieldOfPlay) handleTimeStarted(c events.TimeStarted) error {
	switch f.state {
	case StateCurrentAthlete, StateTimeStopped:
	case StateDecisionPending:
		if f.decisions.Count() > 0 {
			return fmt.Errorf("%w: referees already voted", f.invalid(c))
		}
	default:
		return f.invalid(c)
	}
	if f.current == nil {
		return fmt.Errorf("%w: %w", f.invalid(c), ErrNoGroup)
	}
	if err := f.requireWeight(c); err != nil {
		return err
	}
	if !f.clocks.Resume(clock.KindAthlete) {
		return fmt.Errorf("%w: no time remaining", f.invalid(c))
	}

	f.setState(StateTimeRunning)
	f.emitTime(events.TypeStartTime, clock.KindAthlete, f.clocks.TimeRemaining(clock.KindAthlete))
	return nil
}

func (f *FieldOfPlay) handleTimeStopped(c events.TimeStopped) error {
	if f.state != StateTimeRunning {
		return f.invalid(c)
	}
	f.stopAthleteClock()
	f.setState(StateDecisionPending)
	return nil
}

func (f *FieldOfPlay) handleTimeExpired(c timeExpired) error {
	switch c.kind {
	case clock.KindAthlete:
		if f.state != StateTimeRunning || f.clocks.TimeRemaining(clock.KindAthlete) > 0 {
			return nil
		}
		f.clocks.Stop(clock.KindAthlete)
		f.setState(StateTimeStopped)
		f.emitTime(events.TypeStopTime, clock.KindAthlete, 0)
		f.notify(events.EventTimeExpired, "")

	case clock.KindBreak:
		if f.state != StateBreak || f.breakDoneSent {
			return nil
		}
		st, err := f.breaks.Current()
		if err != nil || !st.Timed() || st.Paused || st.Left > 0 {
			return nil
		}
		f.breakDoneSent = true
		f.emit(events.TypeBreakDone, events.NewBreakPayload(st))
	}
	return nil
}

func (f *FieldOfPlay) handleForceTime(c events.ForceTime) error {
	if f.current == nil {
		return fmt.Errorf("%w: %w", f.invalid(c), ErrNoGroup)
	}
	if c.Millis <= 0 {
		return fmt.Errorf("%w: time must be positive, got %d ms", ErrInvalidArgument, c.Millis)
	}

	d := time.Duration(c.Millis) * time.Millisecond
	f.clocks.SetTimeRemaining(clock.KindAthlete, d)
	if f.state == StateTimeRunning {
		f.emitTime(events.TypeSetTime, clock.KindAthlete, d)
	}
	f.orderDirty = true
	return nil
}

func (f *FieldOfPlay) handleBreakStarted(c events.BreakStarted) error {
	var target time.Time
	switch {
	case c.Target != nil:
		target = *c.Target
	case c.Mode == breaks.ModeTarget:
		target = f.breaks.SuggestTarget(f.clock.Now())
	}
	d := time.Duration(c.DurationMs) * time.Millisecond
	st, err := f.breaks.Start(c.Type, c.Mode, d, target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	f.stopAthleteClock()
	if st.Timed() {
		if err := f.clocks.Start(clock.KindBreak, st.Left); err != nil {
			return err
		}
	} else {
		f.clocks.Stop(clock.KindBreak)
		f.clocks.SetTimeRemaining(clock.KindBreak, 0)
	}
	f.breakDoneSent = false
	f.setState(StateBreak)
	f.emit(events.TypeBreakStarted, events.NewBreakPayload(st))
	return nil
}

func (f *FieldOfPlay) handleBreakPaused(c events.BreakPaused) error {
	if f.state != StateBreak || !f.breaks.Active() {
		return f.invalid(c)
	}
	st, err := f.breaks.Pause()
	if err != nil {
		return err
	}
	f.clocks.Pause(clock.KindBreak)
	f.emit(events.TypeBreakPaused, events.NewBreakPayload(st))
	return nil
}

func (f *FieldOfPlay) handleBreakResumed(c events.BreakResumed) error {
	if f.state != StateBreak || !f.breaks.Active() {
		return f.invalid(c)
	}
	st, err := f.breaks.Resume()
	if err != nil {
		return err
	}
	if st.Timed() && st.Left > 0 {
		if err := f.clocks.Start(clock.KindBreak, st.Left); err != nil {
			return err
		}
	}
	f.emit(events.TypeBreakResumed, events.NewBreakPayload(st))
	return nil
}

func (f *FieldOfPlay) handleWeightChange(c events.WeightChange) error {
	if f.group == nil {
		return fmt.Errorf("%w: %w", f.invalid(c), ErrNoGroup)
	}
	a, ok := f.group.Athlete(c.AthleteID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAthlete, c.AthleteID)
	}
	if f.state == StateDecisionPending && f.current != nil && f.current.AthleteID == a.ID {
		return fmt.Errorf("%w: attempt is being decided", f.invalid(c))
	}
	if c.Weight <= 0 {
		return fmt.Errorf("%w: weight must be positive, got %d", ErrInvalidArgument, c.Weight)
	}
	if _, err := a.ChangeWeight(c.Weight, f.clock.Now()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	f.persist(a)

	if f.recomputeOrder() {
		f.currentChanged()
	}
	f.orderDirty = true
	return nil
}

// currentChanged restarts the attempt after a new athlete took the bar.
func (f *FieldOfPlay) currentChanged() {
	f.stopAthleteClock()
	f.resetAthleteClock()
	switch f.state {
	case StateTimeRunning, StateTimeStopped:
		f.setState(StateCurrentAthlete)
	}
}

// requireWeight refuses to lift or judge an attempt nobody declared a weight for.
func (f *FieldOfPlay) requireWeight(c events.Command) error {
	if f.current.Weight > 0 {
		return nil
	}
	return fmt.Errorf("%w: %w for attempt %d", f.invalid(c), models.ErrNoWeight, f.current.AttemptNumber)
}

func (f *FieldOfPlay) athlete(id uuid.UUID) (*models.Athlete, error) {
	if f.group == nil {
		return nil, ErrNoGroup
	}
	a, ok := f.group.Athlete(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAthlete, id)
	}
	return a, nil
}
