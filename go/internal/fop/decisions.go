package fop

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/fieldofplay/go/internal/fop/clock"
	"github.com/mcdev12/fieldofplay/go/internal/fop/decision"
	"github.com/mcdev12/fieldofplay/go/internal/fop/events"
	"github.com/mcdev12/fieldofplay/go/internal/models"
	"github.com/rs/zerolog/log"
)

func (f *FieldOfPlay) handleRefereeDecision(c events.RefereeDecision) error {
	switch f.state {
	case StateCurrentAthlete, StateTimeRunning, StateTimeStopped, StateDecisionPending:
	default:
		return f.invalid(c)
	}
	if f.current == nil {
		return fmt.Errorf("%w: %w", f.invalid(c), ErrNoGroup)
	}
	if err := f.requireWeight(c); err != nil {
		return err
	}

	now := f.clock.Now()
	accepted, err := f.decisions.Submit(c.Referee, c.Good, now)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if !accepted {
		log.Debug().
			Str("platform", f.platform).
			Int("referee", c.Referee).
			Msg("vote after resolution ignored")
		return nil
	}

	f.stopAthleteClock()
	f.setState(StateDecisionPending)
	f.emit(events.TypeRefereeVote, events.RefereeVotePayload{
		Referee:  c.Referee,
		Count:    f.decisions.Count(),
		Required: f.decisions.Referees(),
	})

	if _, ok := f.decisions.Majority(); ok && !f.downScheduled {
		f.downScheduled = true
		f.downTimer = f.schedule(f.cfg.RefereeWakeUpDelay, downSignalDue{seq: f.attemptSeq}, func() {
			f.sendDownSignal()
		})
	}
	return f.armDecision()
}

// armDecision schedules the resolution of a complete set of votes.
func (f *FieldOfPlay) armDecision() error {
	if !f.decisions.IsComplete() {
		return nil
	}
	if f.decisionTimer != nil {
		f.decisionTimer.Stop()
		f.decisionTimer = nil
	}
	var err error
	seq := f.attemptSeq
	f.decisionTimer = f.schedule(f.decisions.ReadyAt().Sub(f.clock.Now()), decisionDue{seq: seq}, func() {
		err = f.handleDecisionDue(decisionDue{seq: seq})
	})
	return err
}

// resumeDecision restarts the timers of a decision interrupted by a break.
func (f *FieldOfPlay) resumeDecision() error {
	if f.downScheduled && !f.downSignalSent && f.downTimer == nil {
		f.sendDownSignal()
	}
	return f.armDecision()
}

// schedule posts cmd to the actor after d, or runs inline now when d is not positive.
func (f *FieldOfPlay) schedule(d time.Duration, cmd events.Command, inline func()) clockwork.Timer {
	if d <= 0 {
		inline()
		return nil
	}
	return f.clock.AfterFunc(d, func() { f.post(cmd) })
}

func (f *FieldOfPlay) handleDownSignalDue(c downSignalDue) error {
	if c.seq != f.attemptSeq {
		return nil
	}
	f.downTimer = nil
	f.sendDownSignal()
	return nil
}

func (f *FieldOfPlay) sendDownSignal() {
	if f.downSignalSent || f.state != StateDecisionPending {
		return
	}
	good, ok := f.decisions.Majority()
	if !ok {
		return
	}
	f.downSignalSent = true
	f.emit(events.TypeDownSignal, events.DownSignalPayload{Good: good})
}

func (f *FieldOfPlay) handleDecisionDue(c decisionDue) error {
	if c.seq != f.attemptSeq || f.state != StateDecisionPending {
		return nil
	}
	f.decisionTimer = nil
	if ready := f.decisions.ReadyAt(); f.clock.Now().Before(ready) {
		seq := f.attemptSeq
		f.decisionTimer = f.schedule(ready.Sub(f.clock.Now()), decisionDue{seq: seq}, func() {})
		return nil
	}

	good, err := f.decisions.Resolve()
	if err != nil {
		if errors.Is(err, decision.ErrNoVotes) || errors.Is(err, decision.ErrIncomplete) {
			log.Info().
				Err(err).
				Str("platform", f.platform).
				Int("votes", f.decisions.Count()).
				Msg("decision not resolvable yet")
			return nil
		}
		return err
	}
	f.sendDownSignal()
	return f.finishAttempt(good, events.SourceReferees)
}

func (f *FieldOfPlay) handleDecisionReset(c events.DecisionReset) error {
	if f.state != StateDecisionPending {
		return f.invalid(c)
	}
	f.resetDecision()
	f.notify(events.EventDecisionReset, "")
	return nil
}

func (f *FieldOfPlay) handleExplicitDecision(c events.ExplicitDecision) error {
	if _, err := f.athlete(c.AthleteID); err != nil {
		return fmt.Errorf("%w: %w", f.invalid(c), err)
	}
	if f.current == nil || f.current.AthleteID != c.AthleteID {
		return fmt.Errorf("%w: %s", ErrNotCurrentAthlete, c.AthleteID)
	}
	if err := f.requireWeight(c); err != nil {
		return err
	}

	if f.state == StateBreak {
		f.breaks.Clear()
		f.clocks.Stop(clock.KindBreak)
		f.clocks.SetTimeRemaining(clock.KindBreak, 0)
	}
	f.stopAthleteClock()
	f.setState(StateDecisionPending)
	return f.finishAttempt(c.Good, events.SourceAdmin)
}

func (f *FieldOfPlay) handleJuryDecision(c events.JuryDecision) error {
	a, err := f.athlete(c.AthleteID)
	if err != nil {
		return fmt.Errorf("%w: %w", f.invalid(c), err)
	}

	if f.state == StateDecisionPending && f.current != nil && f.current.AthleteID == a.ID {
		event := events.JuryConfirmed
		if majority, ok := f.decisions.Majority(); ok && majority != c.Good {
			event = events.JuryReversed
		}
		f.decisions.Override(c.Good)
		f.emit(events.TypeJuryNotification, events.JuryNotificationPayload{
			AthleteID:    a.ID,
			Name:         a.FullName(),
			AttemptIndex: f.current.AttemptIndex,
			Good:         c.Good,
			Event:        event,
		})
		return f.finishAttempt(c.Good, events.SourceJury)
	}

	idx := a.AttemptsDone() - 1
	if idx < 0 {
		return fmt.Errorf("%w: %s has no attempt to review", f.invalid(c), a.FullName())
	}
	return f.reviewAttempt(a, idx, c.Good)
}

// reviewAttempt changes the result of an attempt that is already recorded.
func (f *FieldOfPlay) reviewAttempt(a *models.Athlete, idx int, good bool) error {
	previous := a.Attempts[idx].Good()
	weight := a.Attempts[idx].LiftedWeight()
	if err := a.RecordResult(idx, weight, good); err != nil {
		return err
	}
	f.persist(a)

	event := events.JuryConfirmed
	if previous != good {
		event = events.JuryReversed
	}
	f.emit(events.TypeJuryNotification, events.JuryNotificationPayload{
		AthleteID:    a.ID,
		Name:         a.FullName(),
		AttemptIndex: idx,
		Good:         good,
		Event:        event,
	})
	f.emit(events.TypeDecision, events.DecisionPayload{
		AthleteID:     a.ID,
		Name:          a.FullName(),
		AttemptIndex:  idx,
		AttemptNumber: models.AttemptNumberOf(idx),
		Weight:        weight,
		Good:          good,
		Source:        events.SourceJury,
	})

	if f.recomputeOrder() {
		f.currentChanged()
	}
	f.orderDirty = true

	log.Info().
		Str("platform", f.platform).
		Str("athlete_id", a.ID.String()).
		Int("attempt_index", idx).
		Bool("good", good).
		Str("event", string(event)).
		Msg("jury reviewed attempt")
	return nil
}

// finishAttempt records the ruling of the current attempt and moves on.
func (f *FieldOfPlay) finishAttempt(good bool, source events.DecisionSource) error {
	if f.current == nil {
		return ErrNoGroup
	}
	slot := *f.current
	a, err := f.athlete(slot.AthleteID)
	if err != nil {
		return err
	}
	if err := a.RecordResult(slot.AttemptIndex, slot.Weight, good); err != nil {
		return err
	}
	f.persist(a)

	f.emit(events.TypeDecision, events.DecisionPayload{
		AthleteID:     a.ID,
		Name:          a.FullName(),
		AttemptIndex:  slot.AttemptIndex,
		AttemptNumber: slot.AttemptNumber,
		Weight:        slot.Weight,
		Good:          good,
		Source:        source,
		Votes:         f.decisions.Votes(),
	})

	log.Info().
		Str("platform", f.platform).
		Str("athlete_id", a.ID.String()).
		Int("attempt_index", slot.AttemptIndex).
		Int("weight", slot.Weight).
		Bool("good", good).
		Str("source", string(source)).
		Msg("attempt decided")

	f.lastLifter = a.ID
	f.resetDecision()
	f.setState(StateCurrentAthlete)
	f.recomputeOrder()
	f.resetAthleteClock()
	f.orderDirty = true

	if f.order.Done() {
		f.enterGroupDone()
	}
	return nil
}
