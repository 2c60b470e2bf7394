// Package fop runs the field of play of a platform: the state machine that
// sequences athletes, clocks, referee decisions and breaks during a session.
package fop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/fieldofplay/go/internal/fop/breaks"
	"github.com/mcdev12/fieldofplay/go/internal/fop/bus"
	"github.com/mcdev12/fieldofplay/go/internal/fop/clock"
	"github.com/mcdev12/fieldofplay/go/internal/fop/decision"
	"github.com/mcdev12/fieldofplay/go/internal/fop/events"
	"github.com/mcdev12/fieldofplay/go/internal/fop/liftorder"
	"github.com/mcdev12/fieldofplay/go/internal/models"
	"github.com/rs/zerolog/log"
)

// State of a field of play.
type State string

const (
	StateInactive        State = "INACTIVE"
	StateBreak           State = "BREAK"
	StateCurrentAthlete  State = "CURRENT_ATHLETE_DISPLAYED"
	StateTimeRunning     State = "TIME_RUNNING"
	StateTimeStopped     State = "TIME_STOPPED"
	StateDecisionPending State = "DECISION_PENDING"
)

var (
	ErrInvalidTransition = errors.New("command not allowed in current state")
	ErrInvalidArgument   = errors.New("invalid command argument")
	ErrNoGroup           = errors.New("no group loaded")
	ErrUnknownAthlete    = errors.New("athlete not in current group")
	ErrNotCurrentAthlete = errors.New("athlete is not the current athlete")
	ErrStopped           = errors.New("field of play stopped")
	ErrInternal          = errors.New("internal error, field of play reset")
)

// GroupRepository supplies groups and stores attempt results.
type GroupRepository interface {
	ResultStore
	LoadGroup(ctx context.Context, id uuid.UUID) (*models.Group, error)
}

type request struct {
	cmd    events.Command
	origin string
	reply  chan error
}

// FieldOfPlay is the actor owning one platform. All state below the inbox is
// only touched by the goroutine executing Run.
type FieldOfPlay struct {
	platform  string
	cfg       Config
	repo      GroupRepository
	clock     clockwork.Clock
	inbox     chan request
	done      chan struct{}
	bus       *bus.Bus
	clocks    *clock.Manager
	decisions *decision.Aggregator
	breaks    *breaks.Scheduler
	persister *Persister

	state      State
	group      *models.Group
	order      liftorder.Order
	current    *liftorder.Slot
	lastLifter uuid.UUID

	attemptSeq     uint64
	decisionTimer  clockwork.Timer
	downTimer      clockwork.Timer
	downScheduled  bool
	downSignalSent bool
	groupDoneSent  bool
	breakDoneSent  bool

	// per command
	ctx        context.Context
	origin     string
	pending    []events.Notification
	orderDirty bool
}

// New creates the field of play of a platform. Call Run to start it.
func New(platform string, cfg Config, repo GroupRepository, clk clockwork.Clock) *FieldOfPlay {
	cfg = cfg.withDefaults()
	if clk == nil {
		clk = clockwork.NewRealClock()
	}

	f := &FieldOfPlay{
		platform:  platform,
		cfg:       cfg,
		repo:      repo,
		clock:     clk,
		inbox:     make(chan request, cfg.InboxSize),
		done:      make(chan struct{}),
		bus:       bus.New(platform),
		clocks:    clock.NewManager(clk, cfg.TickInterval),
		decisions: decision.NewAggregator(cfg.Referees, cfg.DecisionWindow),
		breaks:    breaks.NewScheduler(clk, cfg.BreakRoundingStep),
		persister: NewPersister(platform, repo, cfg.PersistWorkers, cfg.PersistQueue, cfg.PersistTimeout),
		state:     StateInactive,
		ctx:       context.Background(),
	}

	f.clocks.OnTick(func(kind clock.Kind, left time.Duration) {
		f.bus.TryPublish(events.NewNotification(f.platform, events.TypeSetTime, "", f.clock.Now(),
			events.TimePayload{Clock: string(kind), TimeRemainingMs: left.Milliseconds()}))
	})
	f.clocks.OnExpire(func(kind clock.Kind) {
		f.post(timeExpired{kind: kind})
	})
	return f
}

// Platform returns the platform name.
func (f *FieldOfPlay) Platform() string { return f.platform }

// Bus returns the broadcast bus of the platform.
func (f *FieldOfPlay) Bus() *bus.Bus { return f.bus }

// Config returns the effective configuration.
func (f *FieldOfPlay) Config() Config { return f.cfg }

// Run processes commands until ctx is cancelled. Pending results are written
// before it returns.
func (f *FieldOfPlay) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.bus.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		f.clocks.Run(ctx)
	}()
	f.persister.Start()

	log.Info().Str("platform", f.platform).Msg("field of play started")

	defer func() {
		close(f.done)
		f.cancelDecisionTimers()
		f.persister.Stop()
		wg.Wait()
		log.Info().Str("platform", f.platform).Msg("field of play stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-f.inbox:
			f.process(ctx, req)
		}
	}
}

// Submit queues a command without waiting for it to be handled.
func (f *FieldOfPlay) Submit(ctx context.Context, origin string, cmd events.Command) error {
	return f.enqueue(ctx, request{cmd: cmd, origin: origin})
}

// Do queues a command and waits for the outcome. Notifications caused by the
// command are on the bus when Do returns.
func (f *FieldOfPlay) Do(ctx context.Context, origin string, cmd events.Command) error {
	reply := make(chan error, 1)
	if err := f.enqueue(ctx, request{cmd: cmd, origin: origin, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-f.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrStopped
		}
	}
}

// Snapshot returns a consistent view of the platform.
func (f *FieldOfPlay) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if err := f.enqueue(ctx, request{cmd: snapshotRequest{reply: reply}}); err != nil {
		return Snapshot{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-f.done:
		return Snapshot{}, ErrStopped
	}
}

func (f *FieldOfPlay) enqueue(ctx context.Context, req request) error {
	select {
	case <-f.done:
		return ErrStopped
	default:
	}
	select {
	case f.inbox <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-f.done:
		return ErrStopped
	}
}

// post is used by timers and the ticker to feed the actor.
func (f *FieldOfPlay) post(cmd events.Command) {
	select {
	case f.inbox <- request{cmd: cmd}:
	case <-f.done:
	}
}

func (f *FieldOfPlay) process(ctx context.Context, req request) {
	f.ctx = ctx
	f.origin = req.origin
	f.pending = f.pending[:0]
	f.orderDirty = false

	err := f.safeHandle(req.cmd)
	if err != nil && !errors.Is(err, ErrInternal) {
		f.pending = f.pending[:0]
		f.orderDirty = false
		log.Warn().
			Err(err).
			Str("platform", f.platform).
			Str("command", string(req.cmd.CommandType())).
			Str("state", string(f.state)).
			Msg("command rejected")
	}
	if f.orderDirty {
		f.emitLiftingOrderUpdated()
	}
	f.flush(ctx)

	if req.reply != nil {
		req.reply <- err
	}
}

func (f *FieldOfPlay) safeHandle(cmd events.Command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			f.degrade(r)
			err = ErrInternal
		}
	}()
	return f.handle(cmd)
}

// degrade drops everything the actor holds and returns to INACTIVE.
func (f *FieldOfPlay) degrade(cause any) {
	log.Error().
		Str("platform", f.platform).
		Str("state", string(f.state)).
		Interface("panic", cause).
		Msg("handler panicked, field of play reset to inactive")

	f.pending = f.pending[:0]
	f.resetDecision()
	f.breaks.Clear()
	f.clocks.StopAll()
	f.group = nil
	f.order = nil
	f.current = nil
	f.setState(StateInactive)
	f.notify(events.EventInternalError, fmt.Sprint(cause))
	f.orderDirty = true
}

func (f *FieldOfPlay) flush(ctx context.Context) {
	for _, n := range f.pending {
		if err := f.bus.Publish(ctx, n); err != nil {
			log.Warn().
				Err(err).
				Str("platform", f.platform).
				Str("type", string(n.Type)).
				Msg("notification not published")
			break
		}
	}
	f.pending = f.pending[:0]
}

func (f *FieldOfPlay) emit(typ events.NotificationType, data any) {
	f.pending = append(f.pending, events.NewNotification(f.platform, typ, f.origin, f.clock.Now(), data))
}

func (f *FieldOfPlay) notify(event, info string) {
	f.emit(events.TypeNotification, events.StatePayload{State: string(f.state), Event: event, Info: info})
}

func (f *FieldOfPlay) emitTime(typ events.NotificationType, kind clock.Kind, left time.Duration) {
	f.emit(typ, events.TimePayload{Clock: string(kind), TimeRemainingMs: left.Milliseconds()})
}

func (f *FieldOfPlay) emitLiftingOrderUpdated() {
	p := events.LiftingOrderUpdatedPayload{
		State:         string(f.state),
		TimeAllowedMs: f.clocks.TimeRemaining(clock.KindAthlete).Milliseconds(),
		Order:         append([]liftorder.Slot(nil), f.order.Head(f.cfg.OrderPreview)...),
	}
	if f.group != nil {
		p.GroupName = f.group.Name
	}
	if f.current != nil {
		c := *f.current
		p.Current = &c
	}
	if next, ok := f.nextSlot(); ok {
		p.Next = &next
	}
	f.emit(events.TypeLiftingOrderUpdated, p)
}

func (f *FieldOfPlay) setState(s State) {
	if f.state == s {
		return
	}
	log.Debug().
		Str("platform", f.platform).
		Str("from", string(f.state)).
		Str("to", string(s)).
		Msg("state transition")
	f.state = s
}

func (f *FieldOfPlay) invalid(cmd events.Command) error {
	return fmt.Errorf("%w: %s in %s", ErrInvalidTransition, cmd.CommandType(), f.state)
}

// recomputeOrder rebuilds the lifting order and reports whether the current
// attempt changed. The current attempt is pinned while its decision is pending.
func (f *FieldOfPlay) recomputeOrder() bool {
	if f.group == nil {
		f.order = nil
		changed := f.current != nil
		f.current = nil
		return changed
	}
	f.order = liftorder.ComputeOrder(f.group.Athletes)
	if f.state == StateDecisionPending && f.current != nil {
		if slot, ok := f.slotOf(f.current.AthleteID); ok && slot.Same(*f.current) {
			f.current = &slot
		}
		return false
	}

	head, ok := f.order.Current()
	if !ok {
		changed := f.current != nil
		f.current = nil
		return changed
	}
	changed := f.current == nil || !f.current.Same(head)
	f.current = &head
	return changed
}

func (f *FieldOfPlay) slotOf(athleteID uuid.UUID) (liftorder.Slot, bool) {
	if i := f.order.Position(athleteID); i >= 0 {
		return f.order[i], true
	}
	return liftorder.Slot{}, false
}

func (f *FieldOfPlay) nextSlot() (liftorder.Slot, bool) {
	for _, s := range f.order {
		if f.current == nil || !s.Same(*f.current) {
			return s, true
		}
	}
	return liftorder.Slot{}, false
}

// timeAllowed is doubled when an athlete follows themself.
func (f *FieldOfPlay) timeAllowed() time.Duration {
	if f.current == nil {
		return 0
	}
	if f.current.AthleteID == f.lastLifter {
		return f.cfg.ConsecutiveTimeAllowed
	}
	return f.cfg.TimeAllowed
}

func (f *FieldOfPlay) resetAthleteClock() {
	f.clocks.Stop(clock.KindAthlete)
	f.clocks.SetTimeRemaining(clock.KindAthlete, f.timeAllowed())
}

// stopAthleteClock stops a running athlete clock and announces it.
func (f *FieldOfPlay) stopAthleteClock() {
	if f.clocks.State(clock.KindAthlete) != clock.StateRunning {
		return
	}
	left := f.clocks.Stop(clock.KindAthlete)
	f.emitTime(events.TypeStopTime, clock.KindAthlete, left)
}

func (f *FieldOfPlay) cancelDecisionTimers() {
	if f.decisionTimer != nil {
		f.decisionTimer.Stop()
		f.decisionTimer = nil
	}
	if f.downTimer != nil {
		f.downTimer.Stop()
		f.downTimer = nil
	}
}

// resetDecision forgets the votes of the current attempt and invalidates its timers.
func (f *FieldOfPlay) resetDecision() {
	f.cancelDecisionTimers()
	f.decisions.Reset()
	f.attemptSeq++
	f.downScheduled = false
	f.downSignalSent = false
}

// discardDecision drops pending votes and tells displays about it.
func (f *FieldOfPlay) discardDecision() {
	if f.decisions.Count() > 0 && !f.decisions.Resolved() {
		f.notify(events.EventDecisionDiscarded, "")
	}
	f.resetDecision()
}

func (f *FieldOfPlay) enterGroupDone() {
	f.clocks.Stop(clock.KindAthlete)
	f.clocks.Stop(clock.KindBreak)
	st, err := f.breaks.Start(breaks.TypeGroupDone, breaks.ModeIndefinite, 0, time.Time{})
	if err != nil {
		panic(fmt.Sprintf("group done break rejected: %v", err))
	}
	f.setState(StateBreak)
	f.breakDoneSent = false

	if !f.groupDoneSent {
		f.groupDoneSent = true
		p := events.GroupDonePayload{}
		if f.group != nil {
			p.GroupID = f.group.ID
			p.GroupName = f.group.Name
		}
		f.emit(events.TypeGroupDone, p)
		log.Info().Str("platform", f.platform).Str("group", p.GroupName).Msg("group done")
	}
	f.emit(events.TypeBreakStarted, events.NewBreakPayload(st))
}

func (f *FieldOfPlay) persist(a *models.Athlete) {
	f.persister.Enqueue(f.ctx, a.Clone())
}

type timeExpired struct{ kind clock.Kind }

type decisionDue struct{ seq uint64 }

type downSignalDue struct{ seq uint64 }

type snapshotRequest struct{ reply chan Snapshot }

func (timeExpired) CommandType() events.CommandType     { return "TimeExpired" }
func (decisionDue) CommandType() events.CommandType     { return "DecisionDue" }
func (downSignalDue) CommandType() events.CommandType   { return "DownSignalDue" }
func (snapshotRequest) CommandType() events.CommandType { return "Snapshot" }
