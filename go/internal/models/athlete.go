package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LiftKind defines which lift an attempt belongs to.
type LiftKind string

const (
	LiftSnatch    LiftKind = "SNATCH"
	LiftCleanJerk LiftKind = "CLEAN_JERK"
)

const (
	AttemptsPerLift = 3
	TotalAttempts   = 2 * AttemptsPerLift
)

var (
	ErrNoAttemptLeft     = errors.New("athlete has no attempt left")
	ErrWeightTooLow      = errors.New("requested weight is below the automatic progression")
	ErrTooManyChanges    = errors.New("attempt already changed twice")
	ErrAttemptOutOfRange = errors.New("attempt index out of range")
	ErrNoWeight          = errors.New("attempt has no requested weight")
)

// Attempt holds the declared and changed weights of one attempt and its outcome.
type Attempt struct {
	Declaration int        `json:"declaration,omitempty"`
	Change1     int        `json:"change1,omitempty"`
	Change2     int        `json:"change2,omitempty"`
	ActualLift  *int       `json:"actual_lift,omitempty"` // positive good, negative no-lift, nil not lifted
	ChangedAt   *time.Time `json:"changed_at,omitempty"`
}

// Requested returns the latest explicitly requested weight, 0 when none was entered.
func (a Attempt) Requested() int {
	switch {
	case a.Change2 > 0:
		return a.Change2
	case a.Change1 > 0:
		return a.Change1
	default:
		return a.Declaration
	}
}

// Done reports whether the attempt has a result.
func (a Attempt) Done() bool {
	return a.ActualLift != nil
}

// Good reports whether the attempt was a good lift.
func (a Attempt) Good() bool {
	return a.ActualLift != nil && *a.ActualLift > 0
}

// LiftedWeight returns the absolute weight of a done attempt.
func (a Attempt) LiftedWeight() int {
	if a.ActualLift == nil {
		return 0
	}
	if *a.ActualLift < 0 {
		return -*a.ActualLift
	}
	return *a.ActualLift
}

// Athlete is one registered lifter of a group.
type Athlete struct {
	ID         uuid.UUID              `json:"id"`
	GroupID    uuid.UUID              `json:"group_id"`
	LotNumber  int                    `json:"lot_number"`
	FirstName  string                 `json:"first_name"`
	LastName   string                 `json:"last_name"`
	Team       string                 `json:"team,omitempty"`
	Category   string                 `json:"category,omitempty"`
	EntryTotal int                    `json:"entry_total"`
	BodyWeight float64                `json:"body_weight,omitempty"`
	Withdrawn  bool                   `json:"withdrawn,omitempty"`
	Attempts   [TotalAttempts]Attempt `json:"attempts"`
}

// LiftKindOf maps an attempt index (0..5) to its lift.
func LiftKindOf(index int) LiftKind {
	if index < AttemptsPerLift {
		return LiftSnatch
	}
	return LiftCleanJerk
}

// AttemptNumberOf maps an attempt index (0..5) to its number within the lift (1..3).
func AttemptNumberOf(index int) int {
	return index%AttemptsPerLift + 1
}

// FullName returns "LASTNAME Firstname" the way scoreboards print it.
func (a *Athlete) FullName() string {
	last := strings.ToUpper(a.LastName)
	if a.FirstName == "" {
		return last
	}
	return last + " " + a.FirstName
}

// AttemptsDone counts the leading attempts that have a result.
func (a *Athlete) AttemptsDone() int {
	n := 0
	for n < TotalAttempts && a.Attempts[n].Done() {
		n++
	}
	return n
}

// NextAttemptIndex returns the index of the next attempt to lift.
func (a *Athlete) NextAttemptIndex() (int, bool) {
	if a.Withdrawn {
		return 0, false
	}
	n := a.AttemptsDone()
	if n >= TotalAttempts {
		return 0, false
	}
	return n, true
}

// BestSnatch returns the heaviest good snatch, 0 when none.
func (a *Athlete) BestSnatch() int {
	best := 0
	for i := 0; i < AttemptsPerLift; i++ {
		if a.Attempts[i].Good() && a.Attempts[i].LiftedWeight() > best {
			best = a.Attempts[i].LiftedWeight()
		}
	}
	return best
}

// AutomaticProgression returns the minimum weight allowed for the attempt at index.
// After a good lift the bar goes up by 1 kg, after a no-lift it stays.
func (a *Athlete) AutomaticProgression(index int) int {
	if index < 0 || index >= TotalAttempts {
		return 0
	}
	if AttemptNumberOf(index) == 1 {
		if index == 0 {
			return a.Attempts[0].Declaration
		}
		if d := a.Attempts[index].Declaration; d > 0 {
			return d
		}
		fallback := a.EntryTotal - a.BestSnatch()
		if fallback < 1 {
			fallback = 1
		}
		return fallback
	}
	prev := a.Attempts[index-1]
	if !prev.Done() {
		return a.RequestedWeight(index - 1)
	}
	if prev.Good() {
		return prev.LiftedWeight() + 1
	}
	return prev.LiftedWeight()
}

// RequestedWeight returns the weight the athlete will lift for the attempt at index.
func (a *Athlete) RequestedWeight(index int) int {
	if index < 0 || index >= TotalAttempts {
		return 0
	}
	if w := a.Attempts[index].Requested(); w > 0 {
		return w
	}
	return a.AutomaticProgression(index)
}

// NextRequestedWeight returns the weight of the next attempt, 0 when the athlete is done.
func (a *Athlete) NextRequestedWeight() int {
	idx, ok := a.NextAttemptIndex()
	if !ok {
		return 0
	}
	return a.RequestedWeight(idx)
}

// ChangeWeight records a declaration or change for the next attempt.
func (a *Athlete) ChangeWeight(weight int, at time.Time) (int, error) {
	idx, ok := a.NextAttemptIndex()
	if !ok {
		return 0, ErrNoAttemptLeft
	}
	if AttemptNumberOf(idx) > 1 {
		if minimum := a.AutomaticProgression(idx); weight < minimum {
			return idx, fmt.Errorf("%w: %d < %d", ErrWeightTooLow, weight, minimum)
		}
	}
	att := &a.Attempts[idx]
	switch {
	case att.Declaration == 0:
		att.Declaration = weight
	case att.Change1 == 0:
		att.Change1 = weight
	case att.Change2 == 0:
		att.Change2 = weight
	default:
		return idx, ErrTooManyChanges
	}
	at = at.UTC()
	att.ChangedAt = &at
	return idx, nil
}

// RecordResult stores the outcome of the attempt at index, lifted at weight.
func (a *Athlete) RecordResult(index, weight int, good bool) error {
	if index < 0 || index >= TotalAttempts {
		return ErrAttemptOutOfRange
	}
	if weight <= 0 {
		return fmt.Errorf("%w: %d kg", ErrNoWeight, weight)
	}
	v := weight
	if !good {
		v = -weight
	}
	a.Attempts[index].ActualLift = &v
	return nil
}

// Clone returns a deep copy safe to hand to another goroutine.
func (a *Athlete) Clone() *Athlete {
	c := *a
	for i := range c.Attempts {
		if a.Attempts[i].ActualLift != nil {
			v := *a.Attempts[i].ActualLift
			c.Attempts[i].ActualLift = &v
		}
		if a.Attempts[i].ChangedAt != nil {
			t := *a.Attempts[i].ChangedAt
			c.Attempts[i].ChangedAt = &t
		}
	}
	return &c
}
