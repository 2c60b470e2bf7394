// Package liftorder computes the IWF lifting order of a group.
package liftorder

import (
	"cmp"
	"slices"

	"github.com/google/uuid"
	"github.com/mcdev12/fieldofplay/go/internal/models"
)

// Slot is one pending attempt: who lifts, which attempt, at what weight.
type Slot struct {
	AthleteID     uuid.UUID       `json:"athlete_id"`
	LotNumber     int             `json:"lot_number"`
	Name          string          `json:"name"`
	Team          string          `json:"team,omitempty"`
	Category      string          `json:"category,omitempty"`
	Kind          models.LiftKind `json:"kind"`
	AttemptIndex  int             `json:"attempt_index"`
	AttemptNumber int             `json:"attempt_number"`
	Weight        int             `json:"weight"`
}

// Same reports whether two slots designate the same attempt of the same athlete.
func (s Slot) Same(other Slot) bool {
	return s.AthleteID == other.AthleteID && s.AttemptIndex == other.AttemptIndex
}

// Order is the ranked queue of pending attempts, current attempt first.
type Order []Slot

// ComputeOrder ranks the next attempt of every athlete that still has one.
// Snatches come before clean and jerks, then lighter bars first, then lower
// attempt numbers, then lower lot numbers.
func ComputeOrder(athletes []*models.Athlete) Order {
	order := make(Order, 0, len(athletes))
	for _, a := range athletes {
		if a == nil {
			continue
		}
		idx, ok := a.NextAttemptIndex()
		if !ok {
			continue
		}
		order = append(order, Slot{
			AthleteID:     a.ID,
			LotNumber:     a.LotNumber,
			Name:          a.FullName(),
			Team:          a.Team,
			Category:      a.Category,
			Kind:          models.LiftKindOf(idx),
			AttemptIndex:  idx,
			AttemptNumber: models.AttemptNumberOf(idx),
			Weight:        a.RequestedWeight(idx),
		})
	}

	slices.SortFunc(order, compareSlots)
	return order
}

func compareSlots(a, b Slot) int {
	if c := cmp.Compare(liftRank(a.Kind), liftRank(b.Kind)); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Weight, b.Weight); c != 0 {
		return c
	}
	if c := cmp.Compare(a.AttemptNumber, b.AttemptNumber); c != 0 {
		return c
	}
	if c := cmp.Compare(a.LotNumber, b.LotNumber); c != 0 {
		return c
	}
	return cmp.Compare(a.AthleteID.String(), b.AthleteID.String())
}

func liftRank(k models.LiftKind) int {
	if k == models.LiftSnatch {
		return 0
	}
	return 1
}

// Current returns the attempt that is up.
func (o Order) Current() (Slot, bool) {
	if len(o) == 0 {
		return Slot{}, false
	}
	return o[0], true
}

// Next returns the attempt after the current one.
func (o Order) Next() (Slot, bool) {
	if len(o) < 2 {
		return Slot{}, false
	}
	return o[1], true
}

// Done reports whether no attempt is left in the group.
func (o Order) Done() bool {
	return len(o) == 0
}

// Position returns the 0-based rank of the athlete, -1 when absent.
func (o Order) Position(athleteID uuid.UUID) int {
	for i, s := range o {
		if s.AthleteID == athleteID {
			return i
		}
	}
	return -1
}

// Head returns at most n leading slots.
func (o Order) Head(n int) Order {
	if n < 0 || n >= len(o) {
		return o
	}
	return o[:n]
}
