// Package decision collects referee votes for one attempt and resolves the ruling.
package decision

import (
	"errors"
	"time"
)

const DefaultReferees = 3

var (
	ErrNoVotes         = errors.New("no referee decision submitted")
	ErrIncomplete      = errors.New("referee decisions do not form a majority yet")
	ErrInvalidReferee  = errors.New("referee index out of range")
	ErrAlreadyResolved = errors.New("decision already resolved")
)

// Vote is one referee's light.
type Vote struct {
	Referee     int       `json:"referee"`
	Good        bool      `json:"good"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Aggregator holds the votes of a single attempt. It is owned by the platform
// actor and is not safe for concurrent use.
type Aggregator struct {
	referees int
	window   time.Duration

	votes      []*Vote
	lastVote   time.Time
	resolved   bool
	result     bool
	juryResult *bool
}

// NewAggregator creates an aggregator for the given panel size.
// window is how long to wait after the last vote before resolving.
func NewAggregator(referees int, window time.Duration) *Aggregator {
	if referees <= 0 {
		referees = DefaultReferees
	}
	return &Aggregator{
		referees: referees,
		window:   window,
		votes:    make([]*Vote, referees),
	}
}

// Referees returns the panel size.
func (a *Aggregator) Referees() int { return a.referees }

// Window returns the coalescing window.
func (a *Aggregator) Window() time.Duration { return a.window }

// Submit records a vote. A referee may change the vote until the attempt is
// resolved; later submissions are ignored and reported as not accepted.
// referee is 1-based.
func (a *Aggregator) Submit(referee int, good bool, at time.Time) (bool, error) {
	if referee < 1 || referee > a.referees {
		return false, ErrInvalidReferee
	}
	if a.resolved {
		return false, nil
	}
	a.votes[referee-1] = &Vote{Referee: referee, Good: good, SubmittedAt: at}
	if at.After(a.lastVote) {
		a.lastVote = at
	}
	return true, nil
}

// Count returns the number of referees who voted.
func (a *Aggregator) Count() int {
	n := 0
	for _, v := range a.votes {
		if v != nil {
			n++
		}
	}
	return n
}

// IsComplete reports whether every referee voted.
func (a *Aggregator) IsComplete() bool {
	return a.Count() == a.referees
}

// Majority returns the ruling once enough votes agree that the missing ones
// cannot change it.
func (a *Aggregator) Majority() (bool, bool) {
	good, bad := 0, 0
	for _, v := range a.votes {
		if v == nil {
			continue
		}
		if v.Good {
			good++
		} else {
			bad++
		}
	}
	need := a.referees/2 + 1
	switch {
	case good >= need:
		return true, true
	case bad >= need:
		return false, true
	default:
		return false, false
	}
}

// ReadyAt is the earliest time Resolve should be called.
func (a *Aggregator) ReadyAt() time.Time {
	return a.lastVote.Add(a.window)
}

// Resolve fixes the ruling. Subsequent votes are ignored until Reset.
func (a *Aggregator) Resolve() (bool, error) {
	if a.resolved {
		return a.Result(), nil
	}
	if a.Count() == 0 {
		return false, ErrNoVotes
	}
	good, ok := a.Majority()
	if !ok {
		return false, ErrIncomplete
	}
	a.resolved = true
	a.result = good
	return a.Result(), nil
}

// Override replaces the ruling with the jury's.
func (a *Aggregator) Override(good bool) {
	a.resolved = true
	a.juryResult = &good
}

// Resolved reports whether a ruling is fixed.
func (a *Aggregator) Resolved() bool { return a.resolved }

// Result returns the fixed ruling, the jury's when there is one.
func (a *Aggregator) Result() bool {
	if a.juryResult != nil {
		return *a.juryResult
	}
	return a.result
}

// JuryOverride reports whether the jury replaced the referees' ruling.
func (a *Aggregator) JuryOverride() bool { return a.juryResult != nil }

// Votes returns a copy of the submitted votes in referee order.
func (a *Aggregator) Votes() []Vote {
	out := make([]Vote, 0, a.referees)
	for _, v := range a.votes {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}

// Reset discards all votes and the ruling.
func (a *Aggregator) Reset() {
	a.votes = make([]*Vote, a.referees)
	a.lastVote = time.Time{}
	a.resolved = false
	a.result = false
	a.juryResult = nil
}
