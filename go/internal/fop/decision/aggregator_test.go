package decision

import (
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2026, 5, 2, 14, 0, 0, 0, time.UTC)

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		votes    map[int]bool
		expected bool
		err      error
	}{
		{name: "two good one bad", votes: map[int]bool{1: true, 2: true, 3: false}, expected: true},
		{name: "two bad one good", votes: map[int]bool{1: false, 2: true, 3: false}, expected: false},
		{name: "two good is enough", votes: map[int]bool{1: true, 3: true}, expected: true},
		{name: "no votes", votes: map[int]bool{}, err: ErrNoVotes},
		{name: "single vote", votes: map[int]bool{2: true}, err: ErrIncomplete},
		{name: "split votes", votes: map[int]bool{1: true, 2: false}, err: ErrIncomplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAggregator(3, 300*time.Millisecond)
			for ref, good := range tt.votes {
				if _, err := a.Submit(ref, good, t0); err != nil {
					t.Fatalf("Submit(%d) failed: %v", ref, err)
				}
			}
			got, err := a.Resolve()
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("Resolve() error = %v, want %v", err, tt.err)
				}
				if a.Resolved() {
					t.Error("failed Resolve must not fix a ruling")
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() failed: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Resolve() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestVotesOverwriteUntilResolved(t *testing.T) {
	a := NewAggregator(3, 0)
	_, _ = a.Submit(1, false, t0)
	_, _ = a.Submit(1, true, t0.Add(time.Second))
	_, _ = a.Submit(2, true, t0.Add(time.Second))

	if a.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", a.Count())
	}
	if good, _ := a.Resolve(); !good {
		t.Fatal("overwritten vote should count as good")
	}

	accepted, err := a.Submit(3, false, t0.Add(2*time.Second))
	if err != nil || accepted {
		t.Errorf("Submit after resolve = %v, %v; want ignored", accepted, err)
	}
	if a.Count() != 2 {
		t.Errorf("Count() after ignored vote = %d, want 2", a.Count())
	}

	a.Reset()
	if a.Count() != 0 || a.Resolved() {
		t.Errorf("Reset left count=%d resolved=%v", a.Count(), a.Resolved())
	}
	if accepted, _ := a.Submit(3, false, t0); !accepted {
		t.Error("Submit after Reset should be accepted")
	}
}

func TestJuryOverrideWins(t *testing.T) {
	for _, jury := range []bool{true, false} {
		a := NewAggregator(3, 0)
		_, _ = a.Submit(1, !jury, t0)
		_, _ = a.Submit(2, !jury, t0)
		_, _ = a.Submit(3, !jury, t0)
		if _, err := a.Resolve(); err != nil {
			t.Fatalf("Resolve() failed: %v", err)
		}

		a.Override(jury)
		if a.Result() != jury || !a.JuryOverride() {
			t.Errorf("after Override(%v): Result=%v JuryOverride=%v", jury, a.Result(), a.JuryOverride())
		}
		if got, _ := a.Resolve(); got != jury {
			t.Errorf("Resolve() after override = %v, want %v", got, jury)
		}
	}
}

func TestReadyAtFollowsLastVote(t *testing.T) {
	a := NewAggregator(3, 300*time.Millisecond)
	_, _ = a.Submit(2, true, t0.Add(100*time.Millisecond))
	_, _ = a.Submit(1, true, t0)

	if want := t0.Add(400 * time.Millisecond); !a.ReadyAt().Equal(want) {
		t.Errorf("ReadyAt() = %v, want %v", a.ReadyAt(), want)
	}
}

func TestInvalidReferee(t *testing.T) {
	a := NewAggregator(3, 0)
	for _, ref := range []int{0, 4, -1} {
		if _, err := a.Submit(ref, true, t0); !errors.Is(err, ErrInvalidReferee) {
			t.Errorf("Submit(%d) error = %v, want ErrInvalidReferee", ref, err)
		}
	}
}

func TestMajorityWithFiveReferees(t *testing.T) {
	a := NewAggregator(5, 0)
	_, _ = a.Submit(1, true, t0)
	_, _ = a.Submit(2, true, t0)
	if _, ok := a.Majority(); ok {
		t.Fatal("two of five should not form a majority")
	}
	_, _ = a.Submit(5, true, t0)
	if good, ok := a.Majority(); !ok || !good {
		t.Errorf("Majority() = %v, %v; want true, true", good, ok)
	}
}
