package fop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/fieldofplay/go/internal/models"
)

type failingStore struct{}

func (failingStore) PersistAttemptResult(context.Context, *models.Athlete) error {
	return errors.New("database unavailable")
}

func TestPersisterKeepsPerAthleteOrder(t *testing.T) {
	repo := newFakeRepo()
	p := NewPersister("A", repo, 4, 16, time.Second)
	p.Start()

	a, b := lifter(1, "a", 100), lifter(2, "b", 100)
	for w := 101; w <= 110; w++ {
		for _, x := range []*models.Athlete{a, b} {
			c := x.Clone()
			c.Attempts[0].Change1 = w
			p.Enqueue(context.Background(), c)
		}
	}
	p.Stop()

	if len(repo.persisted) != 20 {
		t.Fatalf("persisted %d results, want 20", len(repo.persisted))
	}
	last := map[uuid.UUID]int{}
	for _, got := range repo.persisted {
		w := got.Attempts[0].Change1
		if w <= last[got.ID] {
			t.Fatalf("athlete %s: weight %d written after %d", got.LastName, w, last[got.ID])
		}
		last[got.ID] = w
	}
	if p.written.Load() != 20 {
		t.Errorf("written = %d, want 20", p.written.Load())
	}
}

func TestPersisterRoutesAthleteToSameWorker(t *testing.T) {
	p := NewPersister("A", newFakeRepo(), 8, 1, time.Second)
	a := lifter(1, "a", 100)
	first := p.route(a)
	for i := 0; i < 10; i++ {
		if got := p.route(a.Clone()); got != first {
			t.Fatalf("route changed from %d to %d", first, got)
		}
	}
}

func TestPersisterCountsFailures(t *testing.T) {
	p := NewPersister("A", failingStore{}, 1, 4, time.Second)
	p.Start()
	p.Enqueue(context.Background(), lifter(1, "a", 100))
	p.Enqueue(context.Background(), lifter(2, "b", 100))
	p.Stop()
	p.Stop()

	if p.failed.Load() != 2 || p.written.Load() != 0 {
		t.Errorf("failed=%d written=%d, want 2 and 0", p.failed.Load(), p.written.Load())
	}
}

func TestPersisterEnqueueGivesUpWhenContextEnds(t *testing.T) {
	p := NewPersister("A", newFakeRepo(), 1, 1, time.Second)
	p.Enqueue(context.Background(), lifter(1, "a", 100))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		p.Enqueue(ctx, lifter(1, "a", 100))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue after cancellation")
	}
}
