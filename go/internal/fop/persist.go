package fop

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mcdev12/fieldofplay/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ResultStore persists the attempts of an athlete.
type ResultStore interface {
	PersistAttemptResult(ctx context.Context, athlete *models.Athlete) error
}

// Persister writes attempt results off the actor goroutine. Each athlete is
// always handled by the same worker so its writes stay in order.
type Persister struct {
	platform string
	store    ResultStore
	timeout  time.Duration
	queues   []chan *models.Athlete

	wg       sync.WaitGroup
	stopOnce sync.Once
	written  atomic.Uint64
	failed   atomic.Uint64
}

// NewPersister creates a persister with the given number of workers.
func NewPersister(platform string, store ResultStore, workers, queueSize int, timeout time.Duration) *Persister {
	p := &Persister{
		platform: platform,
		store:    store,
		timeout:  timeout,
		queues:   make([]chan *models.Athlete, workers),
	}
	for i := range p.queues {
		p.queues[i] = make(chan *models.Athlete, queueSize)
	}
	return p
}

// Start launches the workers.
func (p *Persister) Start() {
	for i, q := range p.queues {
		p.wg.Add(1)
		go p.worker(i, q)
	}
}

// Enqueue hands a snapshot of the athlete to its worker. It blocks while the
// worker's queue is full unless ctx ends first.
func (p *Persister) Enqueue(ctx context.Context, athlete *models.Athlete) {
	q := p.queues[p.route(athlete)]
	select {
	case q <- athlete:
	case <-ctx.Done():
		log.Error().
			Str("platform", p.platform).
			Str("athlete_id", athlete.ID.String()).
			Msg("dropping attempt result, shutting down")
	}
}

func (p *Persister) route(athlete *models.Athlete) int {
	h := fnv.New32a()
	_, _ = h.Write(athlete.ID[:])
	return int(h.Sum32() % uint32(len(p.queues)))
}

// Stop closes the queues and waits for pending writes.
func (p *Persister) Stop() {
	p.stopOnce.Do(func() {
		for _, q := range p.queues {
			close(q)
		}
		p.wg.Wait()
		log.Info().
			Str("platform", p.platform).
			Uint64("written", p.written.Load()).
			Uint64("failed", p.failed.Load()).
			Msg("result persister stopped")
	})
}

func (p *Persister) worker(id int, q <-chan *models.Athlete) {
	defer p.wg.Done()

	for athlete := range q {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		err := p.store.PersistAttemptResult(ctx, athlete)
		cancel()

		if err != nil {
			p.failed.Add(1)
			log.Error().
				Err(err).
				Str("platform", p.platform).
				Str("athlete_id", athlete.ID.String()).
				Int("worker_id", id).
				Msg("failed to persist attempt result")
			continue
		}
		p.written.Add(1)
		log.Debug().
			Str("platform", p.platform).
			Str("athlete_id", athlete.ID.String()).
			Int("worker_id", id).
			Msg("attempt result persisted")
	}
}
