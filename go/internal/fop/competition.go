package fop

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownPlatform   = errors.New("unknown platform")
	ErrDuplicatePlatform = errors.New("duplicate platform")
)

// Competition owns one field of play per platform. It is passed explicitly to
// the components that need it.
type Competition struct {
	name      string
	platforms map[string]*FieldOfPlay
	names     []string
}

// NewCompetition creates a field of play for each platform name.
func NewCompetition(name string, platforms []string, cfg Config, repo GroupRepository, clk clockwork.Clock) (*Competition, error) {
	if len(platforms) == 0 {
		return nil, fmt.Errorf("competition %q has no platform", name)
	}
	c := &Competition{
		name:      name,
		platforms: make(map[string]*FieldOfPlay, len(platforms)),
	}
	for _, p := range platforms {
		if p == "" {
			return nil, fmt.Errorf("competition %q: empty platform name", name)
		}
		if _, exists := c.platforms[p]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePlatform, p)
		}
		c.platforms[p] = New(p, cfg, repo, clk)
		c.names = append(c.names, p)
	}
	return c, nil
}

// Name returns the competition name.
func (c *Competition) Name() string { return c.name }

// Platform returns the field of play of a platform.
func (c *Competition) Platform(name string) (*FieldOfPlay, error) {
	f, ok := c.platforms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, name)
	}
	return f, nil
}

// PlatformNames returns platform names in configuration order.
func (c *Competition) PlatformNames() []string {
	return append([]string(nil), c.names...)
}

// Run runs every field of play until ctx is cancelled.
func (c *Competition) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(c.names))

	for _, name := range c.names {
		f := c.platforms[name]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.Run(ctx); err != nil {
				errCh <- fmt.Errorf("platform %s: %w", f.Platform(), err)
			}
		}()
	}

	log.Info().
		Str("competition", c.name).
		Strs("platforms", c.names).
		Msg("competition running")

	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
