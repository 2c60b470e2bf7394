package fop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/fieldofplay/go/internal/fop/events"
)

func TestNewCompetition(t *testing.T) {
	tests := []struct {
		name      string
		platforms []string
		wantErr   error
	}{
		{name: "two platforms", platforms: []string{"A", "B"}},
		{name: "duplicate", platforms: []string{"A", "A"}, wantErr: ErrDuplicatePlatform},
		{name: "none", platforms: nil, wantErr: errors.New("any")},
		{name: "empty name", platforms: []string{""}, wantErr: errors.New("any")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCompetition("Nationals", tt.platforms, DefaultConfig(), newFakeRepo(), clockwork.NewFakeClock())
			if tt.wantErr != nil {
				if err == nil {
					t.Fatal("expected an error")
				}
				if errors.Is(tt.wantErr, ErrDuplicatePlatform) && !errors.Is(err, ErrDuplicatePlatform) {
					t.Errorf("error = %v, want ErrDuplicatePlatform", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewCompetition() failed: %v", err)
			}
			if got := c.PlatformNames(); len(got) != 2 || got[0] != "A" || got[1] != "B" {
				t.Errorf("PlatformNames() = %v", got)
			}
		})
	}
}

func TestCompetitionPlatformsAreIndependent(t *testing.T) {
	g := newGroup(lifter(1, "a", 100))
	c, err := NewCompetition("Nationals", []string{"A", "B"}, DefaultConfig(), newFakeRepo(g), clockwork.NewFakeClock())
	if err != nil {
		t.Fatalf("NewCompetition() failed: %v", err)
	}
	if _, err := c.Platform("C"); !errors.Is(err, ErrUnknownPlatform) {
		t.Errorf("Platform(C) error = %v, want ErrUnknownPlatform", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	a, _ := c.Platform("A")
	b, _ := c.Platform("B")
	reqCtx, reqCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer reqCancel()

	id := g.ID
	if err := a.Do(reqCtx, "console", events.SwitchGroup{GroupID: &id}); err != nil {
		t.Fatalf("SwitchGroup on A failed: %v", err)
	}
	sa, _ := a.Snapshot(reqCtx)
	sb, _ := b.Snapshot(reqCtx)
	if sa.State != StateCurrentAthlete || sb.State != StateInactive {
		t.Errorf("states = %s/%s, want CURRENT_ATHLETE_DISPLAYED/INACTIVE", sa.State, sb.State)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("competition did not stop")
	}
}
