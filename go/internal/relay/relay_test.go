package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/fieldofplay/go/internal/fop"
	"github.com/mcdev12/fieldofplay/go/internal/fop/events"
	"github.com/mcdev12/fieldofplay/go/internal/models"
	"github.com/mcdev12/fieldofplay/go/internal/roster"
)

type published struct {
	subject string
	msgID   string
	header  map[string]string
	data    []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *fakePublisher) Publish(_ context.Context, subject, msgID string, header map[string]string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{subject: subject, msgID: msgID, header: header, data: data})
	return nil
}

func (p *fakePublisher) find(subject string) (published, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.msgs {
		if m.subject == subject {
			return m, true
		}
	}
	return published{}, false
}

func TestSubjects(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "event", got: EventSubject("fop.events", "A", events.TypeDecision), want: "fop.events.A.Decision"},
		{name: "event with spaces", got: EventSubject("fop.events", "Main Hall", events.TypeGroupDone), want: "fop.events.Main_Hall.GroupDone"},
		{name: "command with dots", got: CommandSubject("fop.commands", "hall.1"), want: "fop.commands.hall_1"},
		{name: "wildcards", got: SubjectToken("a*b>"), want: "a_b_"},
		{name: "empty platform", got: SubjectToken(""), want: "_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestPlatformToken(t *testing.T) {
	tests := []struct {
		subject string
		want    string
		ok      bool
	}{
		{subject: "fop.commands.A", want: "A", ok: true},
		{subject: "fop.commands.A.extra", ok: false},
		{subject: "fop.commands.", ok: false},
		{subject: "fop.events.A", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			got, ok := platformToken("fop.commands", tt.subject)
			if got != tt.want || ok != tt.ok {
				t.Errorf("platformToken() = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func setup(t *testing.T) (*fop.Competition, *models.Group) {
	t.Helper()
	store := roster.NewMemory()
	g := &models.Group{
		Name:     "W59 B",
		Platform: "Main Hall",
		Athletes: []*models.Athlete{
			{LotNumber: 4, LastName: "Silva", FirstName: "Ana", EntryTotal: 180, Attempts: [models.TotalAttempts]models.Attempt{{Declaration: 80}}},
		},
	}
	if err := roster.NewApp(store).ImportGroup(context.Background(), g); err != nil {
		t.Fatalf("import group: %v", err)
	}

	cfg := fop.DefaultConfig()
	cfg.TickInterval = 24 * time.Hour
	comp, err := fop.NewCompetition("Test Open", []string{"Main Hall"}, cfg, store, clockwork.NewFakeClock())
	if err != nil {
		t.Fatalf("new competition: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = comp.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return comp, g
}

func TestRelayPublishesNotifications(t *testing.T) {
	comp, g := setup(t)
	pub := &fakePublisher{}
	r := New(comp, pub, DefaultJetStreamConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	f, _ := comp.Platform("Main Hall")
	// Let the relay subscribe before the first notification.
	deadline := time.Now().Add(2 * time.Second)
	for f.Bus().Stats().Subscribers == 0 {
		if time.Now().After(deadline) {
			t.Fatal("relay never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	id := g.ID
	if err := f.Do(ctx, "console", events.SwitchGroup{GroupID: &id}); err != nil {
		t.Fatalf("SwitchGroup: %v", err)
	}

	want := "fop.events.Main_Hall.LiftingOrderUpdated"
	for {
		if m, ok := pub.find(want); ok {
			if m.msgID == "" {
				t.Error("message id is empty")
			}
			if m.header["Platform"] != "Main Hall" {
				t.Errorf("Platform header = %q", m.header["Platform"])
			}
			if !strings.Contains(string(m.data), "SILVA Ana") {
				t.Errorf("payload does not name the athlete: %s", m.data)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("no message on %s", want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandleCommand(t *testing.T) {
	comp, g := setup(t)
	r := New(comp, &fakePublisher{}, DefaultJetStreamConfig())
	ctx := context.Background()

	tests := []struct {
		name    string
		subject string
		data    string
		wantErr error
	}{
		{name: "unknown platform", subject: "fop.commands.Z", data: `{"type":"StartLifting"}`, wantErr: ErrUnroutable},
		{name: "wrong prefix", subject: "fop.events.Main_Hall", data: `{"type":"StartLifting"}`, wantErr: ErrUnroutable},
		{name: "bad json", subject: "fop.commands.Main_Hall", data: `{`, wantErr: ErrMalformedCmd},
		{name: "unknown command", subject: "fop.commands.Main_Hall", data: `{"type":"Jump"}`, wantErr: ErrMalformedCmd},
		{name: "other platform", subject: "fop.commands.Main_Hall", data: `{"type":"StartLifting","platform":"B"}`, wantErr: ErrMalformedCmd},
		{name: "refused by field of play", subject: "fop.commands.Main_Hall", data: `{"type":"StartLifting"}`},
		{name: "switch group", subject: "fop.commands.Main_Hall", data: fmt.Sprintf(`{"type":"SwitchGroup","data":{"group_id":%q}}`, g.ID)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.HandleCommand(ctx, tt.subject, []byte(tt.data))
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("HandleCommand() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("HandleCommand() error = %v, want %v", err, tt.wantErr)
			}
			if IsRetryable(err) {
				t.Errorf("%v should not be retried", err)
			}
		})
	}

	f, _ := comp.Platform("Main Hall")
	snap, err := f.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.State != fop.StateCurrentAthlete || snap.GroupName != g.Name {
		t.Errorf("state = %s group = %q, want %s %q", snap.State, snap.GroupName, fop.StateCurrentAthlete, g.Name)
	}
}
