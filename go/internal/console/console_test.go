package console

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/mcdev12/fieldofplay/go/internal/fop"
	"github.com/mcdev12/fieldofplay/go/internal/fop/clock"
	"github.com/mcdev12/fieldofplay/go/internal/fop/events"
	"github.com/mcdev12/fieldofplay/go/internal/fop/liftorder"
)

func init() {
	color.NoColor = true
}

func envelope(t *testing.T, typ events.NotificationType, payload any) *events.Envelope {
	t.Helper()
	b, err := json.Marshal(events.NewNotification("A", typ, "", time.Date(2026, 5, 2, 14, 0, 0, 0, time.UTC), payload))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	env, err := events.ParseEnvelope(b)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return env
}

func TestFormatNotification(t *testing.T) {
	tests := []struct {
		name    string
		typ     events.NotificationType
		payload any
		want    []string
	}{
		{
			name: "good lift",
			typ:  events.TypeDecision,
			payload: events.DecisionPayload{
				Name: "NAKAMURA Kenji", AttemptNumber: 2, Weight: 105, Good: true, Source: events.SourceReferees,
			},
			want: []string{"GOOD LIFT", "NAKAMURA Kenji #2 105 kg", "REFEREES"},
		},
		{
			name:    "jury reversal",
			typ:     events.TypeJuryNotification,
			payload: events.JuryNotificationPayload{Name: "OKAFOR Ada", Good: false, Event: events.JuryReversed},
			want:    []string{"jury reversed OKAFOR Ada", "NO LIFT"},
		},
		{
			name:    "clock",
			typ:     events.TypeStartTime,
			payload: events.TimePayload{Clock: "athlete", TimeRemainingMs: 61000},
			want:    []string{"StartTime", "athlete 1:01"},
		},
		{
			name: "lifting order",
			typ:  events.TypeLiftingOrderUpdated,
			payload: events.LiftingOrderUpdatedPayload{
				State:         "CURRENT_ATHLETE_DISPLAYED",
				Current:       &liftorder.Slot{Name: "SILVA Ana", AttemptNumber: 1, Weight: 80},
				Next:          &liftorder.Slot{Name: "LEE Min", Weight: 82},
				TimeAllowedMs: 60000,
			},
			want: []string{"SILVA Ana #1 80 kg", "next LEE Min 82 kg", "[1:00]"},
		},
		{
			name:    "state notification",
			typ:     events.TypeNotification,
			payload: events.StatePayload{State: "INACTIVE", Event: events.EventGroupLoaded, Info: "M81 A"},
			want:    []string{"GroupLoaded M81 A (INACTIVE)"},
		},
		{
			name:    "referee vote",
			typ:     events.TypeRefereeVote,
			payload: events.RefereeVotePayload{Referee: 2, Count: 1, Required: 3},
			want:    []string{"referee 2 voted (1/3)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatNotification(envelope(t, tt.typ, tt.payload))
			if err != nil {
				t.Fatalf("FormatNotification() error = %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("FormatNotification() = %q, missing %q", got, w)
				}
			}
		})
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		typ     string
		data    string
		want    events.Command
		wantErr bool
	}{
		{name: "no data", typ: "TimeStarted", want: events.TimeStarted{}},
		{name: "with data", typ: "ForceTime", data: `{"millis":60000}`, want: events.ForceTime{Millis: 60000}},
		{name: "referee", typ: "RefereeDecision", data: `{"referee":3,"good":false}`, want: events.RefereeDecision{Referee: 3}},
		{name: "unknown", typ: "Jump", wantErr: true},
		{name: "bad json", typ: "ForceTime", data: `{millis}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.typ, tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCommand() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseCommand() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		server  string
		want    string
		wantErr bool
	}{
		{server: "http://localhost:8080", want: "ws://localhost:8080/ws/platforms/Main%20Hall?role=display"},
		{server: "https://fop.example.org/", want: "wss://fop.example.org/ws/platforms/Main%20Hall?role=display"},
		{server: "ftp://fop.example.org", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.server, func(t *testing.T) {
			got, err := websocketURL(tt.server, "Main Hall", "display")
			if (err != nil) != tt.wantErr {
				t.Fatalf("websocketURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("websocketURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatSnapshot(t *testing.T) {
	s := &fop.Snapshot{
		Platform:     "A",
		State:        fop.StateTimeRunning,
		GroupName:    "W59 B",
		Current:      &liftorder.Slot{Name: "SILVA Ana", AttemptNumber: 3, Weight: 84},
		AthleteClock: fop.ClockSnapshot{State: clock.StateRunning, RemainingMs: 42000},
	}
	got := FormatSnapshot(s)
	for _, w := range []string{"platform A", "TIME_RUNNING", "group W59 B", "SILVA Ana #3 84 kg", "[0:42]"} {
		if !strings.Contains(got, w) {
			t.Errorf("FormatSnapshot() = %q, missing %q", got, w)
		}
	}
}
