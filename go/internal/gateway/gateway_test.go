package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/fieldofplay/go/internal/fop"
	"github.com/mcdev12/fieldofplay/go/internal/fop/events"
	"github.com/mcdev12/fieldofplay/go/internal/models"
	"github.com/mcdev12/fieldofplay/go/internal/roster"
)

type testEnv struct {
	srv   *httptest.Server
	group *models.Group
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	store := roster.NewMemory()
	g := &models.Group{
		Name:     "M81 A",
		Platform: "A",
		Athletes: []*models.Athlete{
			{LotNumber: 1, LastName: "Nakamura", EntryTotal: 240, Attempts: [models.TotalAttempts]models.Attempt{{Declaration: 100}}},
			{LotNumber: 2, LastName: "Okafor", EntryTotal: 250, Attempts: [models.TotalAttempts]models.Attempt{{Declaration: 105}}},
		},
	}
	if err := roster.NewApp(store).ImportGroup(ctx, g); err != nil {
		t.Fatalf("import group: %v", err)
	}

	cfg := fop.DefaultConfig()
	cfg.TickInterval = 24 * time.Hour
	comp, err := fop.NewCompetition("Test Open", []string{"A"}, cfg, store, clockwork.NewFakeClock())
	if err != nil {
		t.Fatalf("new competition: %v", err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		_ = comp.Run(runCtx)
		close(done)
	}()

	svc := NewService(DefaultConfig(), comp)
	srv := httptest.NewServer(svc.Handler())
	t.Cleanup(func() {
		svc.Stop()
		srv.Close()
		cancel()
		<-done
	})
	return &testEnv{srv: srv, group: g}
}

func (e *testEnv) post(t *testing.T, platform, body string) (*http.Response, CommandResult) {
	t.Helper()
	resp, err := http.Post(e.srv.URL+"/api/platforms/"+platform+"/commands", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post command: %v", err)
	}
	defer resp.Body.Close()
	var res CommandResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return resp, res
}

func (e *testEnv) switchGroupBody() string {
	return fmt.Sprintf(`{"type":"SwitchGroup","data":{"group_id":%q}}`, e.group.ID)
}

func (e *testEnv) dial(t *testing.T, platform, role string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws/platforms/" + platform + "?role=" + role
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type wireMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readUntil(t *testing.T, conn *websocket.Conn, typ string) wireMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		var m wireMessage
		if err := json.Unmarshal(b, &m); err != nil {
			t.Fatalf("decode message: %v", err)
		}
		if m.Type == typ {
			return m
		}
	}
}

func TestStateHandler(t *testing.T) {
	env := setup(t)

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{name: "known platform", path: "/api/platforms/A/state", wantStatus: http.StatusOK},
		{name: "unknown platform", path: "/api/platforms/Z/state", wantStatus: http.StatusNotFound},
		{name: "platform list", path: "/api/platforms", wantStatus: http.StatusOK},
		{name: "health", path: "/health", wantStatus: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(env.srv.URL + tt.path)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestSubmitCommandStatus(t *testing.T) {
	env := setup(t)

	tests := []struct {
		name       string
		platform   string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "start lifting while inactive", platform: "A", body: `{"type":"StartLifting"}`, wantStatus: http.StatusConflict, wantCode: "failed_precondition"},
		{name: "malformed json", platform: "A", body: `{"type":`, wantStatus: http.StatusBadRequest, wantCode: "invalid_argument"},
		{name: "unknown command", platform: "A", body: `{"type":"Jump"}`, wantStatus: http.StatusBadRequest, wantCode: "invalid_argument"},
		{name: "unknown group", platform: "A", body: fmt.Sprintf(`{"type":"SwitchGroup","data":{"group_id":%q}}`, uuid.New()), wantStatus: http.StatusNotFound, wantCode: "not_found"},
		{name: "unknown platform", platform: "Z", body: `{"type":"StartLifting"}`, wantStatus: http.StatusNotFound, wantCode: "not_found"},
		{name: "switch group", platform: "A", body: env.switchGroupBody(), wantStatus: http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, res := env.post(t, tt.platform, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", resp.StatusCode, tt.wantStatus, res.Error)
			}
			if res.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", res.Code, tt.wantCode)
			}
		})
	}

	resp, err := http.Get(env.srv.URL + "/api/platforms/A/state")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	defer resp.Body.Close()
	var snap fop.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.State != fop.StateCurrentAthlete {
		t.Errorf("state = %s, want %s", snap.State, fop.StateCurrentAthlete)
	}
	if snap.Current == nil || snap.Current.Name == "" || snap.Current.Weight != 100 {
		t.Errorf("current = %+v, want the 100 kg lifter", snap.Current)
	}
}

func TestWebSocketDisplayAndConsole(t *testing.T) {
	env := setup(t)

	display := env.dial(t, "A", "display")
	first := readUntil(t, display, MessageSnapshot)
	var snap fop.Snapshot
	if err := json.Unmarshal(first.Data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.State != fop.StateInactive {
		t.Errorf("initial state = %s, want %s", snap.State, fop.StateInactive)
	}

	console := env.dial(t, "A", "console")
	readUntil(t, console, MessageSnapshot)
	if err := console.WriteMessage(websocket.TextMessage, []byte(env.switchGroupBody())); err != nil {
		t.Fatalf("write command: %v", err)
	}
	msg := readUntil(t, console, MessageCommandResult)
	var res CommandResult
	if err := json.Unmarshal(msg.Data, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !res.OK {
		t.Fatalf("SwitchGroup result = %+v, want ok", res)
	}

	lou := readUntil(t, display, string(events.TypeLiftingOrderUpdated))
	var payload events.LiftingOrderUpdatedPayload
	if err := json.Unmarshal(lou.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Current == nil || payload.Current.Weight != 100 {
		t.Errorf("current = %+v, want the 100 kg lifter", payload.Current)
	}
}

func TestWebSocketRolesRestrictCommands(t *testing.T) {
	env := setup(t)

	tests := []struct {
		role     string
		body     string
		wantCode string
	}{
		{role: "display", body: `{"type":"StartLifting"}`, wantCode: "permission_denied"},
		{role: "referee", body: `{"type":"TimeStarted"}`, wantCode: "permission_denied"},
		{role: "referee", body: `{"type":"RefereeDecision","data":{"referee":1,"good":true}}`, wantCode: "failed_precondition"},
		{role: "console", body: `not json`, wantCode: "invalid_argument"},
	}
	for _, tt := range tests {
		t.Run(tt.role+" "+tt.body, func(t *testing.T) {
			conn := env.dial(t, "A", tt.role)
			readUntil(t, conn, MessageSnapshot)
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.body)); err != nil {
				t.Fatalf("write: %v", err)
			}
			msg := readUntil(t, conn, MessageCommandResult)
			var res CommandResult
			if err := json.Unmarshal(msg.Data, &res); err != nil {
				t.Fatalf("decode result: %v", err)
			}
			if res.OK || res.Code != tt.wantCode {
				t.Errorf("result = %+v, want code %q", res, tt.wantCode)
			}
		})
	}
}

func TestWebSocketUnknownPlatform(t *testing.T) {
	env := setup(t)
	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws/platforms/Z"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial succeeded for unknown platform")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("response = %v, want 404", resp)
	}
}

func TestRPCSubmitAndGetState(t *testing.T) {
	env := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	client := NewRPCClient(env.srv.Client(), env.srv.URL, "rpc-test")

	err := client.Submit(ctx, "A", events.StartLifting{})
	if got := connect.CodeOf(err); got != connect.CodeFailedPrecondition {
		t.Errorf("StartLifting code = %v, want %v", got, connect.CodeFailedPrecondition)
	}
	if got := connect.CodeOf(client.Submit(ctx, "Z", events.StartLifting{})); got != connect.CodeNotFound {
		t.Errorf("unknown platform code = %v, want %v", got, connect.CodeNotFound)
	}

	id := env.group.ID
	if err := client.Submit(ctx, "A", events.SwitchGroup{GroupID: &id}); err != nil {
		t.Fatalf("SwitchGroup: %v", err)
	}
	if err := client.Submit(ctx, "A", events.ForceTime{Millis: 30000}); err != nil {
		t.Fatalf("ForceTime: %v", err)
	}

	raw, err := client.State(ctx, "A")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	var snap fop.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.State != fop.StateCurrentAthlete {
		t.Errorf("state = %s, want %s", snap.State, fop.StateCurrentAthlete)
	}
	if snap.AthleteClock.RemainingMs != 30000 {
		t.Errorf("remaining = %d, want 30000", snap.AthleteClock.RemainingMs)
	}
	if !bytes.Contains(raw, []byte(env.group.Name)) {
		t.Errorf("snapshot does not name group %q", env.group.Name)
	}
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "wildcard", allowed: []string{"*"}, origin: "http://scoreboard.local", want: true},
		{name: "listed", allowed: []string{"http://scoreboard.local"}, origin: "http://scoreboard.local", want: true},
		{name: "not listed", allowed: []string{"http://scoreboard.local"}, origin: "http://evil.example", want: false},
		{name: "no origin header", allowed: []string{"http://scoreboard.local"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws/platforms/A", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := checkOrigin(tt.allowed)(r); got != tt.want {
				t.Errorf("checkOrigin() = %v, want %v", got, tt.want)
			}
		})
	}
}
