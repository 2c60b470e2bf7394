package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mcdev12/fieldofplay/go/internal/fop"
	"github.com/mcdev12/fieldofplay/go/internal/fop/events"
	"github.com/rs/zerolog/log"
)

// OriginHeader carries the origin token of REST clients that also hold a
// WebSocket, so they are not sent their own notifications.
const OriginHeader = "X-Origin-Token"

// PlatformSummary is one entry of GET /api/platforms.
type PlatformSummary struct {
	Name        string    `json:"name"`
	State       fop.State `json:"state"`
	GroupName   string    `json:"group_name,omitempty"`
	Current     string    `json:"current,omitempty"`
	Subscribers int       `json:"subscribers"`
}

// StateHandler serves platform state and accepts commands over plain HTTP.
type StateHandler struct {
	platforms Platforms
	timeout   time.Duration
}

// NewStateHandler creates a new state handler
func NewStateHandler(platforms Platforms, timeout time.Duration) *StateHandler {
	return &StateHandler{
		platforms: platforms,
		timeout:   timeout,
	}
}

// HandleGetPlatformState handles GET /api/platforms/{name}/state
func (h *StateHandler) HandleGetPlatformState(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	f, err := h.platforms.Platform(name)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	snap, err := f.Snapshot(ctx)
	if err != nil {
		log.Error().Err(err).Str("platform", name).Msg("failed to get platform state")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleListPlatforms handles GET /api/platforms
func (h *StateHandler) HandleListPlatforms(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := h.platforms.PlatformNames()
	out := make([]PlatformSummary, 0, len(names))
	for _, name := range names {
		f, err := h.platforms.Platform(name)
		if err != nil {
			continue
		}
		snap, err := f.Snapshot(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		s := PlatformSummary{
			Name:        name,
			State:       snap.State,
			GroupName:   snap.GroupName,
			Subscribers: f.Bus().Stats().Subscribers,
		}
		if snap.Current != nil {
			s.Current = snap.Current.Name
		}
		out = append(out, s)
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleSubmitCommand handles POST /api/platforms/{name}/commands
func (h *StateHandler) HandleSubmitCommand(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	f, err := h.platforms.Platform(name)
	if err != nil {
		writeError(w, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		writeError(w, fmt.Errorf("%w: %w", ErrBadCommand, err))
		return
	}
	var env events.CommandEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		writeError(w, fmt.Errorf("%w: %w", ErrBadCommand, err))
		return
	}
	cmd, err := decodeCommand(&env)
	if err != nil {
		writeError(w, err)
		return
	}

	origin := r.Header.Get(OriginHeader)
	if origin == "" {
		origin = env.Origin
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	if err := f.Do(ctx, origin, cmd); err != nil {
		writeJSON(w, statusFor(err), CommandResult{Command: env.Type, Code: codeFor(err).String(), Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, CommandResult{Command: env.Type, OK: true})
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/platforms", h.HandleListPlatforms)
	mux.HandleFunc("GET /api/platforms/{name}/state", h.HandleGetPlatformState)
	mux.HandleFunc("POST /api/platforms/{name}/commands", h.HandleSubmitCommand)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), CommandResult{Code: codeFor(err).String(), Error: err.Error()})
}
