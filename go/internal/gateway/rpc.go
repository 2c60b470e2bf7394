package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/mcdev12/fieldofplay/go/internal/fop/events"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// FieldOfPlayServiceName is the fully-qualified name of the RPC service.
	FieldOfPlayServiceName = "fop.v1.FieldOfPlayService"

	// FieldOfPlayServiceSubmitProcedure runs one command on a platform.
	FieldOfPlayServiceSubmitProcedure = "/fop.v1.FieldOfPlayService/Submit"
	// FieldOfPlayServiceGetStateProcedure returns the snapshot of a platform.
	FieldOfPlayServiceGetStateProcedure = "/fop.v1.FieldOfPlayService/GetState"
)

// RPCService exposes the field of play over Connect, gRPC and gRPC-Web.
// Messages are google.protobuf.Struct documents shaped like the JSON API.
type RPCService struct {
	platforms Platforms
	timeout   time.Duration
}

// NewRPCService creates the RPC service
func NewRPCService(platforms Platforms, timeout time.Duration) *RPCService {
	return &RPCService{platforms: platforms, timeout: timeout}
}

// Handler returns the path prefix and the handler serving every procedure.
func (s *RPCService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	submit := connect.NewUnaryHandler(FieldOfPlayServiceSubmitProcedure, s.Submit, opts...)
	getState := connect.NewUnaryHandler(FieldOfPlayServiceGetStateProcedure, s.GetState, opts...)
	return "/" + FieldOfPlayServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case FieldOfPlayServiceSubmitProcedure:
			submit.ServeHTTP(w, r)
		case FieldOfPlayServiceGetStateProcedure:
			getState.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// Submit decodes a command envelope and runs it to completion.
func (s *RPCService) Submit(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var env events.CommandEnvelope
	if err := fromStruct(req.Msg, &env); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%w: %w", ErrBadCommand, err))
	}
	f, err := s.platforms.Platform(env.Platform)
	if err != nil {
		return nil, connect.NewError(codeFor(err), err)
	}
	cmd, err := decodeCommand(&env)
	if err != nil {
		return nil, connect.NewError(codeFor(err), err)
	}

	origin := req.Header().Get(OriginHeader)
	if origin == "" {
		origin = env.Origin
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := f.Do(ctx, origin, cmd); err != nil {
		log.Debug().
			Err(err).
			Str("platform", env.Platform).
			Str("command", string(env.Type)).
			Msg("rpc command rejected")
		return nil, connect.NewError(codeFor(err), err)
	}

	out, err := toStruct(CommandResult{Command: env.Type, OK: true})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

// GetState returns the snapshot of the platform named in the request.
func (s *RPCService) GetState(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	platform := req.Msg.GetFields()["platform"].GetStringValue()
	f, err := s.platforms.Platform(platform)
	if err != nil {
		return nil, connect.NewError(codeFor(err), err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	snap, err := f.Snapshot(ctx)
	if err != nil {
		return nil, connect.NewError(codeFor(err), err)
	}

	out, err := toStruct(snap)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

// RPCClient calls the RPC service of a running server.
type RPCClient struct {
	submit   *connect.Client[structpb.Struct, structpb.Struct]
	getState *connect.Client[structpb.Struct, structpb.Struct]
	origin   string
}

// NewRPCClient creates a client for the server at baseURL. Commands are sent
// with origin as their origin token.
func NewRPCClient(httpClient connect.HTTPClient, baseURL, origin string, opts ...connect.ClientOption) *RPCClient {
	baseURL = strings.TrimRight(baseURL, "/")
	return &RPCClient{
		submit:   connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+FieldOfPlayServiceSubmitProcedure, opts...),
		getState: connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+FieldOfPlayServiceGetStateProcedure, opts...),
		origin:   origin,
	}
}

// Submit sends a command to a platform.
func (c *RPCClient) Submit(ctx context.Context, platform string, cmd events.Command) error {
	env, err := events.EncodeCommand(platform, c.origin, cmd)
	if err != nil {
		return err
	}
	msg, err := toStruct(env)
	if err != nil {
		return err
	}
	req := connect.NewRequest(msg)
	if c.origin != "" {
		req.Header().Set(OriginHeader, c.origin)
	}
	_, err = c.submit.CallUnary(ctx, req)
	return err
}

// State returns the raw JSON snapshot of a platform.
func (c *RPCClient) State(ctx context.Context, platform string) (json.RawMessage, error) {
	msg, err := structpb.NewStruct(map[string]any{"platform": platform})
	if err != nil {
		return nil, err
	}
	res, err := c.getState.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(res.Msg)
}

func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	var out structpb.Struct
	if err := protojson.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("failed to convert message: %w", err)
	}
	return &out, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	b, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
