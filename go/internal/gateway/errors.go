package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"github.com/mcdev12/fieldofplay/go/internal/fop"
	"github.com/mcdev12/fieldofplay/go/internal/fop/events"
	"github.com/mcdev12/fieldofplay/go/internal/roster"
)

var (
	ErrBadCommand = errors.New("malformed command")
	ErrForbidden  = errors.New("command not allowed")
)

func decodeCommand(env *events.CommandEnvelope) (events.Command, error) {
	cmd, err := events.DecodeCommand(env)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadCommand, err)
	}
	return cmd, nil
}

// codeFor maps engine errors to Connect codes.
func codeFor(err error) connect.Code {
	switch {
	case errors.Is(err, fop.ErrUnknownPlatform), errors.Is(err, roster.ErrGroupNotFound):
		return connect.CodeNotFound
	case errors.Is(err, fop.ErrInvalidTransition), errors.Is(err, fop.ErrNotCurrentAthlete):
		return connect.CodeFailedPrecondition
	case errors.Is(err, ErrBadCommand), errors.Is(err, fop.ErrInvalidArgument),
		errors.Is(err, fop.ErrUnknownAthlete), errors.Is(err, events.ErrUnknownCommand):
		return connect.CodeInvalidArgument
	case errors.Is(err, ErrForbidden):
		return connect.CodePermissionDenied
	case errors.Is(err, fop.ErrStopped):
		return connect.CodeUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return connect.CodeDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return connect.CodeCanceled
	default:
		return connect.CodeInternal
	}
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch codeFor(err) {
	case connect.CodeNotFound:
		return http.StatusNotFound
	case connect.CodeFailedPrecondition:
		return http.StatusConflict
	case connect.CodeInvalidArgument:
		return http.StatusBadRequest
	case connect.CodePermissionDenied:
		return http.StatusForbidden
	case connect.CodeUnavailable:
		return http.StatusServiceUnavailable
	case connect.CodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	case connect.CodeCanceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}
