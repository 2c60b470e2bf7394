package gateway

import (
	"time"

	"github.com/mcdev12/fieldofplay/go/internal/fop/events"
)

// Message types sent to a single connection, next to the broadcast notifications.
const (
	MessageSnapshot      = "Snapshot"
	MessageCommandResult = "CommandResult"
)

// ServerMessage is a reply addressed to one client.
type ServerMessage struct {
	Type      string    `json:"type"`
	Platform  string    `json:"platform"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// CommandResult tells a client whether its command was applied.
type CommandResult struct {
	Command events.CommandType `json:"command,omitempty"`
	OK      bool               `json:"ok"`
	Code    string             `json:"code,omitempty"`
	Error   string             `json:"error,omitempty"`
}

func newServerMessage(typ, platform string, data any) ServerMessage {
	return ServerMessage{
		Type:      typ,
		Platform:  platform,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

func commandResult(platform string, cmd events.CommandType, err error) ServerMessage {
	res := CommandResult{Command: cmd, OK: err == nil}
	if err != nil {
		res.Code = codeFor(err).String()
		res.Error = err.Error()
	}
	return newServerMessage(MessageCommandResult, platform, res)
}
