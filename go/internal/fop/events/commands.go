package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/fieldofplay/go/internal/fop/breaks"
)

// CommandType names a command accepted by a field of play.
type CommandType string

const (
	CommandSwitchGroup            CommandType = "SwitchGroup"
	CommandStartLifting           CommandType = "StartLifting"
	CommandTimeStarted            CommandType = "TimeStarted"
	CommandTimeStopped            CommandType = "TimeStopped"
	CommandForceTime              CommandType = "ForceTime"
	CommandExplicitDecision       CommandType = "ExplicitDecision"
	CommandJuryDecision           CommandType = "JuryDecision"
	CommandBreakStarted           CommandType = "BreakStarted"
	CommandBreakPaused            CommandType = "BreakPaused"
	CommandBreakResumed           CommandType = "BreakResumed"
	CommandBarbellOrPlatesChanged CommandType = "BarbellOrPlatesChanged"
	CommandRefereeDecision        CommandType = "RefereeDecision"
	CommandDecisionReset          CommandType = "DecisionReset"
	CommandWeightChange           CommandType = "WeightChange"
)

var ErrUnknownCommand = errors.New("unknown command type")

// Command is one input of the field of play state machine.
type Command interface {
	CommandType() CommandType
}

// SwitchGroup loads a group, or unloads the current one when GroupID is nil.
type SwitchGroup struct {
	GroupID *uuid.UUID `json:"group_id,omitempty"`
}

type StartLifting struct{}

type TimeStarted struct{}

type TimeStopped struct{}

// ForceTime sets the athlete clock, typically to 1:00 or 2:00.
type ForceTime struct {
	Millis int64 `json:"millis"`
}

// ExplicitDecision is an administrator ruling that bypasses the referees.
type ExplicitDecision struct {
	AthleteID uuid.UUID `json:"athlete_id"`
	Good      bool      `json:"good"`
}

// JuryDecision replaces the referees' ruling of the athlete's last attempt.
type JuryDecision struct {
	AthleteID uuid.UUID `json:"athlete_id"`
	Good      bool      `json:"good"`
}

// BreakStarted starts a break. DurationMs is read for DURATION, Target for TARGET.
// A TARGET break without Target ends at the next rounding step.
type BreakStarted struct {
	Type       breaks.Type `json:"type"`
	Mode       breaks.Mode `json:"mode"`
	DurationMs int64       `json:"duration_ms,omitempty"`
	Target     *time.Time  `json:"target,omitempty"`
}

type BreakPaused struct{}

type BreakResumed struct{}

type BarbellOrPlatesChanged struct{}

// RefereeDecision is one referee's light. Referee is 1-based.
type RefereeDecision struct {
	Referee int  `json:"referee"`
	Good    bool `json:"good"`
}

// DecisionReset clears the referee lights of the current attempt.
type DecisionReset struct{}

// WeightChange declares or changes the next attempt of an athlete.
type WeightChange struct {
	AthleteID uuid.UUID `json:"athlete_id"`
	Weight    int       `json:"weight"`
}

func (SwitchGroup) CommandType() CommandType            { return CommandSwitchGroup }
func (StartLifting) CommandType() CommandType           { return CommandStartLifting }
func (TimeStarted) CommandType() CommandType            { return CommandTimeStarted }
func (TimeStopped) CommandType() CommandType            { return CommandTimeStopped }
func (ForceTime) CommandType() CommandType              { return CommandForceTime }
func (ExplicitDecision) CommandType() CommandType       { return CommandExplicitDecision }
func (JuryDecision) CommandType() CommandType           { return CommandJuryDecision }
func (BreakStarted) CommandType() CommandType           { return CommandBreakStarted }
func (BreakPaused) CommandType() CommandType            { return CommandBreakPaused }
func (BreakResumed) CommandType() CommandType           { return CommandBreakResumed }
func (BarbellOrPlatesChanged) CommandType() CommandType { return CommandBarbellOrPlatesChanged }
func (RefereeDecision) CommandType() CommandType        { return CommandRefereeDecision }
func (DecisionReset) CommandType() CommandType          { return CommandDecisionReset }
func (WeightChange) CommandType() CommandType           { return CommandWeightChange }

// CommandEnvelope is the wire form of a command sent by a client.
type CommandEnvelope struct {
	Type     CommandType     `json:"type"`
	Platform string          `json:"platform,omitempty"`
	Origin   string          `json:"origin,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// EncodeCommand wraps a command for the wire.
func EncodeCommand(platform, origin string, cmd Command) (*CommandEnvelope, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", cmd.CommandType(), err)
	}
	return &CommandEnvelope{
		Type:     cmd.CommandType(),
		Platform: platform,
		Origin:   origin,
		Data:     data,
	}, nil
}

// DecodeCommand parses the payload of an envelope into its command struct.
func DecodeCommand(env *CommandEnvelope) (Command, error) {
	switch env.Type {
	case CommandSwitchGroup:
		return decodeInto[SwitchGroup](env)
	case CommandStartLifting:
		return StartLifting{}, nil
	case CommandTimeStarted:
		return TimeStarted{}, nil
	case CommandTimeStopped:
		return TimeStopped{}, nil
	case CommandForceTime:
		return decodeInto[ForceTime](env)
	case CommandExplicitDecision:
		return decodeInto[ExplicitDecision](env)
	case CommandJuryDecision:
		return decodeInto[JuryDecision](env)
	case CommandBreakStarted:
		return decodeInto[BreakStarted](env)
	case CommandBreakPaused:
		return BreakPaused{}, nil
	case CommandBreakResumed:
		return BreakResumed{}, nil
	case CommandBarbellOrPlatesChanged:
		return BarbellOrPlatesChanged{}, nil
	case CommandRefereeDecision:
		return decodeInto[RefereeDecision](env)
	case CommandDecisionReset:
		return DecisionReset{}, nil
	case CommandWeightChange:
		return decodeInto[WeightChange](env)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, env.Type)
	}
}

func decodeInto[T Command](env *CommandEnvelope) (Command, error) {
	var cmd T
	if len(env.Data) == 0 {
		return cmd, nil
	}
	if err := json.Unmarshal(env.Data, &cmd); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", env.Type, err)
	}
	return cmd, nil
}
