// Package events defines the commands a field of play accepts and the
// notifications it broadcasts to displays.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/fieldofplay/go/internal/fop/breaks"
	"github.com/mcdev12/fieldofplay/go/internal/fop/decision"
	"github.com/mcdev12/fieldofplay/go/internal/fop/liftorder"
)

// NotificationType names a notification broadcast to displays.
type NotificationType string

const (
	TypeLiftingOrderUpdated NotificationType = "LiftingOrderUpdated"
	TypeStartTime           NotificationType = "StartTime"
	TypeStopTime            NotificationType = "StopTime"
	TypeSetTime             NotificationType = "SetTime"
	TypeDecision            NotificationType = "Decision"
	TypeJuryNotification    NotificationType = "JuryNotification"
	TypeNotification        NotificationType = "Notification"
	TypeGroupDone           NotificationType = "GroupDone"
	TypeDownSignal          NotificationType = "DownSignal"
	TypeRefereeVote         NotificationType = "RefereeVote"
	TypeBreakStarted        NotificationType = "BreakStarted"
	TypeBreakPaused         NotificationType = "BreakPaused"
	TypeBreakResumed        NotificationType = "BreakResumed"
	TypeBreakDone           NotificationType = "BreakDone"
)

// Events carried by a Notification of type Notification.
const (
	EventTimeExpired            = "TimeExpired"
	EventDecisionDiscarded      = "DecisionDiscarded"
	EventBarbellOrPlatesChanged = "BarbellOrPlatesChanged"
	EventGroupLoaded            = "GroupLoaded"
	EventGroupUnloaded          = "GroupUnloaded"
	EventDecisionReset          = "DecisionReset"
	EventInternalError          = "InternalError"
)

// Notification is one broadcast message. Origin is the token of the client
// whose command caused it, empty for clock and timer driven notifications.
type Notification struct {
	ID        string           `json:"id"`
	Platform  string           `json:"platform"`
	Type      NotificationType `json:"type"`
	Origin    string           `json:"origin,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Data      any              `json:"data,omitempty"`
}

// NewNotification stamps a payload with a fresh id.
func NewNotification(platform string, typ NotificationType, origin string, at time.Time, data any) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Platform:  platform,
		Type:      typ,
		Origin:    origin,
		Timestamp: at.UTC(),
		Data:      data,
	}
}

// LiftingOrderUpdatedPayload announces the athlete on the platform and the time allowed.
type LiftingOrderUpdatedPayload struct {
	State         string           `json:"state"`
	GroupName     string           `json:"group_name,omitempty"`
	Current       *liftorder.Slot  `json:"current,omitempty"`
	Next          *liftorder.Slot  `json:"next,omitempty"`
	TimeAllowedMs int64            `json:"time_allowed_ms"`
	Order         []liftorder.Slot `json:"order"`
}

// TimePayload is used by StartTime, StopTime and SetTime.
type TimePayload struct {
	Clock           string `json:"clock"`
	TimeRemainingMs int64  `json:"time_remaining_ms"`
}

// DecisionSource tells who produced a ruling.
type DecisionSource string

const (
	SourceReferees DecisionSource = "REFEREES"
	SourceJury     DecisionSource = "JURY"
	SourceAdmin    DecisionSource = "ADMIN"
)

// DecisionPayload is the ruling of one attempt.
type DecisionPayload struct {
	AthleteID     uuid.UUID       `json:"athlete_id"`
	Name          string          `json:"name"`
	AttemptIndex  int             `json:"attempt_index"`
	AttemptNumber int             `json:"attempt_number"`
	Weight        int             `json:"weight"`
	Good          bool            `json:"good"`
	Source        DecisionSource  `json:"source"`
	Votes         []decision.Vote `json:"votes,omitempty"`
}

// JuryEvent tells whether the jury changed a ruling.
type JuryEvent string

const (
	JuryReversed  JuryEvent = "REVERSED"
	JuryConfirmed JuryEvent = "CONFIRMED"
)

type JuryNotificationPayload struct {
	AthleteID    uuid.UUID `json:"athlete_id"`
	Name         string    `json:"name"`
	AttemptIndex int       `json:"attempt_index"`
	Good         bool      `json:"good"`
	Event        JuryEvent `json:"event"`
}

// StatePayload is the body of a generic Notification.
type StatePayload struct {
	State string `json:"state"`
	Event string `json:"event"`
	Info  string `json:"info,omitempty"`
}

type GroupDonePayload struct {
	GroupID   uuid.UUID `json:"group_id"`
	GroupName string    `json:"group_name"`
}

// DownSignalPayload tells the platform lights a majority exists.
type DownSignalPayload struct {
	Good bool `json:"good"`
}

type RefereeVotePayload struct {
	Referee  int `json:"referee"`
	Count    int `json:"count"`
	Required int `json:"required"`
}

// BreakPayload is used by every break notification.
type BreakPayload struct {
	Type        breaks.Type `json:"type"`
	Mode        breaks.Mode `json:"mode"`
	Deadline    *time.Time  `json:"deadline,omitempty"`
	RemainingMs int64       `json:"remaining_ms"`
	Paused      bool        `json:"paused"`
}

// NewBreakPayload converts a scheduler state for the wire.
func NewBreakPayload(s breaks.State) BreakPayload {
	p := BreakPayload{
		Type:        s.Type,
		Mode:        s.Mode,
		RemainingMs: s.Left.Milliseconds(),
		Paused:      s.Paused,
	}
	if !s.Deadline.IsZero() && !s.Paused {
		d := s.Deadline.UTC()
		p.Deadline = &d
	}
	return p
}

// Envelope is a notification as read back from the wire.
type Envelope struct {
	ID        string           `json:"id"`
	Platform  string           `json:"platform"`
	Type      NotificationType `json:"type"`
	Origin    string           `json:"origin,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Data      json.RawMessage  `json:"data,omitempty"`
}

// ParseEnvelope decodes a serialized notification.
func ParseEnvelope(b []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification: %w", err)
	}
	return &env, nil
}

// ParsePayload parses the data of an envelope into the matching payload struct.
// Unknown types yield nil without error.
func ParsePayload(env *Envelope) (any, error) {
	switch env.Type {
	case TypeLiftingOrderUpdated:
		return parse[LiftingOrderUpdatedPayload](env.Data)
	case TypeStartTime, TypeStopTime, TypeSetTime:
		return parse[TimePayload](env.Data)
	case TypeDecision:
		return parse[DecisionPayload](env.Data)
	case TypeJuryNotification:
		return parse[JuryNotificationPayload](env.Data)
	case TypeNotification:
		return parse[StatePayload](env.Data)
	case TypeGroupDone:
		return parse[GroupDonePayload](env.Data)
	case TypeDownSignal:
		return parse[DownSignalPayload](env.Data)
	case TypeRefereeVote:
		return parse[RefereeVotePayload](env.Data)
	case TypeBreakStarted, TypeBreakPaused, TypeBreakResumed, TypeBreakDone:
		return parse[BreakPayload](env.Data)
	default:
		return nil, nil
	}
}

func parse[T any](data json.RawMessage) (any, error) {
	var payload T
	if len(data) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
