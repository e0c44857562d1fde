// Package event defines the records exchanged over a whiteboard connection.
// A Record is an action-specific Payload plus the participant it originates from.
package event

import (
	"encoding/json"

	"whiteboard/domain"

	"github.com/samber/lo"
)

type Action string

const (
	ActionDraw             Action = "DRAW"
	ActionChat             Action = "CHAT"
	ActionSystemChat       Action = "SYSTEM_CHAT"
	ActionJoinRequest      Action = "NEW_USER_PERMISSION"
	ActionJoinAccept       Action = "NEW_USER_ACCEPT"
	ActionJoinReject       Action = "NEW_USER_REJECT"
	ActionKick             Action = "USER_KICK"
	ActionOwnerAssign      Action = "ASSIGN_MANAGER"
	ActionParticipantAdded Action = "NEW_USER_ADDED"
	ActionExit             Action = "EXIT"
	ActionRosterRefresh    Action = "REFRESH_USER_LIST"
	ActionLoadImage        Action = "LOAD_IMAGE"
	ActionClear            Action = "CLEAR"
	ActionForceQuit        Action = "FORCE_QUIT"
)

// Payload is implemented by one type per action.
type Payload interface {
	Action() Action
}

// Record is the unit written on the wire, one per line.
type Record struct {
	From    *ParticipantRef
	Payload Payload

	// data holds the inbound bytes of a pass-through payload. When set it is
	// written back as is, fields unknown to Payload included.
	data json.RawMessage
}

func NewRecord(from *ParticipantRef, payload Payload) Record {
	return Record{From: from, Payload: payload}
}

func (r Record) Action() Action {
	if r.Payload == nil {
		return ""
	}
	return r.Payload.Action()
}

// WithOrigin returns a copy of the record stamped with the given originator.
func (r Record) WithOrigin(p domain.Participant) Record {
	r.From = lo.ToPtr(RefOf(p))
	return r
}

// ParticipantRef is the wire form of a participant. The outbound
// connection of a participant is never serialized.
type ParticipantRef struct {
	ID   domain.ParticipantID `json:"id" validate:"gte=0"`
	Name string               `json:"name" validate:"max=64"`
	Role domain.Role          `json:"role,omitempty"`
}

func RefOf(p domain.Participant) ParticipantRef {
	return ParticipantRef{ID: p.ID, Name: p.Name, Role: p.Role}
}

func RosterRefs(roster domain.Roster) []ParticipantRef {
	return lo.Map(roster, func(p domain.Participant, _ int) ParticipantRef {
		return RefOf(p)
	})
}

// IsUrgent reports whether the action is relayed verbatim to every other
// admitted participant without further processing.
func IsUrgent(a Action) bool {
	switch a {
	case ActionDraw, ActionChat, ActionSystemChat, ActionClear:
		return true
	default:
		return false
	}
}

// IsPassThrough reports whether the payload of the action is relayed as
// received, without being re-encoded.
func IsPassThrough(a Action) bool {
	return IsUrgent(a) || a == ActionLoadImage
}

// IsServerOnly reports whether the action is only ever emitted by the server.
func IsServerOnly(a Action) bool {
	switch a {
	case ActionOwnerAssign, ActionParticipantAdded, ActionRosterRefresh, ActionForceQuit:
		return true
	default:
		return false
	}
}
