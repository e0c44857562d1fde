package event

import (
	"bytes"
	"encoding/json"
	"fmt"

	"whiteboard/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// envelope is the JSON shape of one line: the action tag, the originator and
// the action-specific fields nested under data.
type envelope struct {
	Action Action          `json:"action"`
	From   *ParticipantRef `json:"from,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type decoder func(data []byte) (Payload, error)

var decoders = map[Action]decoder{
	ActionDraw:             decodeAs[Draw],
	ActionChat:             decodeAs[Chat],
	ActionSystemChat:       decodeAs[SystemChat],
	ActionJoinRequest:      decodeAs[JoinRequest],
	ActionJoinAccept:       decodeAs[JoinAccept],
	ActionJoinReject:       decodeAs[JoinReject],
	ActionKick:             decodeAs[Kick],
	ActionOwnerAssign:      decodeAs[OwnerAssign],
	ActionParticipantAdded: decodeAs[ParticipantAdded],
	ActionRosterRefresh:    decodeAs[RosterRefresh],
	ActionLoadImage:        decodeAs[LoadImage],
	ActionClear:            decodeAs[Clear],
	ActionExit:             decodeAs[Exit],
	ActionForceQuit:        decodeAs[ForceQuit],
}

var emptyObject = []byte("{}")

// Marshal encodes a record as a single line of JSON, without the trailing newline.
func Marshal(r Record) ([]byte, error) {
	if r.Payload == nil {
		return nil, fmt.Errorf("%w: missing payload", errors.ErrMalformedEvent)
	}
	env := envelope{Action: r.Action(), From: r.From}
	if len(r.data) > 0 {
		env.Data = r.data
	} else {
		data, err := json.Marshal(r.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", r.Action(), err)
		}
		if !bytes.Equal(data, emptyObject) {
			env.Data = data
		}
	}
	line, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s record: %w", r.Action(), err)
	}
	return line, nil
}

// Unmarshal decodes one line. Unknown fields are tolerated, unknown actions
// are reported with ErrUnknownAction and anything else that does not decode
// or validate with ErrMalformedEvent. Pass-through payloads keep their
// original bytes so that relaying them does not lose anything.
func Unmarshal(line []byte) (Record, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Record{}, fmt.Errorf("%w: %v", errors.ErrMalformedEvent, err)
	}
	if env.Action == "" {
		return Record{}, fmt.Errorf("%w: missing action", errors.ErrMalformedEvent)
	}
	decode, ok := decoders[env.Action]
	if !ok {
		return Record{}, fmt.Errorf("%w: %q", errors.ErrUnknownAction, env.Action)
	}
	if env.From != nil {
		if err := validate.Struct(env.From); err != nil {
			return Record{}, fmt.Errorf("%w: from: %v", errors.ErrMalformedEvent, err)
		}
	}
	payload, err := decode(env.Data)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %s: %v", errors.ErrMalformedEvent, env.Action, err)
	}
	record := Record{From: env.From, Payload: payload}
	if IsPassThrough(env.Action) && !isNull(env.Data) {
		record.data = env.Data
	}
	return record, nil
}

func decodeAs[T Payload](data []byte) (Payload, error) {
	var payload T
	if !isNull(data) {
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
	}
	if err := validate.Struct(payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func isNull(data []byte) bool {
	return len(data) == 0 || bytes.Equal(data, []byte("null"))
}
