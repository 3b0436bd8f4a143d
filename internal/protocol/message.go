// Package protocol holds the peer-to-peer message schema shared by both games.
//
// Every message travels as one flat JSON object tagged with a "type" field,
// for example {"type":"move","index":4,"class":"x","round":1}.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Type - the wire tag of a message.
type Type string

// dodge game, star topology.
const (
	TypeJoin                   Type = "join"
	TypeUpdate                 Type = "update"
	TypeLeaderboard            Type = "leaderboard"
	TypeStart                  Type = "start"
	TypeRematchReq             Type = "rematch_req"
	TypeRematchReqNotification Type = "rematch_req_notification"
)

// tic-tac-toe, pairwise.
const (
	TypeName           Type = "name"
	TypeMove           Type = "move"
	TypeRematchRequest Type = "rematch_request"
	TypeRematchConfirm Type = "rematch_confirm"
)

const typeField = "type"

var (
	ErrUnknownType = errors.New("unknown message type")
	ErrMissingType = errors.New("message type is missing")
)

// Message is implemented by every payload below.
type Message interface {
	MessageType() Type
}

type Join struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	ID    string `json:"id"`
}

type Update struct {
	ID    string `json:"id"`
	Score int    `json:"score"`
	Alive bool   `json:"alive"`
}

// PlayerState - one row of the host's merged mapping.
type PlayerState struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Score int    `json:"score"`
	Alive bool   `json:"alive"`
}

type Leaderboard struct {
	Players map[string]PlayerState `json:"players"`
}

type Start struct{}

type RematchReq struct {
	Name string `json:"name"`
}

type RematchReqNotification struct {
	Name string `json:"name"`
}

type Name struct {
	Name string `json:"name"`
}

// Move - Class is the mover's mark, Round is the round the move belongs to.
type Move struct {
	Index int    `json:"index"`
	Class string `json:"class"`
	Round int    `json:"round,omitempty"`
}

type RematchRequest struct {
	Round int `json:"round,omitempty"`
}

// RematchConfirm - Round is the round being started.
type RematchConfirm struct {
	Round int `json:"round,omitempty"`
}

func (Join) MessageType() Type                   { return TypeJoin }
func (Update) MessageType() Type                 { return TypeUpdate }
func (Leaderboard) MessageType() Type            { return TypeLeaderboard }
func (Start) MessageType() Type                  { return TypeStart }
func (RematchReq) MessageType() Type             { return TypeRematchReq }
func (RematchReqNotification) MessageType() Type { return TypeRematchReqNotification }
func (Name) MessageType() Type                   { return TypeName }
func (Move) MessageType() Type                   { return TypeMove }
func (RematchRequest) MessageType() Type         { return TypeRematchRequest }
func (RematchConfirm) MessageType() Type         { return TypeRematchConfirm }

// newMessage - returns a pointer to a zero value of the tagged type.
func newMessage(messageType Type) (Message, error) {
	switch messageType {
	case TypeJoin:
		return &Join{}, nil
	case TypeUpdate:
		return &Update{}, nil
	case TypeLeaderboard:
		return &Leaderboard{}, nil
	case TypeStart:
		return &Start{}, nil
	case TypeRematchReq:
		return &RematchReq{}, nil
	case TypeRematchReqNotification:
		return &RematchReqNotification{}, nil
	case TypeName:
		return &Name{}, nil
	case TypeMove:
		return &Move{}, nil
	case TypeRematchRequest:
		return &RematchRequest{}, nil
	case TypeRematchConfirm:
		return &RematchConfirm{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, messageType)
	}
}

// Encode - marshals the payload and adds the type tag.
func Encode(msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", msg.MessageType(), err)
	}

	fields := make(map[string]json.RawMessage)
	if err = json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("failed to flatten %s: %w", msg.MessageType(), err)
	}

	tag, err := json.Marshal(msg.MessageType())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal type: %w", err)
	}
	fields[typeField] = tag

	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	return data, nil
}

// Decode - reads the type tag and decodes the remaining fields into the
// matching payload. The returned message is a value, not a pointer.
func Decode(data []byte) (Message, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}

	tag, ok := raw[typeField].(string)
	if !ok || tag == "" {
		return nil, ErrMissingType
	}
	delete(raw, typeField)

	target, err := newMessage(Type(tag))
	if err != nil {
		return nil, err
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err = decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", tag, err)
	}

	return deref(target), nil
}

func deref(msg Message) Message {
	switch typed := msg.(type) {
	case *Join:
		return *typed
	case *Update:
		return *typed
	case *Leaderboard:
		return *typed
	case *Start:
		return *typed
	case *RematchReq:
		return *typed
	case *RematchReqNotification:
		return *typed
	case *Name:
		return *typed
	case *Move:
		return *typed
	case *RematchRequest:
		return *typed
	case *RematchConfirm:
		return *typed
	default:
		return msg
	}
}

// Clone - copies a message through the wire codec, the way a remote peer would see it.
func Clone(msg Message) (Message, error) {
	data, err := Encode(msg)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
