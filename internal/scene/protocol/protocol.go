// Package protocol defines the JSON frames exchanged between clients and the
// relay. Every frame is {"type": ..., "payload": {...}}; Decode turns a frame
// into one concrete event type and rejects payloads missing required fields,
// so nothing malformed reaches a document.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/selight/designo/internal/platform/errors"
	"github.com/selight/designo/internal/scene/domain"
)

// MaxPayloadBytes bounds a single frame payload.
const MaxPayloadBytes = 256 << 10

// MaxObjectBytes bounds one encoded object, leaving room for the change
// and batch envelope around it.
const MaxObjectBytes = MaxPayloadBytes - 4<<10

const batchEnvelopeBytes = len(`{"changes":[]}`)

// ErrMalformed marks frames rejected at decode time.
var ErrMalformed = errors.New("malformed event")

// EventType is the frame discriminator.
type EventType string

const (
	TypeJoinProject    EventType = "join-project"
	TypeObjectChange   EventType = "object-change"
	TypeObjectChanges  EventType = "object-changes"
	TypeCameraMove     EventType = "camera-move"
	TypeRoomUsers      EventType = "room-users"
	TypeUserJoined     EventType = "user-joined"
	TypeUserLeft       EventType = "user-left"
	TypeObjectChanged  EventType = "object-changed"
	TypeObjectsChanged EventType = "objects-changed"
	TypeCameraMoved    EventType = "camera-moved"
	TypeError          EventType = "error"
)

// Frame is the envelope written on the wire.
type Frame struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is implemented by every payload type.
type Event interface {
	EventType() EventType
}

// Action is the kind of object mutation carried by object-change.
type Action string

const (
	ActionAdd    Action = "add"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Identity describes one connected session. SessionID is assigned by the
// relay and keys the roster.
type Identity struct {
	SessionID    string `json:"sessionId"`
	UserID       string `json:"userId,omitempty"`
	DisplayName  string `json:"displayName"`
	DisplayColor string `json:"displayColor,omitempty"`
}

// JoinProject asks the relay to add the sender to a project room.
type JoinProject struct {
	ProjectID    string `json:"projectId"`
	DisplayName  string `json:"displayName"`
	DisplayColor string `json:"displayColor,omitempty"`
	UserID       string `json:"userId,omitempty"`
	Grant        string `json:"grant,omitempty"`
}

// ObjectChange carries one object mutation. Add and update carry the full
// object; delete carries only its id.
type ObjectChange struct {
	Action   Action         `json:"action"`
	Object   *domain.Object `json:"object,omitempty"`
	ObjectID string         `json:"objectId,omitempty"`
}

// TargetID is the id the change applies to.
func (c ObjectChange) TargetID() string {
	if c.ObjectID != "" {
		return c.ObjectID
	}
	if c.Object != nil {
		return c.Object.ID
	}
	return ""
}

// ObjectChanges carries one commit's changes in order.
type ObjectChanges struct {
	Changes []ObjectChange `json:"changes"`
}

// CameraMove carries a camera pose.
type CameraMove struct {
	Position domain.Vec3 `json:"position"`
	Target   domain.Vec3 `json:"target"`
}

// Camera returns the pose as a document camera.
func (c CameraMove) Camera() domain.Camera {
	return domain.Camera{Position: c.Position, Target: c.Target}
}

// RoomUsers is the roster snapshot sent once a join succeeds.
type RoomUsers struct {
	ProjectID string     `json:"projectId"`
	Self      Identity   `json:"self"`
	Users     []Identity `json:"users"`
}

// UserJoined is a single roster addition.
type UserJoined struct {
	User Identity `json:"user"`
}

// UserLeft is a single roster removal.
type UserLeft struct {
	User Identity `json:"user"`
}

// ObjectChanged is an object-change relayed from another session.
type ObjectChanged struct {
	ObjectChange
	SenderID string `json:"senderId"`
}

// ObjectsChanged is an object-changes batch relayed from another session.
type ObjectsChanged struct {
	ObjectChanges
	SenderID string `json:"senderId"`
}

// CameraMoved is a camera-move relayed from another session.
type CameraMoved struct {
	CameraMove
	SenderID string `json:"senderId"`
}

// Error reports a rejected frame.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (JoinProject) EventType() EventType    { return TypeJoinProject }
func (ObjectChange) EventType() EventType   { return TypeObjectChange }
func (ObjectChanges) EventType() EventType  { return TypeObjectChanges }
func (CameraMove) EventType() EventType     { return TypeCameraMove }
func (RoomUsers) EventType() EventType      { return TypeRoomUsers }
func (UserJoined) EventType() EventType     { return TypeUserJoined }
func (UserLeft) EventType() EventType       { return TypeUserLeft }
func (ObjectChanged) EventType() EventType  { return TypeObjectChanged }
func (ObjectsChanged) EventType() EventType { return TypeObjectsChanged }
func (CameraMoved) EventType() EventType    { return TypeCameraMoved }
func (Error) EventType() EventType          { return TypeError }

// Encode wraps ev in a frame.
func Encode(ev Event) (Frame, error) {
	if ev == nil {
		return Frame{}, errors.New("encode: nil event")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s: %w", ev.EventType(), err)
	}
	return Frame{Type: ev.EventType(), Payload: payload}, nil
}

// Decode validates a frame and returns its concrete event.
func Decode(frame Frame) (Event, error) {
	if len(frame.Payload) > MaxPayloadBytes {
		return nil, malformed(frame.Type, "payload too large")
	}
	switch frame.Type {
	case TypeJoinProject:
		var ev JoinProject
		if err := unmarshal(frame, &ev); err != nil {
			return nil, err
		}
		ev.ProjectID = strings.TrimSpace(ev.ProjectID)
		ev.DisplayName = strings.TrimSpace(ev.DisplayName)
		if ev.ProjectID == "" {
			return nil, malformed(frame.Type, "projectId is required")
		}
		return ev, nil
	case TypeObjectChange:
		var ev ObjectChange
		if err := unmarshal(frame, &ev); err != nil {
			return nil, err
		}
		if err := validateChange(ev); err != nil {
			return nil, malformed(frame.Type, err.Error())
		}
		return ev, nil
	case TypeObjectChanges:
		var ev ObjectChanges
		if err := unmarshal(frame, &ev); err != nil {
			return nil, err
		}
		if err := validateChanges(ev.Changes); err != nil {
			return nil, malformed(frame.Type, err.Error())
		}
		return ev, nil
	case TypeCameraMove:
		ev, err := decodeCamera(frame)
		if err != nil {
			return nil, err
		}
		return ev, nil
	case TypeRoomUsers:
		var ev RoomUsers
		if err := unmarshal(frame, &ev); err != nil {
			return nil, err
		}
		if ev.ProjectID == "" || ev.Self.SessionID == "" {
			return nil, malformed(frame.Type, "projectId and self are required")
		}
		for _, user := range ev.Users {
			if user.SessionID == "" {
				return nil, malformed(frame.Type, "user sessionId is required")
			}
		}
		return ev, nil
	case TypeUserJoined:
		var ev UserJoined
		if err := unmarshal(frame, &ev); err != nil {
			return nil, err
		}
		if ev.User.SessionID == "" {
			return nil, malformed(frame.Type, "user sessionId is required")
		}
		return ev, nil
	case TypeUserLeft:
		var ev UserLeft
		if err := unmarshal(frame, &ev); err != nil {
			return nil, err
		}
		if ev.User.SessionID == "" {
			return nil, malformed(frame.Type, "user sessionId is required")
		}
		return ev, nil
	case TypeObjectChanged:
		var ev ObjectChanged
		if err := unmarshal(frame, &ev); err != nil {
			return nil, err
		}
		if err := validateChange(ev.ObjectChange); err != nil {
			return nil, malformed(frame.Type, err.Error())
		}
		return ev, nil
	case TypeObjectsChanged:
		var ev ObjectsChanged
		if err := unmarshal(frame, &ev); err != nil {
			return nil, err
		}
		if err := validateChanges(ev.Changes); err != nil {
			return nil, malformed(frame.Type, err.Error())
		}
		return ev, nil
	case TypeCameraMoved:
		move, err := decodeCamera(frame)
		if err != nil {
			return nil, err
		}
		var sender struct {
			SenderID string `json:"senderId"`
		}
		_ = json.Unmarshal(frame.Payload, &sender)
		return CameraMoved{CameraMove: move, SenderID: sender.SenderID}, nil
	case TypeError:
		var ev Error
		if err := unmarshal(frame, &ev); err != nil {
			return nil, err
		}
		if ev.Code == "" {
			return nil, malformed(frame.Type, "code is required")
		}
		return ev, nil
	default:
		return nil, malformed(frame.Type, "unsupported event type")
	}
}

// Marshal encodes ev as a complete frame.
func Marshal(ev Event) ([]byte, error) {
	frame, err := Encode(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(frame)
}

// Unmarshal decodes one complete frame.
func Unmarshal(data []byte) (Event, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Decode(frame)
}

func unmarshal(frame Frame, out any) error {
	if len(frame.Payload) == 0 {
		return malformed(frame.Type, "payload is required")
	}
	if err := json.Unmarshal(frame.Payload, out); err != nil {
		return malformed(frame.Type, err.Error())
	}
	return nil
}

func malformed(t EventType, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformed, t, reason)
}

func validateChange(c ObjectChange) error {
	switch c.Action {
	case ActionAdd, ActionUpdate:
		if c.Object == nil {
			return fmt.Errorf("%s requires object", c.Action)
		}
		if c.ObjectID != "" && c.ObjectID != c.Object.ID {
			return errors.New("objectId does not match object")
		}
		return domain.Validate(*c.Object)
	case ActionDelete:
		if strings.TrimSpace(c.TargetID()) == "" {
			return errors.New("delete requires objectId")
		}
		return nil
	default:
		return fmt.Errorf("unknown action %q", c.Action)
	}
}

func validateChanges(changes []ObjectChange) error {
	if len(changes) == 0 {
		return errors.New("changes are required")
	}
	for i, change := range changes {
		if err := validateChange(change); err != nil {
			return fmt.Errorf("change %d: %w", i, err)
		}
	}
	return nil
}

// CheckObject rejects an object too large to relay in a single frame.
func CheckObject(obj domain.Object) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("encode object %s: %w", obj.ID, err)
	}
	if len(data) > MaxObjectBytes {
		return apperrors.ObjectTooLarge(obj.ID, len(data), MaxObjectBytes)
	}
	return nil
}

// Batch packs changes, in order, into as few object-changes events as fit
// under MaxPayloadBytes. A change that cannot fit alone is an error.
func Batch(changes []ObjectChange) ([]ObjectChanges, error) {
	var batches []ObjectChanges
	var current []ObjectChange
	size := batchEnvelopeBytes
	for _, change := range changes {
		data, err := json.Marshal(change)
		if err != nil {
			return nil, fmt.Errorf("encode change %s: %w", change.TargetID(), err)
		}
		n := len(data) + 1
		if batchEnvelopeBytes+n > MaxPayloadBytes {
			return nil, apperrors.ObjectTooLarge(change.TargetID(), len(data), MaxPayloadBytes-batchEnvelopeBytes-1)
		}
		if size+n > MaxPayloadBytes {
			batches = append(batches, ObjectChanges{Changes: current})
			current = nil
			size = batchEnvelopeBytes
		}
		current = append(current, change)
		size += n
	}
	if len(current) > 0 {
		batches = append(batches, ObjectChanges{Changes: current})
	}
	return batches, nil
}

// Vectors are decoded loosely first so missing or short arrays are caught
// instead of silently zero-filled.
func decodeCamera(frame Frame) (CameraMove, error) {
	var raw struct {
		Position []float64 `json:"position"`
		Target   []float64 `json:"target"`
	}
	if err := unmarshal(frame, &raw); err != nil {
		return CameraMove{}, err
	}
	if len(raw.Position) != 3 || len(raw.Target) != 3 {
		return CameraMove{}, malformed(frame.Type, "position and target need 3 components")
	}
	move := CameraMove{
		Position: domain.Vec3{raw.Position[0], raw.Position[1], raw.Position[2]},
		Target:   domain.Vec3{raw.Target[0], raw.Target[1], raw.Target[2]},
	}
	if !move.Camera().Valid() {
		return CameraMove{}, malformed(frame.Type, "camera is not finite")
	}
	return move, nil
}
