package wire

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Message type tags understood by the protocol. Unknown tags are dropped by
// the router so newer servers can add types without breaking older clients.
const (
	TypeHeartbeat = "heartbeat"

	TypeRooms       = "rooms"
	TypeRoomCreate  = "room.create"
	TypeRoomCreated = "room.created"
	TypeRoomDeleted = "room.deleted"
	TypeRoomJoin    = "room.join"
	TypeRoomLeave   = "room.leave"
	TypeRoomUsers   = "room.users"
	TypeRoomMessage = "room.message"

	TypePrivateRequest   = "private.request"
	TypePrivateCreated   = "private.created"
	TypePrivateMessage   = "private.message"
	TypePrivateDelivered = "private.delivered"
	TypePrivateHistory   = "private.history"

	TypeMute      = "mute"
	TypeUnmute    = "unmute"
	TypeMutedBy   = "muted_by"
	TypeUnmutedBy = "unmuted_by"

	TypeThrottling = "throttling"

	TypeRoomFull          = "room.full"
	TypeRoomsMaxCount     = "rooms.max_count"
	TypeRoomBadName       = "room.bad_name"
	TypeRoomAlreadyExists = "room.already_exists"
	TypeRoomNotFound      = "room.not_found"
	TypeUserNotFound      = "user.not_found"
	TypeUserNotInRoom     = "user.not_in_room"

	TypeDisconnected = "disconnected"
)

// Room kinds as announced by the server.
const (
	RoomPublic  = "public"
	RoomPrivate = "private"
)

// Identity names a user, a session or a room on the wire. Ids are scoped to
// the issuing session; names are stable across reconnects.
type Identity struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

func (i Identity) IsZero() bool { return i.ID == "" && i.Name == "" }

// Room is the announced shape of a room in list/created payloads.
type Room struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Permanent bool   `json:"permanent,omitempty"`
}

// Attachment carries the two URLs of an uploaded file. Opaque to the core.
type Attachment struct {
	OriginalURL string `json:"original_url"`
	MinifiedURL string `json:"minified_url"`
}

// Envelope is one decoded unit of the poll response array. Body, when
// present, may itself be a serialized structured value (room list, join
// payload, user list); use the FromBody helpers to parse it opportunistically
// and fall back to the raw text when parsing fails.
type Envelope struct {
	Type        string       `json:"type"`
	From        *Identity    `json:"from,omitempty"`
	To          *Identity    `json:"to,omitempty"`
	Body        string       `json:"body,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// JoinPayload is the body of a self room.join envelope: the authoritative
// room (carrying the freshest session-scoped id) plus the room history.
type JoinPayload struct {
	Room    Room       `json:"room"`
	History []Envelope `json:"history"`
}

func decodeBody(e *Envelope, v any) error {
	if e == nil || e.Body == "" {
		return errors.New("envelope has no body")
	}
	if err := json.Unmarshal([]byte(e.Body), v); err != nil {
		return errors.Wrapf(err, "decoding %s body", e.Type)
	}
	return nil
}

// RoomsFromBody parses a room-list body.
func RoomsFromBody(e *Envelope) ([]Room, error) {
	var rooms []Room
	if err := decodeBody(e, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// RoomFromBody parses a single-room body (room.created, room.deleted).
func RoomFromBody(e *Envelope) (Room, error) {
	var room Room
	if err := decodeBody(e, &room); err != nil {
		return Room{}, err
	}
	return room, nil
}

// UsersFromBody parses a user-list body (room.users).
func UsersFromBody(e *Envelope) ([]Identity, error) {
	var users []Identity
	if err := decodeBody(e, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// JoinFromBody parses a room.join body.
func JoinFromBody(e *Envelope) (JoinPayload, error) {
	var p JoinPayload
	if err := decodeBody(e, &p); err != nil {
		return JoinPayload{}, err
	}
	return p, nil
}

// HistoryFromBody parses a private.history body.
func HistoryFromBody(e *Envelope) ([]Envelope, error) {
	var history []Envelope
	if err := decodeBody(e, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// IdentityFromBody parses an identity body (mute confirmations).
func IdentityFromBody(e *Envelope) (Identity, error) {
	var id Identity
	if err := decodeBody(e, &id); err != nil {
		return Identity{}, err
	}
	return id, nil
}
