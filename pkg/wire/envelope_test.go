package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoomsFromBody(t *testing.T) {
	env := &Envelope{
		Type: TypeRooms,
		Body: `[{"id":"r1","name":"default","type":"public","permanent":true},{"id":"r2","name":"dc","type":"public"}]`,
	}
	rooms, err := RoomsFromBody(env)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	require.Equal(t, "default", rooms[0].Name)
	require.Equal(t, "r1", rooms[0].ID)
	require.True(t, rooms[0].Permanent)
	require.Equal(t, RoomPublic, rooms[1].Type)
}

func TestJoinFromBody(t *testing.T) {
	env := &Envelope{
		Type: TypeRoomJoin,
		Body: `{"room":{"id":"r9","name":"default","type":"public"},"history":[{"type":"room.message","body":"hi","from":{"id":"u1","name":"ann"}}]}`,
	}
	p, err := JoinFromBody(env)
	require.NoError(t, err)
	require.Equal(t, "r9", p.Room.ID)
	require.Len(t, p.History, 1)
	require.Equal(t, "hi", p.History[0].Body)
	require.Equal(t, "ann", p.History[0].From.Name)
}

func TestBodyFallsBackToRawText(t *testing.T) {
	// A chat message body is plain text; structured parses must fail cleanly
	// and leave the raw body untouched.
	env := &Envelope{Type: TypeRoomMessage, Body: "hello, world"}
	_, err := RoomsFromBody(env)
	require.Error(t, err)
	_, err = JoinFromBody(env)
	require.Error(t, err)
	require.Equal(t, "hello, world", env.Body)
}

func TestEnvelopeRoundTripKeepsNestedBodyAsString(t *testing.T) {
	raw := `{"type":"rooms","from":{"id":"sys"},"body":"[{\"id\":\"r1\",\"name\":\"default\",\"type\":\"public\"}]"}`
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	require.Equal(t, TypeRooms, env.Type)
	rooms, err := RoomsFromBody(&env)
	require.NoError(t, err)
	require.Equal(t, "default", rooms[0].Name)
}

func TestUsersFromBody(t *testing.T) {
	env := &Envelope{Type: TypeRoomUsers, Body: `[{"id":"u1","name":"ann"},{"id":"u2","name":"bob"}]`}
	users, err := UsersFromBody(env)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "bob", users[1].Name)
}
