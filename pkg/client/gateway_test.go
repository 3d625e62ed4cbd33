package client

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/parley/pkg/wire"
)

func TestGatewayStampsSenderIdentity(t *testing.T) {
	ft := &fakeTransport{}
	g := newGateway(ft, zerolog.Nop())
	g.setSession(alice, "sess-1")

	g.SendRoomMessage(wire.Identity{ID: "r-1", Name: "general"}, "hi", nil)
	g.flush()

	msgs := ft.sentOfType(wire.TypeRoomMessage)
	require.Len(t, msgs, 1)
	require.Equal(t, alice, *msgs[0].From)
	require.Equal(t, "hi", msgs[0].Body)
}

func TestGatewayDropsSendsWithoutSession(t *testing.T) {
	ft := &fakeTransport{}
	g := newGateway(ft, zerolog.Nop())

	g.Heartbeat()
	g.flush()

	ft.mu.Lock()
	defer ft.mu.Unlock()
	require.Empty(t, ft.sent)
}

func TestGatewayUsesFreshestSession(t *testing.T) {
	ft := &fakeTransport{}
	g := newGateway(ft, zerolog.Nop())
	g.setSession(alice, "sess-1")
	g.setSession(wire.Identity{ID: "u-alice-2", Name: "alice"}, "sess-2")

	g.RequestRoomList()
	g.flush()

	lists := ft.sentOfType(wire.TypeRooms)
	require.Len(t, lists, 1)
	require.Equal(t, "u-alice-2", lists[0].From.ID)
}
