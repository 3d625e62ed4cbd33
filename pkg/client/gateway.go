package client

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/go-go-golems/parley/pkg/wire"
)

// Gateway formats and sends user-initiated actions. Sends are fire-and-forget
// relative to the poll loop: their acks never join the envelope stream, and a
// send's effect only becomes visible when the matching event comes back
// through the update channel.
type Gateway struct {
	tr  Transport
	log zerolog.Logger

	mu       sync.Mutex
	identity wire.Identity
	session  string

	wg sync.WaitGroup
}

func newGateway(tr Transport, logger zerolog.Logger) *Gateway {
	return &Gateway{tr: tr, log: logger}
}

// setSession installs the identity and token every outbound envelope is
// stamped with. Called on every successful join.
func (g *Gateway) setSession(identity wire.Identity, session string) {
	g.mu.Lock()
	g.identity = identity
	g.session = session
	g.mu.Unlock()
}

// send stamps the sender identity and posts asynchronously. A failed send is
// logged, never retried: the poll loop owns disconnect detection.
func (g *Gateway) send(env *wire.Envelope) {
	g.mu.Lock()
	identity := g.identity
	session := g.session
	g.mu.Unlock()
	if session == "" {
		g.log.Debug().Str("type", env.Type).Msg("dropping send without a session")
		return
	}
	env.From = &identity

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := g.tr.Send(context.Background(), session, env); err != nil {
			g.log.Warn().Err(err).Str("type", env.Type).Msg("send failed")
		}
	}()
}

// Heartbeat sends the no-op keepalive. Failures are swallowed; the next poll
// cycle surfaces any real disconnection.
func (g *Gateway) Heartbeat() {
	g.send(&wire.Envelope{Type: wire.TypeHeartbeat})
}

// RequestRoomList asks for a fresh room announce.
func (g *Gateway) RequestRoomList() {
	g.send(&wire.Envelope{Type: wire.TypeRooms})
}

func (g *Gateway) JoinRoom(room wire.Identity) {
	g.send(&wire.Envelope{Type: wire.TypeRoomJoin, To: &room})
}

func (g *Gateway) LeaveRoom(room wire.Identity) {
	g.send(&wire.Envelope{Type: wire.TypeRoomLeave, To: &room})
}

func (g *Gateway) CreateRoom(name string) {
	g.send(&wire.Envelope{Type: wire.TypeRoomCreate, To: &wire.Identity{Name: name}})
}

func (g *Gateway) RequestRoomUsers(room wire.Identity) {
	g.send(&wire.Envelope{Type: wire.TypeRoomUsers, To: &room})
}

func (g *Gateway) SendRoomMessage(room wire.Identity, text string, attachments []wire.Attachment) {
	g.send(&wire.Envelope{Type: wire.TypeRoomMessage, To: &room, Body: text, Attachments: attachments})
}

func (g *Gateway) RequestPrivate(peer wire.Identity) {
	g.send(&wire.Envelope{Type: wire.TypePrivateRequest, To: &peer})
}

func (g *Gateway) RequestPrivateHistory(peer wire.Identity) {
	g.send(&wire.Envelope{Type: wire.TypePrivateHistory, To: &peer})
}

func (g *Gateway) SendPrivateMessage(peer wire.Identity, text string, attachments []wire.Attachment) {
	g.send(&wire.Envelope{Type: wire.TypePrivateMessage, To: &peer, Body: text, Attachments: attachments})
}

func (g *Gateway) Mute(peer wire.Identity) {
	g.send(&wire.Envelope{Type: wire.TypeMute, To: &peer})
}

func (g *Gateway) Unmute(peer wire.Identity) {
	g.send(&wire.Envelope{Type: wire.TypeUnmute, To: &peer})
}

// flush waits for in-flight sends; used by shutdown and tests.
func (g *Gateway) flush() {
	g.wg.Wait()
}
