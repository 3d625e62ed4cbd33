package client

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/parley/pkg/notify"
	"github.com/go-go-golems/parley/pkg/transport"
	"github.com/go-go-golems/parley/pkg/wire"
)

const stateIdle = "idle"

// Transport is the request/response surface the engine drives. Implemented
// by transport.Client; tests substitute scripted fakes.
type Transport interface {
	Join(ctx context.Context) (transport.JoinResponse, error)
	Poll(ctx context.Context, session string) ([]wire.Envelope, error)
	Send(ctx context.Context, session string, env *wire.Envelope) error
	Close(ctx context.Context, session string)
}

// Client is the explicit context value owning all session, room and
// conversation state. There are no ambient globals: everything the protocol
// engine touches hangs off this struct, serialized by one mutex.
type Client struct {
	cfg    Config
	log    zerolog.Logger
	clk    clock.Clock
	tr     Transport
	sink   notify.Sink
	tokens TokenCache

	ctx context.Context

	mu       sync.Mutex
	state    string
	identity wire.Identity
	session  string
	// gen stamps each joined session; in-flight continuations from a
	// superseded generation are dropped on arrival
	gen uint64

	store   *Store
	router  *Router
	gateway *Gateway
	sess    *SessionManager
	poller  *Poller
}

type ClientOption func(*Client)

func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

func WithClock(clk clock.Clock) ClientOption {
	return func(c *Client) { c.clk = clk }
}

func WithSink(s notify.Sink) ClientOption {
	return func(c *Client) { c.sink = s }
}

func WithTokenCache(tc TokenCache) ClientOption {
	return func(c *Client) { c.tokens = tc }
}

// New validates the config and wires the engine together. The client is
// inert until Start.
func New(cfg Config, tr Transport, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid client config")
	}
	c := &Client{
		cfg:   cfg,
		log:   log.Logger,
		clk:   clock.New(),
		tr:    tr,
		sink:  notify.NopSink{},
		state: stateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.gateway = newGateway(tr, c.log)
	c.store = newStore(cfg, c.sink, c.gateway, c.log)
	c.router = NewRouter(c.log)
	c.sess = &SessionManager{c: c}
	c.poller = &Poller{c: c}
	c.registerHandlers()
	return c, nil
}

func (c *Client) registerHandlers() {
	s := c.store
	c.router.Register(wire.TypeRooms, s.handleRooms)
	c.router.Register(wire.TypeRoomCreated, s.handleRoomCreated)
	c.router.Register(wire.TypeRoomDeleted, s.handleRoomDeleted)
	c.router.Register(wire.TypeRoomJoin, s.handleRoomJoin)
	c.router.Register(wire.TypeRoomLeave, s.handleRoomLeave)
	c.router.Register(wire.TypeRoomUsers, s.handleRoomUsers)
	c.router.Register(wire.TypeRoomMessage, s.handleRoomMessage)

	c.router.Register(wire.TypePrivateRequest, s.handlePrivateRequest)
	c.router.Register(wire.TypePrivateCreated, s.handlePrivateCreated)
	c.router.Register(wire.TypePrivateMessage, s.handlePrivateMessage)
	c.router.Register(wire.TypePrivateDelivered, s.handlePrivateDelivered)
	c.router.Register(wire.TypePrivateHistory, s.handlePrivateHistory)

	c.router.Register(wire.TypeMute, s.handleMute)
	c.router.Register(wire.TypeUnmute, s.handleUnmute)
	c.router.Register(wire.TypeMutedBy, s.handleMutedBy)
	c.router.Register(wire.TypeUnmutedBy, s.handleUnmutedBy)

	for _, tag := range []string{
		wire.TypeThrottling,
		wire.TypeRoomFull,
		wire.TypeRoomsMaxCount,
		wire.TypeRoomBadName,
		wire.TypeRoomAlreadyExists,
		wire.TypeRoomNotFound,
		wire.TypeUserNotFound,
		wire.TypeUserNotInRoom,
	} {
		c.router.Register(tag, s.handleRejection)
	}

	drop := func(env *wire.Envelope) {
		c.log.Debug().Str("type", env.Type).Msg("ignoring informational envelope")
	}
	c.router.Register(wire.TypeHeartbeat, drop)
	c.router.Register(wire.TypeDisconnected, drop)
}

// Start joins the server and begins the poll loop. A rejected join is
// returned as transport.JoinRejectedError; there is no automatic retry at
// initial join time.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != stateIdle {
		c.mu.Unlock()
		return errors.New("client already started")
	}
	c.ctx = ctx
	c.state = notify.StateJoining
	c.sink.Publish(notify.ConnectionStateChanged{State: notify.StateJoining})
	c.mu.Unlock()

	resp, err := c.tr.Join(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = stateIdle
		return errors.Wrap(err, "joining chat")
	}
	c.applySessionLocked(resp, true)
	c.poller.scheduleLocked(0)
	c.gateway.RequestRoomList()
	return nil
}

// Close stops all timers, invalidates in-flight continuations, flushes
// outbound sends and tears the session down best-effort.
func (c *Client) Close() {
	c.mu.Lock()
	if c.state == notify.StateClosed {
		c.mu.Unlock()
		return
	}
	session := c.session
	c.state = notify.StateClosed
	c.gen++
	c.sess.stopHeartbeatLocked()
	c.sess.stopRetryLocked()
	c.poller.stopLocked()
	c.sink.Publish(notify.ConnectionStateChanged{State: notify.StateClosed})
	c.mu.Unlock()

	c.gateway.flush()
	if session != "" {
		c.tr.Close(context.Background(), session)
	}
}

// --- read accessors --------------------------------------------------------

func (c *Client) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) Identity() wire.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *Client) Rooms() []notify.RoomInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.roomList()
}

// Conversations returns open conversation names in opening order.
func (c *Client) Conversations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.store.convOrder))
	copy(out, c.store.convOrder)
	return out
}

func (c *Client) ActiveConversation() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.active
}

func (c *Client) History(conversation string) ([]Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.store.conversation(conversation)
	if !ok {
		return nil, false
	}
	return conv.Entries(), true
}

func (c *Client) Roster(conversation string) ([]Member, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.store.conversation(conversation)
	if !ok {
		return nil, false
	}
	return conv.Roster(), true
}

// Muted reports whether the local user muted the counterpart.
func (c *Client) Muted(counterpart string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.muted[counterpart]
}

// MutedBy reports whether the counterpart muted the local user.
func (c *Client) MutedBy(counterpart string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.mutedBy[counterpart]
}

// --- user actions ----------------------------------------------------------

// JoinRoom requests membership in a room. If the conversation is already
// open it is only activated; the tab itself appears when the self-join event
// comes back through the poll stream.
func (c *Client) JoinRoom(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, open := c.store.conversation(name); open {
		c.store.activate(name)
		return
	}
	target := wire.Identity{Name: name}
	if room, ok := c.store.room(name); ok {
		target.ID = room.ID
	}
	c.gateway.JoinRoom(target)
}

// CreateRoom records a pending creation and asks the server to create the
// room. The pending entry is resolved by the room.created confirmation.
func (c *Client) CreateRoom(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.pending[name] = true
	c.gateway.CreateRoom(name)
}

// CloseConversation destroys the tab and, for rooms, leaves server-side.
func (c *Client) CloseConversation(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.store.closeConversation(name)
	if !ok {
		return
	}
	if conv.Kind == ConversationRoom {
		target := wire.Identity{Name: name}
		if room, ok := c.store.room(name); ok {
			target.ID = room.ID
		}
		c.gateway.LeaveRoom(target)
	}
}

func (c *Client) Activate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.activate(name)
}

// SendMessage submits a message to an open conversation. Nothing is applied
// locally: the self-event arrives back through the poll stream.
func (c *Client) SendMessage(conversation, text string, attachments []wire.Attachment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.store.conversation(conversation)
	if !ok {
		return errors.Errorf("no open conversation %q", conversation)
	}
	if conv.Kind == ConversationPrivate {
		c.gateway.SendPrivateMessage(conv.Counterpart, text, attachments)
		return nil
	}
	target := wire.Identity{Name: conversation}
	if room, ok := c.store.room(conversation); ok {
		target.ID = room.ID
	}
	c.gateway.SendRoomMessage(target, text, attachments)
	return nil
}

// findMemberLocked resolves a display name to the freshest known identity.
func (c *Client) findMemberLocked(name string) (wire.Identity, error) {
	for _, conv := range c.store.convs {
		if m, ok := conv.member(name); ok {
			return wire.Identity{ID: m.ID, Name: m.Name}, nil
		}
	}
	return wire.Identity{}, errors.Errorf("no known user %q", name)
}

// RequestPrivate asks for a private conversation with a visible user. The
// tab opens when private.created arrives.
func (c *Client) RequestPrivate(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, open := c.store.conversation(name); open {
		c.store.activate(name)
		return nil
	}
	peer, err := c.findMemberLocked(name)
	if err != nil {
		return err
	}
	c.gateway.RequestPrivate(peer)
	return nil
}

func (c *Client) Mute(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	peer, err := c.findMemberLocked(name)
	if err != nil {
		return err
	}
	c.gateway.Mute(peer)
	return nil
}

func (c *Client) Unmute(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	peer, err := c.findMemberLocked(name)
	if err != nil {
		return err
	}
	c.gateway.Unmute(peer)
	return nil
}

// SetInput stores the pending draft of a conversation. Drafts are per
// conversation and never shared.
func (c *Client) SetInput(conversation string, input PendingInput) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conv, ok := c.store.conversation(conversation); ok {
		conv.input = input
	}
}

func (c *Client) Input(conversation string) (PendingInput, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.store.conversation(conversation)
	if !ok {
		return PendingInput{}, false
	}
	return conv.input, true
}
