package client

import (
	"github.com/rs/zerolog"

	"github.com/go-go-golems/parley/pkg/notify"
	"github.com/go-go-golems/parley/pkg/wire"
)

// Room is the client-side view of an announced room. Identity for matching
// is Name; ID is session-scoped and rewritten in place when a later event
// reveals a fresher one.
type Room struct {
	ID        string
	Name      string
	Kind      string
	Permanent bool
}

// Store is the authoritative client model of rooms, open conversations,
// rosters, mute relationships and pending room creations. It is not
// goroutine-safe on its own: every call happens under the owning client's
// mutex, which is what serializes envelope dispatch.
type Store struct {
	log     zerolog.Logger
	sink    notify.Sink
	gateway *Gateway

	historyCap  int
	defaultRoom string

	self wire.Identity

	rooms   []*Room
	roomIdx map[string]*Room

	convs     map[string]*Conversation
	convOrder []string
	active    string

	// pending room creations, keyed by the requested name
	pending map[string]bool

	// directional mute state, keyed by counterpart name (names survive
	// reconnects, session-scoped ids do not)
	muted   map[string]bool
	mutedBy map[string]bool

	// set after a reconnect: the next room announce re-issues joins for all
	// open room conversations so the fresh session resubscribes them
	rejoinPending bool
}

func newStore(cfg Config, sink notify.Sink, gateway *Gateway, logger zerolog.Logger) *Store {
	return &Store{
		log:         logger,
		sink:        sink,
		gateway:     gateway,
		historyCap:  cfg.HistoryLimit,
		defaultRoom: cfg.DefaultRoom,
		roomIdx:     map[string]*Room{},
		convs:       map[string]*Conversation{},
		pending:     map[string]bool{},
		muted:       map[string]bool{},
		mutedBy:     map[string]bool{},
	}
}

func (s *Store) setSelf(id wire.Identity) { s.self = id }

func (s *Store) isSelf(id wire.Identity) bool {
	if id.ID != "" && s.self.ID != "" {
		return id.ID == s.self.ID
	}
	return id.Name != "" && id.Name == s.self.Name
}

// counterpart picks whichever of from/to is not the local identity.
func (s *Store) counterpart(env *wire.Envelope) wire.Identity {
	if env.From != nil && !s.isSelf(*env.From) && !env.From.IsZero() {
		return *env.From
	}
	if env.To != nil {
		return *env.To
	}
	return wire.Identity{}
}

// --- rooms -----------------------------------------------------------------

// upsertRoom reconciles an announced room by name. An existing entry keeps
// all fields except the id, which is rewritten to the announced one.
func (s *Store) upsertRoom(r wire.Room) *Room {
	if existing, ok := s.roomIdx[r.Name]; ok {
		existing.ID = r.ID
		return existing
	}
	room := &Room{ID: r.ID, Name: r.Name, Kind: r.Type, Permanent: r.Permanent}
	s.rooms = append(s.rooms, room)
	s.roomIdx[r.Name] = room
	return room
}

func (s *Store) removeRoom(name string) bool {
	if _, ok := s.roomIdx[name]; !ok {
		return false
	}
	delete(s.roomIdx, name)
	for i := range s.rooms {
		if s.rooms[i].Name == name {
			s.rooms = append(s.rooms[:i], s.rooms[i+1:]...)
			break
		}
	}
	return true
}

func (s *Store) room(name string) (*Room, bool) {
	r, ok := s.roomIdx[name]
	return r, ok
}

func (s *Store) roomList() []notify.RoomInfo {
	out := make([]notify.RoomInfo, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, notify.RoomInfo{ID: r.ID, Name: r.Name, Kind: r.Kind, Permanent: r.Permanent})
	}
	return out
}

// --- conversations ---------------------------------------------------------

// openConversation is idempotent: opening an already-open name activates the
// existing tab and never creates a second one.
func (s *Store) openConversation(name, kind string) (*Conversation, bool) {
	if conv, ok := s.convs[name]; ok {
		s.activate(name)
		return conv, false
	}
	conv := newConversation(name, kind, s.historyCap)
	s.convs[name] = conv
	s.convOrder = append(s.convOrder, name)
	s.sink.Publish(notify.ConversationOpened{Name: name, Kind: kind})
	s.activate(name)
	return conv, true
}

func (s *Store) activate(name string) {
	if _, ok := s.convs[name]; !ok {
		return
	}
	if s.active == name {
		return
	}
	s.active = name
	s.sink.Publish(notify.ConversationActivated{Name: name})
}

// closeConversation removes the tab and activates the previous one.
func (s *Store) closeConversation(name string) (*Conversation, bool) {
	conv, ok := s.convs[name]
	if !ok {
		return nil, false
	}
	delete(s.convs, name)
	idx := 0
	for i := range s.convOrder {
		if s.convOrder[i] == name {
			idx = i
			s.convOrder = append(s.convOrder[:i], s.convOrder[i+1:]...)
			break
		}
	}
	s.sink.Publish(notify.ConversationClosed{Name: name})
	if s.active == name {
		s.active = ""
		if idx > 0 {
			s.activate(s.convOrder[idx-1])
		} else if len(s.convOrder) > 0 {
			s.activate(s.convOrder[0])
		}
	}
	return conv, true
}

func (s *Store) conversation(name string) (*Conversation, bool) {
	conv, ok := s.convs[name]
	return conv, ok
}

func (s *Store) appendMessage(conv *Conversation, e Entry) {
	e.Kind = EntryMessage
	e = conv.append(e)
	s.sink.Publish(notify.MessageAppended{Conversation: conv.Name, Entry: entryInfo(e)})
}

func (s *Store) appendNotice(conv *Conversation, text string) {
	e := conv.append(Entry{Kind: EntryNotice, Body: text})
	s.sink.Publish(notify.NoticeAppended{Conversation: conv.Name, Text: e.Body, Dismissible: true})
}

func (s *Store) publishRoster(conv *Conversation) {
	members := make([]notify.MemberInfo, 0, len(conv.roster))
	for _, m := range conv.roster {
		members = append(members, notify.MemberInfo{ID: m.ID, Name: m.Name, Muted: s.muted[m.Name]})
	}
	s.sink.Publish(notify.RosterUpdated{Conversation: conv.Name, Members: members})
}

func entryInfo(e Entry) notify.EntryInfo {
	atts := make([]notify.AttachmentInfo, 0, len(e.Attachments))
	for _, a := range e.Attachments {
		atts = append(atts, notify.AttachmentInfo{OriginalURL: a.OriginalURL, MinifiedURL: a.MinifiedURL})
	}
	return notify.EntryInfo{
		ID:          e.ID,
		Kind:        e.Kind,
		From:        e.From.Name,
		Self:        e.Self,
		Body:        e.Body,
		Attachments: atts,
		Timestamp:   e.Timestamp,
	}
}

// --- inbound handlers ------------------------------------------------------

// handleRooms reconciles a room announce. The designated default room is
// auto-joined at most once per announce cycle; after a reconnect every open
// room conversation is re-joined so the fresh session resubscribes it.
func (s *Store) handleRooms(env *wire.Envelope) {
	rooms, err := wire.RoomsFromBody(env)
	if err != nil {
		s.log.Warn().Err(err).Msg("bad room list payload")
		return
	}
	rejoin := s.rejoinPending
	s.rejoinPending = false
	joinedDefault := false
	for _, r := range rooms {
		room := s.upsertRoom(r)
		_, open := s.convs[room.Name]
		switch {
		case rejoin && open && s.convs[room.Name].Kind == ConversationRoom:
			s.gateway.JoinRoom(wire.Identity{ID: room.ID, Name: room.Name})
		case room.Name == s.defaultRoom && s.defaultRoom != "" && !open && !joinedDefault:
			joinedDefault = true
			s.gateway.JoinRoom(wire.Identity{ID: room.ID, Name: room.Name})
		}
	}
	s.sink.Publish(notify.RoomListUpdated{Rooms: s.roomList()})
}

// handleRoomCreated matches a creation broadcast against a pending local
// request by name. A match auto-joins the fresh room; anything else is just
// listed.
func (s *Store) handleRoomCreated(env *wire.Envelope) {
	r, err := wire.RoomFromBody(env)
	if err != nil {
		s.log.Warn().Err(err).Msg("bad room.created payload")
		return
	}
	room := s.upsertRoom(r)
	if s.pending[room.Name] {
		delete(s.pending, room.Name)
		s.sink.Publish(notify.PendingCreationResolved{Name: room.Name})
		s.gateway.JoinRoom(wire.Identity{ID: room.ID, Name: room.Name})
	}
	s.sink.Publish(notify.RoomListUpdated{Rooms: s.roomList()})
}

func (s *Store) handleRoomDeleted(env *wire.Envelope) {
	r, err := wire.RoomFromBody(env)
	if err != nil {
		s.log.Warn().Err(err).Msg("bad room.deleted payload")
		return
	}
	if s.removeRoom(r.Name) {
		s.sink.Publish(notify.RoomListUpdated{Rooms: s.roomList()})
	}
}

// handleRoomJoin discriminates self-join from peer-join by the joining
// identity. Self-join opens the tab, replays embedded history and requests
// the roster; peer-join only touches the roster of an already-open tab.
func (s *Store) handleRoomJoin(env *wire.Envelope) {
	if env.From == nil || env.To == nil {
		s.log.Warn().Msg("room.join without from/to")
		return
	}
	if s.isSelf(*env.From) {
		s.handleSelfJoin(env)
		return
	}
	conv, ok := s.conversation(env.To.Name)
	if !ok || conv.Kind != ConversationRoom {
		return
	}
	if conv.upsertMember(Member{ID: env.From.ID, Name: env.From.Name, Muted: s.muted[env.From.Name]}) {
		s.appendNotice(conv, env.From.Name+" joined")
	}
	s.publishRoster(conv)
}

func (s *Store) handleSelfJoin(env *wire.Envelope) {
	roomName := env.To.Name
	roomID := env.To.ID
	payload, err := wire.JoinFromBody(env)
	if err == nil && payload.Room.Name != "" {
		// the embedded room carries the freshest session-scoped id
		room := s.upsertRoom(payload.Room)
		roomName = room.Name
		roomID = room.ID
	} else if roomName != "" {
		s.upsertRoom(wire.Room{ID: roomID, Name: roomName, Type: wire.RoomPublic})
	}
	if roomName == "" {
		s.log.Warn().Msg("self join without a room name")
		return
	}

	conv, _ := s.openConversation(roomName, ConversationRoom)
	conv.upsertMember(Member{ID: s.self.ID, Name: s.self.Name})

	// history replay rebuilds the tab; on a rejoin after reconnect this is
	// what prevents duplicated entries
	conv.resetHistory()
	for i := range payload.History {
		s.replayHistoryEntry(conv, &payload.History[i])
	}

	s.publishRoster(conv)
	s.gateway.RequestRoomUsers(wire.Identity{ID: roomID, Name: roomName})
}

// replayHistoryEntry attributes a replayed message by sender name: the ids
// inside history belong to sessions that no longer exist.
func (s *Store) replayHistoryEntry(conv *Conversation, m *wire.Envelope) {
	if m.From == nil {
		return
	}
	s.appendMessage(conv, Entry{
		From:        *m.From,
		Self:        m.From.Name == s.self.Name,
		Body:        m.Body,
		Attachments: m.Attachments,
		Timestamp:   m.Timestamp,
	})
}

// handleRoomLeave removes the peer from the roster. Only an explicit local
// close ever closes the tab itself.
func (s *Store) handleRoomLeave(env *wire.Envelope) {
	if env.From == nil || env.To == nil || s.isSelf(*env.From) {
		return
	}
	conv, ok := s.conversation(env.To.Name)
	if !ok {
		return
	}
	if conv.removeMember(env.From.Name) {
		s.appendNotice(conv, env.From.Name+" left")
		s.publishRoster(conv)
	}
}

// handleRoomUsers replaces the roster of a room conversation with the
// server's authoritative list.
func (s *Store) handleRoomUsers(env *wire.Envelope) {
	if env.From == nil {
		return
	}
	conv, ok := s.conversation(env.From.Name)
	if !ok {
		return
	}
	users, err := wire.UsersFromBody(env)
	if err != nil {
		s.log.Warn().Err(err).Msg("bad room.users payload")
		return
	}
	conv.roster = conv.roster[:0]
	for _, u := range users {
		conv.upsertMember(Member{ID: u.ID, Name: u.Name, Muted: s.muted[u.Name]})
	}
	s.publishRoster(conv)
}

func (s *Store) handleRoomMessage(env *wire.Envelope) {
	if env.From == nil || env.To == nil {
		return
	}
	conv, ok := s.conversation(env.To.Name)
	if !ok {
		s.log.Debug().Str("room", env.To.Name).Msg("message for a room without an open conversation")
		return
	}
	s.appendMessage(conv, Entry{
		From:        *env.From,
		Self:        s.isSelf(*env.From),
		Body:        env.Body,
		Attachments: env.Attachments,
		Timestamp:   env.Timestamp,
	})
}

// --- private conversations -------------------------------------------------

// openPrivate opens or activates the tab for a counterpart. Only a first
// open fetches history; activating an existing tab never refetches.
func (s *Store) openPrivate(peer wire.Identity) *Conversation {
	conv, created := s.openConversation(peer.Name, ConversationPrivate)
	conv.Counterpart = peer
	if created {
		conv.upsertMember(Member{ID: s.self.ID, Name: s.self.Name})
		conv.upsertMember(Member{ID: peer.ID, Name: peer.Name, Muted: s.muted[peer.Name]})
		s.publishRoster(conv)
		s.gateway.RequestPrivateHistory(peer)
	}
	return conv
}

func (s *Store) handlePrivateRequest(env *wire.Envelope) {
	peer := s.counterpart(env)
	if peer.IsZero() {
		return
	}
	s.openPrivate(peer)
}

func (s *Store) handlePrivateCreated(env *wire.Envelope) {
	peer := s.counterpart(env)
	if peer.IsZero() {
		return
	}
	s.openPrivate(peer)
}

func (s *Store) handlePrivateMessage(env *wire.Envelope) {
	if env.From == nil {
		return
	}
	peer := s.counterpart(env)
	if peer.IsZero() {
		return
	}
	conv := s.openPrivate(peer)
	s.appendMessage(conv, Entry{
		From:        *env.From,
		Self:        s.isSelf(*env.From),
		Body:        env.Body,
		Attachments: env.Attachments,
		Timestamp:   env.Timestamp,
	})
}

// handlePrivateDelivered is the echo of a locally sent private message; the
// self-event only ever reaches the tab through the poll stream.
func (s *Store) handlePrivateDelivered(env *wire.Envelope) {
	peer := s.counterpart(env)
	if peer.IsZero() {
		return
	}
	conv := s.openPrivate(peer)
	s.appendMessage(conv, Entry{
		From:        s.self,
		Self:        true,
		Body:        env.Body,
		Attachments: env.Attachments,
		Timestamp:   env.Timestamp,
	})
}

// handlePrivateHistory rebuilds the private tab from the server's log. The
// live message that triggered the tab open is part of the log, so replacing
// avoids duplication.
func (s *Store) handlePrivateHistory(env *wire.Envelope) {
	peer := s.counterpart(env)
	if peer.IsZero() {
		return
	}
	conv, ok := s.conversation(peer.Name)
	if !ok {
		return
	}
	history, err := wire.HistoryFromBody(env)
	if err != nil {
		s.log.Warn().Err(err).Msg("bad private.history payload")
		return
	}
	conv.resetHistory()
	for i := range history {
		s.replayHistoryEntry(conv, &history[i])
	}
}

// --- mutes -----------------------------------------------------------------

func (s *Store) muteTarget(env *wire.Envelope) wire.Identity {
	if env.To != nil && !env.To.IsZero() {
		return *env.To
	}
	if id, err := wire.IdentityFromBody(env); err == nil {
		return id
	}
	return wire.Identity{}
}

func (s *Store) setMuted(name string, muted bool) {
	if muted {
		s.muted[name] = true
	} else {
		delete(s.muted, name)
	}
	for _, conv := range s.convs {
		for i := range conv.roster {
			if conv.roster[i].Name == name {
				conv.roster[i].Muted = muted
				s.publishRoster(conv)
				break
			}
		}
	}
}

// handleMute confirms a local mute action. Mute is directional: this only
// records "I muted them".
func (s *Store) handleMute(env *wire.Envelope) {
	target := s.muteTarget(env)
	if target.Name == "" {
		return
	}
	s.setMuted(target.Name, true)
	if conv, ok := s.conversation(target.Name); ok {
		s.appendNotice(conv, "you muted "+target.Name)
	}
	s.sink.Publish(notify.MuteChanged{Counterpart: target.Name, Muted: true})
}

func (s *Store) handleUnmute(env *wire.Envelope) {
	target := s.muteTarget(env)
	if target.Name == "" {
		return
	}
	s.setMuted(target.Name, false)
	if conv, ok := s.conversation(target.Name); ok {
		s.appendNotice(conv, "you unmuted "+target.Name)
	}
	s.sink.Publish(notify.MuteChanged{Counterpart: target.Name, Muted: false})
}

// handleMutedBy records that the counterpart muted the local user. Purely
// informational: it never alters local send-ability.
func (s *Store) handleMutedBy(env *wire.Envelope) {
	peer := s.counterpart(env)
	if peer.Name == "" {
		return
	}
	s.mutedBy[peer.Name] = true
	if conv, ok := s.conversation(peer.Name); ok {
		s.appendNotice(conv, peer.Name+" muted you")
	}
	s.sink.Publish(notify.MuteChanged{Counterpart: peer.Name, Muted: true, ByCounterpart: true})
}

func (s *Store) handleUnmutedBy(env *wire.Envelope) {
	peer := s.counterpart(env)
	if peer.Name == "" {
		return
	}
	delete(s.mutedBy, peer.Name)
	if conv, ok := s.conversation(peer.Name); ok {
		s.appendNotice(conv, peer.Name+" unmuted you")
	}
	s.sink.Publish(notify.MuteChanged{Counterpart: peer.Name, Muted: false, ByCounterpart: true})
}

// --- rejections & notices --------------------------------------------------

// handleRejection surfaces a protocol rejection as a dismissible notice. The
// session and poll loop stay healthy; nothing is retried.
func (s *Store) handleRejection(env *wire.Envelope) {
	text := rejectionText(env)
	if env.Type == wire.TypeRoomAlreadyExists {
		if r, err := wire.RoomFromBody(env); err == nil && s.pending[r.Name] {
			delete(s.pending, r.Name)
		}
	}
	s.notice(text)
}

func rejectionText(env *wire.Envelope) string {
	switch env.Type {
	case wire.TypeRoomFull:
		return "the room is full"
	case wire.TypeRoomsMaxCount:
		return "the server's room limit is reached"
	case wire.TypeRoomBadName:
		return "that room name is not allowed"
	case wire.TypeRoomAlreadyExists:
		return "a room with that name already exists"
	case wire.TypeRoomNotFound:
		return "the room no longer exists"
	case wire.TypeUserNotFound:
		return "that user is no longer online"
	case wire.TypeUserNotInRoom:
		return "you are not a member of that room"
	case wire.TypeThrottling:
		return "you are sending messages too fast"
	}
	if env.Body != "" {
		return env.Body
	}
	return env.Type
}

// notice emits a notice into the active conversation if there is one, or as
// a global notice otherwise.
func (s *Store) notice(text string) {
	if conv, ok := s.conversation(s.active); ok {
		s.appendNotice(conv, text)
		return
	}
	s.sink.Publish(notify.NoticeAppended{Text: text, Dismissible: true})
}
