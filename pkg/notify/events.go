// Package notify carries typed state-change events from the protocol engine
// to the rendering collaborator. The engine publishes; renderers subscribe
// through a Sink. Events are plain data so they can be marshalled onto a
// watermill bus unchanged.
package notify

import "time"

// Connection states surfaced to the renderer.
const (
	StateJoining      = "joining"
	StateActive       = "active"
	StateReconnecting = "reconnecting"
	StateFailed       = "failed"
	StateClosed       = "closed"
)

// Event is one state-change notification.
type Event interface {
	NotifyKind() string
}

// RoomInfo mirrors a stored room for display.
type RoomInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Permanent bool   `json:"permanent,omitempty"`
}

// MemberInfo mirrors one roster entry.
type MemberInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Muted bool   `json:"muted,omitempty"`
}

// AttachmentInfo mirrors an attachment's URL pair.
type AttachmentInfo struct {
	OriginalURL string `json:"original_url"`
	MinifiedURL string `json:"minified_url"`
}

// EntryInfo mirrors one history entry. Timestamp is display metadata only;
// entry order is receipt order.
type EntryInfo struct {
	ID          string           `json:"id"`
	Kind        string           `json:"kind"`
	From        string           `json:"from,omitempty"`
	Self        bool             `json:"self,omitempty"`
	Body        string           `json:"body"`
	Attachments []AttachmentInfo `json:"attachments,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}

// ConnectionStateChanged reports session lifecycle transitions. Terminal is
// set when automatic recovery has been exhausted and only a restart helps.
type ConnectionStateChanged struct {
	State    string `json:"state"`
	Attempt  int    `json:"attempt,omitempty"`
	Terminal bool   `json:"terminal,omitempty"`
}

func (ConnectionStateChanged) NotifyKind() string { return "connection.state" }

// RoomListUpdated reports the full reconciled room list.
type RoomListUpdated struct {
	Rooms []RoomInfo `json:"rooms"`
}

func (RoomListUpdated) NotifyKind() string { return "room.list" }

type ConversationOpened struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

func (ConversationOpened) NotifyKind() string { return "conversation.opened" }

type ConversationActivated struct {
	Name string `json:"name"`
}

func (ConversationActivated) NotifyKind() string { return "conversation.activated" }

type ConversationClosed struct {
	Name string `json:"name"`
}

func (ConversationClosed) NotifyKind() string { return "conversation.closed" }

// MessageAppended reports a chat message added to a conversation's history.
type MessageAppended struct {
	Conversation string    `json:"conversation"`
	Entry        EntryInfo `json:"entry"`
}

func (MessageAppended) NotifyKind() string { return "message.appended" }

// NoticeAppended reports an informational notice. Conversation may be empty
// for notices not tied to an open tab (rejections, throttling).
type NoticeAppended struct {
	Conversation string `json:"conversation,omitempty"`
	Text         string `json:"text"`
	Dismissible  bool   `json:"dismissible"`
}

func (NoticeAppended) NotifyKind() string { return "notice.appended" }

type RosterUpdated struct {
	Conversation string       `json:"conversation"`
	Members      []MemberInfo `json:"members"`
}

func (RosterUpdated) NotifyKind() string { return "roster.updated" }

// MuteChanged reports a directional mute-state change. ByCounterpart is true
// when the counterpart muted or unmuted the local user.
type MuteChanged struct {
	Counterpart   string `json:"counterpart"`
	Muted         bool   `json:"muted"`
	ByCounterpart bool   `json:"by_counterpart,omitempty"`
}

func (MuteChanged) NotifyKind() string { return "mute.changed" }

// PendingCreationResolved reports that a locally requested room creation was
// confirmed by the server.
type PendingCreationResolved struct {
	Name string `json:"name"`
}

func (PendingCreationResolved) NotifyKind() string { return "pending.resolved" }
