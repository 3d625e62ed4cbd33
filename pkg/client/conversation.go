package client

import (
	"time"

	"github.com/google/uuid"

	"github.com/go-go-golems/parley/pkg/wire"
)

// Conversation kinds.
const (
	ConversationRoom    = "room"
	ConversationPrivate = "private"
)

// Entry kinds.
const (
	EntryMessage = "message"
	EntryNotice  = "notice"
)

// Entry is one history item: a chat message or a local system notice.
// Entries are ordered by receipt; Timestamp is display metadata only.
type Entry struct {
	ID          string
	Kind        string
	From        wire.Identity
	Self        bool
	Body        string
	Attachments []wire.Attachment
	Timestamp   time.Time
}

// Member is one roster entry of a conversation.
type Member struct {
	ID    string
	Name  string
	Muted bool
}

// PendingInput is the not-yet-sent draft of a conversation. It is owned by
// one conversation and never shared.
type PendingInput struct {
	Text        string
	Attachments []wire.Attachment
}

// Conversation is one open tab, bound 1:1 to a room or private counterpart
// by name. Created on first join/invite, destroyed only by an explicit local
// close.
type Conversation struct {
	Name        string
	Kind        string
	Counterpart wire.Identity

	historyCap int
	entries    []Entry
	roster     []Member
	input      PendingInput
}

func newConversation(name, kind string, historyCap int) *Conversation {
	return &Conversation{Name: name, Kind: kind, historyCap: historyCap}
}

// append adds an entry, evicting the oldest entries beyond the cap. Order is
// never rewritten.
func (c *Conversation) append(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	c.entries = append(c.entries, e)
	if over := len(c.entries) - c.historyCap; over > 0 {
		c.entries = append(c.entries[:0], c.entries[over:]...)
	}
	return e
}

// resetHistory drops all entries before a history replay rebuilds them.
func (c *Conversation) resetHistory() {
	c.entries = nil
}

// Entries returns a copy of the history in receipt order.
func (c *Conversation) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// upsertMember adds a member or refreshes the stored id of an existing one.
// Identity for matching is the stable name; ids are session-scoped.
func (c *Conversation) upsertMember(m Member) bool {
	for i := range c.roster {
		if c.roster[i].Name == m.Name {
			c.roster[i].ID = m.ID
			return false
		}
	}
	c.roster = append(c.roster, m)
	return true
}

func (c *Conversation) removeMember(name string) bool {
	for i := range c.roster {
		if c.roster[i].Name == name {
			c.roster = append(c.roster[:i], c.roster[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Conversation) member(name string) (Member, bool) {
	for _, m := range c.roster {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// Roster returns a copy of the member list in insertion order.
func (c *Conversation) Roster() []Member {
	out := make([]Member, len(c.roster))
	copy(out, c.roster)
	return out
}

// Input returns the pending draft.
func (c *Conversation) Input() PendingInput { return c.input }
