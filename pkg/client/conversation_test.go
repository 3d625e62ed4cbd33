package client

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendEvictsOldestBeyondCap(t *testing.T) {
	conv := newConversation("general", ConversationRoom, 3)
	for i := 0; i < 5; i++ {
		conv.append(Entry{Kind: EntryMessage, Body: fmt.Sprintf("msg-%d", i)})
	}

	entries := conv.Entries()
	require.Len(t, entries, 3)
	require.Equal(t, "msg-2", entries[0].Body)
	require.Equal(t, "msg-4", entries[2].Body)
}

func TestAppendAssignsIDWhenMissing(t *testing.T) {
	conv := newConversation("general", ConversationRoom, 10)
	e := conv.append(Entry{Kind: EntryMessage, Body: "hi"})
	require.NotEmpty(t, e.ID)

	kept := conv.append(Entry{ID: "fixed", Kind: EntryMessage, Body: "again"})
	require.Equal(t, "fixed", kept.ID)
}

func TestUpsertMemberMatchesByNameAndRefreshesID(t *testing.T) {
	conv := newConversation("general", ConversationRoom, 10)
	require.True(t, conv.upsertMember(Member{ID: "id-1", Name: "bob"}))
	require.False(t, conv.upsertMember(Member{ID: "id-2", Name: "bob"}))

	roster := conv.Roster()
	require.Len(t, roster, 1)
	require.Equal(t, "id-2", roster[0].ID)
}

func TestRemoveMember(t *testing.T) {
	conv := newConversation("general", ConversationRoom, 10)
	conv.upsertMember(Member{Name: "bob"})
	require.True(t, conv.removeMember("bob"))
	require.False(t, conv.removeMember("bob"))
	require.Empty(t, conv.Roster())
}

func TestResetHistoryDropsEntries(t *testing.T) {
	conv := newConversation("general", ConversationRoom, 10)
	conv.append(Entry{Kind: EntryMessage, Body: "hi"})
	conv.resetHistory()
	require.Empty(t, conv.Entries())
}
