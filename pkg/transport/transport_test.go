package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/parley/pkg/wire"
)

func TestJoinReturnsIdentityAndSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/join", r.URL.Path)
		_ = json.NewEncoder(w).Encode(JoinResponse{ID: "u1", Name: "ann", Session: "u1:abc"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/chat")
	jr, err := c.Join(context.Background())
	require.NoError(t, err)
	require.Equal(t, "u1", jr.ID)
	require.Equal(t, "ann", jr.Name)
	require.Equal(t, "u1:abc", jr.Session)
}

func TestJoinRejectedCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/chat")
	_, err := c.Join(context.Background())
	var rejected *JoinRejectedError
	require.ErrorAs(t, err, &rejected)
	require.Equal(t, http.StatusUnauthorized, rejected.Status)
}

func TestPollDecodesEnvelopeBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "sess-1", r.URL.Query().Get("session"))
		_ = json.NewEncoder(w).Encode([]wire.Envelope{
			{Type: wire.TypeRooms, Body: `[{"id":"r1","name":"default","type":"public"}]`},
			{Type: wire.TypeRoomMessage, Body: "hi"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/chat")
	envs, err := c.Poll(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, envs, 2)
	require.Equal(t, wire.TypeRooms, envs[0].Type)
	require.Equal(t, "hi", envs[1].Body)
}

func TestPollSessionKilled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(StatusSessionKilled)
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/chat")
	_, err := c.Poll(context.Background(), "dead")
	require.ErrorIs(t, err, ErrSessionKilled)
}

func TestPollOtherStatusIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/chat")
	_, err := c.Poll(context.Background(), "s")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrSessionKilled)
}

func TestSendPostsEnvelopeWithSession(t *testing.T) {
	var got wire.Envelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "s1", r.URL.Query().Get("session"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("{}"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/chat")
	err := c.Send(context.Background(), "s1", &wire.Envelope{
		Type: wire.TypeRoomMessage,
		To:   &wire.Identity{ID: "r1", Name: "default"},
		Body: "hello",
	})
	require.NoError(t, err)
	require.Equal(t, "hello", got.Body)
	require.Equal(t, "default", got.To.Name)
}

func TestSendNon200IsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/chat")
	err := c.Send(context.Background(), "s1", &wire.Envelope{Type: wire.TypeHeartbeat})
	require.Error(t, err)
}

func TestCloseIsBestEffort(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/chat")
	c.Close(context.Background(), "gone")
	require.Equal(t, int32(1), hits.Load())
}
