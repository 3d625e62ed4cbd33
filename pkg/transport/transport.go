// Package transport implements the raw HTTP request/response primitives of
// the chat protocol: join, update (long poll), send and close. It carries no
// business logic; disconnect classification and recovery live in pkg/client.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/parley/pkg/wire"
)

// StatusSessionKilled is the distinguished update status meaning the session
// was torn down server-side and must not be resumed with the same token.
const StatusSessionKilled = 599

// ErrSessionKilled is returned by Poll when the server answers 599.
var ErrSessionKilled = errors.New("session killed by server")

// JoinRejectedError is returned by Join on a non-200 response.
type JoinRejectedError struct {
	Status int
}

func (e *JoinRejectedError) Error() string {
	return fmt.Sprintf("join rejected with status %d", e.Status)
}

// JoinResponse is the identity issued by a successful join.
type JoinResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Session string `json:"session"`
}

// Client talks to one chat server over plain HTTP request/response cycles.
type Client struct {
	baseURL string
	hc      *http.Client
	log     zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient builds a transport client for the given base URL
// (e.g. "http://localhost:8080/chat").
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		hc:      http.DefaultClient,
		log:     log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Join obtains a fresh identity and session token.
func (c *Client) Join(ctx context.Context) (JoinResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/join", nil)
	if err != nil {
		return JoinResponse{}, errors.Wrap(err, "building join request")
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return JoinResponse{}, errors.Wrap(err, "join request")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return JoinResponse{}, &JoinRejectedError{Status: resp.StatusCode}
	}
	var jr JoinResponse
	if err := json.NewDecoder(resp.Body).Decode(&jr); err != nil {
		return JoinResponse{}, errors.Wrap(err, "decoding join response")
	}
	return jr, nil
}

// Poll fetches the next batch of envelopes for the session. The call blocks
// until the server has something to deliver or gives up; a 599 answer maps to
// ErrSessionKilled, any other non-200 answer to a transport error.
func (c *Client) Poll(ctx context.Context, session string) ([]wire.Envelope, error) {
	u := c.baseURL + "/update?session=" + url.QueryEscape(session)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building update request")
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "update request")
	}
	defer func() { _ = resp.Body.Close() }()
	switch {
	case resp.StatusCode == StatusSessionKilled:
		return nil, ErrSessionKilled
	case resp.StatusCode != http.StatusOK:
		return nil, errors.Errorf("update returned status %d", resp.StatusCode)
	}
	var envs []wire.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&envs); err != nil {
		return nil, errors.Wrap(err, "decoding update response")
	}
	return envs, nil
}

// Send submits one outbound envelope. The ack body is not required for
// correctness and is discarded.
func (c *Client) Send(ctx context.Context, session string, env *wire.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "encoding envelope")
	}
	u := c.baseURL + "/send?session=" + url.QueryEscape(session)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "building send request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("send returned status %d", resp.StatusCode)
	}
	return nil
}

// Close tears the session down best-effort. Failures are logged and ignored;
// the server's own heartbeat timeout reclaims the session either way.
func (c *Client) Close(ctx context.Context, session string) {
	u := c.baseURL + "/close?session=" + url.QueryEscape(session)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Msg("session close failed")
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
