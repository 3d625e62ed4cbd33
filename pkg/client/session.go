package client

import (
	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/go-go-golems/parley/pkg/notify"
	"github.com/go-go-golems/parley/pkg/transport"
	"github.com/go-go-golems/parley/pkg/wire"
)

// SessionManager owns the session token lifecycle: join, heartbeat, and
// bounded reconnection after a disconnect. The state machine is
// Idle → Joining → Active ⇄ Reconnecting → Active | Failed; Reconnecting is
// only ever entered from Active.
type SessionManager struct {
	c *Client

	attempts  int
	heartbeat *clock.Timer
	retry     *clock.Timer
}

// applySessionLocked installs a freshly joined identity and token and brings
// the session to Active. With useCache set (initial join only), a previously
// cached token is preferred over the issued one so a restart can resume an
// unexpired session.
func (c *Client) applySessionLocked(resp transport.JoinResponse, useCache bool) {
	identity := wire.Identity{ID: resp.ID, Name: resp.Name}
	session := resp.Session
	if c.tokens != nil {
		if useCache {
			if cached, err := c.tokens.Load(); err == nil && cached != "" {
				session = cached
			} else if err := c.tokens.Save(session); err != nil {
				c.log.Debug().Err(err).Msg("failed to cache session token")
			}
		} else if err := c.tokens.Save(session); err != nil {
			c.log.Debug().Err(err).Msg("failed to cache session token")
		}
	}

	c.identity = identity
	c.session = session
	c.gen++
	c.state = notify.StateActive
	c.sess.attempts = 0
	c.gateway.setSession(identity, session)
	c.store.setSelf(identity)
	c.sess.startHeartbeatLocked()
	c.sink.Publish(notify.ConnectionStateChanged{State: notify.StateActive})
	c.log.Info().Str("id", identity.ID).Str("name", identity.Name).Msg("session active")
}

// onDisconnectedLocked is invoked by the poller on a terminal poll status or
// transport failure. It cancels both timers, invalidates any in-flight poll
// continuation, and schedules a bounded rejoin.
func (s *SessionManager) onDisconnectedLocked(err error) {
	c := s.c
	if c.state != notify.StateActive {
		return
	}
	c.log.Warn().Err(err).Msg("session disconnected")

	s.stopHeartbeatLocked()
	c.poller.stopLocked()
	c.gen++

	// 599 means the token is dead; never offer it again
	if errors.Is(err, transport.ErrSessionKilled) && c.tokens != nil {
		if cerr := c.tokens.Clear(); cerr != nil {
			c.log.Debug().Err(cerr).Msg("failed to clear cached session token")
		}
	}
	c.session = ""
	c.gateway.setSession(c.identity, "")

	c.state = notify.StateReconnecting
	// the next room announce must re-issue joins: all ids are reissued with
	// the fresh session
	c.store.rejoinPending = true
	s.scheduleRetryLocked()
}

// scheduleRetryLocked arms one rejoin attempt after the fixed backoff, or
// declares the session terminally failed once the bound is exhausted.
func (s *SessionManager) scheduleRetryLocked() {
	c := s.c
	if s.attempts >= c.cfg.ReconnectAttempts {
		c.state = notify.StateFailed
		c.log.Error().Int("attempts", s.attempts).Msg("reconnect attempts exhausted")
		c.sink.Publish(notify.ConnectionStateChanged{State: notify.StateFailed, Terminal: true})
		return
	}
	s.attempts++
	c.sink.Publish(notify.ConnectionStateChanged{State: notify.StateReconnecting, Attempt: s.attempts})
	if s.retry != nil {
		s.retry.Stop()
	}
	s.retry = c.clk.AfterFunc(c.cfg.ReconnectBackoff, s.retryTick)
}

// retryTick performs one fresh join. It never resumes the old poll cycle:
// on success the poll loop is restarted and the room list re-requested.
func (s *SessionManager) retryTick() {
	c := s.c
	c.mu.Lock()
	if c.state != notify.StateReconnecting {
		c.mu.Unlock()
		return
	}
	ctx := c.ctx
	attempt := s.attempts
	c.mu.Unlock()

	resp, err := c.tr.Join(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != notify.StateReconnecting {
		return
	}
	if err != nil {
		c.log.Warn().Err(err).Int("attempt", attempt).Msg("rejoin failed")
		s.scheduleRetryLocked()
		return
	}
	c.applySessionLocked(resp, false)
	c.poller.scheduleLocked(0)
	c.gateway.RequestRoomList()
}

func (s *SessionManager) startHeartbeatLocked() {
	c := s.c
	if s.heartbeat != nil {
		s.heartbeat.Stop()
	}
	s.heartbeat = c.clk.AfterFunc(c.cfg.HeartbeatInterval, s.heartbeatTick)
}

func (s *SessionManager) stopHeartbeatLocked() {
	if s.heartbeat != nil {
		s.heartbeat.Stop()
		s.heartbeat = nil
	}
}

func (s *SessionManager) stopRetryLocked() {
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
}

// heartbeatTick sends the no-op keepalive and re-arms itself. Send failures
// are swallowed: the next poll cycle surfaces real disconnection.
func (s *SessionManager) heartbeatTick() {
	c := s.c
	c.mu.Lock()
	if c.state != notify.StateActive {
		c.mu.Unlock()
		return
	}
	s.heartbeat = c.clk.AfterFunc(c.cfg.HeartbeatInterval, s.heartbeatTick)
	c.mu.Unlock()
	c.gateway.Heartbeat()
}
