package client

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/go-go-golems/parley/pkg/notify"
)

// Poller drives the repeating fetch → decode → dispatch → reschedule cycle.
// At most one request is ever in flight: the pending reschedule timer is
// cancelled before a new cycle starts, and inFlight refuses overlap. Batch
// envelopes dispatch strictly in array order under the client mutex, so a
// later envelope always observes the state an earlier one produced.
type Poller struct {
	c *Client

	timer    *clock.Timer
	inFlight bool
}

// scheduleLocked arms the next cycle after d, cancelling any pending timer.
func (p *Poller) scheduleLocked(d time.Duration) {
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = p.c.clk.AfterFunc(d, p.tick)
}

func (p *Poller) stopLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// tick runs one poll cycle. The network await happens outside the mutex so
// heartbeats and outbound sends stay live during a long poll; the response
// is dropped if the session generation moved on while it was in flight.
func (p *Poller) tick() {
	c := p.c
	c.mu.Lock()
	if c.state != notify.StateActive || p.inFlight {
		c.mu.Unlock()
		return
	}
	p.inFlight = true
	gen := c.gen
	session := c.session
	ctx := c.ctx
	c.mu.Unlock()

	envs, err := c.tr.Poll(ctx, session)

	c.mu.Lock()
	defer c.mu.Unlock()
	p.inFlight = false
	if gen != c.gen {
		// the session was superseded while this poll was in flight
		c.log.Debug().Msg("dropping poll response of a superseded session")
		return
	}
	if err != nil {
		c.sess.onDisconnectedLocked(err)
		return
	}
	for i := range envs {
		c.router.Dispatch(&envs[i])
	}
	p.scheduleLocked(c.cfg.PollInterval)
}
