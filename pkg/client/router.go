package client

import (
	"github.com/rs/zerolog"

	"github.com/go-go-golems/parley/pkg/wire"
)

// HandlerFunc processes one inbound envelope. Handlers run synchronously in
// batch order; a handler failure is a client defect, not a transport fault.
type HandlerFunc func(env *wire.Envelope)

// Router maps message-type tags to handlers. Exactly one handler runs per
// envelope; unknown tags are dropped so new server message types never crash
// an old client.
type Router struct {
	log      zerolog.Logger
	handlers map[string]HandlerFunc
}

func NewRouter(logger zerolog.Logger) *Router {
	return &Router{log: logger, handlers: map[string]HandlerFunc{}}
}

// Register binds a handler to a type tag, replacing any previous binding.
func (r *Router) Register(tag string, h HandlerFunc) {
	r.handlers[tag] = h
}

// Dispatch routes one envelope. A panicking handler is contained and logged
// loudly so the poll loop can keep attempting recovery.
func (r *Router) Dispatch(env *wire.Envelope) {
	h, ok := r.handlers[env.Type]
	if !ok {
		r.log.Debug().Str("type", env.Type).Msg("dropping unknown message type")
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Interface("panic", rec).Str("type", env.Type).
				Msg("message handler panicked; this is a bug")
		}
	}()
	h(env)
}
