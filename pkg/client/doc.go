// Package client implements the chat protocol engine: session lifecycle,
// the single-flight update poller, envelope routing and the authoritative
// conversation-state store.
//
// Ownership model:
//   - Client is the one explicit context value; there are no package-level
//     singletons. One mutex serializes all state transitions, which is what
//     makes envelope dispatch strictly sequential.
//   - Rendering is an external collaborator fed through a notify.Sink; the
//     store never touches presentation concerns.
//   - Self-initiated actions go out through the Gateway fire-and-forget and
//     only take effect when the matching event returns via the poll stream.
//
// Timers (poll reschedule, heartbeat, reconnect backoff) come from an
// injected clock so the cooperative schedule is testable without real time.
package client
