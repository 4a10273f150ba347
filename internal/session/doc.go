// Package session implements the per-connection client protocol state
// machine of dittomds' metadata server: framing requests off a socket,
// handing them to an executor, serializing responses back, and managing
// flow control, back-pressure, inactivity timeouts, and orderly shutdown.
//
// The package is protocol-agnostic. It is driven entirely by five event
// codes (NetRead, NetWrote, NetError, InactivityTimeout, CmdDone) and talks
// to its surroundings only through the Framer, Parser, Request, Executor
// and NetConn interfaces defined in events.go.
package session
