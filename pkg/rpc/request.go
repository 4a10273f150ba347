package rpc

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/marmos91/dittomds/internal/session"
)

// Status is the outcome of an executed call, encoded into the reply
// envelope's status word.
type Status uint32

const (
	StatusSuccess Status = 0
	StatusFailure Status = 1
)

// Handler executes one call's procedure and returns the opaque result
// payload to serialize back, along with whether it failed.
type Handler func(ctx context.Context, call *Call) (result []byte, failed bool)

// Call is the generic request envelope this package hands to
// internal/session: a transaction ID for correlation, the procedure
// number that selected a Handler, the client's advertised protocol
// version, and the opaque argument payload.
type Call struct {
	xid             uint32
	procedure       uint32
	protocolVersion uint32
	disconnect      bool
	args            []byte

	handler Handler

	status Status
	result []byte
}

// NewCall constructs a Call. disconnect marks a procedure number that, by
// convention, signals the client is ending the session (e.g. an UNMOUNT or
// LOGOUT-equivalent procedure) so the connection core stops framing
// further input once it's submitted.
func NewCall(xid, procedure, protocolVersion uint32, args []byte, handler Handler, disconnect bool) *Call {
	return &Call{
		xid:             xid,
		procedure:       procedure,
		protocolVersion: protocolVersion,
		disconnect:      disconnect,
		args:            args,
		handler:         handler,
	}
}

func (c *Call) Describe() string {
	return fmt.Sprintf("proc=%d xid=%d", c.procedure, c.xid)
}

func (c *Call) RequestID() uint32 { return c.xid }

func (c *Call) ProtocolVersion() uint32 { return c.protocolVersion }

func (c *Call) Disconnect() bool { return c.disconnect }

func (c *Call) Execute(ctx context.Context) {
	if c.handler == nil {
		c.status = StatusFailure
		return
	}
	result, failed := c.handler(ctx, c)
	c.result = result
	if failed {
		c.status = StatusFailure
	} else {
		c.status = StatusSuccess
	}
}

func (c *Call) Failed() bool { return c.status == StatusFailure }

// Args returns the opaque argument payload, for a Handler to decode.
func (c *Call) Args() []byte { return c.args }

// ResponseSize returns the exact size WriteResponse will write: the xid,
// the status word, the result payload, and the trailing line terminator.
func (c *Call) ResponseSize() int {
	return 4 + 4 + len(c.result) + 1
}

// WriteResponse serializes a line-delimited reply: [xid][status][result]
// followed by a newline, mirroring the request line's own shape.
func (c *Call) WriteResponse(dst []byte) (int, error) {
	need := c.ResponseSize()
	if len(dst) < need {
		return 0, fmt.Errorf("rpc: response buffer too small: have %d, need %d", len(dst), need)
	}

	binary.BigEndian.PutUint32(dst[0:4], c.xid)
	binary.BigEndian.PutUint32(dst[4:8], uint32(c.status))
	copy(dst[8:], c.result)
	dst[need-1] = '\n'

	return need, nil
}

var _ session.Request = (*Call)(nil)
