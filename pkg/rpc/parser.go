package rpc

import (
	"encoding/binary"
	"fmt"

	"github.com/marmos91/dittomds/internal/session"
)

// callHeaderSize is the fixed prefix of a call line: XID, procedure
// number, client protocol version, each a 4-byte big-endian word.
const callHeaderSize = 12

// Parser implements session.Parser for the line-delimited protocol,
// dispatching each procedure number to a registered Handler.
type Parser struct {
	handlers        map[uint32]Handler
	defaultHandler  Handler
	disconnectProcs map[uint32]bool
}

// NewParser builds a Parser. defaultHandler runs for any procedure number
// not present in handlers (typically replying with a "procedure
// unavailable" style failure); disconnectProcs names procedure numbers
// that terminate the session once executed.
func NewParser(handlers map[uint32]Handler, defaultHandler Handler, disconnectProcs ...uint32) *Parser {
	dp := make(map[uint32]bool, len(disconnectProcs))
	for _, p := range disconnectProcs {
		dp[p] = true
	}
	return &Parser{
		handlers:        handlers,
		defaultHandler:  defaultHandler,
		disconnectProcs: dp,
	}
}

// Parse strips frame's trailing newline (as sized by LineFramer.FrameLength)
// and decodes the call header and argument payload from what remains.
func (p *Parser) Parse(frame []byte) (session.Request, error) {
	if len(frame) == 0 || frame[len(frame)-1] != '\n' {
		return nil, fmt.Errorf("rpc: frame missing line terminator")
	}
	body := frame[:len(frame)-1]

	if len(body) < callHeaderSize {
		return nil, fmt.Errorf("rpc: call line too short: %d bytes", len(body))
	}

	xid := binary.BigEndian.Uint32(body[0:4])
	procedure := binary.BigEndian.Uint32(body[4:8])
	protoVersion := binary.BigEndian.Uint32(body[8:12])
	args := body[callHeaderSize:]

	handler, ok := p.handlers[procedure]
	if !ok {
		handler = p.defaultHandler
	}

	return NewCall(xid, procedure, protoVersion, args, handler, p.disconnectProcs[procedure]), nil
}

var _ session.Parser = (*Parser)(nil)
