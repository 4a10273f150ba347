// Package rpc implements the line-delimited RPC wire protocol the session
// core frames and parses: each request is one newline-terminated line
// carrying a fixed binary call header (XID, procedure number, client
// protocol version) followed by opaque arguments; each response is the
// same shape in reverse.
//
// It is deliberately generic — this is the framing/call envelope the
// session core needs, not a full NFS or any other specific ONC-RPC
// program's procedure set.
package rpc

import (
	"bytes"
	"fmt"

	"github.com/marmos91/dittomds/internal/session"
)

// MaxRPCHeaderLen bounds how many bytes of unterminated input the framer
// will hold onto while waiting for a newline. A client that never sends
// one is either wedged or hostile; either way, buffering its bytes
// forever is not an option.
const MaxRPCHeaderLen = 4096

// LineFramer implements session.Framer for the line-delimited protocol:
// a frame is everything up to and including the first '\n'.
type LineFramer struct{}

// FrameLength reports the length of the first complete line in buf,
// delimiter included. If no newline has arrived yet and buf has already
// grown past MaxRPCHeaderLen, the header is treated as malformed or
// oversized and reported as a protocol-fatal error rather than waiting
// for more bytes that may never come.
func (LineFramer) FrameLength(buf []byte) (length int, ok bool, err error) {
	if i := bytes.IndexByte(buf, '\n'); i >= 0 {
		return i + 1, true, nil
	}
	if len(buf) > MaxRPCHeaderLen {
		return 0, false, fmt.Errorf("rpc: %d bytes buffered with no line terminator, exceeds max header length %d",
			len(buf), MaxRPCHeaderLen)
	}
	return 0, false, nil
}

var _ session.Framer = LineFramer{}
