package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// These keys are designed to be protocol-agnostic: dittomds' connection core
// doesn't know or care whether the bytes on the wire are NFS, SMB, or
// something else entirely.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Protocol & Operation (protocol-agnostic)
	// ========================================================================
	KeyProtocol  = "protocol"   // Protocol type: nfs, smb, etc.
	KeyProcedure = "procedure"  // Operation/procedure name as reported by the request
	KeyStatus    = "status"     // Operation status code (protocol-specific)
	KeyStatusMsg = "status_msg" // Human-readable status message

	// ========================================================================
	// Client & Connection Identification
	// ========================================================================
	KeyClientIP     = "client_ip"     // Client IP address
	KeyConnectionID = "connection_id" // Connection identifier (roster key)
	KeyRequestID    = "request_id"    // Protocol-specific request ID (XID, MessageID)

	// ========================================================================
	// Session-core state (this repository's own domain)
	// ========================================================================
	KeyInFlight         = "in_flight"          // Connection's in-flight request counter
	KeyReentranceDepth  = "reentrance_depth"   // Event handler re-entrance depth
	KeyAffinity         = "affinity"           // Reactor loop a connection/request is pinned to
	KeyProtoVersion     = "proto_version"      // Client-advertised protocol version
	KeyMinProtoVersion  = "min_proto_version"  // Connection's remembered minimum protocol version
	KeyReadAhead        = "read_ahead"         // Current read-ahead byte limit
	KeyPendingBytes     = "pending_bytes"      // Bytes queued for write
	KeyDisconnectPending = "disconnect_pending" // Whether the connection is draining to close

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // Numeric error code
	KeyOperation  = "operation"   // Sub-operation type for complex operations
)

// ----------------------------------------------------------------------------
// Distributed Tracing
// ----------------------------------------------------------------------------

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// ----------------------------------------------------------------------------
// Protocol & Operation
// ----------------------------------------------------------------------------

// Protocol returns a slog.Attr for protocol type (nfs, smb, etc.)
func Protocol(proto string) slog.Attr {
	return slog.String(KeyProtocol, proto)
}

// Procedure returns a slog.Attr for operation/procedure name
func Procedure(name string) slog.Attr {
	return slog.String(KeyProcedure, name)
}

// Status returns a slog.Attr for operation status code
func Status(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

// StatusMsg returns a slog.Attr for human-readable status message
func StatusMsg(msg string) slog.Attr {
	return slog.String(KeyStatusMsg, msg)
}

// ----------------------------------------------------------------------------
// Client & Connection Identification
// ----------------------------------------------------------------------------

// ClientIP returns a slog.Attr for client IP address
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// ConnectionID returns a slog.Attr for connection identifier
func ConnectionID(id string) slog.Attr {
	return slog.String(KeyConnectionID, id)
}

// RequestID returns a slog.Attr for protocol-specific request ID
func RequestID(id uint32) slog.Attr {
	return slog.Any(KeyRequestID, id)
}

// RequestIDStr returns a slog.Attr for request ID as string
func RequestIDStr(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// ----------------------------------------------------------------------------
// Session-core state
// ----------------------------------------------------------------------------

// InFlight returns a slog.Attr for the in-flight request counter
func InFlight(n int32) slog.Attr {
	return slog.Int64(KeyInFlight, int64(n))
}

// ReentranceDepth returns a slog.Attr for the event handler's re-entrance depth
func ReentranceDepth(depth int) slog.Attr {
	return slog.Int(KeyReentranceDepth, depth)
}

// Affinity returns a slog.Attr for the reactor loop a connection is pinned to
func Affinity(id int) slog.Attr {
	return slog.Int(KeyAffinity, id)
}

// ProtoVersion returns a slog.Attr for a client-advertised protocol version
func ProtoVersion(v uint32) slog.Attr {
	return slog.Any(KeyProtoVersion, v)
}

// MinProtoVersion returns a slog.Attr for the connection's remembered minimum protocol version
func MinProtoVersion(v uint32) slog.Attr {
	return slog.Any(KeyMinProtoVersion, v)
}

// ReadAhead returns a slog.Attr for the current read-ahead byte limit
func ReadAhead(n int) slog.Attr {
	return slog.Int(KeyReadAhead, n)
}

// PendingBytes returns a slog.Attr for bytes currently queued for write
func PendingBytes(n int) slog.Attr {
	return slog.Int(KeyPendingBytes, n)
}

// DisconnectPending returns a slog.Attr for the connection's disconnect-pending flag
func DisconnectPending(v bool) slog.Attr {
	return slog.Bool(KeyDisconnectPending, v)
}

// ----------------------------------------------------------------------------
// Operation Metadata
// ----------------------------------------------------------------------------

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for numeric error code
func ErrorCode(code int) slog.Attr {
	return slog.Int(KeyErrorCode, code)
}

// Operation returns a slog.Attr for sub-operation type
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}
