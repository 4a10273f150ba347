package telemetry

import "go.opentelemetry.io/otel/attribute"

// Attribute keys recorded on the per-call span. Kept in dittomds' own
// "rpc." / "session." namespaces rather than the teacher's nfs-specific
// ones, since this server is protocol-agnostic.
const (
	AttrClientIP       = "client.ip"
	AttrConnectionID   = "session.connection_id"
	AttrRPCXID         = "rpc.xid"
	AttrRPCProcedure   = "rpc.procedure"
	AttrRPCProtoVer    = "rpc.protocol_version"
	AttrRPCStatus      = "rpc.status_failed"
	AttrRPCResultBytes = "rpc.result_bytes"
)

func ClientIP(addr string) attribute.KeyValue { return attribute.String(AttrClientIP, addr) }

func ConnectionID(id string) attribute.KeyValue { return attribute.String(AttrConnectionID, id) }

func RPCXID(xid uint32) attribute.KeyValue { return attribute.Int64(AttrRPCXID, int64(xid)) }

func RPCProcedure(proc uint32) attribute.KeyValue { return attribute.Int64(AttrRPCProcedure, int64(proc)) }

func RPCProtocolVersion(v uint32) attribute.KeyValue { return attribute.Int64(AttrRPCProtoVer, int64(v)) }

func RPCFailed(failed bool) attribute.KeyValue { return attribute.Bool(AttrRPCStatus, failed) }

func RPCResultBytes(n int) attribute.KeyValue { return attribute.Int(AttrRPCResultBytes, n) }
