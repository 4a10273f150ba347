package session

import "github.com/marmos91/dittomds/internal/logger"

// AuditSink receives a record for every request a connection completes,
// when the AuditLogging tunable is enabled. It is intentionally minimal:
// the session core doesn't know enough about any given protocol to audit
// anything richer than "who, what, how it went."
type AuditSink interface {
	Audit(rec AuditRecord)
}

// AuditRecord describes one completed request.
type AuditRecord struct {
	ConnectionID string
	PeerAddr     string
	RequestID    uint32
	Description  string
	Failed       bool
	DurationMs   float64
}

// LoggingAuditSink writes audit records through the structured logger.
// It's the default sink wired by pkg/server; a no-op sink can be
// substituted when audit logging is disabled to skip the allocation of
// AuditRecord entirely via the AuditLogging tunable check in egress.go.
type LoggingAuditSink struct{}

func (LoggingAuditSink) Audit(rec AuditRecord) {
	logger.Info("request completed",
		logger.ConnectionID(rec.ConnectionID),
		logger.ClientIP(rec.PeerAddr),
		logger.RequestID(rec.RequestID),
		logger.Status(boolToStatus(rec.Failed)),
		logger.StatusMsg(rec.Description),
		logger.DurationMs(rec.DurationMs),
	)
}

func boolToStatus(failed bool) int {
	if failed {
		return 1
	}
	return 0
}

// NoopAuditSink discards every record.
type NoopAuditSink struct{}

func (NoopAuditSink) Audit(AuditRecord) {}

var (
	_ AuditSink = LoggingAuditSink{}
	_ AuditSink = NoopAuditSink{}
)
