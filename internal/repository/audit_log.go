package repository

import (
	"SignalFuse/pkg/logger"
)

// LoggerAuditLog records one structured entry per job cycle.
type LoggerAuditLog struct {
	log *logger.Logger
}

// NewLoggerAuditLog creates an audit log backed by the app logger.
func NewLoggerAuditLog(log *logger.Logger) *LoggerAuditLog {
	return &LoggerAuditLog{log: log}
}

func (a *LoggerAuditLog) RecordRun(job, trigger string, processed, emitted, errors int) {
	a.log.Info("job run",
		logger.String("job", job),
		logger.String("trigger", trigger),
		logger.Int("processed", processed),
		logger.Int("emitted", emitted),
		logger.Int("errors", errors),
	)
}
