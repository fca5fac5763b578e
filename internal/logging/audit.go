package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AuditEventType names a script-execution event.
type AuditEventType string

const (
	AuditScriptEnter      AuditEventType = "script_enter"
	AuditScriptExit       AuditEventType = "script_exit"
	AuditScriptRejected   AuditEventType = "script_rejected"
	AuditRecursionBound   AuditEventType = "recursion_bound"
	AuditRecursionRefused AuditEventType = "recursion_refused"
	AuditSessionEnd       AuditEventType = "session_end"
)

// AuditEvent is one JSON line in the audit log.
type AuditEvent struct {
	EventType AuditEventType
	Target    string
	Depth     int
	Success   bool
	Message   string
}

var (
	auditMu   sync.Mutex
	auditFile *os.File
	auditZap  *zap.Logger
)

// InitAudit opens the audit log. It is a no-op outside debug mode.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil
	}

	optsMu.RLock()
	dir := opts.Dir
	optsMu.RUnlock()

	date := time.Now().Format("2006-01-02")
	path := filepath.Join(dir, fmt.Sprintf("%s_audit.log", date))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.EpochMillisTimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(file), zapcore.InfoLevel)

	auditFile = file
	auditZap = zap.New(core)
	return nil
}

// CloseAudit closes the audit log file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditZap != nil {
		_ = auditZap.Sync()
		auditZap = nil
	}
	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit writes an event to the audit log if it is open.
func Audit(event AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditZap == nil {
		return
	}
	auditZap.Info(string(event.EventType),
		zap.String("target", event.Target),
		zap.Int("depth", event.Depth),
		zap.Bool("success", event.Success),
		zap.String("detail", event.Message),
	)
}
