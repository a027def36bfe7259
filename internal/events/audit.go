package events

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// AuditLog appends one line per state change to a log file.
type AuditLog struct {
	logger *logrus.Logger
	file   *os.File
}

// OpenAuditLog opens path for appending, creating its directory.
func OpenAuditLog(path string) (*AuditLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", path, err)
	}

	logger := logrus.New()
	logger.SetOutput(file)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		DisableColors:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return &AuditLog{logger: logger, file: file}, nil
}

// Handle is a bus Handler.
func (a *AuditLog) Handle(_ context.Context, event Event) {
	a.logger.WithField("event", string(event.Type())).Info(event.Message())
}

// Attach subscribes the audit log to every event on bus.
func (a *AuditLog) Attach(bus *Bus) {
	bus.SubscribeAll(a.Handle)
}

func (a *AuditLog) Close() error {
	return a.file.Close()
}
