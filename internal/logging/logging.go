// Package logging builds the process logger: a text log file (or stdout),
// plus optional OpenTelemetry and Graylog outputs, with the current session
// added to every record.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, appName string, start time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", appName, start.Format("20060102_150405")),
	)
}

// OpenLogFile creates logsDir if needed and opens a new log file in it.
func OpenLogFile(logsDir, appName string, start time.Time) (*os.File, error) {
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("create logs directory: %w", err)
	}
	path := LogFilePath(logsDir, appName, start)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
