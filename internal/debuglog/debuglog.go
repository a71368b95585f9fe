// Package debuglog is an opt-in diagnostic log. Nothing is written unless a
// path is configured (debug_log / TASKBOARD_DEBUG_LOG).
package debuglog

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Discard is the logger used when debugging is off.
var Discard = log.New(io.Discard, "", 0)

// Open appends to path. An empty path yields Discard and a no-op closer.
func Open(path string) (*log.Logger, io.Closer, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Discard, io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return log.New(f, "taskboard ", log.LstdFlags|log.Lmicroseconds), f, nil
}

// Or returns l, or Discard when l is nil.
func Or(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard
	}
	return l
}
