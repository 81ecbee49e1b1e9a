// Package audit implements corestore.AuditLog as an append-only JSONL
// file, grounded on internal/mcp/audit.go's AuditLogger: one entry per
// line, restrictive file permissions, nil-safe methods so callers never
// need to guard every call site.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cbie/core/internal/corestore"
)

// JSONLLog writes AuditEntry records to a JSONL file. Safe for
// concurrent use. A nil *JSONLLog is safe to use; all methods are
// no-ops on a nil receiver so it can be passed around unconditionally
// by components that treat auditing as best-effort.
type JSONLLog struct {
	mu   sync.Mutex
	file *os.File
}

// NewJSONLLog creates an audit log writing to dataDir/audit.jsonl. If
// the file cannot be created, it prints a warning to stderr and returns
// nil rather than failing analysis over a logging concern.
func NewJSONLLog(dataDir string) *JSONLLog {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot create audit log directory: %v\n", err)
		return nil
	}

	path := filepath.Join(dataDir, "audit.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot open audit log: %v\n", err)
		return nil
	}

	return &JSONLLog{file: f}
}

// Append implements corestore.AuditLog. Safe to call on a nil receiver.
func (l *JSONLLog) Append(_ context.Context, entry corestore.AuditEntry) error {
	if l == nil || l.file == nil {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: marshal entry: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("audit: write entry: %w", err)
	}
	return nil
}

// Close closes the underlying file. Safe to call on a nil receiver.
func (l *JSONLLog) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
