package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
)

// TestLogBuffer is a thread-safe buffer for capturing log output in tests.
type TestLogBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

// Write implements io.Writer for TestLogBuffer.
func (b *TestLogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns the buffer contents as a string.
func (b *TestLogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Reset clears the buffer contents.
func (b *TestLogBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// GetLogEntries parses the buffer contents as JSON log entries, one per line.
func (b *TestLogBuffer) GetLogEntries() ([]map[string]interface{}, error) {
	lines := strings.Split(b.String(), "\n")
	entries := make([]map[string]interface{}, 0, len(lines))

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// EntriesWithMessage returns the parsed entries whose msg equals msg.
func (b *TestLogBuffer) EntriesWithMessage(msg string) ([]map[string]interface{}, error) {
	entries, err := b.GetLogEntries()
	if err != nil {
		return nil, err
	}

	var matched []map[string]interface{}
	for _, entry := range entries {
		if entry[slog.MessageKey] == msg {
			matched = append(matched, entry)
		}
	}
	return matched, nil
}

// NewTestLogger returns a debug-level JSON logger writing into a fresh buffer.
func NewTestLogger() (*slog.Logger, *TestLogBuffer) {
	buf := &TestLogBuffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}
