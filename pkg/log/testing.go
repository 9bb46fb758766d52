package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// sink is the buffer shared by a TestLogger and everything derived from it
// with With, so a step logger and its parent write to the same place.
type sink struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	level Level
}

func (s *sink) enabled(l Level) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level <= l
}

// TestLogger records JSON lines in memory so tests can assert on what a
// pipeline step logged.
type TestLogger struct {
	sink *sink
	// key/value pairs from With, errors already rendered as strings
	ctx []any
}

// NewTestLogger returns a logger capturing records at level and above, and
// the buffer it writes to.
//
//	logger, buf := log.NewTestLogger(log.LevelDebug)
//	logger.Info("Rows dropped", log.RowsInKey, 100, log.RowsOutKey, 97)
func NewTestLogger(level Level) (*TestLogger, *bytes.Buffer) {
	s := &sink{level: level}
	return &TestLogger{sink: s}, &s.buf
}

func (t *TestLogger) Debug(msg string, fields ...any) { t.write(LevelDebug, msg, fields) }
func (t *TestLogger) Info(msg string, fields ...any)  { t.write(LevelInfo, msg, fields) }
func (t *TestLogger) Warn(msg string, fields ...any)  { t.write(LevelWarn, msg, fields) }
func (t *TestLogger) Error(msg string, fields ...any) { t.write(LevelError, msg, fields) }

func (t *TestLogger) With(fields ...any) Logger {
	ctx := append(append([]any(nil), t.ctx...), stringifyErrors(fields)...)
	return &TestLogger{sink: t.sink, ctx: ctx}
}

func (t *TestLogger) Enabled(_ context.Context, level Level) bool {
	return t.sink.enabled(level)
}

func stringifyErrors(fields []any) []any {
	out := make([]any, len(fields))
	for i, f := range fields {
		if err, ok := f.(error); ok {
			f = err.Error()
		}
		out[i] = f
	}
	return out
}

func (t *TestLogger) write(level Level, msg string, fields []any) {
	if !t.sink.enabled(level) {
		return
	}
	entry := map[string]any{"level": level.String(), "message": msg}
	if len(fields)%2 == 1 {
		if err, ok := fields[0].(error); ok {
			entry[ErrAttrKey] = err.Error()
			fields = fields[1:]
		}
	}
	pairs := append(append([]any(nil), t.ctx...), stringifyErrors(fields)...)
	for i := 0; i+1 < len(pairs); i += 2 {
		entry[fmt.Sprint(pairs[i])] = pairs[i+1]
	}
	line, err := json.Marshal(entry)
	if err != nil {
		line = []byte(fmt.Sprintf(`{"level":%q,"message":%q,"marshal_error":%q}`, level, msg, err))
	}

	t.sink.mu.Lock()
	t.sink.buf.Write(line)
	t.sink.buf.WriteByte('\n')
	t.sink.mu.Unlock()
}

func (t *TestLogger) snapshot() string {
	t.sink.mu.Lock()
	defer t.sink.mu.Unlock()
	return t.sink.buf.String()
}

// GetLogEntries decodes every captured line. Numbers come back as float64.
func (t *TestLogger) GetLogEntries() ([]map[string]any, error) {
	var entries []map[string]any
	for _, line := range strings.Split(t.snapshot(), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (t *TestLogger) ContainsMessage(message string) bool {
	return strings.Contains(t.snapshot(), message)
}

// ContainsField reports whether any entry has key set to value, compared after
// a JSON round trip.
func (t *TestLogger) ContainsField(key string, value any) bool {
	entries, err := t.GetLogEntries()
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if v, ok := entry[key]; ok && v == value {
			return true
		}
	}
	return false
}

// TestLoggerProvider hands out TestLoggers sharing one buffer. Install it with
// SetProvider to capture the output of code that calls GetLoggerWithName.
type TestLoggerProvider struct {
	logger *TestLogger
}

func NewTestLoggerProvider(level Level) (*TestLoggerProvider, *bytes.Buffer) {
	logger, buf := NewTestLogger(level)
	return &TestLoggerProvider{logger: logger}, buf
}

func (p *TestLoggerProvider) GetLogger() Logger { return p.logger }

func (p *TestLoggerProvider) GetLoggerWithName(name string) Logger {
	return p.logger.With(ComponentKey, name)
}

func (p *TestLoggerProvider) SetLevel(level Level) {
	p.logger.sink.mu.Lock()
	p.logger.sink.level = level
	p.logger.sink.mu.Unlock()
}
