package helper

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// logSink is shared by a LogHandlerSpy and every handler derived from it with WithAttrs.
type logSink struct {
	mu      sync.Mutex
	records []slog.Record
	echo    bool
}

// LogHandlerSpy is a slog.Handler that keeps every record for assertions.
// Attributes added with slog.Logger.With are kept on the records, so HasLogWithAttr sees them.
type LogHandlerSpy struct {
	sink  *logSink
	attrs []slog.Attr
}

// NewLogHandlerSpy creates an empty LogHandlerSpy.
// With echo set, records are also written to stdout as JSON, which helps when debugging a test.
func NewLogHandlerSpy(echo bool) *LogHandlerSpy {
	return &LogHandlerSpy{sink: &logSink{echo: echo}}
}

// NewSpyLogger returns a slog.Logger writing into a fresh LogHandlerSpy.
func NewSpyLogger() (*slog.Logger, *LogHandlerSpy) {
	spy := NewLogHandlerSpy(false)

	return slog.New(spy), spy
}

func (s *LogHandlerSpy) Handle(ctx context.Context, record slog.Record) error {
	kept := record.Clone()
	kept.AddAttrs(s.attrs...)

	s.sink.mu.Lock()
	defer s.sink.mu.Unlock()

	s.sink.records = append(s.sink.records, kept)

	if s.sink.echo {
		_ = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}).Handle(ctx, kept)
	}

	return nil
}

// Enabled captures every level.
func (s *LogHandlerSpy) Enabled(context.Context, slog.Level) bool {
	return true
}

func (s *LogHandlerSpy) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogHandlerSpy{sink: s.sink, attrs: append(append([]slog.Attr(nil), s.attrs...), attrs...)}
}

// WithGroup is ignored; attributes of groups are recorded ungrouped.
func (s *LogHandlerSpy) WithGroup(string) slog.Handler {
	return s
}

// RecordCount returns the number of captured records.
func (s *LogHandlerSpy) RecordCount() int {
	s.sink.mu.Lock()
	defer s.sink.mu.Unlock()

	return len(s.sink.records)
}

func (s *LogHandlerSpy) matching(level slog.Level, message string) []slog.Record {
	s.sink.mu.Lock()
	defer s.sink.mu.Unlock()

	var matching []slog.Record
	for _, record := range s.sink.records {
		if record.Level == level && record.Message == message {
			matching = append(matching, record)
		}
	}

	return matching
}

// CountLogs returns how many records with level and message were captured.
func (s *LogHandlerSpy) CountLogs(level slog.Level, message string) int {
	return len(s.matching(level, message))
}

func (s *LogHandlerSpy) HasDebugLog(message string) bool {
	return s.CountLogs(slog.LevelDebug, message) > 0
}

func (s *LogHandlerSpy) HasInfoLog(message string) bool {
	return s.CountLogs(slog.LevelInfo, message) > 0
}

func (s *LogHandlerSpy) HasWarnLog(message string) bool {
	return s.CountLogs(slog.LevelWarn, message) > 0
}

func (s *LogHandlerSpy) HasErrorLog(message string) bool {
	return s.CountLogs(slog.LevelError, message) > 0
}

// HasLogWithAttr reports whether a record with level and message carries attribute key
// rendering as value.
func (s *LogHandlerSpy) HasLogWithAttr(level slog.Level, message string, key string, value string) bool {
	for _, record := range s.matching(level, message) {
		found := false

		record.Attrs(func(attr slog.Attr) bool {
			found = attr.Key == key && attr.Value.String() == value
			return !found
		})

		if found {
			return true
		}
	}

	return false
}
