package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is a single security event emitted by the auth layer.
type Event struct {
	Timestamp   time.Time         `json:"timestamp"`
	EventType   string            `json:"event_type"`
	Identifier  string            `json:"identifier,omitempty"`
	UserID      string            `json:"user_id,omitempty"`
	MFASession  string            `json:"mfa_session,omitempty"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	Success     bool              `json:"success"`
	Error       string            `json:"error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Sink receives emitted events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes events into a buffered channel. Intended for tests and
// hosts that want to drain events themselves.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// ZapSink logs events through a zap logger at info (success) or warn
// (failure) level.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger}
}

func (s *ZapSink) Emit(_ context.Context, event Event) {
	if s == nil || s.logger == nil {
		return
	}

	fields := []zap.Field{
		zap.Time("timestamp", event.Timestamp),
		zap.Bool("success", event.Success),
	}
	if event.Identifier != "" {
		fields = append(fields, zap.String("identifier", event.Identifier))
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.MFASession != "" {
		fields = append(fields, zap.String("mfa_session", event.MFASession))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	for key, value := range event.Metadata {
		fields = append(fields, zap.String(key, value))
	}

	if event.Success {
		s.logger.Info(event.EventType, fields...)
		return
	}
	s.logger.Warn(event.EventType, fields...)
}
