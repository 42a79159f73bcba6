// Package audit defines the AuditSink §6 collaborator: a fire-and-forget
// record of every verification event, detailed enough to reconstruct
// why a Verdict came out the way it did without returning that detail
// to an untrusted caller (pkderr's parse/validation detail lives here,
// not in the Verdict JSON). A reference slog-backed sink is provided
// for the demo layer, the same structured-logging idiom the teacher
// uses throughout httpapi and cmd (log/slog, JSON handler).
package audit

import (
	"context"
	"log/slog"
	"time"
)

// Event is one audit record. RequestID is a github.com/google/uuid v4,
// the teacher's own request-correlation identifier (originally minted
// for ESIA's OAuth2 `state` nonce in cmd/example, reused here to
// correlate every pa.Verify event back to one request).
type Event struct {
	Kind      string
	At        time.Time
	RequestID string
	Detail    map[string]any
}

// Sink receives audit events. Record must not block the caller on I/O;
// implementations that need durability should buffer internally.
type Sink interface {
	Record(ctx context.Context, event Event)
}

// SlogSink is a reference Sink that writes each Event as a structured
// slog line, matching the JSON-handler convention the teacher's
// cmd/cryptopro_extract_service and cmd/cryptopro_extract both set up
// via slog.SetDefault(slog.New(slog.NewJSONHandler(...))).
type SlogSink struct {
	Logger *slog.Logger
}

// NewSlogSink wraps logger, or slog.Default() if nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{Logger: logger}
}

// Record implements Sink.
func (s *SlogSink) Record(ctx context.Context, event Event) {
	args := make([]any, 0, 4+2*len(event.Detail))
	args = append(args, "kind", event.Kind, "request_id", event.RequestID, "at", event.At)
	for k, v := range event.Detail {
		args = append(args, k, v)
	}
	s.Logger.InfoContext(ctx, "pa audit event", args...)
}

// NopSink discards every event, for callers (unit tests) that have no
// use for an audit trail.
type NopSink struct{}

// Record implements Sink by doing nothing.
func (NopSink) Record(context.Context, Event) {}
