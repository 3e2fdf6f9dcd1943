// Package audit records every detection and verification decision so each
// one can be traced back to the specific matched indicators that produced
// it. Two sinks ship by default: append-only JSONL for single-node
// deployments and Postgres for shared ones.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Kind classifies an audit event.
type Kind string

const (
	KindDetection    Kind = "detection"
	KindConversation Kind = "conversation"
	KindCrisis       Kind = "crisis"
	KindVerification Kind = "verification"
)

// Event is one auditable decision.
type Event struct {
	Timestamp      time.Time `json:"timestamp"`
	Kind           Kind      `json:"kind"`
	ConversationID string    `json:"conversation_id,omitempty"`

	// Decision summary
	Level        string `json:"level,omitempty"`
	CrisisType   string `json:"crisis_type,omitempty"`
	TriggerCount int    `json:"trigger_count,omitempty"`
	Blocked      bool   `json:"blocked,omitempty"`

	// Traceability: the matched indicators / violated VRs behind the decision.
	Triggers   []string `json:"triggers,omitempty"`
	Violations []string `json:"violations,omitempty"`
}

// Sink receives audit events. Implementations must be safe for concurrent
// use; Record failures are the caller's to log, never to panic over.
type Sink interface {
	Record(ctx context.Context, ev Event) error
	Close() error
}

// NopSink discards events. Used when auditing is disabled.
type NopSink struct{}

func (NopSink) Record(context.Context, Event) error { return nil }
func (NopSink) Close() error                        { return nil }

// FileSink appends events as JSON lines to a local file.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileSink opens (or creates) the audit log file for appending.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	return &FileSink{file: f, enc: json.NewEncoder(f)}, nil
}

// Record appends one event. Events are written whole-line under a lock so
// concurrent records never interleave.
func (s *FileSink) Record(_ context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(ev); err != nil {
		return fmt.Errorf("audit: write event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

var (
	_ Sink = (*FileSink)(nil)
	_ Sink = NopSink{}
)
