// Package engine composes the detection pipeline behind one facade: scan a
// message, fold it into conversation state, resolve crisis resources, and
// verify candidate responses. Every decision is recorded to the audit sink;
// audit failures are logged and never change a protection decision.
package engine

import (
	"context"
	"log"

	"github.com/guardline-ai/guardline/pkg/audit"
	"github.com/guardline-ai/guardline/pkg/catalog"
	"github.com/guardline-ai/guardline/pkg/conversation"
	"github.com/guardline-ai/guardline/pkg/crisis"
	"github.com/guardline-ai/guardline/pkg/detect"
	"github.com/guardline-ai/guardline/pkg/verify"
)

// Engine wires the catalog, detector, tracker, resolver and verifier into
// one entry point. Safe for concurrent use.
type Engine struct {
	catalog  *catalog.Catalog
	detector *detect.Detector
	tracker  *conversation.Tracker
	resolver *crisis.Resolver
	verifier *verify.Verifier
	sink     audit.Sink
}

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithCatalog replaces the built-in indicator catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(e *Engine) {
		e.catalog = c
	}
}

// WithTracker injects a preconfigured conversation tracker (store backend,
// history window, amplification threshold, wait delay).
func WithTracker(t *conversation.Tracker) Option {
	return func(e *Engine) {
		e.tracker = t
	}
}

// WithAuditSink sets where decisions are recorded (default: discard).
func WithAuditSink(s audit.Sink) Option {
	return func(e *Engine) {
		e.sink = s
	}
}

// New creates an engine. Zero options yields a fully working single-node
// engine: built-in catalog, in-memory sessions, no audit trail.
func New(opts ...Option) *Engine {
	e := &Engine{
		sink: audit.NopSink{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.catalog == nil {
		e.catalog = catalog.Default()
	}
	if e.tracker == nil {
		e.tracker = conversation.NewTracker()
	}
	e.detector = detect.NewDetector(e.catalog)
	e.resolver = crisis.NewResolver(e.catalog)
	e.verifier = verify.NewVerifier(e.catalog)
	return e
}

// Detect classifies one message in isolation, with no conversation state.
func (e *Engine) Detect(ctx context.Context, text string) *detect.DetectionResult {
	result := e.detector.Detect(text)
	e.record(ctx, audit.Event{
		Kind:         audit.KindDetection,
		Level:        result.Level.String(),
		TriggerCount: result.TriggerCount,
		Triggers:     triggerNames(result),
	})
	return result
}

// Track classifies a user message and folds it into the conversation,
// returning both the per-message result and the updated session state.
// aiTurn is the assistant turn paired with this exchange; pass "" when the
// response has not been generated yet.
func (e *Engine) Track(ctx context.Context, conversationID, userText, aiTurn string) (*detect.DetectionResult, *conversation.State, error) {
	result := e.detector.Detect(userText)
	state, err := e.tracker.Apply(ctx, conversationID, result, aiTurn)
	if err != nil {
		return nil, nil, err
	}
	e.record(ctx, audit.Event{
		Kind:           audit.KindConversation,
		ConversationID: conversationID,
		Level:          state.Level.String(),
		TriggerCount:   result.TriggerCount,
		Triggers:       triggerNames(result),
	})
	return result, state, nil
}

// AssessCrisis resolves crisis type and resources for a detection result.
// Sub-Crisis results yield a non-detected assessment.
func (e *Engine) AssessCrisis(ctx context.Context, conversationID string, result *detect.DetectionResult) *crisis.Assessment {
	assessment := e.resolver.Resolve(result)
	if assessment.Detected {
		e.record(ctx, audit.Event{
			Kind:           audit.KindCrisis,
			ConversationID: conversationID,
			CrisisType:     string(assessment.CrisisType),
			TriggerCount:   result.TriggerCount,
			Level:          result.Level.String(),
		})
	}
	return assessment
}

// CrisisMessage renders the deliverable support message for an assessment.
func (e *Engine) CrisisMessage(assessment *crisis.Assessment) string {
	return crisis.FormatMessage(assessment)
}

// VerifyResponse checks a candidate response against the verification
// requirements at the given protection context.
func (e *Engine) VerifyResponse(
	ctx context.Context,
	conversationID string,
	response string,
	level detect.ProtectionLevel,
	crisisType crisis.Type,
	amplificationRisk bool,
) []verify.Violation {
	violations := e.verifier.Verify(response, level, crisisType, amplificationRisk)
	if len(violations) > 0 {
		e.record(ctx, audit.Event{
			Kind:           audit.KindVerification,
			ConversationID: conversationID,
			Level:          level.String(),
			CrisisType:     string(crisisType),
			Blocked:        verify.HasBlocking(violations),
			Violations:     violationNames(violations),
		})
	}
	return violations
}

// ConfirmWait releases a pending WAIT gate for the conversation.
func (e *Engine) ConfirmWait(ctx context.Context, conversationID string) (*conversation.State, error) {
	return e.tracker.ConfirmWait(ctx, conversationID)
}

// Acknowledge marks the conversation's current turn as delivered.
func (e *Engine) Acknowledge(ctx context.Context, conversationID string) (*conversation.State, error) {
	return e.tracker.Acknowledge(ctx, conversationID)
}

// Evaluate returns the current state of an existing conversation.
func (e *Engine) Evaluate(ctx context.Context, conversationID string) (*conversation.State, error) {
	return e.tracker.Evaluate(ctx, conversationID)
}

// Reset destroys a conversation's state.
func (e *Engine) Reset(ctx context.Context, conversationID string) error {
	return e.tracker.Reset(ctx, conversationID)
}

// Catalog exposes the active catalog for health and introspection endpoints.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Close releases the tracker's store and the audit sink.
func (e *Engine) Close() error {
	trackerErr := e.tracker.Close()
	if err := e.sink.Close(); err != nil {
		return err
	}
	return trackerErr
}

func (e *Engine) record(ctx context.Context, ev audit.Event) {
	if err := e.sink.Record(ctx, ev); err != nil {
		log.Printf("[AUDIT] record failed: %v", err)
	}
}

func triggerNames(result *detect.DetectionResult) []string {
	if result == nil || len(result.Triggers) == 0 {
		return nil
	}
	names := make([]string, 0, len(result.Triggers))
	for _, t := range result.Triggers {
		names = append(names, string(t.Category)+":"+t.Pattern)
	}
	return names
}

func violationNames(violations []verify.Violation) []string {
	names := make([]string, 0, len(violations))
	for _, v := range violations {
		names = append(names, string(v.VR)+": "+v.Reason)
	}
	return names
}
