package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/guardline-ai/guardline/pkg/detect"
)

// Tracker folds per-message detection results into per-conversation state.
// Apply is the single mutation entry point; writes are serialized per
// conversation id, while reads and pure detection remain fully parallel.
type Tracker struct {
	store Store

	historyWindow          int
	amplificationThreshold int
	waitDelay              time.Duration

	// Per-conversation write locks. Lock entries are small and bounded by
	// the number of live conversations, and are dropped with the session.
	locks sync.Map // conversationID -> *sync.Mutex

	now func() time.Time // Injectable clock for tests
}

// TrackerOption is a functional option for configuring a Tracker.
type TrackerOption func(*Tracker)

// WithStore sets a custom session store (default: in-memory).
func WithStore(store Store) TrackerOption {
	return func(t *Tracker) {
		t.store = store
	}
}

// WithHistoryWindow sets the bounded history size per conversation.
func WithHistoryWindow(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 0 {
			t.historyWindow = n
		}
	}
}

// WithAmplificationThreshold sets the passive streak length that flips
// amplification risk on.
func WithAmplificationThreshold(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 0 {
			t.amplificationThreshold = n
		}
	}
}

// WithWaitDelay sets how long the WAIT gate holds a Crisis-level turn when
// no explicit confirmation arrives.
func WithWaitDelay(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		t.waitDelay = d
	}
}

// withClock overrides the clock (tests only).
func withClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates a conversation tracker.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		historyWindow:          DefaultHistoryWindow,
		amplificationThreshold: DefaultAmplificationThreshold,
		waitDelay:              30 * time.Second,
		now:                    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.store == nil {
		t.store = NewMemoryStore()
	}
	return t
}

func (t *Tracker) lockFor(conversationID string) *sync.Mutex {
	mu, _ := t.locks.LoadOrStore(conversationID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Apply folds one exchange (user detection result + paired AI turn text)
// into the conversation state, creating the session on first use. It is
// the only way conversation state changes.
func (t *Tracker) Apply(ctx context.Context, conversationID string, result *detect.DetectionResult, aiTurn string) (*State, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversation: conversation id is required")
	}
	if result == nil {
		return nil, fmt.Errorf("conversation: detection result is nil")
	}

	mu := t.lockFor(conversationID)
	mu.Lock()
	defer mu.Unlock()

	now := t.now()

	state, err := t.store.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = newState(conversationID, t.historyWindow, now)
	}

	// A new user turn restarts the loop. An unacknowledged prior turn is
	// abandoned rather than erroring: Apply must be safe to call repeatedly.
	state.Stage = StageListen
	if err := state.advanceStage(StageReflect); err != nil {
		return nil, err
	}

	state.TurnCount++
	state.LastTurnAt = now
	state.recordTurn(TurnRecord{
		TurnNumber:   state.TurnCount,
		Level:        result.Level,
		TriggerCount: result.TriggerCount,
		Categories:   result.Categories,
		Timestamp:    now,
	})

	// Session level: the current message can escalate freely, but can only
	// de-escalate down to the history floor. Reaching Crisis pins the floor
	// at Enhanced for the rest of the session.
	level := result.Level
	if floor := state.floor(); level < floor {
		level = floor
	}
	state.Level = level
	if level > state.HighestLevel {
		state.HighestLevel = level
	}

	t.applyAmplification(state, result, aiTurn)

	// Crisis-level turns pass through the WAIT gate before ACT.
	if state.Level == detect.LevelCrisis {
		state.WaitConfirmed = false
		state.WaitDeadline = now.Add(t.waitDelay)
		if err := state.advanceStage(StageWait); err != nil {
			return nil, err
		}
	} else {
		state.WaitDeadline = time.Time{}
		if err := state.advanceStage(StageAct); err != nil {
			return nil, err
		}
	}

	if err := t.store.Save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// applyAmplification updates question/streak accounting for one exchange.
// Any AI question resets the streak; silence while the user is vulnerable
// grows it until amplification risk switches on.
func (t *Tracker) applyAmplification(state *State, result *detect.DetectionResult, aiTurn string) {
	// No AI turn was paired with this exchange (first turn, or the caller
	// tracks before generating a response). Only real question-free AI
	// turns count toward the streak.
	if aiTurn == "" {
		return
	}
	if strings.Contains(aiTurn, "?") {
		state.QuestionsAsked++
		state.PassiveStreak = 0
	} else if result.Level >= detect.LevelEnhanced {
		state.PassiveStreak++
	}
	state.AmplificationRisk = state.PassiveStreak >= t.amplificationThreshold
}

// ConfirmWait releases the WAIT gate for a pending Crisis-level turn and
// advances to ACT. Returns ErrUnknownConversation for a dead session and an
// error if the conversation is not waiting.
func (t *Tracker) ConfirmWait(ctx context.Context, conversationID string) (*State, error) {
	mu := t.lockFor(conversationID)
	mu.Lock()
	defer mu.Unlock()

	state, err := t.store.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, ErrUnknownConversation
	}
	if state.Stage != StageWait {
		return nil, fmt.Errorf("conversation %s: not in WAIT (stage %s)", conversationID, state.Stage)
	}

	state.WaitConfirmed = true
	if err := state.advanceStage(StageAct); err != nil {
		return nil, err
	}
	if err := t.store.Save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Acknowledge marks the turn's response as delivered, completing the loop.
func (t *Tracker) Acknowledge(ctx context.Context, conversationID string) (*State, error) {
	mu := t.lockFor(conversationID)
	mu.Lock()
	defer mu.Unlock()

	state, err := t.store.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, ErrUnknownConversation
	}

	// A still-waiting turn auto-releases once its deadline has passed.
	if state.Stage == StageWait && state.CanAct(t.now()) {
		if err := state.advanceStage(StageAct); err != nil {
			return nil, err
		}
	}
	if err := state.advanceStage(StageAcknowledge); err != nil {
		return nil, err
	}
	if err := t.store.Save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Evaluate returns the current state of an existing conversation.
// Unknown ids are reported, not fabricated.
func (t *Tracker) Evaluate(ctx context.Context, conversationID string) (*State, error) {
	state, err := t.store.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, ErrUnknownConversation
	}
	return state, nil
}

// Reset destroys a conversation's state.
func (t *Tracker) Reset(ctx context.Context, conversationID string) error {
	mu := t.lockFor(conversationID)
	mu.Lock()
	defer mu.Unlock()

	t.locks.Delete(conversationID)
	return t.store.Delete(ctx, conversationID)
}

// Close releases the underlying store.
func (t *Tracker) Close() error {
	return t.store.Close()
}
