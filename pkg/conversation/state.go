// Package conversation tracks per-conversation detection state: escalation
// and de-escalation of the session protection level, amplification-risk
// accounting, and the staged interaction loop that gates Crisis-level
// responses. The Tracker is the only component allowed to mutate state.
package conversation

import (
	"time"

	"github.com/guardline-ai/guardline/pkg/catalog"
	"github.com/guardline-ai/guardline/pkg/detect"
)

// DefaultHistoryWindow bounds per-conversation memory. Eviction is FIFO and
// never touches the running protection floor.
const DefaultHistoryWindow = 20

// DefaultAmplificationThreshold is the passive-acceptance streak length at
// which amplification risk switches on.
const DefaultAmplificationThreshold = 5

// TurnRecord summarizes one user turn's detection outcome. The raw message
// text is deliberately not retained.
type TurnRecord struct {
	TurnNumber   int                    `json:"turn_number"`
	Level        detect.ProtectionLevel `json:"level"`
	TriggerCount int                    `json:"trigger_count"`
	Categories   []catalog.Category     `json:"categories,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

// State is the per-conversation session state. Mutated only through
// Tracker.Apply; everything else treats it as read-only.
type State struct {
	ConversationID string    `json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
	LastTurnAt     time.Time `json:"last_turn_at"`
	TurnCount      int       `json:"turn_count"`

	// Level is the current session protection level:
	// max(message level, history floor).
	Level detect.ProtectionLevel `json:"level"`

	// HighestLevel is the running maximum ever reached in this session.
	// Once it hits Crisis the session floor stays at Enhanced.
	HighestLevel detect.ProtectionLevel `json:"highest_level"`

	// History is the bounded FIFO window of recent turn summaries.
	History    []TurnRecord `json:"history"`
	MaxHistory int          `json:"max_history"`

	// QuestionsAsked counts AI turns containing a question mark.
	QuestionsAsked int `json:"questions_asked"`

	// PassiveStreak counts consecutive AI turns without a clarifying
	// question while the user is at Enhanced or above.
	PassiveStreak     int  `json:"passive_streak"`
	AmplificationRisk bool `json:"amplification_risk"`

	// Interaction loop stage for the current turn (see stage.go).
	Stage Stage `json:"stage"`

	// WAIT gate bookkeeping: a Crisis-level turn may not proceed to ACT
	// until confirmed or until the deadline passes.
	WaitDeadline  time.Time `json:"wait_deadline,omitempty"`
	WaitConfirmed bool      `json:"wait_confirmed"`
}

// newState creates a fresh conversation state.
func newState(id string, maxHistory int, now time.Time) *State {
	if maxHistory <= 0 {
		maxHistory = DefaultHistoryWindow
	}
	return &State{
		ConversationID: id,
		CreatedAt:      now,
		LastTurnAt:     now,
		Level:          detect.LevelStandard,
		HighestLevel:   detect.LevelStandard,
		History:        make([]TurnRecord, 0, maxHistory),
		MaxHistory:     maxHistory,
		Stage:          StageListen,
	}
}

// floor returns the minimum session level implied by history.
// Once Crisis has been reached, a single calming message must not erase
// crisis context, so the floor stays at Enhanced for the session.
func (s *State) floor() detect.ProtectionLevel {
	if s.HighestLevel == detect.LevelCrisis {
		return detect.LevelEnhanced
	}
	return detect.LevelStandard
}

// IsVulnerable reports whether the session is at Enhanced or above.
func (s *State) IsVulnerable() bool { return s.Level >= detect.LevelEnhanced }

// IsCrisis reports whether the session is currently at Crisis level.
func (s *State) IsCrisis() bool { return s.Level == detect.LevelCrisis }

// clone returns a deep copy of the state. Stores hand out clones so a
// stored State is never read and mutated across goroutines.
func (s *State) clone() *State {
	cp := *s
	cp.History = make([]TurnRecord, len(s.History))
	copy(cp.History, s.History)
	for i, rec := range cp.History {
		if rec.Categories != nil {
			cp.History[i].Categories = append([]catalog.Category(nil), rec.Categories...)
		}
	}
	return &cp
}

// recordTurn appends a turn summary, trimming FIFO to the window size.
func (s *State) recordTurn(rec TurnRecord) {
	s.History = append(s.History, rec)
	if len(s.History) > s.MaxHistory {
		s.History = s.History[len(s.History)-s.MaxHistory:]
	}
}
