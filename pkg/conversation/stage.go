package conversation

import (
	"fmt"
	"time"
)

// Stage names the steps of the per-turn interaction loop. Every turn walks
// LISTEN -> REFLECT -> (WAIT) -> ACT -> ACKNOWLEDGE; WAIT is entered only
// for Crisis-level turns and blocks ACT until confirmed or timed out.
type Stage string

const (
	StageListen      Stage = "LISTEN"      // Receiving and classifying user input
	StageReflect     Stage = "REFLECT"     // Detection result folded into session state
	StageWait        Stage = "WAIT"        // Mandatory pause before a Crisis-level response
	StageAct         Stage = "ACT"         // Response may be delivered
	StageAcknowledge Stage = "ACKNOWLEDGE" // Delivery acknowledged; next turn returns to LISTEN
)

// stageTransitions holds the legal moves of the loop.
var stageTransitions = map[Stage][]Stage{
	StageListen:      {StageReflect},
	StageReflect:     {StageWait, StageAct},
	StageWait:        {StageAct},
	StageAct:         {StageAcknowledge},
	StageAcknowledge: {StageListen},
}

// canTransition reports whether moving from one stage to another is legal.
func canTransition(from, to Stage) bool {
	for _, next := range stageTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// advanceStage moves the state to the given stage, guarding against
// illegal jumps. Keeping the guard explicit makes loop violations loud
// instead of silently reordering the protocol.
func (s *State) advanceStage(to Stage) error {
	if !canTransition(s.Stage, to) {
		return fmt.Errorf("conversation %s: illegal stage transition %s -> %s",
			s.ConversationID, s.Stage, to)
	}
	s.Stage = to
	return nil
}

// CanAct reports whether a response may be delivered now. In WAIT the gate
// opens only after explicit confirmation or once the deadline has passed.
func (s *State) CanAct(now time.Time) bool {
	switch s.Stage {
	case StageAct:
		return true
	case StageWait:
		return s.WaitConfirmed || (!s.WaitDeadline.IsZero() && !now.Before(s.WaitDeadline))
	default:
		return false
	}
}
