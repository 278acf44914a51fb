// internal/intent/dialog/state.go
package dialog

import "intent-workers/internal/intent/scoring"

// Phase is the lifecycle position of a conversation.
type Phase string

const (
	PhaseInitial               Phase = "initial"
	PhaseAwaitingClarification Phase = "awaiting_clarification"
	PhaseResolved              Phase = "resolved"
)

// Reason explains why a turn asked for clarification.
type Reason string

const (
	ReasonLowConfidence Reason = "low_confidence"
	ReasonCloseScores   Reason = "close_scores"
	ReasonNoCandidates  Reason = "no_candidates"
)

// State is the complete conversation state. It is a value: Turn returns an
// updated copy and the caller threads it into the next call. Nothing in the
// engine holds onto it or mutates it in place.
type State struct {
	Phase            Phase               `json:"phase"`
	LastUtterance    string              `json:"last_utterance"`
	Candidates       []scoring.Candidate `json:"candidates,omitempty"`
	SelectedIntentID string              `json:"selected_intent_id,omitempty"`
	AmbiguityReason  Reason              `json:"ambiguity_reason,omitempty"`

	// TurnCount increments on every invocation, including one that fails on
	// a terminal state. Observability only; no decision reads it.
	TurnCount int `json:"turn_count"`
}

// NewState returns the starting state for a fresh conversation.
func NewState() State {
	return State{Phase: PhaseInitial}
}
