// Package dialog implements the two-phase intent disambiguation flow: score
// the first utterance, either resolve directly or ask one clarification
// question, then resolve from the stored shortlist.
package dialog

import (
	"errors"
	"fmt"

	"intent-workers/internal/intent/scoring"
	"intent-workers/pkg/catalog"
)

// ErrInvalidState is returned when a turn arrives for a conversation that
// already resolved. Resolved is terminal; a new conversation needs a new
// state value.
var ErrInvalidState = errors.New("INVALID_STATE")

// DefaultMaxOptions caps the clarification shortlist.
const DefaultMaxOptions = 3

// Engine ties the scorer, the ambiguity policy and the clarification
// resolver together. It is immutable after construction and safe for
// concurrent use; all per-conversation data lives in the State values
// passed through Turn.
type Engine struct {
	scorer     *scoring.Scorer
	policy     Policy
	catalog    *catalog.Catalog
	maxOptions int
}

// NewEngine builds an engine over a validated catalog. maxOptions <= 0
// falls back to DefaultMaxOptions.
func NewEngine(cat *catalog.Catalog, policy Policy, maxOptions int) (*Engine, error) {
	scorer, err := scoring.NewScorer(cat)
	if err != nil {
		return nil, err
	}
	if maxOptions <= 0 {
		maxOptions = DefaultMaxOptions
	}
	return &Engine{
		scorer:     scorer,
		policy:     policy,
		catalog:    cat,
		maxOptions: maxOptions,
	}, nil
}

// Turn advances the conversation by one user message and returns the
// outcome together with the updated state. State travels by value: the
// caller keeps the returned copy and passes it back next turn.
//
// An empty utterance is not an error. It scores like any other text, lands
// under the confidence floor and takes the clarification path.
func (e *Engine) Turn(st State, utterance string) (TurnResult, State, error) {
	st.TurnCount++

	switch st.Phase {
	case PhaseInitial, "":
		st.LastUtterance = utterance
		return e.initialTurn(st, utterance)
	case PhaseAwaitingClarification:
		st.LastUtterance = utterance
		return e.clarificationTurn(st, utterance)
	case PhaseResolved:
		return nil, st, ErrInvalidState
	default:
		return nil, st, fmt.Errorf("%w: unknown phase %q", ErrInvalidState, st.Phase)
	}
}

func (e *Engine) initialTurn(st State, utterance string) (TurnResult, State, error) {
	ranked, err := e.scorer.Score(utterance)
	if err != nil {
		return nil, st, err
	}

	ambiguous, reason := e.policy.IsAmbiguous(ranked)
	if !ambiguous {
		best := ranked[0]
		st.Phase = PhaseResolved
		st.SelectedIntentID = best.IntentID
		st.AmbiguityReason = ""
		st.Candidates = nil
		return Resolved{
			RouteTo:          best.IntentID,
			SelectedIntentID: best.IntentID,
			Confidence:       best.FinalScore,
		}, st, nil
	}

	shortlist := ranked
	if len(shortlist) > e.maxOptions {
		shortlist = shortlist[:e.maxOptions]
	}
	st.Candidates = append([]scoring.Candidate(nil), shortlist...)
	st.Phase = PhaseAwaitingClarification
	st.AmbiguityReason = reason

	options := make([]Option, 0, len(st.Candidates))
	for _, c := range st.Candidates {
		options = append(options, Option{IntentID: c.IntentID, Label: c.Label, Score: c.FinalScore})
	}
	return NeedClarification{Options: options, Reason: reason}, st, nil
}

func (e *Engine) clarificationTurn(st State, reply string) (TurnResult, State, error) {
	selected, err := ResolveClarification(reply, st.Candidates, e.catalog)
	if err != nil {
		return nil, st, err
	}

	st.Phase = PhaseResolved
	st.SelectedIntentID = selected.IntentID
	st.AmbiguityReason = ""
	st.Candidates = nil

	// Confidence is the candidate's score from the original ranking, not a
	// re-score of the clarification text.
	return Resolved{
		RouteTo:          selected.IntentID,
		SelectedIntentID: selected.IntentID,
		Confidence:       selected.FinalScore,
	}, st, nil
}
