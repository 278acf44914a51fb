// internal/intent/dialog/result.go
package dialog

// TurnResult is the outcome of one conversation turn. It is a closed sum:
// every turn yields either NeedClarification or Resolved, and callers switch
// on the concrete type.
type TurnResult interface{ turnResult() }

// Option is one clarification choice presented to the user.
type Option struct {
	IntentID string  `json:"intent_id"`
	Label    string  `json:"label"`
	Score    float64 `json:"score"`
}

// NeedClarification carries the shortlist the user is asked to choose from.
// At most the engine's option limit, best first.
type NeedClarification struct {
	Options []Option `json:"options"`
	Reason  Reason   `json:"reason"`
}

// Resolved carries the final routing decision. RouteTo and SelectedIntentID
// both name the winning intent; they are kept separate so a routing layer
// can later diverge from the raw intent id without changing callers.
type Resolved struct {
	RouteTo          string  `json:"route_to"`
	SelectedIntentID string  `json:"selected_intent_id"`
	Confidence       float64 `json:"confidence"`
}

func (NeedClarification) turnResult() {}
func (Resolved) turnResult()          {}
