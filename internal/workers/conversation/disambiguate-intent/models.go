// internal/workers/conversation/disambiguate-intent/models.go
package disambiguateintent

import "intent-workers/internal/intent/dialog"

type Input struct {
	ConversationID string `json:"conversation_id"`
	Utterance      string `json:"utterance"`
}

// Output carries either clarification options or a routing decision,
// discriminated by Status.
type Output struct {
	Status           string          `json:"status"` // "RESOLVED" or "NEED_CLARIFICATION"
	Options          []dialog.Option `json:"options,omitempty"`
	Reason           string          `json:"reason,omitempty"`
	RouteTo          string          `json:"route_to,omitempty"`
	SelectedIntentID string          `json:"selected_intent_id,omitempty"`
	Confidence       float64         `json:"confidence"`
	TurnCount        int             `json:"turn_count"`
}
