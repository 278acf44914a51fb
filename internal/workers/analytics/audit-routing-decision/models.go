// internal/workers/analytics/audit-routing-decision/models.go
package auditroutingdecision

type Input struct {
	ConversationID   string  `json:"conversation_id"`
	Status           string  `json:"status"`
	SelectedIntentID string  `json:"selected_intent_id,omitempty"`
	Confidence       float64 `json:"confidence,omitempty"`
	Reason           string  `json:"reason,omitempty"`
	TurnCount        int     `json:"turn_count"`
}

type Output struct {
	DecisionID string `json:"decision_id"`
	RecordedAt string `json:"recorded_at"` // ISO 8601
}
