package models

import "time"

// Decision statuses emitted by the disambiguation workers.
const (
	StatusResolved          = "RESOLVED"
	StatusNeedClarification = "NEED_CLARIFICATION"
)

// RoutingDecision is one recorded routing outcome for a conversation turn
type RoutingDecision struct {
	DecisionID       string    `json:"decision_id" db:"decision_id"`
	ConversationID   string    `json:"conversation_id" db:"conversation_id"`
	Status           string    `json:"status" db:"status"`
	SelectedIntentID string    `json:"selected_intent_id,omitempty" db:"selected_intent_id"`
	Confidence       float64   `json:"confidence" db:"confidence"`
	AmbiguityReason  string    `json:"ambiguity_reason,omitempty" db:"ambiguity_reason"`
	TurnCount        int       `json:"turn_count" db:"turn_count"`
	DecidedAt        time.Time `json:"decided_at" db:"decided_at"`
}

// IsResolved reports whether the decision routed to a concrete intent
func (d *RoutingDecision) IsResolved() bool {
	return d.Status == StatusResolved
}

// Escalation represents an unresolved conversation handed to an operator
type Escalation struct {
	EscalationID   string    `json:"escalation_id" db:"escalation_id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	Reason         string    `json:"reason" db:"reason"`
	Channels       []string  `json:"channels,omitempty" db:"channels"`
	EscalatedAt    time.Time `json:"escalated_at" db:"escalated_at"`
}
