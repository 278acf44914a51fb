// internal/workers/notification/escalate-unresolved/models.go
package escalateunresolved

import "intent-workers/internal/intent/dialog"

type Input struct {
	ConversationID string          `json:"conversation_id"`
	Reason         string          `json:"escalation_reason"`
	LastUtterance  string          `json:"last_utterance,omitempty"`
	Candidates     []dialog.Option `json:"candidates,omitempty"`
	TurnCount      int             `json:"turn_count,omitempty"`
	Channels       []string        `json:"channels,omitempty"` // default: every enabled channel
}

type Output struct {
	EscalationID string   `json:"escalation_id"`
	Status       string   `json:"status"`       // "sent" or "disabled"
	Channels     []string `json:"channels"`     // channels that accepted the escalation
	EscalatedAt  string   `json:"escalated_at"` // ISO 8601
}

// Escalation channels
const (
	ChannelEmail   = "email"
	ChannelSMS     = "sms"
	ChannelWebhook = "webhook"
)

// Statuses
const (
	StatusSent     = "sent"
	StatusDisabled = "disabled"
)
