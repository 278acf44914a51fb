package conversationcleanup

import (
	"time"

	"intent-workers/internal/common/logger"
)

type Input struct {
	ConversationID string                 `json:"conversation_id"`
	Reason         string                 `json:"reason,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

type Output struct {
	Success      bool      `json:"success"`
	Message      string    `json:"message"`
	StateDeleted bool      `json:"state_deleted"`
	ReceiptKey   string    `json:"receipt_key,omitempty"`
	CleanedAt    time.Time `json:"cleaned_at"`
}

type ServiceDependencies struct {
	Logger logger.Logger
}
