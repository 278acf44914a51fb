package conversationcleanup

import "intent-workers/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"conversation_id"},
		Properties: map[string]validation.Property{
			"conversation_id": {
				Type:        "string",
				Description: "Conversation identifier whose state should be removed",
				MinLength:   intPtr(1),
				MaxLength:   intPtr(255),
			},
			"reason": {
				Type:        "string",
				Description: "Why the conversation ended (resolved, escalated, expired)",
				MaxLength:   intPtr(100),
			},
			"metadata": {
				Type:        "object",
				Description: "Additional metadata recorded on the receipt",
			},
		},
		AdditionalProperties: false,
	}
}

func GetOutputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"success": {
				Type:        "boolean",
				Description: "Whether cleanup completed",
			},
			"message": {
				Type:        "string",
				Description: "Result message",
			},
			"state_deleted": {
				Type:        "boolean",
				Description: "Whether a stored state was actually removed",
			},
			"receipt_key": {
				Type:        "string",
				Description: "Redis key of the cleanup receipt",
			},
			"cleaned_at": {
				Type:        "string",
				Description: "Timestamp of cleanup",
			},
		},
		AdditionalProperties: false,
	}
}

func intPtr(i int) *int {
	return &i
}
