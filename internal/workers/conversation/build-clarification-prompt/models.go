// internal/workers/conversation/build-clarification-prompt/models.go
package buildclarificationprompt

type Input struct {
	ConversationID string   `json:"conversation_id"`
	Reason         string   `json:"reason"`
	Options        []Option `json:"options"`
}

// Option is one shortlist entry as emitted by the disambiguation turn.
type Option struct {
	IntentID string  `json:"intent_id"`
	Label    string  `json:"label"`
	Score    float64 `json:"score"`
}

type Output struct {
	PromptText string `json:"prompt_text"`
	TemplateID string `json:"template_id"`
}

// TemplateDefinition is one entry of the prompt template registry file.
type TemplateDefinition struct {
	ID       string                 `json:"id"`
	Schema   map[string]interface{} `json:"schema"`   // JSON Schema for the template data
	Template map[string]interface{} `json:"template"` // structure with {{placeholder}} values
	Version  string                 `json:"version"`
}
