// internal/workers/conversation/build-clarification-prompt/handler_test.go
package buildclarificationprompt

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"intent-workers/pkg/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Logger Implementation
// ==========================

// TestLogger implements the Logger interface for testing
type TestLogger struct {
	t      *testing.T
	fields map[string]interface{}
}

func NewTestLogger(t *testing.T) *TestLogger {
	return &TestLogger{
		t:      t,
		fields: make(map[string]interface{}),
	}
}

func (l *TestLogger) Info(msg string, fields map[string]interface{}) {
	l.t.Logf("INFO: %s %v", msg, fields)
}

func (l *TestLogger) Warn(msg string, fields map[string]interface{}) {
	l.t.Logf("WARN: %s %v", msg, fields)
}

func (l *TestLogger) Error(msg string, fields map[string]interface{}) {
	l.t.Logf("ERROR: %s %v", msg, fields)
}

func (l *TestLogger) With(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{})
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &TestLogger{t: l.t, fields: merged}
}

// ==========================
// Test Helper Functions
// ==========================

func writeRegistry(t *testing.T, templates []TemplateDefinition) string {
	t.Helper()
	registry := struct {
		Templates []TemplateDefinition `json:"templates"`
	}{Templates: templates}

	data, err := json.MarshalIndent(registry, "", "  ")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "prompt-templates.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func defaultTemplates() []TemplateDefinition {
	return []TemplateDefinition{
		{
			ID: "clarification",
			Schema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"option_lines": map[string]interface{}{"type": "string", "minLength": 1},
					"option_count": map[string]interface{}{"type": "integer", "minimum": 1},
					"reason":       map[string]interface{}{"type": "string"},
				},
				"required": []string{"option_lines", "option_count"},
			},
			Template: map[string]interface{}{
				"prompt_text": "I'm not sure what you meant. Can you clarify your intent?\n{{option_lines}}",
			},
		},
		{
			ID: "rephrase",
			Template: map[string]interface{}{
				"prompt_text": "I didn't understand that. Could you please rephrase?",
			},
		},
	}
}

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{Intents: []catalog.Intent{
		{ID: "send_money", Label: "Send Money", Description: "User wants to send or transfer money to someone"},
		{ID: "check_balance", Label: "Check Balance", Description: "User wants to check their account balance"},
		{ID: "pay_bill", Label: "Pay Bill"},
	}}
}

func createTestHandler(t *testing.T, registryPath string) *Handler {
	config := &Config{
		TemplateRegistry: registryPath,
		CacheTTL:         5 * time.Minute,
		Timeout:          10 * time.Second,
	}
	return NewHandler(config, testCatalog(), NewTestLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_BuildsNumberedPrompt(t *testing.T) {
	handler := createTestHandler(t, writeRegistry(t, defaultTemplates()))

	input := &Input{
		ConversationID: "conv-1",
		Reason:         "close_scores",
		Options: []Option{
			{IntentID: "send_money", Label: "Send Money", Score: 0.45},
			{IntentID: "check_balance", Label: "Check Balance", Score: 0.42},
			{IntentID: "pay_bill", Label: "Pay Bill", Score: 0.20},
		},
	}

	output, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	want := "I'm not sure what you meant. Can you clarify your intent?\n" +
		"1. Send Money - User wants to send or transfer money to someone\n" +
		"2. Check Balance - User wants to check their account balance\n" +
		"3. Pay Bill"
	assert.Equal(t, want, output.PromptText)
	assert.Equal(t, "clarification", output.TemplateID)
}

func TestHandler_Execute_NoOptionsAsksToRephrase(t *testing.T) {
	handler := createTestHandler(t, writeRegistry(t, defaultTemplates()))

	output, err := handler.Execute(context.Background(), &Input{
		ConversationID: "conv-1",
		Reason:         "no_candidates",
	})
	require.NoError(t, err)

	assert.Equal(t, "I didn't understand that. Could you please rephrase?", output.PromptText)
	assert.Equal(t, "rephrase", output.TemplateID)
}

func TestHandler_Execute_LabelFallbacks(t *testing.T) {
	handler := createTestHandler(t, writeRegistry(t, defaultTemplates()))

	input := &Input{
		ConversationID: "conv-1",
		Reason:         "low_confidence",
		// First label fills from the catalog, the unknown id is shown as-is.
		Options: []Option{
			{IntentID: "check_balance"},
			{IntentID: "vanished_intent"},
		},
	}

	output, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Contains(t, output.PromptText, "1. Check Balance - User wants to check their account balance")
	assert.Contains(t, output.PromptText, "2. vanished_intent")
}

func TestHandler_Execute_UnknownPlaceholderRendersEmpty(t *testing.T) {
	templates := []TemplateDefinition{
		{
			ID: "clarification",
			Template: map[string]interface{}{
				"prompt_text": "Pick one:\n{{option_lines}}{{no_such_key}}",
			},
		},
	}
	handler := createTestHandler(t, writeRegistry(t, templates))

	output, err := handler.Execute(context.Background(), &Input{
		Options: []Option{{IntentID: "pay_bill", Label: "Pay Bill"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Pick one:\n1. Pay Bill", output.PromptText)
}

func TestHandler_Execute_CachesTemplates(t *testing.T) {
	registryPath := writeRegistry(t, defaultTemplates())
	handler := createTestHandler(t, registryPath)
	ctx := context.Background()

	input := &Input{Options: []Option{{IntentID: "pay_bill", Label: "Pay Bill"}}}
	first, err := handler.Execute(ctx, input)
	require.NoError(t, err)

	// Rewriting the registry inside the cache window changes nothing.
	changed := defaultTemplates()
	changed[0].Template = map[string]interface{}{"prompt_text": "CHANGED"}
	data, err := json.Marshal(struct {
		Templates []TemplateDefinition `json:"templates"`
	}{Templates: changed})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(registryPath, data, 0o644))

	second, err := handler.Execute(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, first.PromptText, second.PromptText)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_TemplateNotFound(t *testing.T) {
	// Registry only knows the rephrase template.
	handler := createTestHandler(t, writeRegistry(t, defaultTemplates()[1:]))

	_, err := handler.Execute(context.Background(), &Input{
		Options: []Option{{IntentID: "pay_bill", Label: "Pay Bill"}},
	})
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestHandler_Execute_SchemaRejectsData(t *testing.T) {
	templates := []TemplateDefinition{
		{
			ID: "clarification",
			Schema: map[string]interface{}{
				"type":     "object",
				"required": []string{"locale"},
			},
			Template: map[string]interface{}{
				"prompt_text": "{{option_lines}}",
			},
		},
	}
	handler := createTestHandler(t, writeRegistry(t, templates))

	_, err := handler.Execute(context.Background(), &Input{
		Options: []Option{{IntentID: "pay_bill", Label: "Pay Bill"}},
	})
	assert.ErrorIs(t, err, ErrTemplateValidationFailed)
}

func TestHandler_Execute_MissingRegistryFile(t *testing.T) {
	handler := createTestHandler(t, filepath.Join(t.TempDir(), "absent.json"))

	_, err := handler.Execute(context.Background(), &Input{
		Options: []Option{{IntentID: "pay_bill", Label: "Pay Bill"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read registry")
}

func TestHandler_Execute_MalformedRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	handler := createTestHandler(t, path)

	_, err := handler.Execute(context.Background(), &Input{
		Options: []Option{{IntentID: "pay_bill", Label: "Pay Bill"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse registry")
}

func TestHandler_Execute_TemplateWithoutPromptText(t *testing.T) {
	templates := []TemplateDefinition{
		{
			ID:       "clarification",
			Template: map[string]interface{}{"other_key": "value"},
		},
	}
	handler := createTestHandler(t, writeRegistry(t, templates))

	_, err := handler.Execute(context.Background(), &Input{
		Options: []Option{{IntentID: "pay_bill", Label: "Pay Bill"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no prompt_text")
}
