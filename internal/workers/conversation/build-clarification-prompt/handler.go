// internal/workers/conversation/build-clarification-prompt/handler.go
package buildclarificationprompt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"intent-workers/internal/common/metrics"
	"intent-workers/pkg/catalog"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/xeipuuv/gojsonschema"
)

const TaskType = "build-clarification-prompt"

// Template ids looked up in the registry file.
const (
	templateClarification = "clarification"
	templateRephrase      = "rephrase"
)

var (
	ErrTemplateNotFound         = errors.New("TEMPLATE_NOT_FOUND")
	ErrTemplateValidationFailed = errors.New("TEMPLATE_VALIDATION_FAILED")
)

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type templateCacheEntry struct {
	template *TemplateDefinition
	loadedAt time.Time
}

type Handler struct {
	config  *Config
	catalog *catalog.Catalog
	logger  Logger
	cache   map[string]*templateCacheEntry
	mu      sync.RWMutex
}

func NewHandler(config *Config, cat *catalog.Catalog, log Logger) *Handler {
	return &Handler{
		config:  config,
		catalog: cat,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
		cache: make(map[string]*templateCacheEntry),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		errorCode := "PROMPT_BUILD_ERROR"
		if errors.Is(err, ErrTemplateNotFound) {
			errorCode = "TEMPLATE_NOT_FOUND"
		} else if errors.Is(err, ErrTemplateValidationFailed) {
			errorCode = "TEMPLATE_VALIDATION_FAILED"
		}
		h.failJob(client, job, errorCode, err.Error())
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	templateID := templateClarification
	if len(input.Options) == 0 {
		templateID = templateRephrase
	}

	template, err := h.loadTemplate(templateID)
	if err != nil {
		return nil, err
	}

	data := map[string]interface{}{
		"reason":       input.Reason,
		"option_count": len(input.Options),
		"option_lines": h.buildOptionLines(input.Options),
	}

	if err := h.validateData(template.Schema, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateValidationFailed, err)
	}

	substituted := h.substituteTemplate(template.Template, data)
	substitutedMap, ok := substituted.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("expected template root to be an object after substitution, got %T for template %s", substituted, templateID)
	}
	promptText, ok := substitutedMap["prompt_text"].(string)
	if !ok || promptText == "" {
		return nil, fmt.Errorf("template %s produced no prompt_text", templateID)
	}

	h.logger.Info("prompt built", map[string]interface{}{
		"conversationId": input.ConversationID,
		"templateId":     templateID,
		"optionCount":    len(input.Options),
	})

	return &Output{
		PromptText: promptText,
		TemplateID: templateID,
	}, nil
}

// buildOptionLines renders the numbered shortlist the user picks from. The
// label comes from the option itself; the description, when the catalog
// still knows the intent, is appended after a dash.
func (h *Handler) buildOptionLines(options []Option) string {
	lines := make([]string, 0, len(options))
	for i, opt := range options {
		label := opt.Label
		if label == "" {
			if in := h.catalog.Get(opt.IntentID); in != nil {
				label = in.Label
			} else {
				label = opt.IntentID
			}
		}

		line := fmt.Sprintf("%d. %s", i+1, label)
		if in := h.catalog.Get(opt.IntentID); in != nil && in.Description != "" {
			line = fmt.Sprintf("%s - %s", line, in.Description)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (h *Handler) substituteTemplate(templateData interface{}, inputData map[string]interface{}) interface{} {
	if templateData == nil {
		return nil
	}

	switch v := templateData.(type) {
	case string:
		return h.substitutePlaceholders(v, inputData)
	case map[string]interface{}:
		result := make(map[string]interface{})
		for k, v2 := range v {
			result[k] = h.substituteTemplate(v2, inputData)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = h.substituteTemplate(item, inputData)
		}
		return result
	default:
		return v
	}
}

// substitutePlaceholders replaces every {{key}} in the string, resolving
// dotted keys through nested maps. Unknown keys substitute to empty.
func (h *Handler) substitutePlaceholders(s string, data map[string]interface{}) string {
	var b strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end += start

		b.WriteString(rest[:start])
		key := strings.TrimSpace(rest[start+2 : end])
		if value := h.lookupNestedValue(data, key); value != nil {
			b.WriteString(fmt.Sprintf("%v", value))
		}
		rest = rest[end+2:]
	}
}

func (h *Handler) lookupNestedValue(data map[string]interface{}, key string) interface{} {
	parts := strings.Split(key, ".")
	current := interface{}(data)

	for _, part := range parts {
		currentMap, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}

		val, exists := currentMap[part]
		if !exists {
			return nil
		}

		current = val
	}

	return current
}

func (h *Handler) loadTemplate(id string) (*TemplateDefinition, error) {
	h.mu.RLock()
	if entry, ok := h.cache[id]; ok && time.Since(entry.loadedAt) < h.config.CacheTTL {
		h.mu.RUnlock()
		return entry.template, nil
	}
	h.mu.RUnlock()

	registryBytes, err := os.ReadFile(h.config.TemplateRegistry)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var registry struct {
		Templates []TemplateDefinition `json:"templates"`
	}
	if err := json.Unmarshal(registryBytes, &registry); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}

	for _, t := range registry.Templates {
		if t.ID == id {
			h.mu.Lock()
			h.cache[id] = &templateCacheEntry{
				template: &t,
				loadedAt: time.Now(),
			}
			h.mu.Unlock()
			return &t, nil
		}
	}

	return nil, ErrTemplateNotFound
}

func (h *Handler) validateData(schemaMap, data map[string]interface{}) error {
	if len(schemaMap) == 0 {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(schemaMap)
	documentLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("data validation failed: %v", errs)
	}

	return nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err})
		return
	}
	if _, err = cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
	})
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode).Inc()

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{"error": err})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
