// cmd/tools/worker-generator/main.go
//
// worker-generator scaffolds a new job worker package with the layout the
// rest of the fleet uses: config.go, models.go, handler.go and a test file.
// The generated handler compiles and registers cleanly; the Execute body is
// left for the author.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
)

// workerData feeds the file templates.
type workerData struct {
	TaskType    string // kebab-case Zeebe task type, e.g. "redact-utterance"
	PackageName string // Go package name, e.g. "redactutterance"
	Category    string // internal/workers/<category>/ subdirectory
	Description string
	TimeoutExpr string // Go expression for the default timeout
}

var categories = map[string]bool{
	"conversation": true,
	"analytics":    true,
	"notification": true,
}

func main() {
	taskType := flag.String("task-type", "", "Zeebe task type in kebab-case (e.g. redact-utterance)")
	category := flag.String("category", "conversation", "Worker category: conversation, analytics or notification")
	description := flag.String("description", "", "One-line description used in doc comments")
	timeout := flag.String("timeout", "10s", "Default handler timeout")
	outputDir := flag.String("output", "./internal/workers", "Root directory for worker packages")
	flag.Parse()

	if *taskType == "" {
		fmt.Println("Usage: worker-generator -task-type <kebab-case> [-category <name>] [-description <text>]")
		fmt.Println("\nExample:")
		fmt.Println("  go run cmd/tools/worker-generator/main.go -task-type redact-utterance -category conversation")
		os.Exit(1)
	}
	if !validTaskType(*taskType) {
		fmt.Printf("Invalid task type %q: use lowercase words separated by hyphens\n", *taskType)
		os.Exit(1)
	}
	if !categories[*category] {
		fmt.Printf("Unknown category %q: expected conversation, analytics or notification\n", *category)
		os.Exit(1)
	}
	timeoutDur, err := time.ParseDuration(*timeout)
	if err != nil || timeoutDur <= 0 {
		fmt.Printf("Invalid timeout %q: expected a positive duration like 10s\n", *timeout)
		os.Exit(1)
	}

	data := workerData{
		TaskType:    *taskType,
		PackageName: strings.ReplaceAll(*taskType, "-", ""),
		Category:    *category,
		Description: *description,
		TimeoutExpr: goDuration(timeoutDur),
	}
	if data.Description == "" {
		data.Description = fmt.Sprintf("handles %s jobs", data.TaskType)
	}

	workerDir := filepath.Join(*outputDir, data.Category, data.TaskType)
	if _, err := os.Stat(workerDir); err == nil {
		fmt.Printf("Refusing to overwrite existing worker at %s\n", workerDir)
		os.Exit(1)
	}
	if err := os.MkdirAll(workerDir, 0755); err != nil {
		fmt.Printf("Error creating directory: %v\n", err)
		os.Exit(1)
	}

	funcMap := template.FuncMap{
		// tag renders a struct tag; templates cannot contain raw backticks
		// without ending the template literal.
		"tag": func(name string) string {
			return fmt.Sprintf("`json:%q`", name)
		},
	}

	files := map[string]string{
		"config.go":       configTemplate,
		"models.go":       modelsTemplate,
		"handler.go":      handlerTemplate,
		"handler_test.go": testTemplate,
	}

	for filename, tmplStr := range files {
		tmpl, err := template.New(filename).Funcs(funcMap).Parse(tmplStr)
		if err != nil {
			fmt.Printf("Error parsing template %s: %v\n", filename, err)
			os.Exit(1)
		}

		filePath := filepath.Join(workerDir, filename)
		file, err := os.Create(filePath)
		if err != nil {
			fmt.Printf("Error creating file %s: %v\n", filePath, err)
			os.Exit(1)
		}
		if err := tmpl.Execute(file, data); err != nil {
			file.Close()
			fmt.Printf("Error executing template for %s: %v\n", filename, err)
			os.Exit(1)
		}
		file.Close()

		fmt.Printf("✓ Generated %s\n", filePath)
	}

	fmt.Printf("\n✅ Worker scaffold generated at: %s\n", workerDir)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Fill in Input/Output in models.go")
	fmt.Println("  2. Implement execute() in handler.go")
	fmt.Println("  3. Extend the tests in handler_test.go")
	fmt.Println("  4. Register the handler in cmd/worker-manager/main.go")
	fmt.Printf("  5. Add a workers.%s block to configs/config.yaml\n", data.TaskType)
}

// goDuration renders a duration as readable Go source.
func goDuration(d time.Duration) string {
	switch {
	case d%time.Second == 0:
		return fmt.Sprintf("%d * time.Second", d/time.Second)
	case d%time.Millisecond == 0:
		return fmt.Sprintf("%d * time.Millisecond", d/time.Millisecond)
	default:
		return fmt.Sprintf("time.Duration(%d)", int64(d))
	}
}

// validTaskType accepts lowercase kebab-case identifiers.
func validTaskType(s string) bool {
	if s == "" || strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-") || strings.Contains(s, "--") {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return false
		}
	}
	return true
}

const configTemplate = `package {{ .PackageName }}

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: {{ .TimeoutExpr }},
	}
}
`

const modelsTemplate = `package {{ .PackageName }}

type Input struct {
	ConversationID string {{ tag "conversation_id" }}
}

type Output struct {
	ConversationID string {{ tag "conversation_id" }}
}
`

const handlerTemplate = `// Package {{ .PackageName }} {{ .Description }}.
package {{ .PackageName }}

import (
	"context"
	"encoding/json"
	"fmt"

	"intent-workers/internal/common/logger"
	"intent-workers/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "{{ .TaskType }}"

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, fmt.Errorf("parse input: %w", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ConversationID == "" {
		return nil, fmt.Errorf("conversation_id is required")
	}

	return &Output{ConversationID: input.ConversationID}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to build complete command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey": job.Key,
		"error":  err.Error(),
	})
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, "UNKNOWN_ERROR").Inc()

	_, _ = client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(0).
		ErrorMessage(err.Error()).
		Send(context.Background())
}

// Execute runs the worker logic directly, used by tests and tooling.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
`

const testTemplate = `package {{ .PackageName }}

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intent-workers/internal/common/logger"
)

func newTestHandler() *Handler {
	return NewHandler(LoadConfig(), logger.NewStructured("error", "console"))
}

func TestExecute_RequiresConversationID(t *testing.T) {
	handler := newTestHandler()

	_, err := handler.Execute(context.Background(), &Input{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conversation_id")
}

func TestExecute_EchoesConversationID(t *testing.T) {
	handler := newTestHandler()

	out, err := handler.Execute(context.Background(), &Input{ConversationID: "conv-1"})
	require.NoError(t, err)
	assert.Equal(t, "conv-1", out.ConversationID)
}
`
