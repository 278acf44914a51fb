// internal/workers/analytics/audit-routing-decision/handler.go
package auditroutingdecision

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"intent-workers/internal/common/logger"
	"intent-workers/internal/common/metrics"
	"intent-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
)

const (
	TaskType = "audit-routing-decision"
)

var (
	ErrInvalidDecisionInput = errors.New("INVALID_DECISION_INPUT")
	ErrDuplicateDecision    = errors.New("DUPLICATE_DECISION")
	ErrDatabaseInsertFailed = errors.New("DATABASE_INSERT_FAILED")
	ErrDecisionIndexFailed  = errors.New("DECISION_INDEX_FAILED")
)

type Handler struct {
	config   *Config
	db       *sql.DB
	esClient *elasticsearch.Client
	logger   logger.Logger
}

func NewHandler(config *Config, db *sql.DB, esClient *elasticsearch.Client, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		db:       db,
		esClient: esClient,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, fmt.Errorf("parse input: %w", err), 0)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidDecisionInput):
			h.throwBusinessError(client, job, "INVALID_DECISION_INPUT", err)
		case errors.Is(err, ErrDuplicateDecision):
			h.throwBusinessError(client, job, "DUPLICATE_DECISION", err)
		default:
			h.failJob(client, job, err, getRetryCount(err))
		}
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ConversationID == "" {
		return nil, fmt.Errorf("%w: conversation_id is required", ErrInvalidDecisionInput)
	}
	if input.Status != models.StatusResolved && input.Status != models.StatusNeedClarification {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidDecisionInput, input.Status)
	}
	if input.Status == models.StatusResolved && input.SelectedIntentID == "" {
		return nil, fmt.Errorf("%w: resolved decision without selected_intent_id", ErrInvalidDecisionInput)
	}

	// One audit row per conversation turn keeps BPMN retries idempotent.
	var exists bool
	dupQuery := fmt.Sprintf(`
		SELECT EXISTS(
			SELECT 1 FROM %s
			WHERE conversation_id = $1 AND turn_count = $2
		)`, h.config.Table)
	if err := h.db.QueryRowContext(ctx, dupQuery, input.ConversationID, input.TurnCount).Scan(&exists); err != nil {
		return nil, fmt.Errorf("%w: duplicate check failed: %v", ErrDatabaseInsertFailed, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: decision already recorded for conversation %s turn %d",
			ErrDuplicateDecision, input.ConversationID, input.TurnCount)
	}

	decision := &models.RoutingDecision{
		DecisionID:       uuid.New().String(),
		ConversationID:   input.ConversationID,
		Status:           input.Status,
		SelectedIntentID: input.SelectedIntentID,
		Confidence:       input.Confidence,
		AmbiguityReason:  input.Reason,
		TurnCount:        input.TurnCount,
		DecidedAt:        time.Now().UTC(),
	}

	// Postgres is the system of record, the index serves the stats queries.
	// Write both in parallel and fail the job if either sink rejects.
	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := h.insertDecision(ctx, decision); err != nil {
			errChan <- fmt.Errorf("%w: %v", ErrDatabaseInsertFailed, err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := h.indexDecision(ctx, decision); err != nil {
			errChan <- fmt.Errorf("%w: %v", ErrDecisionIndexFailed, err)
		}
	}()

	go func() {
		wg.Wait()
		close(errChan)
	}()

	// Let both sinks finish before reporting, the first error wins.
	var firstErr error
	for err := range errChan {
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}

	metrics.RoutingDecisionsRecorded.WithLabelValues(decision.Status).Inc()

	h.logger.Info("routing decision recorded", map[string]interface{}{
		"decisionId":     decision.DecisionID,
		"conversationId": decision.ConversationID,
		"status":         decision.Status,
		"selectedIntent": decision.SelectedIntentID,
		"turnCount":      decision.TurnCount,
	})

	return &Output{
		DecisionID: decision.DecisionID,
		RecordedAt: decision.DecidedAt.Format(time.RFC3339),
	}, nil
}

func (h *Handler) insertDecision(ctx context.Context, d *models.RoutingDecision) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			decision_id, conversation_id, status, selected_intent_id,
			confidence, ambiguity_reason, turn_count, decided_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, h.config.Table)

	_, err := h.db.ExecContext(ctx, query,
		d.DecisionID,
		d.ConversationID,
		d.Status,
		d.SelectedIntentID,
		d.Confidence,
		d.AmbiguityReason,
		d.TurnCount,
		d.DecidedAt.Format(time.RFC3339),
	)
	return err
}

func (h *Handler) indexDecision(ctx context.Context, d *models.RoutingDecision) error {
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      h.config.Index,
		DocumentID: d.DecisionID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, h.esClient)
	if err != nil {
		return fmt.Errorf("index request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index request returned %s", res.Status())
	}
	return nil
}

func getRetryCount(err error) int32 {
	if errors.Is(err, ErrDatabaseInsertFailed) || errors.Is(err, ErrDecisionIndexFailed) {
		return 3
	}
	return 0
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)

	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	if _, err = cmd.Send(context.Background()); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error, retries int32) {
	errorCode := "UNKNOWN_ERROR"
	switch {
	case errors.Is(err, ErrDatabaseInsertFailed):
		errorCode = "DATABASE_INSERT_FAILED"
	case errors.Is(err, ErrDecisionIndexFailed):
		errorCode = "DECISION_INDEX_FAILED"
	}

	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":    job.Key,
		"error":     err.Error(),
		"errorCode": errorCode,
		"retries":   retries,
	})
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode).Inc()

	_, _ = client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(retries).
		ErrorMessage(errorCode + ": " + err.Error()).
		Send(context.Background())
}

func (h *Handler) throwBusinessError(client worker.JobClient, job entities.Job, errorCode string, err error) {
	h.logger.Error("business error", map[string]interface{}{
		"jobKey":    job.Key,
		"errorCode": errorCode,
		"error":     err.Error(),
	})
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode).Inc()

	_, sendErr := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(err.Error()).
		Send(context.Background())
	if sendErr != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": sendErr,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
