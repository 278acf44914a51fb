// internal/workers/conversation/disambiguate-intent/handler.go
package disambiguateintent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"intent-workers/internal/common/logger"
	"intent-workers/internal/common/metrics"
	"intent-workers/internal/conversation"
	"intent-workers/internal/intent/dialog"
	"intent-workers/internal/intent/scoring"
	"intent-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "disambiguate-intent"
)

var (
	ErrMissingConversationID = errors.New("MISSING_CONVERSATION_ID")
	ErrStateLoadFailed       = errors.New("STATE_LOAD_FAILED")
	ErrStateSaveFailed       = errors.New("STATE_SAVE_FAILED")
)

type Handler struct {
	config *Config
	engine *dialog.Engine
	store  *conversation.Store
	logger logger.Logger
}

func NewHandler(config *Config, engine *dialog.Engine, store *conversation.Store, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		engine: engine,
		store:  store,
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
		h.failJob(client, job, fmt.Errorf("parse input: %w", err), 0)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		// Terminal dialog errors become BPMN errors so the process can
		// branch; store hiccups get retried.
		switch {
		case errors.Is(err, dialog.ErrInvalidState):
			h.throwBusinessError(client, job, "INVALID_STATE", err)
		case errors.Is(err, scoring.ErrEmptyCatalog):
			h.throwBusinessError(client, job, "EMPTY_CATALOG", err)
		case errors.Is(err, dialog.ErrEmptyCandidateSet):
			h.throwBusinessError(client, job, "EMPTY_CANDIDATE_SET", err)
		default:
			h.failJob(client, job, err, getRetryCount(err))
		}
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ConversationID == "" {
		return nil, ErrMissingConversationID
	}

	st, err := h.store.Get(ctx, input.ConversationID)
	if errors.Is(err, conversation.ErrNotFound) {
		st = dialog.NewState()
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateLoadFailed, err)
	}

	phase := string(st.Phase)
	if phase == "" {
		phase = string(dialog.PhaseInitial)
	}

	result, next, err := h.engine.Turn(st, input.Utterance)
	if err != nil {
		return nil, err
	}

	if err := h.store.Put(ctx, input.ConversationID, next); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateSaveFailed, err)
	}

	switch r := result.(type) {
	case dialog.NeedClarification:
		metrics.DisambiguationTurns.WithLabelValues(phase, "needs_clarification").Inc()
		metrics.AmbiguousUtterances.WithLabelValues(string(r.Reason)).Inc()
		if len(r.Options) > 0 {
			metrics.TopCandidateScore.Observe(r.Options[0].Score)
		}

		h.logger.Info("clarification requested", map[string]interface{}{
			"conversationId": input.ConversationID,
			"reason":         string(r.Reason),
			"optionCount":    len(r.Options),
			"turnCount":      next.TurnCount,
		})
		return &Output{
			Status:    models.StatusNeedClarification,
			Options:   r.Options,
			Reason:    string(r.Reason),
			TurnCount: next.TurnCount,
		}, nil

	case dialog.Resolved:
		metrics.DisambiguationTurns.WithLabelValues(phase, "resolved").Inc()
		metrics.ResolvedIntents.WithLabelValues(r.SelectedIntentID).Inc()
		metrics.TopCandidateScore.Observe(r.Confidence)

		h.logger.Info("conversation resolved", map[string]interface{}{
			"conversationId": input.ConversationID,
			"selectedIntent": r.SelectedIntentID,
			"confidence":     r.Confidence,
			"turnCount":      next.TurnCount,
		})
		return &Output{
			Status:           models.StatusResolved,
			RouteTo:          r.RouteTo,
			SelectedIntentID: r.SelectedIntentID,
			Confidence:       r.Confidence,
			TurnCount:        next.TurnCount,
		}, nil

	default:
		return nil, fmt.Errorf("unexpected turn result %T", result)
	}
}

func getRetryCount(err error) int32 {
	if errors.Is(err, ErrStateLoadFailed) || errors.Is(err, ErrStateSaveFailed) {
		return 2
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
	case errors.Is(err, ErrMissingConversationID):
		errorCode = "MISSING_CONVERSATION_ID"
	case errors.Is(err, ErrStateLoadFailed):
		errorCode = "STATE_LOAD_FAILED"
	case errors.Is(err, ErrStateSaveFailed):
		errorCode = "STATE_SAVE_FAILED"
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
