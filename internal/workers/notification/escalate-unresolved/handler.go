package escalateunresolved

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	cerrors "intent-workers/internal/common/errors"
	"intent-workers/internal/common/logger"
	"intent-workers/internal/common/metrics"
	"intent-workers/internal/models"
)

const (
	TaskType = "escalate-unresolved"
)

var (
	ErrInvalidEscalationInput   = errors.New("INVALID_ESCALATION_INPUT")
	ErrEscalationDeliveryFailed = errors.New("ESCALATION_DELIVERY_FAILED")
)

// EmailSender is the slice of the shared SES client this worker needs.
type EmailSender interface {
	SendPlainEmail(ctx context.Context, from, to, subject, body string) (string, error)
}

// SMSSender is the slice of the shared SNS client this worker needs.
type SMSSender interface {
	PublishSMS(ctx context.Context, phoneNumber, message string) (string, error)
}

// WebhookPoster is the slice of the shared HTTP client this worker needs.
type WebhookPoster interface {
	PostJSON(ctx context.Context, url string, payload interface{}) (*http.Response, error)
}

type Handler struct {
	config  *Config
	email   EmailSender
	sms     SMSSender
	webhook WebhookPoster
	logger  logger.Logger
}

func NewHandler(config *Config, email EmailSender, sms SMSSender, webhook WebhookPoster, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		email:   email,
		sms:     sms,
		webhook: webhook,
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
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
		var stdErr *cerrors.StandardError
		switch {
		case errors.Is(err, ErrInvalidEscalationInput):
			h.throwBusinessError(client, job, "INVALID_ESCALATION_INPUT", err)
		case errors.As(err, &stdErr) && !stdErr.Retryable:
			h.throwBusinessError(client, job, string(stdErr.Code), err)
		default:
			h.failJob(client, job, err, getRetryCount(err))
		}
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ConversationID == "" {
		return nil, fmt.Errorf("%w: conversation_id is required", ErrInvalidEscalationInput)
	}
	if input.Reason == "" {
		return nil, fmt.Errorf("%w: escalation_reason is required", ErrInvalidEscalationInput)
	}

	channels, err := h.resolveChannels(input.Channels)
	if err != nil {
		return nil, err
	}

	escalation := &models.Escalation{
		EscalationID:   uuid.New().String(),
		ConversationID: input.ConversationID,
		Reason:         input.Reason,
		EscalatedAt:    time.Now().UTC(),
	}

	if len(channels) == 0 {
		h.logger.Warn("no escalation channel enabled, conversation stays unassigned", map[string]interface{}{
			"conversationId": input.ConversationID,
			"reason":         input.Reason,
		})
		return &Output{
			EscalationID: escalation.EscalationID,
			Status:       StatusDisabled,
			Channels:     []string{},
			EscalatedAt:  escalation.EscalatedAt.Format(time.RFC3339),
		}, nil
	}

	subject, body := buildOperatorMessage(input, escalation)

	delivered := make([]string, 0, len(channels))
	var failures []string
	var firstErr error

	for _, channel := range channels {
		var deliverErr error
		switch channel {
		case ChannelEmail:
			deliverErr = h.deliverEmail(ctx, subject, body)
		case ChannelSMS:
			deliverErr = h.deliverSMS(ctx, input, escalation)
		case ChannelWebhook:
			deliverErr = h.deliverWebhook(ctx, input, escalation)
		}

		if deliverErr != nil {
			h.logger.Error("escalation channel failed", map[string]interface{}{
				"channel":        channel,
				"conversationId": input.ConversationID,
				"error":          deliverErr.Error(),
			})
			failures = append(failures, fmt.Sprintf("%s: %v", channel, deliverErr))
			if firstErr == nil {
				firstErr = deliverErr
			}
			continue
		}

		delivered = append(delivered, channel)
		metrics.EscalationsSent.WithLabelValues(channel).Inc()
	}

	if len(delivered) == 0 {
		// A single channel keeps its own error code and retry class.
		if len(channels) == 1 {
			return nil, firstErr
		}
		return nil, fmt.Errorf("%w: %s", ErrEscalationDeliveryFailed, strings.Join(failures, "; "))
	}

	escalation.Channels = delivered

	h.logger.Info("conversation escalated", map[string]interface{}{
		"escalationId":   escalation.EscalationID,
		"conversationId": escalation.ConversationID,
		"reason":         escalation.Reason,
		"channels":       delivered,
	})

	return &Output{
		EscalationID: escalation.EscalationID,
		Status:       StatusSent,
		Channels:     delivered,
		EscalatedAt:  escalation.EscalatedAt.Format(time.RFC3339),
	}, nil
}

// resolveChannels maps the requested channels onto the enabled ones. An empty
// request means every enabled channel. Requesting a disabled channel is not
// an error, configuration wins.
func (h *Handler) resolveChannels(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return h.enabledChannels(), nil
	}

	channels := make([]string, 0, len(requested))
	for _, channel := range requested {
		switch channel {
		case ChannelEmail:
			if h.config.EmailEnabled {
				channels = append(channels, ChannelEmail)
			}
		case ChannelSMS:
			if h.config.SMSEnabled {
				channels = append(channels, ChannelSMS)
			}
		case ChannelWebhook:
			if h.config.WebhookEnabled {
				channels = append(channels, ChannelWebhook)
			}
		default:
			return nil, cerrors.NewEscalationChannelUnknownError(channel)
		}
	}
	return channels, nil
}

func (h *Handler) enabledChannels() []string {
	var channels []string
	if h.config.EmailEnabled {
		channels = append(channels, ChannelEmail)
	}
	if h.config.SMSEnabled {
		channels = append(channels, ChannelSMS)
	}
	if h.config.WebhookEnabled {
		channels = append(channels, ChannelWebhook)
	}
	return channels
}

func (h *Handler) deliverEmail(ctx context.Context, subject, body string) error {
	if h.email == nil {
		return cerrors.NewNotificationSendFailedError("escalation_email", errors.New("email client not configured"))
	}

	messageID, err := h.email.SendPlainEmail(ctx, h.config.FromEmail, h.config.OperatorEmail, subject, body)
	if err != nil {
		return cerrors.NewNotificationSendFailedError("escalation_email", err)
	}

	h.logger.Debug("escalation email accepted", map[string]interface{}{
		"messageId": messageID,
		"to":        h.config.OperatorEmail,
	})
	return nil
}

func (h *Handler) deliverSMS(ctx context.Context, input *Input, esc *models.Escalation) error {
	if h.sms == nil {
		return cerrors.NewNotificationSendFailedError("escalation_sms", errors.New("sms client not configured"))
	}

	message := fmt.Sprintf("Unresolved conversation %s (%s) after %d turns, escalation %s",
		input.ConversationID, input.Reason, input.TurnCount, esc.EscalationID)

	messageID, err := h.sms.PublishSMS(ctx, h.config.OperatorNumber, message)
	if err != nil {
		return cerrors.NewNotificationSendFailedError("escalation_sms", err)
	}

	h.logger.Debug("escalation SMS accepted", map[string]interface{}{
		"messageId": messageID,
	})
	return nil
}

func (h *Handler) deliverWebhook(ctx context.Context, input *Input, esc *models.Escalation) error {
	if h.webhook == nil {
		return cerrors.NewEscalationWebhookFailedError(errors.New("webhook client not configured"))
	}

	payload := map[string]interface{}{
		"escalation_id":   esc.EscalationID,
		"conversation_id": esc.ConversationID,
		"reason":          esc.Reason,
		"escalated_at":    esc.EscalatedAt.Format(time.RFC3339),
		"last_utterance":  input.LastUtterance,
		"turn_count":      input.TurnCount,
		"candidates":      input.Candidates,
	}

	resp, err := h.webhook.PostJSON(ctx, h.config.WebhookURL, payload)
	if err != nil {
		return cerrors.NewEscalationWebhookFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return cerrors.NewEscalationWebhookFailedError(fmt.Errorf("webhook returned %s", resp.Status))
	}
	return nil
}

// buildOperatorMessage renders the operator-facing subject and body.
func buildOperatorMessage(input *Input, esc *models.Escalation) (string, string) {
	subject := fmt.Sprintf("Unresolved conversation %s needs manual routing", input.ConversationID)

	var b strings.Builder
	fmt.Fprintf(&b, "Conversation %s could not be resolved automatically.\n\n", input.ConversationID)
	fmt.Fprintf(&b, "Escalation: %s\n", esc.EscalationID)
	fmt.Fprintf(&b, "Reason: %s\n", input.Reason)
	if input.TurnCount > 0 {
		fmt.Fprintf(&b, "Turns taken: %d\n", input.TurnCount)
	}
	if input.LastUtterance != "" {
		fmt.Fprintf(&b, "Last utterance: %q\n", input.LastUtterance)
	}
	if len(input.Candidates) > 0 {
		b.WriteString("\nClosest intents:\n")
		for i, c := range input.Candidates {
			fmt.Fprintf(&b, "  %d. %s (%s, score %.2f)\n", i+1, c.Label, c.IntentID, c.Score)
		}
	}
	b.WriteString("\nReview the conversation and route it manually.\n")

	return subject, b.String()
}

func getRetryCount(err error) int32 {
	var stdErr *cerrors.StandardError
	if errors.As(err, &stdErr) {
		return int32(cerrors.GetRetryCount(stdErr.Code))
	}
	if errors.Is(err, ErrEscalationDeliveryFailed) {
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
	var stdErr *cerrors.StandardError
	switch {
	case errors.As(err, &stdErr):
		errorCode = string(stdErr.Code)
	case errors.Is(err, ErrEscalationDeliveryFailed):
		errorCode = "ESCALATION_DELIVERY_FAILED"
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
