package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantCode    string
		wantRetries int
	}{
		{
			name:        "non-retryable engine error throws with zero retries",
			err:         NewInvalidStateError("conv-1"),
			wantCode:    "INVALID_STATE",
			wantRetries: 0,
		},
		{
			name:        "retryable store error keeps retry budget",
			err:         NewStateSaveFailedError(fmt.Errorf("redis: connection refused")),
			wantCode:    "STATE_SAVE_FAILED",
			wantRetries: 3,
		},
		{
			name:        "timeout gets the reduced budget",
			err:         NewSearchTimeoutError("decisions_by_intent"),
			wantCode:    "SEARCH_TIMEOUT",
			wantRetries: 2,
		},
		{
			name:        "unmapped code falls through unchanged",
			err:         NewBusinessRuleError("nope", "details"),
			wantCode:    "BUSINESS_RULE_VIOLATION",
			wantRetries: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmnErr := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, bpmnErr.Code)
			assert.Equal(t, tt.wantRetries, bpmnErr.Retries)
			assert.Equal(t, tt.err.Retryable, bpmnErr.Retryable)

			vars := bpmnErr.ToErrorVariables()
			assert.Equal(t, bpmnErr.Code, vars["errorCode"])
			assert.Contains(t, vars, "originalErrorCode")
			assert.Contains(t, vars, "timestamp")
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "CATALOG", GetErrorCategory(ErrCodeEmptyCatalog))
	assert.Equal(t, "CATALOG", GetErrorCategory(ErrCodeInvalidTrigger))
	assert.Equal(t, "CONVERSATION", GetErrorCategory(ErrCodeInvalidState))
	assert.Equal(t, "CONVERSATION", GetErrorCategory(ErrCodeEmptyCandidateSet))
	assert.Equal(t, "TEMPLATE", GetErrorCategory(ErrCodeTemplateNotFound))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeSearchQueryFailed))
	assert.Equal(t, "NOTIFICATION", GetErrorCategory(ErrCodeEscalationWebhookFailed))
	assert.Equal(t, "OTHER", GetErrorCategory("SOMETHING_ELSE"))
}

func TestIsRetryableErrorCode(t *testing.T) {
	assert.True(t, IsRetryableErrorCode(ErrCodeStateLoadFailed))
	assert.True(t, IsRetryableErrorCode(ErrCodeQueryTimeout))
	assert.False(t, IsRetryableErrorCode(ErrCodeInvalidState))
	assert.False(t, IsRetryableErrorCode(ErrCodeEmptyCatalog))
}

func TestStandardErrorMessage(t *testing.T) {
	err := NewEmptyCandidateSetError("conv-9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EMPTY_CANDIDATE_SET")
	assert.Contains(t, err.Details, "conv-9")
	assert.False(t, err.Retryable)
}
