// Package conversationcleanup removes finished conversation state from Redis.
package conversationcleanup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"intent-workers/internal/common/errors"
	"intent-workers/internal/common/logger"

	"github.com/go-redis/redis/v8"
)

type Service struct {
	config      *Config
	logger      logger.Logger
	redisClient *redis.Client
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	var redisClient *redis.Client
	if config.RedisHost != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", config.RedisHost, config.RedisPort),
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		})
	}

	return &Service{
		config:      config,
		logger:      deps.Logger,
		redisClient: redisClient,
	}
}

func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	s.logger.Info("Executing conversation cleanup", map[string]interface{}{
		"conversationId": input.ConversationID,
		"reason":         input.Reason,
	})

	if s.redisClient == nil {
		return nil, &errors.StandardError{
			Code:      "REDIS_NOT_CONFIGURED",
			Message:   "Redis client not configured",
			Details:   "Conversation state cleanup requires Redis",
			Retryable: false,
			Timestamp: time.Now(),
		}
	}

	if err := s.validateConversationID(input.ConversationID); err != nil {
		return nil, errors.NewInvalidConversationInputError(err.Error())
	}

	stateDeleted, err := s.deleteState(ctx, input.ConversationID)
	if err != nil {
		return nil, errors.NewConversationCleanupFailedError(err)
	}

	if !stateDeleted {
		// Already expired or never written; the receipt still records the attempt.
		s.logger.Warn("No stored state for conversation", map[string]interface{}{
			"conversationId": input.ConversationID,
		})
	}

	receiptKey := s.writeReceipt(ctx, input, stateDeleted)

	s.logger.Info("Conversation cleanup completed", map[string]interface{}{
		"conversationId": input.ConversationID,
		"stateDeleted":   stateDeleted,
		"receiptKey":     receiptKey,
	})

	return &Output{
		Success:      true,
		Message:      "Conversation cleaned up",
		StateDeleted: stateDeleted,
		ReceiptKey:   receiptKey,
		CleanedAt:    time.Now(),
	}, nil
}

func (s *Service) validateConversationID(conversationID string) error {
	if conversationID == "" {
		return fmt.Errorf("conversation ID is required")
	}
	return nil
}

func (s *Service) deleteState(ctx context.Context, conversationID string) (bool, error) {
	stateKey := fmt.Sprintf("%s:%s", s.config.KeyPrefix, conversationID)
	deleted, err := s.redisClient.Del(ctx, stateKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete conversation state: %w", err)
	}

	return deleted > 0, nil
}

// writeReceipt leaves a short-lived audit record of the cleanup. Receipt
// failures are logged but never fail the job.
func (s *Service) writeReceipt(ctx context.Context, input *Input, stateDeleted bool) string {
	receiptKey := fmt.Sprintf("cleanup:receipt:%s", input.ConversationID)
	receipt := map[string]interface{}{
		"conversationId": input.ConversationID,
		"reason":         input.Reason,
		"stateDeleted":   stateDeleted,
		"timestamp":      time.Now().Unix(),
	}

	data, _ := json.Marshal(receipt)
	if err := s.redisClient.Set(ctx, receiptKey, string(data), s.config.ReceiptTTL).Err(); err != nil {
		s.logger.Warn("Failed to write cleanup receipt", map[string]interface{}{
			"conversationId": input.ConversationID,
			"error":          err.Error(),
		})
		return ""
	}

	return receiptKey
}

func (s *Service) TestConnection(ctx context.Context) error {
	if s.redisClient == nil {
		return fmt.Errorf("redis client not configured")
	}

	_, err := s.redisClient.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}

	return nil
}
