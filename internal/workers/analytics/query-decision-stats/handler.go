package querydecisionstats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"

	"intent-workers/internal/common/database"
	"intent-workers/internal/common/logger"
	"intent-workers/internal/common/metrics"
	"intent-workers/internal/models"
	"intent-workers/internal/workers/analytics/query-decision-stats/queries"
)

const (
	TaskType = "query-decision-stats"
)

var (
	ErrUnknownStatsQuery = errors.New("UNKNOWN_STATS_QUERY")
	ErrStatsQueryFailed  = errors.New("STATS_QUERY_FAILED")
	ErrStatsTimeout      = errors.New("STATS_TIMEOUT")
)

type Handler struct {
	config   *Config
	esClient *elasticsearch.Client
	cache    *database.RedisClient
	logger   logger.Logger
}

func NewHandler(config *Config, esClient *elasticsearch.Client, cache *database.RedisClient, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		esClient: esClient,
		cache:    cache,
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
		if errors.Is(err, ErrUnknownStatsQuery) {
			h.throwBusinessError(client, job, "UNKNOWN_STATS_QUERY", err)
			return
		}
		h.failJob(client, job, err, getRetryCount(err))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	name := models.StatsQuery(input.Query)
	switch name {
	case models.StatsDecisionsByIntent, models.StatsAmbiguityRate,
		models.StatsClarificationFunnel, models.StatsDailyDecisionVolume:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatsQuery, input.Query)
	}

	top := input.Top
	if top < 1 {
		top = h.config.DefaultTop
	}
	if top > 100 {
		top = 100
	}

	key := h.cacheKey(input, top)
	if !input.Refresh {
		if out, ok := h.readCache(ctx, key); ok {
			h.logger.Debug("stats served from cache", map[string]interface{}{
				"query": input.Query,
				"key":   key,
			})
			return out, nil
		}
	}

	result, err := queries.Execute(ctx, h.esClient, queries.StatsRequest{
		Index: h.config.Index,
		Name:  name,
		From:  input.From,
		To:    input.To,
		Top:   top,
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrStatsTimeout
		}
		if errors.Is(err, queries.ErrUnknownStatsQuery) {
			return nil, fmt.Errorf("%w: %v", ErrUnknownStatsQuery, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrStatsQueryFailed, err)
	}

	output := &Output{
		Query:     input.Query,
		Buckets:   result.Buckets,
		TotalDocs: result.TotalDocs,
		Took:      result.Took,
	}
	h.writeCache(ctx, key, output)

	h.logger.Info("stats query executed", map[string]interface{}{
		"query":     input.Query,
		"buckets":   len(output.Buckets),
		"totalDocs": output.TotalDocs,
		"tookMs":    output.Took,
	})

	return output, nil
}

func (h *Handler) cacheKey(input *Input, top int) string {
	return fmt.Sprintf("%s%s:%s:%s:%d", h.config.CacheKeyPrefix, input.Query, input.From, input.To, top)
}

// readCache returns a cached result when one is present. Cache trouble is
// logged and treated as a miss, the index stays authoritative.
func (h *Handler) readCache(ctx context.Context, key string) (*Output, bool) {
	cached, err := h.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			h.logger.Warn("stats cache read failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
		return nil, false
	}

	var out Output
	if err := json.Unmarshal([]byte(cached), &out); err != nil {
		h.logger.Warn("discarding corrupt stats cache entry", map[string]interface{}{
			"key": key,
		})
		return nil, false
	}

	out.CacheHit = true
	return &out, true
}

func (h *Handler) writeCache(ctx context.Context, key string, out *Output) {
	payload, err := json.Marshal(out)
	if err != nil {
		return
	}
	if err := h.cache.Set(ctx, key, payload, h.config.CacheTTL); err != nil {
		h.logger.Warn("stats cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

func getRetryCount(err error) int32 {
	if errors.Is(err, ErrStatsQueryFailed) {
		return 3
	}
	if errors.Is(err, ErrStatsTimeout) {
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
	case errors.Is(err, ErrStatsQueryFailed):
		errorCode = "STATS_QUERY_FAILED"
	case errors.Is(err, ErrStatsTimeout):
		errorCode = "STATS_TIMEOUT"
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
