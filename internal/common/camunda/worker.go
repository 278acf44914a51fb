// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"intent-workers/internal/common/config"
	"intent-workers/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"
)

// HandlerFunc is the Zeebe job handler signature.
type HandlerFunc func(client worker.JobClient, job entities.Job)

// Runner opens job workers against a shared Zeebe client and closes
// them together on shutdown.
type Runner struct {
	client    zbc.Client
	logger    *zap.Logger
	workers   []worker.JobWorker
	taskTypes []string
}

func NewRunner(client zbc.Client, log *zap.Logger) *Runner {
	return &Runner{
		client: client,
		logger: log,
	}
}

// Start opens a job worker for the task type unless it is disabled. Gauge
// and duration metrics are recorded here so handlers only report their own
// completed/failed counts.
func (r *Runner) Start(taskType string, wcfg config.WorkerConfig, handler HandlerFunc) {
	if !wcfg.Enabled {
		r.logger.Info("worker disabled", zap.String("taskType", taskType))
		return
	}

	instrumented := func(client worker.JobClient, job entities.Job) {
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		defer metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()

		start := time.Now()
		handler(client, job)
		metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
	}

	jobWorker := r.client.NewJobWorker().
		JobType(taskType).
		Handler(worker.JobHandler(instrumented)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	r.workers = append(r.workers, jobWorker)
	r.taskTypes = append(r.taskTypes, taskType)

	r.logger.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
}

// Count returns the number of running workers.
func (r *Runner) Count() int {
	return len(r.workers)
}

// Close stops all running workers. Each Close waits for in-flight jobs.
func (r *Runner) Close() {
	for i, w := range r.workers {
		r.logger.Info("stopping worker", zap.String("taskType", r.taskTypes[i]))
		w.Close()
	}
	r.workers = nil
	r.taskTypes = nil
}
