package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"suppliersync/internal/database"
	"suppliersync/internal/events"
	"suppliersync/internal/models"
	"suppliersync/internal/supplier"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// JobRunner executes one job; the orchestrator implements it.
type JobRunner interface {
	Run(ctx context.Context, job *models.SyncJob) error
}

// JobManager owns the queued → running → succeeded|failed lifecycle. One
// goroutine per job, handed off through a channel at enqueue time; the old
// row-visibility poll survives only as a bounded guard before the flip to
// running.
type JobManager struct {
	db           *database.DB
	runner       JobRunner
	bus          *events.EventBus
	defaults     models.ParamDefaults
	staleTTL     time.Duration
	startupGrace time.Duration
	log          zerolog.Logger

	wg sync.WaitGroup
}

func NewJobManager(db *database.DB, runner JobRunner, bus *events.EventBus, defaults models.ParamDefaults, staleTTL, startupGrace time.Duration, logger *zerolog.Logger) *JobManager {
	if staleTTL <= 0 {
		staleTTL = models.DefaultStaleTTL
	}
	if startupGrace <= 0 {
		startupGrace = models.DefaultStartupGrace
	}
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "job_manager").Logger()
	}
	return &JobManager{
		db:           db,
		runner:       runner,
		bus:          bus,
		defaults:     defaults,
		staleTTL:     staleTTL,
		startupGrace: startupGrace,
		log:          log,
	}
}

// Enqueue validates, persists and starts a job. Returns
// database.ErrJobConflict when a job of the same (supplier, type) is active.
func (m *JobManager) Enqueue(ctx context.Context, supplierCode, jobType string, params models.JobParams) (*models.SyncJob, error) {
	if supplierCode == "" {
		return nil, errors.New("supplier code is required")
	}
	if !models.ValidJobType(jobType) {
		return nil, fmt.Errorf("invalid job type: %s", jobType)
	}

	// Opportunistic sweep: a dead predecessor must not block this enqueue.
	if _, err := m.db.SweepStaleJobs(ctx, m.staleTTL); err != nil {
		m.log.Error().Err(err).Msg("stale sweep failed")
	}

	params.Clamp(m.defaults)

	job := &models.SyncJob{
		ID:           uuid.NewString(),
		SupplierCode: supplierCode,
		JobType:      jobType,
		Params:       params,
	}
	if err := m.db.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	handoff := make(chan *models.SyncJob, 1)
	handoff <- job
	close(handoff)

	m.wg.Add(1)
	go m.runWorker(context.WithoutCancel(ctx), handoff)

	return job, nil
}

// Wait blocks until all in-flight workers finish.
func (m *JobManager) Wait() {
	m.wg.Wait()
}

func (m *JobManager) runWorker(ctx context.Context, handoff <-chan *models.SyncJob) {
	defer m.wg.Done()

	job, ok := <-handoff
	if !ok || job == nil {
		return
	}

	log := m.log.With().Str("job", job.ID).Str("supplier", job.SupplierCode).Str("type", job.JobType).Logger()

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("panic: %v", r)
			log.Error().Str("panic", msg).Msg("worker panicked")
			m.finish(ctx, job, models.JobFailed, msg)
		}
	}()

	if !m.waitVisible(ctx, job.ID) {
		// строка так и не стала видна, молча отдаем job подметальщику
		log.Warn().Msg("job row never became visible, giving up")
		return
	}

	if err := m.db.MarkJobRunning(ctx, job.ID); err != nil {
		log.Error().Err(err).Msg("failed to mark job running")
		return
	}
	job.Status = models.JobRunning
	m.bus.PublishJSON(events.EventJobStarted, m.payload(job, ""))
	log.Info().Msg("job started")

	err := m.runner.Run(ctx, job)
	if err != nil {
		log.Error().Err(err).Msg("job failed")
		if errors.Is(err, supplier.ErrAuthExpired) {
			m.bus.PublishJSON(events.EventAuthExpired, m.payload(job, err.Error()))
		}
		m.finish(ctx, job, models.JobFailed, err.Error())
		return
	}

	log.Info().Int("progress", job.Progress).Msg("job succeeded")
	m.finish(ctx, job, models.JobSucceeded, "")
}

// waitVisible is the bounded fallback handshake: the insert committed before
// the goroutine started, so normally the first probe succeeds.
func (m *JobManager) waitVisible(ctx context.Context, id string) bool {
	deadline := time.Now().Add(m.startupGrace)
	for {
		job, err := m.db.GetJob(ctx, id)
		if err == nil && job != nil {
			return true
		}
		if err != nil {
			m.log.Error().Err(err).Str("job", id).Msg("visibility probe failed")
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (m *JobManager) finish(ctx context.Context, job *models.SyncJob, status, errMsg string) {
	if err := m.db.FinishJob(ctx, job.ID, status, errMsg); err != nil {
		m.log.Error().Err(err).Str("job", job.ID).Msg("failed to record terminal status")
	}
	job.Status = status

	event := events.EventJobSucceeded
	if status == models.JobFailed {
		event = events.EventJobFailed
	}
	m.bus.PublishJSON(event, m.payload(job, errMsg))
}

func (m *JobManager) payload(job *models.SyncJob, errMsg string) events.JobEventPayload {
	return events.JobEventPayload{
		JobID:        job.ID,
		SupplierCode: job.SupplierCode,
		JobType:      job.JobType,
		Status:       job.Status,
		Progress:     job.Progress,
		Error:        errMsg,
	}
}
