package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"suppliersync/internal/database"
	"suppliersync/internal/events"
	"suppliersync/internal/models"
)

type fakeRunner struct {
	mu       sync.Mutex
	err      error
	panicMsg string
	gotJobs  []string
	sleep    time.Duration
}

func (r *fakeRunner) Run(ctx context.Context, job *models.SyncJob) error {
	r.mu.Lock()
	r.gotJobs = append(r.gotJobs, job.ID)
	r.mu.Unlock()
	if r.sleep > 0 {
		time.Sleep(r.sleep)
	}
	if r.panicMsg != "" {
		panic(r.panicMsg)
	}
	if r.err == nil {
		job.Progress = 7
	}
	return r.err
}

func newManager(db *database.DB, runner JobRunner, bus *events.EventBus) *JobManager {
	defaults := models.ParamDefaults{
		PageSize:        10,
		MaxPages:        10,
		MaxKeys:         100,
		CheckpointEvery: 5,
		Overlap:         10 * time.Minute,
	}
	return NewJobManager(db, runner, bus, defaults, 30*time.Minute, 2*time.Second, nil)
}

func TestEnqueueRunsJobToCompletion(t *testing.T) {
	db := newTestDB(t)
	runner := &fakeRunner{}
	bus := events.NewEventBus()

	var eventTypes []string
	for _, et := range []string{events.EventJobStarted, events.EventJobSucceeded, events.EventJobFailed} {
		et := et
		bus.Subscribe(et, func(*events.Event) error {
			eventTypes = append(eventTypes, et)
			return nil
		})
	}

	m := newManager(db, runner, bus)
	ctx := context.Background()

	job, err := m.Enqueue(ctx, "ownerclan", models.JobItemsRaw, models.JobParams{})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if job.Params.PageSize != 10 {
		t.Fatalf("params not clamped at enqueue, page size %d", job.Params.PageSize)
	}
	m.Wait()

	got, err := db.GetJob(ctx, job.ID)
	if err != nil || got == nil {
		t.Fatalf("job missing: %v", err)
	}
	if got.Status != models.JobSucceeded {
		t.Fatalf("expected succeeded, got %s (last_error %v)", got.Status, got.LastError)
	}
	if got.StartedAt == nil || got.FinishedAt == nil {
		t.Fatalf("started_at/finished_at not recorded")
	}
	if len(runner.gotJobs) != 1 || runner.gotJobs[0] != job.ID {
		t.Fatalf("runner did not receive the job: %v", runner.gotJobs)
	}
	if len(eventTypes) != 2 || eventTypes[0] != events.EventJobStarted || eventTypes[1] != events.EventJobSucceeded {
		t.Fatalf("unexpected event sequence: %v", eventTypes)
	}
}

func TestEnqueueSingleFlightConflict(t *testing.T) {
	db := newTestDB(t)
	runner := &fakeRunner{sleep: 300 * time.Millisecond}
	m := newManager(db, runner, nil)
	ctx := context.Background()

	if _, err := m.Enqueue(ctx, "ownerclan", models.JobItemsRaw, models.JobParams{}); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}

	_, err := m.Enqueue(ctx, "ownerclan", models.JobItemsRaw, models.JobParams{})
	if !errors.Is(err, database.ErrJobConflict) {
		t.Fatalf("expected ErrJobConflict, got %v", err)
	}

	// другой тип и другой поставщик не блокируются
	if _, err := m.Enqueue(ctx, "ownerclan", models.JobOrdersRaw, models.JobParams{}); err != nil {
		t.Fatalf("other type enqueue: %v", err)
	}
	if _, err := m.Enqueue(ctx, "domeggook", models.JobItemsRaw, models.JobParams{}); err != nil {
		t.Fatalf("other supplier enqueue: %v", err)
	}

	m.Wait()
}

func TestEnqueueAgainAfterFinish(t *testing.T) {
	db := newTestDB(t)
	runner := &fakeRunner{}
	m := newManager(db, runner, nil)
	ctx := context.Background()

	if _, err := m.Enqueue(ctx, "ownerclan", models.JobItemsRaw, models.JobParams{}); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	m.Wait()

	if _, err := m.Enqueue(ctx, "ownerclan", models.JobItemsRaw, models.JobParams{}); err != nil {
		t.Fatalf("enqueue after finish must pass: %v", err)
	}
	m.Wait()
}

func TestFailedRunnerRecordsLastError(t *testing.T) {
	db := newTestDB(t)
	runner := &fakeRunner{err: errors.New("supplier exploded")}
	m := newManager(db, runner, nil)
	ctx := context.Background()

	job, err := m.Enqueue(ctx, "ownerclan", models.JobItemsRaw, models.JobParams{})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	m.Wait()

	got, _ := db.GetJob(ctx, job.ID)
	if got.Status != models.JobFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.LastError == nil || *got.LastError != "supplier exploded" {
		t.Fatalf("last_error not recorded: %v", got.LastError)
	}
}

func TestPanicRecoveredAsFailure(t *testing.T) {
	db := newTestDB(t)
	runner := &fakeRunner{panicMsg: "nil map write"}
	m := newManager(db, runner, nil)
	ctx := context.Background()

	job, err := m.Enqueue(ctx, "ownerclan", models.JobItemsRaw, models.JobParams{})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	m.Wait()

	got, _ := db.GetJob(ctx, job.ID)
	if got.Status != models.JobFailed {
		t.Fatalf("expected failed after panic, got %s", got.Status)
	}
	if got.LastError == nil || !strings.Contains(*got.LastError, "panic") {
		t.Fatalf("panic message not recorded: %v", got.LastError)
	}
}

func TestEnqueueRejectsBadInput(t *testing.T) {
	db := newTestDB(t)
	m := newManager(db, &fakeRunner{}, nil)
	ctx := context.Background()

	if _, err := m.Enqueue(ctx, "", models.JobItemsRaw, models.JobParams{}); err == nil {
		t.Fatalf("expected error for empty supplier")
	}
	if _, err := m.Enqueue(ctx, "ownerclan", "bogus", models.JobParams{}); err == nil {
		t.Fatalf("expected error for invalid job type")
	}
}
