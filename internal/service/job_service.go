package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-office-trash/internal/event"
	"go-office-trash/internal/model"
	"go-office-trash/internal/repository"
	"go-office-trash/pkg/apierror"
)

const (
	JobOperationRestore = "restore"
	JobOperationDelete  = "delete"

	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusPartial   = "partial"
	JobStatusFailed    = "failed"
)

type queuedJob struct {
	ids      []string
	reason   string
	actor    model.AuditActor
	settings model.TrashSettings
}

// JobService runs bulk restore and purge in the background on a single
// worker, one job and one item at a time. Jobs cannot be cancelled.
type JobService struct {
	trash    *TrashService
	repo     *repository.JobRepository
	bus      event.Bus
	mu       sync.RWMutex
	jobs     map[string]*model.JobData
	requests map[string]queuedJob
	queue    chan string
	now      func() time.Time
}

func NewJobService(trash *TrashService, repo *repository.JobRepository, bus event.Bus) *JobService {
	if bus == nil {
		bus = event.Nop{}
	}
	return &JobService{
		trash:    trash,
		repo:     repo,
		bus:      bus,
		jobs:     map[string]*model.JobData{},
		requests: map[string]queuedJob{},
		queue:    make(chan string, 256),
		now:      time.Now,
	}
}

func (s *JobService) CreateJob(ctx context.Context, request model.JobRequest, actor model.AuditActor, settings model.TrashSettings) (model.JobData, error) {
	operation := strings.ToLower(strings.TrimSpace(request.Operation))
	if operation != JobOperationRestore && operation != JobOperationDelete {
		return model.JobData{}, apierror.BadRequest("operation must be one of: restore|delete", request.Operation)
	}

	ids, err := normalizeIDs(request.IDs)
	if err != nil {
		return model.JobData{}, err
	}

	if operation == JobOperationRestore && !CanRestoreRole(settings, actor.Role) {
		return model.JobData{}, fmt.Errorf("%w: role %q may not restore", model.ErrForbidden, actor.Role)
	}

	job := &model.JobData{
		JobID:       uuid.NewString(),
		Operation:   operation,
		Status:      JobStatusQueued,
		TotalItems:  len(ids),
		CreatedAt:   s.stamp(),
		RequestedBy: actor.UserID,
	}

	if err := s.repo.Create(ctx, *job); err != nil {
		return model.JobData{}, err
	}

	s.mu.Lock()
	s.jobs[job.JobID] = job
	s.requests[job.JobID] = queuedJob{ids: ids, reason: request.Reason, actor: actor, settings: settings}
	s.mu.Unlock()

	select {
	case s.queue <- job.JobID:
	default:
		s.mu.Lock()
		delete(s.jobs, job.JobID)
		delete(s.requests, job.JobID)
		s.mu.Unlock()
		if err := s.repo.Delete(ctx, job.JobID); err != nil {
			slog.Warn("drop rejected job failed", "job_id", job.JobID, "error", err)
		}
		return model.JobData{}, apierror.New("QUEUE_FULL", "too many pending jobs", "", http.StatusServiceUnavailable)
	}

	return cloneJob(job), nil
}

// GetJob returns a job visible to actor. Admins see every job; other users
// only their own.
func (s *JobService) GetJob(ctx context.Context, jobID string, actor model.AuditActor) (model.JobData, error) {
	s.mu.RLock()
	job, exists := s.jobs[jobID]
	var snapshot model.JobData
	if exists {
		snapshot = cloneJob(job)
	}
	s.mu.RUnlock()

	if !exists {
		stored, err := s.repo.FindByID(ctx, jobID)
		if err != nil {
			return model.JobData{}, err
		}
		snapshot = stored
	}

	if actor.Role != model.RoleAdmin && snapshot.RequestedBy != actor.UserID {
		return model.JobData{}, model.ErrJobNotFound
	}
	return snapshot, nil
}

// Run processes queued jobs until ctx is done.
func (s *JobService) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case jobID := <-s.queue:
			s.process(ctx, jobID)
		}
	}
}

func (s *JobService) process(ctx context.Context, jobID string) {
	s.mu.Lock()
	job, exists := s.jobs[jobID]
	request, hasRequest := s.requests[jobID]
	if !exists || !hasRequest {
		s.mu.Unlock()
		return
	}
	job.Status = JobStatusRunning
	job.StartedAt = s.stamp()
	running := cloneJob(job)
	s.mu.Unlock()

	s.persist(ctx, running)
	s.bus.Publish(event.New(event.TypeJobStarted, running, request.actor.UserID))

	result := model.BulkResult{Succeeded: []string{}, Failed: []model.BulkFailure{}}
	for _, id := range request.ids {
		var err error
		switch job.Operation {
		case JobOperationRestore:
			_, err = s.trash.Restore(ctx, id, request.actor, request.reason, request.settings)
		case JobOperationDelete:
			err = s.trash.PermanentDelete(ctx, id, request.actor)
		}

		if err != nil {
			result.Failed = append(result.Failed, model.BulkFailure{ID: id, Code: ErrorCode(err), Error: err.Error()})
		} else {
			result.Succeeded = append(result.Succeeded, id)
		}

		s.mu.Lock()
		job.ProcessedItems++
		job.SuccessItems = len(result.Succeeded)
		job.FailedItems = len(result.Failed)
		job.Progress = job.ProcessedItems * 100 / job.TotalItems
		s.mu.Unlock()
	}

	finished := s.finalize(jobID, result)
	if s.persist(ctx, finished) {
		// The stored record is complete; GetJob reads it from the repository.
		s.mu.Lock()
		delete(s.jobs, jobID)
		s.mu.Unlock()
	}
	s.bus.Publish(event.New(event.TypeJobCompleted, finished, request.actor.UserID))
	slog.Info("trash job finished", "job_id", jobID, "operation", finished.Operation, "status", finished.Status, "succeeded", finished.SuccessItems, "failed", finished.FailedItems)
}

func (s *JobService) finalize(jobID string, result model.BulkResult) model.JobData {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.jobs[jobID]
	delete(s.requests, jobID)

	job.Result = &result
	job.SuccessItems = len(result.Succeeded)
	job.FailedItems = len(result.Failed)
	job.ProcessedItems = job.SuccessItems + job.FailedItems
	job.Progress = 100
	job.FinishedAt = s.stamp()

	switch {
	case job.SuccessItems == 0 && job.FailedItems > 0:
		job.Status = JobStatusFailed
	case job.SuccessItems > 0 && job.FailedItems > 0:
		job.Status = JobStatusPartial
	default:
		job.Status = JobStatusCompleted
	}

	return cloneJob(job)
}

func (s *JobService) persist(ctx context.Context, job model.JobData) bool {
	if err := s.repo.Update(ctx, job); err != nil {
		slog.Warn("persist job state failed", "job_id", job.JobID, "status", job.Status, "error", err)
		return false
	}
	return true
}

func (s *JobService) stamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func cloneJob(value *model.JobData) model.JobData {
	cloned := *value
	if value.Result != nil {
		result := model.BulkResult{
			Succeeded: append([]string(nil), value.Result.Succeeded...),
			Failed:    append([]model.BulkFailure(nil), value.Result.Failed...),
		}
		cloned.Result = &result
	}
	return cloned
}
