package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"go-office-trash/internal/datastore"
	"go-office-trash/internal/model"
)

type JobRepository struct {
	store datastore.Datastore
}

func NewJobRepository(store datastore.Datastore) *JobRepository {
	return &JobRepository{store: store}
}

func (r *JobRepository) Create(ctx context.Context, job model.JobData) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if _, err := r.store.Add(ctx, datastore.CollectionJobs, job.JobID, raw); err != nil {
		return storeErr(fmt.Errorf("create job: %w", err), model.ErrJobNotFound)
	}
	return nil
}

func (r *JobRepository) Update(ctx context.Context, job model.JobData) error {
	patch := map[string]any{
		"status":          job.Status,
		"processed_items": job.ProcessedItems,
		"success_items":   job.SuccessItems,
		"failed_items":    job.FailedItems,
		"progress":        job.Progress,
		"started_at":      job.StartedAt,
		"finished_at":     job.FinishedAt,
	}
	if job.Result != nil {
		patch["result"] = job.Result
	}

	if err := r.store.Update(ctx, datastore.CollectionJobs, job.JobID, patch); err != nil {
		return storeErr(fmt.Errorf("update job: %w", err), model.ErrJobNotFound)
	}
	return nil
}

func (r *JobRepository) FindByID(ctx context.Context, jobID string) (model.JobData, error) {
	raw, err := r.store.GetByID(ctx, datastore.CollectionJobs, jobID)
	if err != nil {
		return model.JobData{}, storeErr(err, model.ErrJobNotFound)
	}

	var job model.JobData
	if err := json.Unmarshal(raw, &job); err != nil {
		return model.JobData{}, fmt.Errorf("decode job: %w", err)
	}
	return job, nil
}

func (r *JobRepository) Delete(ctx context.Context, jobID string) error {
	if err := r.store.Delete(ctx, datastore.CollectionJobs, jobID); err != nil {
		return storeErr(fmt.Errorf("delete job: %w", err), model.ErrJobNotFound)
	}
	return nil
}
