package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mailburst/mailburst/internal/domain"
	"github.com/mailburst/mailburst/internal/mailer"
	"github.com/mailburst/mailburst/internal/repository"
	"go.uber.org/zap"
)

const defaultResultsLimit = 50

// JobStatus is a point-in-time read of one job with its most recent
// per-recipient results.
type JobStatus struct {
	Job                domain.Job
	Results            []domain.RecipientResult
	ProgressPercentage int
}

// JobQueryService serves the read side: status lookups, recent job
// listings, deletion, and the file sink inventory. It never mutates
// delivery state beyond deleting whole jobs.
type JobQueryService struct {
	jobs         repository.JobRepository
	sinkDir      string
	logger       *zap.Logger
	resultsLimit int
}

func NewJobQueryService(jobs repository.JobRepository, sinkDir string, logger *zap.Logger) (*JobQueryService, error) {
	if jobs == nil {
		return nil, fmt.Errorf("job repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobQueryService{
		jobs:         jobs,
		sinkDir:      sinkDir,
		logger:       logger,
		resultsLimit: defaultResultsLimit,
	}, nil
}

// GetStatus returns the job together with its most recent results, capped
// at the service's results limit.
func (s *JobQueryService) GetStatus(ctx context.Context, id string) (*JobStatus, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, s.wrapReadError(err)
	}

	results, err := s.jobs.GetResults(ctx, id, s.resultsLimit)
	if err != nil {
		return nil, s.wrapReadError(err)
	}

	return &JobStatus{
		Job:                *job,
		Results:            results,
		ProgressPercentage: job.ProgressPercentage(),
	}, nil
}

// ListRecent returns jobs ordered newest first. A non-positive limit falls
// back to the repository default.
func (s *JobQueryService) ListRecent(ctx context.Context, limit int, status *domain.Status) ([]domain.Job, error) {
	jobs, err := s.jobs.ListRecent(ctx, limit, status)
	if err != nil {
		return nil, s.wrapReadError(err)
	}
	return jobs, nil
}

// Delete removes the job record and its results. In-flight delivery for the
// job is not interrupted; the engine abandons tracking once the record is
// gone.
func (s *JobQueryService) Delete(ctx context.Context, id string) error {
	deleted, err := s.jobs.Delete(ctx, id)
	if err != nil {
		return s.wrapReadError(err)
	}
	if !deleted {
		return fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
	}

	s.logger.Info("job deleted", zap.String("jobId", id))
	return nil
}

// SentEmails lists messages captured by the file sink transport, newest
// first. An unconfigured or empty sink yields an empty list.
func (s *JobQueryService) SentEmails(ctx context.Context) ([]mailer.SinkEntry, error) {
	if s.sinkDir == "" {
		return []mailer.SinkEntry{}, nil
	}
	entries, err := mailer.ListSink(s.sinkDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return entries, nil
}

// CountProcessing reports jobs left in the processing state, typically from
// a previous run that died mid-batch.
func (s *JobQueryService) CountProcessing(ctx context.Context) (int64, error) {
	count, err := s.jobs.CountByStatus(ctx, domain.StatusProcessing)
	if err != nil {
		return 0, s.wrapReadError(err)
	}
	return count, nil
}

func (s *JobQueryService) wrapReadError(err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}
