package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mailburst/mailburst/internal/domain"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// ProgressDelta carries counter increments for one processed recipient.
type ProgressDelta struct {
	Processed  int
	Successful int
	Failed     int
}

// StatusSet optionally assigns status, timestamps, and the completion
// summary within the same atomic update as the counter increments.
type StatusSet struct {
	Status      domain.Status
	StartedAt   *time.Time
	CompletedAt *time.Time
	Summary     *domain.Summary
}

// JobRepository is the durable, concurrency-safe job store. All mutation of
// an existing job record goes through ApplyProgress; nothing outside the
// store reads-modifies-writes a job.
type JobRepository interface {
	Create(ctx context.Context, j *domain.Job) error
	ApplyProgress(ctx context.Context, id string, delta ProgressDelta, result *domain.RecipientResult, set *StatusSet) error
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	GetResults(ctx context.Context, jobID string, limit int) ([]domain.RecipientResult, error)
	ListRecent(ctx context.Context, limit int, status *domain.Status) ([]domain.Job, error)
	Delete(ctx context.Context, id string) (bool, error)
	CountByStatus(ctx context.Context, status domain.Status) (int64, error)
}

type GormJobRepo struct {
	db *gorm.DB
}

func NewGormJobRepo(db *gorm.DB) *GormJobRepo {
	return &GormJobRepo{db: db}
}

func (r *GormJobRepo) Create(ctx context.Context, j *domain.Job) error {
	model := jobModelFromDomain(j)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolationError(err) {
			return domain.ErrDuplicateID
		}
		return err
	}
	if j != nil {
		*j = *jobModelToDomain(model)
	}
	return nil
}

// ApplyProgress increments counters, appends at most one recipient result,
// and applies the optional status set as a single transaction, so counters
// and results can never diverge under concurrent writers.
func (r *GormJobRepo) ApplyProgress(
	ctx context.Context,
	id string,
	delta ProgressDelta,
	result *domain.RecipientResult,
	set *StatusSet,
) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{}

		if delta.Processed != 0 {
			updates["processed"] = gorm.Expr("processed + ?", delta.Processed)
		}
		if delta.Successful != 0 {
			updates["successful"] = gorm.Expr("successful + ?", delta.Successful)
		}
		if delta.Failed != 0 {
			updates["failed"] = gorm.Expr("failed + ?", delta.Failed)
		}

		if set != nil {
			updates["status"] = set.Status
			if set.StartedAt != nil {
				updates["started_at"] = *set.StartedAt
			}
			if set.CompletedAt != nil {
				updates["completed_at"] = *set.CompletedAt
			}
			if set.Summary != nil {
				updates["summary_total"] = set.Summary.Total
				updates["summary_successful"] = set.Summary.Successful
				updates["summary_failed"] = set.Summary.Failed
				updates["summary_success_rate"] = set.Summary.SuccessRate
			}
		}

		if len(updates) > 0 {
			res := tx.Model(&JobModel{}).Where("id = ?", id).Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return domain.ErrNotFound
			}
		}

		if result != nil {
			model := resultModelFromDomain(result)
			model.JobID = id
			if strings.TrimSpace(model.ID) == "" {
				model.ID = uuid.NewString()
			}
			if err := tx.Create(model).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *GormJobRepo) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	var model JobModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return jobModelToDomain(&model), nil
}

func (r *GormJobRepo) GetResults(ctx context.Context, jobID string, limit int) ([]domain.RecipientResult, error) {
	if limit < 1 {
		limit = defaultListLimit
	}

	var models []RecipientResultModel
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	results := make([]domain.RecipientResult, 0, len(models))
	for i := range models {
		results = append(results, *resultModelToDomain(&models[i]))
	}

	return results, nil
}

func (r *GormJobRepo) ListRecent(ctx context.Context, limit int, status *domain.Status) ([]domain.Job, error) {
	if limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := r.db.WithContext(ctx).Model(&JobModel{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var models []JobModel
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	jobs := make([]domain.Job, 0, len(models))
	for i := range models {
		jobs = append(jobs, *jobModelToDomain(&models[i]))
	}

	return jobs, nil
}

// Delete removes the job record and its results. Returns false when no
// record existed.
func (r *GormJobRepo) Delete(ctx context.Context, id string) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", id).Delete(&RecipientResultModel{}).Error; err != nil {
			return err
		}

		res := tx.Where("id = ?", id).Delete(&JobModel{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func (r *GormJobRepo) CountByStatus(ctx context.Context, status domain.Status) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&JobModel{}).
		Where("status = ?", status).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func isUniqueViolationError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
