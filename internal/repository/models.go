package repository

import (
	"time"

	"github.com/mailburst/mailburst/internal/domain"
)

// JobModel is the persistence model for the jobs table. The summary columns
// stay NULL until the job completes.
type JobModel struct {
	ID                 string        `gorm:"type:uuid;primaryKey"`
	Status             domain.Status `gorm:"type:varchar(20);not null"`
	Total              int           `gorm:"not null"`
	Processed          int           `gorm:"not null;default:0"`
	Successful         int           `gorm:"not null;default:0"`
	Failed             int           `gorm:"not null;default:0"`
	Subject            string        `gorm:"type:varchar(500);not null"`
	Message            string        `gorm:"type:text;not null"`
	FromName           string        `gorm:"type:varchar(255);not null"`
	FromEmail          string        `gorm:"type:varchar(255);not null"`
	SummaryTotal       *int
	SummarySuccessful  *int
	SummaryFailed      *int
	SummarySuccessRate *string `gorm:"type:varchar(16)"`
	CreatedAt          time.Time
	StartedAt          *time.Time
	CompletedAt        *time.Time
}

func (JobModel) TableName() string {
	return "jobs"
}

// RecipientResultModel is the persistence model for recipient_results.
type RecipientResultModel struct {
	ID        string  `gorm:"type:uuid;primaryKey"`
	JobID     string  `gorm:"type:uuid;not null;index"`
	Recipient string  `gorm:"type:varchar(255);not null"`
	Success   bool    `gorm:"not null"`
	Method    string  `gorm:"type:varchar(50)"`
	MessageID string  `gorm:"type:varchar(255)"`
	Error     *string `gorm:"type:text"`
	Timestamp time.Time
}

func (RecipientResultModel) TableName() string {
	return "recipient_results"
}

func jobModelFromDomain(j *domain.Job) *JobModel {
	if j == nil {
		return nil
	}

	model := &JobModel{
		ID:          j.ID,
		Status:      j.Status,
		Total:       j.Total,
		Processed:   j.Processed,
		Successful:  j.Successful,
		Failed:      j.Failed,
		Subject:     j.Content.Subject,
		Message:     j.Content.Message,
		FromName:    j.Content.FromName,
		FromEmail:   j.Content.FromEmail,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}

	if j.Summary != nil {
		model.SummaryTotal = &j.Summary.Total
		model.SummarySuccessful = &j.Summary.Successful
		model.SummaryFailed = &j.Summary.Failed
		model.SummarySuccessRate = &j.Summary.SuccessRate
	}

	return model
}

func jobModelToDomain(m *JobModel) *domain.Job {
	if m == nil {
		return nil
	}

	job := &domain.Job{
		ID:         m.ID,
		Status:     m.Status,
		Total:      m.Total,
		Processed:  m.Processed,
		Successful: m.Successful,
		Failed:     m.Failed,
		Content: domain.EmailContent{
			Subject:   m.Subject,
			Message:   m.Message,
			FromName:  m.FromName,
			FromEmail: m.FromEmail,
		},
		CreatedAt:   m.CreatedAt,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
	}

	if m.SummaryTotal != nil && m.SummarySuccessful != nil && m.SummaryFailed != nil && m.SummarySuccessRate != nil {
		job.Summary = &domain.Summary{
			Total:       *m.SummaryTotal,
			Successful:  *m.SummarySuccessful,
			Failed:      *m.SummaryFailed,
			SuccessRate: *m.SummarySuccessRate,
		}
	}

	return job
}

func resultModelFromDomain(r *domain.RecipientResult) *RecipientResultModel {
	if r == nil {
		return nil
	}

	return &RecipientResultModel{
		ID:        r.ID,
		JobID:     r.JobID,
		Recipient: r.Recipient,
		Success:   r.Success,
		Method:    r.Method,
		MessageID: r.MessageID,
		Error:     r.Error,
		Timestamp: r.Timestamp,
	}
}

func resultModelToDomain(m *RecipientResultModel) *domain.RecipientResult {
	if m == nil {
		return nil
	}

	return &domain.RecipientResult{
		ID:        m.ID,
		JobID:     m.JobID,
		Recipient: m.Recipient,
		Success:   m.Success,
		Method:    m.Method,
		MessageID: m.MessageID,
		Error:     m.Error,
		Timestamp: m.Timestamp,
	}
}
