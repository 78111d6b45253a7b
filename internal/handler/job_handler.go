package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mailburst/mailburst/internal/domain"
	"github.com/mailburst/mailburst/internal/mailer"
	"github.com/mailburst/mailburst/internal/service"
)

type DispatchService interface {
	Submit(ctx context.Context, req service.SubmitRequest) (*domain.Job, error)
	SendOne(ctx context.Context, req service.SubmitRequest) (*domain.RecipientResult, error)
}

type JobQueryService interface {
	GetStatus(ctx context.Context, id string) (*service.JobStatus, error)
	ListRecent(ctx context.Context, limit int, status *domain.Status) ([]domain.Job, error)
	Delete(ctx context.Context, id string) error
	SentEmails(ctx context.Context) ([]mailer.SinkEntry, error)
}

type JobHandler struct {
	dispatch DispatchService
	query    JobQueryService
}

func NewJobHandler(dispatch DispatchService, query JobQueryService) (*JobHandler, error) {
	if dispatch == nil {
		return nil, fmt.Errorf("dispatch service is required")
	}
	if query == nil {
		return nil, fmt.Errorf("job query service is required")
	}
	return &JobHandler{dispatch: dispatch, query: query}, nil
}

func RegisterJobRoutes(router fiber.Router, dispatch DispatchService, query JobQueryService) error {
	h, err := NewJobHandler(dispatch, query)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/jobs", h.SubmitJob)
	v1.Get("/jobs/:id", h.GetJob)
	v1.Get("/jobs", h.ListJobs)
	v1.Delete("/jobs/:id", h.DeleteJob)
	v1.Post("/test-email", h.SendTestEmail)
	v1.Get("/sent-emails", h.ListSentEmails)

	return nil
}

type submitJobRequest struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Message    string   `json:"message"`
	FromName   string   `json:"fromName"`
	FromEmail  string   `json:"fromEmail"`
}

type submitJobResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// jobDetailResponse deliberately omits the message body: recipients and
// delivery state are queryable, the content itself is not.
type jobDetailResponse struct {
	ID                 string           `json:"id"`
	Status             string           `json:"status"`
	Total              int              `json:"total"`
	Processed          int              `json:"processed"`
	Successful         int              `json:"successful"`
	Failed             int              `json:"failed"`
	ProgressPercentage int              `json:"progressPercentage"`
	Subject            string           `json:"subject"`
	FromName           string           `json:"fromName"`
	FromEmail          string           `json:"fromEmail"`
	Summary            *summaryResponse `json:"summary,omitempty"`
	CreatedAt          time.Time        `json:"createdAt"`
	StartedAt          *time.Time       `json:"startedAt,omitempty"`
	CompletedAt        *time.Time       `json:"completedAt,omitempty"`
	Results            []resultResponse `json:"results"`
}

type summaryResponse struct {
	Total       int    `json:"total"`
	Successful  int    `json:"successful"`
	Failed      int    `json:"failed"`
	SuccessRate string `json:"successRate"`
}

type resultResponse struct {
	Recipient string    `json:"recipient"`
	Success   bool      `json:"success"`
	Method    string    `json:"method,omitempty"`
	MessageID string    `json:"messageId,omitempty"`
	Error     *string   `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type jobListItem struct {
	ID          string           `json:"id"`
	Status      string           `json:"status"`
	Total       int              `json:"total"`
	Processed   int              `json:"processed"`
	Successful  int              `json:"successful"`
	Failed      int              `json:"failed"`
	Subject     string           `json:"subject"`
	Summary     *summaryResponse `json:"summary,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
}

type sentEmailResponse struct {
	Filename string    `json:"filename"`
	Created  time.Time `json:"created"`
	Size     int64     `json:"size"`
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
}

func (h *JobHandler) SubmitJob(c *fiber.Ctx) error {
	var req submitJobRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	job, err := h.dispatch.Submit(c.Context(), service.SubmitRequest{
		Recipients: req.Recipients,
		Subject:    req.Subject,
		Message:    req.Message,
		FromName:   req.FromName,
		FromEmail:  req.FromEmail,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(submitJobResponse{
		JobID:  job.ID,
		Status: job.Status.String(),
		Total:  job.Total,
	})
}

func (h *JobHandler) GetJob(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	status, err := h.query.GetStatus(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toJobDetailResponse(status))
}

func (h *JobHandler) ListJobs(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return toHTTPError(fmt.Errorf("%w: limit must be >= 0", domain.ErrValidation))
	}

	var status *domain.Status
	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		parsed, err := domain.ParseStatusFromString(rawStatus)
		if err != nil {
			return toHTTPError(err)
		}
		status = &parsed
	}

	jobs, err := h.query.ListRecent(c.Context(), limit, status)
	if err != nil {
		return toHTTPError(err)
	}

	items := make([]jobListItem, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, toJobListItem(job))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"jobs":  items,
		"count": len(items),
	})
}

func (h *JobHandler) DeleteJob(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.query.Delete(c.Context(), id); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"jobId":   id,
		"deleted": true,
	})
}

func (h *JobHandler) SendTestEmail(c *fiber.Ctx) error {
	var req submitJobRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.dispatch.SendOne(c.Context(), service.SubmitRequest{
		Recipients: req.Recipients,
		Subject:    req.Subject,
		Message:    req.Message,
		FromName:   req.FromName,
		FromEmail:  req.FromEmail,
	})
	if err != nil {
		return toHTTPError(err)
	}

	statusCode := fiber.StatusOK
	if !result.Success {
		statusCode = fiber.StatusBadGateway
	}
	return c.Status(statusCode).JSON(toResultResponse(*result))
}

func (h *JobHandler) ListSentEmails(c *fiber.Ctx) error {
	entries, err := h.query.SentEmails(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	items := make([]sentEmailResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, sentEmailResponse{
			Filename: entry.Filename,
			Created:  entry.Created,
			Size:     entry.Size,
			To:       entry.To,
			Subject:  entry.Subject,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"emails": items,
		"count":  len(items),
	})
}

func toJobDetailResponse(status *service.JobStatus) jobDetailResponse {
	if status == nil {
		return jobDetailResponse{}
	}

	job := status.Job
	resp := jobDetailResponse{
		ID:                 job.ID,
		Status:             job.Status.String(),
		Total:              job.Total,
		Processed:          job.Processed,
		Successful:         job.Successful,
		Failed:             job.Failed,
		ProgressPercentage: status.ProgressPercentage,
		Subject:            job.Content.Subject,
		FromName:           job.Content.FromName,
		FromEmail:          job.Content.FromEmail,
		Summary:            toSummaryResponse(job.Summary),
		CreatedAt:          job.CreatedAt,
		StartedAt:          job.StartedAt,
		CompletedAt:        job.CompletedAt,
		Results:            make([]resultResponse, 0, len(status.Results)),
	}

	for _, result := range status.Results {
		resp.Results = append(resp.Results, toResultResponse(result))
	}
	return resp
}

func toJobListItem(job domain.Job) jobListItem {
	return jobListItem{
		ID:          job.ID,
		Status:      job.Status.String(),
		Total:       job.Total,
		Processed:   job.Processed,
		Successful:  job.Successful,
		Failed:      job.Failed,
		Subject:     job.Content.Subject,
		Summary:     toSummaryResponse(job.Summary),
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
	}
}

func toSummaryResponse(summary *domain.Summary) *summaryResponse {
	if summary == nil {
		return nil
	}
	return &summaryResponse{
		Total:       summary.Total,
		Successful:  summary.Successful,
		Failed:      summary.Failed,
		SuccessRate: summary.SuccessRate,
	}
}

func toResultResponse(result domain.RecipientResult) resultResponse {
	return resultResponse{
		Recipient: result.Recipient,
		Success:   result.Success,
		Method:    result.Method,
		MessageID: result.MessageID,
		Error:     result.Error,
		Timestamp: result.Timestamp,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDuplicateID):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}
