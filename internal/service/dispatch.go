package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mailburst/mailburst/internal/domain"
	"github.com/mailburst/mailburst/internal/mailer"
	"github.com/mailburst/mailburst/internal/observability"
	"github.com/mailburst/mailburst/internal/ratelimit"
	"github.com/mailburst/mailburst/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSendDelay     = 200 * time.Millisecond
	sendRateBucket       = "email"
	maxStoreAttempts     = 5
	baseStoreRetryDelay  = 500 * time.Millisecond
	maxStoreRetryDelay   = 10 * time.Second
	maxStoreJitterMillis = 250
)

// Sender is the delivery port the engine drives per recipient. Satisfied by
// *mailer.Chain.
type Sender interface {
	Send(ctx context.Context, msg mailer.Message) (*mailer.Outcome, error)
}

// SubmitRequest is one bulk send submission.
type SubmitRequest struct {
	Recipients []string
	Subject    string
	Message    string
	FromName   string
	FromEmail  string
}

// DispatchEngine owns the full job lifecycle: it validates submissions,
// persists the job record, and drives delivery of each accepted batch as an
// independent background task. It is the only component that mutates jobs.
type DispatchEngine struct {
	jobs        repository.JobRepository
	sender      Sender
	rateLimiter ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics
	sendDelay   time.Duration

	baseCtx context.Context
	cancel  context.CancelFunc
	batches errgroup.Group

	// mu orders batch starts against Close: once closed is set, no new
	// batch can slip past the drain's Wait.
	mu     sync.Mutex
	closed bool

	now      func() time.Time
	randIntn func(n int) int
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewDispatchEngine(
	jobs repository.JobRepository,
	sender Sender,
	rateLimiter ratelimit.RateLimiter,
	sendDelay time.Duration,
	logger *zap.Logger,
) (*DispatchEngine, error) {
	if jobs == nil {
		return nil, fmt.Errorf("job repository is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if sendDelay < 0 {
		sendDelay = defaultSendDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	baseCtx, cancel := context.WithCancel(context.Background())

	return &DispatchEngine{
		jobs:        jobs,
		sender:      sender,
		rateLimiter: rateLimiter,
		logger:      logger,
		sendDelay:   sendDelay,
		baseCtx:     baseCtx,
		cancel:      cancel,
		now:         time.Now,
		randIntn:    rand.Intn,
		sleep:       sleepWithContext,
	}, nil
}

func (e *DispatchEngine) SetMetrics(metrics *observability.Metrics) {
	if e == nil {
		return
	}
	e.metrics = metrics
}

// Submit validates the request, persists a queued job, and starts delivery
// in the background. The returned job reflects the accepted state; callers
// poll the query service for progress.
func (e *DispatchEngine) Submit(ctx context.Context, req SubmitRequest) (*domain.Job, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	recipients, err := domain.ValidateRecipients(req.Recipients)
	if err != nil {
		return nil, err
	}

	content := domain.EmailContent{
		Subject:   req.Subject,
		Message:   req.Message,
		FromName:  req.FromName,
		FromEmail: req.FromEmail,
	}
	content.Normalize()
	if err := content.Validate(); err != nil {
		return nil, err
	}

	job := &domain.Job{
		ID:        uuid.NewString(),
		Status:    domain.StatusQueued,
		Total:     len(recipients),
		Content:   content,
		CreatedAt: e.now().UTC(),
	}

	if err := e.createWithRetry(ctx, job); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		// The record was persisted but no worker will ever run it.
		if _, delErr := e.jobs.Delete(ctx, job.ID); delErr != nil {
			e.logger.Warn("failed to remove job refused at shutdown",
				zap.String("jobId", job.ID),
				zap.Error(delErr),
			)
		}
		return nil, fmt.Errorf("dispatch engine is shut down")
	}
	e.batches.Go(func() error {
		e.run(job.ID, recipients, content)
		return nil
	})
	e.mu.Unlock()

	e.logger.Info("job accepted",
		zap.String("jobId", job.ID),
		zap.Int("total", job.Total),
	)
	if e.metrics != nil {
		e.metrics.IncJobAccepted()
	}

	return job, nil
}

// SendOne delivers a single message synchronously through the fallback
// chain, outside any job. Used by the test email endpoint.
func (e *DispatchEngine) SendOne(ctx context.Context, req SubmitRequest) (*domain.RecipientResult, error) {
	if len(req.Recipients) != 1 {
		return nil, fmt.Errorf("%w: exactly one recipient is required", domain.ErrValidation)
	}

	recipients, err := domain.ValidateRecipients(req.Recipients)
	if err != nil {
		return nil, err
	}

	content := domain.EmailContent{
		Subject:   req.Subject,
		Message:   req.Message,
		FromName:  req.FromName,
		FromEmail: req.FromEmail,
	}
	content.Normalize()
	if err := content.Validate(); err != nil {
		return nil, err
	}

	result := e.deliver(ctx, recipients[0], content)
	return &result, nil
}

// Close stops accepting submissions and waits for in-flight batches to
// drain until ctx expires; any batch still running afterwards is canceled.
func (e *DispatchEngine) Close(ctx context.Context) error {
	if e == nil {
		return nil
	}

	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = e.batches.Wait()
		close(done)
	}()

	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-done:
		e.cancel()
		return nil
	case <-ctx.Done():
		e.cancel()
		return fmt.Errorf("dispatch engine drain interrupted: %w", ctx.Err())
	}
}

func (e *DispatchEngine) run(jobID string, recipients []string, content domain.EmailContent) {
	ctx := e.baseCtx
	logger := e.logger.With(zap.String("jobId", jobID))

	if e.metrics != nil {
		e.metrics.IncJobInFlight()
		defer e.metrics.DecJobInFlight()
	}

	startedAt := e.now().UTC()
	if err := e.applyWithRetry(ctx, jobID, repository.ProgressDelta{}, nil, &repository.StatusSet{
		Status:    domain.StatusProcessing,
		StartedAt: &startedAt,
	}); err != nil {
		logger.Error("failed to mark job processing, abandoning batch", zap.Error(err))
		return
	}

	successful, failed := 0, 0
	for i, recipient := range recipients {
		if i > 0 && e.sendDelay > 0 {
			if err := e.sleep(ctx, e.sendDelay); err != nil {
				logger.Warn("inter-send delay interrupted", zap.Error(err))
			}
		}

		result := e.deliver(ctx, recipient, content)
		if result.Success {
			successful++
		} else {
			failed++
		}

		delta := repository.ProgressDelta{Processed: 1}
		if result.Success {
			delta.Successful = 1
		} else {
			delta.Failed = 1
		}

		if err := e.applyWithRetry(ctx, jobID, delta, &result, nil); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				logger.Warn("job deleted mid-batch, abandoning remaining recipients")
				return
			}
			logger.Error("failed to persist progress update",
				zap.String("recipient", recipient),
				zap.Error(err),
			)
		}

		logger.Debug("recipient processed",
			zap.Int("processed", i+1),
			zap.Int("total", len(recipients)),
			zap.Bool("success", result.Success),
			zap.String("method", result.Method),
		)
	}

	summary := domain.NewSummary(len(recipients), successful, failed)
	completedAt := e.now().UTC()
	if err := e.applyWithRetry(ctx, jobID, repository.ProgressDelta{}, nil, &repository.StatusSet{
		Status:      domain.StatusCompleted,
		CompletedAt: &completedAt,
		Summary:     &summary,
	}); err != nil {
		logger.Error("failed to finalize job", zap.Error(err))
		return
	}

	if e.metrics != nil {
		e.metrics.IncJobCompleted()
	}
	logger.Info("job completed",
		zap.Int("total", summary.Total),
		zap.Int("successful", summary.Successful),
		zap.Int("failed", summary.Failed),
		zap.String("successRate", summary.SuccessRate),
	)
}

// deliver runs the fallback chain for one recipient and shapes the outcome
// into a RecipientResult. It never returns an error; failures are data.
func (e *DispatchEngine) deliver(ctx context.Context, recipient string, content domain.EmailContent) domain.RecipientResult {
	if e.rateLimiter != nil {
		// Pacing is best effort: a limiter outage must not fail delivery.
		if err := e.rateLimiter.Wait(ctx, sendRateBucket); err != nil && ctx.Err() == nil {
			e.logger.Warn("send rate limiter unavailable", zap.Error(err))
		}
	}

	msg := mailer.Message{
		To:        recipient,
		Subject:   content.Subject,
		HTML:      content.Message,
		FromName:  content.FromName,
		FromEmail: content.FromEmail,
	}

	sendStart := e.now()
	outcome, err := e.sender.Send(ctx, msg)
	sendDuration := e.now().Sub(sendStart)

	result := domain.RecipientResult{
		ID:        uuid.NewString(),
		Recipient: recipient,
		Timestamp: e.now().UTC(),
	}

	if err != nil {
		errText := err.Error()
		result.Success = false
		result.Error = &errText

		var chainErr *mailer.ChainError
		if errors.As(err, &chainErr) {
			result.Method = chainErr.LastTransport()
		}

		if e.metrics != nil {
			e.metrics.IncEmailFailed(result.Method)
			e.metrics.ObserveEmailSendDuration(result.Method, sendDuration)
		}
		return result
	}

	result.Success = true
	result.Method = outcome.Method
	result.MessageID = outcome.MessageID

	if e.metrics != nil {
		e.metrics.IncEmailSent(outcome.Method)
		e.metrics.ObserveEmailSendDuration(outcome.Method, sendDuration)
	}
	return result
}

func (e *DispatchEngine) createWithRetry(ctx context.Context, job *domain.Job) error {
	var lastErr error
	for attempt := 1; attempt <= maxStoreAttempts; attempt++ {
		err := e.jobs.Create(ctx, job)
		if err == nil {
			return nil
		}
		// An id collision is fatal to this creation attempt, never retried.
		if errors.Is(err, domain.ErrDuplicateID) || errors.Is(err, domain.ErrValidation) {
			return err
		}

		lastErr = err
		if attempt == maxStoreAttempts {
			break
		}
		if sleepErr := e.sleep(ctx, e.storeRetryDelay(attempt)); sleepErr != nil {
			return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, lastErr)
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, lastErr)
}

func (e *DispatchEngine) applyWithRetry(
	ctx context.Context,
	jobID string,
	delta repository.ProgressDelta,
	result *domain.RecipientResult,
	set *repository.StatusSet,
) error {
	var lastErr error
	for attempt := 1; attempt <= maxStoreAttempts; attempt++ {
		err := e.jobs.ApplyProgress(ctx, jobID, delta, result, set)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}

		lastErr = err
		if attempt == maxStoreAttempts {
			break
		}
		if sleepErr := e.sleep(ctx, e.storeRetryDelay(attempt)); sleepErr != nil {
			break
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, lastErr)
}

func (e *DispatchEngine) storeRetryDelay(attemptNumber int) time.Duration {
	if attemptNumber < 1 {
		attemptNumber = 1
	}

	delay := baseStoreRetryDelay
	for i := 1; i < attemptNumber; i++ {
		delay *= 2
		if delay >= maxStoreRetryDelay {
			delay = maxStoreRetryDelay
			break
		}
	}

	jitterMillis := 0
	if e.randIntn != nil && maxStoreJitterMillis > 0 {
		jitterMillis = e.randIntn(maxStoreJitterMillis + 1)
	}

	return delay + time.Duration(jitterMillis)*time.Millisecond
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
