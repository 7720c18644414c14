package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventflow/backend/internal/metrics"
	"github.com/eventflow/backend/internal/models"
	"github.com/eventflow/backend/pkg/mailer"
	"github.com/eventflow/backend/pkg/queue"
)

// Email job results recorded on eventflow_email_jobs_total.
const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusDropped = "dropped"
)

// JobQueue is the part of queue.Queue the worker consumes.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// LogStore records delivery attempts in email_logs.
type LogStore interface {
	Create(ctx context.Context, el *models.EmailLog) error
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// errPermanent marks jobs that retrying cannot fix.
var errPermanent = errors.New("permanent job failure")

// EmailProcessor renders and sends registration emails.
type EmailProcessor struct {
	queue   JobQueue
	mail    mailer.Mailer
	logs    LogStore
	metrics *metrics.Metrics
	logger  *zap.Logger
	backoff time.Duration
}

// NewEmailProcessor creates an email job processor. logs and m may be nil.
func NewEmailProcessor(q JobQueue, mail mailer.Mailer, logs LogStore, m *metrics.Metrics, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{queue: q, mail: mail, logs: logs, metrics: m, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("%w: unknown job type %s", errPermanent, job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("%w: unmarshal payload: %v", errPermanent, err)
	}
	msg, err := mailer.Render(payload.EmailType, payload.RecipientEmail, payload)
	if err != nil {
		return fmt.Errorf("%w: render %s: %v", errPermanent, payload.EmailType, err)
	}

	logID := p.startLog(ctx, payload, msg.Subject)
	if err := p.mail.Send(ctx, msg); err != nil {
		p.finishLog(ctx, logID, err)
		return fmt.Errorf("send: %w", err)
	}
	p.finishLog(ctx, logID, nil)
	p.logger.Info("email sent",
		zap.String("job_id", job.ID),
		zap.String("email_type", payload.EmailType),
		zap.String("registration_id", payload.RegistrationID.String()))
	return nil
}

func (p *EmailProcessor) startLog(ctx context.Context, payload queue.EmailPayload, subject string) uuid.UUID {
	if p.logs == nil {
		return uuid.Nil
	}
	el := &models.EmailLog{
		EmailType:      payload.EmailType,
		RecipientEmail: payload.RecipientEmail,
		Subject:        subject,
	}
	if payload.EventID != uuid.Nil {
		el.EventID = &payload.EventID
	}
	if payload.RegistrationID != uuid.Nil {
		el.RegistrationID = &payload.RegistrationID
	}
	if err := p.logs.Create(ctx, el); err != nil {
		p.logger.Warn("create email log failed", zap.Error(err))
		return uuid.Nil
	}
	return el.ID
}

func (p *EmailProcessor) finishLog(ctx context.Context, id uuid.UUID, sendErr error) {
	if p.logs == nil || id == uuid.Nil {
		return
	}
	var err error
	if sendErr == nil {
		err = p.logs.MarkSent(ctx, id)
	} else {
		err = p.logs.MarkFailed(ctx, id, sendErr.Error())
	}
	if err != nil {
		p.logger.Warn("update email log failed", zap.String("email_log_id", id.String()), zap.Error(err))
	}
}

// Handle processes job and retries it on a transient failure.
// It reports whether the caller should back off before the next job.
func (p *EmailProcessor) Handle(ctx context.Context, job *queue.Job) bool {
	p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	err := p.Process(ctx, job)
	switch {
	case err == nil:
		p.metrics.EmailJob(StatusSent)
		return false
	case errors.Is(err, errPermanent):
		p.logger.Error("dropping job", zap.String("job_id", job.ID), zap.Error(err))
		p.metrics.EmailJob(StatusDropped)
		return false
	}
	p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
	p.metrics.EmailJob(StatusFailed)
	if reErr := p.queue.Retry(ctx, job); reErr != nil {
		p.logger.Error("retry enqueue failed", zap.Error(reErr))
	}
	return true
}

// Run starts the worker loop: dequeue, process, retry on error. It returns when ctx is done.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			p.logger.Info("email worker stopping")
			return
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}
		if p.Handle(ctx, job) {
			p.sleep(ctx)
		}
	}
}

func (p *EmailProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
