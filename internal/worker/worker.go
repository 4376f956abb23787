package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/provider-portal/backend/internal/notifications"
	"github.com/provider-portal/backend/pkg/metrics"
	"github.com/provider-portal/backend/pkg/queue"
)

const dequeueTimeout = 5 * time.Second

// Outcomes recorded for each handled job.
const (
	OutcomeSent         = "sent"
	OutcomeRetried      = "retried"
	OutcomeDeadLettered = "dead_lettered"
	OutcomeDropped      = "dropped"
)

// errPermanent marks failures that a retry cannot fix.
var errPermanent = errors.New("permanent failure")

// LogStore updates email log entries after delivery.
type LogStore interface {
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// EmailProcessor delivers queued email jobs: render the template, send over SMTP, record
// the result on the email log.
type EmailProcessor struct {
	logs    LogStore
	mailer  notifications.Mailer
	queue   *queue.Queue
	metrics *metrics.Metrics
	logger  *zap.Logger
	backoff time.Duration
	wait    time.Duration
}

// NewEmailProcessor creates an email processor. m may be nil.
func NewEmailProcessor(logs LogStore, mailer notifications.Mailer, q *queue.Queue, m *metrics.Metrics, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{logs: logs, mailer: mailer, queue: q, metrics: m, logger: logger, backoff: queue.RetryBackoff, wait: dequeueTimeout}
}

func decode(job *queue.Job) (*queue.EmailPayload, error) {
	if job.Type != queue.JobTypeEmail {
		return nil, fmt.Errorf("%w: unknown job type %s", errPermanent, job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: unmarshal payload: %v", errPermanent, err)
	}
	return &payload, nil
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, payload *queue.EmailPayload) error {
	subject, body, err := notifications.Render(payload.EmailType, payload.Data)
	if err != nil {
		return fmt.Errorf("%w: %v", errPermanent, err)
	}
	if err := p.mailer.Send(ctx, payload.RecipientEmail, subject, body); err != nil {
		return err
	}
	if err := p.logs.MarkSent(ctx, payload.EmailLogID); err != nil {
		// The mail is out; a retry would send it twice.
		p.logger.Error("mark email log sent failed", zap.String("email_log_id", payload.EmailLogID.String()), zap.Error(err))
	}
	p.logger.Info("email sent",
		zap.String("email_log_id", payload.EmailLogID.String()),
		zap.String("email_type", payload.EmailType),
	)
	return nil
}

// Handle processes job and retries or dead-letters it on failure. It returns the outcome.
func (p *EmailProcessor) Handle(ctx context.Context, job *queue.Job) string {
	outcome := p.handle(ctx, job)
	if p.metrics != nil {
		p.metrics.EmailsDelivered.WithLabelValues(outcome).Inc()
	}
	return outcome
}

func (p *EmailProcessor) handle(ctx context.Context, job *queue.Job) string {
	payload, err := decode(job)
	if err != nil {
		p.logger.Error("job dropped", zap.String("job_id", job.ID), zap.Error(err))
		return OutcomeDropped
	}
	err = p.Process(ctx, payload)
	if err == nil {
		return OutcomeSent
	}
	if errors.Is(err, errPermanent) {
		p.logger.Error("job dropped", zap.String("job_id", job.ID), zap.Error(err))
		p.markFailed(ctx, payload.EmailLogID, err)
		return OutcomeDropped
	}

	p.logger.Warn("email send failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
	dead, reErr := p.queue.Retry(ctx, queue.QueueEmails, job)
	if reErr != nil {
		p.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(reErr))
		p.markFailed(ctx, payload.EmailLogID, err)
		return OutcomeDropped
	}
	if dead {
		p.markFailed(ctx, payload.EmailLogID, err)
		return OutcomeDeadLettered
	}
	return OutcomeRetried
}

func (p *EmailProcessor) markFailed(ctx context.Context, id uuid.UUID, cause error) {
	if err := p.logs.MarkFailed(ctx, id, cause.Error()); err != nil {
		p.logger.Error("mark email log failed", zap.String("email_log_id", id.String()), zap.Error(err))
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, queue.QueueEmails, p.wait)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			sleep(ctx, p.backoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if p.Handle(ctx, job) == OutcomeRetried {
			sleep(ctx, p.backoff)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
