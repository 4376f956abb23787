// Package notifications queues outgoing email after a write has committed and renders it
// for the worker. Delivery is best effort: failures are logged and reported to the caller
// but never fail the action that triggered them.
package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/provider-portal/backend/internal/models"
	"github.com/provider-portal/backend/pkg/metrics"
	"github.com/provider-portal/backend/pkg/queue"
)

// Message is one email to queue.
type Message struct {
	Type       string
	To         string
	CustomerID *uuid.UUID
	UserID     *uuid.UUID
	Data       map[string]string
}

// Result is the outcome of Send.
type Result struct {
	Success bool
	Err     error
}

// LogStore records email log entries.
type LogStore interface {
	Create(ctx context.Context, el *models.EmailLog) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// Enqueuer pushes email jobs for the worker.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Dispatcher queues notifications.
type Dispatcher struct {
	logs    LogStore
	queue   Enqueuer
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewDispatcher creates a dispatcher. m may be nil.
func NewDispatcher(logs LogStore, q Enqueuer, m *metrics.Metrics, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{logs: logs, queue: q, metrics: m, logger: logger}
}

// Send writes a pending email log and enqueues the job. It never panics or blocks the
// caller on delivery; call it only after the triggering write committed.
func (d *Dispatcher) Send(ctx context.Context, msg Message) Result {
	err := d.send(ctx, msg)
	outcome := "queued"
	if err != nil {
		outcome = "failed"
		d.logger.Warn("notification not queued",
			zap.String("email_type", msg.Type),
			zap.String("recipient", msg.To),
			zap.Error(err),
		)
	}
	if d.metrics != nil {
		d.metrics.NotificationsTotal.WithLabelValues(msg.Type, outcome).Inc()
	}
	return Result{Success: err == nil, Err: err}
}

func (d *Dispatcher) send(ctx context.Context, msg Message) error {
	subject, err := Subject(msg.Type)
	if err != nil {
		return err
	}
	if msg.To == "" {
		return fmt.Errorf("no recipient for %s", msg.Type)
	}
	el := &models.EmailLog{
		CustomerID:     msg.CustomerID,
		UserID:         msg.UserID,
		EmailType:      msg.Type,
		RecipientEmail: msg.To,
		Subject:        subject,
		Status:         models.EmailLogStatusPending,
	}
	if err := d.logs.Create(ctx, el); err != nil {
		return fmt.Errorf("create email log: %w", err)
	}
	err = d.queue.EnqueueEmail(ctx, queue.EmailPayload{
		EmailLogID:     el.ID,
		EmailType:      msg.Type,
		RecipientEmail: msg.To,
		CustomerID:     msg.CustomerID,
		UserID:         msg.UserID,
		Data:           msg.Data,
	})
	if err != nil {
		if markErr := d.logs.MarkFailed(ctx, el.ID, err.Error()); markErr != nil {
			d.logger.Warn("mark email log failed", zap.String("email_log_id", el.ID.String()), zap.Error(markErr))
		}
		return fmt.Errorf("enqueue email: %w", err)
	}
	return nil
}
