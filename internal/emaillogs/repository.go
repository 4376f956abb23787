package emaillogs

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/provider-portal/backend/internal/access"
	"github.com/provider-portal/backend/internal/models"
	"github.com/provider-portal/backend/pkg/database"
)

// Repository handles email_logs persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates an email logs repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a pending log entry and fills in its id and timestamps.
func (r *Repository) Create(ctx context.Context, el *models.EmailLog) error {
	if el.Status == "" {
		el.Status = models.EmailLogStatusPending
	}
	return r.db.QueryRow(ctx, `INSERT INTO email_logs (customer_id, user_id, email_type, recipient_email, subject, status)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING id, created_at`,
		el.CustomerID, el.UserID, el.EmailType, el.RecipientEmail, el.Subject, el.Status).
		Scan(&el.ID, &el.CreatedAt)
}

// MarkSent records a successful delivery.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE email_logs SET status = $2, sent_at = NOW(), error_message = NULL WHERE id = $1`,
		id, models.EmailLogStatusSent)
	return err
}

// MarkFailed records a failed delivery attempt.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.db.Exec(ctx, `UPDATE email_logs SET status = $2, error_message = $3 WHERE id = $1`,
		id, models.EmailLogStatusFailed, reason)
	return err
}

var scopeColumns = access.Columns{
	access.ColID:       "e.id",
	access.ColCustomer: "e.customer_id",
}

// List returns email logs visible through f, newest first.
func (r *Repository) List(ctx context.Context, f access.Filter, params access.ListParams) (*models.List[models.EmailLog], error) {
	var q access.Query
	f.Apply(&q, scopeColumns)
	q.Search(params.Search, "e.recipient_email", "e.email_type")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM email_logs e`+q.SQL(), q.Args()...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count email logs: %w", err)
	}

	page := access.NewPage(params.Page.Number, params.Page.Size)
	limit := q.Limit(page)
	rows, err := r.db.Query(ctx, `SELECT e.id, e.customer_id, e.user_id, e.email_type, e.recipient_email,
		COALESCE(e.subject, ''), e.status, e.sent_at, COALESCE(e.error_message, ''), e.created_at
		FROM email_logs e`+q.SQL()+` ORDER BY e.created_at DESC`+limit, q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("list email logs: %w", err)
	}
	defer rows.Close()
	out := &models.List[models.EmailLog]{Items: []models.EmailLog{}, Total: total, Page: page.Number, PageSize: page.Size}
	for rows.Next() {
		var el models.EmailLog
		if err := rows.Scan(&el.ID, &el.CustomerID, &el.UserID, &el.EmailType, &el.RecipientEmail,
			&el.Subject, &el.Status, &el.SentAt, &el.ErrorMessage, &el.CreatedAt); err != nil {
			return nil, err
		}
		out.Items = append(out.Items, el)
	}
	return out, rows.Err()
}
