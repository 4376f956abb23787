package submissions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/provider-portal/backend/internal/access"
	"github.com/provider-portal/backend/internal/models"
	"github.com/provider-portal/backend/internal/providers"
	"github.com/provider-portal/backend/pkg/database"
)

const itemColumns = `s.id, s.title, s.purpose, s.status, s.customer_id, s.provider_id, s.created_by, s.submitted_at,
	s.created_at, s.updated_at, p.npi, p.name, p.provider_group_id,
	(SELECT COUNT(*) FROM documents d WHERE d.submission_id = s.id)`

const documentColumns = `id, submission_id, filename, content_type, size_bytes, s3_key, uploaded_by, created_at`

// Repository handles submissions and documents persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates a submissions repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// A submission's provider group is its provider's group.
var scopeColumns = access.Columns{
	access.ColID:            "s.id",
	access.ColCustomer:      "s.customer_id",
	access.ColProviderGroup: "p.provider_group_id",
	access.ColProvider:      "s.provider_id",
}

func scanItem(row pgx.Row) (*models.SubmissionListItem, error) {
	var s models.SubmissionListItem
	err := row.Scan(&s.ID, &s.Title, &s.Purpose, &s.Status, &s.CustomerID, &s.ProviderID, &s.CreatedBy, &s.SubmittedAt,
		&s.CreatedAt, &s.UpdatedAt, &s.NPI, &s.ProviderName, &s.ProviderGroupID, &s.DocumentCount)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns submissions visible through f, newest first.
func (r *Repository) List(ctx context.Context, f access.Filter, params access.ListParams) (*models.List[models.SubmissionListItem], error) {
	var q access.Query
	f.Apply(&q, scopeColumns)
	q.Search(params.Search, "s.title", "p.npi", "p.name")

	const from = ` FROM submissions s JOIN providers p ON p.id = s.provider_id`
	total, err := database.Count(ctx, r.db, `SELECT COUNT(*)`+from+q.SQL(), q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("count submissions: %w", err)
	}
	page := access.NewPage(params.Page.Number, params.Page.Size)
	limit := q.Limit(page)
	rows, err := r.db.Query(ctx, `SELECT `+itemColumns+from+q.SQL()+` ORDER BY s.created_at DESC`+limit, q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()
	out := &models.List[models.SubmissionListItem]{Items: []models.SubmissionListItem{}, Total: total, Page: page.Number, PageSize: page.Size}
	for rows.Next() {
		s, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, *s)
	}
	return out, rows.Err()
}

// Get returns a submission with its provider info.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.SubmissionListItem, error) {
	return scanItem(r.db.QueryRow(ctx, `SELECT `+itemColumns+`
		FROM submissions s JOIN providers p ON p.id = s.provider_id WHERE s.id = $1`, id))
}

// Provider returns the provider a submission is for.
func (r *Repository) Provider(ctx context.Context, id uuid.UUID) (*models.Provider, error) {
	return providers.Get(ctx, r.db, id)
}

// Create inserts a draft submission.
func (r *Repository) Create(ctx context.Context, s *models.Submission) error {
	return r.db.QueryRow(ctx, `INSERT INTO submissions (title, purpose, status, customer_id, provider_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at, updated_at`,
		s.Title, s.Purpose, s.Status, s.CustomerID, s.ProviderID, s.CreatedBy).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// Update saves title and purpose.
func (r *Repository) Update(ctx context.Context, s *models.Submission) error {
	return r.db.QueryRow(ctx, `UPDATE submissions SET title = $2, purpose = $3, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`, s.ID, s.Title, s.Purpose).Scan(&s.UpdatedAt)
}

// Transition moves s from status from to s.Status. It reports false when the stored status
// is no longer from.
func (r *Repository) Transition(ctx context.Context, s *models.Submission, from models.SubmissionStatus) (bool, error) {
	err := r.db.QueryRow(ctx, `UPDATE submissions SET status = $2, submitted_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4 RETURNING updated_at`, s.ID, s.Status, s.SubmittedAt, from).Scan(&s.UpdatedAt)
	if database.IsNoRows(err) {
		return false, nil
	}
	return err == nil, err
}

// errNotDraft aborts a draft-only write whose submission has left DRAFT.
var errNotDraft = errors.New("submission is not a draft")

// Delete removes a draft and its document rows in one transaction. It reports false when
// the submission is no longer a draft.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	err := database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		var locked uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM submissions WHERE id = $1 AND status = $2 FOR UPDATE`,
			id, models.SubmissionDraft).Scan(&locked)
		if database.IsNoRows(err) {
			return errNotDraft
		}
		if err != nil {
			return fmt.Errorf("lock submission: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE submission_id = $1`, id); err != nil {
			return fmt.Errorf("delete documents: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM submissions WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete submission: %w", err)
		}
		return nil
	})
	if errors.Is(err, errNotDraft) {
		return false, nil
	}
	return err == nil, err
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	var d models.Document
	err := row.Scan(&d.ID, &d.SubmissionID, &d.Filename, &d.ContentType, &d.SizeBytes, &d.S3Key, &d.UploadedBy, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Documents returns a submission's documents, oldest first.
func (r *Repository) Documents(ctx context.Context, submissionID uuid.UUID) ([]models.Document, error) {
	rows, err := r.db.Query(ctx, `SELECT `+documentColumns+` FROM documents WHERE submission_id = $1 ORDER BY created_at`, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// Document returns one document of a submission.
func (r *Repository) Document(ctx context.Context, submissionID, id uuid.UUID) (*models.Document, error) {
	return scanDocument(r.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents
		WHERE submission_id = $1 AND id = $2`, submissionID, id))
}

// AddDocument inserts a document row while its submission is a draft. d.ID is chosen by
// the caller since it is part of the object key. It reports false when the submission is
// no longer a draft.
func (r *Repository) AddDocument(ctx context.Context, d *models.Document) (bool, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO documents (id, submission_id, filename, content_type, size_bytes, s3_key, uploaded_by)
		SELECT $1::uuid, s.id, $3::text, $4::text, $5::bigint, $6::text, $7::uuid
		FROM submissions s WHERE s.id = $2 AND s.status = $8 FOR SHARE
		RETURNING created_at`,
		d.ID, d.SubmissionID, d.Filename, d.ContentType, d.SizeBytes, d.S3Key, d.UploadedBy, models.SubmissionDraft).Scan(&d.CreatedAt)
	if database.IsNoRows(err) {
		return false, nil
	}
	return err == nil, err
}

// DeleteDocument removes a document row of a draft. It reports false when the submission
// is no longer a draft.
func (r *Repository) DeleteDocument(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM documents d USING submissions s
		WHERE d.id = $1 AND s.id = d.submission_id AND s.status = $2`, id, models.SubmissionDraft)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
