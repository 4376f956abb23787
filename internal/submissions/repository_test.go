package submissions

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provider-portal/backend/internal/access"
	"github.com/provider-portal/backend/internal/models"
)

var itemCols = []string{"id", "title", "purpose", "status", "customer_id", "provider_id", "created_by", "submitted_at",
	"created_at", "updated_at", "npi", "name", "provider_group_id", "documents"}

func TestListScopesGroupAdminThroughProvider(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cust, group := uuid.New(), uuid.New()
	p := &access.Principal{UserID: uuid.New(), Roles: []models.Role{models.RoleProviderGroupAdmin}, CustomerID: &cust, ProviderGroupID: &group}
	f, err := access.ScopeFor(p, access.Submissions)
	require.NoError(t, err)

	where := " WHERE s.customer_id = $1 AND p.provider_group_id = $2"
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM submissions s JOIN providers p ON p.id = s.provider_id" + where)).
		WithArgs(cust, group).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	now := time.Now()
	id, prov := uuid.New(), uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(where + " ORDER BY s.created_at DESC LIMIT $3 OFFSET $4")).
		WithArgs(cust, group, 25, 0).
		WillReturnRows(pgxmock.NewRows(itemCols).AddRow(id, "Records", models.PurposeOther, models.SubmissionDraft,
			cust, prov, uuid.New(), nil, now, now, "1234567893", "Dr A", &group, 2))

	list, err := NewRepository(mock).List(context.Background(), f, access.ListParams{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	item := list.Items[0]
	assert.Equal(t, models.SubmissionDraft, item.Status)
	assert.Equal(t, &group, item.ProviderGroupID)
	assert.Equal(t, 2, item.DocumentCount)
	assert.Nil(t, item.SubmittedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionReportsLostRace(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	s := &models.Submission{ID: uuid.New(), Status: models.SubmissionSubmitted, SubmittedAt: &now}
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE submissions SET status = $2")).
		WithArgs(s.ID, models.SubmissionSubmitted, &now, models.SubmissionDraft).
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}))

	ok, err := NewRepository(mock).Transition(context.Background(), s, models.SubmissionDraft)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRemovesDocumentsFirst(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM submissions WHERE id = $1 AND status = $2 FOR UPDATE")).
		WithArgs(id, models.SubmissionDraft).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM documents WHERE submission_id = $1")).WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM submissions WHERE id = $1")).WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	ok, err := NewRepository(mock).Delete(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSkipsSubmittedSubmission(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(id, models.SubmissionDraft).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	ok, err := NewRepository(mock).Delete(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddDocumentRequiresDraft(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	d := &models.Document{ID: uuid.New(), SubmissionID: uuid.New(), Filename: "a.pdf", ContentType: "application/pdf",
		SizeBytes: 4, S3Key: "submissions/k/a.pdf", UploadedBy: uuid.New()}
	mock.ExpectQuery(regexp.QuoteMeta("FROM submissions s WHERE s.id = $2 AND s.status = $8 FOR SHARE")).
		WithArgs(d.ID, d.SubmissionID, d.Filename, d.ContentType, d.SizeBytes, d.S3Key, d.UploadedBy, models.SubmissionDraft).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}))

	ok, err := NewRepository(mock).AddDocument(context.Background(), d)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDocumentRequiresDraft(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM documents d USING submissions s")).
		WithArgs(id, models.SubmissionDraft).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	ok, err := NewRepository(mock).DeleteDocument(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
