package emaillogs

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

func TestCreatePending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id, cust := uuid.New(), uuid.New()
	now := time.Now()
	mock.ExpectQuery("INSERT INTO email_logs").
		WithArgs(&cust, (*uuid.UUID)(nil), models.EmailTypeRegistration, "a@x.test", "Welcome", models.EmailLogStatusPending).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(id, now))

	el := &models.EmailLog{CustomerID: &cust, EmailType: models.EmailTypeRegistration, RecipientEmail: "a@x.test", Subject: "Welcome"}
	require.NoError(t, NewRepository(mock).Create(context.Background(), el))
	assert.Equal(t, id, el.ID)
	assert.Equal(t, models.EmailLogStatusPending, el.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListScopedToCustomer(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cust := uuid.New()
	p := &access.Principal{UserID: uuid.New(), Roles: []models.Role{models.RoleCustomerAdmin}, CustomerID: &cust}
	f, err := access.ScopeFor(p, access.EmailLogs)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM email_logs e WHERE e.customer_id = $1")).
		WithArgs(cust).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.customer_id = $1 ORDER BY e.created_at DESC LIMIT $2 OFFSET $3")).
		WithArgs(cust, 25, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "customer_id", "user_id", "email_type", "recipient_email",
			"subject", "status", "sent_at", "error_message", "created_at"}).
			AddRow(uuid.New(), &cust, nil, models.EmailTypeTemporaryPassword, "u@x.test", "Your account", models.EmailLogStatusSent, nil, "", time.Now()))

	list, err := NewRepository(mock).List(context.Background(), f, access.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "u@x.test", list.Items[0].RecipientEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}
