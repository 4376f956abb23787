package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provider-portal/backend/pkg/apperr"
)

var principalCols = []string{"id", "name", "email", "roles", "active", "customer_id", "provider_group_id", "customer_active"}

func TestLoadPrincipal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID, cust, group, prov := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	mock.ExpectQuery("FROM users u LEFT JOIN customers c").WithArgs(userID).
		WillReturnRows(pgxmock.NewRows(principalCols).
			AddRow(userID, "Pat", "pat@x.test", []string{"provider-group-admin"}, true, &cust, &group, true))
	mock.ExpectQuery("SELECT provider_id FROM user_npis").WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"provider_id"}).AddRow(prov))

	p, err := NewRepository(mock).LoadPrincipal(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "provider-group-admin", string(p.Role()))
	assert.Equal(t, &cust, p.CustomerID)
	assert.Equal(t, &group, p.ProviderGroupID)
	assert.Equal(t, []uuid.UUID{prov}, p.ProviderIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadPrincipalRejectsInactive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID, cust := uuid.New(), uuid.New()
	mock.ExpectQuery("FROM users u LEFT JOIN customers c").WithArgs(userID).
		WillReturnRows(pgxmock.NewRows(principalCols).
			AddRow(userID, "Pat", "pat@x.test", []string{"basic-user"}, true, &cust, nil, false))

	_, err = NewRepository(mock).LoadPrincipal(context.Background(), userID)
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadPrincipalMissingUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM users u LEFT JOIN customers c").WithArgs(pgxmock.AnyArg()).WillReturnRows(pgxmock.NewRows(principalCols))

	_, err = NewRepository(mock).LoadPrincipal(context.Background(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
}

func TestGetByLogin(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	now := time.Now()
	mock.ExpectQuery(`LOWER\(email\) = LOWER\(\$1\) OR LOWER\(username\) = LOWER\(\$1\)\s+ORDER BY \(LOWER\(email\) = LOWER\(\$1\)\) DESC LIMIT 1`).WithArgs("Ann").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email", "username", "password_hash",
			"must_change_password", "active", "roles", "customer_id", "provider_group_id", "created_at", "updated_at"}).
			AddRow(id, "Ann", "ann@x.test", "ann", "hash", true, true, []string{"system-admin", "bogus"}, nil, nil, now, now))

	u, err := NewRepository(mock).GetByLogin(context.Background(), "Ann")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Len(t, u.Roles, 1)
	assert.Nil(t, u.CustomerID)
	assert.True(t, u.MustChangePassword)
}
