package providers

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

func TestListAppliesScopeThenSearch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cust, prov := uuid.New(), uuid.New()
	p := &access.Principal{UserID: uuid.New(), Roles: []models.Role{models.RoleBasicUser}, CustomerID: &cust, ProviderIDs: []uuid.UUID{prov}}
	f, err := access.ScopeFor(p, access.Providers)
	require.NoError(t, err)

	where := "WHERE p.customer_id = $1 AND p.id = ANY($2::uuid[]) AND (strpos(p.name, $3) > 0 OR strpos(p.npi, $3) > 0)"
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM providers p " + where)).
		WithArgs(cust, []string{prov.String()}, "Smith").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(where + " ORDER BY p.name, p.npi LIMIT $4 OFFSET $5")).
		WithArgs(cust, []string{prov.String()}, "Smith", 10, 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "npi", "name", "active", "customer_id", "provider_group_id",
			"created_at", "updated_at", "group_name", "assigned"}).
			AddRow(prov, npiA, "Dr Smith", true, cust, nil, now, now, "", 1))

	list, err := NewRepository(mock).List(context.Background(), f, access.ListParams{Search: "Smith", Page: access.Page{Number: 2, Size: 10}})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, npiA, list.Items[0].NPI)
	assert.Equal(t, 1, list.Items[0].AssignedUsers)
	assert.Equal(t, 2, list.Page)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetManyEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	out, err := GetMany(context.Background(), mock, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}
