package access

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/provider-portal/backend/internal/models"
	"github.com/provider-portal/backend/pkg/apperr"
)

func TestRequire(t *testing.T) {
	err := Require(nil, models.RoleSystemAdmin)
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))

	p := &Principal{UserID: uuid.New(), Roles: []models.Role{models.RoleBasicUser}}
	err = Require(p, models.RoleSystemAdmin, models.RoleCustomerAdmin)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	assert.NoError(t, Require(p, models.RoleCustomerAdmin, models.RoleBasicUser))
}

func TestPrincipalHelpers(t *testing.T) {
	cust := uuid.New()
	group := uuid.New()
	other := uuid.New()
	prov := uuid.New()
	p := &Principal{
		Roles:           []models.Role{models.RoleBasicUser, models.RoleCustomerAdmin},
		CustomerID:      &cust,
		ProviderGroupID: &group,
		ProviderIDs:     []uuid.UUID{prov},
	}

	assert.Equal(t, models.RoleCustomerAdmin, p.Role())
	assert.False(t, p.IsSystemAdmin())
	assert.True(t, p.InCustomer(cust))
	assert.False(t, p.InCustomer(other))
	assert.True(t, p.InProviderGroup(&group))
	assert.False(t, p.InProviderGroup(nil))
	assert.True(t, p.AssignedTo(prov))
	assert.False(t, p.AssignedTo(other))
	assert.True(t, p.HasRole(models.RoleSystemAdmin, models.RoleBasicUser))
	assert.False(t, p.HasRole(models.RoleSystemAdmin, models.RoleProviderGroupAdmin))
	assert.False(t, p.HasRole())
}
