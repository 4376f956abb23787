package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/provider-portal/backend/internal/access"
	"github.com/provider-portal/backend/internal/models"
	"github.com/provider-portal/backend/pkg/apperr"
	"github.com/provider-portal/backend/pkg/utils"
)

type fakeStore struct {
	users          map[uuid.UUID]*models.User
	inactiveCust   map[uuid.UUID]bool
	updatedHashFor uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[uuid.UUID]*models.User{}, inactiveCust: map[uuid.UUID]bool{}}
}

func (f *fakeStore) add(t *testing.T, u models.User, password string) *models.User {
	t.Helper()
	hash, err := utils.HashPassword(password)
	require.NoError(t, err)
	u.ID = uuid.New()
	u.Password = hash
	f.users[u.ID] = &u
	return &u
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeStore) GetByLogin(_ context.Context, login string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == login || u.Username == login {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeStore) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	f.users[id].Password = hash
	f.users[id].MustChangePassword = false
	f.updatedHashFor = id
	return nil
}

func (f *fakeStore) CustomerActive(_ context.Context, id uuid.UUID) (bool, error) {
	return !f.inactiveCust[id], nil
}

func newService(store Store) *Service {
	return NewService(store, NewJWTService("secret", 1), zap.NewNop())
}

func TestLogin(t *testing.T) {
	store := newFakeStore()
	cust := uuid.New()
	u := store.add(t, models.User{Email: "ann@acme.test", Username: "ann", Active: true,
		Roles: []models.Role{models.RoleBasicUser}, CustomerID: &cust}, "password1")
	svc := newService(store)
	ctx := context.Background()

	token, got, err := svc.Login(ctx, "ann", "password1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	claims, err := svc.jwt.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)

	_, _, err = svc.Login(ctx, "ann@acme.test", "wrong")
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))

	_, _, err = svc.Login(ctx, "nobody", "password1")
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))

	store.inactiveCust[cust] = true
	_, _, err = svc.Login(ctx, "ann", "password1")
	require.Error(t, err)
	assert.Equal(t, "customer is inactive", apperr.From(err).Message)

	store.inactiveCust[cust] = false
	u.Active = false
	_, _, err = svc.Login(ctx, "ann", "password1")
	assert.Equal(t, "account is inactive", apperr.From(err).Message)
}

func TestChangePassword(t *testing.T) {
	store := newFakeStore()
	u := store.add(t, models.User{Email: "a@x.test", Username: "a", Active: true, MustChangePassword: true,
		Roles: []models.Role{models.RoleSystemAdmin}}, "temporary1")
	svc := newService(store)
	p := &access.Principal{UserID: u.ID, Roles: u.Roles}
	ctx := context.Background()

	err := svc.ChangePassword(ctx, p, "bad", "short")
	require.Error(t, err)
	e := apperr.From(err)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Contains(t, e.Fields, "current_password")
	assert.Contains(t, e.Fields, "new_password")

	err = svc.ChangePassword(ctx, p, "temporary1", "temporary1")
	assert.Equal(t, []string{"New password must differ from the current one"}, apperr.From(err).Fields["new_password"])

	require.NoError(t, svc.ChangePassword(ctx, p, "temporary1", "brand-new-pass"))
	assert.Equal(t, u.ID, store.updatedHashFor)
	assert.False(t, u.MustChangePassword)
	assert.True(t, utils.CheckPassword("brand-new-pass", u.Password))
}

func TestMeWithoutPrincipal(t *testing.T) {
	_, err := newService(newFakeStore()).Me(context.Background(), nil)
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
}
