package users

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/provider-portal/backend/internal/access"
	"github.com/provider-portal/backend/internal/models"
	"github.com/provider-portal/backend/internal/notifications"
	"github.com/provider-portal/backend/pkg/apperr"
	"github.com/provider-portal/backend/pkg/utils"
)

type fakeStore struct {
	users       map[uuid.UUID]*models.User
	groups      map[uuid.UUID]*models.ProviderGroup
	providers   map[uuid.UUID]*models.Provider
	customers   map[uuid.UUID]bool
	assignments map[uuid.UUID][]uuid.UUID
	submissions map[uuid.UUID]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       map[uuid.UUID]*models.User{},
		groups:      map[uuid.UUID]*models.ProviderGroup{},
		providers:   map[uuid.UUID]*models.Provider{},
		customers:   map[uuid.UUID]bool{},
		assignments: map[uuid.UUID][]uuid.UUID{},
		submissions: map[uuid.UUID]int{},
	}
}

func (f *fakeStore) addUser(role models.Role, customer, group *uuid.UUID) *models.User {
	id := uuid.New()
	u := &models.User{
		ID: id, Name: "User", Email: id.String() + "@x.com", Username: id.String()[:8],
		Active: true, Roles: []models.Role{role}, CustomerID: customer, ProviderGroupID: group,
	}
	f.users[u.ID] = u
	return u
}

func (f *fakeStore) addGroup(customer uuid.UUID) uuid.UUID {
	g := &models.ProviderGroup{ID: uuid.New(), CustomerID: customer, Name: "G"}
	f.groups[g.ID] = g
	return g.ID
}

func (f *fakeStore) addProvider(customer uuid.UUID, group *uuid.UUID) uuid.UUID {
	p := &models.Provider{ID: uuid.New(), CustomerID: customer, ProviderGroupID: group, Active: true}
	f.providers[p.ID] = p
	return p.ID
}

func (f *fakeStore) List(_ context.Context, flt access.Filter, _ access.ListParams) (*models.List[models.UserListItem], error) {
	out := &models.List[models.UserListItem]{}
	for _, u := range f.users {
		if flt.Permits(target(u)) {
			out.Items = append(out.Items, models.UserListItem{User: *u})
		}
	}
	out.Total = len(out.Items)
	return out, nil
}

func (f *fakeStore) Get(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) AssignedProviders(ctx context.Context, userID uuid.UUID) ([]models.Provider, error) {
	return f.Providers(ctx, f.assignments[userID])
}

func (f *fakeStore) Providers(_ context.Context, ids []uuid.UUID) ([]models.Provider, error) {
	out := []models.Provider{}
	for _, id := range ids {
		if p, ok := f.providers[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) ProviderGroup(_ context.Context, id uuid.UUID) (*models.ProviderGroup, error) {
	g, ok := f.groups[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return g, nil
}

func (f *fakeStore) CustomerExists(_ context.Context, id uuid.UUID) (bool, error) {
	return f.customers[id], nil
}

func (f *fakeStore) EmailTaken(_ context.Context, email string, exclude *uuid.UUID) (bool, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) && (exclude == nil || *exclude != u.ID) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) UsernameTaken(_ context.Context, username string, exclude *uuid.UUID) (bool, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Username, username) && (exclude == nil || *exclude != u.ID) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) Create(_ context.Context, u *models.User) error {
	u.ID = uuid.New()
	f.users[u.ID] = u
	return nil
}

func (f *fakeStore) Update(_ context.Context, u *models.User) error {
	f.users[u.ID] = u
	return nil
}

func (f *fakeStore) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	f.users[id].Active = active
	return nil
}

func (f *fakeStore) SetTemporaryPassword(_ context.Context, id uuid.UUID, hash string) error {
	f.users[id].Password = hash
	f.users[id].MustChangePassword = true
	return nil
}

func (f *fakeStore) CreatedSubmissions(_ context.Context, id uuid.UUID) (int, error) {
	return f.submissions[id], nil
}

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.users, id)
	delete(f.assignments, id)
	return nil
}

func (f *fakeStore) ReplaceAssignments(_ context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	f.assignments[userID] = ids
	return nil
}

type fakeNotifier struct {
	sent []notifications.Message
	fail bool
}

func (n *fakeNotifier) Send(_ context.Context, msg notifications.Message) notifications.Result {
	if n.fail {
		return notifications.Result{Err: errors.New("redis down")}
	}
	n.sent = append(n.sent, msg)
	return notifications.Result{Success: true}
}

func newTestService(store *fakeStore, n *fakeNotifier) *Service {
	return NewService(store, n, "https://portal.example.com/", zap.NewNop())
}

func principalFor(u *models.User) *access.Principal {
	return &access.Principal{UserID: u.ID, Roles: u.Roles, CustomerID: u.CustomerID, ProviderGroupID: u.ProviderGroupID}
}

func systemAdmin() *access.Principal {
	return &access.Principal{UserID: uuid.New(), Roles: []models.Role{models.RoleSystemAdmin}}
}

func TestCreateSendsTemporaryPassword(t *testing.T) {
	store := newFakeStore()
	n := &fakeNotifier{}
	svc := newTestService(store, n)
	cust := uuid.New()
	admin := store.addUser(models.RoleCustomerAdmin, &cust, nil)

	res, err := svc.Create(context.Background(), principalFor(admin), CreateInput{
		Name: "Bea", Email: "bea@x.com", Username: "bea", Role: string(models.RoleBasicUser),
	})
	require.NoError(t, err)
	u := res.Record.(*models.User)
	assert.Equal(t, &cust, u.CustomerID)
	assert.True(t, u.MustChangePassword)
	assert.Equal(t, "User created successfully", res.Toast.Message)

	require.Len(t, n.sent, 1)
	msg := n.sent[0]
	assert.Equal(t, models.EmailTypeTemporaryPassword, msg.Type)
	assert.Equal(t, "bea@x.com", msg.To)
	assert.Equal(t, "https://portal.example.com/login", msg.Data["login_url"])
	assert.Len(t, msg.Data["temporary_password"], 12)
	assert.True(t, utils.CheckPassword(msg.Data["temporary_password"], store.users[u.ID].Password))
}

func TestCreateEchoesPasswordWhenEmailFails(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeNotifier{fail: true})
	cust := uuid.New()
	admin := store.addUser(models.RoleCustomerAdmin, &cust, nil)

	res, err := svc.Create(context.Background(), principalFor(admin), CreateInput{
		Name: "Bea", Email: "bea@x.com", Username: "bea", Role: string(models.RoleBasicUser),
	})
	require.NoError(t, err)
	assert.Contains(t, res.Toast.Message, "Temporary password: ")
	plain := res.Toast.Message[strings.LastIndex(res.Toast.Message, " ")+1:]
	u := res.Record.(*models.User)
	assert.True(t, utils.CheckPassword(plain, store.users[u.ID].Password))
}

func TestCreateUniquenessIsCaseInsensitive(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeNotifier{})
	cust := uuid.New()
	admin := store.addUser(models.RoleCustomerAdmin, &cust, nil)
	existing := store.addUser(models.RoleBasicUser, &cust, nil)

	_, err := svc.Create(context.Background(), principalFor(admin), CreateInput{
		Name: "Dup", Email: strings.ToUpper(existing.Email), Username: strings.ToUpper(existing.Username),
		Role: string(models.RoleBasicUser),
	})
	require.Error(t, err)
	fields := apperr.From(err).Fields
	assert.Equal(t, []string{msgEmailTaken}, fields["email"])
	assert.Equal(t, []string{msgUsernameTaken}, fields["username"])
}

func TestUsernameCannotTakeAnotherUsersEmail(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeNotifier{})
	cust := uuid.New()
	admin := store.addUser(models.RoleCustomerAdmin, &cust, nil)
	victim := store.addUser(models.RoleBasicUser, &cust, nil)
	before := len(store.users)

	_, err := svc.Create(context.Background(), principalFor(admin), CreateInput{
		Name: "Eve", Email: "eve@x.com", Username: victim.Email, Role: string(models.RoleBasicUser),
	})
	require.Error(t, err)
	assert.Equal(t, []string{MsgUsernameAt}, apperr.From(err).Fields["username"])
	assert.Len(t, store.users, before)

	_, err = svc.Update(context.Background(), principalFor(admin), UpdateInput{
		ID: victim.ID.String(), Name: victim.Name, Email: victim.Email, Username: "x@" + victim.Email,
		Role: string(models.RoleBasicUser),
	})
	require.Error(t, err)
	assert.Equal(t, []string{MsgUsernameAt}, apperr.From(err).Fields["username"])
	assert.NotContains(t, store.users[victim.ID].Username, "@")
}

func TestCreateRoleRules(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeNotifier{})
	cust := uuid.New()
	group := store.addGroup(cust)
	other := store.addGroup(cust)
	ctx := context.Background()
	custAdmin := principalFor(store.addUser(models.RoleCustomerAdmin, &cust, nil))
	groupAdmin := principalFor(store.addUser(models.RoleProviderGroupAdmin, &cust, &group))

	_, err := svc.Create(ctx, custAdmin, CreateInput{Name: "S", Email: "s@x.com", Username: "sys", Role: string(models.RoleSystemAdmin)})
	assert.Equal(t, msgNoSystemAdmin, apperr.From(err).Message)

	_, err = svc.Create(ctx, custAdmin, CreateInput{Name: "P", Email: "p@x.com", Username: "pga", Role: string(models.RoleProviderGroupAdmin)})
	assert.Equal(t, []string{msgGroupRequired}, apperr.From(err).Fields["provider_group_id"])

	_, err = svc.Create(ctx, custAdmin, CreateInput{Name: "P", Email: "p@x.com", Username: "pga",
		Role: string(models.RoleProviderGroupAdmin), ProviderGroupID: store.addGroup(uuid.New()).String()})
	assert.Equal(t, []string{msgGroupOther}, apperr.From(err).Fields["provider_group_id"])

	_, err = svc.Create(ctx, groupAdmin, CreateInput{Name: "C", Email: "c@x.com", Username: "cadm", Role: string(models.RoleCustomerAdmin)})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.Equal(t, msgBasicOnly, apperr.From(err).Message)

	_, err = svc.Create(ctx, groupAdmin, CreateInput{Name: "B", Email: "b@x.com", Username: "basic",
		Role: string(models.RoleBasicUser), ProviderGroupID: other.String()})
	assert.Equal(t, msgGroupLocked, apperr.From(err).Message)

	res, err := svc.Create(ctx, groupAdmin, CreateInput{Name: "B", Email: "b@x.com", Username: "basic", Role: string(models.RoleBasicUser)})
	require.NoError(t, err)
	assert.Equal(t, &group, res.Record.(*models.User).ProviderGroupID)

	_, err = svc.Create(ctx, custAdmin, CreateInput{Name: "X", Email: "x@x.com", Username: "xxx", Role: "owner"})
	assert.Equal(t, []string{"Invalid role"}, apperr.From(err).Fields["role"])
}

func TestSystemAdminCreatesCustomerlessAdmin(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeNotifier{})
	ctx := context.Background()

	res, err := svc.Create(ctx, systemAdmin(), CreateInput{Name: "Root", Email: "root@x.com", Username: "root",
		Role: string(models.RoleSystemAdmin), CustomerID: uuid.New().String()})
	require.NoError(t, err)
	assert.Nil(t, res.Record.(*models.User).CustomerID)

	_, err = svc.Create(ctx, systemAdmin(), CreateInput{Name: "B", Email: "b@x.com", Username: "bbb", Role: string(models.RoleBasicUser)})
	assert.Equal(t, []string{"Customer is required"}, apperr.From(err).Fields["customer_id"])
}

func TestGroupAdminCannotEditOtherGroup(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeNotifier{})
	cust := uuid.New()
	mine, theirs := store.addGroup(cust), store.addGroup(cust)
	admin := principalFor(store.addUser(models.RoleProviderGroupAdmin, &cust, &mine))
	victim := store.addUser(models.RoleBasicUser, &cust, &theirs)
	foreign := store.addUser(models.RoleBasicUser, ptr(uuid.New()), nil)
	ctx := context.Background()

	_, err := svc.Update(ctx, admin, UpdateInput{ID: victim.ID.String(), Name: "Hacked", Email: victim.Email,
		Username: victim.Username, Role: string(models.RoleBasicUser)})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.Equal(t, msgGroupLocked, apperr.From(err).Message)
	assert.Equal(t, "User", store.users[victim.ID].Name)

	_, err = svc.ResetPassword(ctx, admin, IDInput{ID: foreign.ID.String()})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCannotDeleteOrDeactivateSelf(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeNotifier{})
	cust := uuid.New()
	admin := store.addUser(models.RoleCustomerAdmin, &cust, nil)
	p := principalFor(admin)
	ctx := context.Background()

	_, err := svc.Delete(ctx, p, IDInput{ID: admin.ID.String()})
	assert.Equal(t, msgSelfDelete, apperr.From(err).Message)
	_, err = svc.ToggleActive(ctx, p, IDInput{ID: admin.ID.String()})
	assert.Equal(t, msgSelfDeactivate, apperr.From(err).Message)
	assert.True(t, store.users[admin.ID].Active)
}

func TestToggleActiveAndDelete(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeNotifier{})
	cust := uuid.New()
	p := principalFor(store.addUser(models.RoleCustomerAdmin, &cust, nil))
	u := store.addUser(models.RoleBasicUser, &cust, nil)
	ctx := context.Background()

	res, err := svc.ToggleActive(ctx, p, IDInput{ID: u.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, "User deactivated", res.Toast.Message)
	assert.False(t, store.users[u.ID].Active)

	store.submissions[u.ID] = 2
	_, err = svc.Delete(ctx, p, IDInput{ID: u.ID.String()})
	assert.Equal(t, apperr.KindInvariant, apperr.From(err).Kind)
	assert.Contains(t, store.users, u.ID)

	store.submissions[u.ID] = 0
	_, err = svc.Delete(ctx, p, IDInput{ID: u.ID.String()})
	require.NoError(t, err)
	assert.NotContains(t, store.users, u.ID)
}

func TestResetPasswordForcesChange(t *testing.T) {
	store := newFakeStore()
	n := &fakeNotifier{}
	svc := newTestService(store, n)
	u := store.addUser(models.RoleBasicUser, ptr(uuid.New()), nil)

	_, err := svc.ResetPassword(context.Background(), systemAdmin(), IDInput{ID: u.ID.String()})
	require.NoError(t, err)
	assert.True(t, store.users[u.ID].MustChangePassword)
	require.Len(t, n.sent, 1)
	assert.True(t, utils.CheckPassword(n.sent[0].Data["temporary_password"], store.users[u.ID].Password))
}

func TestAssignNPIsRestrictedToCustomerAndGroup(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeNotifier{})
	cust := uuid.New()
	group, otherGroup := store.addGroup(cust), store.addGroup(cust)
	p := principalFor(store.addUser(models.RoleCustomerAdmin, &cust, nil))
	u := store.addUser(models.RoleBasicUser, &cust, &group)
	inGroup := store.addProvider(cust, &group)
	outGroup := store.addProvider(cust, &otherGroup)
	foreign := store.addProvider(uuid.New(), nil)
	ctx := context.Background()

	_, err := svc.AssignNPIs(ctx, p, AssignInput{ID: u.ID.String(), ProviderIDs: []string{inGroup.String(), foreign.String()}})
	assert.Equal(t, []string{msgNPIOther}, apperr.From(err).Fields["provider_ids"])

	_, err = svc.AssignNPIs(ctx, p, AssignInput{ID: u.ID.String(), ProviderIDs: []string{outGroup.String()}})
	assert.Equal(t, []string{msgNPIOutsideGroup}, apperr.From(err).Fields["provider_ids"])
	assert.Empty(t, store.assignments[u.ID])

	res, err := svc.AssignNPIs(ctx, p, AssignInput{ID: u.ID.String(), ProviderIDs: []string{inGroup.String(), inGroup.String()}})
	require.NoError(t, err)
	assert.Equal(t, "1 NPI(s) assigned", res.Toast.Message)
	assert.Equal(t, []uuid.UUID{inGroup}, store.assignments[u.ID])

	_, err = svc.AssignNPIs(ctx, p, AssignInput{ID: u.ID.String()})
	require.NoError(t, err)
	assert.Empty(t, store.assignments[u.ID])
}

func TestBasicUserSeesOnlyThemself(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeNotifier{})
	cust := uuid.New()
	me := store.addUser(models.RoleBasicUser, &cust, nil)
	other := store.addUser(models.RoleBasicUser, &cust, nil)
	p := principalFor(me)

	list, err := svc.List(context.Background(), p, access.ListParams{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, me.ID, list.Items[0].ID)

	_, err = svc.Get(context.Background(), p, other.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.ToggleActive(context.Background(), p, IDInput{ID: other.ID.String()})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func ptr(id uuid.UUID) *uuid.UUID { return &id }
