package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/provider-portal/backend/internal/access"
	"github.com/provider-portal/backend/internal/models"
	"github.com/provider-portal/backend/internal/notifications"
	"github.com/provider-portal/backend/pkg/apperr"
	"github.com/provider-portal/backend/pkg/database"
	"github.com/provider-portal/backend/pkg/form"
	"github.com/provider-portal/backend/pkg/response"
	"github.com/provider-portal/backend/pkg/utils"
)

const (
	redirectList        = "/admin/users"
	msgNotFound         = "User not found"
	msgEmailTaken       = "Email already exists"
	msgUsernameTaken    = "Username already exists"
	msgGroupLocked      = "You can only edit users in your assigned provider group"
	msgBasicOnly        = "Provider group admins can only manage basic users"
	msgNoSystemAdmin    = "Only system admins can manage system admins"
	msgGroupRequired    = "Provider group is required for provider group admins"
	msgGroupOther       = "Provider group does not belong to this customer"
	msgSelfDelete       = "You cannot delete your own account"
	msgSelfDeactivate   = "You cannot deactivate your own account"
	msgNPIOther         = "NPI does not belong to this customer"
	msgNPIOutsideGroup  = "NPI is not in the user's provider group"
	temporaryPasswordLn = 12
)

// MsgUsernameAt rejects usernames that could be mistaken for an email at login.
const MsgUsernameAt = "Username cannot contain @"

// UsernameAllowed reports whether username can never collide with an email address.
func UsernameAllowed(username string) bool {
	return !strings.Contains(username, "@")
}

var uniqueFields = database.Unique{
	"users_email_key":    {Field: "email", Message: msgEmailTaken},
	"users_username_key": {Field: "username", Message: msgUsernameTaken},
}

// Store is the persistence the user service needs.
type Store interface {
	List(ctx context.Context, f access.Filter, params access.ListParams) (*models.List[models.UserListItem], error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	AssignedProviders(ctx context.Context, userID uuid.UUID) ([]models.Provider, error)
	Providers(ctx context.Context, ids []uuid.UUID) ([]models.Provider, error)
	ProviderGroup(ctx context.Context, id uuid.UUID) (*models.ProviderGroup, error)
	CustomerExists(ctx context.Context, id uuid.UUID) (bool, error)
	EmailTaken(ctx context.Context, email string, exclude *uuid.UUID) (bool, error)
	UsernameTaken(ctx context.Context, username string, exclude *uuid.UUID) (bool, error)
	Create(ctx context.Context, u *models.User) error
	Update(ctx context.Context, u *models.User) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	SetTemporaryPassword(ctx context.Context, id uuid.UUID, hash string) error
	CreatedSubmissions(ctx context.Context, id uuid.UUID) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ReplaceAssignments(ctx context.Context, userID uuid.UUID, providerIDs []uuid.UUID) error
}

// Notifier queues email after a committed write.
type Notifier interface {
	Send(ctx context.Context, msg notifications.Message) notifications.Result
}

// CreateInput is the create intent.
type CreateInput struct {
	Name            string `json:"name" form:"name" binding:"required,max=200"`
	Email           string `json:"email" form:"email" binding:"required,email,max=254"`
	Username        string `json:"username" form:"username" binding:"required,min=3,max=50,excludes=@"`
	Role            string `json:"role" form:"role" binding:"required"`
	CustomerID      string `json:"customer_id" form:"customer_id" binding:"omitempty,uuid"`
	ProviderGroupID string `json:"provider_group_id" form:"provider_group_id" binding:"omitempty,uuid"`
}

// UpdateInput is the update intent.
type UpdateInput struct {
	ID              string `json:"id" form:"id" binding:"required,uuid"`
	Name            string `json:"name" form:"name" binding:"required,max=200"`
	Email           string `json:"email" form:"email" binding:"required,email,max=254"`
	Username        string `json:"username" form:"username" binding:"required,min=3,max=50,excludes=@"`
	Role            string `json:"role" form:"role" binding:"required"`
	ProviderGroupID string `json:"provider_group_id" form:"provider_group_id" binding:"omitempty,uuid"`
}

// IDInput targets one user: delete, reset-password and toggle-active.
type IDInput struct {
	ID string `json:"id" form:"id" binding:"required,uuid"`
}

// AssignInput replaces a user's NPI assignments.
type AssignInput struct {
	ID          string   `json:"id" form:"id" binding:"required,uuid"`
	ProviderIDs []string `json:"provider_ids" form:"provider_ids" binding:"dive,uuid"`
}

// Service implements user reads and actions.
type Service struct {
	store    Store
	notifier Notifier
	baseURL  string
	logger   *zap.Logger
}

// NewService creates a user service. baseURL is the portal URL used in email links.
func NewService(store Store, notifier Notifier, baseURL string, logger *zap.Logger) *Service {
	return &Service{store: store, notifier: notifier, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

var managers = []models.Role{models.RoleSystemAdmin, models.RoleCustomerAdmin, models.RoleProviderGroupAdmin}

func target(u *models.User) access.Target {
	return access.Target{ID: u.ID, CustomerID: u.CustomerID, ProviderGroupID: u.ProviderGroupID}
}

// List returns the caller's visible users.
func (s *Service) List(ctx context.Context, p *access.Principal, params access.ListParams) (*models.List[models.UserListItem], error) {
	f, err := access.ScopeFor(p, access.Users)
	if err != nil {
		return nil, err
	}
	list, err := s.store.List(ctx, f, params)
	if err != nil {
		return nil, apperr.Internal("list users", err)
	}
	return list, nil
}

// Get returns one visible user with its assigned providers.
func (s *Service) Get(ctx context.Context, p *access.Principal, id uuid.UUID) (*models.UserDetail, error) {
	u, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.Check(p, access.Users, target(u), msgNotFound); err != nil {
		return nil, err
	}
	provs, err := s.store.AssignedProviders(ctx, u.ID)
	if err != nil {
		return nil, apperr.Internal("get assigned providers", err)
	}
	return &models.UserDetail{User: *u, Providers: provs}, nil
}

// Create adds a user with a temporary password and emails it.
func (s *Service) Create(ctx context.Context, p *access.Principal, in CreateInput) (*response.ActionResult, error) {
	if err := access.Require(p, managers...); err != nil {
		return nil, err
	}
	role := models.Role(in.Role)
	if !role.Valid() {
		return nil, apperr.Field("role", "Invalid role")
	}
	u := &models.User{
		Name:               strings.TrimSpace(in.Name),
		Email:              strings.TrimSpace(in.Email),
		Username:           strings.TrimSpace(in.Username),
		MustChangePassword: true,
		Active:             true,
		Roles:              []models.Role{role},
	}
	if role != models.RoleSystemAdmin {
		customerID, err := s.targetCustomer(ctx, p, in.CustomerID)
		if err != nil {
			return nil, err
		}
		u.CustomerID = &customerID
	}
	var err error
	if u.ProviderGroupID, err = s.resolveGroup(ctx, p, u, in.ProviderGroupID); err != nil {
		return nil, err
	}
	if err := checkRole(p, role, u.ProviderGroupID); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, u.Email, u.Username, nil); err != nil {
		return nil, err
	}
	temporary, hash, err := newTemporaryPassword()
	if err != nil {
		return nil, err
	}
	u.Password = hash
	if err := s.store.Create(ctx, u); err != nil {
		return nil, uniqueFields.Translate("create user", err)
	}
	s.logger.Info("user created", zap.String("user_id", u.ID.String()), zap.String("role", string(role)))

	msg := "User created successfully"
	if !s.sendTemporaryPassword(ctx, u, temporary) {
		msg = fmt.Sprintf("User created, but the email could not be sent. Temporary password: %s", temporary)
	}
	return &response.ActionResult{
		RedirectTo: redirectList + "/" + u.ID.String(),
		Toast:      response.Toast{Type: "success", Message: msg},
		Record:     u,
	}, nil
}

// Update edits profile, role and provider group of a managed user.
func (s *Service) Update(ctx context.Context, p *access.Principal, in UpdateInput) (*response.ActionResult, error) {
	u, err := s.loadManaged(ctx, p, uuid.MustParse(in.ID))
	if err != nil {
		return nil, err
	}
	role := models.Role(in.Role)
	if !role.Valid() {
		return nil, apperr.Field("role", "Invalid role")
	}
	switch {
	case role == models.RoleSystemAdmin && u.CustomerID != nil:
		return nil, apperr.Field("role", "System admins cannot belong to a customer")
	case role != models.RoleSystemAdmin && u.CustomerID == nil:
		return nil, apperr.Field("role", "System admins cannot be given a customer role")
	}
	u.Name = strings.TrimSpace(in.Name)
	u.Email = strings.TrimSpace(in.Email)
	u.Username = strings.TrimSpace(in.Username)
	u.Roles = []models.Role{role}
	if u.ProviderGroupID, err = s.resolveGroup(ctx, p, u, in.ProviderGroupID); err != nil {
		return nil, err
	}
	if err := checkRole(p, role, u.ProviderGroupID); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, u.Email, u.Username, &u.ID); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, u); err != nil {
		return nil, uniqueFields.Translate("update user", err)
	}
	return &response.ActionResult{
		RedirectTo: redirectList + "/" + u.ID.String(),
		Toast:      response.Toast{Type: "success", Message: "User updated successfully"},
		Record:     u,
	}, nil
}

// Delete removes a managed user that authored no submissions.
func (s *Service) Delete(ctx context.Context, p *access.Principal, in IDInput) (*response.ActionResult, error) {
	id := uuid.MustParse(in.ID)
	if p != nil && id == p.UserID {
		return nil, apperr.Invariant(msgSelfDelete)
	}
	u, err := s.loadManaged(ctx, p, id)
	if err != nil {
		return nil, err
	}
	n, err := s.store.CreatedSubmissions(ctx, u.ID)
	if err != nil {
		return nil, apperr.Internal("count user submissions", err)
	}
	if n > 0 {
		return nil, apperr.Invariant(fmt.Sprintf(
			"Cannot delete user with %d submission record(s). Deactivate the account instead.", n))
	}
	if err := s.store.Delete(ctx, u.ID); err != nil {
		return nil, apperr.Internal("delete user", err)
	}
	s.logger.Info("user deleted", zap.String("user_id", u.ID.String()))
	return &response.ActionResult{
		RedirectTo: redirectList,
		Toast:      response.Toast{Type: "success", Message: "User deleted successfully"},
	}, nil
}

// ResetPassword issues a new temporary password and emails it.
func (s *Service) ResetPassword(ctx context.Context, p *access.Principal, in IDInput) (*response.ActionResult, error) {
	u, err := s.loadManaged(ctx, p, uuid.MustParse(in.ID))
	if err != nil {
		return nil, err
	}
	temporary, hash, err := newTemporaryPassword()
	if err != nil {
		return nil, err
	}
	if err := s.store.SetTemporaryPassword(ctx, u.ID, hash); err != nil {
		return nil, apperr.Internal("reset password", err)
	}
	u.MustChangePassword = true
	s.logger.Info("password reset", zap.String("user_id", u.ID.String()))

	msg := "Password reset. A temporary password was emailed to the user"
	if !s.sendTemporaryPassword(ctx, u, temporary) {
		msg = fmt.Sprintf("Password reset, but the email could not be sent. Temporary password: %s", temporary)
	}
	return &response.ActionResult{
		RedirectTo: redirectList + "/" + u.ID.String(),
		Toast:      response.Toast{Type: "success", Message: msg},
	}, nil
}

// ToggleActive activates or deactivates a managed user.
func (s *Service) ToggleActive(ctx context.Context, p *access.Principal, in IDInput) (*response.ActionResult, error) {
	id := uuid.MustParse(in.ID)
	u, err := s.loadManaged(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if u.Active && id == p.UserID {
		return nil, apperr.Invariant(msgSelfDeactivate)
	}
	u.Active = !u.Active
	if err := s.store.SetActive(ctx, u.ID, u.Active); err != nil {
		return nil, apperr.Internal("toggle user", err)
	}
	msg := "User deactivated"
	if u.Active {
		msg = "User activated"
	}
	return &response.ActionResult{
		RedirectTo: redirectList + "/" + u.ID.String(),
		Toast:      response.Toast{Type: "success", Message: msg},
		Record:     u,
	}, nil
}

// AssignNPIs replaces the user's assignment set. Every provider must belong to the user's
// customer and, when the user has a provider group, to that group.
func (s *Service) AssignNPIs(ctx context.Context, p *access.Principal, in AssignInput) (*response.ActionResult, error) {
	u, err := s.loadManaged(ctx, p, uuid.MustParse(in.ID))
	if err != nil {
		return nil, err
	}
	if u.CustomerID == nil {
		return nil, apperr.Field("provider_ids", "System admins cannot be assigned NPIs")
	}
	ids := form.UUIDs(in.ProviderIDs)
	provs, err := s.store.Providers(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("load providers", err)
	}
	if len(provs) != len(ids) {
		return nil, apperr.Field("provider_ids", "NPI not found")
	}
	for _, prov := range provs {
		if prov.CustomerID != *u.CustomerID {
			return nil, apperr.Field("provider_ids", msgNPIOther)
		}
		if u.ProviderGroupID != nil && (prov.ProviderGroupID == nil || *prov.ProviderGroupID != *u.ProviderGroupID) {
			return nil, apperr.Field("provider_ids", msgNPIOutsideGroup)
		}
	}
	if err := s.store.ReplaceAssignments(ctx, u.ID, ids); err != nil {
		return nil, apperr.Internal("assign npis", err)
	}
	s.logger.Info("npis assigned", zap.String("user_id", u.ID.String()), zap.Int("count", len(ids)))
	return &response.ActionResult{
		RedirectTo: redirectList + "/" + u.ID.String(),
		Toast:      response.Toast{Type: "success", Message: fmt.Sprintf("%d NPI(s) assigned", len(ids))},
	}, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.NotFound(msgNotFound)
		}
		return nil, apperr.Internal("get user", err)
	}
	return u, nil
}

// loadManaged loads a user the caller may mutate. Users outside the caller's customer are
// not found; visible users the caller's role may not manage are forbidden.
func (s *Service) loadManaged(ctx context.Context, p *access.Principal, id uuid.UUID) (*models.User, error) {
	if err := access.Require(p, managers...); err != nil {
		return nil, err
	}
	u, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.IsSystemAdmin() {
		return u, nil
	}
	if u.CustomerID == nil || !p.InCustomer(*u.CustomerID) {
		return nil, apperr.NotFound(msgNotFound)
	}
	if err := checkRole(p, u.PrimaryRole(), u.ProviderGroupID); err != nil {
		return nil, err
	}
	return u, nil
}

// checkRole applies the user management role rules to a user holding role in group.
func checkRole(p *access.Principal, role models.Role, group *uuid.UUID) error {
	switch p.Role() {
	case models.RoleSystemAdmin:
		return nil
	case models.RoleCustomerAdmin:
		if role == models.RoleSystemAdmin {
			return apperr.Forbidden(msgNoSystemAdmin)
		}
		return nil
	case models.RoleProviderGroupAdmin:
		if p.ProviderGroupID == nil {
			return access.ErrNoProviderGroup
		}
		if !p.InProviderGroup(group) {
			return apperr.Forbidden(msgGroupLocked)
		}
		if role != models.RoleBasicUser {
			return apperr.Forbidden(msgBasicOnly)
		}
		return nil
	}
	return access.ErrNoRole
}

func (s *Service) targetCustomer(ctx context.Context, p *access.Principal, raw string) (uuid.UUID, error) {
	if !p.IsSystemAdmin() {
		if p.CustomerID == nil {
			return uuid.Nil, access.ErrNoCustomer
		}
		return *p.CustomerID, nil
	}
	id := form.OptionalUUID(raw)
	if id == nil {
		return uuid.Nil, apperr.Field("customer_id", "Customer is required")
	}
	ok, err := s.store.CustomerExists(ctx, *id)
	if err != nil {
		return uuid.Nil, apperr.Internal("get customer", err)
	}
	if !ok {
		return uuid.Nil, apperr.Field("customer_id", "Customer not found")
	}
	return *id, nil
}

// resolveGroup validates the provider group for u. Provider group admins always place users
// in their own group; system admins never have one.
func (s *Service) resolveGroup(ctx context.Context, p *access.Principal, u *models.User, raw string) (*uuid.UUID, error) {
	role := u.PrimaryRole()
	if role == models.RoleSystemAdmin {
		return nil, nil
	}
	id := form.OptionalUUID(raw)
	if p.Role() == models.RoleProviderGroupAdmin {
		if p.ProviderGroupID == nil {
			return nil, access.ErrNoProviderGroup
		}
		if id != nil && *id != *p.ProviderGroupID {
			return nil, apperr.Forbidden(msgGroupLocked)
		}
		own := *p.ProviderGroupID
		return &own, nil
	}
	if id == nil {
		if role == models.RoleProviderGroupAdmin {
			return nil, apperr.Field("provider_group_id", msgGroupRequired)
		}
		return nil, nil
	}
	g, err := s.store.ProviderGroup(ctx, *id)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.Field("provider_group_id", "Provider group not found")
		}
		return nil, apperr.Internal("get provider group", err)
	}
	if u.CustomerID == nil || g.CustomerID != *u.CustomerID {
		return nil, apperr.Field("provider_group_id", msgGroupOther)
	}
	return id, nil
}

func (s *Service) checkUnique(ctx context.Context, email, username string, exclude *uuid.UUID) error {
	fields := apperr.FieldErrors{}
	taken, err := s.store.EmailTaken(ctx, email, exclude)
	if err != nil {
		return apperr.Internal("check email", err)
	}
	if taken {
		fields.Add("email", msgEmailTaken)
	}
	if !UsernameAllowed(username) {
		fields.Add("username", MsgUsernameAt)
	} else {
		taken, err = s.store.UsernameTaken(ctx, username, exclude)
		if err != nil {
			return apperr.Internal("check username", err)
		}
		if taken {
			fields.Add("username", msgUsernameTaken)
		}
	}
	if len(fields) > 0 {
		return apperr.Validation(fields)
	}
	return nil
}

func newTemporaryPassword() (plain, hash string, err error) {
	plain, err = utils.TemporaryPassword(temporaryPasswordLn)
	if err != nil {
		return "", "", apperr.Internal("generate password", err)
	}
	hash, err = utils.HashPassword(plain)
	if err != nil {
		return "", "", apperr.Internal("hash password", err)
	}
	return plain, hash, nil
}

func (s *Service) sendTemporaryPassword(ctx context.Context, u *models.User, temporary string) bool {
	res := s.notifier.Send(ctx, notifications.Message{
		Type:       models.EmailTypeTemporaryPassword,
		To:         u.Email,
		CustomerID: u.CustomerID,
		UserID:     &u.ID,
		Data: map[string]string{
			"name":               u.Name,
			"username":           u.Username,
			"temporary_password": temporary,
			"login_url":          s.baseURL + "/login",
		},
	})
	return res.Success
}
