package customers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/provider-portal/backend/internal/access"
	"github.com/provider-portal/backend/internal/models"
	"github.com/provider-portal/backend/internal/notifications"
	"github.com/provider-portal/backend/internal/users"
	"github.com/provider-portal/backend/pkg/apperr"
	"github.com/provider-portal/backend/pkg/database"
	"github.com/provider-portal/backend/pkg/response"
	"github.com/provider-portal/backend/pkg/utils"
)

const (
	redirectList     = "/admin/customers"
	msgNotFound      = "Customer not found"
	msgNameTaken     = "Customer name already exists"
	msgBAATaken      = "BAA number already exists"
	msgEmailTaken    = "Email already exists"
	msgUsernameTaken = "Username already exists"
)

var uniqueFields = database.Unique{
	"customers_name_key":       {Field: "name", Message: msgNameTaken},
	"customers_baa_number_key": {Field: "baa_number", Message: msgBAATaken},
	"users_email_key":          {Field: "admin_email", Message: msgEmailTaken},
	"users_username_key":       {Field: "admin_username", Message: msgUsernameTaken},
}

// Store is the persistence the customer service needs.
type Store interface {
	List(ctx context.Context, f access.Filter, params access.ListParams) (*models.List[models.CustomerListItem], error)
	Get(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	Counts(ctx context.Context, id uuid.UUID) (models.CustomerCounts, error)
	NameTaken(ctx context.Context, name string, exclude *uuid.UUID) (bool, error)
	BAATaken(ctx context.Context, baa string, exclude *uuid.UUID) (bool, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	CreateWithAdmin(ctx context.Context, c *models.Customer, admin *models.User) error
	Update(ctx context.Context, c *models.Customer) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Notifier queues email after a committed write.
type Notifier interface {
	Send(ctx context.Context, msg notifications.Message) notifications.Result
}

// CreateInput is the create intent: the customer and its first customer admin.
type CreateInput struct {
	Name          string `json:"name" form:"name" binding:"required,max=200"`
	BAANumber     string `json:"baa_number" form:"baa_number" binding:"max=100"`
	AdminName     string `json:"admin_name" form:"admin_name" binding:"required,max=200"`
	AdminEmail    string `json:"admin_email" form:"admin_email" binding:"required,email,max=254"`
	AdminUsername string `json:"admin_username" form:"admin_username" binding:"required,min=3,max=50,excludes=@"`
}

// UpdateInput is the update intent. A nil Active keeps the current value.
type UpdateInput struct {
	ID        string `json:"id" form:"id" binding:"required,uuid"`
	Name      string `json:"name" form:"name" binding:"required,max=200"`
	BAANumber string `json:"baa_number" form:"baa_number" binding:"max=100"`
	Active    *bool  `json:"active" form:"active"`
}

// DeleteInput is the delete intent.
type DeleteInput struct {
	ID string `json:"id" form:"id" binding:"required,uuid"`
}

// Service implements customer reads and actions.
type Service struct {
	store    Store
	notifier Notifier
	baseURL  string
	logger   *zap.Logger
}

// NewService creates a customer service.
func NewService(store Store, notifier Notifier, baseURL string, logger *zap.Logger) *Service {
	return &Service{store: store, notifier: notifier, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

func target(id uuid.UUID) access.Target {
	return access.Target{ID: id, CustomerID: &id}
}

// List returns the caller's visible customers.
func (s *Service) List(ctx context.Context, p *access.Principal, params access.ListParams) (*models.List[models.CustomerListItem], error) {
	f, err := access.ScopeFor(p, access.Customers)
	if err != nil {
		return nil, err
	}
	list, err := s.store.List(ctx, f, params)
	if err != nil {
		return nil, apperr.Internal("list customers", err)
	}
	return list, nil
}

// Get returns one visible customer with its dependent counts.
func (s *Service) Get(ctx context.Context, p *access.Principal, id uuid.UUID) (*models.CustomerDetail, error) {
	if err := access.Check(p, access.Customers, target(id), msgNotFound); err != nil {
		return nil, err
	}
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.Counts(ctx, id)
	if err != nil {
		return nil, apperr.Internal("count customer dependents", err)
	}
	return &models.CustomerDetail{Customer: *c, Counts: counts}, nil
}

// Create adds a customer together with exactly one customer admin and sends the admin a
// registration email.
func (s *Service) Create(ctx context.Context, p *access.Principal, in CreateInput) (*response.ActionResult, error) {
	if err := access.Require(p, models.RoleSystemAdmin); err != nil {
		return nil, err
	}
	c := &models.Customer{
		Name:      strings.TrimSpace(in.Name),
		BAANumber: optional(in.BAANumber),
		Active:    true,
	}
	admin := &models.User{
		Name:               strings.TrimSpace(in.AdminName),
		Email:              strings.TrimSpace(in.AdminEmail),
		Username:           strings.TrimSpace(in.AdminUsername),
		MustChangePassword: true,
		Active:             true,
		Roles:              []models.Role{models.RoleCustomerAdmin},
	}

	fields := apperr.FieldErrors{}
	if err := s.checkCustomer(ctx, fields, c, nil); err != nil {
		return nil, err
	}
	taken, err := s.store.EmailTaken(ctx, admin.Email)
	if err != nil {
		return nil, apperr.Internal("check email", err)
	}
	if taken {
		fields.Add("admin_email", msgEmailTaken)
	}
	if !users.UsernameAllowed(admin.Username) {
		fields.Add("admin_username", users.MsgUsernameAt)
	} else {
		if taken, err = s.store.UsernameTaken(ctx, admin.Username); err != nil {
			return nil, apperr.Internal("check username", err)
		}
		if taken {
			fields.Add("admin_username", msgUsernameTaken)
		}
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(fields)
	}

	temporary, err := utils.TemporaryPassword(12)
	if err != nil {
		return nil, apperr.Internal("generate password", err)
	}
	if admin.Password, err = utils.HashPassword(temporary); err != nil {
		return nil, apperr.Internal("hash password", err)
	}
	if err := s.store.CreateWithAdmin(ctx, c, admin); err != nil {
		return nil, uniqueFields.Translate("create customer", err)
	}
	s.logger.Info("customer created",
		zap.String("customer_id", c.ID.String()),
		zap.String("admin_user_id", admin.ID.String()),
	)

	msg := "Customer created successfully"
	res := s.notifier.Send(ctx, notifications.Message{
		Type:       models.EmailTypeRegistration,
		To:         admin.Email,
		CustomerID: &c.ID,
		UserID:     &admin.ID,
		Data: map[string]string{
			"name":               admin.Name,
			"username":           admin.Username,
			"customer_name":      c.Name,
			"temporary_password": temporary,
			"login_url":          s.baseURL + "/login",
		},
	})
	if !res.Success {
		msg = fmt.Sprintf("Customer created, but the welcome email could not be sent. Temporary password: %s", temporary)
	}
	return &response.ActionResult{
		RedirectTo: redirectList,
		Toast:      response.Toast{Type: "success", Message: msg},
		Record:     c,
	}, nil
}

// Update edits name, BAA number and active flag.
func (s *Service) Update(ctx context.Context, p *access.Principal, in UpdateInput) (*response.ActionResult, error) {
	if err := access.Require(p, models.RoleSystemAdmin); err != nil {
		return nil, err
	}
	c, err := s.load(ctx, uuid.MustParse(in.ID))
	if err != nil {
		return nil, err
	}
	c.Name = strings.TrimSpace(in.Name)
	c.BAANumber = optional(in.BAANumber)
	if in.Active != nil {
		c.Active = *in.Active
	}
	fields := apperr.FieldErrors{}
	if err := s.checkCustomer(ctx, fields, c, &c.ID); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(fields)
	}
	if err := s.store.Update(ctx, c); err != nil {
		return nil, uniqueFields.Translate("update customer", err)
	}
	return &response.ActionResult{
		RedirectTo: redirectList + "/" + c.ID.String(),
		Toast:      response.Toast{Type: "success", Message: "Customer updated successfully"},
		Record:     c,
	}, nil
}

// Delete removes a customer that has no provider groups, providers, non-admin users or
// submissions. Its customer admins go with it.
func (s *Service) Delete(ctx context.Context, p *access.Principal, in DeleteInput) (*response.ActionResult, error) {
	if err := access.Require(p, models.RoleSystemAdmin); err != nil {
		return nil, err
	}
	c, err := s.load(ctx, uuid.MustParse(in.ID))
	if err != nil {
		return nil, err
	}
	n, err := s.store.Counts(ctx, c.ID)
	if err != nil {
		return nil, apperr.Internal("count customer dependents", err)
	}
	if n.ProviderGroups > 0 || n.Providers > 0 || n.Users > 0 || n.Submissions > 0 {
		return nil, apperr.Invariant(fmt.Sprintf(
			"Cannot delete customer with %d provider group(s), %d provider(s), %d user(s) and %d submission(s). Remove them first.",
			n.ProviderGroups, n.Providers, n.Users, n.Submissions))
	}
	if err := s.store.Delete(ctx, c.ID); err != nil {
		return nil, apperr.Internal("delete customer", err)
	}
	s.logger.Info("customer deleted", zap.String("customer_id", c.ID.String()))
	return &response.ActionResult{
		RedirectTo: redirectList,
		Toast:      response.Toast{Type: "success", Message: "Customer deleted successfully"},
	}, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.NotFound(msgNotFound)
		}
		return nil, apperr.Internal("get customer", err)
	}
	return c, nil
}

// checkCustomer adds name and BAA uniqueness failures to fields.
func (s *Service) checkCustomer(ctx context.Context, fields apperr.FieldErrors, c *models.Customer, exclude *uuid.UUID) error {
	taken, err := s.store.NameTaken(ctx, c.Name, exclude)
	if err != nil {
		return apperr.Internal("check customer name", err)
	}
	if taken {
		fields.Add("name", msgNameTaken)
	}
	if c.BAANumber == nil {
		return nil
	}
	if taken, err = s.store.BAATaken(ctx, *c.BAANumber, exclude); err != nil {
		return apperr.Internal("check baa number", err)
	}
	if taken {
		fields.Add("baa_number", msgBAATaken)
	}
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
