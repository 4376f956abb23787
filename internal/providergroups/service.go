package providergroups

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/provider-portal/backend/internal/access"
	"github.com/provider-portal/backend/internal/models"
	"github.com/provider-portal/backend/pkg/apperr"
	"github.com/provider-portal/backend/pkg/database"
	"github.com/provider-portal/backend/pkg/form"
	"github.com/provider-portal/backend/pkg/response"
)

const (
	redirectList  = "/admin/provider-groups"
	msgNotFound   = "Provider group not found"
	msgNameTaken  = "A provider group with this name already exists"
	msgNoCustomer = "Customer not found"
)

var uniqueFields = database.Unique{
	"provider_groups_customer_name_key": {Field: "name", Message: msgNameTaken},
}

// Store is the persistence the provider group service needs.
type Store interface {
	List(ctx context.Context, f access.Filter, params access.ListParams) (*models.List[models.ProviderGroupListItem], error)
	Get(ctx context.Context, id uuid.UUID) (*models.ProviderGroup, error)
	CustomerExists(ctx context.Context, id uuid.UUID) (bool, error)
	NameTaken(ctx context.Context, customerID uuid.UUID, name string, exclude *uuid.UUID) (bool, error)
	Dependents(ctx context.Context, id uuid.UUID) (providers, users int, err error)
	Create(ctx context.Context, g *models.ProviderGroup) error
	Update(ctx context.Context, g *models.ProviderGroup) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// CreateInput is the create intent.
type CreateInput struct {
	Name        string `json:"name" form:"name" binding:"required,max=200"`
	Description string `json:"description" form:"description" binding:"max=1000"`
	CustomerID  string `json:"customer_id" form:"customer_id" binding:"omitempty,uuid"`
}

// UpdateInput is the update intent.
type UpdateInput struct {
	ID          string `json:"id" form:"id" binding:"required,uuid"`
	Name        string `json:"name" form:"name" binding:"required,max=200"`
	Description string `json:"description" form:"description" binding:"max=1000"`
}

// DeleteInput is the delete intent.
type DeleteInput struct {
	ID string `json:"id" form:"id" binding:"required,uuid"`
}

// Service implements provider group reads and actions.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a provider group service.
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

var managers = []models.Role{models.RoleSystemAdmin, models.RoleCustomerAdmin}

// List returns the caller's visible provider groups.
func (s *Service) List(ctx context.Context, p *access.Principal, params access.ListParams) (*models.List[models.ProviderGroupListItem], error) {
	f, err := access.ScopeFor(p, access.ProviderGroups)
	if err != nil {
		return nil, err
	}
	list, err := s.store.List(ctx, f, params)
	if err != nil {
		return nil, apperr.Internal("list provider groups", err)
	}
	return list, nil
}

// Get returns one provider group if it is inside the caller's scope.
func (s *Service) Get(ctx context.Context, p *access.Principal, id uuid.UUID) (*models.ProviderGroup, error) {
	g, err := s.store.Get(ctx, id)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.NotFound(msgNotFound)
		}
		return nil, apperr.Internal("get provider group", err)
	}
	if err := access.Check(p, access.ProviderGroups, access.Target{ID: g.ID, CustomerID: &g.CustomerID}, msgNotFound); err != nil {
		return nil, err
	}
	return g, nil
}

// Create adds a provider group to the caller's customer, or to the chosen customer for system admins.
func (s *Service) Create(ctx context.Context, p *access.Principal, in CreateInput) (*response.ActionResult, error) {
	if err := access.Require(p, managers...); err != nil {
		return nil, err
	}
	customerID, err := s.targetCustomer(ctx, p, in.CustomerID)
	if err != nil {
		return nil, err
	}
	g := &models.ProviderGroup{
		CustomerID:  customerID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
	}
	if err := s.checkName(ctx, g, nil); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, g); err != nil {
		return nil, uniqueFields.Translate("create provider group", err)
	}
	s.logger.Info("provider group created", zap.String("provider_group_id", g.ID.String()), zap.String("customer_id", g.CustomerID.String()))
	return &response.ActionResult{
		RedirectTo: redirectList,
		Toast:      response.Toast{Type: "success", Message: "Provider group created successfully"},
		Record:     g,
	}, nil
}

// Update renames a provider group.
func (s *Service) Update(ctx context.Context, p *access.Principal, in UpdateInput) (*response.ActionResult, error) {
	if err := access.Require(p, managers...); err != nil {
		return nil, err
	}
	g, err := s.Get(ctx, p, uuid.MustParse(in.ID))
	if err != nil {
		return nil, err
	}
	g.Name = strings.TrimSpace(in.Name)
	g.Description = strings.TrimSpace(in.Description)
	if err := s.checkName(ctx, g, &g.ID); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, g); err != nil {
		return nil, uniqueFields.Translate("update provider group", err)
	}
	return &response.ActionResult{
		RedirectTo: redirectList + "/" + g.ID.String(),
		Toast:      response.Toast{Type: "success", Message: "Provider group updated successfully"},
		Record:     g,
	}, nil
}

// Delete removes an empty provider group.
func (s *Service) Delete(ctx context.Context, p *access.Principal, in DeleteInput) (*response.ActionResult, error) {
	if err := access.Require(p, managers...); err != nil {
		return nil, err
	}
	g, err := s.Get(ctx, p, uuid.MustParse(in.ID))
	if err != nil {
		return nil, err
	}
	providers, users, err := s.store.Dependents(ctx, g.ID)
	if err != nil {
		return nil, apperr.Internal("count provider group dependents", err)
	}
	if providers > 0 || users > 0 {
		return nil, apperr.Invariant(fmt.Sprintf(
			"Cannot delete provider group with %d provider(s) and %d user(s). Reassign or remove them first.", providers, users))
	}
	if err := s.store.Delete(ctx, g.ID); err != nil {
		return nil, apperr.Internal("delete provider group", err)
	}
	s.logger.Info("provider group deleted", zap.String("provider_group_id", g.ID.String()))
	return &response.ActionResult{
		RedirectTo: redirectList,
		Toast:      response.Toast{Type: "success", Message: "Provider group deleted successfully"},
	}, nil
}

// targetCustomer resolves the customer a new group belongs to. Customer admins always
// write to their own customer.
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
		return uuid.Nil, apperr.Field("customer_id", msgNoCustomer)
	}
	return *id, nil
}

func (s *Service) checkName(ctx context.Context, g *models.ProviderGroup, exclude *uuid.UUID) error {
	taken, err := s.store.NameTaken(ctx, g.CustomerID, g.Name, exclude)
	if err != nil {
		return apperr.Internal("check provider group name", err)
	}
	if taken {
		return apperr.Field("name", msgNameTaken)
	}
	return nil
}
