package providers

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
	redirectList   = "/providers"
	msgNotFound    = "Provider not found"
	msgNPITaken    = "NPI already exists"
	msgNPIInvalid  = "Invalid NPI check digit"
	msgGroupOther  = "Provider group does not belong to this customer"
	msgGroupLocked = "You can only manage providers in your assigned provider group"
)

var uniqueFields = database.Unique{
	"providers_npi_key": {Field: "npi", Message: msgNPITaken},
}

// Store is the persistence the provider service needs.
type Store interface {
	List(ctx context.Context, f access.Filter, params access.ListParams) (*models.List[models.ProviderListItem], error)
	Get(ctx context.Context, id uuid.UUID) (*models.Provider, error)
	ProviderGroup(ctx context.Context, id uuid.UUID) (*models.ProviderGroup, error)
	CustomerExists(ctx context.Context, id uuid.UUID) (bool, error)
	NPITaken(ctx context.Context, npi string, exclude *uuid.UUID) (bool, error)
	Dependents(ctx context.Context, id uuid.UUID) (assignments, submissions int, err error)
	Create(ctx context.Context, p *models.Provider) error
	Update(ctx context.Context, p *models.Provider) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// CreateInput is the create intent.
type CreateInput struct {
	NPI             string `json:"npi" form:"npi" binding:"required,len=10,numeric"`
	Name            string `json:"name" form:"name" binding:"required,max=200"`
	CustomerID      string `json:"customer_id" form:"customer_id" binding:"omitempty,uuid"`
	ProviderGroupID string `json:"provider_group_id" form:"provider_group_id" binding:"omitempty,uuid"`
}

// UpdateInput is the update intent. A nil Active keeps the current value.
type UpdateInput struct {
	ID              string `json:"id" form:"id" binding:"required,uuid"`
	NPI             string `json:"npi" form:"npi" binding:"required,len=10,numeric"`
	Name            string `json:"name" form:"name" binding:"required,max=200"`
	Active          *bool  `json:"active" form:"active"`
	ProviderGroupID string `json:"provider_group_id" form:"provider_group_id" binding:"omitempty,uuid"`
}

// DeleteInput is the delete intent.
type DeleteInput struct {
	ID string `json:"id" form:"id" binding:"required,uuid"`
}

// Service implements provider (NPI) reads and actions.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a provider service.
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

var managers = []models.Role{models.RoleSystemAdmin, models.RoleCustomerAdmin, models.RoleProviderGroupAdmin}

func target(p *models.Provider) access.Target {
	return access.Target{ID: p.ID, CustomerID: &p.CustomerID, ProviderGroupID: p.ProviderGroupID}
}

// List returns the caller's visible providers.
func (s *Service) List(ctx context.Context, p *access.Principal, params access.ListParams) (*models.List[models.ProviderListItem], error) {
	f, err := access.ScopeFor(p, access.Providers)
	if err != nil {
		return nil, err
	}
	list, err := s.store.List(ctx, f, params)
	if err != nil {
		return nil, apperr.Internal("list providers", err)
	}
	return list, nil
}

// Get returns one provider if it is inside the caller's scope.
func (s *Service) Get(ctx context.Context, p *access.Principal, id uuid.UUID) (*models.Provider, error) {
	prov, err := s.store.Get(ctx, id)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.NotFound(msgNotFound)
		}
		return nil, apperr.Internal("get provider", err)
	}
	if err := access.Check(p, access.Providers, target(prov), msgNotFound); err != nil {
		return nil, err
	}
	return prov, nil
}

// Create adds an NPI record.
func (s *Service) Create(ctx context.Context, p *access.Principal, in CreateInput) (*response.ActionResult, error) {
	if err := access.Require(p, managers...); err != nil {
		return nil, err
	}
	customerID, err := s.targetCustomer(ctx, p, in.CustomerID)
	if err != nil {
		return nil, err
	}
	prov := &models.Provider{
		NPI:        strings.TrimSpace(in.NPI),
		Name:       strings.TrimSpace(in.Name),
		Active:     true,
		CustomerID: customerID,
	}
	if prov.ProviderGroupID, err = s.resolveGroup(ctx, p, customerID, in.ProviderGroupID); err != nil {
		return nil, err
	}
	if err := s.checkNPI(ctx, prov.NPI, nil); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, prov); err != nil {
		return nil, uniqueFields.Translate("create provider", err)
	}
	s.logger.Info("provider created", zap.String("provider_id", prov.ID.String()), zap.String("npi", prov.NPI))
	return &response.ActionResult{
		RedirectTo: redirectList,
		Toast:      response.Toast{Type: "success", Message: "Provider created successfully"},
		Record:     prov,
	}, nil
}

// Update edits an NPI record inside the caller's scope.
func (s *Service) Update(ctx context.Context, p *access.Principal, in UpdateInput) (*response.ActionResult, error) {
	if err := access.Require(p, managers...); err != nil {
		return nil, err
	}
	prov, err := s.Get(ctx, p, uuid.MustParse(in.ID))
	if err != nil {
		return nil, err
	}
	prov.NPI = strings.TrimSpace(in.NPI)
	prov.Name = strings.TrimSpace(in.Name)
	if in.Active != nil {
		prov.Active = *in.Active
	}
	if prov.ProviderGroupID, err = s.resolveGroup(ctx, p, prov.CustomerID, in.ProviderGroupID); err != nil {
		return nil, err
	}
	if err := s.checkNPI(ctx, prov.NPI, &prov.ID); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, prov); err != nil {
		return nil, uniqueFields.Translate("update provider", err)
	}
	return &response.ActionResult{
		RedirectTo: redirectList + "/" + prov.ID.String(),
		Toast:      response.Toast{Type: "success", Message: "Provider updated successfully"},
		Record:     prov,
	}, nil
}

// Delete removes a provider without assignments or submissions.
func (s *Service) Delete(ctx context.Context, p *access.Principal, in DeleteInput) (*response.ActionResult, error) {
	if err := access.Require(p, managers...); err != nil {
		return nil, err
	}
	prov, err := s.Get(ctx, p, uuid.MustParse(in.ID))
	if err != nil {
		return nil, err
	}
	assignments, submissions, err := s.store.Dependents(ctx, prov.ID)
	if err != nil {
		return nil, apperr.Internal("count provider dependents", err)
	}
	if assignments > 0 || submissions > 0 {
		return nil, apperr.Invariant(fmt.Sprintf(
			"Cannot delete provider with %d assigned user(s) and %d submission(s). Remove them first.", assignments, submissions))
	}
	if err := s.store.Delete(ctx, prov.ID); err != nil {
		return nil, apperr.Internal("delete provider", err)
	}
	s.logger.Info("provider deleted", zap.String("provider_id", prov.ID.String()))
	return &response.ActionResult{
		RedirectTo: redirectList,
		Toast:      response.Toast{Type: "success", Message: "Provider deleted successfully"},
	}, nil
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

// resolveGroup validates the provider group chosen for a provider of customerID. Provider
// group admins may only place providers in their own group.
func (s *Service) resolveGroup(ctx context.Context, p *access.Principal, customerID uuid.UUID, raw string) (*uuid.UUID, error) {
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
		return nil, nil
	}
	g, err := s.store.ProviderGroup(ctx, *id)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.Field("provider_group_id", "Provider group not found")
		}
		return nil, apperr.Internal("get provider group", err)
	}
	if g.CustomerID != customerID {
		return nil, apperr.Field("provider_group_id", msgGroupOther)
	}
	return id, nil
}

func (s *Service) checkNPI(ctx context.Context, npi string, exclude *uuid.UUID) error {
	if !models.ValidNPI(npi) {
		return apperr.Field("npi", msgNPIInvalid)
	}
	taken, err := s.store.NPITaken(ctx, npi, exclude)
	if err != nil {
		return apperr.Internal("check npi", err)
	}
	if taken {
		return apperr.Field("npi", msgNPITaken)
	}
	return nil
}
