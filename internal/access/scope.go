package access

import (
	"slices"

	"github.com/google/uuid"

	"github.com/provider-portal/backend/internal/models"
	"github.com/provider-portal/backend/pkg/apperr"
)

// Level is how far a role's visibility reaches.
type Level int

const (
	LevelNone Level = iota
	LevelGlobal
	LevelCustomer
	LevelProviderGroup
	LevelAssignments
)

// capabilities maps each role to its scope level.
var capabilities = map[models.Role]Level{
	models.RoleSystemAdmin:        LevelGlobal,
	models.RoleCustomerAdmin:      LevelCustomer,
	models.RoleProviderGroupAdmin: LevelProviderGroup,
	models.RoleBasicUser:          LevelAssignments,
}

// LevelOf returns the scope level of role.
func LevelOf(role models.Role) Level {
	return capabilities[role]
}

// Resource names a scoped table.
type Resource string

const (
	Customers      Resource = "customers"
	Users          Resource = "users"
	ProviderGroups Resource = "provider_groups"
	Providers      Resource = "providers"
	Submissions    Resource = "submissions"
	EmailLogs      Resource = "email_logs"
)

// Column is a logical column a scope predicate may constrain.
type Column int

const (
	ColID Column = iota
	ColCustomer
	ColProviderGroup
	ColProvider
)

// Columns maps logical columns to SQL expressions for one query.
type Columns map[Column]string

var (
	// ErrNoProviderGroup is returned for a provider-group admin without a group. Scoping
	// fails closed instead of widening to the whole customer.
	ErrNoProviderGroup = apperr.BadRequest("No provider group assigned to your account")
	// ErrNoCustomer is returned for a non system admin without a customer.
	ErrNoCustomer = apperr.BadRequest("No customer assigned to your account")
	// ErrNoRole is returned when the principal holds no known role.
	ErrNoRole = apperr.Forbidden("insufficient permissions")
)

type cond struct {
	col Column
	ids []uuid.UUID
}

// Filter is the set of predicates a principal's role imposes on one resource.
// A zero Filter is unrestricted.
type Filter struct {
	Level Level
	conds []cond
}

func (f *Filter) eq(col Column, id uuid.UUID) {
	f.conds = append(f.conds, cond{col: col, ids: []uuid.UUID{id}})
}

func (f *Filter) in(col Column, ids []uuid.UUID) {
	f.conds = append(f.conds, cond{col: col, ids: append([]uuid.UUID{}, ids...)})
}

// Unrestricted reports whether the filter admits every row.
func (f Filter) Unrestricted() bool {
	return len(f.conds) == 0
}

// ScopeFor builds the filter for p on res from the capability table.
func ScopeFor(p *Principal, res Resource) (Filter, error) {
	if p == nil {
		return Filter{}, apperr.Unauthenticated("authentication required")
	}
	level := LevelOf(p.Role())
	f := Filter{Level: level}
	if level == LevelNone {
		return f, ErrNoRole
	}
	if level == LevelGlobal {
		return f, nil
	}
	if p.CustomerID == nil {
		return f, ErrNoCustomer
	}
	cust := *p.CustomerID

	switch level {
	case LevelCustomer:
		if res == Customers {
			f.eq(ColID, cust)
		} else {
			f.eq(ColCustomer, cust)
		}

	case LevelProviderGroup:
		if p.ProviderGroupID == nil {
			return f, ErrNoProviderGroup
		}
		group := *p.ProviderGroupID
		switch res {
		case Customers:
			f.eq(ColID, cust)
		case ProviderGroups:
			f.eq(ColCustomer, cust)
			f.eq(ColID, group)
		default:
			f.eq(ColCustomer, cust)
			f.eq(ColProviderGroup, group)
		}

	case LevelAssignments:
		switch res {
		case Customers:
			f.eq(ColID, cust)
		case Users:
			f.eq(ColCustomer, cust)
			f.eq(ColID, p.UserID)
		case ProviderGroups:
			f.eq(ColCustomer, cust)
			if p.ProviderGroupID != nil {
				f.eq(ColID, *p.ProviderGroupID)
			} else {
				f.in(ColID, nil)
			}
		case Providers:
			f.eq(ColCustomer, cust)
			f.in(ColID, p.ProviderIDs)
		case Submissions:
			f.eq(ColCustomer, cust)
			f.in(ColProvider, p.ProviderIDs)
		}
	}
	return f, nil
}

// Apply appends the filter's predicates to q using cols. A predicate on a column missing
// from cols matches nothing, so an incomplete mapping can never widen access.
func (f Filter) Apply(q *Query, cols Columns) {
	for _, c := range f.conds {
		expr, ok := cols[c.col]
		if !ok {
			q.Where("FALSE")
			continue
		}
		if len(c.ids) == 1 {
			q.Eq(expr, c.ids[0])
		} else {
			q.In(expr, c.ids)
		}
	}
}

// Target is a loaded row described by the same logical columns.
type Target struct {
	ID              uuid.UUID
	CustomerID      *uuid.UUID
	ProviderGroupID *uuid.UUID
	ProviderID      *uuid.UUID
}

func (t Target) value(col Column) *uuid.UUID {
	switch col {
	case ColID:
		return &t.ID
	case ColCustomer:
		return t.CustomerID
	case ColProviderGroup:
		return t.ProviderGroupID
	case ColProvider:
		return t.ProviderID
	}
	return nil
}

// Permits reports whether the loaded row t is inside the filter.
func (f Filter) Permits(t Target) bool {
	for _, c := range f.conds {
		v := t.value(c.col)
		if v == nil || !slices.Contains(c.ids, *v) {
			return false
		}
	}
	return true
}

// Check loads the filter for p on res and verifies t is inside it. Rows outside the scope
// are reported as not found so their existence does not leak.
func Check(p *Principal, res Resource, t Target, notFound string) error {
	f, err := ScopeFor(p, res)
	if err != nil {
		return err
	}
	if !f.Permits(t) {
		return apperr.NotFound(notFound)
	}
	return nil
}
