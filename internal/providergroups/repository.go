package providergroups

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/provider-portal/backend/internal/access"
	"github.com/provider-portal/backend/internal/models"
	"github.com/provider-portal/backend/pkg/database"
)

const groupColumns = `g.id, g.customer_id, g.name, g.description, g.created_at, g.updated_at`

// Get loads one provider group through q. Other packages use it for cross-reference checks.
func Get(ctx context.Context, q database.Querier, id uuid.UUID) (*models.ProviderGroup, error) {
	var g models.ProviderGroup
	err := q.QueryRow(ctx, `SELECT `+groupColumns+` FROM provider_groups g WHERE g.id = $1`, id).
		Scan(&g.ID, &g.CustomerID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Repository handles provider_groups persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates a provider groups repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

var scopeColumns = access.Columns{
	access.ColID:            "g.id",
	access.ColCustomer:      "g.customer_id",
	access.ColProviderGroup: "g.id",
}

// List returns provider groups visible through f, ordered by name.
func (r *Repository) List(ctx context.Context, f access.Filter, params access.ListParams) (*models.List[models.ProviderGroupListItem], error) {
	var q access.Query
	f.Apply(&q, scopeColumns)
	q.Search(params.Search, "g.name", "g.description")

	total, err := database.Count(ctx, r.db, `SELECT COUNT(*) FROM provider_groups g`+q.SQL(), q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("count provider groups: %w", err)
	}
	page := access.NewPage(params.Page.Number, params.Page.Size)
	limit := q.Limit(page)
	rows, err := r.db.Query(ctx, `SELECT `+groupColumns+`, c.name,
		(SELECT COUNT(*) FROM providers p WHERE p.provider_group_id = g.id),
		(SELECT COUNT(*) FROM users u WHERE u.provider_group_id = g.id)
		FROM provider_groups g JOIN customers c ON c.id = g.customer_id`+q.SQL()+` ORDER BY g.name`+limit, q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("list provider groups: %w", err)
	}
	defer rows.Close()
	out := &models.List[models.ProviderGroupListItem]{Items: []models.ProviderGroupListItem{}, Total: total, Page: page.Number, PageSize: page.Size}
	for rows.Next() {
		var g models.ProviderGroupListItem
		if err := rows.Scan(&g.ID, &g.CustomerID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt,
			&g.CustomerName, &g.Providers, &g.Users); err != nil {
			return nil, err
		}
		out.Items = append(out.Items, g)
	}
	return out, rows.Err()
}

// Get returns a provider group by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.ProviderGroup, error) {
	return Get(ctx, r.db, id)
}

// CustomerExists reports whether the customer exists.
func (r *Repository) CustomerExists(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := database.Count(ctx, r.db, `SELECT COUNT(*) FROM customers WHERE id = $1`, id)
	return n > 0, err
}

// NameTaken reports whether another group of the customer already uses name, case-insensitively.
func (r *Repository) NameTaken(ctx context.Context, customerID uuid.UUID, name string, exclude *uuid.UUID) (bool, error) {
	n, err := database.Count(ctx, r.db, `SELECT COUNT(*) FROM provider_groups
		WHERE customer_id = $1 AND LOWER(name) = LOWER($2) AND ($3::uuid IS NULL OR id <> $3)`, customerID, name, exclude)
	return n > 0, err
}

// Dependents returns the number of providers and users in the group.
func (r *Repository) Dependents(ctx context.Context, id uuid.UUID) (providers, users int, err error) {
	err = r.db.QueryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM providers WHERE provider_group_id = $1),
		(SELECT COUNT(*) FROM users WHERE provider_group_id = $1)`, id).Scan(&providers, &users)
	return providers, users, err
}

// Create inserts a provider group.
func (r *Repository) Create(ctx context.Context, g *models.ProviderGroup) error {
	return r.db.QueryRow(ctx, `INSERT INTO provider_groups (customer_id, name, description) VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`, g.CustomerID, g.Name, g.Description).
		Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
}

// Update saves name and description.
func (r *Repository) Update(ctx context.Context, g *models.ProviderGroup) error {
	return r.db.QueryRow(ctx, `UPDATE provider_groups SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`, g.ID, g.Name, g.Description).Scan(&g.UpdatedAt)
}

// Delete removes a provider group. Callers check Dependents first.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM provider_groups WHERE id = $1`, id)
	return err
}
