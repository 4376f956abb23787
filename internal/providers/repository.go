package providers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/provider-portal/backend/internal/access"
	"github.com/provider-portal/backend/internal/models"
	"github.com/provider-portal/backend/internal/providergroups"
	"github.com/provider-portal/backend/pkg/database"
)

const providerColumns = `p.id, p.npi, p.name, p.active, p.customer_id, p.provider_group_id, p.created_at, p.updated_at`

func scanProvider(row interface{ Scan(...any) error }, extra ...any) (*models.Provider, error) {
	var p models.Provider
	dest := append([]any{&p.ID, &p.NPI, &p.Name, &p.Active, &p.CustomerID, &p.ProviderGroupID, &p.CreatedAt, &p.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &p, nil
}

// Get loads one provider through q.
func Get(ctx context.Context, q database.Querier, id uuid.UUID) (*models.Provider, error) {
	return scanProvider(q.QueryRow(ctx, `SELECT `+providerColumns+` FROM providers p WHERE p.id = $1`, id))
}

// GetMany loads the providers with the given ids, ordered by NPI. Unknown ids are skipped.
func GetMany(ctx context.Context, q database.Querier, ids []uuid.UUID) ([]models.Provider, error) {
	out := []models.Provider{}
	if len(ids) == 0 {
		return out, nil
	}
	var where access.Query
	where.In("p.id", ids)
	rows, err := q.Query(ctx, `SELECT `+providerColumns+` FROM providers p`+where.SQL()+` ORDER BY p.npi`, where.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Repository handles providers persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates a providers repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

var scopeColumns = access.Columns{
	access.ColID:            "p.id",
	access.ColCustomer:      "p.customer_id",
	access.ColProviderGroup: "p.provider_group_id",
}

// List returns providers visible through f, ordered by name.
func (r *Repository) List(ctx context.Context, f access.Filter, params access.ListParams) (*models.List[models.ProviderListItem], error) {
	var q access.Query
	f.Apply(&q, scopeColumns)
	q.Search(params.Search, "p.name", "p.npi")

	total, err := database.Count(ctx, r.db, `SELECT COUNT(*) FROM providers p`+q.SQL(), q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("count providers: %w", err)
	}
	page := access.NewPage(params.Page.Number, params.Page.Size)
	limit := q.Limit(page)
	rows, err := r.db.Query(ctx, `SELECT `+providerColumns+`, COALESCE(g.name, ''),
		(SELECT COUNT(*) FROM user_npis un WHERE un.provider_id = p.id)
		FROM providers p LEFT JOIN provider_groups g ON g.id = p.provider_group_id`+q.SQL()+` ORDER BY p.name, p.npi`+limit, q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()
	out := &models.List[models.ProviderListItem]{Items: []models.ProviderListItem{}, Total: total, Page: page.Number, PageSize: page.Size}
	for rows.Next() {
		var item models.ProviderListItem
		p, err := scanProvider(rows, &item.ProviderGroupName, &item.AssignedUsers)
		if err != nil {
			return nil, err
		}
		item.Provider = *p
		out.Items = append(out.Items, item)
	}
	return out, rows.Err()
}

// Get returns a provider by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Provider, error) {
	return Get(ctx, r.db, id)
}

// ProviderGroup returns a provider group by ID.
func (r *Repository) ProviderGroup(ctx context.Context, id uuid.UUID) (*models.ProviderGroup, error) {
	return providergroups.Get(ctx, r.db, id)
}

// CustomerExists reports whether the customer exists.
func (r *Repository) CustomerExists(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := database.Count(ctx, r.db, `SELECT COUNT(*) FROM customers WHERE id = $1`, id)
	return n > 0, err
}

// NPITaken reports whether another provider already uses npi.
func (r *Repository) NPITaken(ctx context.Context, npi string, exclude *uuid.UUID) (bool, error) {
	n, err := database.Count(ctx, r.db, `SELECT COUNT(*) FROM providers WHERE npi = $1 AND ($2::uuid IS NULL OR id <> $2)`, npi, exclude)
	return n > 0, err
}

// Dependents returns the number of user assignments and submissions of a provider.
func (r *Repository) Dependents(ctx context.Context, id uuid.UUID) (assignments, submissions int, err error) {
	err = r.db.QueryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM user_npis WHERE provider_id = $1),
		(SELECT COUNT(*) FROM submissions WHERE provider_id = $1)`, id).Scan(&assignments, &submissions)
	return assignments, submissions, err
}

// Create inserts a provider.
func (r *Repository) Create(ctx context.Context, p *models.Provider) error {
	return r.db.QueryRow(ctx, `INSERT INTO providers (npi, name, active, customer_id, provider_group_id)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at`,
		p.NPI, p.Name, p.Active, p.CustomerID, p.ProviderGroupID).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// Update saves NPI, name, active flag and provider group.
func (r *Repository) Update(ctx context.Context, p *models.Provider) error {
	return r.db.QueryRow(ctx, `UPDATE providers SET npi = $2, name = $3, active = $4, provider_group_id = $5, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`, p.ID, p.NPI, p.Name, p.Active, p.ProviderGroupID).Scan(&p.UpdatedAt)
}

// Delete removes a provider. Callers check Dependents first.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM providers WHERE id = $1`, id)
	return err
}
