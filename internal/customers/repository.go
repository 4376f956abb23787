package customers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/provider-portal/backend/internal/access"
	"github.com/provider-portal/backend/internal/models"
	"github.com/provider-portal/backend/internal/users"
	"github.com/provider-portal/backend/pkg/database"
)

const customerColumns = `c.id, c.name, c.baa_number, c.active, c.created_at, c.updated_at`

// Repository handles customer persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates a customers repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

var scopeColumns = access.Columns{
	access.ColID:       "c.id",
	access.ColCustomer: "c.id",
}

// List returns customers visible through f, ordered by name.
func (r *Repository) List(ctx context.Context, f access.Filter, params access.ListParams) (*models.List[models.CustomerListItem], error) {
	var q access.Query
	f.Apply(&q, scopeColumns)
	q.Search(params.Search, "c.name", "COALESCE(c.baa_number, '')")

	total, err := database.Count(ctx, r.db, `SELECT COUNT(*) FROM customers c`+q.SQL(), q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("count customers: %w", err)
	}
	page := access.NewPage(params.Page.Number, params.Page.Size)
	limit := q.Limit(page)
	rows, err := r.db.Query(ctx, `SELECT `+customerColumns+`,
		(SELECT COUNT(*) FROM users u WHERE u.customer_id = c.id),
		(SELECT COUNT(*) FROM providers p WHERE p.customer_id = c.id)
		FROM customers c`+q.SQL()+` ORDER BY c.name`+limit, q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()
	out := &models.List[models.CustomerListItem]{Items: []models.CustomerListItem{}, Total: total, Page: page.Number, PageSize: page.Size}
	for rows.Next() {
		var c models.CustomerListItem
		if err := rows.Scan(&c.ID, &c.Name, &c.BAANumber, &c.Active, &c.CreatedAt, &c.UpdatedAt,
			&c.Users, &c.Providers); err != nil {
			return nil, err
		}
		out.Items = append(out.Items, c)
	}
	return out, rows.Err()
}

// Get returns a customer by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var c models.Customer
	err := r.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers c WHERE c.id = $1`, id).
		Scan(&c.ID, &c.Name, &c.BAANumber, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Counts returns the dependents of a customer.
func (r *Repository) Counts(ctx context.Context, id uuid.UUID) (models.CustomerCounts, error) {
	var n models.CustomerCounts
	err := r.db.QueryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM provider_groups WHERE customer_id = $1),
		(SELECT COUNT(*) FROM providers WHERE customer_id = $1),
		(SELECT COUNT(*) FROM users WHERE customer_id = $1 AND $2 = ANY(roles)),
		(SELECT COUNT(*) FROM users WHERE customer_id = $1 AND NOT ($2 = ANY(roles))),
		(SELECT COUNT(*) FROM submissions WHERE customer_id = $1)`, id, string(models.RoleCustomerAdmin)).
		Scan(&n.ProviderGroups, &n.Providers, &n.Admins, &n.Users, &n.Submissions)
	return n, err
}

// NameTaken reports whether another customer uses name, case-insensitively.
func (r *Repository) NameTaken(ctx context.Context, name string, exclude *uuid.UUID) (bool, error) {
	n, err := database.Count(ctx, r.db, `SELECT COUNT(*) FROM customers
		WHERE LOWER(name) = LOWER($1) AND ($2::uuid IS NULL OR id <> $2)`, name, exclude)
	return n > 0, err
}

// BAATaken reports whether another customer uses the BAA number.
func (r *Repository) BAATaken(ctx context.Context, baa string, exclude *uuid.UUID) (bool, error) {
	n, err := database.Count(ctx, r.db, `SELECT COUNT(*) FROM customers
		WHERE baa_number = $1 AND ($2::uuid IS NULL OR id <> $2)`, baa, exclude)
	return n > 0, err
}

// EmailTaken reports whether any user has email.
func (r *Repository) EmailTaken(ctx context.Context, email string) (bool, error) {
	return users.EmailTaken(ctx, r.db, email, nil)
}

// UsernameTaken reports whether any user has username.
func (r *Repository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	return users.UsernameTaken(ctx, r.db, username, nil)
}

// CreateWithAdmin inserts the customer and its first customer admin in one transaction.
func (r *Repository) CreateWithAdmin(ctx context.Context, c *models.Customer, admin *models.User) error {
	return database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO customers (name, baa_number, active) VALUES ($1, $2, $3)
			RETURNING id, created_at, updated_at`, c.Name, c.BAANumber, c.Active).
			Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert customer: %w", err)
		}
		admin.CustomerID = &c.ID
		if err := users.Insert(ctx, tx, admin); err != nil {
			return fmt.Errorf("insert customer admin: %w", err)
		}
		return nil
	})
}

// Update saves name, BAA number and active flag.
func (r *Repository) Update(ctx context.Context, c *models.Customer) error {
	return r.db.QueryRow(ctx, `UPDATE customers SET name = $2, baa_number = $3, active = $4, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`, c.ID, c.Name, c.BAANumber, c.Active).Scan(&c.UpdatedAt)
}

// Delete removes a customer and its admin accounts. Callers check Counts first; the
// remaining users are customer admins only.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		stmts := []struct{ op, sql string }{
			{"detach email logs", `UPDATE email_logs SET customer_id = NULL, user_id = NULL
				WHERE customer_id = $1 OR user_id IN (SELECT id FROM users WHERE customer_id = $1)`},
			{"delete assignments", `DELETE FROM user_npis WHERE user_id IN (SELECT id FROM users WHERE customer_id = $1)`},
			{"delete users", `DELETE FROM users WHERE customer_id = $1`},
			{"delete customer", `DELETE FROM customers WHERE id = $1`},
		}
		for _, s := range stmts {
			if _, err := tx.Exec(ctx, s.sql, id); err != nil {
				return fmt.Errorf("%s: %w", s.op, err)
			}
		}
		return nil
	})
}
