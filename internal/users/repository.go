package users

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/provider-portal/backend/internal/access"
	"github.com/provider-portal/backend/internal/auth"
	"github.com/provider-portal/backend/internal/models"
	"github.com/provider-portal/backend/internal/providergroups"
	"github.com/provider-portal/backend/internal/providers"
	"github.com/provider-portal/backend/pkg/database"
)

// Insert creates a user through q. Customer creation reuses it inside its transaction.
func Insert(ctx context.Context, q database.Querier, u *models.User) error {
	return q.QueryRow(ctx, `INSERT INTO users (name, email, username, password_hash, must_change_password, active, roles,
		customer_id, provider_group_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		u.Name, u.Email, u.Username, u.Password, u.MustChangePassword, u.Active, models.RoleNames(u.Roles),
		u.CustomerID, u.ProviderGroupID).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}

// EmailTaken reports whether another user has email, case-insensitively.
func EmailTaken(ctx context.Context, q database.Querier, email string, exclude *uuid.UUID) (bool, error) {
	n, err := database.Count(ctx, q, `SELECT COUNT(*) FROM users WHERE LOWER(email) = LOWER($1) AND ($2::uuid IS NULL OR id <> $2)`, email, exclude)
	return n > 0, err
}

// UsernameTaken reports whether another user has username, case-insensitively.
func UsernameTaken(ctx context.Context, q database.Querier, username string, exclude *uuid.UUID) (bool, error) {
	n, err := database.Count(ctx, q, `SELECT COUNT(*) FROM users WHERE LOWER(username) = LOWER($1) AND ($2::uuid IS NULL OR id <> $2)`, username, exclude)
	return n > 0, err
}

// Repository handles users persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates a users repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

var scopeColumns = access.Columns{
	access.ColID:            "u.id",
	access.ColCustomer:      "u.customer_id",
	access.ColProviderGroup: "u.provider_group_id",
}

// List returns users visible through f, ordered by name.
func (r *Repository) List(ctx context.Context, f access.Filter, params access.ListParams) (*models.List[models.UserListItem], error) {
	var q access.Query
	f.Apply(&q, scopeColumns)
	q.Search(params.Search, "u.name", "u.email", "u.username")

	total, err := database.Count(ctx, r.db, `SELECT COUNT(*) FROM users u`+q.SQL(), q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	page := access.NewPage(params.Page.Number, params.Page.Size)
	limit := q.Limit(page)
	rows, err := r.db.Query(ctx, `SELECT u.id, u.name, u.email, u.username, u.password_hash, u.must_change_password, u.active,
		u.roles, u.customer_id, u.provider_group_id, u.created_at, u.updated_at,
		COALESCE(c.name, ''), COALESCE(g.name, ''),
		(SELECT COUNT(*) FROM user_npis un WHERE un.user_id = u.id)
		FROM users u
		LEFT JOIN customers c ON c.id = u.customer_id
		LEFT JOIN provider_groups g ON g.id = u.provider_group_id`+q.SQL()+` ORDER BY u.name, u.username`+limit, q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	out := &models.List[models.UserListItem]{Items: []models.UserListItem{}, Total: total, Page: page.Number, PageSize: page.Size}
	for rows.Next() {
		var item models.UserListItem
		var roles []string
		if err := rows.Scan(&item.ID, &item.Name, &item.Email, &item.Username, &item.Password, &item.MustChangePassword,
			&item.Active, &roles, &item.CustomerID, &item.ProviderGroupID, &item.CreatedAt, &item.UpdatedAt,
			&item.CustomerName, &item.ProviderGroupName, &item.AssignedNPIs); err != nil {
			return nil, err
		}
		item.Roles = models.ParseRoles(roles)
		out.Items = append(out.Items, item)
	}
	return out, rows.Err()
}

// Get returns a user by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return auth.ScanUser(r.db.QueryRow(ctx, `SELECT `+auth.UserColumns+` FROM users WHERE id = $1`, id))
}

// AssignedProviders returns the providers assigned to a user.
func (r *Repository) AssignedProviders(ctx context.Context, userID uuid.UUID) ([]models.Provider, error) {
	rows, err := r.db.Query(ctx, `SELECT provider_id FROM user_npis WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, err
	}
	return providers.GetMany(ctx, r.db, ids)
}

// Providers loads providers by id for assignment checks.
func (r *Repository) Providers(ctx context.Context, ids []uuid.UUID) ([]models.Provider, error) {
	return providers.GetMany(ctx, r.db, ids)
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

// EmailTaken reports whether another user has email.
func (r *Repository) EmailTaken(ctx context.Context, email string, exclude *uuid.UUID) (bool, error) {
	return EmailTaken(ctx, r.db, email, exclude)
}

// UsernameTaken reports whether another user has username.
func (r *Repository) UsernameTaken(ctx context.Context, username string, exclude *uuid.UUID) (bool, error) {
	return UsernameTaken(ctx, r.db, username, exclude)
}

// Create inserts a user.
func (r *Repository) Create(ctx context.Context, u *models.User) error {
	return Insert(ctx, r.db, u)
}

// Update saves profile, role and provider group.
func (r *Repository) Update(ctx context.Context, u *models.User) error {
	return r.db.QueryRow(ctx, `UPDATE users SET name = $2, email = $3, username = $4, roles = $5, provider_group_id = $6,
		updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
		u.ID, u.Name, u.Email, u.Username, models.RoleNames(u.Roles), u.ProviderGroupID).Scan(&u.UpdatedAt)
}

// SetActive flips the active flag.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	return err
}

// SetTemporaryPassword stores a new hash and forces a change at next login.
func (r *Repository) SetTemporaryPassword(ctx context.Context, id uuid.UUID, hash string) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $2, must_change_password = TRUE, updated_at = NOW() WHERE id = $1`, id, hash)
	return err
}

// CreatedSubmissions counts submissions and documents authored by a user.
func (r *Repository) CreatedSubmissions(ctx context.Context, id uuid.UUID) (int, error) {
	return database.Count(ctx, r.db, `SELECT
		(SELECT COUNT(*) FROM submissions WHERE created_by = $1) +
		(SELECT COUNT(*) FROM documents WHERE uploaded_by = $1)`, id)
}

// Delete removes a user, its assignments and its email log links in one transaction.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_npis WHERE user_id = $1`, id); err != nil {
			return fmt.Errorf("delete assignments: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE email_logs SET user_id = NULL WHERE user_id = $1`, id); err != nil {
			return fmt.Errorf("detach email logs: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
}

// ReplaceAssignments sets the user's assignment set to exactly providerIDs.
func (r *Repository) ReplaceAssignments(ctx context.Context, userID uuid.UUID, providerIDs []uuid.UUID) error {
	return database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_npis WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("clear assignments: %w", err)
		}
		if len(providerIDs) == 0 {
			return nil
		}
		ids := make([]string, len(providerIDs))
		for i, id := range providerIDs {
			ids[i] = id.String()
		}
		if _, err := tx.Exec(ctx, `INSERT INTO user_npis (user_id, provider_id)
			SELECT $1, unnest($2::uuid[])`, userID, ids); err != nil {
			return fmt.Errorf("insert assignments: %w", err)
		}
		return nil
	})
}
