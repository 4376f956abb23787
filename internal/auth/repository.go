package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/provider-portal/backend/internal/access"
	"github.com/provider-portal/backend/internal/models"
	"github.com/provider-portal/backend/pkg/apperr"
	"github.com/provider-portal/backend/pkg/database"
)

// UserColumns is the column list scanned by ScanUser.
const UserColumns = `id, name, email, username, password_hash, must_change_password, active, roles,
	customer_id, provider_group_id, created_at, updated_at`

// ScanUser scans a row selected with UserColumns.
func ScanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var roles []string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Username, &u.Password, &u.MustChangePassword, &u.Active,
		&roles, &u.CustomerID, &u.ProviderGroupID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Roles = models.ParseRoles(roles)
	return &u, nil
}

// Repository handles credential lookups and principal resolution.
type Repository struct {
	db database.DB
}

// NewRepository creates an auth repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return ScanUser(r.db.QueryRow(ctx, `SELECT `+UserColumns+` FROM users WHERE id = $1`, id))
}

// GetByLogin returns a user by email or username, case-insensitively. An email match wins
// over a username match.
func (r *Repository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	return ScanUser(r.db.QueryRow(ctx, `SELECT `+UserColumns+` FROM users
		WHERE LOWER(email) = LOWER($1) OR LOWER(username) = LOWER($1)
		ORDER BY (LOWER(email) = LOWER($1)) DESC LIMIT 1`, login))
}

// UpdatePassword stores a new hash and clears the must-change flag.
func (r *Repository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $2, must_change_password = FALSE, updated_at = NOW()
		WHERE id = $1`, id, hash)
	return err
}

// CustomerActive reports whether the customer is active.
func (r *Repository) CustomerActive(ctx context.Context, id uuid.UUID) (bool, error) {
	var active bool
	err := r.db.QueryRow(ctx, `SELECT active FROM customers WHERE id = $1`, id).Scan(&active)
	return active, err
}

// LoadPrincipal resolves the caller of a request. Missing or inactive users, and users of
// an inactive customer other than system admins, are rejected as unauthenticated.
func (r *Repository) LoadPrincipal(ctx context.Context, userID uuid.UUID) (*access.Principal, error) {
	var (
		p              access.Principal
		roles          []string
		active         bool
		customerActive bool
	)
	err := r.db.QueryRow(ctx, `SELECT u.id, u.name, u.email, u.roles, u.active, u.customer_id, u.provider_group_id,
		COALESCE(c.active, TRUE)
		FROM users u LEFT JOIN customers c ON c.id = u.customer_id
		WHERE u.id = $1`, userID).
		Scan(&p.UserID, &p.Name, &p.Email, &roles, &active, &p.CustomerID, &p.ProviderGroupID, &customerActive)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.Unauthenticated("account not found")
		}
		return nil, apperr.Internal("load principal", err)
	}
	p.Roles = models.ParseRoles(roles)
	if !active {
		return nil, apperr.Unauthenticated("account is inactive")
	}
	if !customerActive && !p.IsSystemAdmin() {
		return nil, apperr.Unauthenticated("customer is inactive")
	}

	rows, err := r.db.Query(ctx, `SELECT provider_id FROM user_npis WHERE user_id = $1`, userID)
	if err != nil {
		return nil, apperr.Internal("load assignments", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Internal("scan assignment", err)
		}
		p.ProviderIDs = append(p.ProviderIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("load assignments", fmt.Errorf("rows: %w", err))
	}
	return &p, nil
}
