package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/provider-portal/backend/internal/models"
	"github.com/provider-portal/backend/pkg/database"
	"github.com/provider-portal/backend/pkg/utils"
)

// ErrAlreadySeeded is returned by SeedSystemAdmin when the email or username is in use.
var ErrAlreadySeeded = errors.New("system admin already exists")

// SeedInput describes the bootstrap system admin.
type SeedInput struct {
	Name     string
	Email    string
	Username string
	Password string
}

// SeedSystemAdmin creates the first system admin. An empty password gets a temporary one,
// returned to the caller, and the account must change it on first login.
func SeedSystemAdmin(ctx context.Context, db database.DB, in SeedInput) (*models.User, string, error) {
	u := &models.User{
		Name:     strings.TrimSpace(in.Name),
		Email:    strings.TrimSpace(in.Email),
		Username: strings.TrimSpace(in.Username),
		Active:   true,
		Roles:    []models.Role{models.RoleSystemAdmin},
	}
	if u.Email == "" || u.Username == "" {
		return nil, "", errors.New("seed admin email and username are required")
	}
	if !UsernameAllowed(u.Username) {
		return nil, "", errors.New("seed admin username cannot contain @")
	}
	if u.Name == "" {
		u.Name = u.Username
	}

	password := in.Password
	if password == "" {
		temporary, err := utils.TemporaryPassword(temporaryPasswordLn)
		if err != nil {
			return nil, "", fmt.Errorf("generate password: %w", err)
		}
		password = temporary
		u.MustChangePassword = true
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}
	u.Password = hash

	err = database.InTx(ctx, db, func(tx pgx.Tx) error {
		taken, err := EmailTaken(ctx, tx, u.Email, nil)
		if err != nil {
			return err
		}
		if !taken {
			taken, err = UsernameTaken(ctx, tx, u.Username, nil)
			if err != nil {
				return err
			}
		}
		if taken {
			return ErrAlreadySeeded
		}
		return Insert(ctx, tx, u)
	})
	if err != nil {
		return nil, "", err
	}
	if !u.MustChangePassword {
		password = ""
	}
	return u, password, nil
}
