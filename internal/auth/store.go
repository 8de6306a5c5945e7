package auth

import (
	"context"

	"devfolio.org/internal/audit"
)

// Store describes the persistence the auth subsystem consumes. Uniqueness
// violations surface as ErrConflict, absent rows as ErrNotFound.
type Store interface {
	// CreateAccount persists a new organization and its founding admin
	// user in one transaction.
	CreateAccount(ctx context.Context, org *Organization, admin *User) error

	// CreateUser persists a user and the audit entry describing the
	// mutation in one transaction.
	CreateUser(ctx context.Context, u *User, entry *audit.Entry) error

	FindUser(ctx context.Context, id string) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context, orgID string) ([]*User, error)

	FindOrganization(ctx context.Context, id string) (*Organization, error)
}
