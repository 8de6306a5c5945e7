package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"devfolio.org/internal/audit"
	"devfolio.org/internal/auth"
)

// CreateAccount persists a new organization and its founding admin user
// atomically. Duplicate org name or email surfaces as ErrConflict.
func (s *Store) CreateAccount(ctx context.Context, org *auth.Organization, admin *auth.User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `select 1 from organizations where name=$1`, org.Name).Scan(&exists)
	if err == nil {
		return fmt.Errorf("%w: organization name already exists", auth.ErrConflict)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if err := checkEmailFree(ctx, tx, admin.Email); err != nil {
		return err
	}

	now := time.Now().UTC()
	org.CreatedAt = now
	admin.CreatedAt = now
	if _, err := tx.ExecContext(ctx,
		`insert into organizations(id, name, created_at) values ($1,$2,$3)`,
		org.ID, org.Name, org.CreatedAt,
	); err != nil {
		return err
	}
	if err := insertUser(ctx, tx, admin); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateUser persists a user and its audit entry in one transaction.
func (s *Store) CreateUser(ctx context.Context, u *auth.User, entry *audit.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := checkEmailFree(ctx, tx, u.Email); err != nil {
		return err
	}
	u.CreatedAt = time.Now().UTC()
	if err := insertUser(ctx, tx, u); err != nil {
		return err
	}
	if err := appendAudit(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) FindUser(ctx context.Context, id string) (*auth.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		select id, org_id, email, password_hash, role, created_at
		from users where id=$1
	`, id))
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		select id, org_id, email, password_hash, role, created_at
		from users where email=$1
	`, email))
}

func (s *Store) ListUsers(ctx context.Context, orgID string) ([]*auth.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, org_id, email, password_hash, role, created_at
		from users where org_id=$1 order by created_at asc, id asc
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		var u auth.User
		if err := rows.Scan(&u.ID, &u.OrgID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

func (s *Store) FindOrganization(ctx context.Context, id string) (*auth.Organization, error) {
	var org auth.Organization
	err := s.db.QueryRowContext(ctx,
		`select id, name, created_at from organizations where id=$1`, id,
	).Scan(&org.ID, &org.Name, &org.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func checkEmailFree(ctx context.Context, tx *sql.Tx, email string) error {
	var exists int
	err := tx.QueryRowContext(ctx, `select 1 from users where email=$1`, email).Scan(&exists)
	if err == nil {
		return fmt.Errorf("%w: email already registered", auth.ErrConflict)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return nil
}

func insertUser(ctx context.Context, tx *sql.Tx, u *auth.User) error {
	_, err := tx.ExecContext(ctx, `
		insert into users(id, org_id, email, password_hash, role, created_at)
		values ($1,$2,$3,$4,$5,$6)
	`, u.ID, u.OrgID, u.Email, u.PasswordHash, u.Role, u.CreatedAt)
	return err
}

func scanUser(row *sql.Row) (*auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.OrgID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
