// Package pg implements the storage consumed by the auth, project and
// audit packages on PostgreSQL. Every guarded mutation and its audit
// entry are executed in one transaction: either both persist or neither
// does.
package pg

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"devfolio.org/internal/audit"
	"devfolio.org/internal/auth"
	"devfolio.org/internal/ids"
	"devfolio.org/internal/project"
)

// Store holds the shared connection pool.
type Store struct {
	db *sql.DB
}

var (
	_ auth.Store    = (*Store)(nil)
	_ project.Store = (*Store)(nil)
	_ audit.Store   = (*Store)(nil)
)

// Open connects to PostgreSQL via the pgx stdlib driver.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing pool (used by tests).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// appendAudit inserts the audit entry inside the caller's transaction.
func appendAudit(ctx context.Context, tx *sql.Tx, entry *audit.Entry) error {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx, `
		insert into activity_log(id, org_id, actor_user_id, action, entity, entity_id, occurred_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ID, entry.OrgID, entry.ActorUserID, entry.Action, entry.Entity, entry.EntityID, entry.OccurredAt)
	return err
}

// List returns the organization's audit trail, newest first.
func (s *Store) List(ctx context.Context, orgID string, limit, offset int) ([]*audit.Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, org_id, actor_user_id, action, entity, entity_id, occurred_at
		from activity_log
		where org_id=$1
		order by occurred_at desc, id desc
		limit $2 offset $3
	`, orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.ID, &e.OrgID, &e.ActorUserID, &e.Action, &e.Entity, &e.EntityID, &e.OccurredAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
