package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"devfolio.org/internal/audit"
	"devfolio.org/internal/auth"
	"devfolio.org/internal/ids"
	"devfolio.org/internal/project"
)

// CreateProject inserts the project, links its tags (creating missing
// ones) and appends the audit entry, all in one transaction.
func (s *Store) CreateProject(ctx context.Context, p *project.Project, tagNames []string, entry *audit.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if _, err := tx.ExecContext(ctx, `
		insert into projects(id, org_id, owner_id, title, description, github_url, is_public, created_at, updated_at)
		values ($1,$2,$3,$4,$5,nullif($6,''),$7,$8,$9)
	`, p.ID, p.OrgID, p.OwnerID, p.Title, p.Description, p.GithubURL, p.IsPublic, p.CreatedAt, p.UpdatedAt); err != nil {
		return err
	}

	tags, err := relinkTags(ctx, tx, p.OrgID, p.ID, tagNames)
	if err != nil {
		return err
	}
	p.Tags = tags

	if err := appendAudit(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

// FindProject loads one project scoped by organization. An id belonging
// to another tenant is indistinguishable from an absent one.
func (s *Store) FindProject(ctx context.Context, orgID, id string) (*project.Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx, `
		select id, org_id, owner_id, title, description, coalesce(github_url,''), is_public, created_at, updated_at
		from projects where org_id=$1 and id=$2
	`, orgID, id))
	if err != nil {
		return nil, err
	}
	tags, err := projectTags(ctx, s.db, p.ID)
	if err != nil {
		return nil, err
	}
	p.Tags = tags
	return p, nil
}

// ListProjects returns a filtered page of the organization's projects.
func (s *Store) ListProjects(ctx context.Context, orgID string, filter project.ListFilter) ([]*project.Project, error) {
	var (
		conds = []string{"p.org_id=$1"}
		args  = []any{orgID}
	)
	if filter.PublicOnly {
		conds = append(conds, "p.is_public = true")
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(p.title ilike $%d or p.description ilike $%d)", n, n))
	}
	if filter.Tag != "" {
		args = append(args, filter.Tag)
		conds = append(conds, fmt.Sprintf(`exists (
			select 1 from project_tags pt
			join tags t on t.id = pt.tag_id
			where pt.project_id = p.id and t.org_id = p.org_id and t.name = $%d
		)`, len(args)))
	}

	var order string
	switch filter.Sort {
	case project.SortOldest:
		order = "p.created_at asc, p.id asc"
	case project.SortTitleAsc:
		order = "p.title asc"
	case project.SortTitleDesc:
		order = "p.title desc"
	default:
		order = "p.created_at desc, p.id desc"
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		select p.id, p.org_id, p.owner_id, p.title, p.description, coalesce(p.github_url,''), p.is_public, p.created_at, p.updated_at
		from projects p
		where %s
		order by %s
		limit $%d offset $%d
	`, strings.Join(conds, " and "), order, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*project.Project
	for rows.Next() {
		var p project.Project
		if err := rows.Scan(&p.ID, &p.OrgID, &p.OwnerID, &p.Title, &p.Description, &p.GithubURL, &p.IsPublic, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, p := range projects {
		tags, err := projectTags(ctx, s.db, p.ID)
		if err != nil {
			return nil, err
		}
		p.Tags = tags
	}
	return projects, nil
}

// UpdateProject persists the changed fields, relinks tags when tagNames
// is non-nil, and appends the audit entry, all in one transaction.
func (s *Store) UpdateProject(ctx context.Context, p *project.Project, tagNames []string, entry *audit.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	p.UpdatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		update projects
		set title=$3, description=$4, github_url=nullif($5,''), is_public=$6, updated_at=$7
		where org_id=$1 and id=$2
	`, p.OrgID, p.ID, p.Title, p.Description, p.GithubURL, p.IsPublic, p.UpdatedAt)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrNotFound
	}

	if tagNames != nil {
		tags, err := relinkTags(ctx, tx, p.OrgID, p.ID, tagNames)
		if err != nil {
			return err
		}
		p.Tags = tags
	}

	if err := appendAudit(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteProject removes the project, its tag links and appends the audit
// entry in one transaction.
func (s *Store) DeleteProject(ctx context.Context, orgID, id string, entry *audit.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from project_tags where project_id=$1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `delete from projects where org_id=$1 and id=$2`, orgID, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrNotFound
	}
	if err := appendAudit(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateTag inserts an org-scoped tag with its audit entry. Duplicate
// names conflict.
func (s *Store) CreateTag(ctx context.Context, t *project.Tag, entry *audit.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `select 1 from tags where org_id=$1 and name=$2`, t.OrgID, t.Name).Scan(&exists)
	if err == nil {
		return fmt.Errorf("%w: tag already exists", auth.ErrConflict)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`insert into tags(id, org_id, name) values ($1,$2,$3)`,
		t.ID, t.OrgID, t.Name,
	); err != nil {
		return err
	}
	if err := appendAudit(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

// ListTags returns the organization's tags ordered by name.
func (s *Store) ListTags(ctx context.Context, orgID string) ([]*project.Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, org_id, name from tags where org_id=$1 order by name asc`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []*project.Tag
	for rows.Next() {
		var t project.Tag
		if err := rows.Scan(&t.ID, &t.OrgID, &t.Name); err != nil {
			return nil, err
		}
		tags = append(tags, &t)
	}
	return tags, rows.Err()
}

// relinkTags replaces the project's tag links with the given set,
// creating missing tags inside the transaction.
func relinkTags(ctx context.Context, tx *sql.Tx, orgID, projectID string, tagNames []string) ([]project.Tag, error) {
	if _, err := tx.ExecContext(ctx, `delete from project_tags where project_id=$1`, projectID); err != nil {
		return nil, err
	}
	tags := make([]project.Tag, 0, len(tagNames))
	for _, name := range tagNames {
		var tagID string
		err := tx.QueryRowContext(ctx, `select id from tags where org_id=$1 and name=$2`, orgID, name).Scan(&tagID)
		if errors.Is(err, sql.ErrNoRows) {
			tagID = ids.New()
			if _, err := tx.ExecContext(ctx,
				`insert into tags(id, org_id, name) values ($1,$2,$3)`,
				tagID, orgID, name,
			); err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx,
			`insert into project_tags(project_id, tag_id) values ($1,$2) on conflict do nothing`,
			projectID, tagID,
		); err != nil {
			return nil, err
		}
		tags = append(tags, project.Tag{ID: tagID, OrgID: orgID, Name: name})
	}
	return tags, nil
}

func projectTags(ctx context.Context, db *sql.DB, projectID string) ([]project.Tag, error) {
	rows, err := db.QueryContext(ctx, `
		select t.id, t.org_id, t.name from tags t
		join project_tags pt on pt.tag_id = t.id
		where pt.project_id=$1
		order by t.name asc
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []project.Tag{}
	for rows.Next() {
		var t project.Tag
		if err := rows.Scan(&t.ID, &t.OrgID, &t.Name); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func scanProject(row *sql.Row) (*project.Project, error) {
	var p project.Project
	err := row.Scan(&p.ID, &p.OrgID, &p.OwnerID, &p.Title, &p.Description, &p.GithubURL, &p.IsPublic, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
