// Package project implements the project and tag domain behind the
// authorization core. Every mutating operation runs the same pipeline:
// evaluate authorization, execute the effect, append the audit entry,
// with effect and audit in one storage transaction.
package project

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"devfolio.org/internal/audit"
	"devfolio.org/internal/auth"
	"devfolio.org/internal/ids"
)

// Store describes the persistence the project domain consumes. Mutating
// calls take the audit entry so both land in one transaction; lookups are
// always scoped by the caller's organization, which collapses cross-tenant
// and absent resources into the same ErrNotFound.
type Store interface {
	CreateProject(ctx context.Context, p *Project, tagNames []string, entry *audit.Entry) error
	FindProject(ctx context.Context, orgID, id string) (*Project, error)
	ListProjects(ctx context.Context, orgID string, filter ListFilter) ([]*Project, error)
	UpdateProject(ctx context.Context, p *Project, tagNames []string, entry *audit.Entry) error
	DeleteProject(ctx context.Context, orgID, id string, entry *audit.Entry) error

	CreateTag(ctx context.Context, t *Tag, entry *audit.Entry) error
	ListTags(ctx context.Context, orgID string) ([]*Tag, error)
}

// Service guards project and tag operations with the evaluator.
type Service struct {
	store Store
}

// NewService constructs Service.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("project: store is required")
	}
	return &Service{store: store}, nil
}

// Create adds a project owned by the acting principal. Ownership and
// tenant are stamped from the principal, never from the input.
func (s *Service) Create(ctx context.Context, principal auth.Principal, in CreateInput) (*Project, error) {
	if err := auth.Guard(principal, auth.ActionCreate, auth.TenantMeta(principal.OrgID)); err != nil {
		return nil, err
	}
	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", auth.ErrInvalidInput)
	}

	p := &Project{
		ID:          ids.New(),
		OrgID:       principal.OrgID,
		OwnerID:     principal.UserID,
		Title:       title,
		Description: description,
		GithubURL:   strings.TrimSpace(in.GithubURL),
		IsPublic:    in.IsPublic,
	}
	entry := audit.New(principal.OrgID, principal.UserID, audit.ActionProjectCreate, audit.EntityProject, p.ID)
	if err := s.store.CreateProject(ctx, p, normalizeTagNames(in.TagNames), entry); err != nil {
		return nil, err
	}
	_ = audit.LogEvent(ctx, entry)
	return p, nil
}

// List returns projects of the principal's organization. Read-only: no
// audit entry is recorded.
func (s *Service) List(ctx context.Context, principal auth.Principal, filter ListFilter) ([]*Project, error) {
	if err := auth.Guard(principal, auth.ActionRead, auth.TenantMeta(principal.OrgID)); err != nil {
		return nil, err
	}
	if err := filter.normalize(); err != nil {
		return nil, err
	}
	return s.store.ListProjects(ctx, principal.OrgID, filter)
}

// Get returns one project of the principal's organization.
func (s *Service) Get(ctx context.Context, principal auth.Principal, id string) (*Project, error) {
	if err := auth.Guard(principal, auth.ActionRead, auth.TenantMeta(principal.OrgID)); err != nil {
		return nil, err
	}
	return s.store.FindProject(ctx, principal.OrgID, id)
}

// Update applies partial changes to a project. The resource is loaded
// scoped by the principal's organization before the evaluator runs, so a
// cross-tenant id surfaces as not found, never as forbidden.
func (s *Service) Update(ctx context.Context, principal auth.Principal, id string, in UpdateInput) (*Project, error) {
	p, err := s.store.FindProject(ctx, principal.OrgID, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Guard(principal, auth.ActionUpdate, p.Meta()); err != nil {
		return nil, err
	}
	if in.Title != nil {
		title, err := validateTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		p.Title = title
	}
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		if d == "" {
			return nil, fmt.Errorf("%w: description is required", auth.ErrInvalidInput)
		}
		p.Description = d
	}
	if in.GithubURL != nil {
		p.GithubURL = strings.TrimSpace(*in.GithubURL)
	}
	if in.IsPublic != nil {
		p.IsPublic = *in.IsPublic
	}
	var tagNames []string
	if in.TagNames != nil {
		tagNames = normalizeTagNames(*in.TagNames)
		if tagNames == nil {
			tagNames = []string{}
		}
	}

	entry := audit.New(principal.OrgID, principal.UserID, audit.ActionProjectUpdate, audit.EntityProject, p.ID)
	if err := s.store.UpdateProject(ctx, p, tagNames, entry); err != nil {
		return nil, err
	}
	_ = audit.LogEvent(ctx, entry)
	return p, nil
}

// Delete removes a project. Same load-then-evaluate order as Update.
func (s *Service) Delete(ctx context.Context, principal auth.Principal, id string) error {
	p, err := s.store.FindProject(ctx, principal.OrgID, id)
	if err != nil {
		return err
	}
	if err := auth.Guard(principal, auth.ActionDelete, p.Meta()); err != nil {
		return err
	}
	entry := audit.New(principal.OrgID, principal.UserID, audit.ActionProjectDelete, audit.EntityProject, p.ID)
	if err := s.store.DeleteProject(ctx, principal.OrgID, p.ID, entry); err != nil {
		return err
	}
	_ = audit.LogEvent(ctx, entry)
	return nil
}

// CreateTag adds an org-scoped tag. Duplicate names conflict.
func (s *Service) CreateTag(ctx context.Context, principal auth.Principal, name string) (*Tag, error) {
	if err := auth.Guard(principal, auth.ActionCreateTag, auth.TenantMeta(principal.OrgID)); err != nil {
		return nil, err
	}
	normalized, err := normalizeTagName(name)
	if err != nil {
		return nil, err
	}
	t := &Tag{ID: ids.New(), OrgID: principal.OrgID, Name: normalized}
	entry := audit.New(principal.OrgID, principal.UserID, audit.ActionTagCreate, audit.EntityTag, t.ID)
	if err := s.store.CreateTag(ctx, t, entry); err != nil {
		return nil, err
	}
	_ = audit.LogEvent(ctx, entry)
	return t, nil
}

// ListTags returns the organization's tags ordered by name.
func (s *Service) ListTags(ctx context.Context, principal auth.Principal) ([]*Tag, error) {
	if err := auth.Guard(principal, auth.ActionRead, auth.TenantMeta(principal.OrgID)); err != nil {
		return nil, err
	}
	return s.store.ListTags(ctx, principal.OrgID)
}
