package project

import (
	"fmt"
	"strings"
	"time"

	"devfolio.org/internal/auth"
)

const (
	minTitleLength = 2
	maxTitleLength = 200
	maxTagLength   = 50
)

// Project is a tenant-scoped portfolio entry. OrgID and OwnerID are
// stamped at creation from the acting principal and never reassigned.
type Project struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"org_id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	GithubURL   string    `json:"github_url,omitempty"`
	IsPublic    bool      `json:"is_public"`
	Tags        []Tag     `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Meta exposes the ownership record the evaluator needs.
func (p *Project) Meta() auth.ResourceMeta {
	return auth.ResourceMeta{OrgID: p.OrgID, OwnerID: p.OwnerID}
}

// Tag is an org-scoped label, unique by name within its organization.
// Tags have no single owner; mutations on them are tenant-level.
type Tag struct {
	ID    string `json:"id"`
	OrgID string `json:"org_id"`
	Name  string `json:"name"`
}

// CreateInput is the payload for creating a project.
type CreateInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	GithubURL   string   `json:"github_url"`
	IsPublic    bool     `json:"is_public"`
	TagNames    []string `json:"tag_names"`
}

// UpdateInput carries partial changes; nil fields are left untouched.
type UpdateInput struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	GithubURL   *string   `json:"github_url"`
	IsPublic    *bool     `json:"is_public"`
	TagNames    *[]string `json:"tag_names"`
}

// Sort orders for listings.
const (
	SortNewest    = "newest"
	SortOldest    = "oldest"
	SortTitleAsc  = "title_asc"
	SortTitleDesc = "title_desc"
)

// ListFilter narrows and pages a tenant-scoped project listing.
type ListFilter struct {
	Query      string
	Tag        string
	PublicOnly bool
	Sort       string
	Limit      int
	Offset     int
}

func (f *ListFilter) normalize() error {
	if f.Limit <= 0 {
		f.Limit = 10
	}
	if f.Limit > 50 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	switch f.Sort {
	case "":
		f.Sort = SortNewest
	case SortNewest, SortOldest, SortTitleAsc, SortTitleDesc:
	default:
		return fmt.Errorf("%w: unsupported sort %q", auth.ErrInvalidInput, f.Sort)
	}
	f.Tag = strings.TrimSpace(strings.ToLower(f.Tag))
	return nil
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if len(title) < minTitleLength || len(title) > maxTitleLength {
		return "", fmt.Errorf("%w: title must be %d-%d characters", auth.ErrInvalidInput, minTitleLength, maxTitleLength)
	}
	return title, nil
}

func normalizeTagName(name string) (string, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" || len(name) > maxTagLength {
		return "", fmt.Errorf("%w: tag name must be 1-%d characters", auth.ErrInvalidInput, maxTagLength)
	}
	return name, nil
}

// normalizeTagNames lowercases, trims and deduplicates, dropping empties.
func normalizeTagNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(strings.ToLower(n))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
