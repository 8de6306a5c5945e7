package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"devfolio.org/internal/audit"
	"devfolio.org/internal/ids"
)

const minPasswordLength = 8

// TokenPair carries access and refresh tokens with their expirations.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Service composes credential verification, the token codec and the user
// store into the authentication operations exposed to the request layer.
type Service struct {
	store Store
	codec *Codec
}

// NewService constructs Service.
func NewService(store Store, codec *Codec) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: codec is required")
	}
	return &Service{store: store, codec: codec}, nil
}

// Register creates a new organization with its founding admin user and
// issues the first token pair.
func (s *Service) Register(ctx context.Context, orgName, email, password string) (TokenPair, *User, error) {
	orgName = strings.TrimSpace(orgName)
	if orgName == "" {
		return TokenPair{}, nil, fmt.Errorf("%w: organization name is required", ErrInvalidInput)
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return TokenPair{}, nil, err
	}
	if err := validatePassword(password); err != nil {
		return TokenPair{}, nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return TokenPair{}, nil, err
	}

	org := &Organization{ID: ids.New(), Name: orgName}
	user := &User{
		ID:           ids.New(),
		OrgID:        org.ID,
		Email:        email,
		PasswordHash: hash,
		Role:         RoleAdmin,
	}
	if err := s.store.CreateAccount(ctx, org, user); err != nil {
		return TokenPair{}, nil, err
	}
	pair, err := s.mintTokens(user)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, user, nil
}

// Login verifies credentials and issues a token pair. Failed attempts
// mutate nothing; there is no lockout counter.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, *User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, nil, ErrInvalidCredentials
	}
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrInvalidCredentials
		}
		return TokenPair{}, nil, err
	}
	if !VerifyPassword(password, user.PasswordHash) {
		return TokenPair{}, nil, ErrInvalidCredentials
	}
	pair, err := s.mintTokens(user)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, user, nil
}

// Refresh rotates a refresh token into a fresh pair. Role and org are
// re-derived from the current user record, so a role change takes effect
// here rather than on existing access tokens. Superseded refresh tokens
// are not blacklisted; they lapse at their own expiry.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, *User, error) {
	claims, err := s.codec.Parse(refreshToken, TokenKindRefresh)
	if err != nil {
		return TokenPair{}, nil, ErrInvalidToken
	}
	user, err := s.store.FindUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrInvalidToken
		}
		return TokenPair{}, nil, err
	}
	pair, err := s.mintTokens(user)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, user, nil
}

// Resolve turns an access token into the request's principal. The role
// and org come from the verified claims, not from a per-request lookup;
// only the subject's existence is confirmed so that stale claims for
// deleted users are not trusted.
func (s *Service) Resolve(ctx context.Context, accessToken string) (Principal, error) {
	claims, err := s.codec.Parse(accessToken, TokenKindAccess)
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}
	if _, err := s.store.FindUser(ctx, claims.Subject); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrUnauthenticated
		}
		return Principal{}, err
	}
	return Principal{UserID: claims.Subject, OrgID: claims.OrgID, Role: claims.Role}, nil
}

// CreateUser adds a user to the principal's own organization. Requires
// the manage-users capability; the mutation and its audit entry commit
// together.
func (s *Service) CreateUser(ctx context.Context, principal Principal, email, password, role string) (*User, error) {
	if err := Guard(principal, ActionManageUsers, TenantMeta(principal.OrgID)); err != nil {
		return nil, err
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	parsedRole, ok := ParseRole(role)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported role %q", ErrInvalidInput, role)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:           ids.New(),
		OrgID:        principal.OrgID,
		Email:        email,
		PasswordHash: hash,
		Role:         parsedRole,
	}
	entry := audit.New(principal.OrgID, principal.UserID, audit.ActionUserCreate, audit.EntityUser, user.ID)
	if err := s.store.CreateUser(ctx, user, entry); err != nil {
		return nil, err
	}
	_ = audit.LogEvent(ctx, entry)
	return user, nil
}

// ListUsers returns the principal's organization members. Requires
// manage-users.
func (s *Service) ListUsers(ctx context.Context, principal Principal) ([]*User, error) {
	if err := Guard(principal, ActionManageUsers, TenantMeta(principal.OrgID)); err != nil {
		return nil, err
	}
	return s.store.ListUsers(ctx, principal.OrgID)
}

// Organization returns the principal's own organization.
func (s *Service) Organization(ctx context.Context, principal Principal) (*Organization, error) {
	if err := Guard(principal, ActionRead, TenantMeta(principal.OrgID)); err != nil {
		return nil, err
	}
	return s.store.FindOrganization(ctx, principal.OrgID)
}

func (s *Service) mintTokens(user *User) (TokenPair, error) {
	access, accessExp, err := s.codec.IssueAccess(user.ID, user.OrgID, user.Role)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.codec.IssueRefresh(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	return email, nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	return nil
}
