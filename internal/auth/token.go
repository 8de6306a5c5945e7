package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultIssuer = "devfolio"

// TokenKind separates access tokens from refresh tokens. A token is only
// accepted by operations expecting its own kind.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

const (
	// DefaultAccessTTL bounds the role/tenant staleness window.
	DefaultAccessTTL = 30 * time.Minute
	// DefaultRefreshTTL is how long a session can be renewed without
	// presenting credentials again.
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims is the signed payload carried by both token kinds. Refresh
// tokens carry only the subject; role and org are re-derived from the
// user record at renewal so role changes take effect on the next refresh.
type Claims struct {
	OrgID string    `json:"org_id,omitempty"`
	Role  Role      `json:"role,omitempty"`
	Kind  TokenKind `json:"token_kind"`
	jwt.RegisteredClaims
}

// Codec signs and verifies tokens with a process-wide HS256 secret. The
// secret is injected at construction and never read from ambient state;
// Codec holds no other mutable state and is safe for concurrent use.
type Codec struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// CodecOption configures Codec behavior.
type CodecOption func(*Codec)

// WithIssuer overrides the issuer claim.
func WithIssuer(issuer string) CodecOption {
	return func(c *Codec) {
		if s := strings.TrimSpace(issuer); s != "" {
			c.issuer = s
		}
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		if ttl > 0 {
			c.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		if ttl > 0 {
			c.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) CodecOption {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec constructs a Codec for the given signing secret.
func NewCodec(secret string, opts ...CodecOption) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	c := &Codec{
		secret:     []byte(secret),
		issuer:     defaultIssuer,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// IssueAccess signs a short-lived access token carrying identity, tenant
// and role claims.
func (c *Codec) IssueAccess(userID, orgID string, role Role) (string, time.Time, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(orgID) == "" {
		return "", time.Time{}, errors.New("auth: user and org are required")
	}
	return c.sign(Claims{OrgID: orgID, Role: role, Kind: TokenKindAccess}, userID, c.accessTTL)
}

// IssueRefresh signs a long-lived refresh token carrying only the subject.
func (c *Codec) IssueRefresh(userID string) (string, time.Time, error) {
	if strings.TrimSpace(userID) == "" {
		return "", time.Time{}, errors.New("auth: user is required")
	}
	return c.sign(Claims{Kind: TokenKindRefresh}, userID, c.refreshTTL)
}

func (c *Codec) sign(claims Claims, subject string, ttl time.Duration) (string, time.Time, error) {
	now := c.now().UTC()
	exp := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    c.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies signature, expiry and required claims, and rejects
// tokens whose kind differs from the expected one. All failures collapse
// into ErrInvalidToken.
func (c *Codec) Parse(token string, kind TokenKind) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	if claims.Kind != kind {
		return nil, ErrInvalidToken
	}
	if kind == TokenKindAccess && (claims.OrgID == "" || claims.Role == "") {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
