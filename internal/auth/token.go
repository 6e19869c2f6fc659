package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/wolfeidau/taskflow/internal/models"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"

	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour

	MinSecretLength = 32
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrWeakSecret    = fmt.Errorf("token secrets must be at least %d bytes", MinSecretLength)
	ErrSharedSecrets = errors.New("access and refresh secrets must differ")
)

// Claims are the JWT claims issued by TokenCodec. Subject carries the user ID.
// OrgID and Role are only set on access tokens.
type Claims struct {
	TokenType string      `json:"token_type"`
	Email     string      `json:"email,omitempty"`
	OrgID     string      `json:"org_id,omitempty"`
	Role      models.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// Org parses the organization claim. Tokens without one yield uuid.Nil.
func (c *Claims) Org() (uuid.UUID, error) {
	if c.OrgID == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(c.OrgID)
}

// TokenConfig holds the signing material for a TokenCodec.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
}

// TokenCodec issues and verifies HS256 access and refresh tokens. Each kind is
// signed with its own secret and carries its kind in the token_type claim, so one
// kind is never accepted where the other is expected.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	now           func() time.Time
}

func NewTokenCodec(cfg TokenConfig) (*TokenCodec, error) {
	if len(cfg.AccessSecret) < MinSecretLength || len(cfg.RefreshSecret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, ErrSharedSecrets
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "taskflow"
	}
	return &TokenCodec{
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
		issuer:        cfg.Issuer,
		now:           time.Now,
	}, nil
}

// IssueAccess signs an access token for identity acting in orgID. A zero ttl
// uses DefaultAccessTTL.
func (c *TokenCodec) IssueAccess(identity Identity, orgID uuid.UUID, role models.Role, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = DefaultAccessTTL
	}
	claims := c.claims(TokenTypeAccess, identity, ttl)
	if orgID != uuid.Nil {
		claims.OrgID = orgID.String()
	}
	claims.Role = role
	return c.sign(claims, c.accessSecret)
}

// IssueRefresh signs a refresh token carrying only the identity. A zero ttl uses
// DefaultRefreshTTL.
func (c *TokenCodec) IssueRefresh(identity Identity, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = DefaultRefreshTTL
	}
	return c.sign(c.claims(TokenTypeRefresh, identity, ttl), c.refreshSecret)
}

// Verify checks an access token.
func (c *TokenCodec) Verify(token string) (*Claims, error) {
	return c.verify(token, TokenTypeAccess, c.accessSecret)
}

// VerifyRefresh checks a refresh token.
func (c *TokenCodec) VerifyRefresh(token string) (*Claims, error) {
	return c.verify(token, TokenTypeRefresh, c.refreshSecret)
}

func (c *TokenCodec) claims(tokenType string, identity Identity, ttl time.Duration) *Claims {
	now := c.now()
	return &Claims{
		TokenType: tokenType,
		Email:     identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   identity.UserID.String(),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

func (c *TokenCodec) sign(claims *Claims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", claims.TokenType, err)
	}
	return signed, nil
}

func (c *TokenCodec) verify(token, tokenType string, secret []byte) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrInvalidToken, tokenType, claims.TokenType)
	}
	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("%w: bad subject: %w", ErrInvalidToken, err)
	}
	if _, err := claims.Org(); err != nil {
		return nil, fmt.Errorf("%w: bad org: %w", ErrInvalidToken, err)
	}

	return claims, nil
}
