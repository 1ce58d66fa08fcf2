// Package identity resolves bearer tokens to users and decides what they may do.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jcmexdev/storefront/internal/pkg/apperr"
	user "github.com/jcmexdev/storefront/internal/user-service/domain"
)

// Identity is a verified caller. The services trust UserID verbatim.
type Identity struct {
	UserID string
	Role   user.Role
}

type Claims struct {
	UserID string `json:"id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Provider verifies HS256 bearer tokens.
type Provider struct {
	secret []byte
	parser *jwt.Parser
}

func NewProvider(secret string) *Provider {
	return &Provider{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// Resolve turns an Authorization header value into an Identity.
func (p *Provider) Resolve(ctx context.Context, header string) (Identity, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Identity{}, apperr.New(apperr.KindAuthenticationRequired, "Authentication required")
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return Identity{}, apperr.New(apperr.KindInvalidCredential, "Invalid authorization header")
	}

	var claims Claims
	_, err := p.parser.ParseWithClaims(strings.TrimSpace(token), &claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, apperr.Wrap(err, apperr.KindInvalidCredential, "Token expired")
		}
		return Identity{}, apperr.Wrap(err, apperr.KindInvalidCredential, "Invalid token")
	}
	if claims.UserID == "" {
		return Identity{}, apperr.New(apperr.KindInvalidCredential, "Invalid token")
	}

	role := user.Role(strings.ToUpper(claims.Role))
	if role == "" {
		role = user.RoleUser
	}
	return Identity{UserID: claims.UserID, Role: role}, nil
}

// Issue signs a token for the user. Used by tests and the demo setup.
func (p *Provider) Issue(userID string, role user.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

type contextKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}
