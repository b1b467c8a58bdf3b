package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Token claim names
const (
	claimUserID   = "user_id"
	claimUsername = "username"
	claimRoles    = "roles"
)

var (
	// ErrTokenRevoked is returned for a token that was logged out
	ErrTokenRevoked = errors.New("token revoked")
	// ErrInvalidToken is returned for a token that fails verification
	ErrInvalidToken = errors.New("invalid token")
)

// Principal is the authenticated caller
type Principal struct {
	UserID    int64
	Username  string
	Roles     []database.Role
	TokenID   string
	ExpiresAt time.Time
}

// HasRole reports whether the caller was granted the role
func (p *Principal) HasRole(role database.Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IssuedToken is a signed access token
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
	TTL       time.Duration
}

// TokenManager issues HS256 access tokens and verifies them against the revocation list
type TokenManager struct {
	secret   []byte
	auth     *jwtauth.JWTAuth
	ttl      time.Duration
	denylist database.TokenDenylist
	now      func() time.Time
}

// NewTokenManager creates a token manager. denylist may be nil, which disables logout.
func NewTokenManager(secret string, ttl time.Duration, denylist database.TokenDenylist) *TokenManager {
	return &TokenManager{
		secret:   []byte(secret),
		auth:     jwtauth.New("HS256", []byte(secret), nil),
		ttl:      ttl,
		denylist: denylist,
		now:      time.Now,
	}
}

// JWTAuth returns the verifier used by jwtauth middleware
func (m *TokenManager) JWTAuth() *jwtauth.JWTAuth {
	return m.auth
}

// TTL returns the lifetime of issued tokens
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a token for the user
func (m *TokenManager) Issue(u *database.User) (*IssuedToken, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)

	roles := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = string(r)
	}

	claims := jwt.MapClaims{
		"sub":         u.Username,
		"jti":         uuid.NewString(),
		"iat":         now.Unix(),
		"exp":         expiresAt.Unix(),
		claimUserID:   u.ID,
		claimUsername: u.Username,
		claimRoles:    roles,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &IssuedToken{Token: signed, ExpiresAt: expiresAt, TTL: m.ttl}, nil
}

// Parse verifies a raw token string, including the revocation list
func (m *TokenManager) Parse(ctx context.Context, raw string) (*Principal, error) {
	token, err := jwtauth.VerifyToken(m.auth, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, err := token.AsMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	p, err := principalFromClaims(token.JwtID(), token.Expiration(), claims)
	if err != nil {
		return nil, err
	}
	if err := m.checkRevoked(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Revoke puts the principal's token on the revocation list until it expires
func (m *TokenManager) Revoke(ctx context.Context, p *Principal) error {
	if m.denylist == nil {
		return nil
	}
	ttl := p.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		return nil
	}
	if err := m.denylist.Revoke(ctx, p.TokenID, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (m *TokenManager) checkRevoked(ctx context.Context, p *Principal) error {
	if m.denylist == nil || p.TokenID == "" {
		return nil
	}
	revoked, err := m.denylist.IsRevoked(ctx, p.TokenID)
	if err != nil {
		return fmt.Errorf("check token revocation: %w", err)
	}
	if revoked {
		return ErrTokenRevoked
	}
	return nil
}

func principalFromClaims(jti string, exp time.Time, claims map[string]any) (*Principal, error) {
	p := &Principal{TokenID: jti, ExpiresAt: exp}

	switch v := claims[claimUserID].(type) {
	case float64:
		p.UserID = int64(v)
	case int64:
		p.UserID = v
	case json.Number:
		id, err := v.Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: bad user id", ErrInvalidToken)
		}
		p.UserID = id
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad user id", ErrInvalidToken)
		}
		p.UserID = id
	default:
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}

	p.Username, _ = claims[claimUsername].(string)

	switch roles := claims[claimRoles].(type) {
	case []any:
		for _, r := range roles {
			if s, ok := r.(string); ok {
				p.Roles = append(p.Roles, database.Role(s))
			}
		}
	case []string:
		for _, s := range roles {
			p.Roles = append(p.Roles, database.Role(s))
		}
	}
	return p, nil
}
