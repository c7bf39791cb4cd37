package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var (
	// ErrAuthenticationFailed is the single outcome surfaced for any bad token.
	ErrAuthenticationFailed = errors.New("failed to authenticate token")
	ErrTokenInvalid         = fmt.Errorf("%w: invalid token", ErrAuthenticationFailed)
	ErrTokenExpired         = fmt.Errorf("%w: token expired", ErrAuthenticationFailed)
)

// DefaultTokenTTL matches the 86400 second lifetime clients expect.
const DefaultTokenTTL = 24 * time.Hour

// Principal represents the authenticated caller resolved from a token.
type Principal struct {
	UserID int64
}

type principalKey struct{}

// WithPrincipal stores the principal in context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext retrieves the principal from context (if any).
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// ErrNoPrincipal is returned by RequirePrincipal on an unauthenticated context.
var ErrNoPrincipal = errors.New("missing principal")

// RequirePrincipal ensures a principal is present in context.
func RequirePrincipal(ctx context.Context) (*Principal, error) {
	p, ok := FromContext(ctx)
	if !ok {
		return nil, ErrNoPrincipal
	}
	return p, nil
}

// TokenConfig configures a TokenService. Now defaults to time.Now.
type TokenConfig struct {
	Secret string
	TTL    time.Duration
	Now    func() time.Time
}

// TokenService issues and verifies HS256 bearer tokens binding a user id.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type claims struct {
	ID int64 `json:"id"`
	jwt.RegisteredClaims
}

// NewTokenService validates cfg and returns a TokenService.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TokenService{secret: []byte(cfg.Secret), ttl: ttl, now: now}, nil
}

// Issue signs a token for userID expiring TTL from now.
func (s *TokenService) Issue(userID int64) (string, error) {
	iat := s.now()
	c := claims{
		ID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(iat.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the embedded user id.
// Failures are ErrTokenExpired or ErrTokenInvalid.
func (s *TokenService) Verify(token string) (int64, error) {
	var c claims
	tok, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !tok.Valid || c.ID <= 0 {
		return 0, ErrTokenInvalid
	}
	return c.ID, nil
}
