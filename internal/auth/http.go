package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// Header names used by clients.
const (
	HeaderAPIKey = "x-api-key"
	HeaderToken  = "x-access-token"
)

var (
	ErrNoAPIKey      = errors.New("no API key provided")
	ErrInvalidAPIKey = errors.New("invalid API key")
	ErrNoToken       = errors.New("no token provided")
)

// APIKeyChecker compares presented keys against the process-wide client key.
type APIKeyChecker struct {
	key []byte
}

// NewAPIKeyChecker returns a checker for key; key must not be empty.
func NewAPIKeyChecker(key string) (*APIKeyChecker, error) {
	if key == "" {
		return nil, errors.New("api key is empty")
	}
	return &APIKeyChecker{key: []byte(key)}, nil
}

// Check returns ErrNoAPIKey or ErrInvalidAPIKey when presented is not the key.
func (c *APIKeyChecker) Check(presented string) error {
	if presented == "" {
		return ErrNoAPIKey
	}
	if subtle.ConstantTimeCompare([]byte(presented), c.key) != 1 {
		return ErrInvalidAPIKey
	}
	return nil
}

// TokenFromRequest reads the bearer token from x-access-token, falling back
// to "Authorization: Bearer <token>".
func TokenFromRequest(r *http.Request) string {
	if tok := strings.TrimSpace(r.Header.Get(HeaderToken)); tok != "" {
		return tok
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

type policyKey struct{}

// WithRoutePolicy stores the matched route policy in context.
func WithRoutePolicy(ctx context.Context, p RoutePolicy) context.Context {
	return context.WithValue(ctx, policyKey{}, p)
}

// RoutePolicyFromContext returns the policy the gate applied, or the zero policy.
func RoutePolicyFromContext(ctx context.Context) RoutePolicy {
	p, _ := ctx.Value(policyKey{}).(RoutePolicy)
	return p
}

// Gate enforces the route policy table on every request.
type Gate struct {
	keys   *APIKeyChecker
	tokens *TokenService
	policy PolicyTable
	logger *slog.Logger
}

// NewGate builds a Gate. A nil logger uses slog.Default().
func NewGate(keys *APIKeyChecker, tokens *TokenService, policy PolicyTable, logger *slog.Logger) *Gate {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{keys: keys, tokens: tokens, policy: policy, logger: logger}
}

// Middleware is a mux middleware. It resolves the route template, applies the
// API key check then the token check, and injects the Principal on success.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tmpl := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if t, err := route.GetPathTemplate(); err == nil {
				tmpl = t
			}
		}
		pol := g.policy.Lookup(r.Method, tmpl)
		ctx := WithRoutePolicy(r.Context(), pol)

		if pol.APIKey {
			if err := g.keys.Check(r.Header.Get(HeaderAPIKey)); err != nil {
				g.logger.InfoContext(ctx, "api key rejected", "route", RouteKey(r.Method, tmpl), "reason", err)
				writeJSON(w, http.StatusForbidden, map[string]any{"message": capitalize(err.Error()) + "."})
				return
			}
		}
		if pol.Token {
			tok := TokenFromRequest(r)
			if tok == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"auth": false, "message": "No token provided."})
				return
			}
			uid, err := g.tokens.Verify(tok)
			if err != nil {
				g.logger.InfoContext(ctx, "token rejected", "route", RouteKey(r.Method, tmpl), "reason", err)
				// Existing clients expect 500 here.
				writeJSON(w, http.StatusInternalServerError, map[string]any{"auth": false, "message": "Failed to authenticate token."})
				return
			}
			ctx = WithPrincipal(ctx, &Principal{UserID: uid})
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
