package auth

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// RoutePolicy states which gate checks apply to a route.
//
// OwnerOnly limits card updates and deletes to the caller's cards and reports
// 404 when nothing matched. Without it the card is matched by id alone and an
// unknown id still succeeds.
type RoutePolicy struct {
	APIKey    bool `yaml:"api_key"`
	Token     bool `yaml:"token"`
	OwnerOnly bool `yaml:"owner_only"`
}

// PolicyTable maps "METHOD /path" to its policy.
type PolicyTable map[string]RoutePolicy

// Route keys served by the HTTP API.
const (
	RouteIndex      = "GET /"
	RouteListCards  = "GET /cards"
	RouteCreateCard = "POST /cards/create"
	RouteUpdateCard = "POST /cards/update"
	RouteDeleteCard = "POST /cards/delete"
	RouteRegister   = "POST /register"
	RouteLogin      = "POST /login"
)

// DefaultPolicy returns the built-in table. Key and token requirements follow
// what existing clients already send; owner scoping is on for mutations.
func DefaultPolicy() PolicyTable {
	return PolicyTable{
		RouteIndex:      {},
		RouteListCards:  {APIKey: true, Token: true},
		RouteCreateCard: {Token: true},
		RouteUpdateCard: {Token: true, OwnerOnly: true},
		RouteDeleteCard: {APIKey: true, Token: true, OwnerOnly: true},
		RouteRegister:   {APIKey: true},
		RouteLogin:      {},
	}
}

// RouteKey builds the table key for a method and mux path template.
func RouteKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// Lookup returns the policy for a route; unknown routes require a token.
func (t PolicyTable) Lookup(method, path string) RoutePolicy {
	if p, ok := t[RouteKey(method, path)]; ok {
		return p
	}
	return RoutePolicy{Token: true}
}

// Keys returns the table keys, sorted.
func (t PolicyTable) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type policyFile struct {
	Routes map[string]RoutePolicy `yaml:"routes"`
}

// LoadPolicy reads a YAML overlay and applies it on top of DefaultPolicy.
// An empty path returns the defaults.
//
//	routes:
//	  "POST /cards/create": {api_key: true, token: true}
func LoadPolicy(path string) (PolicyTable, error) {
	table := DefaultPolicy()
	if path == "" {
		return table, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route policy: %w", err)
	}
	overlay, err := ParsePolicy(raw)
	if err != nil {
		return nil, fmt.Errorf("route policy %s: %w", path, err)
	}
	for k, p := range overlay {
		table[k] = p
	}
	return table, nil
}

// ParsePolicy decodes a YAML policy document. Unknown fields are rejected;
// an empty or comment-only document is an empty overlay.
func ParsePolicy(raw []byte) (PolicyTable, error) {
	var f policyFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode route policy: %w", err)
	}
	out := make(PolicyTable, len(f.Routes))
	for k, p := range f.Routes {
		method, path, ok := strings.Cut(strings.TrimSpace(k), " ")
		if !ok || !strings.HasPrefix(path, "/") || !validMethod(method) {
			return nil, fmt.Errorf("invalid route key %q, want \"METHOD /path\"", k)
		}
		out[RouteKey(method, strings.TrimSpace(path))] = p
	}
	return out, nil
}

func validMethod(m string) bool {
	switch strings.ToUpper(m) {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
