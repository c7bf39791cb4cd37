package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"kanbanBackend/internal/auth"
	"kanbanBackend/internal/service"
	"kanbanBackend/internal/testutil"
	"kanbanBackend/models"
	"kanbanBackend/repository"
)

const testAPIKey = "test-api-key"

type apiClient struct {
	t *testing.T
	h http.Handler
}

func newTestAPI(t *testing.T, dbName string, policy auth.PolicyTable, loginRPS float64) *apiClient {
	t.Helper()
	d := testutil.OpenInMemoryDB(t, dbName)
	log := testutil.DiscardLogger()
	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: "http-secret"})
	require.NoError(t, err)
	keys, err := auth.NewAPIKeyChecker(testAPIKey)
	require.NoError(t, err)
	h := NewHandler(Deps{
		Auth:           service.NewAuthService(repository.NewUserRepository(d), tokens, bcrypt.MinCost, log),
		Cards:          service.NewCardService(repository.NewCardRepository(d), log),
		Gate:           auth.NewGate(keys, tokens, policy, log),
		Logger:         log,
		LoginPerSecond: loginRPS,
		LoginBurst:     2,
	})
	return &apiClient{t: t, h: h}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	c.h.ServeHTTP(rr, req)
	return rr
}

func (c *apiClient) register(username, password string) int64 {
	c.t.Helper()
	rr := c.do(http.MethodPost, "/register", map[string]string{"username": username, "email": username + "@x.com", "password": password},
		map[string]string{auth.HeaderAPIKey: testAPIKey})
	require.Equal(c.t, http.StatusCreated, rr.Code, rr.Body.String())
	var out struct {
		UserID int64 `json:"userId"`
	}
	require.NoError(c.t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.NotZero(c.t, out.UserID)
	return out.UserID
}

func (c *apiClient) login(username, password string) string {
	c.t.Helper()
	rr := c.do(http.MethodPost, "/login", map[string]string{"username": username, "password": password}, nil)
	require.Equal(c.t, http.StatusOK, rr.Code, rr.Body.String())
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(c.t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.NotEmpty(c.t, out.Token)
	return out.Token
}

func authHeaders(tok string) map[string]string {
	return map[string]string{auth.HeaderAPIKey: testAPIKey, auth.HeaderToken: tok}
}

func (c *apiClient) listCards(tok string) []models.Card {
	c.t.Helper()
	rr := c.do(http.MethodGet, "/cards", nil, authHeaders(tok))
	require.Equal(c.t, http.StatusOK, rr.Code, rr.Body.String())
	var cards []models.Card
	require.NoError(c.t, json.Unmarshal(rr.Body.Bytes(), &cards))
	return cards
}

func TestScenario_RegisterLoginCards(t *testing.T) {
	api := newTestAPI(t, "httpscenario", nil, 0)

	aliceID := api.register("alice", "pw1")
	tok := api.login("alice", "pw1")

	rr := api.do(http.MethodGet, "/cards", nil, authHeaders(tok))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = api.do(http.MethodPost, "/cards/create",
		map[string]string{"title": "T", "description": "D", "status": "todo", "priority": "low"},
		map[string]string{auth.HeaderToken: tok})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"cardId":1}`, rr.Body.String())

	rr = api.do(http.MethodGet, "/cards", nil, authHeaders(tok))
	require.Equal(t, http.StatusOK, rr.Code)
	want := `[{"id":1,"title":"T","description":"D","status":"todo","priority":"low","user_id":` + jsonInt(aliceID) + `}]`
	assert.JSONEq(t, want, rr.Body.String())

	rr = api.do(http.MethodPost, "/cards/update",
		map[string]any{"id": 1, "title": "T2", "description": "D2", "status": "done", "priority": "high"},
		map[string]string{auth.HeaderToken: tok})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"cardId":1}`, rr.Body.String())
	cards := api.listCards(tok)
	require.Len(t, cards, 1)
	assert.Equal(t, "T2", cards[0].Title)
	assert.Equal(t, "done", cards[0].Status)

	rr = api.do(http.MethodPost, "/cards/delete", map[string]any{"id": 1}, authHeaders(tok))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"cardId":1}`, rr.Body.String())
	assert.Empty(t, api.listCards(tok))
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestRegister_Failures(t *testing.T) {
	api := newTestAPI(t, "httpregister", nil, 0)
	body := map[string]string{"username": "bob", "email": "b@x.com", "password": "pw"}

	rr := api.do(http.MethodPost, "/register", body, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = api.do(http.MethodPost, "/register", body, map[string]string{auth.HeaderAPIKey: "wrong"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.JSONEq(t, `{"message":"Invalid API key."}`, rr.Body.String())

	api.register("bob", "pw")
	rr = api.do(http.MethodPost, "/register", body, map[string]string{auth.HeaderAPIKey: testAPIKey})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Unable to create user", rr.Body.String())

	rr = api.do(http.MethodPost, "/register", map[string]string{"username": "carol"}, map[string]string{auth.HeaderAPIKey: testAPIKey})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLogin_Failures(t *testing.T) {
	api := newTestAPI(t, "httplogin", nil, 0)
	api.register("dave", "pw")

	rr := api.do(http.MethodPost, "/login", map[string]string{"username": "nobody", "password": "pw"}, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = api.do(http.MethodPost, "/login", map[string]string{"username": "dave", "password": "bad"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Password is not valid.", rr.Body.String())
}

func TestCards_TokenErrors(t *testing.T) {
	api := newTestAPI(t, "httptokens", nil, 0)

	rr := api.do(http.MethodPost, "/cards/create", map[string]string{"title": "T"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"auth":false,"message":"No token provided."}`, rr.Body.String())

	forged := testutil.GenerateJWTHS256(t, "other-secret", 1, time.Now().Add(time.Hour))
	rr = api.do(http.MethodPost, "/cards/create", map[string]string{"title": "T"}, map[string]string{auth.HeaderToken: forged})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	expired := testutil.GenerateJWTHS256(t, "http-secret", 1, time.Now().Add(-time.Minute))
	rr = api.do(http.MethodGet, "/cards", nil, authHeaders(expired))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	rr = api.do(http.MethodGet, "/cards", nil, map[string]string{auth.HeaderToken: api.loginFresh("erin")})
	assert.Equal(t, http.StatusForbidden, rr.Code, "listing requires the api key")
}

func (c *apiClient) loginFresh(username string) string {
	c.register(username, "pw")
	return c.login(username, "pw")
}

func TestCards_Isolation(t *testing.T) {
	api := newTestAPI(t, "httpisolation", nil, 0)
	alice := api.loginFresh("alice")
	bob := api.loginFresh("bob")

	rr := api.do(http.MethodPost, "/cards/create",
		map[string]string{"title": "A", "description": "D", "status": "todo", "priority": "low"},
		map[string]string{auth.HeaderToken: alice})
	require.Equal(t, http.StatusCreated, rr.Code)
	var created struct {
		CardID int64 `json:"cardId"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	assert.Empty(t, api.listCards(bob))
	assert.Len(t, api.listCards(alice), 1)

	rr = api.do(http.MethodPost, "/cards/update",
		map[string]any{"id": created.CardID, "title": "X", "description": "X", "status": "x", "priority": "x"},
		map[string]string{auth.HeaderToken: bob})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = api.do(http.MethodPost, "/cards/delete", map[string]any{"id": created.CardID}, authHeaders(bob))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "A", api.listCards(alice)[0].Title)

	rr = api.do(http.MethodPost, "/cards/create", map[string]string{"title": "missing fields"}, map[string]string{auth.HeaderToken: alice})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Unable to create card", rr.Body.String())
}

func TestCards_UnscopedPolicy(t *testing.T) {
	policy := auth.DefaultPolicy()
	policy[auth.RouteUpdateCard] = auth.RoutePolicy{Token: true}
	api := newTestAPI(t, "httpunscoped", policy, 0)
	alice := api.loginFresh("alice")
	bob := api.loginFresh("bob")

	rr := api.do(http.MethodPost, "/cards/create",
		map[string]string{"title": "A", "description": "D", "status": "todo", "priority": "low"},
		map[string]string{auth.HeaderToken: alice})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = api.do(http.MethodPost, "/cards/update",
		map[string]any{"id": "1", "title": "B", "description": "D", "status": "todo", "priority": "low"},
		map[string]string{auth.HeaderToken: bob})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "B", api.listCards(alice)[0].Title)

	// Id-only matching answers 201 for an id that matches nothing.
	rr = api.do(http.MethodPost, "/cards/update",
		map[string]any{"id": 42, "title": "B", "description": "D", "status": "todo", "priority": "low"},
		map[string]string{auth.HeaderToken: bob})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"cardId":42}`, rr.Body.String())
}

func TestFormEncodedBody(t *testing.T) {
	api := newTestAPI(t, "httpform", nil, 0)
	form := url.Values{"username": {"frank"}, "email": {"f@x.com"}, "password": {"pw"}}
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(auth.HeaderAPIKey, testAPIKey)
	rr := httptest.NewRecorder()
	api.h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	api.login("frank", "pw")
}

func TestIndexAndRequestID(t *testing.T) {
	api := newTestAPI(t, "httpindex", nil, 0)
	rr := api.do(http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, Greeting, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get(HeaderRequestID))

	const id = "6f1c3f9e-5a1b-4c55-9c47-0d6c2f1f7e11"
	rr = api.do(http.MethodGet, "/", nil, map[string]string{HeaderRequestID: id})
	assert.Equal(t, id, rr.Header().Get(HeaderRequestID))

	rr = api.do(http.MethodGet, "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLoginRateLimit(t *testing.T) {
	api := newTestAPI(t, "httpratelimit", nil, 0.001)
	body := map[string]string{"username": "nobody", "password": "x"}
	for i := 0; i < 2; i++ {
		rr := api.do(http.MethodPost, "/login", body, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	}
	rr := api.do(http.MethodPost, "/login", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestStartHTTP_Shutdown(t *testing.T) {
	api := newTestAPI(t, "httpstart", nil, 0)
	shutdown, addr, err := StartHTTP("127.0.0.1:0", api.h, testutil.DiscardLogger())
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, shutdown(ctx))
}
