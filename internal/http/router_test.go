package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"github.com/geocoder89/coursehub/internal/accounts"
	"github.com/geocoder89/coursehub/internal/auth"
	"github.com/geocoder89/coursehub/internal/config"
	"github.com/geocoder89/coursehub/internal/domain/user"
	httpx "github.com/geocoder89/coursehub/internal/http"
	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/geocoder89/coursehub/internal/repo/memory"
	"github.com/geocoder89/coursehub/internal/security"
)

type testApp struct {
	router *gin.Engine
	users  *memory.UsersRepo
	jobs   *memory.JobsRepo
	tokens *auth.Manager
}

func newTestApp(t *testing.T) testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	app := testApp{
		users:  memory.NewUsersRepo(),
		jobs:   memory.NewJobsRepo(),
		tokens: auth.NewManager("router-test-secret", time.Minute, time.Hour),
	}

	svc := accounts.NewService(accounts.Deps{
		Users:        app.users,
		Sessions:     memory.NewRefreshTokensRepo(),
		Jobs:         app.jobs,
		Hasher:       security.NewPasswordHasher(bcrypt.MinCost),
		Tokens:       app.tokens,
		Log:          log,
		Prom:         prom,
		StoreTimeout: time.Second,
	})

	app.router = httpx.NewRouter(httpx.Deps{
		Log:      log,
		Cfg:      config.Config{Env: "dev", StoreTimeout: time.Second, CatalogCacheTTL: time.Minute},
		Accounts: svc,
		Tokens:   app.tokens,
		Prom:     prom,
		Gatherer: reg,
	})
	return app
}

func (a testApp) do(method, path, body, bearer string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a testApp) adminToken(t *testing.T) string {
	t.Helper()
	admin := user.New(user.NewUser{FirstName: "Root", LastName: "Admin", Email: "root@coursehub.dev", PasswordHash: "x", Roles: []string{user.RoleAdmin}})
	a.users.Put(admin)

	tok, err := a.tokens.GenerateAccessToken(auth.Subject{UserID: admin.ID, Email: admin.Email, Roles: admin.Roles})
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok
}

func TestSignupScenario(t *testing.T) {
	app := newTestApp(t)

	w := app.do(http.MethodPost, "/users", `{"firstName":"Ann","lastName":"Lee","email":"ann@x.com","password":"secret1"}`, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("signup status = %d body=%s", w.Code, w.Body.String())
	}

	var created struct {
		User user.User `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.User.ID == "" || created.User.Email != "ann@x.com" {
		t.Fatalf("user = %+v", created.User)
	}
	if len(app.jobs.All()) != 1 {
		t.Fatalf("expected one welcome job, got %d", len(app.jobs.All()))
	}

	w = app.do(http.MethodPost, "/users", `{"firstName":"Ann","lastName":"Lee","email":"ann@x.com","password":"different2"}`, "")
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d body=%s", w.Code, w.Body.String())
	}
	var dup map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &dup); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := dup["error"].(string); !ok || dup["code"] != "user_exists" {
		t.Fatalf("duplicate body = %s", w.Body.String())
	}
	if app.users.Len() != 1 {
		t.Fatalf("users = %d, want 1", app.users.Len())
	}

	w = app.do(http.MethodPost, "/auth/signup", `{"firstName":"Bo","lastName":"Ng","email":"bo@x.com","password":"12345"}`, "")
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), `"password"`) {
		t.Fatalf("short password status = %d body=%s", w.Code, w.Body.String())
	}
}

func TestLoginLookupAndRefresh(t *testing.T) {
	app := newTestApp(t)

	if w := app.do(http.MethodPost, "/users", `{"firstName":"Ann","lastName":"Lee","email":"ann@x.com","password":"secret1"}`, ""); w.Code != http.StatusCreated {
		t.Fatalf("signup status = %d", w.Code)
	}

	w := app.do(http.MethodPost, "/auth/login", `{"email":"ANN@x.com","password":"secret1"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d body=%s", w.Code, w.Body.String())
	}
	var login struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &login)
	if login.Token == "" {
		t.Fatal("missing token")
	}

	var refresh *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "refresh_token" {
			refresh = c
		}
	}
	if refresh == nil || !refresh.HttpOnly {
		t.Fatalf("refresh cookie = %+v", refresh)
	}

	if w := app.do(http.MethodGet, "/me", "", login.Token); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ann@x.com") {
		t.Fatalf("me status = %d body=%s", w.Code, w.Body.String())
	}

	// a plain user may not look up others
	if w := app.do(http.MethodPost, "/users/lookup", `{"userId":"does-not-exist"}`, login.Token); w.Code != http.StatusForbidden {
		t.Fatalf("lookup as user status = %d", w.Code)
	}

	if w := app.do(http.MethodPost, "/users/lookup", `{"userId":"does-not-exist"}`, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous lookup status = %d", w.Code)
	}

	w = app.do(http.MethodPost, "/auth/refresh", "", "", refresh)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh status = %d body=%s", w.Code, w.Body.String())
	}

	// the old token was rotated out
	if w := app.do(http.MethodPost, "/auth/refresh", "", "", refresh); w.Code != http.StatusUnauthorized {
		t.Fatalf("replayed refresh status = %d", w.Code)
	}

	if w := app.do(http.MethodPost, "/auth/logout", "", ""); w.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d", w.Code)
	}
}

func TestLookupMissingUserAsAdmin(t *testing.T) {
	app := newTestApp(t)

	w := app.do(http.MethodPost, "/users/lookup", `{"userId":"does-not-exist"}`, app.adminToken(t))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "User not found" {
		t.Fatalf("error = %v body=%s", body["error"], w.Body.String())
	}
}

func TestOptionalRoutesAndMetrics(t *testing.T) {
	app := newTestApp(t)

	// catalog and admin routes are not mounted without their stores
	if w := app.do(http.MethodGet, "/courses/levels", "", ""); w.Code != http.StatusNotFound {
		t.Fatalf("levels status = %d", w.Code)
	}

	if w := app.do(http.MethodGet, "/healthz", "", ""); w.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", w.Code)
	}

	w := app.do(http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "coursehub_http_requests_total") {
		t.Fatalf("metrics status = %d", w.Code)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("security headers missing")
	}
}
