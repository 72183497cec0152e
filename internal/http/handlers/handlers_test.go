package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/coursehub/internal/accounts"
	"github.com/geocoder89/coursehub/internal/actorctx"
	"github.com/geocoder89/coursehub/internal/apperr"
	"github.com/geocoder89/coursehub/internal/cache"
	"github.com/geocoder89/coursehub/internal/domain/company"
	"github.com/geocoder89/coursehub/internal/domain/course"
	"github.com/geocoder89/coursehub/internal/domain/job"
	"github.com/geocoder89/coursehub/internal/domain/user"
	"github.com/geocoder89/coursehub/internal/http/handlers"
	"github.com/geocoder89/coursehub/internal/http/middlewares"
	"github.com/geocoder89/coursehub/internal/utils"
	"github.com/geocoder89/coursehub/internal/validation"
)

const (
	companyA = "0b8e6a52-7f7c-4d8e-a0a4-0a3c9e0d1a01"
	companyB = "0b8e6a52-7f7c-4d8e-a0a4-0a3c9e0d1a02"
	jobID    = "5d1c1f0e-2b1a-4c59-9d8e-7b6a5c4d3e2f"
)

type fakeAccounts struct {
	signUpFn  func(ctx context.Context, in validation.SignUpInput) (user.User, error)
	loginFn   func(ctx context.Context, in validation.LoginInput) (accounts.Session, error)
	refreshFn func(ctx context.Context, raw string) (accounts.Session, error)
	logoutFn  func(ctx context.Context, raw string) error
	lookupFn  func(ctx context.Context, actor actorctx.Actor, in validation.LookupInput) (user.User, error)
}

func (f *fakeAccounts) SignUp(ctx context.Context, in validation.SignUpInput) (user.User, error) {
	return f.signUpFn(ctx, in)
}

func (f *fakeAccounts) Login(ctx context.Context, in validation.LoginInput) (accounts.Session, error) {
	return f.loginFn(ctx, in)
}

func (f *fakeAccounts) Refresh(ctx context.Context, raw string) (accounts.Session, error) {
	return f.refreshFn(ctx, raw)
}

func (f *fakeAccounts) Logout(ctx context.Context, raw string) error {
	if f.logoutFn == nil {
		return nil
	}
	return f.logoutFn(ctx, raw)
}

func (f *fakeAccounts) Lookup(ctx context.Context, actor actorctx.Actor, in validation.LookupInput) (user.User, error) {
	return f.lookupFn(ctx, actor, in)
}

func (f *fakeAccounts) Me(ctx context.Context, actor actorctx.Actor) (user.User, error) {
	return f.lookupFn(ctx, actor, validation.LookupInput{UserID: actor.UserID})
}

// withActor stands in for RequireAuth.
func withActor(a actorctx.Actor) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set(middlewares.CtxActor, a)
		ctx.Next()
	}
}

func doJSON(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) handlers.APIError {
	t.Helper()
	var body handlers.APIError
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v body=%s", err, w.Body.String())
	}
	return body
}

func TestSignUp_StatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"created", nil, http.StatusCreated, ""},
		{"duplicate", apperr.New(apperr.DuplicateUser, "User already exists"), http.StatusConflict, "user_exists"},
		{"invalid", apperr.Invalid([]apperr.FieldError{{Field: "password", Rule: "min"}}), http.StatusBadRequest, "validation_error"},
		{"store down", apperr.Wrap(apperr.Persistence, "Could not create user", errors.New("conn refused")), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeAccounts{
				signUpFn: func(_ context.Context, in validation.SignUpInput) (user.User, error) {
					if tc.err != nil {
						return user.User{}, tc.err
					}
					return user.New(user.NewUser{FirstName: in.FirstName, LastName: in.LastName, Email: in.Email, PasswordHash: "h"}), nil
				},
			}
			h := handlers.NewAccountsHandler(svc, false)

			r := gin.New()
			r.POST("/users", h.SignUp)

			w := doJSON(r, http.MethodPost, "/users", `{"firstName":"Ann","lastName":"Lee","email":"ann@x.com","password":"secret1"}`, nil)
			if w.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d body=%s", w.Code, tc.wantCode, w.Body.String())
			}

			if tc.wantErr == "" {
				if strings.Contains(w.Body.String(), "secret1") || strings.Contains(w.Body.String(), "passwordHash") {
					t.Fatalf("response leaks credentials: %s", w.Body.String())
				}
				return
			}

			apiErr := decodeError(t, w)
			if apiErr.Code != tc.wantErr {
				t.Fatalf("code = %q, want %q", apiErr.Code, tc.wantErr)
			}
			if strings.Contains(apiErr.Error, "conn refused") {
				t.Fatalf("cause leaked to client: %q", apiErr.Error)
			}
		})
	}
}

func TestSignUp_EmptyBodyNeverReachesService(t *testing.T) {
	gin.SetMode(gin.TestMode)

	called := false
	svc := &fakeAccounts{signUpFn: func(context.Context, validation.SignUpInput) (user.User, error) {
		called = true
		return user.User{}, nil
	}}
	h := handlers.NewAccountsHandler(svc, false)

	r := gin.New()
	r.POST("/users", h.SignUp)

	w := doJSON(r, http.MethodPost, "/users", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if called {
		t.Fatal("service must not be called for an empty body")
	}
}

func TestLogin_SetsRefreshCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := &fakeAccounts{loginFn: func(context.Context, validation.LoginInput) (accounts.Session, error) {
		return accounts.Session{
			AccessToken:      "access-1",
			RefreshToken:     "refresh-1",
			RefreshExpiresAt: time.Now().Add(time.Hour),
		}, nil
	}}
	h := handlers.NewAccountsHandler(svc, true)

	r := gin.New()
	r.POST("/auth/login", h.Login)

	w := doJSON(r, http.MethodPost, "/auth/login", `{"email":"ann@x.com","password":"secret1"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Token != "access-1" {
		t.Fatalf("token = %q err=%v", body.Token, err)
	}

	cookie := w.Header().Get("Set-Cookie")
	for _, want := range []string{"refresh_token=refresh-1", "Path=/auth", "HttpOnly", "Secure", "SameSite=Strict"} {
		if !strings.Contains(cookie, want) {
			t.Fatalf("cookie %q missing %q", cookie, want)
		}
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := &fakeAccounts{loginFn: func(context.Context, validation.LoginInput) (accounts.Session, error) {
		return accounts.Session{}, apperr.New(apperr.Unauthorized, "Email or password is incorrect.")
	}}
	h := handlers.NewAccountsHandler(svc, false)

	r := gin.New()
	r.POST("/auth/login", h.Login)

	w := doJSON(r, http.MethodPost, "/auth/login", `{"email":"ann@x.com","password":"nope"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get("Set-Cookie") != "" {
		t.Fatal("no cookie expected on failure")
	}
}

func TestRefresh_MissingCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := handlers.NewAccountsHandler(&fakeAccounts{}, false)
	r := gin.New()
	r.POST("/auth/refresh", h.Refresh)

	w := doJSON(r, http.MethodPost, "/auth/refresh", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	if decodeError(t, w).Code != "no_refresh" {
		t.Fatalf("body=%s", w.Body.String())
	}
}

func TestLogout_ClearsCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var got string
	svc := &fakeAccounts{logoutFn: func(_ context.Context, raw string) error {
		got = raw
		return nil
	}}
	h := handlers.NewAccountsHandler(svc, false)
	r := gin.New()
	r.POST("/auth/logout", h.Logout)

	w := doJSON(r, http.MethodPost, "/auth/logout", "", map[string]string{"Cookie": "refresh_token=abc"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if got != "abc" {
		t.Fatalf("service got %q", got)
	}
	if !strings.Contains(w.Header().Get("Set-Cookie"), "Max-Age=0") {
		t.Fatalf("cookie not cleared: %q", w.Header().Get("Set-Cookie"))
	}
}

func TestLookup_NotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seen actorctx.Actor
	svc := &fakeAccounts{lookupFn: func(_ context.Context, a actorctx.Actor, in validation.LookupInput) (user.User, error) {
		seen = a
		return user.User{}, apperr.New(apperr.NotFound, "User not found")
	}}
	h := handlers.NewAccountsHandler(svc, false)

	r := gin.New()
	r.POST("/users/lookup", withActor(actorctx.Actor{UserID: "u1", Roles: []string{user.RoleAdmin}}), h.Lookup)

	w := doJSON(r, http.MethodPost, "/users/lookup", `{"userId":"does-not-exist"}`, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}

	var raw map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if raw["error"] != "User not found" || raw["code"] != "not_found" {
		t.Fatalf("body = %s", w.Body.String())
	}
	if seen.UserID != "u1" {
		t.Fatalf("actor not passed through: %+v", seen)
	}
}

type fakeCatalog struct {
	levelsCalls int
	levels      []course.Option
	coursesFn   func(f course.ListFilter) ([]course.Course, error)
}

func (f *fakeCatalog) ListSubjects(context.Context) ([]course.Option, error) {
	return []course.Option{{ID: "s1", Name: "Maths"}}, nil
}

func (f *fakeCatalog) ListLevels(context.Context) ([]course.Option, error) {
	f.levelsCalls++
	return f.levels, nil
}

func (f *fakeCatalog) ListCourses(_ context.Context, filter course.ListFilter) ([]course.Course, error) {
	return f.coursesFn(filter)
}

func TestCatalogLevels_CachedWithETag(t *testing.T) {
	gin.SetMode(gin.TestMode)

	repo := &fakeCatalog{levels: []course.Option{{ID: "l1", Name: "Beginner"}}}
	h := handlers.NewCatalogHandler(repo, cache.NewMemory(time.Minute), time.Minute, time.Second, nil)

	r := gin.New()
	r.GET("/courses/levels", h.Levels)

	first := doJSON(r, http.MethodGet, "/courses/levels", "", nil)
	if first.Code != http.StatusOK {
		t.Fatalf("status = %d", first.Code)
	}
	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	second := doJSON(r, http.MethodGet, "/courses/levels", "", map[string]string{"If-None-Match": etag})
	if second.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", second.Code)
	}
	if repo.levelsCalls != 1 {
		t.Fatalf("repo hit %d times, want 1", repo.levelsCalls)
	}
}

func TestCatalogCourses_RejectsBadFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	repo := &fakeCatalog{coursesFn: func(course.ListFilter) ([]course.Course, error) {
		t.Fatal("repo must not be called")
		return nil, nil
	}}
	h := handlers.NewCatalogHandler(repo, nil, time.Minute, time.Second, nil)

	r := gin.New()
	r.GET("/courses", h.Courses)

	w := doJSON(r, http.MethodGet, "/courses?subjectId=maths", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"subjectId"`) {
		t.Fatalf("expected subjectId field error, body=%s", w.Body.String())
	}
}

type fakeCompanies struct {
	companies map[string]company.Company
	employees []company.Employee
}

func (f *fakeCompanies) GetByID(_ context.Context, id string) (company.Company, error) {
	c, ok := f.companies[id]
	if !ok {
		return company.Company{}, company.ErrNotFound
	}
	return c, nil
}

func (f *fakeCompanies) ListEmployees(context.Context, string, int, *utils.Cursor) ([]company.Employee, *string, error) {
	return f.employees, nil, nil
}

func TestCompanies_Authorization(t *testing.T) {
	gin.SetMode(gin.TestMode)

	repo := &fakeCompanies{
		companies: map[string]company.Company{companyA: {ID: companyA, Name: "Acme"}},
		employees: []company.Employee{
			company.NewEmployee(user.User{ID: "u1", FirstName: "Ann"}, company.EnrollmentStats{Enrolled: 2, Completed: 1, ProgressSum: 150}),
		},
	}
	h := handlers.NewCompaniesHandler(repo, time.Second)

	tests := []struct {
		name  string
		actor actorctx.Actor
		path  string
		want  int
	}{
		{"own company", actorctx.Actor{UserID: "b1", Roles: []string{user.RoleBusinessAdmin}, CompanyID: companyA}, "/companies/" + companyA + "/employees", http.StatusOK},
		{"other company", actorctx.Actor{UserID: "b1", Roles: []string{user.RoleBusinessAdmin}, CompanyID: companyA}, "/companies/" + companyB, http.StatusForbidden},
		{"admin missing company", actorctx.Actor{UserID: "a1", Roles: []string{user.RoleAdmin}}, "/companies/" + companyB, http.StatusNotFound},
		{"plain user", actorctx.Actor{UserID: "u1", Roles: []string{user.RoleUser}}, "/companies/" + companyA, http.StatusForbidden},
		{"anonymous", actorctx.Actor{}, "/companies/" + companyA, http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			g := r.Group("/companies", withActor(tc.actor))
			g.GET("/:id", h.Get)
			g.GET("/:id/employees", h.Employees)

			w := doJSON(r, http.MethodGet, tc.path, "", nil)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d body=%s", w.Code, tc.want, w.Body.String())
			}
			if tc.want == http.StatusOK && !strings.Contains(w.Body.String(), `"awards":"1/2"`) {
				t.Fatalf("employee awards missing: %s", w.Body.String())
			}
		})
	}
}

func TestCompanies_GetBody(t *testing.T) {
	gin.SetMode(gin.TestMode)

	logo := "https://cdn.example.com/acme.png"
	repo := &fakeCompanies{companies: map[string]company.Company{
		companyA: {ID: companyA, Name: "Acme", LogoURL: &logo, CreatedAt: time.Now(), UpdatedAt: time.Now()},
	}}
	h := handlers.NewCompaniesHandler(repo, time.Second)

	r := gin.New()
	r.GET("/companies/:id", withActor(actorctx.Actor{UserID: "a1", Roles: []string{user.RoleAdmin}}), h.Get)

	w := doJSON(r, http.MethodGet, "/companies/"+companyA, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 3 || body["id"] != companyA || body["name"] != "Acme" || body["logoUrl"] != logo {
		t.Fatalf("body = %s", w.Body.String())
	}
}

type fakeAdminJobs struct {
	retryErr error
	getFn    func(id string) (job.Job, error)
}

func (f *fakeAdminJobs) ListCursor(context.Context, *string, int, *utils.Cursor) ([]job.Job, *string, error) {
	return []job.Job{}, nil, nil
}

func (f *fakeAdminJobs) GetByID(_ context.Context, id string) (job.Job, error) {
	return f.getFn(id)
}

func (f *fakeAdminJobs) Retry(context.Context, string) error {
	return f.retryErr
}

func TestAdminJobsRetry(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		id   string
		err  error
		want int
	}{
		{"requeued", jobID, nil, http.StatusOK},
		{"not failed", jobID, job.ErrJobNotFailed, http.StatusConflict},
		{"missing", jobID, job.ErrJobNotFound, http.StatusNotFound},
		{"bad id", "nope", nil, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := handlers.NewAdminJobsHandler(&fakeAdminJobs{retryErr: tc.err})
			r := gin.New()
			r.POST("/admin/jobs/:id/retry", h.Retry)

			w := doJSON(r, http.MethodPost, "/admin/jobs/"+tc.id+"/retry", "", nil)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestAdminJobsList_RejectsUnknownStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := handlers.NewAdminJobsHandler(&fakeAdminJobs{})
	r := gin.New()
	r.GET("/admin/jobs", h.List)

	if w := doJSON(r, http.MethodGet, "/admin/jobs?status=weird", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if w := doJSON(r, http.MethodGet, "/admin/jobs?status=failed", "", nil); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

type pingFn func(ctx context.Context) error

func (f pingFn) Ping(ctx context.Context) error { return f(ctx) }

func TestReadyz(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := handlers.NewHealthHandler(map[string]handlers.Pinger{
		"db":    pingFn(func(context.Context) error { return nil }),
		"redis": pingFn(func(context.Context) error { return errors.New("dial tcp: refused") }),
		"none":  nil,
	})
	r := gin.New()
	r.GET("/readyz", h.Readyz)
	r.GET("/healthz", h.Healthz)

	w := doJSON(r, http.MethodGet, "/readyz", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "redis") || strings.Contains(w.Body.String(), `"db"`) {
		t.Fatalf("body = %s", w.Body.String())
	}

	if w := doJSON(r, http.MethodGet, "/healthz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", w.Code)
	}
}
