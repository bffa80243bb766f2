package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"budgetapi/internal/ledger"
	"budgetapi/internal/logger"
	"budgetapi/internal/middleware"
	"budgetapi/internal/notify"
	"budgetapi/internal/testutil"
	"budgetapi/internal/validator"
)

const testAPIKey = "sweep-key"

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// sentMail is one message accepted by recordingMailer.
type sentMail struct {
	To, Subject, Body string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *recordingMailer) Sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

// testClock is a settable clock shared by the services and the sweeper.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// testApp holds the full application stack for end-to-end tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
	Mailer *recordingMailer
	Clock  *testClock
}

func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	mailer := &recordingMailer{}
	clock := &testClock{now: time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)}

	router := NewRouter(Deps{
		DB:             db,
		Tokens:         middleware.NewTokenManager("integration-secret", time.Hour),
		Dispatcher:     notify.NewRouter(db, mailer),
		Locks:          ledger.NewUserLocks(),
		InternalAPIKey: testAPIKey,
		Now:            clock.Now,
	})

	return &testApp{DB: db, Router: router, Mailer: mailer, Clock: clock}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// sweep triggers the internal sweep endpoint.
func (app *testApp) sweep(t *testing.T) map[string]interface{} {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/internal/sweep", http.NoBody)
	req.Header.Set(middleware.APIKeyHeader, testAPIKey)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("sweep failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := parseJSON(t, rec)["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object, got %s", rec.Body.String())
	}
	return errObj["code"].(string)
}

// signUp registers a user and returns an access token.
func (app *testApp) signUp(t *testing.T, username, email string) string {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"password":"password123"}`, username)
	if email != "" {
		body = fmt.Sprintf(`{"username":%q,"password":"password123","email":%q}`, username, email)
	}
	rec := app.request("POST", "/api/v1/auth/sign-up", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("sign-up failed: %d %s", rec.Code, rec.Body.String())
	}
	return app.login(t, username, "password123")
}

// login exchanges credentials for an access token.
func (app *testApp) login(t *testing.T, username, password string) string {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"password":%q}`, username, password)
	rec := app.request("POST", "/api/v1/auth/token", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("token failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["access_token"].(string)
}

// createCategory creates a category and returns its id.
func (app *testApp) createCategory(t *testing.T, token, name string) uint {
	t.Helper()
	rec := app.request("POST", "/api/v1/categories", fmt.Sprintf(`{"name":%q}`, name), token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category failed: %d %s", rec.Code, rec.Body.String())
	}
	cat := parseJSON(t, rec)["category"].(map[string]interface{})
	return uint(cat["id"].(float64))
}

// createTransaction posts a transaction and returns the decoded transaction.
func (app *testApp) createTransaction(t *testing.T, token, body string) map[string]interface{} {
	t.Helper()
	rec := app.request("POST", "/api/v1/transactions", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create transaction failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["transaction"].(map[string]interface{})
}

// balance reads the balance from the profile endpoint.
func (app *testApp) balance(t *testing.T, token string) string {
	t.Helper()
	rec := app.request("GET", "/api/v1/profile", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["user"].(map[string]interface{})["balance"].(string)
}
