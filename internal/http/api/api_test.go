package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"gorm.io/gorm"

	"github.com/tiker-app/tiker/internal/config"
	"github.com/tiker-app/tiker/internal/db"
	"github.com/tiker-app/tiker/internal/economy"
	internalsettings "github.com/tiker-app/tiker/internal/settings"
	"github.com/tiker-app/tiker/internal/writegate"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := "file:" + filepath.Join(t.TempDir(), "api-test.db")
	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		t.Fatalf("open test db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate test db: %v", errMigrate)
	}
	if errRefresh := internalsettings.Refresh(conn); errRefresh != nil {
		t.Fatalf("refresh settings: %v", errRefresh)
	}

	jwtCfg := config.JWTConfig{Secret: "api-test-secret", Expiry: time.Hour}
	service := economy.NewService(conn, nil, nil)
	gate := writegate.New(conn, nil, jwtCfg.Secret, nil)

	engine := gin.New()
	RegisterRoutes(engine, Deps{
		DB:      conn,
		Service: service,
		Gate:    gate,
		JWT:     jwtCfg,
	})
	return engine, conn
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal body: %v", errMarshal)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	out := map[string]any{}
	if len(rec.Body.Bytes()) > 0 {
		if errDecode := json.Unmarshal(rec.Body.Bytes(), &out); errDecode != nil {
			t.Fatalf("%s %s: decode response %q: %v", method, path, rec.Body.String(), errDecode)
		}
	}
	return rec, out
}

func TestHealthz(t *testing.T) {
	engine, _ := newTestRouter(t)
	rec, body := doJSON(t, engine, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d, want 200: %v", rec.Code, body)
	}
}

func TestSignupLoginSubmitFlow(t *testing.T) {
	engine, _ := newTestRouter(t)

	rec, _ := doJSON(t, engine, http.MethodPost, "/v0/auth/signup", gin.H{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "correct-horse",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	rec, login := doJSON(t, engine, http.MethodPost, "/v0/auth/login", gin.H{
		"username": "alice",
		"password": "correct-horse",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	token, _ := login["token"].(string)
	if token == "" {
		t.Fatalf("login response missing token: %v", login)
	}
	session := map[string]string{"Authorization": "Bearer " + token}

	rec, _ = doJSON(t, engine, http.MethodGet, "/v0/me", nil, session)
	if rec.Code != http.StatusOK {
		t.Fatalf("me = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	// Bronze accounts browse but do not submit; identity verification
	// unlocks Silver.
	rec, verified := doJSON(t, engine, http.MethodPost, "/v0/auth/verify-oauth", gin.H{
		"provider": "github",
		"subject":  "gh-1",
	}, session)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify-oauth = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	// Signup bonus tripled while the network bootstraps.
	if granted, _ := verified["tokens_granted"].(float64); granted != 150 {
		t.Fatalf("tokens_granted = %v, want 150", verified["tokens_granted"])
	}

	submitBody := gin.H{
		"title":          "Circuit Breaker Prompts",
		"category":       "coordination",
		"problem":        "Agents retry failing tools forever.",
		"solution":       "Trip a breaker after repeated failures.",
		"implementation": "Track failures per tool and stop after three.",
	}

	// A session alone is not enough for writes.
	rec, _ = doJSON(t, engine, http.MethodPost, "/v0/patterns", submitBody, session)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("submit without grant = %d, want 403: %s", rec.Code, rec.Body.String())
	}

	rec, enrollment := doJSON(t, engine, http.MethodPost, "/v0/write-access/enroll", nil, session)
	if rec.Code != http.StatusCreated {
		t.Fatalf("enroll = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	secret, _ := enrollment["secret"].(string)
	if secret == "" {
		t.Fatalf("enrollment missing secret: %v", enrollment)
	}

	code, errCode := totp.GenerateCode(secret, time.Now().UTC())
	if errCode != nil {
		t.Fatalf("generate code: %v", errCode)
	}
	rec, grant := doJSON(t, engine, http.MethodPost, "/v0/write-access/verify", gin.H{"code": code}, session)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	writeToken, _ := grant["write_token"].(string)
	if writeToken == "" {
		t.Fatalf("verify response missing write_token: %v", grant)
	}

	write := map[string]string{
		"Authorization": "Bearer " + token,
		"X-Write-Token": writeToken,
	}
	rec, pattern := doJSON(t, engine, http.MethodPost, "/v0/patterns", submitBody, write)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if slug, _ := pattern["slug"].(string); slug != "circuit-breaker-prompts" {
		t.Fatalf("slug = %v, want circuit-breaker-prompts", pattern["slug"])
	}
	// Fresh network has no trusted reviewers, so submissions validate
	// immediately.
	if status, _ := pattern["status"].(string); status != "validated" {
		t.Fatalf("status = %v, want validated", pattern["status"])
	}

	// The validated pattern shows up for anonymous browsing.
	rec, listing := doJSON(t, engine, http.MethodGet, "/v0/patterns", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if total, _ := listing["total"].(float64); total != 1 {
		t.Fatalf("total = %v, want 1", listing["total"])
	}

	rec, _ = doJSON(t, engine, http.MethodGet, "/v0/patterns/circuit-breaker-prompts", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get by slug = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	// Normal accounts never reach the admin surface.
	rec, _ = doJSON(t, engine, http.MethodGet, "/v0/admin/settings", nil, session)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("admin settings as normal account = %d, want 403: %s", rec.Code, rec.Body.String())
	}
}

func TestWriteGateSeparatesSetupFromGrant(t *testing.T) {
	engine, _ := newTestRouter(t)

	rec, _ := doJSON(t, engine, http.MethodPost, "/v0/auth/signup", gin.H{
		"username": "carol",
		"email":    "carol@example.com",
		"password": "correct-horse",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	rec, login := doJSON(t, engine, http.MethodPost, "/v0/auth/login", gin.H{
		"username": "carol",
		"password": "correct-horse",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	token, _ := login["token"].(string)
	session := map[string]string{"Authorization": "Bearer " + token}

	// Before enrollment the write surface must ask for two-factor setup,
	// not for a grant the account cannot have yet.
	rec, body := doJSON(t, engine, http.MethodPost, "/v0/patterns", gin.H{}, session)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("write before enrollment = %d, want 403: %s", rec.Code, rec.Body.String())
	}
	if msg, _ := body["error"].(string); msg != "two-factor setup required" {
		t.Fatalf("error = %q, want two-factor setup required", msg)
	}

	rec, _ = doJSON(t, engine, http.MethodPost, "/v0/write-access/enroll", nil, session)
	if rec.Code != http.StatusCreated {
		t.Fatalf("enroll = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	// Enrolled but unverified: now the missing piece is the grant.
	rec, body = doJSON(t, engine, http.MethodPost, "/v0/patterns", gin.H{}, session)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("write after enrollment = %d, want 403: %s", rec.Code, rec.Body.String())
	}
	if msg, _ := body["error"].(string); msg != "write access grant required" {
		t.Fatalf("error = %q, want write access grant required", msg)
	}
}

func TestUnclaimedAgentSubmitIsTrustError(t *testing.T) {
	engine, _ := newTestRouter(t)

	rec, registered := doJSON(t, engine, http.MethodPost, "/v0/agents", gin.H{
		"name": "drifter",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register agent = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	apiKey, _ := registered["api_key"].(string)
	if apiKey == "" {
		t.Fatalf("registration missing api_key: %v", registered)
	}

	// The key authenticates, so the rejection is about trust tier, not
	// credentials.
	rec, body := doJSON(t, engine, http.MethodPost, "/v0/agent/patterns", gin.H{
		"title":          "Unvetted Trick",
		"category":       "coordination",
		"problem":        "p",
		"solution":       "s",
		"implementation": "i",
	}, map[string]string{"X-API-Key": apiKey})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unclaimed agent submit = %d, want 403: %s", rec.Code, rec.Body.String())
	}
	if action, _ := body["action"].(string); action != "submit_pattern" {
		t.Fatalf("action = %q, want submit_pattern: %v", action, body)
	}
}

func TestSessionRequired(t *testing.T) {
	engine, _ := newTestRouter(t)

	rec, _ := doJSON(t, engine, http.MethodGet, "/v0/me", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("me without session = %d, want 401", rec.Code)
	}
	rec, _ = doJSON(t, engine, http.MethodGet, "/v0/me", nil, map[string]string{"Authorization": "Bearer garbage"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("me with bad token = %d, want 401", rec.Code)
	}
}

func TestAgentKeyRequired(t *testing.T) {
	engine, _ := newTestRouter(t)

	rec, _ := doJSON(t, engine, http.MethodPost, "/v0/agent/patterns", gin.H{}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("agent submit without key = %d, want 401", rec.Code)
	}
	rec, _ = doJSON(t, engine, http.MethodPost, "/v0/agent/patterns", gin.H{}, map[string]string{"X-API-Key": "tk-bogus"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("agent submit with bad key = %d, want 401", rec.Code)
	}
}
