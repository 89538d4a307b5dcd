package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kidnector/internal/backend"
	"kidnector/internal/models"
	"kidnector/internal/repository"
)

const (
	familyID     = "0b8e2a4e-5f0c-4c55-9d1a-4a3c2b1a0f01"
	otherFamily  = "1c9f3b5f-6a1d-4d66-8e2b-5b4d3c2b1a02"
	childID      = "6f3c7c8a-1b2d-4e5f-8a9b-0c1d2e3f4a5b"
	completionID = "9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d"
)

// fixedNow is the clock used by every service under test
var fixedNow = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func newClient(t *testing.T, handler http.HandlerFunc) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := backend.New(srv.URL, "anon")
	require.NoError(t, err)
	return c
}

// signIn installs a session for familyID without going through the auth API
func signIn(t *testing.T, c *backend.Client) {
	t.Helper()
	require.NoError(t, c.Auth().SetSession(&models.Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "bearer",
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         &models.User{ID: familyID, Email: "parent@example.com"},
	}))
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// rows answers a table read the way the backend does: an object for a
// single-row request, an array otherwise
func rows(w http.ResponseWriter, r *http.Request, items ...map[string]any) {
	if r.Header.Get("Accept") == "application/vnd.pgrst.object+json" {
		if len(items) == 0 {
			respond(w, http.StatusNotAcceptable, map[string]any{"code": backend.CodeNoRows, "message": "no rows"})
			return
		}
		respond(w, http.StatusOK, items[0])
		return
	}
	if items == nil {
		items = []map[string]any{}
	}
	respond(w, http.StatusOK, items)
}

func decodeBody(t *testing.T, r *http.Request, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(r.Body).Decode(v))
}

func childRow(minutes int) map[string]any {
	return map[string]any{
		"id":                        childID,
		"family_id":                 familyID,
		"name":                      "Ava",
		"age":                       7,
		"avatar":                    "🦄",
		"daily_screen_time_minutes": minutes,
	}
}

type services struct {
	auth       *AuthService
	family     *FamilyService
	completion *CompletionService
}

func newServices(t *testing.T, c *backend.Client) services {
	t.Helper()
	logger := zap.NewNop()

	familyRepo := repository.NewFamilyRepository(c)
	childRepo := repository.NewChildRepository(c)
	email := &EmailService{logger: logger}

	auth := NewAuthService(c, familyRepo, nil, email, logger)
	auth.now = func() time.Time { return fixedNow }

	family := NewFamilyService(c, familyRepo, childRepo,
		repository.NewCustomAffirmationRepository(c),
		repository.NewPushTokenRepository(c), logger)
	family.now = func() time.Time { return fixedNow }

	completion := NewCompletionService(c, childRepo, familyRepo,
		repository.NewAffirmationRepository(c),
		repository.NewCompletionRepository(c), email, "recordings", logger)
	completion.now = func() time.Time { return fixedNow }

	return services{auth: auth, family: family, completion: completion}
}
