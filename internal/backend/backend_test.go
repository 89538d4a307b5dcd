package backend

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kidnector/internal/models"
)

const testAnonKey = "anon-key"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, testAnonKey)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func tokenResponse(access, refresh string, expiresIn int) map[string]any {
	return map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
		"expires_in":    expiresIn,
		"user":          map[string]any{"id": "11111111-1111-1111-1111-111111111111", "email": "parent@example.com"},
	}
}

func signedToken(t *testing.T, sub, email string, exp time.Time) string {
	t.Helper()
	claims := AccessClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return tok
}

func TestNewRequiresConfig(t *testing.T) {
	tests := []struct {
		name string
		url  string
		key  string
	}{
		{"missing url", "", "key"},
		{"missing key", "https://example.supabase.co", ""},
		{"no scheme", "example.supabase.co", "key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.url, tt.key)
			assert.Error(t, err)
		})
	}
}

func TestAnonymousRequestUsesAnonKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testAnonKey, r.Header.Get("apikey"))
		assert.Equal(t, "Bearer "+testAnonKey, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, []any{})
	})

	var rows []models.Affirmation
	require.NoError(t, c.From("affirmations").Execute(t.Context(), &rows))
	assert.Empty(t, rows)
}

func TestSignInAuthorizesLaterRequests(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/token":
			assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
			var body credentials
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "parent@example.com", body.Email)
			writeJSON(w, http.StatusOK, tokenResponse("access-1", "refresh-1", 3600))
		case "/rest/v1/families":
			assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
			assert.Equal(t, testAnonKey, r.Header.Get("apikey"))
			assert.Equal(t, singleObjectMediaType, r.Header.Get("Accept"))
			assert.Equal(t, "eq.fam-1", r.URL.Query().Get("id"))
			writeJSON(w, http.StatusOK, map[string]any{"id": "fam-1", "parent_name": "Sam"})
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	})

	events := make(chan models.AuthEvent, 4)
	c.Auth().Notify(events)

	session, err := c.Auth().SignInWithPassword(t.Context(), "parent@example.com", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "access-1", session.AccessToken)

	ev := <-events
	assert.Equal(t, models.AuthSignedIn, ev.Type)
	require.NotNil(t, ev.Session)

	var fam models.Family
	require.NoError(t, c.From("families").Select("*").Eq("id", "fam-1").Single().Execute(t.Context(), &fam))
	assert.Equal(t, "Sam", fam.ParentName)

	uid, err := c.Auth().UserID()
	require.NoError(t, err)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", uid)
}

func TestExpiredTokenIsRefreshed(t *testing.T) {
	var mu sync.Mutex
	refreshes := 0

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/auth/v1/token" && r.URL.Query().Get("grant_type") == "password":
			// expires inside the refresh margin of the token source
			writeJSON(w, http.StatusOK, tokenResponse("access-1", "refresh-1", 1))
		case r.URL.Path == "/auth/v1/token" && r.URL.Query().Get("grant_type") == "refresh_token":
			mu.Lock()
			refreshes++
			mu.Unlock()
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "refresh-1", body["refresh_token"])
			writeJSON(w, http.StatusOK, tokenResponse("access-2", "refresh-2", 3600))
		case r.URL.Path == "/rest/v1/children":
			assert.Equal(t, "Bearer access-2", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, []any{})
		default:
			t.Errorf("unexpected request %s", r.URL.String())
		}
	})

	events := make(chan models.AuthEvent, 4)
	c.Auth().Notify(events)

	_, err := c.Auth().SignInWithPassword(t.Context(), "parent@example.com", "abc123")
	require.NoError(t, err)

	var rows []models.Child
	require.NoError(t, c.From("children").Execute(t.Context(), &rows))

	assert.Equal(t, models.AuthSignedIn, (<-events).Type)
	refreshed := <-events
	assert.Equal(t, models.AuthTokenRefreshed, refreshed.Type)
	assert.Equal(t, "refresh-2", refreshed.Session.RefreshToken)
	assert.Equal(t, "access-2", c.Auth().Session().AccessToken)

	mu.Lock()
	assert.Equal(t, 1, refreshes)
	mu.Unlock()
}

func TestSignOutDuringRefreshKeepsSessionCleared(t *testing.T) {
	refreshing := make(chan struct{})
	release := make(chan struct{})

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/auth/v1/token" && r.URL.Query().Get("grant_type") == "password":
			writeJSON(w, http.StatusOK, tokenResponse("access-1", "refresh-1", 1))
		case r.URL.Path == "/auth/v1/token" && r.URL.Query().Get("grant_type") == "refresh_token":
			close(refreshing)
			<-release
			writeJSON(w, http.StatusOK, tokenResponse("access-2", "refresh-2", 3600))
		case r.URL.Path == "/auth/v1/logout":
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s", r.URL.String())
			writeJSON(w, http.StatusOK, []any{})
		}
	})

	_, err := c.Auth().SignInWithPassword(t.Context(), "parent@example.com", "abc123")
	require.NoError(t, err)

	events := make(chan models.AuthEvent, 4)
	c.Auth().Notify(events)

	done := make(chan error, 1)
	go func() {
		var rows []models.Child
		done <- c.From("children").Execute(t.Context(), &rows)
	}()

	<-refreshing
	require.NoError(t, c.Auth().SignOut(t.Context()))
	close(release)

	assert.ErrorIs(t, <-done, ErrNotAuthenticated)
	assert.Nil(t, c.Auth().Session())
	_, err = c.Auth().UserID()
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	assert.Equal(t, models.AuthSignedOut, (<-events).Type)
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %v after sign-out", ev.Type)
	default:
	}
}

func TestRefreshSessionAfterSignOutIsDiscarded(t *testing.T) {
	refreshing := make(chan struct{})
	release := make(chan struct{})

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/auth/v1/token" && r.URL.Query().Get("grant_type") == "password":
			writeJSON(w, http.StatusOK, tokenResponse("access-1", "refresh-1", 3600))
		case r.URL.Path == "/auth/v1/token" && r.URL.Query().Get("grant_type") == "refresh_token":
			close(refreshing)
			<-release
			writeJSON(w, http.StatusOK, tokenResponse("access-2", "refresh-2", 3600))
		case r.URL.Path == "/auth/v1/logout":
			w.WriteHeader(http.StatusNoContent)
		}
	})

	_, err := c.Auth().SignInWithPassword(t.Context(), "parent@example.com", "abc123")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := c.Auth().RefreshSession(t.Context())
		done <- err
	}()

	<-refreshing
	require.NoError(t, c.Auth().SignOut(t.Context()))
	close(release)

	assert.ErrorIs(t, <-done, ErrNotAuthenticated)
	assert.Nil(t, c.Auth().Session())
}

func TestClockOffsetDoesNotForceRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/auth/v1/token" && r.URL.Query().Get("grant_type") == "password":
			writeJSON(w, http.StatusOK, tokenResponse("access-1", "refresh-1", 3600))
		case r.URL.Path == "/rest/v1/children":
			assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, []any{})
		default:
			t.Errorf("unexpected request %s", r.URL.String())
		}
	}))
	t.Cleanup(srv.Close)

	// the client clock runs two hours behind the wall clock
	c, err := New(srv.URL, testAnonKey, WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }))
	require.NoError(t, err)

	_, err = c.Auth().SignInWithPassword(t.Context(), "parent@example.com", "abc123")
	require.NoError(t, err)

	session, err := c.Auth().GetSession(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "access-1", session.AccessToken)

	var rows []models.Child
	require.NoError(t, c.From("children").Execute(t.Context(), &rows))
}

func TestSignOutForgetsSessionEvenWhenRevoked(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/token":
			writeJSON(w, http.StatusOK, tokenResponse("access-1", "refresh-1", 3600))
		case "/auth/v1/logout":
			assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusUnauthorized, map[string]any{"msg": "invalid JWT"})
		}
	})

	_, err := c.Auth().SignInWithPassword(t.Context(), "parent@example.com", "abc123")
	require.NoError(t, err)

	events := make(chan models.AuthEvent, 1)
	c.Auth().Notify(events)

	require.NoError(t, c.Auth().SignOut(t.Context()))
	assert.Nil(t, c.Auth().Session())

	ev := <-events
	assert.Equal(t, models.AuthSignedOut, ev.Type)
	assert.Nil(t, ev.Session)

	_, err = c.Auth().UserID()
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestSignUpWithoutSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/signup", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"id": "user-1", "email": "parent@example.com"})
	})

	res, err := c.Auth().SignUp(t.Context(), "parent@example.com", "abc123")
	require.NoError(t, err)
	assert.Nil(t, res.Session)
	require.NotNil(t, res.User)
	assert.Equal(t, "user-1", res.User.ID)
	assert.Nil(t, c.Auth().Session())
}

func TestSignUpSessionWithoutUserUsesClaims(t *testing.T) {
	token := signedToken(t, "user-9", "parent@example.com", time.Now().Add(time.Hour))
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  token,
			"refresh_token": "refresh-1",
			"expires_in":    3600,
		})
	})

	res, err := c.Auth().SignUp(t.Context(), "parent@example.com", "abc123")
	require.NoError(t, err)
	require.NotNil(t, res.User)
	assert.Equal(t, "user-9", res.User.ID)
	assert.Equal(t, "parent@example.com", res.User.Email)
	require.NotNil(t, res.Session)

	uid, err := c.Auth().UserID()
	require.NoError(t, err)
	assert.Equal(t, "user-9", uid)
}

func TestSignUpSessionWithBadToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "opaque", "expires_in": 3600})
	})

	_, err := c.Auth().SignUp(t.Context(), "parent@example.com", "abc123")
	assert.ErrorContains(t, err, "no user returned")
	assert.Nil(t, c.Auth().Session())
}

func TestSignInErrorIsDecoded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":             "invalid_grant",
			"error_description": "Invalid login credentials",
		})
	})

	_, err := c.Auth().SignInWithPassword(t.Context(), "parent@example.com", "wrong1")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "invalid_grant", apiErr.Code)
	assert.Equal(t, "Invalid login credentials", apiErr.Message)
}

func TestSetSessionFillsUserFromClaims(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signedToken(t, "user-7", "p@example.com", exp)

	events := make(chan models.AuthEvent, 1)
	c.Auth().Notify(events)

	require.NoError(t, c.Auth().SetSession(&models.Session{AccessToken: token, RefreshToken: "r"}))

	ev := <-events
	assert.Equal(t, models.AuthInitialSession, ev.Type)
	require.NotNil(t, ev.Session.User)
	assert.Equal(t, "user-7", ev.Session.User.ID)
	assert.Equal(t, "p@example.com", ev.Session.User.Email)
	assert.True(t, exp.Equal(ev.Session.ExpiresAt))

	assert.ErrorIs(t, c.Auth().SetSession(nil), ErrNotAuthenticated)
}

func TestFullListenerDropsEvent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	token := signedToken(t, "user-7", "p@example.com", time.Now().Add(time.Hour))

	events := make(chan models.AuthEvent)
	c.Auth().Notify(events)
	require.NoError(t, c.Auth().SetSession(&models.Session{AccessToken: token}))

	c.Auth().Stop(events)
	require.NoError(t, c.Auth().SignOut(t.Context()))

	select {
	case ev := <-events:
		t.Fatalf("unexpected event %v", ev.Type)
	default:
	}
}

func TestSingleWithNoRows(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotAcceptable, map[string]any{
			"code":    "PGRST116",
			"message": "JSON object requested, multiple (or no) rows returned",
			"details": "The result contains 0 rows",
		})
	})

	var c1 models.Completion
	err := c.From("completions").Eq("child_id", "c").Single().Execute(t.Context(), &c1)
	require.Error(t, err)
	assert.True(t, IsNoRows(err))
	assert.True(t, IsStatus(err, http.StatusNotAcceptable))
}

func TestMaybeSingle(t *testing.T) {
	var mu sync.Mutex
	rows := []any{}
	setRows := func(v []any) {
		mu.Lock()
		rows = v
		mu.Unlock()
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		writeJSON(w, http.StatusOK, rows)
	})

	var got *models.Completion
	require.NoError(t, c.From("completions").MaybeSingle().Execute(t.Context(), &got))
	assert.Nil(t, got)

	setRows([]any{map[string]any{"id": "x", "status": "pending"}})
	require.NoError(t, c.From("completions").MaybeSingle().Execute(t.Context(), &got))
	require.NotNil(t, got)
	assert.Equal(t, models.StatusPending, got.Status)

	setRows([]any{map[string]any{"id": "x"}, map[string]any{"id": "y"}})
	assert.Error(t, c.From("completions").MaybeSingle().Execute(t.Context(), &got))
}

func TestQueryEncoding(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "*,children(name,avatar)", q.Get("select"))
		assert.Equal(t, "eq.fam-1", q.Get("family_id"))
		assert.Equal(t, "in.(pending,redo_requested)", q.Get("status"))
		assert.Equal(t, []string{"gte.2026-03-04", "lte.2026-03-10"}, q["completion_date"])
		assert.Equal(t, "submitted_at.desc,id.asc", q.Get("order"))
		assert.Equal(t, "5", q.Get("limit"))
		writeJSON(w, http.StatusOK, []any{})
	})

	err := c.From("completions").
		Select("*, children(name, avatar)").
		Eq("family_id", "fam-1").
		In("status", "pending", "redo_requested").
		Gte("completion_date", "2026-03-04").
		Lte("completion_date", "2026-03-10").
		Order("submitted_at", false).
		Order("id", true).
		Limit(5).
		Execute(t.Context(), &[]models.Completion{})
	require.NoError(t, err)
}

func TestWritesSetPreferHeader(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "resolution=merge-duplicates,return=minimal", r.Header.Get("Prefer"))
			assert.Equal(t, "expo_push_token", r.URL.Query().Get("on_conflict"))
			w.WriteHeader(http.StatusCreated)
		case http.MethodPatch:
			assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"status":"approved"}`, string(body))
			writeJSON(w, http.StatusOK, []any{map[string]any{"id": "c1", "status": "approved"}})
		}
	})

	require.NoError(t, c.From("push_tokens").
		Upsert(map[string]any{"expo_push_token": "tok"}, "expo_push_token").
		Execute(t.Context(), nil))

	var updated []models.Completion
	require.NoError(t, c.From("completions").
		Update(map[string]string{"status": "approved"}).
		Eq("id", "c1").
		Execute(t.Context(), &updated))
	require.Len(t, updated, 1)
	assert.Equal(t, models.StatusApproved, updated[0].Status)
}

func TestRPC(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/rpc/get_daily_affirmation", r.URL.Path)
		var args map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&args))
		assert.Equal(t, "child-1", args["p_child_id"])
		writeJSON(w, http.StatusOK, []any{map[string]any{"id": "a1", "text": "I am brave", "category": "courage"}})
	})

	var rows []models.DailyAffirmation
	require.NoError(t, c.RPC(t.Context(), "get_daily_affirmation", map[string]string{"p_child_id": "child-1"}, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "I am brave", rows[0].Text)
}

func TestUpload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/storage/v1/object/recordings/fam/child/2026-03-10.m4a", r.URL.Path)
		assert.Equal(t, "true", r.Header.Get("x-upsert"))
		assert.Equal(t, "audio/m4a", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "audio-bytes", string(body))
		writeJSON(w, http.StatusOK, map[string]any{"Key": "recordings/fam/child/2026-03-10.m4a"})
	})

	path, err := c.Storage("recordings").Upload(t.Context(), "fam/child/2026-03-10.m4a",
		strings.NewReader("audio-bytes"), "audio/m4a", true)
	require.NoError(t, err)
	assert.Equal(t, "fam/child/2026-03-10.m4a", path)

	_, err = c.Storage("recordings").Upload(t.Context(), "", strings.NewReader(""), "", false)
	assert.Error(t, err)
}

func TestUploadReturnsReportedKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{"bucket prefix trimmed", "recordings/fam/child/renamed.m4a", "fam/child/renamed.m4a"},
		{"no key reported", "", "fam/child/2026-03-10.m4a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"Key": tt.key})
			})

			path, err := c.Storage("recordings").Upload(t.Context(), "/fam/child/2026-03-10.m4a",
				strings.NewReader("audio-bytes"), "audio/m4a", true)
			require.NoError(t, err)
			assert.Equal(t, tt.want, path)
		})
	}
}

func TestParseAccessToken(t *testing.T) {
	token := signedToken(t, "user-1", "a@b.co", time.Now().Add(time.Hour))
	claims, err := ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "a@b.co", claims.Email)

	_, err = ParseAccessToken("not-a-token")
	assert.Error(t, err)
}
