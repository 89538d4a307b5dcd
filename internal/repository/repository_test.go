package repository

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kidnector/internal/backend"
	"kidnector/internal/database"
	"kidnector/internal/models"
	"kidnector/internal/security"
)

const (
	familyID     = "0b8e2a4e-5f0c-4c55-9d1a-4a3c2b1a0f01"
	childID      = "6f3c7c8a-1b2d-4e5f-8a9b-0c1d2e3f4a5b"
	completionID = "9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d"
)

func newClient(t *testing.T, handler http.HandlerFunc) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := backend.New(srv.URL, "anon")
	require.NoError(t, err)
	return c
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func noRows(w http.ResponseWriter) {
	respond(w, http.StatusNotAcceptable, map[string]any{"code": backend.CodeNoRows, "message": "no rows"})
}

func TestInvalidIDsNeverReachTheBackend(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	})
	ctx := t.Context()

	_, err := NewFamilyRepository(c).GetFamily(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = NewChildRepository(c).GetFamilyChildren(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = NewCompletionRepository(c).Approve(ctx, completionID, "nope", 30, time.Now())
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = NewAffirmationRepository(c).GetDailyAffirmation(ctx, "1234")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestGetFamilyNotFound(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) { noRows(w) })

	family, err := NewFamilyRepository(c).GetFamily(t.Context(), familyID)
	require.NoError(t, err)
	assert.Nil(t, family)
}

func TestGetFamilyChildrenOrder(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/children", r.URL.Path)
		assert.Equal(t, "eq."+familyID, r.URL.Query().Get("family_id"))
		assert.Equal(t, "created_at.asc", r.URL.Query().Get("order"))
		respond(w, http.StatusOK, []map[string]any{
			{"id": childID, "name": "Ava", "age": 7},
			{"id": "7f3c7c8a-1b2d-4e5f-8a9b-0c1d2e3f4a5b", "name": "Ben", "age": 9},
		})
	})

	children, err := NewChildRepository(c).GetFamilyChildren(t.Context(), familyID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "Ava", children[0].Name)
}

func TestGetTodayCompletion(t *testing.T) {
	var found atomic.Bool
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.2026-03-10", r.URL.Query().Get("completion_date"))
		if !found.Load() {
			noRows(w)
			return
		}
		respond(w, http.StatusOK, map[string]any{"id": completionID, "status": "pending", "completion_date": "2026-03-10"})
	})
	repo := NewCompletionRepository(c)

	got, err := repo.GetTodayCompletion(t.Context(), childID, "2026-03-10")
	require.NoError(t, err)
	assert.Nil(t, got)

	found.Store(true)
	got, err = repo.GetTodayCompletion(t.Context(), childID, "2026-03-10")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestApproveOnlyTouchesPendingRows(t *testing.T) {
	var matched atomic.Bool
	matched.Store(true)
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq."+completionID, r.URL.Query().Get("id"))
		assert.Equal(t, "eq.pending", r.URL.Query().Get("status"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "approved", body["status"])
		assert.EqualValues(t, 45, body["screen_time_earned_minutes"])
		assert.Equal(t, familyID, body["approved_by"])

		if !matched.Load() {
			respond(w, http.StatusOK, []any{})
			return
		}
		respond(w, http.StatusOK, []map[string]any{{"id": completionID, "status": "approved", "screen_time_earned_minutes": 45}})
	})
	repo := NewCompletionRepository(c)

	got, err := repo.Approve(t.Context(), completionID, familyID, 45, time.Now())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.StatusApproved, got.Status)

	matched.Store(false)
	got, err = repo.Approve(t.Context(), completionID, familyID, 45, time.Now())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResubmitClearsRedoReason(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.redo_requested", r.URL.Query().Get("status"))
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		v, ok := body["redo_reason"]
		assert.True(t, ok)
		assert.Nil(t, v)
		assert.Equal(t, "pending", body["status"])
		respond(w, http.StatusOK, []map[string]any{{"id": completionID, "status": "pending"}})
	})

	got, err := NewCompletionRepository(c).Resubmit(t.Context(), completionID, "f/c/2026-03-10.m4a", models.RecordingAudio, 12, time.Now())
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestGetPendingCompletionsEmbedsDetails(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "*,children(name,avatar),affirmations(text,category)", r.URL.Query().Get("select"))
		assert.Equal(t, "submitted_at.desc", r.URL.Query().Get("order"))
		respond(w, http.StatusOK, []map[string]any{{
			"id":           completionID,
			"status":       "pending",
			"children":     map[string]any{"name": "Ava", "avatar": "👧"},
			"affirmations": map[string]any{"text": "I am brave", "category": "courage"},
		}})
	})

	rows, err := NewCompletionRepository(c).GetPendingCompletions(t.Context(), familyID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ava", rows[0].Child.Name)
	assert.Equal(t, "I am brave", rows[0].AffirmationText())
}

func TestGetCompletedDates(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, []string{"gte.2026-03-04", "lte.2026-03-10"}, r.URL.Query()["completion_date"])
		assert.Equal(t, "eq.approved", r.URL.Query().Get("status"))
		respond(w, http.StatusOK, []map[string]any{{"completion_date": "2026-03-05"}, {"completion_date": "2026-03-09"}})
	})

	dates, err := NewCompletionRepository(c).GetCompletedDates(t.Context(), childID, "2026-03-04", "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-03-05", "2026-03-09"}, dates)
}

func TestAffirmationLookups(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/v1/rpc/get_daily_affirmation":
			respond(w, http.StatusOK, []any{})
		case "/rest/v1/affirmations":
			q := r.URL.Query()
			assert.Equal(t, "lte.8", q.Get("age_min"))
			assert.Equal(t, "gte.8", q.Get("age_max"))
			assert.Equal(t, "eq.true", q.Get("is_active"))
			assert.Equal(t, "1", q.Get("limit"))
			respond(w, http.StatusOK, []map[string]any{{"id": "a1", "text": "I am kind", "category": "kindness"}})
		}
	})
	repo := NewAffirmationRepository(c)

	daily, err := repo.GetDailyAffirmation(t.Context(), childID)
	require.NoError(t, err)
	assert.Nil(t, daily)

	aff, err := repo.GetForAge(t.Context(), 8)
	require.NoError(t, err)
	require.NotNil(t, aff)
	assert.Equal(t, "I am kind", aff.Text)
}

func TestRegisterPushTokenUpserts(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "expo_push_token", r.URL.Query().Get("on_conflict"))
		var body models.NewPushToken
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.IsActive)
		w.WriteHeader(http.StatusCreated)
	})
	repo := NewPushTokenRepository(c)

	require.NoError(t, repo.Register(t.Context(), models.NewPushToken{FamilyID: familyID, ExpoPushToken: "ExponentPushToken[x]"}))
	assert.Error(t, repo.Register(t.Context(), models.NewPushToken{FamilyID: familyID}))
}

func TestSessionRepository(t *testing.T) {
	db, err := database.Initialize(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(t.Context(), zap.NewNop()))

	sealer, err := security.NewSealer("test-secret")
	require.NoError(t, err)
	repo := NewSessionRepository(db, sealer)
	ctx := t.Context()

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	expires := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	session := &models.Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    expires,
		User:         &models.User{ID: familyID, Email: "parent@example.com"},
	}
	require.NoError(t, repo.Save(ctx, session))

	session.AccessToken = "access-2"
	require.NoError(t, repo.Save(ctx, session))

	got, err = repo.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "access-2", got.AccessToken)
	assert.True(t, expires.Equal(got.ExpiresAt))
	assert.Equal(t, familyID, got.User.ID)

	other, _ := security.NewSealer("another-secret")
	_, err = NewSessionRepository(db, other).Load(ctx)
	assert.ErrorIs(t, err, security.ErrSealedData)

	require.NoError(t, repo.Clear(ctx))
	got, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}
