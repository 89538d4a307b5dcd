package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"kidnector/internal/models"
)

// refreshTimeout bounds a token refresh triggered from inside another request
const refreshTimeout = 15 * time.Second

// Auth manages the session against the auth API.
// State changes are published to channels registered with Notify.
type Auth struct {
	c *Client

	mu        sync.Mutex
	session   *models.Session
	source    oauth2.TokenSource
	listeners []chan<- models.AuthEvent
}

func newAuth(c *Client) *Auth {
	return &Auth{c: c}
}

// sessionResponse is the token payload of the auth API
type sessionResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         *models.User `json:"user"`
}

func (r sessionResponse) toSession(now time.Time) *models.Session {
	expires := now.Add(time.Duration(r.ExpiresIn) * time.Second)
	if r.ExpiresAt > 0 {
		expires = time.Unix(r.ExpiresAt, 0)
	}
	return &models.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		ExpiresAt:    expires,
		User:         r.User,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpResult is the outcome of a sign-up. Session is nil when the project
// requires email confirmation before the first sign-in.
type SignUpResult struct {
	User    *models.User
	Session *models.Session
}

// SignUp registers a new account
func (a *Auth) SignUp(ctx context.Context, email, password string) (*SignUpResult, error) {
	body, err := jsonBody(credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	err = a.c.do(ctx, request{
		method: http.MethodPost,
		path:   authPath + "/signup",
		body:   body,
		header: jsonHeader(),
		anon:   true,
	}, &raw)
	if err != nil {
		return nil, err
	}

	var sr sessionResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return nil, fmt.Errorf("failed to decode sign-up response: %w", err)
	}
	if sr.AccessToken != "" {
		session := sr.toSession(a.c.now())
		if session.User == nil || session.User.ID == "" {
			claims, err := ParseAccessToken(session.AccessToken)
			if err != nil {
				return nil, fmt.Errorf("no user returned: %w", err)
			}
			session.User = &models.User{ID: claims.Subject, Email: claims.Email}
		}
		a.setSession(session, models.AuthSignedIn)
		return &SignUpResult{User: session.User, Session: session}, nil
	}

	var user models.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("failed to decode sign-up user: %w", err)
	}
	if user.ID == "" {
		return nil, errors.New("no user returned")
	}
	return &SignUpResult{User: &user}, nil
}

// SignInWithPassword exchanges credentials for a session
func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	session, err := a.token(ctx, "password", credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	a.setSession(session, models.AuthSignedIn)
	return session, nil
}

// RefreshSession trades the held refresh token for a new session
func (a *Auth) RefreshSession(ctx context.Context) (*models.Session, error) {
	a.mu.Lock()
	current := a.session
	a.mu.Unlock()
	if current == nil || current.RefreshToken == "" {
		return nil, ErrNotAuthenticated
	}

	session, err := a.refresh(ctx, current.RefreshToken)
	if err != nil {
		return nil, err
	}
	if !a.replaceRefreshed(current, session, true) {
		return nil, ErrNotAuthenticated
	}
	return session, nil
}

// replaceRefreshed installs a refreshed session only if the session it was
// refreshed from is still the held one. A sign-out or a new sign-in while the
// refresh was in flight wins. With resetSource the token source is rebuilt
// around the new session.
func (a *Auth) replaceRefreshed(from, to *models.Session, resetSource bool) bool {
	a.mu.Lock()
	if a.session == nil || a.session.RefreshToken != from.RefreshToken {
		a.mu.Unlock()
		a.c.logger.Debug("discarding refreshed session, signed-in state changed meanwhile")
		return false
	}
	if to.User == nil {
		to.User = a.session.User
	}
	a.session = to
	if resetSource {
		a.source = oauth2.ReuseTokenSource(a.oauthToken(to), &refreshSource{auth: a})
	}
	listeners := append([]chan<- models.AuthEvent(nil), a.listeners...)
	a.mu.Unlock()

	a.emit(listeners, models.AuthEvent{Type: models.AuthTokenRefreshed, Session: copySession(to)})
	return true
}

func (a *Auth) refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	return a.token(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
}

func (a *Auth) token(ctx context.Context, grant string, payload any) (*models.Session, error) {
	body, err := jsonBody(payload)
	if err != nil {
		return nil, err
	}

	var sr sessionResponse
	err = a.c.do(ctx, request{
		method: http.MethodPost,
		path:   authPath + "/token",
		query:  url.Values{"grant_type": {grant}},
		body:   body,
		header: jsonHeader(),
		anon:   true,
	}, &sr)
	if err != nil {
		return nil, err
	}
	if sr.AccessToken == "" {
		return nil, errors.New("auth response did not include an access token")
	}
	return sr.toSession(a.c.now()), nil
}

// SignOut revokes the session remotely and always forgets it locally
func (a *Auth) SignOut(ctx context.Context) error {
	a.mu.Lock()
	current := a.session
	a.mu.Unlock()
	if current == nil {
		return nil
	}

	err := a.c.do(ctx, request{
		method: http.MethodPost,
		path:   authPath + "/logout",
		bearer: current.AccessToken,
	}, nil)

	a.setSession(nil, models.AuthSignedOut)

	// an already revoked token is as good as signed out
	if err != nil && !IsStatus(err, http.StatusUnauthorized) && !IsStatus(err, http.StatusNotFound) {
		return err
	}
	return nil
}

// GetUser asks the auth API who the current access token belongs to
func (a *Auth) GetUser(ctx context.Context) (*models.User, error) {
	if a.Session() == nil {
		return nil, ErrNotAuthenticated
	}

	var user models.User
	if err := a.c.do(ctx, request{method: http.MethodGet, path: authPath + "/user"}, &user); err != nil {
		return nil, err
	}

	a.mu.Lock()
	if a.session != nil {
		updated := *a.session
		updated.User = &user
		a.session = &updated
	}
	a.mu.Unlock()

	return &user, nil
}

// Resend asks the auth API to send a verification email again
func (a *Auth) Resend(ctx context.Context, kind, email string) error {
	body, err := jsonBody(map[string]string{"type": kind, "email": email})
	if err != nil {
		return err
	}
	return a.c.do(ctx, request{
		method: http.MethodPost,
		path:   authPath + "/resend",
		body:   body,
		header: jsonHeader(),
		anon:   true,
	}, nil)
}

// SetSession installs a previously persisted session and announces it
func (a *Auth) SetSession(session *models.Session) error {
	if session == nil || session.AccessToken == "" {
		return ErrNotAuthenticated
	}

	restored := *session
	if restored.User == nil || restored.User.ID == "" {
		claims, err := ParseAccessToken(restored.AccessToken)
		if err != nil {
			return err
		}
		restored.User = &models.User{ID: claims.Subject, Email: claims.Email}
		if restored.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
			restored.ExpiresAt = claims.ExpiresAt.Time
		}
	}

	a.setSession(&restored, models.AuthInitialSession)
	return nil
}

// Session returns a copy of the held session, or nil when signed out
func (a *Auth) Session() *models.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return nil
	}
	s := *a.session
	return &s
}

// GetSession returns the held session, refreshing it first when the access
// token has expired. It returns nil without error when signed out.
func (a *Auth) GetSession(ctx context.Context) (*models.Session, error) {
	s := a.Session()
	if s == nil {
		return nil, nil
	}
	if a.c.now().Before(s.ExpiresAt) {
		return s, nil
	}
	return a.RefreshSession(ctx)
}

// UserID returns the ID of the signed-in user
func (a *Auth) UserID() (string, error) {
	s := a.Session()
	if s == nil {
		return "", ErrNotAuthenticated
	}
	if s.User != nil && s.User.ID != "" {
		return s.User.ID, nil
	}
	claims, err := ParseAccessToken(s.AccessToken)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Notify registers ch to receive auth events. Sends never block: a full
// channel misses the event, so give it enough buffer.
func (a *Auth) Notify(ch chan<- models.AuthEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, ch)
}

// Stop unregisters ch
func (a *Auth) Stop(ch chan<- models.AuthEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, l := range a.listeners {
		if l == ch {
			a.listeners = append(a.listeners[:i], a.listeners[i+1:]...)
			return
		}
	}
}

func (a *Auth) setSession(session *models.Session, event models.AuthEventType) {
	a.mu.Lock()
	a.session = session
	if session == nil {
		a.source = nil
	} else {
		a.source = oauth2.ReuseTokenSource(a.oauthToken(session), &refreshSource{auth: a})
	}
	listeners := append([]chan<- models.AuthEvent(nil), a.listeners...)
	a.mu.Unlock()

	a.emit(listeners, models.AuthEvent{Type: event, Session: copySession(session)})
}

func (a *Auth) emit(listeners []chan<- models.AuthEvent, ev models.AuthEvent) {
	for _, ch := range listeners {
		select {
		case ch <- ev:
		default:
			a.c.logger.Warn("dropped auth event, listener is full", zap.String("event", string(ev.Type)))
		}
	}
}

// authorize sets the bearer token for a request made on behalf of the user
func (a *Auth) authorize(req *http.Request) error {
	a.mu.Lock()
	source := a.source
	a.mu.Unlock()

	if source == nil {
		req.Header.Set("Authorization", "Bearer "+a.c.anonKey)
		return nil
	}

	tok, err := source.Token()
	if err != nil {
		return fmt.Errorf("failed to refresh session: %w", err)
	}
	tok.SetAuthHeader(req)
	return nil
}

// refreshSource is the slow path of the reusable token source: it runs only
// once the cached access token has expired.
type refreshSource struct {
	auth *Auth
}

func (s *refreshSource) Token() (*oauth2.Token, error) {
	a := s.auth
	a.mu.Lock()
	current := a.session
	a.mu.Unlock()
	if current == nil || current.RefreshToken == "" {
		return nil, ErrNotAuthenticated
	}

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	session, err := a.refresh(ctx, current.RefreshToken)
	if err != nil {
		return nil, err
	}

	// keep the reusable source that called us; only the session and listeners change
	if !a.replaceRefreshed(current, session, false) {
		return nil, ErrNotAuthenticated
	}
	return a.oauthToken(session), nil
}

// oauthToken converts a session for the token source. The source checks
// expiry against the wall clock, so the expiry is shifted by the offset of
// the client's clock to keep both in agreement.
func (a *Auth) oauthToken(s *models.Session) *oauth2.Token {
	expiry := s.ExpiresAt
	if !expiry.IsZero() {
		expiry = expiry.Add(time.Since(a.c.now()))
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: s.RefreshToken,
		Expiry:       expiry,
	}
}

func copySession(s *models.Session) *models.Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// AccessClaims are the claims of an access token that the client relies on
type AccessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// ParseAccessToken reads the claims of an access token without verifying its
// signature; the backend verifies every token it receives.
func ParseAccessToken(token string) (*AccessClaims, error) {
	var claims AccessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("failed to parse access token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("access token has no subject")
	}
	return &claims, nil
}
