package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"painel-auth/pkg/keystore"
)

const (
	keyPrefix       = "auth."
	keyAccessToken  = "auth.access_token"
	keyRefreshToken = "auth.refresh_token"
	keySession      = "auth.session"
)

// refreshMargin is how long before access token expiry the auto refresher
// fires.
const refreshMargin = 30 * time.Second

// HTTPClient is a Client backed by the identity service's HTTP API. The
// current session is kept in memory and mirrored into a keystore so it
// survives restarts.
type HTTPClient struct {
	baseURL string
	httpc   *http.Client
	store   *keystore.Store

	mu      sync.Mutex
	session *Session

	events chan AuthEvent
}

// NewHTTPClient returns a client for the service at baseURL. A previously
// persisted session is loaded from store if present.
func NewHTTPClient(baseURL string, store *keystore.Store) (*HTTPClient, error) {
	c := &HTTPClient{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 15 * time.Second},
		store:   store,
		events:  make(chan AuthEvent, 8),
	}
	if raw, ok := store.Get(keySession); ok {
		var s Session
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			// A corrupt session entry is treated as signed out.
			if _, derr := store.DeletePrefix(keyPrefix); derr != nil {
				return nil, derr
			}
		} else {
			c.session = &s
		}
	}
	return c, nil
}

func (c *HTTPClient) GetSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return nil, nil
	}
	if !sess.Expired(time.Now()) {
		s := *sess
		return &s, nil
	}
	// Expired access token: try the refresh grant before giving up on the
	// persisted session.
	next, err := c.Refresh(ctx)
	if err != nil {
		if KindOf(err) == KindCredential {
			c.forgetLocal()
			return nil, nil
		}
		return nil, err
	}
	return next, nil
}

func (c *HTTPClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var res wireTokenResponse
	err := c.post(ctx, "/auth/v1/token?grant_type=password", map[string]string{
		"email":    email,
		"password": password,
	}, "", &res)
	if err != nil {
		return nil, err
	}
	sess := res.session()
	if err := c.setSession(sess); err != nil {
		return nil, err
	}
	c.emit(AuthEvent{Type: SignedIn, Session: sess})
	s := *sess
	return &s, nil
}

func (c *HTTPClient) SignUp(ctx context.Context, email, password, name string) (*User, error) {
	var res wireUser
	err := c.post(ctx, "/auth/v1/signup", map[string]string{
		"email":    email,
		"password": password,
		"name":     name,
	}, "", &res)
	if err != nil {
		return nil, err
	}
	return res.user(), nil
}

func (c *HTTPClient) SignOut(ctx context.Context) error {
	c.mu.Lock()
	sess := c.session
	c.session = nil
	c.mu.Unlock()

	// Local state goes first so a dead server can never keep the user
	// signed in.
	if _, err := c.store.DeletePrefix(keyPrefix); err != nil {
		return err
	}
	c.emit(AuthEvent{Type: SignedOut})

	if sess == nil || sess.AccessToken == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/logout", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return transportError(err)
	}
	resp.Body.Close()
	return nil
}

func (c *HTTPClient) GetUser(ctx context.Context) (*User, error) {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return nil, NewError(KindCredential, "no_session", "not signed in", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, NewError(KindUnknown, "", err.Error(), err)
	}
	req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}
	var res wireUser
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, NewError(KindUnknown, "", "malformed server response", err)
	}
	return res.user(), nil
}

func (c *HTTPClient) Events() <-chan AuthEvent {
	return c.events
}

// Refresh exchanges the current refresh token for a new token pair and
// publishes a TokenRefreshed event.
func (c *HTTPClient) Refresh(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil || sess.RefreshToken == "" {
		return nil, NewError(KindCredential, "no_session", "not signed in", nil)
	}

	var res wireTokenResponse
	err := c.post(ctx, "/auth/v1/token?grant_type=refresh_token", map[string]string{
		"refresh_token": sess.RefreshToken,
	}, "", &res)
	if err != nil {
		return nil, err
	}
	next := res.session()
	if err := c.setSession(next); err != nil {
		return nil, err
	}
	c.emit(AuthEvent{Type: TokenRefreshed, Session: next})
	s := *next
	return &s, nil
}

// StartAutoRefresh refreshes the session shortly before each access token
// expiry until ctx is cancelled. Refresh failures are left for the next
// GetUser call to surface.
func (c *HTTPClient) StartAutoRefresh(ctx context.Context) {
	go func() {
		for {
			c.mu.Lock()
			sess := c.session
			c.mu.Unlock()

			wait := time.Minute
			if sess != nil && !sess.ExpiresAt.IsZero() {
				wait = time.Until(sess.ExpiresAt) - refreshMargin
				if wait < time.Second {
					wait = time.Second
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}

			c.mu.Lock()
			has := c.session != nil
			c.mu.Unlock()
			if has {
				if _, err := c.Refresh(ctx); err != nil && KindOf(err) == KindCredential {
					// The server no longer honors this refresh token.
					c.forgetLocal()
				}
			}
		}
	}()
}

// forgetLocal drops the session from memory and disk and announces the
// sign-out.
func (c *HTTPClient) forgetLocal() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	_, _ = c.store.DeletePrefix(keyPrefix)
	c.emit(AuthEvent{Type: SignedOut})
}

func (c *HTTPClient) setSession(s *Session) error {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := c.store.Set(keySession, string(raw)); err != nil {
		return err
	}
	if err := c.store.Set(keyAccessToken, s.AccessToken); err != nil {
		return err
	}
	return c.store.Set(keyRefreshToken, s.RefreshToken)
}

func (c *HTTPClient) emit(e AuthEvent) {
	for {
		select {
		case c.events <- e:
			return
		default:
			select {
			case <-c.events:
			default:
			}
		}
	}
}

func (c *HTTPClient) post(ctx context.Context, path string, body map[string]string, token string, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return NewError(KindUnknown, "", err.Error(), err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return NewError(KindUnknown, "", err.Error(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewError(KindUnknown, "", "malformed server response", err)
	}
	return nil
}

// responseError classifies a non-2xx response by status and the server's
// error tag.
func responseError(resp *http.Response) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Message == "" {
		body.Message = resp.Status
	}

	kind := KindUnknown
	switch resp.StatusCode {
	case http.StatusUnprocessableEntity:
		kind = KindValidation
	case http.StatusConflict:
		kind = KindDuplicateAccount
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		kind = KindCredential
	case http.StatusTooManyRequests:
		kind = KindRateLimit
	}
	return NewError(kind, body.Error, body.Message, nil)
}

// transportError classifies a failure to reach the server at all.
func transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindTimeout, "", "request timed out", err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return NewError(KindTimeout, "", "request timed out", err)
	}
	return NewError(KindNetwork, "", fmt.Sprintf("cannot reach identity service: %v", err), err)
}

type wireUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

func (w wireUser) user() *User {
	return &User{
		ID:        w.ID,
		Email:     w.Email,
		Name:      w.Name,
		CreatedAt: time.Unix(w.CreatedAt, 0).UTC(),
	}
}

type wireTokenResponse struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresAt    int64    `json:"expires_at"`
	RefreshToken string   `json:"refresh_token"`
	User         wireUser `json:"user"`
}

func (w wireTokenResponse) session() *Session {
	return &Session{
		UserID:       w.User.ID,
		Email:        w.User.Email,
		Name:         w.User.Name,
		AccessToken:  w.AccessToken,
		RefreshToken: w.RefreshToken,
		IssuedAt:     time.Now().UTC(),
		ExpiresAt:    time.Unix(w.ExpiresAt, 0).UTC(),
	}
}
