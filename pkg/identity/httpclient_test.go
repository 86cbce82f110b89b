package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"painel-auth/pkg/keystore"
)

// fakeService emulates the identity API with canned accounts.
type fakeService struct {
	mu       sync.Mutex
	accounts map[string]string // email -> password
	sessions map[string]string // access token -> email
	nextTok  int
}

func newFakeService() *fakeService {
	return &fakeService{
		accounts: map[string]string{},
		sessions: map[string]string{},
	}
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/signup", func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Email, Password, Name string }
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		defer f.mu.Unlock()
		if len(req.Password) < 6 {
			writeErr(w, 422, "validation_failed", "password must be at least 6 characters")
			return
		}
		if _, ok := f.accounts[req.Email]; ok {
			writeErr(w, 409, "user_already_exists", "a user with this email address has already been registered")
			return
		}
		f.accounts[req.Email] = req.Password
		writeBody(w, 201, map[string]any{"id": "u-" + req.Email, "email": req.Email, "name": req.Name, "created_at": time.Now().Unix()})
	})
	mux.HandleFunc("POST /auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email, Password string
			RefreshToken    string `json:"refresh_token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		defer f.mu.Unlock()
		var email string
		switch r.URL.Query().Get("grant_type") {
		case "password":
			pw, ok := f.accounts[req.Email]
			if !ok || pw != req.Password {
				writeErr(w, 400, "invalid_grant", "invalid login credentials")
				return
			}
			email = req.Email
		case "refresh_token":
			e, ok := f.sessions["r:"+req.RefreshToken]
			if !ok {
				writeErr(w, 400, "invalid_grant", "invalid or expired refresh token")
				return
			}
			email = e
		default:
			writeErr(w, 400, "invalid_grant", "unsupported grant_type")
			return
		}
		f.nextTok++
		access := fmt.Sprintf("acc-%s-%d", email, f.nextTok)
		refresh := fmt.Sprintf("ref-%s-%d", email, f.nextTok)
		f.sessions[access] = email
		f.sessions["r:"+refresh] = email
		writeBody(w, 200, map[string]any{
			"access_token":  access,
			"token_type":    "bearer",
			"expires_at":    time.Now().Add(15 * time.Minute).Unix(),
			"refresh_token": refresh,
			"user":          map[string]any{"id": "u-" + email, "email": email, "created_at": time.Now().Unix()},
		})
	})
	mux.HandleFunc("POST /auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(204)
	})
	mux.HandleFunc("GET /auth/v1/user", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		tok := r.Header.Get("Authorization")
		email, ok := f.sessions[trimBearer(tok)]
		if !ok {
			writeErr(w, 401, "invalid_token", "invalid or expired access token")
			return
		}
		if _, exists := f.accounts[email]; !exists {
			writeErr(w, 404, "user_not_found", "user no longer exists")
			return
		}
		writeBody(w, 200, map[string]any{"id": "u-" + email, "email": email, "created_at": time.Now().Unix()})
	})
	return mux
}

func trimBearer(h string) string {
	if len(h) > 7 {
		return h[7:]
	}
	return ""
}

func writeBody(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code, msg string) {
	writeBody(w, status, map[string]string{"error": code, "message": msg})
}

func newClient(t *testing.T) (*HTTPClient, *fakeService, *keystore.Store) {
	t.Helper()
	f := newFakeService()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	store, err := keystore.Open(filepath.Join(t.TempDir(), "keystore.json"))
	if err != nil {
		t.Fatalf("keystore.Open: %v", err)
	}
	c, err := NewHTTPClient(srv.URL, store)
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	return c, f, store
}

func signUpAndIn(t *testing.T, c *HTTPClient) *Session {
	t.Helper()
	ctx := context.Background()
	if _, err := c.SignUp(ctx, "ana@example.com", "secret1", "Ana"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	sess, err := c.SignInWithPassword(ctx, "ana@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}
	return sess
}

func TestSignUp_NoSession(t *testing.T) {
	c, _, _ := newClient(t)
	u, err := c.SignUp(context.Background(), "ana@example.com", "secret1", "Ana")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if u.Email != "ana@example.com" {
		t.Errorf("user = %+v", u)
	}
	// Registering must not sign the account in.
	if s, _ := c.GetSession(context.Background()); s != nil {
		t.Error("SignUp should not create a session")
	}
	select {
	case e := <-c.Events():
		t.Errorf("unexpected event %v", e.Type)
	default:
	}
}

func TestSignUp_Duplicate(t *testing.T) {
	c, _, _ := newClient(t)
	ctx := context.Background()
	_, _ = c.SignUp(ctx, "ana@example.com", "secret1", "")
	_, err := c.SignUp(ctx, "ana@example.com", "secret1", "")
	if KindOf(err) != KindDuplicateAccount {
		t.Fatalf("kind = %v, want duplicate_account", KindOf(err))
	}
}

func TestSignUp_Validation(t *testing.T) {
	c, _, _ := newClient(t)
	_, err := c.SignUp(context.Background(), "ana@example.com", "12345", "")
	if KindOf(err) != KindValidation {
		t.Fatalf("kind = %v, want validation", KindOf(err))
	}
}

func TestSignIn_PersistsAndEmits(t *testing.T) {
	c, _, store := newClient(t)
	sess := signUpAndIn(t, c)
	if sess.AccessToken == "" || sess.RefreshToken == "" {
		t.Fatalf("session = %+v", sess)
	}

	got, err := c.GetSession(context.Background())
	if err != nil || got == nil || got.AccessToken != sess.AccessToken {
		t.Errorf("GetSession = %+v, %v", got, err)
	}
	if _, ok := store.Get("auth.session"); !ok {
		t.Error("session not persisted to keystore")
	}
	e := <-c.Events()
	if e.Type != SignedIn || e.Session == nil {
		t.Errorf("event = %+v", e)
	}
}

func TestSignIn_WrongPassword(t *testing.T) {
	c, _, _ := newClient(t)
	_, _ = c.SignUp(context.Background(), "ana@example.com", "secret1", "")
	_, err := c.SignInWithPassword(context.Background(), "ana@example.com", "nope")
	if KindOf(err) != KindCredential {
		t.Fatalf("kind = %v, want credential", KindOf(err))
	}
}

func TestSessionSurvivesRestart(t *testing.T) {
	c, f, store := newClient(t)
	sess := signUpAndIn(t, c)

	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	c2, err := NewHTTPClient(srv.URL, store)
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	got, _ := c2.GetSession(context.Background())
	if got == nil || got.AccessToken != sess.AccessToken {
		t.Fatalf("restarted GetSession = %+v", got)
	}
}

func TestSignOut_ClearsLocalStateEvenWhenServerIsDown(t *testing.T) {
	c, _, store := newClient(t)
	signUpAndIn(t, c)
	<-c.Events()

	// Point the client at a dead server; sign-out must still clear local
	// state.
	c.baseURL = "http://127.0.0.1:1"
	_ = c.SignOut(context.Background())

	if s, _ := c.GetSession(context.Background()); s != nil {
		t.Error("session should be cleared")
	}
	for _, k := range store.Keys() {
		if strings.HasPrefix(k, "auth.") {
			t.Errorf("key %q should be purged", k)
		}
	}
	e := <-c.Events()
	if e.Type != SignedOut {
		t.Errorf("event = %v, want SIGNED_OUT", e.Type)
	}
}

func TestRefresh_RotatesAndEmits(t *testing.T) {
	c, _, _ := newClient(t)
	sess := signUpAndIn(t, c)
	<-c.Events()

	next, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.RefreshToken == sess.RefreshToken {
		t.Error("refresh token should rotate")
	}
	e := <-c.Events()
	if e.Type != TokenRefreshed {
		t.Errorf("event = %v, want TOKEN_REFRESHED", e.Type)
	}
}

func TestGetSession_ExpiredSessionRefreshes(t *testing.T) {
	c, f, store := newClient(t)
	signUpAndIn(t, c)
	<-c.Events()

	// Simulate a restart where the access token has since expired.
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	old, _ := c.GetSession(context.Background())
	old.ExpiresAt = time.Now().Add(-time.Minute)
	raw, _ := json.Marshal(old)
	_ = store.Set("auth.session", string(raw))
	c2, err := NewHTTPClient(srv.URL, store)
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}

	got, err := c2.GetSession(context.Background())
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got == nil || got.RefreshToken == old.RefreshToken {
		t.Fatalf("session = %+v, want a refreshed one", got)
	}
	e := <-c2.Events()
	if e.Type != TokenRefreshed {
		t.Errorf("event = %v, want TOKEN_REFRESHED", e.Type)
	}
}

func TestGetSession_ExpiredAndRevokedSignsOut(t *testing.T) {
	c, f, store := newClient(t)
	signUpAndIn(t, c)
	<-c.Events()

	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	old, _ := c.GetSession(context.Background())
	old.ExpiresAt = time.Now().Add(-time.Minute)
	old.RefreshToken = "revoked"
	raw, _ := json.Marshal(old)
	_ = store.Set("auth.session", string(raw))
	c2, err := NewHTTPClient(srv.URL, store)
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}

	got, err := c2.GetSession(context.Background())
	if err != nil || got != nil {
		t.Fatalf("GetSession = %+v, %v; want nil, nil", got, err)
	}
	e := <-c2.Events()
	if e.Type != SignedOut {
		t.Errorf("event = %v, want SIGNED_OUT", e.Type)
	}
	if _, ok := store.Get("auth.session"); ok {
		t.Error("revoked session should be purged from the keystore")
	}
}

func TestStartAutoRefresh_EmitsTokenRefreshed(t *testing.T) {
	c, _, _ := newClient(t)
	sess := signUpAndIn(t, c)
	<-c.Events()

	// Pull the expiry into the past so the refresher fires on its first
	// pass.
	c.mu.Lock()
	c.session.ExpiresAt = time.Now()
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.StartAutoRefresh(ctx)

	select {
	case e := <-c.Events():
		if e.Type != TokenRefreshed {
			t.Fatalf("event = %v, want TOKEN_REFRESHED", e.Type)
		}
		if e.Session == nil || e.Session.RefreshToken == sess.RefreshToken {
			t.Error("refresh token should rotate")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no TOKEN_REFRESHED before deadline")
	}
}

func TestStartAutoRefresh_RevokedRefreshSignsOut(t *testing.T) {
	c, _, _ := newClient(t)
	signUpAndIn(t, c)
	<-c.Events()

	c.mu.Lock()
	c.session.ExpiresAt = time.Now()
	c.session.RefreshToken = "revoked"
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.StartAutoRefresh(ctx)

	select {
	case e := <-c.Events():
		if e.Type != SignedOut {
			t.Fatalf("event = %v, want SIGNED_OUT", e.Type)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no SIGNED_OUT before deadline")
	}
	if s, _ := c.GetSession(context.Background()); s != nil {
		t.Error("session should be forgotten after a rejected refresh")
	}
}

func TestGetUser_NoSession(t *testing.T) {
	c, _, _ := newClient(t)
	_, err := c.GetUser(context.Background())
	if KindOf(err) != KindCredential {
		t.Fatalf("kind = %v, want credential", KindOf(err))
	}
}

func TestGetUser_DeletedAccount(t *testing.T) {
	c, f, _ := newClient(t)
	signUpAndIn(t, c)

	f.mu.Lock()
	delete(f.accounts, "ana@example.com")
	f.mu.Unlock()

	_, err := c.GetUser(context.Background())
	if err == nil {
		t.Fatal("GetUser for a deleted account should fail")
	}
	var ie *Error
	if !errors.As(err, &ie) || ie.Code != "user_not_found" {
		t.Errorf("error = %v", err)
	}
}

func TestTransportError_IsNetworkKind(t *testing.T) {
	store, _ := keystore.Open(filepath.Join(t.TempDir(), "keystore.json"))
	c, err := NewHTTPClient("http://127.0.0.1:1", store)
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	_, err = c.SignUp(context.Background(), "a@b.com", "secret1", "")
	if KindOf(err) != KindNetwork {
		t.Fatalf("kind = %v, want network", KindOf(err))
	}
}
