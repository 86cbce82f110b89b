package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"painel-auth/internal/auth/service"
	"painel-auth/internal/telemetry"
	userdomain "painel-auth/internal/user/domain"
)

// Stable error tags clients classify on. Never change these without a client migration.
const (
	errValidation   = "validation_failed"
	errDuplicate    = "user_already_exists"
	errInvalidGrant = "invalid_grant"
	errInvalidToken = "invalid_token"
	errUserNotFound = "user_not_found"
	errRateLimited  = "rate_limited"
	errServer       = "server_error"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type tokenRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, errValidation, "malformed JSON body")
		return
	}
	user, err := s.auth.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		s.record(r, "signup", err)
		s.writeServiceError(w, err)
		return
	}
	s.record(r, "signup", nil)
	s.audit.LogEvent(r.Context(), user.ID, "signup", "user", "")
	telemetry.EmitAsync(s.emitter, &telemetry.Event{
		EventType: "signup.succeeded", UserID: user.ID, Source: "authd",
	})
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	grantType := r.URL.Query().Get("grant_type")
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidGrant, "malformed JSON body")
		return
	}

	var (
		res *service.AuthResult
		err error
	)
	switch grantType {
	case "password":
		res, err = s.auth.Login(r.Context(), req.Email, req.Password)
	case "refresh_token":
		res, err = s.auth.Refresh(r.Context(), req.RefreshToken)
	default:
		writeError(w, http.StatusBadRequest, errInvalidGrant, "grant_type must be password or refresh_token")
		return
	}
	if err != nil {
		s.record(r, grantType, err)
		if grantType == "password" && errors.Is(err, service.ErrInvalidCredentials) {
			s.audit.LogEvent(r.Context(), "", "login_failure", "session", "")
		}
		s.writeServiceError(w, err)
		return
	}
	s.record(r, grantType, nil)
	if grantType == "password" {
		s.audit.LogEvent(r.Context(), res.User.ID, "login", "session", "")
	} else {
		s.audit.LogEvent(r.Context(), res.User.ID, "refresh", "session", "")
	}
	telemetry.EmitAsync(s.emitter, &telemetry.Event{
		EventType: grantType + ".succeeded", UserID: res.User.ID, Source: "authd",
	})
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  res.AccessToken,
		TokenType:    "bearer",
		ExpiresAt:    res.ExpiresAt.Unix(),
		RefreshToken: res.RefreshToken,
		User:         toUserResponse(res.User),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if err := s.auth.Logout(r.Context(), token); err != nil {
		s.record(r, "logout", err)
		s.writeServiceError(w, err)
		return
	}
	s.record(r, "logout", nil)
	s.audit.LogEvent(r.Context(), "", "logout", "session", "")
	telemetry.EmitAsync(s.emitter, &telemetry.Event{EventType: "logout.succeeded", Source: "authd"})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, errInvalidToken, "missing bearer token")
		return
	}
	user, err := s.auth.GetUser(r.Context(), token)
	if err != nil {
		s.record(r, "get_user", err)
		s.writeServiceError(w, err)
		return
	}
	s.record(r, "get_user", nil)
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// writeServiceError maps service sentinel errors to HTTP status + stable tag.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, errValidation, err.Error())
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		writeError(w, http.StatusConflict, errDuplicate, "a user with this email address has already been registered")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, errInvalidGrant, "invalid login credentials")
	case errors.Is(err, service.ErrInvalidRefreshToken), errors.Is(err, service.ErrRefreshTokenReuse):
		writeError(w, http.StatusBadRequest, errInvalidGrant, "invalid or expired refresh token")
	case errors.Is(err, service.ErrInvalidAccessToken):
		writeError(w, http.StatusUnauthorized, errInvalidToken, "invalid or expired access token")
	case errors.Is(err, service.ErrUserGone):
		writeError(w, http.StatusNotFound, errUserNotFound, "user no longer exists")
	default:
		writeError(w, http.StatusInternalServerError, errServer, "unexpected server error")
	}
}

// record counts the operation outcome on the meter. Outcome tags stay low-cardinality.
func (s *Server) record(r *http.Request, kind string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			outcome = errValidation
		case errors.Is(err, service.ErrEmailAlreadyRegistered):
			outcome = errDuplicate
		case errors.Is(err, service.ErrInvalidCredentials),
			errors.Is(err, service.ErrInvalidRefreshToken),
			errors.Is(err, service.ErrRefreshTokenReuse):
			outcome = errInvalidGrant
		case errors.Is(err, service.ErrInvalidAccessToken):
			outcome = errInvalidToken
		case errors.Is(err, service.ErrUserGone):
			outcome = errUserNotFound
		default:
			outcome = errServer
		}
	}
	s.metrics.RecordOperation(r.Context(), kind, outcome)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func toUserResponse(u *userdomain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt.Unix(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}
