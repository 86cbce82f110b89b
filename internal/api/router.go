// Package api exposes the identity service over HTTP/JSON.
//
// Endpoint → handler mapping:
//   - POST /auth/v1/signup                      → handleSignup
//   - POST /auth/v1/token?grant_type=password   → handleToken
//   - POST /auth/v1/token?grant_type=refresh_token → handleToken
//   - POST /auth/v1/logout                      → handleLogout
//   - GET  /auth/v1/user                        → handleUser
//   - GET  /health                              → health probe
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"painel-auth/internal/audit"
	"painel-auth/internal/auth/service"
	"painel-auth/internal/telemetry"
)

// Server holds the identity API handlers and their dependencies.
type Server struct {
	auth    *service.AuthService
	emitter telemetry.EventEmitter
	metrics *telemetry.Metrics
	audit   audit.AuditLogger
	tracer  trace.Tracer
}

// NewServer returns a Server backed by the given auth service. emitter,
// metrics and auditor may be nil; the concern is then skipped.
func NewServer(auth *service.AuthService, emitter telemetry.EventEmitter, metrics *telemetry.Metrics, auditor audit.AuditLogger) *Server {
	if auditor == nil {
		auditor = audit.Nop{}
	}
	return &Server{
		auth:    auth,
		emitter: emitter,
		metrics: metrics,
		audit:   auditor,
		tracer:  otel.Tracer("painel-auth/api"),
	}
}

// Router builds the HTTP router for the identity API.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(clientIPMiddleware)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"status":"ok"}`)
	}).Methods("GET")
	r.HandleFunc("/auth/v1/signup", s.traced("signup", s.handleSignup)).Methods("POST")
	r.HandleFunc("/auth/v1/token", s.traced("token", s.handleToken)).Methods("POST")
	r.HandleFunc("/auth/v1/logout", s.traced("logout", s.handleLogout)).Methods("POST")
	r.HandleFunc("/auth/v1/user", s.traced("user", s.handleUser)).Methods("GET")
	return r
}

// traced wraps a handler in a server span named after the operation.
func (s *Server) traced(op string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := s.tracer.Start(r.Context(), "auth."+op, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		h(w, r.WithContext(ctx))
	}
}

type ctxKey int

const clientIPKey ctxKey = iota

// clientIPMiddleware stashes the caller's IP in the request context for the
// audit trail.
func clientIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.Header.Get("X-Forwarded-For")
		if i := strings.IndexByte(ip, ','); i >= 0 {
			ip = strings.TrimSpace(ip[:i])
		}
		if ip == "" {
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				ip = host
			} else {
				ip = r.RemoteAddr
			}
		}
		ctx := context.WithValue(r.Context(), clientIPKey, ip)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP returns the caller IP recorded by the router middleware, or ""
// outside a request.
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
