// Package httpapi exposes the auth engine over HTTP: registration, OTP
// verification, password login, federated login, token refresh, logout, and
// the authenticated profile endpoint. Session state travels in the
// accessToken/refreshToken cookie pair; every cookie write goes through one
// shared policy so attributes never drift between set and clear sites.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"

	"github.com/campusnet/campusauth"
	"github.com/campusnet/campusauth/cookie"
)

const (
	accessCookie  = "accessToken"
	refreshCookie = "refreshToken"
)

// Server is the HTTP front for one engine instance.
type Server struct {
	engine  *campusauth.Engine
	cookies cookie.Policy
	mux     *http.ServeMux
}

// New builds the server and registers all routes.
func New(engine *campusauth.Engine, policy cookie.Policy) *Server {
	s := &Server{
		engine:  engine,
		cookies: policy,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/v1/students/register", s.handleRegister(campusauth.RoleStudent))
	s.mux.HandleFunc("POST /api/v1/students/verify-otp", s.handleVerifyOTP(campusauth.RoleStudent))
	s.mux.HandleFunc("POST /api/v1/students/resend-otp", s.handleResendOTP(campusauth.RoleStudent))
	s.mux.HandleFunc("POST /api/v1/students/login", s.handleLogin(campusauth.RoleStudent))
	s.mux.Handle("GET /api/v1/students/me", s.requireRole(campusauth.RoleStudent, http.HandlerFunc(s.handleMe)))

	s.mux.HandleFunc("POST /api/v1/alumni/register", s.handleRegister(campusauth.RoleAlumni))
	s.mux.HandleFunc("POST /api/v1/alumni/verify-otp", s.handleVerifyOTP(campusauth.RoleAlumni))
	s.mux.HandleFunc("POST /api/v1/alumni/resend-otp", s.handleResendOTP(campusauth.RoleAlumni))
	s.mux.HandleFunc("POST /api/v1/alumni/login", s.handleLogin(campusauth.RoleAlumni))
	s.mux.Handle("GET /api/v1/alumni/me", s.requireRole(campusauth.RoleAlumni, http.HandlerFunc(s.handleMe)))

	s.mux.HandleFunc("GET /api/v1/auth/federated/{role}/start", s.handleFederatedStart)
	s.mux.HandleFunc("POST /api/v1/auth/federated/{role}/callback", s.handleFederatedCallback)

	s.mux.HandleFunc("POST /api/v1/auth/refresh", s.handleRefresh)
	s.mux.HandleFunc("POST /api/v1/auth/logout", s.handleLogout)
}

// ServeHTTP implements http.Handler, stamping the client IP into the request
// context for the login limiter.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if ip := clientIP(r); ip != "" {
		r = r.WithContext(campusauth.WithClientIP(r.Context(), ip))
	}
	s.mux.ServeHTTP(w, r)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// setSessionCookies writes both token cookies; maxAge mirrors token TTL so
// the browser drops each cookie as its token dies.
func (s *Server) setSessionCookies(w http.ResponseWriter, access, refresh string) {
	s.cookies.Set(w, accessCookie, access, s.engine.Tokens().AccessTTL())
	s.cookies.Set(w, refreshCookie, refresh, s.engine.Tokens().RefreshTTL())
}

func (s *Server) clearSessionCookies(w http.ResponseWriter) {
	s.cookies.Clear(w, accessCookie)
	s.cookies.Clear(w, refreshCookie)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Print("httpapi: response encode failed")
	}
}

// writeError maps domain sentinels to statuses. Bodies stay generic: causes
// beyond the sentinel's own message never leave the process.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"
	code := ""

	switch {
	case errors.Is(err, campusauth.ErrValidation),
		errors.Is(err, campusauth.ErrStudentEmailInvalid),
		errors.Is(err, campusauth.ErrOTPInvalid):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, campusauth.ErrInvalidCredentials):
		status, message = http.StatusUnauthorized, err.Error()
	case errors.Is(err, campusauth.ErrTokenExpired):
		status, message = http.StatusUnauthorized, "unauthorized"
		code = "TOKEN_EXPIRED"
	case errors.Is(err, campusauth.ErrTokenInvalid):
		status, message = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, campusauth.ErrAccountUnverified):
		status, message = http.StatusForbidden, err.Error()
	case errors.Is(err, campusauth.ErrForbidden):
		status, message = http.StatusForbidden, err.Error()
	case errors.Is(err, campusauth.ErrAccountNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, campusauth.ErrAccountExists):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, campusauth.ErrOTPRateLimited),
		errors.Is(err, campusauth.ErrLoginRateLimited):
		status, message = http.StatusTooManyRequests, err.Error()
	case errors.Is(err, campusauth.ErrFederatedEmailMissing):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, campusauth.ErrOTPUnavailable),
		errors.Is(err, campusauth.ErrMailUnavailable):
		status, message = http.StatusServiceUnavailable, "service temporarily unavailable"
	default:
		log.Print("httpapi: unhandled error: ", err)
	}

	body := map[string]any{"success": false, "message": message}
	if code != "" {
		body["code"] = code
	}
	writeJSON(w, status, body)
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return campusauth.ErrValidation
	}
	return nil
}

// principalView is the wire shape of an authenticated identity.
type principalView struct {
	ID            string                     `json:"id"`
	Role          campusauth.Role            `json:"role"`
	Name          string                     `json:"name"`
	Email         string                     `json:"email"`
	EmailVerified bool                       `json:"emailVerified"`
	Student       *campusauth.StudentProfile `json:"student,omitempty"`
	Alumni        *campusauth.AlumniProfile  `json:"alumni,omitempty"`
}

func viewOf(p *campusauth.Principal) principalView {
	return principalView{
		ID:            p.ID,
		Role:          p.Role,
		Name:          p.Name,
		Email:         p.Email,
		EmailVerified: p.EmailVerified,
		Student:       p.Student,
		Alumni:        p.Alumni,
	}
}
