package httpapi

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/campusnet/campusauth"
)

// stateCookie carries the federated round-trip nonce. Ten minutes covers the
// provider redirect comfortably.
const (
	stateCookie       = "federatedState"
	stateCookieMaxAge = 10 * time.Minute
)

func (s *Server) handleRegister(role campusauth.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name     string `json:"name"`
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}

		var err error
		if role == campusauth.RoleStudent {
			err = s.engine.RegisterStudent(r.Context(), campusauth.RegisterStudentInput{
				Name: req.Name, Email: req.Email, Password: req.Password,
			})
		} else {
			err = s.engine.RegisterAlumni(r.Context(), campusauth.RegisterAlumniInput{
				Name: req.Name, Email: req.Email, Password: req.Password,
			})
		}
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{
			"success": true,
			"message": "verification code sent to email",
		})
	}
}

func (s *Server) handleVerifyOTP(role campusauth.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
			OTP   string `json:"otp"`
		}
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}

		pair, principal, err := s.engine.VerifyEmail(r.Context(), role, req.Email, req.OTP)
		if err != nil {
			writeError(w, err)
			return
		}

		s.setSessionCookies(w, pair.AccessToken, pair.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "email verified",
			"user":    viewOf(principal),
		})
	}
}

func (s *Server) handleResendOTP(role campusauth.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
		}
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}

		if err := s.engine.ResendOTP(r.Context(), role, req.Email); err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "verification code sent to email",
		})
	}
}

func (s *Server) handleLogin(role campusauth.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}

		pair, principal, err := s.engine.Login(r.Context(), role, req.Email, req.Password)
		if err != nil {
			writeError(w, err)
			return
		}

		s.setSessionCookies(w, pair.AccessToken, pair.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"user":    viewOf(principal),
		})
	}
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFrom(r.Context())
	if principal == nil {
		writeError(w, campusauth.ErrTokenInvalid)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    viewOf(principal),
	})
}

// handleRefresh reads the refresh credential from its cookie only; a token
// in the body or header is ignored. The response body carries no tokens,
// just the re-set cookies.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(refreshCookie)
	if err != nil || c.Value == "" {
		writeError(w, campusauth.ErrTokenInvalid)
		return
	}

	pair, err := s.engine.Refresh(r.Context(), c.Value)
	if err != nil {
		s.clearSessionCookies(w)
		writeError(w, err)
		return
	}

	s.setSessionCookies(w, pair.AccessToken, pair.RefreshToken)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleLogout clears both cookies with the same attributes they were set
// with; no server-side state exists to invalidate.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearSessionCookies(w)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "logged out",
	})
}

func (s *Server) handleFederatedStart(w http.ResponseWriter, r *http.Request) {
	role := campusauth.Role(r.PathValue("role"))
	if !role.Valid() {
		writeError(w, fmt.Errorf("%w: unknown role", campusauth.ErrValidation))
		return
	}

	state := uuid.NewString()
	s.cookies.Set(w, stateCookie, state, stateCookieMaxAge)
	writeJSON(w, http.StatusOK, map[string]any{"state": state})
}

// handleFederatedCallback accepts the provider's verified assertion together
// with the state nonce issued by handleFederatedStart.
func (s *Server) handleFederatedCallback(w http.ResponseWriter, r *http.Request) {
	role := campusauth.Role(r.PathValue("role"))
	if !role.Valid() {
		writeError(w, fmt.Errorf("%w: unknown role", campusauth.ErrValidation))
		return
	}

	var req struct {
		State     string `json:"state"`
		Provider  string `json:"provider"`
		SubjectID string `json:"subjectId"`
		Email     string `json:"email"`
		Name      string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" ||
		subtle.ConstantTimeCompare([]byte(c.Value), []byte(req.State)) != 1 {
		writeError(w, fmt.Errorf("%w: state mismatch", campusauth.ErrValidation))
		return
	}
	s.cookies.Clear(w, stateCookie)

	pair, principal, err := s.engine.FederatedLogin(r.Context(), role, campusauth.FederatedProfile{
		Provider:  req.Provider,
		SubjectID: req.SubjectID,
		Email:     req.Email,
		Name:      req.Name,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	s.setSessionCookies(w, pair.AccessToken, pair.RefreshToken)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    viewOf(principal),
	})
}
