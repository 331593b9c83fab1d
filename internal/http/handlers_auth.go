package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"pocketplan/internal/auth"
	"pocketplan/internal/log"
)

// session builds a fresh auth state machine for one request.
func (s *Server) session() *auth.Session {
	return auth.NewSession(s.provider, s.logger)
}

func (s *Server) authAvailable(w http.ResponseWriter) bool {
	if s.provider == nil || s.tokens == nil {
		ErrorResponse(http.StatusServiceUnavailable, "authentication is not configured").Write(w)
		return false
	}
	return true
}

// writeSession issues a bearer token for u.
func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, u auth.User) {
	token, claims, err := s.tokens.Issue(u)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Token issue failed", log.FieldUserID, u.ID, log.FieldError, err)
		InternalServerError("could not start session").Write(w)
		return
	}
	NewJSONResponse().
		Set("token", token).
		Set("expiresAt", time.Unix(claims.ExpiresAt, 0).UTC().Format(time.RFC3339)).
		Set("user", u).
		Write(w)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.authAvailable(w) {
		return
	}
	var req registerRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	res, err := s.session().Register(ctx, req.Name, req.Email, req.Password, req.Confirm)
	if err != nil {
		writeError(w, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.registrations, 1)
	NewJSONResponse().
		Status(http.StatusCreated).
		Set("needsVerification", res.NeedsVerification).
		Set("user", res.User).
		Set("message", "Account created. Check your inbox to verify your email before logging in.").
		Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.authAvailable(w) {
		return
	}
	var req credentialsRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, auth.ErrCredentialsRequired)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	session := s.session()
	u, err := session.Login(ctx, req.Email, req.Password)
	if err != nil {
		atomic.AddInt64(&s.appMetrics.loginFailures, 1)
		resp := ErrorResponse(statusFor(err), err.Error())
		if session.NeedsVerification() {
			resp.Set("needsVerification", true)
		}
		resp.Write(w)
		return
	}
	atomic.AddInt64(&s.appMetrics.logins, 1)
	s.writeSession(w, r, u)
}

func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.authAvailable(w) {
		return
	}
	var req googleRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	u, err := s.session().GoogleLogin(ctx, req.IDToken)
	if err != nil {
		atomic.AddInt64(&s.appMetrics.loginFailures, 1)
		writeError(w, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.logins, 1)
	s.writeSession(w, r, u)
}

// handleLogout revokes the bearer session. Without a token it is a no-op.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	raw := bearerToken(r)
	if raw == "" || s.tokens == nil {
		NewJSONResponse().Set("ok", true).Write(w)
		return
	}

	claims, err := s.tokens.Authenticate(raw)
	if err != nil && !errors.Is(err, auth.ErrSessionRevoked) {
		writeError(w, err)
		return
	}
	if err := s.tokens.Revoke(raw); err != nil {
		writeError(w, err)
		return
	}

	if claims != nil && s.provider != nil {
		session := s.session()
		session.Restore(auth.User{ID: claims.UserID, Email: claims.Email})
		if err := session.Logout(r.Context()); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Provider sign-out failed", log.FieldUserID, claims.UserID, log.FieldError, err)
		}
	}
	NewJSONResponse().Set("ok", true).Write(w)
}

// handleResetPassword answers the same way whether or not the address is known.
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if !s.authAvailable(w) {
		return
	}
	var req emailRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	if err := s.session().ResetPassword(ctx, req.Email); err != nil {
		writeError(w, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusAccepted).
		Set("ok", true).
		Set("message", "If the address is registered, a password reset link is on its way.").
		Write(w)
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	if !s.authAvailable(w) {
		return
	}
	var req credentialsRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	if err := s.session().ResendVerification(ctx, req.Email, req.Password); err != nil {
		writeError(w, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusAccepted).
		Set("ok", true).
		Set("message", "Verification email sent.").
		Write(w)
}

// tokenError reports a bad or used link as a client error rather than 401.
func tokenError(w http.ResponseWriter, err error) {
	if errors.Is(err, auth.ErrInvalidToken) {
		BadRequestError(auth.ErrInvalidToken.Error()).Write(w)
		return
	}
	writeError(w, err)
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	if !s.authAvailable(w) {
		return
	}
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		BadRequestError("token is required").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	u, err := s.provider.VerifyEmail(ctx, token)
	if err != nil {
		tokenError(w, err)
		return
	}
	log.FromContext(ctx).InfoContext(ctx, "Email verified", log.FieldUserID, u.ID, log.FieldOperation, log.OpVerify)
	NewJSONResponse().Set("verified", true).Set("user", u).Write(w)
}

func (s *Server) handleResetWithToken(w http.ResponseWriter, r *http.Request) {
	if !s.authAvailable(w) {
		return
	}
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		BadRequestError("token is required").Write(w)
		return
	}
	var req passwordResetRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	if err := s.provider.ResetPasswordWithToken(ctx, token, req.Password, req.Confirm); err != nil {
		tokenError(w, err)
		return
	}
	NewJSONResponse().Set("ok", true).Set("message", "Password updated. You can log in now.").Write(w)
}
