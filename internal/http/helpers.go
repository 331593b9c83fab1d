package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"pocketplan/internal/auth"
	"pocketplan/internal/core"
	"pocketplan/internal/services"
	"pocketplan/internal/store"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, auth.ErrEmailNotVerified):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrPasswordMismatch),
		errors.Is(err, auth.ErrMissingFields),
		errors.Is(err, auth.ErrEmailRequired),
		errors.Is(err, auth.ErrCredentialsRequired),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrPasswordTooLong),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrInvalidTarget),
		errors.Is(err, core.ErrEmptyEmail),
		errors.Is(err, errBadJSON):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrEmailInUse), errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrSessionRevoked),
		errors.Is(err, auth.ErrNotLoggedIn):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrGoogleDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrLedgerClosed):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers err with its mapped status. Internal errors are not
// echoed to the client.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := ErrorResponse(status, publicMessage(status, err.Error()))
	if status == http.StatusUnauthorized {
		resp.Header("WWW-Authenticate", `Bearer realm="pocketplan"`)
	}
	resp.Write(w)
}

// publicMessage replaces msg with the status text for server errors.
func publicMessage(status int, msg string) string {
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		return http.StatusText(status)
	}
	return msg
}

// formatCurrency renders v as rupiah with the locale's digit grouping.
func formatCurrency(v float64, l core.Locale) string {
	return "Rp " + core.FormatNumber(v, l)
}

// sanitizeInput removes control characters except tab, newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// identity is the caller resolved by the authenticate middleware.
type identity struct {
	UserID    string
	Email     string
	SessionID string
	Token     string
	Demo      bool
}

type identityKey struct{}

func withIdentity(ctx context.Context, id identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func identityFrom(ctx context.Context) (identity, bool) {
	id, ok := ctx.Value(identityKey{}).(identity)
	return id, ok
}

// demoUser stands in for the account of unauthenticated demo sessions.
func demoUser() auth.User {
	return auth.User{ID: core.DemoUserID, Name: "Demo User", EmailVerified: true, Provider: "demo"}
}
