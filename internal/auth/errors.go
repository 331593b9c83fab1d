package auth

import "errors"

// Policy violations surfaced to the user as distinct messages.
var (
	ErrEmailNotVerified    = errors.New("email not verified: check your inbox for the verification link")
	ErrPasswordMismatch    = errors.New("passwords do not match")
	ErrMissingFields       = errors.New("name, email, password and confirmation are required")
	ErrEmailRequired       = errors.New("email is required")
	ErrCredentialsRequired = errors.New("email and password are required")
	ErrNotLoggedIn         = errors.New("not logged in")
	ErrEmailInUse          = errors.New("email already in use")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrSessionRevoked      = errors.New("session revoked")
	ErrGoogleDisabled      = errors.New("google sign-in is not configured")
)

// ErrWeakPassword rejects passwords shorter than MinPasswordLength.
var ErrWeakPassword = errors.New("password must be at least 6 characters")

// ErrPasswordTooLong rejects passwords bcrypt cannot hash.
var ErrPasswordTooLong = errors.New("password must be at most 72 bytes")

const (
	MinPasswordLength = 6
	MaxPasswordBytes  = 72
)
