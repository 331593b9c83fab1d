package auth

import (
	"context"

	"pocketplan/internal/core"
)

// User is the identity a provider signs in.
type User struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	PhotoURL      string `json:"photoURL,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
	Provider      string `json:"provider"`
}

func userFromAccount(a core.Account) User {
	return User{
		ID:            a.ID,
		Name:          a.Name,
		Email:         a.Email,
		PhotoURL:      a.PhotoURL,
		EmailVerified: a.EmailVerified,
		Provider:      a.Provider,
	}
}

// Provider is the identity backend a Session drives. SignIn checks
// credentials only; verification policy belongs to the Session.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (User, error)
	SignInWithGoogle(ctx context.Context, idToken string) (User, error)
	CreateAccount(ctx context.Context, email, password string) (User, error)
	SetDisplayName(ctx context.Context, userID, name string) (User, error)
	SendVerification(ctx context.Context, userID string) error
	SendPasswordReset(ctx context.Context, email string) error
	UpdateProfile(ctx context.Context, userID string, patch core.ProfilePatch) (User, error)
	UpdatePassword(ctx context.Context, userID, password string) error
	SignOut(ctx context.Context, userID string) error
}
