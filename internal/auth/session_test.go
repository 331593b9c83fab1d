package auth

import (
	"context"
	"errors"
	"testing"

	"pocketplan/internal/core"
)

type fakeProvider struct {
	user       User
	signInErr  error
	createErr  error
	sendErr    error
	signOuts   int
	sent       int
	resets     []string
	passwords  []string
	calls      []string
	profileErr error
}

func (f *fakeProvider) record(c string) { f.calls = append(f.calls, c) }

func (f *fakeProvider) SignIn(ctx context.Context, email, password string) (User, error) {
	f.record("signin")
	if f.signInErr != nil {
		return User{}, f.signInErr
	}
	return f.user, nil
}

func (f *fakeProvider) SignInWithGoogle(ctx context.Context, idToken string) (User, error) {
	f.record("google")
	u := f.user
	u.Provider = ProviderGoogle
	return u, nil
}

func (f *fakeProvider) CreateAccount(ctx context.Context, email, password string) (User, error) {
	f.record("create")
	if f.createErr != nil {
		return User{}, f.createErr
	}
	return User{ID: "u1", Email: email}, nil
}

func (f *fakeProvider) SetDisplayName(ctx context.Context, userID, name string) (User, error) {
	f.record("name")
	return User{ID: userID, Email: "ana@example.com", Name: name}, nil
}

func (f *fakeProvider) SendVerification(ctx context.Context, userID string) error {
	f.record("verify")
	f.sent++
	return f.sendErr
}

func (f *fakeProvider) SendPasswordReset(ctx context.Context, email string) error {
	f.resets = append(f.resets, email)
	return nil
}

func (f *fakeProvider) UpdateProfile(ctx context.Context, userID string, patch core.ProfilePatch) (User, error) {
	f.record("profile")
	if f.profileErr != nil {
		return User{}, f.profileErr
	}
	u := f.user
	if patch.Name != "" {
		u.Name = patch.Name
	}
	return u, nil
}

func (f *fakeProvider) UpdatePassword(ctx context.Context, userID, password string) error {
	f.passwords = append(f.passwords, password)
	return nil
}

func (f *fakeProvider) SignOut(ctx context.Context, userID string) error {
	f.record("signout")
	f.signOuts++
	return nil
}

func TestLoginVerified(t *testing.T) {
	p := &fakeProvider{user: User{ID: "u1", EmailVerified: true}}
	s := NewSession(p, nil)

	u, err := s.Login(context.Background(), "ana@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if s.State() != LoggedIn || u.ID != "u1" {
		t.Fatalf("state = %v, user = %+v", s.State(), u)
	}
}

func TestLoginUnverifiedSignsOutAfterCredentialCheck(t *testing.T) {
	p := &fakeProvider{user: User{ID: "u1", EmailVerified: false}}
	s := NewSession(p, nil)

	_, err := s.Login(context.Background(), "ana@example.com", "secret1")
	if !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("err = %v, want ErrEmailNotVerified", err)
	}
	if s.State() != LoggedOut || !s.NeedsVerification() {
		t.Fatalf("state = %v, needsVerification = %v", s.State(), s.NeedsVerification())
	}
	if len(p.calls) != 2 || p.calls[0] != "signin" || p.calls[1] != "signout" {
		t.Fatalf("calls = %v, want signin then signout", p.calls)
	}
	if _, ok := s.User(); ok {
		t.Fatal("user should be cleared")
	}
}

func TestLoginBadCredentials(t *testing.T) {
	p := &fakeProvider{signInErr: ErrInvalidCredentials}
	s := NewSession(p, nil)
	if _, err := s.Login(context.Background(), "a@b.c", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v", err)
	}
	if s.State() != LoggedOut || s.NeedsVerification() {
		t.Fatalf("state = %v", s.State())
	}
}

func TestRegisterNeverLogsIn(t *testing.T) {
	p := &fakeProvider{}
	s := NewSession(p, nil)

	res, err := s.Register(context.Background(), "Ana", "ana@example.com", "secret1", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !res.NeedsVerification || res.User.Name != "Ana" {
		t.Fatalf("result = %+v", res)
	}
	if s.State() != LoggedOut || !s.NeedsVerification() {
		t.Fatalf("state = %v, needsVerification = %v", s.State(), s.NeedsVerification())
	}
	want := []string{"create", "name", "verify", "signout"}
	if len(p.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", p.calls, want)
	}
	for i := range want {
		if p.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", p.calls, want)
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name                           string
		user, email, password, confirm string
		want                           error
	}{
		{"missing name", " ", "a@b.c", "secret1", "secret1", ErrMissingFields},
		{"missing confirm", "Ana", "a@b.c", "secret1", "", ErrMissingFields},
		{"mismatch", "Ana", "a@b.c", "secret1", "secret2", ErrPasswordMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{}
			s := NewSession(p, nil)
			_, err := s.Register(context.Background(), tt.user, tt.email, tt.password, tt.confirm)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if len(p.calls) != 0 {
				t.Fatalf("provider called: %v", p.calls)
			}
		})
	}
}

func TestRegisterSendFailureSignsOut(t *testing.T) {
	sendErr := errors.New("smtp down")
	p := &fakeProvider{sendErr: sendErr}
	s := NewSession(p, nil)

	_, err := s.Register(context.Background(), "Ana", "ana@example.com", "secret1", "secret1")
	if !errors.Is(err, sendErr) {
		t.Fatalf("err = %v", err)
	}
	if p.signOuts != 1 || s.State() != LoggedOut {
		t.Fatalf("signOuts = %d, state = %v", p.signOuts, s.State())
	}
}

func TestGoogleLoginSkipsVerificationGate(t *testing.T) {
	p := &fakeProvider{user: User{ID: "g1", EmailVerified: false}}
	s := NewSession(p, nil)

	u, err := s.GoogleLogin(context.Background(), "id-token")
	if err != nil {
		t.Fatalf("GoogleLogin: %v", err)
	}
	if s.State() != LoggedIn || u.Provider != ProviderGoogle {
		t.Fatalf("state = %v, user = %+v", s.State(), u)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	p := &fakeProvider{user: User{ID: "u1", EmailVerified: true}}
	s := NewSession(p, nil)
	if _, err := s.Login(context.Background(), "a@b.c", "secret1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if s.State() != LoggedOut || p.signOuts != 1 {
		t.Fatalf("state = %v, signOuts = %d", s.State(), p.signOuts)
	}
}

func TestResetAndResendDoNotChangeState(t *testing.T) {
	p := &fakeProvider{user: User{ID: "u1"}}
	s := NewSession(p, nil)
	ctx := context.Background()

	if err := s.ResetPassword(ctx, "  "); !errors.Is(err, ErrEmailRequired) {
		t.Fatalf("ResetPassword empty: %v", err)
	}
	if err := s.ResetPassword(ctx, "ana@example.com"); err != nil || len(p.resets) != 1 {
		t.Fatalf("ResetPassword: %v, resets = %v", err, p.resets)
	}
	if err := s.ResendVerification(ctx, "ana@example.com", ""); !errors.Is(err, ErrCredentialsRequired) {
		t.Fatalf("ResendVerification empty: %v", err)
	}
	if err := s.ResendVerification(ctx, "ana@example.com", "secret1"); err != nil {
		t.Fatalf("ResendVerification: %v", err)
	}
	if p.sent != 1 || p.signOuts != 1 {
		t.Fatalf("sent = %d, signOuts = %d", p.sent, p.signOuts)
	}
	if s.State() != LoggedOut {
		t.Fatalf("state = %v", s.State())
	}
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{user: User{ID: "u1", Name: "Ana", EmailVerified: true}}
	s := NewSession(p, nil)

	if _, err := s.UpdateProfile(ctx, ProfileUpdate{ProfilePatch: core.ProfilePatch{Name: "B"}}); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("err = %v, want ErrNotLoggedIn", err)
	}

	s.Restore(p.user)
	if _, err := s.UpdateProfile(ctx, ProfileUpdate{Password: "secret1", Confirm: "secret2"}); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("err = %v, want ErrPasswordMismatch", err)
	}
	if len(p.passwords) != 0 {
		t.Fatal("password changed despite mismatch")
	}

	u, err := s.UpdateProfile(ctx, ProfileUpdate{
		ProfilePatch: core.ProfilePatch{Name: "Ana Maria"},
		Password:     "secret9",
		Confirm:      "secret9",
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if u.Name != "Ana Maria" || len(p.passwords) != 1 {
		t.Fatalf("user = %+v, passwords = %v", u, p.passwords)
	}
	if cur, _ := s.User(); cur.Name != "Ana Maria" {
		t.Fatalf("session user not refreshed: %+v", cur)
	}
}
