package auth

import (
	"context"
	"strings"
	"sync"

	"pocketplan/internal/core"
	"pocketplan/internal/log"
)

// State of a Session.
type State int

const (
	LoggedOut State = iota
	Authenticating
	LoggedIn
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case LoggedIn:
		return "logged_in"
	default:
		return "logged_out"
	}
}

// RegisterResult reports the outcome of a registration. Registration never
// signs the user in.
type RegisterResult struct {
	NeedsVerification bool `json:"needsVerification"`
	User              User `json:"user"`
}

// ProfileUpdate is a profile patch with an optional password change.
type ProfileUpdate struct {
	core.ProfilePatch
	Password string `json:"password,omitempty"`
	Confirm  string `json:"confirm,omitempty"`
}

// Session is the per-client authentication state machine. It is created on
// app start (or per request on the server), and torn down with Logout.
type Session struct {
	mu                sync.Mutex
	provider          Provider
	state             State
	user              *User
	needsVerification bool
	events            *log.StructuredLogger
}

func NewSession(provider Provider, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.Discard()
	}
	return &Session{
		provider: provider,
		events:   log.NewStructuredLogger(logger.WithComponent(log.ComponentAuth)),
	}
}

// Restore puts an already authenticated user back into the session, as when
// a bearer token has been validated.
func (s *Session) Restore(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = LoggedIn
	s.user = &u
	s.needsVerification = false
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User returns the signed-in user, if any.
func (s *Session) User() (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

func (s *Session) NeedsVerification() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.needsVerification
}

func (s *Session) begin() {
	s.state = Authenticating
	s.needsVerification = false
}

func (s *Session) fail(err error) error {
	s.state = LoggedOut
	s.user = nil
	return err
}

func (s *Session) signIn(u User) {
	s.state = LoggedIn
	s.user = &u
}

// Login checks credentials and then applies the verification gate: an
// unverified account is signed straight back out.
func (s *Session) Login(ctx context.Context, email, password string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.begin()
	u, err := s.provider.SignIn(ctx, strings.TrimSpace(email), password)
	if err != nil {
		s.events.LogAuthEvent(ctx, log.OpLogin, "", "password", err)
		return User{}, s.fail(err)
	}
	if !u.EmailVerified {
		_ = s.provider.SignOut(ctx, u.ID)
		s.needsVerification = true
		s.events.LogAuthEvent(ctx, log.OpLogin, u.ID, u.Provider, ErrEmailNotVerified)
		return User{}, s.fail(ErrEmailNotVerified)
	}

	s.signIn(u)
	s.events.LogAuthEvent(ctx, log.OpLogin, u.ID, u.Provider, nil)
	return u, nil
}

// Register creates the account, sends the verification email and signs out.
func (s *Session) Register(ctx context.Context, name, email, password, confirm string) (RegisterResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" || password == "" || confirm == "" {
		return RegisterResult{}, ErrMissingFields
	}
	if password != confirm {
		return RegisterResult{}, ErrPasswordMismatch
	}

	s.begin()
	u, err := s.provider.CreateAccount(ctx, email, password)
	if err != nil {
		s.events.LogAuthEvent(ctx, log.OpRegister, "", "password", err)
		return RegisterResult{}, s.fail(err)
	}
	named, err := s.provider.SetDisplayName(ctx, u.ID, name)
	if err != nil {
		_ = s.provider.SignOut(ctx, u.ID)
		s.events.LogAuthEvent(ctx, log.OpRegister, u.ID, u.Provider, err)
		return RegisterResult{}, s.fail(err)
	}
	u = named
	if err := s.provider.SendVerification(ctx, u.ID); err != nil {
		_ = s.provider.SignOut(ctx, u.ID)
		s.events.LogAuthEvent(ctx, log.OpRegister, u.ID, u.Provider, err)
		return RegisterResult{}, s.fail(err)
	}

	_ = s.provider.SignOut(ctx, u.ID)
	s.fail(nil)
	s.needsVerification = true
	s.events.LogAuthEvent(ctx, log.OpRegister, u.ID, u.Provider, nil)
	return RegisterResult{NeedsVerification: true, User: u}, nil
}

// GoogleLogin signs in with a Google ID token. No verification gate applies.
func (s *Session) GoogleLogin(ctx context.Context, idToken string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(idToken) == "" {
		return User{}, ErrCredentialsRequired
	}

	s.begin()
	u, err := s.provider.SignInWithGoogle(ctx, idToken)
	if err != nil {
		s.events.LogAuthEvent(ctx, log.OpLogin, "", "google", err)
		return User{}, s.fail(err)
	}
	s.signIn(u)
	s.events.LogAuthEvent(ctx, log.OpLogin, u.ID, "google", nil)
	return u, nil
}

// Logout clears the session even when the provider sign-out fails.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	userID := ""
	if s.user != nil {
		userID = s.user.ID
		err = s.provider.SignOut(ctx, userID)
	}
	s.fail(nil)
	s.needsVerification = false
	s.events.LogAuthEvent(ctx, log.OpLogout, userID, "", err)
	return err
}

// ResetPassword asks the provider to mail a reset link.
func (s *Session) ResetPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmailRequired
	}
	return s.provider.SendPasswordReset(ctx, email)
}

// ResendVerification signs in just long enough to send another link.
func (s *Session) ResendVerification(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return ErrCredentialsRequired
	}

	u, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	sendErr := s.provider.SendVerification(ctx, u.ID)
	_ = s.provider.SignOut(ctx, u.ID)
	return sendErr
}

// UpdateProfile merges the non-empty fields into the current user and
// optionally changes the password.
func (s *Session) UpdateProfile(ctx context.Context, upd ProfileUpdate) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != LoggedIn || s.user == nil {
		return User{}, ErrNotLoggedIn
	}
	changePassword := upd.Password != "" || upd.Confirm != ""
	if changePassword && upd.Password != upd.Confirm {
		return User{}, ErrPasswordMismatch
	}

	u := *s.user
	if !upd.ProfilePatch.IsEmpty() {
		updated, err := s.provider.UpdateProfile(ctx, u.ID, upd.ProfilePatch)
		if err != nil {
			return User{}, err
		}
		u = updated
	}
	if changePassword {
		if err := s.provider.UpdatePassword(ctx, u.ID, upd.Password); err != nil {
			return User{}, err
		}
	}
	s.user = &u
	return u, nil
}
