package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"pocketplan/internal/core"
	"pocketplan/internal/log"
	"pocketplan/internal/store"
)

// Account providers.
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

// LocalOptions configures a LocalProvider.
type LocalOptions struct {
	BcryptCost    int
	PublicBaseURL string
	VerifyTTL     time.Duration
	ResetTTL      time.Duration
	Mailer        Mailer
	// Google is nil when Google sign-in is off.
	Google TokenVerifier
}

// LocalProvider keeps accounts in an AccountStore with bcrypt hashes.
type LocalProvider struct {
	accounts store.AccountStore
	tokens   *TokenBook
	opts     LocalOptions
	now      func() time.Time
	logger   *log.Logger
}

func NewLocalProvider(accounts store.AccountStore, tokens *TokenBook, opts LocalOptions, logger *log.Logger) *LocalProvider {
	if logger == nil {
		logger = log.Discard()
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.VerifyTTL == 0 {
		opts.VerifyTTL = 72 * time.Hour
	}
	if opts.ResetTTL == 0 {
		opts.ResetTTL = time.Hour
	}
	if opts.Mailer == nil {
		opts.Mailer = NewLogMailer(logger)
	}
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")
	return &LocalProvider{
		accounts: accounts,
		tokens:   tokens,
		opts:     opts,
		now:      time.Now,
		logger:   logger.WithComponent(log.ComponentAuth),
	}
}

func (p *LocalProvider) hash(password string) (string, error) {
	if err := checkPasswordLength(password); err != nil {
		return "", err
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), p.opts.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func checkPasswordLength(password string) error {
	switch {
	case len(password) < MinPasswordLength:
		return ErrWeakPassword
	case len(password) > MaxPasswordBytes:
		return ErrPasswordTooLong
	}
	return nil
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (User, error) {
	a, err := p.accounts.GetAccountByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup account: %w", err)
	}
	if a.PasswordHash == "" {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return userFromAccount(a), nil
}

func (p *LocalProvider) CreateAccount(ctx context.Context, email, password string) (User, error) {
	hash, err := p.hash(password)
	if err != nil {
		return User{}, err
	}
	a := core.Account{
		ID:           uuid.NewString(),
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		Provider:     ProviderPassword,
		CreatedAt:    p.now().UTC().Format(time.RFC3339),
	}
	if err := p.accounts.CreateAccount(ctx, a); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return User{}, ErrEmailInUse
		}
		return User{}, fmt.Errorf("create account: %w", err)
	}
	return userFromAccount(a), nil
}

func (p *LocalProvider) SetDisplayName(ctx context.Context, userID, name string) (User, error) {
	return p.UpdateProfile(ctx, userID, core.ProfilePatch{Name: name})
}

// Account returns the stored account behind a user id.
func (p *LocalProvider) Account(ctx context.Context, userID string) (User, error) {
	a, err := p.accounts.GetAccount(ctx, userID)
	if err != nil {
		return User{}, err
	}
	return userFromAccount(a), nil
}

func (p *LocalProvider) link(path, token string) string {
	return p.opts.PublicBaseURL + path + "?token=" + url.QueryEscape(token)
}

func (p *LocalProvider) SendVerification(ctx context.Context, userID string) error {
	a, err := p.accounts.GetAccount(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup account: %w", err)
	}
	if a.EmailVerified {
		return nil
	}
	token := p.tokens.Issue(PurposeVerify, a.ID, p.opts.VerifyTTL)
	return p.opts.Mailer.Send(ctx, Message{
		To:      a.Email,
		Subject: "Verify your PocketPlan email",
		Body:    "Confirm your address: " + p.link("/api/auth/verify", token),
	})
}

// SendPasswordReset is silent for unknown addresses.
func (p *LocalProvider) SendPasswordReset(ctx context.Context, email string) error {
	a, err := p.accounts.GetAccountByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		p.logger.DebugContext(ctx, "Password reset for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup account: %w", err)
	}
	token := p.tokens.Issue(PurposeReset, a.ID, p.opts.ResetTTL)
	return p.opts.Mailer.Send(ctx, Message{
		To:      a.Email,
		Subject: "Reset your PocketPlan password",
		Body:    "Choose a new password: " + p.link("/api/auth/reset", token),
	})
}

// UpdateProfile applies the patch. A new email address must be verified again.
func (p *LocalProvider) UpdateProfile(ctx context.Context, userID string, patch core.ProfilePatch) (User, error) {
	a, err := p.accounts.GetAccount(ctx, userID)
	if err != nil {
		return User{}, fmt.Errorf("lookup account: %w", err)
	}
	updated := patch.Apply(a)
	emailChanged := core.NormalizeEmail(updated.Email) != core.NormalizeEmail(a.Email)
	if emailChanged {
		updated.EmailVerified = false
	}
	if err := p.accounts.UpdateAccount(ctx, updated); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return User{}, ErrEmailInUse
		}
		return User{}, fmt.Errorf("update account: %w", err)
	}
	if emailChanged {
		if err := p.SendVerification(ctx, userID); err != nil {
			p.logger.WarnContext(ctx, "Verification mail failed after email change", log.FieldUserID, userID, log.FieldError, err)
		}
	}
	return userFromAccount(updated), nil
}

func (p *LocalProvider) UpdatePassword(ctx context.Context, userID, password string) error {
	hash, err := p.hash(password)
	if err != nil {
		return err
	}
	a, err := p.accounts.GetAccount(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup account: %w", err)
	}
	a.PasswordHash = hash
	if err := p.accounts.UpdateAccount(ctx, a); err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}

// SignOut has nothing to release; bearer sessions are revoked by the Registry.
func (p *LocalProvider) SignOut(ctx context.Context, userID string) error {
	return nil
}

// SignInWithGoogle links or creates an account for the token's email.
func (p *LocalProvider) SignInWithGoogle(ctx context.Context, idToken string) (User, error) {
	if p.opts.Google == nil {
		return User{}, ErrGoogleDisabled
	}
	claims, err := p.opts.Google.Verify(ctx, idToken)
	if err != nil {
		return User{}, err
	}
	if claims.Email == "" {
		return User{}, fmt.Errorf("%w: token carries no email", ErrInvalidToken)
	}

	a, err := p.accounts.GetAccountByEmail(ctx, claims.Email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		a = core.Account{
			ID:            uuid.NewString(),
			Name:          claims.Name,
			Email:         claims.Email,
			PhotoURL:      claims.Picture,
			EmailVerified: claims.EmailVerified,
			Provider:      ProviderGoogle,
			CreatedAt:     p.now().UTC().Format(time.RFC3339),
		}
		if err := p.accounts.CreateAccount(ctx, a); err != nil {
			return User{}, fmt.Errorf("create google account: %w", err)
		}
	case err != nil:
		return User{}, fmt.Errorf("lookup account: %w", err)
	default:
		if a.Name == "" {
			a.Name = claims.Name
		}
		if a.PhotoURL == "" {
			a.PhotoURL = claims.Picture
		}
		a.EmailVerified = a.EmailVerified || claims.EmailVerified
		if err := p.accounts.UpdateAccount(ctx, a); err != nil {
			return User{}, fmt.Errorf("update account: %w", err)
		}
	}

	u := userFromAccount(a)
	u.Provider = ProviderGoogle
	return u, nil
}

// VerifyEmail redeems a verification token.
func (p *LocalProvider) VerifyEmail(ctx context.Context, token string) (User, error) {
	userID, err := p.tokens.Consume(PurposeVerify, token)
	if err != nil {
		return User{}, err
	}
	a, err := p.accounts.GetAccount(ctx, userID)
	if err != nil {
		return User{}, fmt.Errorf("lookup account: %w", err)
	}
	a.EmailVerified = true
	if err := p.accounts.UpdateAccount(ctx, a); err != nil {
		return User{}, fmt.Errorf("update account: %w", err)
	}
	return userFromAccount(a), nil
}

// ResetPasswordWithToken redeems a reset token and sets a new password.
func (p *LocalProvider) ResetPasswordWithToken(ctx context.Context, token, password, confirm string) error {
	if password == "" || confirm == "" {
		return ErrCredentialsRequired
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	if err := checkPasswordLength(password); err != nil {
		return err
	}
	userID, err := p.tokens.Consume(PurposeReset, token)
	if err != nil {
		return err
	}
	return p.UpdatePassword(ctx, userID, password)
}
