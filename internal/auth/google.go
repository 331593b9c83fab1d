package auth

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

// GoogleClaims is the identity carried by a verified Google ID token.
type GoogleClaims struct {
	Subject       string
	Email         string
	Name          string
	Picture       string
	EmailVerified bool
}

// TokenVerifier checks a Google ID token.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (GoogleClaims, error)
}

// IDTokenVerifier validates tokens against Google's published keys.
type IDTokenVerifier struct {
	clientID  string
	validator *idtoken.Validator
}

func NewIDTokenVerifier(ctx context.Context, clientID string) (*IDTokenVerifier, error) {
	if clientID == "" {
		return nil, ErrGoogleDisabled
	}
	v, err := idtoken.NewValidator(ctx, option.WithHTTPClient(http.DefaultClient))
	if err != nil {
		return nil, fmt.Errorf("create id token validator: %w", err)
	}
	return &IDTokenVerifier{clientID: clientID, validator: v}, nil
}

func (v *IDTokenVerifier) Verify(ctx context.Context, token string) (GoogleClaims, error) {
	payload, err := v.validator.Validate(ctx, token, v.clientID)
	if err != nil {
		return GoogleClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claimsFromPayload(payload), nil
}

func claimsFromPayload(p *idtoken.Payload) GoogleClaims {
	c := GoogleClaims{Subject: p.Subject}
	c.Email, _ = p.Claims["email"].(string)
	c.Name, _ = p.Claims["name"].(string)
	c.Picture, _ = p.Claims["picture"].(string)
	switch v := p.Claims["email_verified"].(type) {
	case bool:
		c.EmailVerified = v
	case string:
		c.EmailVerified = v == "true"
	}
	return c
}
