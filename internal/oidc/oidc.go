package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/openenroll/portal/internal/config"
	"github.com/openenroll/portal/pkg/logger"
	"github.com/openenroll/portal/pkg/middleware"
)

var ErrNotConfigured = errors.New("oidc provider not configured")

// Verifier checks staff ID tokens against the provider's published keys.
type Verifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewVerifier discovers the provider at issuer and verifies tokens minted for clientID.
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &Verifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}

// NewStaffVerifier picks the verifier for the staff surfaces. The insecure
// verifier is only returned when explicitly allowed in configuration.
func NewStaffVerifier(ctx context.Context, cfg config.KeycloakConfig) (middleware.Verifier, error) {
	if cfg.AllowInsecure {
		logger.Warnf("using insecure staff token verifier")
		return NewInsecureVerifier(), nil
	}
	issuer := cfg.Issuer()
	if issuer == "" {
		return nil, ErrNotConfigured
	}
	v, err := NewVerifier(ctx, issuer, cfg.ClientID)
	if err != nil {
		return nil, err
	}
	return v, nil
}
