package oidc

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/openenroll/portal/internal/config"
	"github.com/stretchr/testify/require"
)

func TestInsecureVerifier_ReadsPayload(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"s1","preferred_username":"ann"}`))
	tok, err := NewInsecureVerifier().Verify(context.Background(), "e30."+payload+".sig")
	require.NoError(t, err)

	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	require.Equal(t, "s1", claims["sub"])
	require.Equal(t, "ann", claims["preferred_username"])
}

func TestInsecureVerifier_RejectsGarbage(t *testing.T) {
	_, err := NewInsecureVerifier().Verify(context.Background(), "nodots")
	require.Error(t, err)
	_, err = NewInsecureVerifier().Verify(context.Background(), "a.!!!.c")
	require.Error(t, err)
}

func TestNewStaffVerifier(t *testing.T) {
	v, err := NewStaffVerifier(context.Background(), config.KeycloakConfig{AllowInsecure: true})
	require.NoError(t, err)
	require.IsType(t, &InsecureVerifier{}, v)

	_, err = NewStaffVerifier(context.Background(), config.KeycloakConfig{})
	require.True(t, errors.Is(err, ErrNotConfigured))
}
