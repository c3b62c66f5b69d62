package tokens

import (
	"crypto/rsa"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	k, err := NewTestKey()
	require.NoError(t, err)
	return k
}

func TestVerify_ValidAndClaims(t *testing.T) {
	key := newKey(t)
	tok, err := SignRS256(key, map[string]interface{}{
		"user":  "alice",
		"email": "a@x.com",
		"age":   30,
		"exp":   time.Now().Add(time.Minute).Unix(),
	})
	require.NoError(t, err)

	claims, err := NewVerifier(&key.PublicKey).Verify(tok)
	require.NoError(t, err)
	require.Equal(t, "alice", claims["user"])
	require.Equal(t, "a@x.com", claims["email"])
	require.Equal(t, float64(30), claims["age"])
}

func TestVerify_Expired(t *testing.T) {
	key := newKey(t)
	tok, err := SignRS256(key, map[string]interface{}{"user": "u", "exp": time.Now().Add(-time.Hour).Unix()})
	require.NoError(t, err)
	_, err = NewVerifier(&key.PublicKey).Verify(tok)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerify_NotYetValid(t *testing.T) {
	key := newKey(t)
	tok, err := SignRS256(key, map[string]interface{}{"user": "u", "nbf": time.Now().Add(time.Hour).Unix()})
	require.NoError(t, err)
	_, err = NewVerifier(&key.PublicKey).Verify(tok)
	require.ErrorIs(t, err, ErrNotYetValid)
}

func TestVerify_WrongKeyFails(t *testing.T) {
	signer := newKey(t)
	other := newKey(t)
	tok, err := SignRS256(signer, map[string]interface{}{"user": "bob"})
	require.NoError(t, err)
	_, err = NewVerifier(&other.PublicKey).Verify(tok)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_Malformed(t *testing.T) {
	key := newKey(t)
	v := NewVerifier(&key.PublicKey)
	_, err := v.Verify("not-a-jwt")
	require.ErrorIs(t, err, ErrMalformed)
	_, err = v.Verify("not.a.jwt")
	require.ErrorIs(t, err, ErrMalformed)
}

func TestVerify_AlgNoneRejected(t *testing.T) {
	key := newKey(t)
	headerEnc := (&jwt.Token{}).EncodeSegment([]byte(`{"alg":"none","typ":"JWT"}`))
	payloadEnc := (&jwt.Token{}).EncodeSegment([]byte(`{"user":"mallory"}`))
	_, err := NewVerifier(&key.PublicKey).Verify(headerEnc + "." + payloadEnc + ".")
	require.ErrorIs(t, err, ErrInvalidSignature)
}

// An HS256 token keyed with the public key PEM must not pass as RS256.
func TestVerify_AlgorithmConfusionRejected(t *testing.T) {
	key := newKey(t)
	pemBytes, err := EncodePublicKeyPEM(&key.PublicKey)
	require.NoError(t, err)
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user": "mallory"}).SignedString(pemBytes)
	require.NoError(t, err)

	_, err = NewVerifier(&key.PublicKey).Verify(forged)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_RS512Rejected(t *testing.T) {
	key := newKey(t)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS512, jwt.MapClaims{"user": "u"}).SignedString(key)
	require.NoError(t, err)
	_, err = NewVerifier(&key.PublicKey).Verify(tok)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_TamperedPayload(t *testing.T) {
	key := newKey(t)
	tok, err := SignRS256(key, map[string]interface{}{"user": "user-t"})
	require.NoError(t, err)
	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	payload, err := jwt.NewParser().DecodeSegment(parts[1])
	require.NoError(t, err)
	parts[1] = (&jwt.Token{}).EncodeSegment([]byte(strings.Replace(string(payload), "user-t", "attacker", 1)))

	_, err = NewVerifier(&key.PublicKey).Verify(strings.Join(parts, "."))
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestLoadPublicKey(t *testing.T) {
	key := newKey(t)
	pemBytes, err := EncodePublicKeyPEM(&key.PublicKey)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "public_key.pem")
	require.NoError(t, os.WriteFile(path, pemBytes, 0o600))

	pub, err := LoadPublicKey(path)
	require.NoError(t, err)
	require.Equal(t, key.PublicKey.N, pub.N)

	_, err = LoadPublicKey(filepath.Join(t.TempDir(), "missing.pem"))
	require.Error(t, err)
}

func TestVerify_NilVerifier(t *testing.T) {
	var v *Verifier
	_, err := v.Verify("a.b.c")
	require.ErrorIs(t, err, ErrInvalidSignature)
}
