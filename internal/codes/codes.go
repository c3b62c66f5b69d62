package codes

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	// VerificationAlphabet is the character set for badge verification codes.
	VerificationAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	// VerificationLength is the length of a freshly drawn verification code.
	VerificationLength = 10
	// DefaultMaxAttempts bounds GenerateUnique.
	DefaultMaxAttempts = 20
)

var ErrCodeSpaceExhausted = errors.New("verification code space exhausted")

// ConfirmationCode returns the 64 hex char sha256 of "<recordID>-<fresh uuid>".
// Two calls for the same record never return the same code.
func ConfirmationCode(recordID int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d-%s", recordID, uuid.NewString())))
	return hex.EncodeToString(sum[:])
}

// VerificationCode draws a random code from VerificationAlphabet.
func VerificationCode() (string, error) {
	max := big.NewInt(int64(len(VerificationAlphabet)))
	b := make([]byte, VerificationLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("draw verification code: %w", err)
		}
		b[i] = VerificationAlphabet[n.Int64()]
	}
	return string(b), nil
}

// ExistsFunc reports whether a code is already taken.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Generator draws verification codes. Draw is swappable in tests.
type Generator struct {
	Draw func() (string, error)
}

// NewGenerator returns a Generator backed by VerificationCode.
func NewGenerator() *Generator {
	return &Generator{Draw: VerificationCode}
}

// GenerateUnique returns the first draw for which exists reports false.
// After maxAttempts collisions it fails with ErrCodeSpaceExhausted.
func (g *Generator) GenerateUnique(ctx context.Context, exists ExistsFunc, maxAttempts int) (string, error) {
	code, _, err := g.GenerateCounted(ctx, exists, maxAttempts)
	return code, err
}

// GenerateCounted is GenerateUnique that also reports how many draws it
// consumed, so callers retrying on insert can share one budget.
func (g *Generator) GenerateCounted(ctx context.Context, exists ExistsFunc, maxAttempts int) (string, int, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	draw := g.Draw
	if draw == nil {
		draw = VerificationCode
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		code, err := draw()
		if err != nil {
			return "", attempt, err
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", attempt, fmt.Errorf("check verification code: %w", err)
		}
		if !taken {
			return code, attempt, nil
		}
	}
	return "", maxAttempts, ErrCodeSpaceExhausted
}

// GenerateUnique draws with the default generator.
func GenerateUnique(ctx context.Context, exists ExistsFunc, maxAttempts int) (string, error) {
	return NewGenerator().GenerateUnique(ctx, exists, maxAttempts)
}

// DisplayCode returns the last VerificationLength characters of longer codes.
// Codes written by older bulk imports were full sha256 hex digests.
func DisplayCode(code string) string {
	if len(code) > VerificationLength {
		return code[len(code)-VerificationLength:]
	}
	return code
}
