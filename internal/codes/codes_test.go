package codes

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var hex64 = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestConfirmationCode_FormatAndFreshness(t *testing.T) {
	a := ConfirmationCode(42)
	b := ConfirmationCode(42)
	require.Regexp(t, hex64, a)
	require.Regexp(t, hex64, b)
	require.NotEqual(t, a, b, "same record id must never yield the same code twice")
}

func TestVerificationCode_Alphabet(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := VerificationCode()
		require.NoError(t, err)
		require.Len(t, code, VerificationLength)
		for _, r := range code {
			require.True(t, strings.ContainsRune(VerificationAlphabet, r), "unexpected rune %q", r)
		}
	}
}

func TestGenerateUnique_SkipsTakenCodes(t *testing.T) {
	draws := []string{"taken00001", "taken00002", "free000003"}
	i := 0
	g := &Generator{Draw: func() (string, error) {
		c := draws[i]
		i++
		return c, nil
	}}
	taken := map[string]bool{"taken00001": true, "taken00002": true}

	code, err := g.GenerateUnique(context.Background(), func(_ context.Context, c string) (bool, error) {
		return taken[c], nil
	}, DefaultMaxAttempts)
	require.NoError(t, err)
	require.Equal(t, "free000003", code)
	require.Equal(t, 3, i)
}

func TestGenerateUnique_ExhaustedAfterMaxAttempts(t *testing.T) {
	calls := 0
	g := NewGenerator()
	_, err := g.GenerateUnique(context.Background(), func(context.Context, string) (bool, error) {
		calls++
		return true, nil
	}, DefaultMaxAttempts)
	require.ErrorIs(t, err, ErrCodeSpaceExhausted)
	require.Equal(t, 20, calls)
}

func TestGenerateCounted_ReportsDrawsUsed(t *testing.T) {
	seen := 0
	g := NewGenerator()
	_, used, err := g.GenerateCounted(context.Background(), func(context.Context, string) (bool, error) {
		seen++
		return seen < 4, nil
	}, 10)
	require.NoError(t, err)
	require.Equal(t, 4, used)

	_, used, err = g.GenerateCounted(context.Background(), func(context.Context, string) (bool, error) {
		return true, nil
	}, 3)
	require.ErrorIs(t, err, ErrCodeSpaceExhausted)
	require.Equal(t, 3, used)
}

func TestGenerateUnique_ExistsErrorAborts(t *testing.T) {
	boom := errors.New("store down")
	_, err := GenerateUnique(context.Background(), func(context.Context, string) (bool, error) {
		return false, boom
	}, 3)
	require.ErrorIs(t, err, boom)
}

func TestDisplayCode(t *testing.T) {
	require.Equal(t, "abc123", DisplayCode("abc123"))
	require.Equal(t, "abcdefghij", DisplayCode("abcdefghij"))
	long := strings.Repeat("0", 54) + "0123456789"
	require.Equal(t, "0123456789", DisplayCode(long))
}
