package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/openenroll/portal/internal/profiles"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestRun_ImportThenEmails(t *testing.T) {
	ctx := context.Background()
	svc := profiles.NewService(profiles.NewMemoryRepo())

	var out bytes.Buffer
	require.NoError(t, run(ctx, []string{"json", write(t, "p.json", `[{"username":"carol"},{"username":"dave"}]`)}, &out, svc))
	require.Contains(t, out.String(), "Imported 2 profiles")

	out.Reset()
	require.NoError(t, run(ctx, []string{"emails", write(t, "e.csv", "username,email,name\ncarol,c@x.com,Carol\nzed,z@x.com,Zed\n")}, &out, svc))
	require.Contains(t, out.String(), "Updated 1 profiles")
	require.Contains(t, out.String(), "Profile not found: zed")

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Equal(t, "c@x.com", list[0].Email)
}

func TestRun_Usage(t *testing.T) {
	ctx := context.Background()
	svc := profiles.NewService(profiles.NewMemoryRepo())
	require.True(t, errors.Is(run(ctx, nil, &bytes.Buffer{}, svc), errUsage))
	require.True(t, errors.Is(run(ctx, []string{"xml", write(t, "x", "")}, &bytes.Buffer{}, svc), errUsage))
	require.Error(t, run(ctx, []string{"json", "/does/not/exist"}, &bytes.Buffer{}, svc))
}
