package profiles

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestImportAndApplyEmails(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepo())

	n, err := svc.Import(ctx, strings.NewReader(`[
		{"username": "carol", "username_org": "c.org", "reconciled_territory": "north", "reconciled_languages": ["en", "fr"]},
		{"username": "dave"},
		{"username": "  "}
	]`))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	rep, err := svc.ApplyEmails(ctx, strings.NewReader("username,email,name\ncarol,c@x.com,Carol C\nzed,z@x.com,Zed\n,,\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"carol"}, rep.Updated)
	require.Equal(t, []string{"zed"}, rep.NotFound)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "carol", list[0].Username)
	require.Equal(t, "c@x.com", list[0].Email)
	require.Equal(t, "Carol C", list[0].FullName)
	require.Equal(t, "north", list[0].ReconciledTerritory)
	require.Equal(t, "dave", list[1].Username)
}

func TestImport_BadJSON(t *testing.T) {
	_, err := NewService(NewMemoryRepo()).Import(context.Background(), strings.NewReader(`{"username":`))
	require.Error(t, err)
}

func TestApplyEmails_RequiresUsernameColumn(t *testing.T) {
	_, err := NewService(NewMemoryRepo()).ApplyEmails(context.Background(), strings.NewReader("email,name\na@x,A\n"))
	require.Error(t, err)
}
