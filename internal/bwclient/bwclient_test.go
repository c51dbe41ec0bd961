package bwclient

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeBW installs a shell script standing in for the bw binary.
func fakeBW(t *testing.T, script string) *CLI {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bw")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return New(path, zap.NewNop())
}

func TestClassifyExitError(t *testing.T) {
	cases := []struct {
		stderr string
		want   error
	}{
		{"Invalid master password.", ErrInvalidCredential},
		{"You are not logged in. Session key is invalid.", ErrSessionExpired},
		{"mac failed.", ErrSessionExpired},
		{"Vault is locked.", ErrSessionExpired},
		{"First unlock your vault.", ErrSessionExpired},
		{"Not found.", ErrItemNotFound},
		{"something else entirely", nil},
		{"", nil},
	}
	for _, tc := range cases {
		if got := classifyExitError(tc.stderr); !errors.Is(got, tc.want) {
			t.Errorf("classifyExitError(%q) = %v; want %v", tc.stderr, got, tc.want)
		}
	}
}

func TestCheckStatus(t *testing.T) {
	cases := []struct {
		name   string
		stdout string
		want   BackendStatus
	}{
		{"unlocked", `{"status":"unlocked","userEmail":"u@example.com"}`, StatusUnlocked},
		{"locked", `{"status":"locked"}`, StatusLocked},
		{"unauthenticated", `{"status":"unauthenticated"}`, StatusLocked},
		{"unrecognized", `{"status":"weird"}`, StatusUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cli := fakeBW(t, `echo '`+tc.stdout+`'`)
			got, err := cli.CheckStatus(context.Background())
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	t.Run("garbage output", func(t *testing.T) {
		cli := fakeBW(t, `echo 'not json'`)
		_, err := cli.CheckStatus(context.Background())
		require.ErrorIs(t, err, ErrBackendUnavailable)
	})
}

func TestUnlockPassesPasswordByEnv(t *testing.T) {
	cli := fakeBW(t, `
if [ "$BWFS_PASSWORD" = "hunter2" ]; then
	echo "tok123"
else
	echo "Invalid master password." >&2
	exit 1
fi`)

	token, err := cli.Unlock(context.Background(), "hunter2")
	require.NoError(t, err)
	require.Equal(t, SessionToken("tok123"), token)

	_, err = cli.Unlock(context.Background(), "wrong")
	require.ErrorIs(t, err, ErrInvalidCredential)
}

func TestUnlockEmptyToken(t *testing.T) {
	cli := fakeBW(t, `echo ""`)
	_, err := cli.Unlock(context.Background(), "pw")
	require.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestListItemsForwardsSessionToken(t *testing.T) {
	cli := fakeBW(t, `
if [ "$BW_SESSION" != "tok123" ]; then
	echo "Vault is locked." >&2
	exit 1
fi
echo '[{"id":"aaaaaaaa-0000-4000-8000-000000000001","name":"github"}]'`)

	items, err := cli.ListItems(context.Background(), "tok123")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "github", items[0].Name)

	_, err = cli.ListItems(context.Background(), "stale")
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestListItemsDropsMalformedIDs(t *testing.T) {
	cli := fakeBW(t, `echo '[
		{"id":"aaaaaaaa-0000-4000-8000-000000000001","name":"good"},
		{"id":"not-a-uuid","name":"bad"},
		{"id":"","name":"empty"}
	]'`)

	items, err := cli.ListItems(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "good", items[0].Name)
}

func TestListFolders(t *testing.T) {
	cli := fakeBW(t, `echo '[{"id":"aaaaaaaa-0000-4000-8000-000000000001","name":"Work"},{"id":null,"name":"No Folder"}]'`)

	folders, err := cli.ListFolders(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, folders, 2)
	require.Equal(t, "Work", folders[0].Name)
	require.Empty(t, folders[1].ID)
}

func TestFetchItemContent(t *testing.T) {
	cli := fakeBW(t, `
if [ "$3" = "aaaaaaaa-0000-4000-8000-000000000001" ]; then
	echo '{"id":"aaaaaaaa-0000-4000-8000-000000000001","login":{"password":"s3cret"}}'
else
	echo "Not found." >&2
	exit 1
fi`)

	out, err := cli.FetchItemContent(context.Background(), "tok", "aaaaaaaa-0000-4000-8000-000000000001")
	require.NoError(t, err)
	require.Contains(t, string(out), "s3cret")

	_, err = cli.FetchItemContent(context.Background(), "tok", "aaaaaaaa-0000-4000-8000-000000000002")
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestMissingBinary(t *testing.T) {
	cli := New(filepath.Join(t.TempDir(), "absent"), zap.NewNop())
	_, err := cli.CheckStatus(context.Background())
	require.ErrorIs(t, err, ErrBackendUnavailable)
}
