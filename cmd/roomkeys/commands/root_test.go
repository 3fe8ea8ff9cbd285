package commands

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"roomkeys/internal/app"
	"roomkeys/internal/store"
)

const testPassphrase = "Correct-Horse-7-Battery"

func run(t *testing.T, args ...string) error {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	return execute(root)
}

func TestExecute_ClosesStoreWhenCommandFails(t *testing.T) {
	home := t.TempDir()

	err := run(t, "--home", home, "-p", testPassphrase, "--log-level", "error",
		"decrypt", filepath.Join(home, "missing.json"))
	require.Error(t, err)
	require.Nil(t, appCtx)

	path := app.DefaultConfig(home).DBPath()
	db, err := store.Open(path, testPassphrase, &store.Options{Timeout: 200 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestExecute_ClosesStoreOnSuccess(t *testing.T) {
	home := t.TempDir()

	require.NoError(t, run(t, "--home", home, "-p", testPassphrase, "--log-level", "error", "list"))
	require.Nil(t, appCtx)

	path := app.DefaultConfig(home).DBPath()
	db, err := store.Open(path, testPassphrase, &store.Options{Timeout: 200 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, db.Close())
}
