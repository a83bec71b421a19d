package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}

	// raw path unaffected
	got, err := ExpandHome("/tmp")
	require.NoError(t, err)
	require.Equal(t, "/tmp", got)

	// empty path
	got, err = ExpandHome("")
	require.NoError(t, err)
	require.Equal(t, "", got)

	// ~ expansion
	got, err = ExpandHome("~")
	require.NoError(t, err)
	require.Equal(t, home, got)

	// ~/subdir
	got, err = ExpandHome("~/data")
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		require.Equal(t, filepath.Join(home, "data"), got)
	}
}

func TestEnsureDir(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "a", "b")
	got, err := EnsureDir(dir)
	require.NoError(t, err)
	require.True(t, PathExists(got))

	st, err := os.Stat(got)
	require.NoError(t, err)
	require.True(t, st.IsDir())

	// idempotent
	again, err := EnsureDir(dir)
	require.NoError(t, err)
	require.Equal(t, got, again)
}
