package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorDirs_Defaults(t *testing.T) {
	t.Setenv("BASE_DIR", "")
	t.Setenv("WORKDIR", "")

	baseDir, workDir := doctorDirs()
	assert.Equal(t, "/srv/appstack", baseDir)
	assert.Equal(t, "/srv/appstack/work", workDir)
}

func TestDoctorDirs_Overrides(t *testing.T) {
	t.Setenv("BASE_DIR", "/opt/stack")
	t.Setenv("WORKDIR", "")

	baseDir, workDir := doctorDirs()
	assert.Equal(t, "/opt/stack", baseDir)
	assert.Equal(t, "/opt/stack/work", workDir)

	t.Setenv("WORKDIR", "/tmp/dumps")
	_, workDir = doctorDirs()
	assert.Equal(t, "/tmp/dumps", workDir)
}

func TestWritableCheck_CreatesAndWrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "base", "work")

	require.NoError(t, writableCheck(dir))

	// The directory exists afterwards and the temp file is cleaned up.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWritableCheck_PathIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(path, []byte("not a directory"), 0o600))

	require.Error(t, writableCheck(path))
}
