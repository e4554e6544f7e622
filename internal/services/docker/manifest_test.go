package docker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testManifest = `
services:
  db:
    image: postgres:16
    environment:
      POSTGRES_USER: postgres
  api:
    build: ../api
    depends_on:
      - db
  frontend:
    build: ../frontend
`

func TestServiceNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "compose.yml"), []byte(testManifest), 0o600))

	names, err := ServiceNames(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"api", "db", "frontend"}, names)
}

func TestServiceNames_LegacyFilename(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docker-compose.yml"), []byte(testManifest), 0o600))

	names, err := ServiceNames(dir)
	require.NoError(t, err)
	assert.Len(t, names, 3)
}

func TestServiceNames_NoManifest(t *testing.T) {
	_, err := ServiceNames(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no compose manifest")
}

func TestServiceNames_BadYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "compose.yml"), []byte("services: ["), 0o600))

	_, err := ServiceNames(dir)
	require.Error(t, err)
}
