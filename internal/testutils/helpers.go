// Package testutils holds fixtures shared by tests across packages.
package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/stretchr/testify/require"
)

// WriteTour writes files (name to content) into dir, creating it if needed.
func WriteTour(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

// TourRepo seeds a temporary directory with files and initializes a loam
// repository over it. It returns the absolute directory and the repository.
func TourRepo(t *testing.T, files map[string]string, opts ...loam.Option) (string, core.Repository) {
	t.Helper()

	dir, err := filepath.Abs(t.TempDir())
	require.NoError(t, err)
	WriteTour(t, dir, files)

	repo, err := loam.Init(dir, opts...)
	require.NoError(t, err, "failed to init loam repo")
	return dir, repo
}
