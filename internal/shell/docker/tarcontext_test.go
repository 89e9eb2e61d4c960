package docker

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readArchiveHeaders(t *testing.T, rc io.ReadCloser) map[string]*tar.Header {
	t.Helper()
	defer rc.Close()

	entries := make(map[string]*tar.Header)
	tr := tar.NewReader(rc)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		entries[hdr.Name] = hdr
	}
	return entries
}

func TestTarBuildContext_RelativePaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM scratch\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "app.py"), []byte("print()\n"), 0o644))

	rc, err := tarBuildContext(dir)
	require.NoError(t, err)

	entries := readArchiveHeaders(t, rc)
	assert.Contains(t, entries, "Dockerfile")
	assert.Contains(t, entries, "sub/")
	assert.Contains(t, entries, "sub/app.py")
}

func TestTarBuildContext_SymlinkTargetPreserved(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "real.txt"), []byte("data\n"), 0o644))
	require.NoError(t, os.Symlink("real.txt", filepath.Join(dir, "link.txt")))

	rc, err := tarBuildContext(dir)
	require.NoError(t, err)

	entries := readArchiveHeaders(t, rc)
	link, ok := entries["link.txt"]
	require.True(t, ok)
	assert.Equal(t, byte(tar.TypeSymlink), link.Typeflag)
	assert.Equal(t, "real.txt", link.Linkname)
}

func TestTarBuildContext_SkipsGitMetadata(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("ref: refs/heads/main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM scratch\n"), 0o644))

	rc, err := tarBuildContext(dir)
	require.NoError(t, err)

	entries := readArchiveHeaders(t, rc)
	assert.Contains(t, entries, "Dockerfile")
	assert.NotContains(t, entries, ".git/")
	assert.NotContains(t, entries, ".git/HEAD")
}

func TestTarBuildContext_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "Dockerfile")
	require.NoError(t, os.WriteFile(file, []byte("FROM scratch\n"), 0o644))

	_, err := tarBuildContext(file)
	require.Error(t, err)
}
