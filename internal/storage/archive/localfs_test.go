// internal/storage/archive/localfs_test.go
package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS_ImplementsStorage(t *testing.T) {
	var _ Storage = (*LocalFS)(nil)
}

func TestLocalFS_WriteRead(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewLocalFS(dir)
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}

	ctx := context.Background()
	data := []byte("timestamp,price\n")

	if err := fs.Write(ctx, "results/history.csv", data); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := fs.Read(ctx, "results/history.csv")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if string(got) != string(data) {
		t.Errorf("got %q, want %q", got, data)
	}
}

func TestLocalFS_WriteReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	fs, _ := NewLocalFS(dir)
	ctx := context.Background()

	require.NoError(t, fs.Write(ctx, "run.json", []byte("first")))
	require.NoError(t, fs.Write(ctx, "run.json", []byte("second")))

	got, err := fs.Read(ctx, "run.json")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	// no staging files are left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	info, err := os.Stat(filepath.Join(dir, "run.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestLocalFS_ReadMissing(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())

	_, err := fs.Read(context.Background(), "1d/AAPL.csv")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestLocalFS_RejectsEscapingPaths(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	ctx := context.Background()

	assert.Error(t, fs.Write(ctx, "../outside.txt", []byte("x")))
	_, err := fs.Read(ctx, "/etc/passwd")
	assert.Error(t, err)
}

func TestLocalFS_Exists(t *testing.T) {
	dir := t.TempDir()
	fs, _ := NewLocalFS(dir)
	ctx := context.Background()

	exists, _ := fs.Exists(ctx, "nonexistent.txt")
	if exists {
		t.Error("expected false for nonexistent file")
	}

	require.NoError(t, fs.Write(ctx, "exists.txt", []byte("data")))
	exists, _ = fs.Exists(ctx, "exists.txt")
	if !exists {
		t.Error("expected true for existing file")
	}
}

func TestLocalFS_List(t *testing.T) {
	dir := t.TempDir()
	fs, _ := NewLocalFS(dir)
	ctx := context.Background()

	require.NoError(t, fs.Write(ctx, "data/1d/b.csv", []byte("b")))
	require.NoError(t, fs.Write(ctx, "data/1d/a.csv", []byte("a")))
	require.NoError(t, fs.Write(ctx, "data/1h/c.csv", []byte("c")))
	// an abandoned staging file from a crashed writer
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data/1d/.a.csv.123.tmp"), []byte("x"), 0644))

	paths, err := fs.List(ctx, "data/1d")
	require.NoError(t, err)
	assert.Equal(t, []string{"data/1d/a.csv", "data/1d/b.csv"}, paths)

	none, err := fs.List(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}
