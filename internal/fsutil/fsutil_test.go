package fsutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voiceprep/internal/fsutil"
)

// TestEnsureDir verifies that a directory is created if it doesn't exist.
func TestEnsureDir(t *testing.T) {
	t.Parallel()

	testPath := filepath.Join(t.TempDir(), "new", "dir")

	require.NoError(t, fsutil.EnsureDir(testPath))
	assert.True(t, fsutil.IsDir(testPath))
	require.NoError(t, fsutil.EnsureDir(testPath), "existing directory")
}

func TestExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	assert.True(t, fsutil.Exists(file))
	assert.True(t, fsutil.Exists(dir))
	assert.False(t, fsutil.IsDir(file))
	assert.False(t, fsutil.Exists(filepath.Join(dir, "b.txt")))
}

func TestIsAudioFile(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"a.wav":           true,
		"B.WAV":           true,
		"voice.mp3":       true,
		"memo.m4a":        true,
		"clip.Ogg":        true,
		"notes.txt":       false,
		"song.flac":       false,
		"no_ext":          false,
		"archive.wav.zip": false,
	}

	for name, want := range tests {
		assert.Equal(t, want, fsutil.IsAudioFile(name), name)
	}
}

func TestListFiles_SortedAndFiltered(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"b.wav", "a.wav", "readme.md", "c.mp3"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}

	require.NoError(t, os.Mkdir(filepath.Join(dir, "d.wav"), 0o750))

	names, err := fsutil.ListFiles(dir, fsutil.IsAudioFile)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.wav", "b.wav", "c.mp3"}, names)

	_, err = fsutil.ListFiles(filepath.Join(dir, "absent"), fsutil.IsAudioFile)
	require.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "45.2s", fsutil.FormatDuration(45.2))
	assert.Equal(t, "5m 30.5s", fsutil.FormatDuration(330.5))
	assert.Equal(t, "1h 15m", fsutil.FormatDuration(4500))
}

func TestFormatFileSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "512 B", fsutil.FormatFileSize(512))
	assert.Equal(t, "1.5 KB", fsutil.FormatFileSize(1536))
	assert.Equal(t, "2.0 MB", fsutil.FormatFileSize(2*1024*1024))
}

func TestSanitizeAndReplaceExt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "conservative", fsutil.SanitizeFilename("Conservative"))
	assert.Equal(t, "a_b_c", fsutil.SanitizeFilename("a b/c"))
	assert.Equal(t, "sample_001.txt", fsutil.ReplaceExt("sample_001.wav", ".txt"))
}
