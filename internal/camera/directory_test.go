package camera

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/dosewatch/internal/common"
)

func writeFrames(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o600))
	}
	return dir
}

func TestDirectorySource_ReplaysInOrderAndLoops(t *testing.T) {
	dir := writeFrames(t, "b.png", "a.jpg", "notes.txt")
	src := NewDirectorySource(dir)
	ctx := context.Background()

	require.NoError(t, src.Open(ctx))
	defer func() { _ = src.Close() }()
	assert.Equal(t, 2, src.Frames())

	var got []string
	for range 3 {
		f, err := src.Next(ctx)
		require.NoError(t, err)
		got = append(got, string(f.Data))
	}
	assert.Equal(t, []string{"a.jpg", "b.png", "a.jpg"}, got)

	f, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "image/png", f.ContentType)
	assert.Equal(t, uint64(4), f.Sequence)
}

func TestDirectorySource_OpenErrors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		err := NewDirectorySource(filepath.Join(t.TempDir(), "nope")).Open(context.Background())
		var camErr *common.CameraAccessError
		require.True(t, errors.As(err, &camErr))
		assert.False(t, camErr.PermissionDenied)
	})

	t.Run("no images", func(t *testing.T) {
		err := NewDirectorySource(writeFrames(t, "readme.md")).Open(context.Background())
		assert.ErrorIs(t, err, ErrNoFrames)
	})

	t.Run("permission denied", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("root ignores directory permissions")
		}
		dir := writeFrames(t, "a.jpg")
		require.NoError(t, os.Chmod(dir, 0o000))
		t.Cleanup(func() { _ = os.Chmod(dir, 0o700) })

		err := NewDirectorySource(dir).Open(context.Background())
		var camErr *common.CameraAccessError
		require.True(t, errors.As(err, &camErr))
		assert.True(t, camErr.PermissionDenied)
	})
}

func TestDirectorySource_NextAfterClose(t *testing.T) {
	src := NewDirectorySource(writeFrames(t, "a.jpg"))
	require.NoError(t, src.Open(context.Background()))
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	_, err := src.Next(context.Background())
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestDirectorySource_Progress(t *testing.T) {
	var out bytes.Buffer
	src := NewDirectorySource(writeFrames(t, "a.jpg", "b.jpg"), WithProgress(&out))
	require.NoError(t, src.Open(context.Background()))

	_, err := src.Next(context.Background())
	require.NoError(t, err)
	require.NoError(t, src.Close())
	assert.Contains(t, out.String(), "Replaying frames")
}
