package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocal(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(LocalConfig{BasePath: t.TempDir()}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

// =============================================================================
// LocalStorage Tests
// =============================================================================

func TestLocalStorage_PutGetExistsDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestLocal(t)

	exists, err := s.Exists(ctx, "2024/cat.jpg")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.Put(ctx, "2024/cat.jpg", strings.NewReader("meow"), PutOptions{}))

	exists, err = s.Exists(ctx, "2024/cat.jpg")
	require.NoError(t, err)
	assert.True(t, exists)

	rc, info, err := s.Get(ctx, "2024/cat.jpg")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "meow", string(data))
	assert.Equal(t, int64(4), info.Size)
	assert.Equal(t, "image/jpeg", info.ContentType)

	require.NoError(t, s.Delete(ctx, "2024/cat.jpg"))
	require.NoError(t, s.Delete(ctx, "2024/cat.jpg"), "delete is idempotent")

	_, _, err = s.Get(ctx, "2024/cat.jpg")
	assert.True(t, IsNotFound(err))
}

func TestLocalStorage_Overwrite(t *testing.T) {
	ctx := context.Background()
	s := newTestLocal(t)

	require.NoError(t, s.Put(ctx, "a.png", strings.NewReader("one"), PutOptions{}))

	err := s.Put(ctx, "a.png", strings.NewReader("two"), PutOptions{})
	assert.True(t, IsKeyExists(err))

	require.NoError(t, s.Put(ctx, "a.png", strings.NewReader("three"), PutOptions{Overwrite: true}))
	data, err := ReadAll(ctx, s, "a.png")
	require.NoError(t, err)
	assert.Equal(t, "three", string(data))
}

func TestLocalStorage_MaxSize(t *testing.T) {
	ctx := context.Background()
	s := newTestLocal(t)

	err := s.Put(ctx, "big.png", bytes.NewReader(make([]byte, 11)), PutOptions{MaxSize: 10})
	assert.True(t, IsTooLarge(err))

	exists, _ := s.Exists(ctx, "big.png")
	assert.False(t, exists)

	entries, _ := os.ReadDir(s.BasePath())
	assert.Empty(t, entries, "temporary files must be cleaned up")
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	s := newTestLocal(t)

	for _, key := range []string{"", "/", ".", "../etc/passwd", "a/../../b"} {
		_, err := s.Exists(ctx, key)
		assert.True(t, IsInvalidKey(err), "key %q", key)
	}
}

func TestLocalStorage_LeadingSlash(t *testing.T) {
	ctx := context.Background()
	s := newTestLocal(t)

	require.NoError(t, s.Put(ctx, "/thumbs/100x100c/a.jpg", strings.NewReader("x"), PutOptions{}))
	_, err := os.Stat(filepath.Join(s.BasePath(), "thumbs", "100x100c", "a.jpg"))
	assert.NoError(t, err)
}

func TestLocalStorage_DirectoryIsNotAnObject(t *testing.T) {
	ctx := context.Background()
	s := newTestLocal(t)
	require.NoError(t, os.MkdirAll(filepath.Join(s.BasePath(), "dir"), 0755))

	exists, err := s.Exists(ctx, "dir")
	require.NoError(t, err)
	assert.False(t, exists)

	_, _, err = s.Get(ctx, "dir")
	assert.True(t, IsNotFound(err))
}

func TestLocalStorage_CanceledContext(t *testing.T) {
	s := newTestLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Exists(ctx, "a.jpg")
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// Mounts Tests
// =============================================================================

func TestParseRef(t *testing.T) {
	tests := []struct {
		ref       string
		wantMount string
		wantPath  string
		wantErr   bool
	}{
		{"files://2024/cat.jpg", "files", "2024/cat.jpg", false},
		{"theme:///img/404.png", "theme", "img/404.png", false},
		{"files://", "", "", true},
		{"://a.jpg", "", "", true},
		{"no-scheme.jpg", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			mount, path, err := ParseRef(tt.ref)
			if tt.wantErr {
				assert.True(t, IsInvalidKey(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMount, mount)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}

func TestMounts_OrderAndResolve(t *testing.T) {
	ctx := context.Background()
	files := newTestLocal(t)
	theme := newTestLocal(t)
	require.NoError(t, theme.Put(ctx, "img/404.png", strings.NewReader("png"), PutOptions{}))

	m := NewMounts()
	m.Mount("files", files)
	m.Mount("theme", theme)
	m.Mount("files", files)
	assert.Equal(t, []string{"files", "theme"}, m.Names())

	img, err := m.Resolve("theme://img/404.png")
	require.NoError(t, err)
	assert.Equal(t, "img/404.png", img.Path())
	assert.Equal(t, "theme", img.Mount())
	assert.Equal(t, "theme://img/404.png", img.Ref())
	assert.Equal(t, "image/png", img.MIMEType())

	ok, err := img.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := img.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	_, err = m.Resolve("nowhere://x.png")
	assert.ErrorIs(t, err, ErrUnknownMount)
}

func TestImage_ReadMissing(t *testing.T) {
	img := NewImage(newTestLocal(t), "files", "missing.jpg")
	_, err := img.Read(context.Background())
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "files://missing.jpg")
}

// =============================================================================
// Content Type Tests
// =============================================================================

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "image/webp", DetectContentType("image/webp", "a.jpg", nil))
	assert.Equal(t, "image/jpeg", DetectContentType("", "A.JPEG", nil))
	assert.Equal(t, "image/tiff", DetectContentType("", "scan.tif", nil))
	assert.Equal(t, "image/png", DetectContentType("", "noext", []byte("\x89PNG\r\n\x1a\n")))
	assert.Equal(t, "application/octet-stream", DetectContentType("", "noext", nil))

	assert.True(t, IsImage("image/png; charset=binary"))
	assert.False(t, IsImage("text/html"))
}

// =============================================================================
// R2 Helper Tests
// =============================================================================

func TestR2Storage_ObjectKey(t *testing.T) {
	s := &R2Storage{prefix: "site/files"}

	key, err := s.objectKey("/2024/cat.jpg")
	require.NoError(t, err)
	assert.Equal(t, "site/files/2024/cat.jpg", key)

	_, err = s.objectKey("../secret")
	assert.ErrorIs(t, err, ErrInvalidKey)

	bare := &R2Storage{}
	key, err = bare.objectKey("a.png")
	require.NoError(t, err)
	assert.Equal(t, "a.png", key)
}

func TestR2Storage_WrapS3Error(t *testing.T) {
	s := &R2Storage{}

	assert.ErrorIs(t, s.wrapS3Error(&smithy.GenericAPIError{Code: "NoSuchKey"}), ErrNotFound)
	assert.ErrorIs(t, s.wrapS3Error(&smithy.GenericAPIError{Code: "AccessDenied"}), ErrAccessDenied)

	other := errors.New("connection reset")
	assert.ErrorIs(t, s.wrapS3Error(other), other)
	assert.Nil(t, s.wrapS3Error(nil))
}

func TestNewR2Storage_Validation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewR2Storage(R2Config{AccountID: "acct"}, logger)
	assert.Error(t, err)

	_, err = NewR2Storage(R2Config{BucketName: "b"}, logger)
	assert.Error(t, err)

	s, err := NewR2Storage(R2Config{BucketName: "b", Endpoint: "http://localhost:9000", Prefix: "/p/"}, logger)
	require.NoError(t, err)
	assert.Equal(t, "p", s.prefix)
}
