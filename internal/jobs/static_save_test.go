package jobs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolt/thumbs/internal/service"
	"github.com/bolt/thumbs/internal/storage"
	"github.com/bolt/thumbs/internal/worker"
)

func newHandler(t *testing.T) (*StaticSaveHandler, string) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	root := t.TempDir()
	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: root}, logger)
	require.NoError(t, err)

	return NewStaticSaveHandler(service.NewStaticWriter(store, logger), logger), root
}

func TestStaticSaveHandler_Type(t *testing.T) {
	h, _ := newHandler(t)
	assert.Equal(t, worker.JobTypeStaticSave, h.Type())
}

func TestStaticSaveHandler_WritesFile(t *testing.T) {
	h, root := newHandler(t)

	err := h.Handle(context.Background(), worker.StaticSavePayload{
		Path:        "/thumbs/100x100c/2024/cat.jpg",
		ContentType: "image/jpeg",
		Data:        []byte{0xff, 0xd8, 0xff},
	})
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(root, "thumbs", "100x100c", "2024", "cat.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, got)
}

func TestStaticSaveHandler_OverwritesExisting(t *testing.T) {
	h, root := newHandler(t)
	p := worker.StaticSavePayload{Path: "/thumbs/small/cat.png", ContentType: "image/png"}

	p.Data = []byte("first")
	require.NoError(t, h.Handle(context.Background(), p))
	p.Data = []byte("second")
	require.NoError(t, h.Handle(context.Background(), p))

	got, err := os.ReadFile(filepath.Join(root, "thumbs", "small", "cat.png"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestStaticSaveHandler_AcceptsPointerPayload(t *testing.T) {
	h, root := newHandler(t)

	err := h.Handle(context.Background(), &worker.StaticSavePayload{
		Path:        "/thumbs/5x5/dog.gif",
		ContentType: "image/gif",
		Data:        []byte("GIF89a"),
	})
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(root, "thumbs", "5x5", "dog.gif"))
	require.NoError(t, err)
	assert.Equal(t, "GIF89a", string(got))
}

func TestStaticSaveHandler_PermanentFailures(t *testing.T) {
	h, _ := newHandler(t)

	tests := []struct {
		name    string
		payload any
	}{
		{"wrong payload type", []byte(`{"path":"/thumbs/a.png"}`)},
		{"nil payload", nil},
		{"nil pointer payload", (*worker.StaticSavePayload)(nil)},
		{"empty path", worker.StaticSavePayload{ContentType: "image/png", Data: []byte("x")}},
		{"not an image", worker.StaticSavePayload{Path: "/thumbs/a.html", ContentType: "text/html", Data: []byte("x")}},
		{"escapes root", worker.StaticSavePayload{Path: "/../../etc/cat.png", ContentType: "image/png", Data: []byte("x")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.Handle(context.Background(), tt.payload)
			require.Error(t, err)
			assert.True(t, worker.IsPermanent(err), "expected permanent error, got %v", err)
		})
	}
}

func TestStaticSaveHandler_CanceledContextIsRetryable(t *testing.T) {
	h, _ := newHandler(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.Handle(ctx, worker.StaticSavePayload{
		Path:        "/thumbs/10x10/a.png",
		ContentType: "image/png",
		Data:        []byte("x"),
	})
	require.Error(t, err)
	assert.False(t, worker.IsPermanent(err))
}
