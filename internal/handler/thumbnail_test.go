package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolt/thumbs/internal/domain"
)

// =============================================================================
// Test Doubles
// =============================================================================

type fakeImage struct{ path, mime string }

func (f fakeImage) Path() string { return f.path }

func (f fakeImage) MIMEType() string { return f.mime }

func (f fakeImage) Read(context.Context) ([]byte, error) { return nil, nil }

// fakeResponder records the last transaction.
type fakeResponder struct {
	last  domain.Transaction
	calls int
	err   error
}

func (f *fakeResponder) Respond(_ context.Context, tx domain.Transaction) (domain.Thumbnail, error) {
	f.last = tx
	f.calls++
	if f.err != nil {
		return domain.Thumbnail{}, f.err
	}
	img := tx.Source()
	if img == nil {
		img = fakeImage{path: tx.FilePath(), mime: "image/jpeg"}
	}
	return domain.Thumbnail{Image: img, Data: []byte("thumbdata")}, nil
}

type fakeAliases map[string]struct {
	size domain.Dimensions
	mode domain.Mode
}

func (f fakeAliases) Lookup(name string) (domain.Dimensions, domain.Mode, bool) {
	a, ok := f[name]
	return a.size, a.mode, ok
}

var testAliases = fakeAliases{
	"small": {domain.Dimensions{Width: 200, Height: 150}, domain.ModeBorder},
}

var defaultImage = fakeImage{path: "img/default.png", mime: "image/png"}

func newTestServer(responder Responder, mutate func(*ThumbnailConfig)) http.Handler {
	cfg := ThumbnailConfig{
		DefaultImage:     defaultImage,
		DefaultImageSize: domain.Dimensions{Width: 1000, Height: 750},
		CacheTTL:         time.Hour,
		MaxDimension:     5000,
		Background:       domain.White(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	h := NewThumbnailHandler(responder, testAliases, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Route("/thumbs", h.RegisterRoutes)
	return r
}

func get(t *testing.T, srv http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

// =============================================================================
// Routing Tests
// =============================================================================

func TestThumbnailHandler_SizedRoutes(t *testing.T) {
	tests := []struct {
		path     string
		wantFile string
		wantMode domain.Mode
		wantSize domain.Dimensions
	}{
		{"/thumbs/100x80/cat.jpg", "cat.jpg", domain.ModeCrop, domain.Dimensions{Width: 100, Height: 80}},
		{"/thumbs/100x80c/cat.jpg", "cat.jpg", domain.ModeCrop, domain.Dimensions{Width: 100, Height: 80}},
		{"/thumbs/100x80r/2024/05/cat.jpg", "2024/05/cat.jpg", domain.ModeResize, domain.Dimensions{Width: 100, Height: 80}},
		{"/thumbs/100x80b/cat.jpg", "cat.jpg", domain.ModeBorder, domain.Dimensions{Width: 100, Height: 80}},
		{"/thumbs/100x80f/cat.jpg", "cat.jpg", domain.ModeFit, domain.Dimensions{Width: 100, Height: 80}},
		{"/thumbs/100x80z/cat.jpg", "cat.jpg", domain.ModeCrop, domain.Dimensions{Width: 100, Height: 80}},
		{"/thumbs/0x200/cat.jpg", "cat.jpg", domain.ModeCrop, domain.Dimensions{Height: 200}},
		{"/thumbs/100x80/cat@2x.jpg", "cat.jpg", domain.ModeCrop, domain.Dimensions{Width: 200, Height: 160}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			responder := &fakeResponder{}
			rec := get(t, newTestServer(responder, nil), tt.path)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantFile, responder.last.FilePath())
			assert.Equal(t, tt.wantMode, responder.last.Mode())
			assert.Equal(t, tt.wantSize, responder.last.Target())
			assert.Equal(t, tt.path, responder.last.RequestPath())
			assert.Nil(t, responder.last.Source(), "source is resolved by the responder")
		})
	}
}

func TestThumbnailHandler_ResponseHeaders(t *testing.T) {
	rec := get(t, newTestServer(&fakeResponder{}, nil), "/thumbs/10x10/cat.jpg")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "9", rec.Header().Get("Content-Length"))
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "thumbdata", rec.Body.String())
}

func TestThumbnailHandler_NoCacheControlWithoutTTL(t *testing.T) {
	srv := newTestServer(&fakeResponder{}, func(c *ThumbnailConfig) { c.CacheTTL = 0 })
	rec := get(t, srv, "/thumbs/10x10/cat.jpg")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Cache-Control"))
}

func TestThumbnailHandler_AppliesConfig(t *testing.T) {
	responder := &fakeResponder{}
	srv := newTestServer(responder, func(c *ThumbnailConfig) {
		c.AllowUpscale = true
		c.Background = domain.Black()
	})

	rec := get(t, srv, "/thumbs/10x10b/cat.jpg")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, responder.last.Upscale())
	assert.Equal(t, domain.Black(), responder.last.Background())
}

func TestThumbnailHandler_Alias(t *testing.T) {
	responder := &fakeResponder{}
	rec := get(t, newTestServer(responder, nil), "/thumbs/small/photos/cat@2x.png")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "photos/cat.png", responder.last.FilePath())
	assert.Equal(t, domain.ModeBorder, responder.last.Mode())
	assert.Equal(t, domain.Dimensions{Width: 400, Height: 300}, responder.last.Target())
}

func TestThumbnailHandler_UnknownAliasServesDefault(t *testing.T) {
	responder := &fakeResponder{}
	rec := get(t, newTestServer(responder, nil), "/thumbs/huge/cat.jpg")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, domain.ModeCrop, responder.last.Mode())
	assert.Equal(t, domain.Dimensions{Width: 1000, Height: 750}, responder.last.Target())
	assert.Equal(t, defaultImage, responder.last.Source())
	assert.Equal(t, "/thumbs/huge/cat.jpg", responder.last.RequestPath())
}

func TestThumbnailHandler_OnlyAliases(t *testing.T) {
	responder := &fakeResponder{}
	srv := newTestServer(responder, func(c *ThumbnailConfig) { c.OnlyAliases = true })

	rec := get(t, srv, "/thumbs/100x100c/cat.jpg")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, responder.calls)

	rec = get(t, srv, "/thumbs/small/cat.jpg")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestThumbnailHandler_NotFound(t *testing.T) {
	responder := &fakeResponder{}
	srv := newTestServer(responder, nil)

	for _, path := range []string{"/thumbs/bad.name/cat.jpg", "/thumbs/100x100/", "/elsewhere/100x100/cat.jpg"} {
		rec := get(t, srv, path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
	assert.Zero(t, responder.calls)
}

func TestThumbnailHandler_OversizedDimension(t *testing.T) {
	rec := get(t, newTestServer(&fakeResponder{}, nil), "/thumbs/99999999999999999999x1/cat.jpg")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestThumbnailHandler_MaxDimension(t *testing.T) {
	tests := []struct {
		path string
		want int
	}{
		{"/thumbs/5000x5000c/cat.jpg", http.StatusOK},
		{"/thumbs/5001x10c/cat.jpg", http.StatusBadRequest},
		{"/thumbs/10x99999c/cat.jpg", http.StatusBadRequest},
		{"/thumbs/2500x2500c/cat@2x.jpg", http.StatusOK},
		{"/thumbs/2501x10c/cat@2x.jpg", http.StatusBadRequest},
		{"/thumbs/4611686018427387904x1c/cat@2x.jpg", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			responder := &fakeResponder{}
			srv := newTestServer(responder, func(c *ThumbnailConfig) { c.AllowUpscale = true })

			rec := get(t, srv, tt.path)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want != http.StatusOK {
				assert.Zero(t, responder.calls)
			}
		})
	}
}

func TestThumbnailHandler_MaxDimensionAppliesToAliases(t *testing.T) {
	responder := &fakeResponder{}
	srv := newTestServer(responder, func(c *ThumbnailConfig) { c.MaxDimension = 300 })

	// "small" is 200x150 and doubles to 400x300.
	rec := get(t, srv, "/thumbs/small/cat.jpg")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, srv, "/thumbs/small/cat@2x.jpg")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, responder.calls)
}

func TestThumbnailHandler_ZeroMaxDimensionIsUnlimited(t *testing.T) {
	responder := &fakeResponder{}
	srv := newTestServer(responder, func(c *ThumbnailConfig) { c.MaxDimension = 0 })

	rec := get(t, srv, "/thumbs/20000x20000c/cat.jpg")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.Dimensions{Width: 20000, Height: 20000}, responder.last.Target())
}

// =============================================================================
// Error Response Tests
// =============================================================================

func TestThumbnailHandler_FatalErrorIsGeneric500(t *testing.T) {
	fatal := domain.Internal(
		errors.Join(domain.ErrFallbackFailed, errors.New("open /srv/files/secret.jpg: permission denied")),
		"creator.create",
		"both images failed",
	)
	srv := newTestServer(&fakeResponder{err: fatal}, nil)

	rec := get(t, srv, "/thumbs/10x10/cat.jpg")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "/srv/files")
	assert.NotContains(t, rec.Body.String(), "creator.create")
}

func TestErrorResponse_JSON(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	req := httptest.NewRequest(http.MethodGet, "/thumbs/10x10/a.jpg", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, logger, domain.Forbidden("thumbnail.serve", "Only aliases are allowed"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body JSONError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, domain.EFORBIDDEN, body.Error.Code)
	assert.Equal(t, "Only aliases are allowed", body.Error.Message)
}

func TestErrorCodeToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ErrorCodeToHTTPStatus(domain.EINVALID))
	assert.Equal(t, http.StatusForbidden, ErrorCodeToHTTPStatus(domain.EFORBIDDEN))
	assert.Equal(t, http.StatusNotFound, ErrorCodeToHTTPStatus(domain.ENOTFOUND))
	assert.Equal(t, http.StatusInternalServerError, ErrorCodeToHTTPStatus(domain.EINTERNAL))
	assert.Equal(t, http.StatusInternalServerError, ErrorCodeToHTTPStatus("unknown"))
}

func TestInternalErrorResponse_HidesDetails(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := httptest.NewRecorder()

	InternalErrorResponse(rec, httptest.NewRequest(http.MethodGet, "/", nil), logger, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, strings.Contains(rec.Body.String(), "pq"))
}
