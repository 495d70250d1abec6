package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolt/thumbs/internal/domain"
	"github.com/bolt/thumbs/internal/storage"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	// Run from a temp dir so a developer .env is never picked up.
	t.Chdir(t.TempDir())
	t.Setenv("STORAGE_ROOTS", "files=./files,theme=./theme")
	t.Setenv("THUMBS_NOTFOUND_IMAGE", "theme://img/default.png")
	t.Setenv("THUMBS_ERROR_IMAGE", "theme://img/error.png")
}

func TestNewConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/thumbs", cfg.MountPrefix)
	assert.Equal(t, domain.Dimensions{Width: 1000, Height: 750}, cfg.DefaultImageSize)
	assert.Equal(t, 2592000*time.Second, cfg.BrowserCacheTime)
	assert.Equal(t, domain.White(), cfg.Background)
	assert.Equal(t, 80, cfg.Quality)
	assert.True(t, cfg.ExifOrientation)
	assert.False(t, cfg.AllowUpscale)
	assert.False(t, cfg.OnlyAliases)
	assert.Equal(t, "memory", cfg.CacheDriver)
	assert.Equal(t, 2, cfg.StaticSaveWorkers)
	assert.Equal(t, 5000, cfg.MaxDimension)
	assert.Empty(t, cfg.Filesystems)

	require.Len(t, cfg.StorageRoots, 2)
	assert.Equal(t, RootConfig{Name: "files", Provider: storage.ProviderLocal, Path: "./files"}, cfg.StorageRoots[0])
}

func TestNewConfig_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("THUMBS_MOUNT_PREFIX", "img/")
	t.Setenv("THUMBS_DEFAULT_IMAGE_SIZE", "640x480")
	t.Setenv("THUMBS_BACKGROUND", "000000")
	t.Setenv("THUMBS_FILESYSTEMS", "theme, files")
	t.Setenv("THUMBS_ALLOW_UPSCALE", "true")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "/img", cfg.MountPrefix)
	assert.Equal(t, domain.Dimensions{Width: 640, Height: 480}, cfg.DefaultImageSize)
	assert.Equal(t, domain.Black(), cfg.Background)
	assert.Equal(t, []string{"theme", "files"}, cfg.Filesystems)
	assert.True(t, cfg.AllowUpscale)
}

func TestNewConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing not-found image", map[string]string{"THUMBS_NOTFOUND_IMAGE": ""}},
		{"bad image reference", map[string]string{"THUMBS_ERROR_IMAGE": "img/error.png"}},
		{"unknown image root", map[string]string{"THUMBS_ERROR_IMAGE": "other://error.png"}},
		{"unknown filesystem", map[string]string{"THUMBS_FILESYSTEMS": "files,nowhere"}},
		{"bad background", map[string]string{"THUMBS_BACKGROUND": "#zzzzzz"}},
		{"bad default size", map[string]string{"THUMBS_DEFAULT_IMAGE_SIZE": "wide"}},
		{"unknown cache driver", map[string]string{"CACHE_DRIVER": "redis"}},
		{"postgres without database", map[string]string{"CACHE_DRIVER": "postgres"}},
		{"quality out of range", map[string]string{"THUMBS_QUALITY": "101"}},
		{"r2 root without credentials", map[string]string{"STORAGE_ROOTS": "files=./files,theme=r2://bucket/theme"}},
		{"duplicate root", map[string]string{"STORAGE_ROOTS": "theme=./a,theme=./b"}},
		{"zero rate limit window", map[string]string{"RATE_LIMIT_REQUESTS": "10", "RATE_LIMIT_WINDOW": "0s"}},
		{"negative rate limit window", map[string]string{"RATE_LIMIT_REQUESTS": "10", "RATE_LIMIT_WINDOW": "-1m"}},
		{"zero max dimension", map[string]string{"THUMBS_MAX_DIMENSION": "0"}},
		{"default size over max dimension", map[string]string{"THUMBS_MAX_DIMENSION": "800"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := NewConfig()
			assert.Error(t, err)
		})
	}
}

func TestNewConfig_RateLimitWindowIgnoredWhenDisabled(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RATE_LIMIT_REQUESTS", "0")
	t.Setenv("RATE_LIMIT_WINDOW", "0s")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Zero(t, cfg.RateLimitRequests)
}

func TestParseRoots(t *testing.T) {
	roots, err := parseRoots("files=./files, media=r2://assets/site/media ,bare=r2://assets")
	require.NoError(t, err)

	assert.Equal(t, []RootConfig{
		{Name: "files", Provider: storage.ProviderLocal, Path: "./files"},
		{Name: "media", Provider: storage.ProviderR2, Bucket: "assets", Prefix: "site/media"},
		{Name: "bare", Provider: storage.ProviderR2, Bucket: "assets"},
	}, roots)

	for _, bad := range []string{"", "files", "=./files", "media=r2://"} {
		_, err := parseRoots(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

// =============================================================================
// Alias Tests
// =============================================================================

func TestParseAliases(t *testing.T) {
	aliases, err := ParseAliases([]byte(`
small:
  size: [200, 150]
  cropping: border
wide:
  size: [800]
plain: {}
`))
	require.NoError(t, err)

	size, mode, ok := aliases.Lookup("small")
	require.True(t, ok)
	assert.Equal(t, domain.Dimensions{Width: 200, Height: 150}, size)
	assert.Equal(t, domain.ModeBorder, mode)

	size, mode, ok = aliases.Lookup("wide")
	require.True(t, ok)
	assert.Equal(t, domain.Dimensions{Width: 800}, size)
	assert.Equal(t, domain.ModeCrop, mode)

	size, _, ok = aliases.Lookup("plain")
	require.True(t, ok)
	assert.True(t, size.IsZero())

	_, _, ok = aliases.Lookup("missing")
	assert.False(t, ok)
}

func TestParseAliases_Invalid(t *testing.T) {
	for _, doc := range []string{
		"a: {size: [1, 2, 3]}",
		"a: {size: [-1, 2]}",
		"a: {cropping: stretch}",
		"a: [not, a, map]",
	} {
		_, err := ParseAliases([]byte(doc))
		assert.Error(t, err, doc)
	}
}

func TestLoadAliases(t *testing.T) {
	aliases, err := LoadAliases("")
	require.NoError(t, err)
	assert.Empty(t, aliases)

	path := filepath.Join(t.TempDir(), "aliases.yml")
	require.NoError(t, os.WriteFile(path, []byte("thumb: {size: [100, 100]}\n"), 0644))

	aliases, err = LoadAliases(path)
	require.NoError(t, err)
	assert.Contains(t, aliases, "thumb")

	_, err = LoadAliases(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
