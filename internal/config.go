package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/bolt/thumbs/internal/domain"
	"github.com/bolt/thumbs/internal/storage"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Routing
	MountPrefix string // Path prefix for thumbnail routes

	// Storage roots, searched in Filesystems order
	StorageRoots []RootConfig
	Filesystems  []string

	// Fallback images as "root://path" references
	NotFoundImage string
	ErrorImage    string

	// Thumbnail behavior
	DefaultImageSize domain.Dimensions
	MaxDimension     int // Largest width or height served, after @2x
	BrowserCacheTime time.Duration // Cache-Control max-age and cache TTL
	AllowUpscale     bool
	Quality          int
	ExifOrientation  bool
	Background       domain.Color
	OnlyAliases      bool
	AliasesFile      string

	// Static save
	SaveFiles         bool
	StaticRoot        string
	StaticSaveWorkers int // 0 saves inline
	StaticSaveQueue   int

	// Cache Configuration
	CacheDriver          string // "void", "memory", "disk" or "postgres"
	CacheDir             string
	CacheMaxMB           int
	CacheCleanupInterval time.Duration
	CacheMemoryEntries   int

	// R2 Storage (object storage roots)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2Endpoint        string // Optional, overrides the account endpoint

	// Rate limiting per client IP; 0 disables
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

// RootConfig describes one named storage root.
type RootConfig struct {
	Name     string
	Provider string // storage.ProviderLocal or storage.ProviderR2
	Path     string // Local base path
	Bucket   string // R2 bucket
	Prefix   string // R2 key prefix
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:         getEnv("ENV", "development"),
		Port:        getEnvInt("PORT", 8080),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseUrl: getEnv("DATABASE_URL", ""),

		MountPrefix: "/" + strings.Trim(getEnv("THUMBS_MOUNT_PREFIX", "/thumbs"), "/"),

		NotFoundImage: getEnv("THUMBS_NOTFOUND_IMAGE", ""),
		ErrorImage:    getEnv("THUMBS_ERROR_IMAGE", ""),

		MaxDimension:     getEnvInt("THUMBS_MAX_DIMENSION", 5000),
		BrowserCacheTime: getEnvDuration("THUMBS_BROWSER_CACHE_TIME", 30*24*time.Hour),
		AllowUpscale:     getEnvBool("THUMBS_ALLOW_UPSCALE", false),
		Quality:          getEnvInt("THUMBS_QUALITY", 80),
		ExifOrientation:  getEnvBool("THUMBS_EXIF_ORIENTATION", true),
		OnlyAliases:      getEnvBool("THUMBS_ONLY_ALIASES", false),
		AliasesFile:      getEnv("THUMBS_ALIASES_FILE", ""),

		SaveFiles:         getEnvBool("THUMBS_SAVE_FILES", false),
		StaticRoot:        getEnv("THUMBS_STATIC_ROOT", "./public"),
		StaticSaveWorkers: getEnvInt("STATIC_SAVE_WORKERS", 2),
		StaticSaveQueue:   getEnvInt("STATIC_SAVE_QUEUE", 64),

		CacheDriver:          getEnv("CACHE_DRIVER", "memory"),
		CacheDir:             getEnv("CACHE_DIR", "./cache"),
		CacheMaxMB:           getEnvInt("CACHE_MAX_MB", 512),
		CacheCleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 30*time.Minute),
		CacheMemoryEntries:   getEnvInt("CACHE_MEMORY_ENTRIES", 512),

		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2Endpoint:        getEnv("R2_ENDPOINT", ""),

		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	if cfg.MountPrefix == "/" {
		cfg.MountPrefix = ""
	}

	var err error

	cfg.StorageRoots, err = parseRoots(getEnv("STORAGE_ROOTS", "files=./files"))
	if err != nil {
		return nil, fmt.Errorf("STORAGE_ROOTS: %w", err)
	}
	cfg.Filesystems = splitList(getEnv("THUMBS_FILESYSTEMS", ""))

	cfg.DefaultImageSize, err = domain.ParseSize(getEnv("THUMBS_DEFAULT_IMAGE_SIZE", "1000x750"))
	if err != nil {
		return nil, fmt.Errorf("THUMBS_DEFAULT_IMAGE_SIZE: %w", err)
	}

	cfg.Background, err = domain.ParseHexColor(getEnv("THUMBS_BACKGROUND", "#ffffff"))
	if err != nil {
		return nil, fmt.Errorf("THUMBS_BACKGROUND: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks cross-field requirements.
func (c *Config) validate() error {
	// Fallback images
	if c.NotFoundImage == "" {
		return fmt.Errorf("THUMBS_NOTFOUND_IMAGE is required")
	}
	if c.ErrorImage == "" {
		return fmt.Errorf("THUMBS_ERROR_IMAGE is required")
	}
	for _, ref := range []string{c.NotFoundImage, c.ErrorImage} {
		mount, _, err := storage.ParseRef(ref)
		if err != nil {
			return fmt.Errorf("invalid image reference %q: expected root://path", ref)
		}
		if !c.hasRoot(mount) {
			return fmt.Errorf("image reference %q names unknown root %q", ref, mount)
		}
	}

	for _, name := range c.Filesystems {
		if !c.hasRoot(name) {
			return fmt.Errorf("THUMBS_FILESYSTEMS names unknown root %q", name)
		}
	}

	// Validate R2 roots
	for _, root := range c.StorageRoots {
		if root.Provider != storage.ProviderR2 {
			continue
		}
		if c.R2AccountID == "" && c.R2Endpoint == "" {
			return fmt.Errorf("R2_ACCOUNT_ID or R2_ENDPOINT is required for root %q", root.Name)
		}
		if c.R2AccessKeyID == "" {
			return fmt.Errorf("R2_ACCESS_KEY_ID is required for root %q", root.Name)
		}
		if c.R2SecretAccessKey == "" {
			return fmt.Errorf("R2_SECRET_ACCESS_KEY is required for root %q", root.Name)
		}
	}

	// Validate cache configuration
	switch c.CacheDriver {
	case "void", "memory", "disk":
	case "postgres":
		if c.DatabaseUrl == "" {
			return fmt.Errorf("DATABASE_URL is required when CACHE_DRIVER is 'postgres'")
		}
	default:
		return fmt.Errorf("CACHE_DRIVER must be one of 'void', 'memory', 'disk' or 'postgres', got: %s", c.CacheDriver)
	}

	if c.Quality < 0 || c.Quality > 100 {
		return fmt.Errorf("THUMBS_QUALITY must be between 0 and 100, got: %d", c.Quality)
	}
	if c.MaxDimension <= 0 {
		return fmt.Errorf("THUMBS_MAX_DIMENSION must be positive, got: %d", c.MaxDimension)
	}
	if c.DefaultImageSize.Width > c.MaxDimension || c.DefaultImageSize.Height > c.MaxDimension {
		return fmt.Errorf("THUMBS_DEFAULT_IMAGE_SIZE %s exceeds THUMBS_MAX_DIMENSION %d", c.DefaultImageSize, c.MaxDimension)
	}
	if c.StaticSaveWorkers < 0 {
		return fmt.Errorf("STATIC_SAVE_WORKERS must not be negative, got: %d", c.StaticSaveWorkers)
	}
	if c.RateLimitRequests < 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must not be negative, got: %d", c.RateLimitRequests)
	}
	if c.RateLimitRequests > 0 && c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive when RATE_LIMIT_REQUESTS is set, got: %s", c.RateLimitWindow)
	}

	return nil
}

func (c *Config) hasRoot(name string) bool {
	for _, root := range c.StorageRoots {
		if root.Name == name {
			return true
		}
	}
	return false
}

// parseRoots parses "name=path" and "name=r2://bucket/prefix" entries.
func parseRoots(value string) ([]RootConfig, error) {
	var roots []RootConfig
	seen := make(map[string]bool)

	for _, entry := range splitList(value) {
		name, target, ok := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		target = strings.TrimSpace(target)
		if !ok || name == "" || target == "" {
			return nil, fmt.Errorf("invalid root %q: expected name=path", entry)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate root %q", name)
		}
		seen[name] = true

		if rest, isR2 := strings.CutPrefix(target, "r2://"); isR2 {
			bucket, prefix, _ := strings.Cut(rest, "/")
			if bucket == "" {
				return nil, fmt.Errorf("invalid root %q: missing bucket", entry)
			}
			roots = append(roots, RootConfig{Name: name, Provider: storage.ProviderR2, Bucket: bucket, Prefix: prefix})
			continue
		}

		roots = append(roots, RootConfig{Name: name, Provider: storage.ProviderLocal, Path: target})
	}

	if len(roots) == 0 {
		return nil, fmt.Errorf("at least one storage root is required")
	}
	return roots, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
