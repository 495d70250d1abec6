// Package handler contains the HTTP handlers for the thumbnail service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bolt/thumbs/internal/domain"
)

var (
	// sizePattern matches "{width}x{height}{action}" segments.
	sizePattern = regexp.MustCompile(`^(\d+)x(\d+)([a-z]?)$`)

	// aliasPattern matches alias names.
	aliasPattern = regexp.MustCompile(`^[\w-]+$`)
)

// =============================================================================
// Dependencies
// =============================================================================

// Responder produces the thumbnail for a transaction.
type Responder interface {
	Respond(ctx context.Context, tx domain.Transaction) (domain.Thumbnail, error)
}

// AliasLookup resolves a named size.
type AliasLookup interface {
	Lookup(name string) (domain.Dimensions, domain.Mode, bool)
}

// ThumbnailConfig holds the request-independent thumbnail settings.
type ThumbnailConfig struct {
	// DefaultImage is served for unknown aliases.
	DefaultImage     domain.Image
	DefaultImageSize domain.Dimensions

	// CacheTTL sets Cache-Control max-age. Zero sends no header.
	CacheTTL time.Duration

	// MaxDimension caps the requested width and height, after "@2x"
	// doubling. Zero disables the check.
	MaxDimension int

	OnlyAliases  bool
	AllowUpscale bool
	Background   domain.Color
}

// =============================================================================
// Handler
// =============================================================================

// ThumbnailHandler serves thumbnails by size or alias.
type ThumbnailHandler struct {
	responder Responder
	aliases   AliasLookup
	config    ThumbnailConfig
	logger    *slog.Logger
}

// NewThumbnailHandler creates a new ThumbnailHandler.
func NewThumbnailHandler(responder Responder, aliases AliasLookup, config ThumbnailConfig, logger *slog.Logger) *ThumbnailHandler {
	return &ThumbnailHandler{
		responder: responder,
		aliases:   aliases,
		config:    config,
		logger:    logger,
	}
}

// RegisterRoutes registers the thumbnail routes.
//
// Routes:
// - GET /{width}x{height}{action}/{file...} -> sized thumbnail
// - GET /{alias}/{file...}                  -> aliased thumbnail
func (h *ThumbnailHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{segment}/*", h.Serve)
}

// Serve dispatches on the first path segment.
func (h *ThumbnailHandler) Serve(w http.ResponseWriter, r *http.Request) {
	segment := chi.URLParam(r, "segment")
	file := chi.URLParam(r, "*")
	if file == "" {
		NotFoundResponse(w, r, h.logger)
		return
	}

	if m := sizePattern.FindStringSubmatch(segment); m != nil {
		if h.config.OnlyAliases {
			ForbiddenResponse(w, r, h.logger)
			return
		}

		size, err := domain.ParseDimensions(m[1], m[2])
		if err != nil {
			ErrorResponse(w, r, h.logger, domain.Invalid("thumbnail.serve", "Invalid thumbnail size"))
			return
		}

		h.serve(w, r, file, domain.ModeFromLetter(m[3]), size)
		return
	}

	if aliasPattern.MatchString(segment) {
		size, mode, ok := h.aliases.Lookup(segment)
		if !ok {
			h.serveDefault(w, r)
			return
		}

		h.serve(w, r, file, mode, size)
		return
	}

	NotFoundResponse(w, r, h.logger)
}

// serve builds the transaction for file and writes the thumbnail. "@2x"
// in the file name doubles both dimensions.
func (h *ThumbnailHandler) serve(w http.ResponseWriter, r *http.Request, file string, mode domain.Mode, size domain.Dimensions) {
	factor := 1
	if strings.Contains(file, "@2x") {
		file = strings.ReplaceAll(file, "@2x", "")
		factor = 2
	}

	if !h.withinLimit(size, factor) {
		ErrorResponse(w, r, h.logger, domain.Invalid("thumbnail.serve", "Thumbnail size exceeds the maximum"))
		return
	}
	size = size.Scale(factor)

	tx := domain.NewTransaction(file, mode, size, r.URL.Path)
	h.respond(w, r, tx)
}

// withinLimit reports whether size scaled by factor stays within
// MaxDimension. It compares before multiplying so huge sizes cannot overflow.
func (h *ThumbnailHandler) withinLimit(size domain.Dimensions, factor int) bool {
	limit := h.config.MaxDimension
	if limit <= 0 {
		return true
	}
	return size.Width <= limit/factor && size.Height <= limit/factor
}

// serveDefault renders the default image at the default size.
func (h *ThumbnailHandler) serveDefault(w http.ResponseWriter, r *http.Request) {
	img := h.config.DefaultImage
	if img == nil {
		NotFoundResponse(w, r, h.logger)
		return
	}

	tx := domain.NewTransaction(img.Path(), domain.ModeCrop, h.config.DefaultImageSize, r.URL.Path).
		WithSource(img)
	h.respond(w, r, tx)
}

func (h *ThumbnailHandler) respond(w http.ResponseWriter, r *http.Request, tx domain.Transaction) {
	tx = tx.WithUpscale(h.config.AllowUpscale).WithBackground(h.config.Background)

	thumb, err := h.responder.Respond(r.Context(), tx)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", thumb.MIMEType())
	w.Header().Set("Content-Length", strconv.Itoa(len(thumb.Data)))
	if seconds := int(h.config.CacheTTL / time.Second); seconds > 0 {
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(seconds))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(thumb.Data); err != nil {
		h.logger.Debug("failed to write thumbnail", "path", r.URL.Path, "error", err)
	}
}
