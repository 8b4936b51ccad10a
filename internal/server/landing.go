package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/insky7/txcrimemap/internal/blob"
)

// Landing serves the landing page and logo, caching them on local disk after
// the first blob-store fetch. Asset files on disk are served as-is; the blob
// store is only consulted when a file is missing.
type Landing struct {
	blobs   blob.Getter
	bucket  string
	pageKey string
	logoKey string
	dir     string
}

// NewLanding creates the landing asset handler.
func NewLanding(blobs blob.Getter, bucket, pageKey, logoKey, dir string) *Landing {
	return &Landing{
		blobs:   blobs,
		bucket:  bucket,
		pageKey: pageKey,
		logoKey: logoKey,
		dir:     dir,
	}
}

// ServePage serves the landing page HTML, fetching and caching it (plus the
// logo it references) when not yet on disk. A failed fetch is a 404, matching
// the rest of the "nothing to show" surface.
func (l *Landing) ServePage(w http.ResponseWriter, r *http.Request) {
	data, err := l.asset(r.Context(), l.pageKey)
	if err != nil {
		zap.L().Error("landing page unavailable", zap.Error(err))
		http.NotFound(w, r)
		return
	}

	// Warm the logo cache so the page's image loads from disk next.
	if _, err := l.asset(r.Context(), l.logoKey); err != nil {
		zap.L().Warn("logo unavailable", zap.Error(err))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ServeLogo serves the cached logo image.
func (l *Landing) ServeLogo(w http.ResponseWriter, r *http.Request) {
	data, err := l.asset(r.Context(), l.logoKey)
	if err != nil {
		zap.L().Error("logo unavailable", zap.Error(err))
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// asset returns the named asset, from disk if cached, otherwise from the blob
// store. A failed disk write is logged but does not fail the request; the
// fetched bytes are still served.
func (l *Landing) asset(ctx context.Context, key string) ([]byte, error) {
	path := filepath.Join(l.dir, filepath.Base(key))
	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	}

	data, err := blob.Fetch(ctx, l.blobs, l.bucket, key)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		zap.L().Warn("create asset dir", zap.String("dir", l.dir), zap.Error(err))
		return data, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		zap.L().Warn("cache asset to disk", zap.String("path", path), zap.Error(err))
	}
	return data, nil
}
