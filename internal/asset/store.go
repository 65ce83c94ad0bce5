// Package asset stores wallet logo and cover images and hands back their
// public URLs.
package asset

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/walletsvc/wallet_service/internal/config"
)

// Store writes an object and returns the URL it is served from.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ObjectKey derives a content-addressed key under prefix. Identical uploads
// map to the same key.
func ObjectKey(prefix string, data []byte, contentType string) string {
	sum := blake2b.Sum256(data)
	ext := extensions[strings.ToLower(contentType)]
	return fmt.Sprintf("%s/%s%s", strings.Trim(prefix, "/"), hex.EncodeToString(sum[:]), ext)
}

// IsImage reports whether contentType is an accepted image type.
func IsImage(contentType string) bool {
	_, ok := extensions[strings.ToLower(contentType)]
	return ok
}

// New selects the backend named in cfg.
func New(ctx context.Context, cfg config.AssetsConfig) (Store, error) {
	switch cfg.Backend {
	case "s3":
		return NewS3Store(ctx, cfg)
	case "disk", "":
		return NewDiskStore(cfg.Dir, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown asset backend %q", cfg.Backend)
	}
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
