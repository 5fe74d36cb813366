package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// IsAbsoluteURL reports whether ref already carries an http or https scheme.
func IsAbsoluteURL(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// PublicURLResolver joins bare keys onto the public bucket URL.
type PublicURLResolver struct {
	Base string
}

var _ URLResolver = PublicURLResolver{}

func (p PublicURLResolver) Resolve(_ context.Context, ref string) (string, error) {
	if p.Base == "" {
		return "", errors.New("no public base url configured")
	}
	key := strings.TrimLeft(ref, "/")
	if key == "" {
		return "", errors.New("empty storage key")
	}
	return strings.TrimRight(p.Base, "/") + "/" + escapeKey(key), nil
}

// SignedURLResolver issues a presigned GET for every bare key.
type SignedURLResolver struct {
	Signer URLSigner
	TTL    time.Duration
}

var _ URLResolver = SignedURLResolver{}

func (s SignedURLResolver) Resolve(ctx context.Context, ref string) (string, error) {
	key := strings.TrimLeft(ref, "/")
	if key == "" {
		return "", errors.New("empty storage key")
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	u, err := s.Signer.PresignGet(ctx, key, ttl)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return u, nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// KeyFromURL recovers the storage key a record field points at. Bare keys are
// returned as-is. Absolute URLs are accepted under base or in the B2 native
// download form .../file/{bucket}/{key}.
func KeyFromURL(ref, base string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	if !IsAbsoluteURL(ref) {
		return strings.TrimLeft(ref, "/"), true
	}

	if base != "" {
		prefix := strings.TrimRight(base, "/") + "/"
		if strings.HasPrefix(ref, prefix) {
			return unescapeKey(stripQuery(strings.TrimPrefix(ref, prefix)))
		}
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if rest, ok := strings.CutPrefix(u.Path, "/file/"); ok {
		if _, key, ok := strings.Cut(rest, "/"); ok && key != "" {
			return key, true
		}
	}
	return "", false
}

func stripQuery(s string) string {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		return s[:i]
	}
	return s
}

func unescapeKey(s string) (string, bool) {
	key, err := url.PathUnescape(s)
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

// normalizeURL trims a URL field and resolves it when it is a bare key. Fields
// that are empty or fail to resolve come back nil.
func normalizeURL(ctx context.Context, resolver URLResolver, field *string, log *slog.Logger) *string {
	if field == nil {
		return nil
	}
	ref := strings.TrimSpace(*field)
	if ref == "" {
		return nil
	}
	if IsAbsoluteURL(ref) {
		return &ref
	}
	if resolver == nil {
		log.Warn("no url resolver configured", "ref", ref)
		return nil
	}
	resolved, err := resolver.Resolve(ctx, ref)
	if err != nil {
		log.Warn("failed to resolve storage url", "ref", ref, "error", err)
		return nil
	}
	return &resolved
}
