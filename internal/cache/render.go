// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// render.go provides a Valkey-backed cache of rendered certificate files
// (L2). Keys embed the template ID and version, so an edited template
// naturally misses; explicit invalidation handles revocation and deletion.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// renderKeyPrefix is the Valkey key prefix for rendered certificates.
	renderKeyPrefix = "render:"

	// DefaultRenderTTL is how long a rendered certificate stays cached.
	DefaultRenderTTL = time.Hour
)

// RenderCache stores rendered certificate bytes in Valkey.
type RenderCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRenderCache creates a render cache backed by the given Valkey client.
func NewRenderCache(client *redis.Client, ttl time.Duration) *RenderCache {
	if ttl == 0 {
		ttl = DefaultRenderTTL
	}
	return &RenderCache{client: client, ttl: ttl}
}

// RenderKey identifies one rendering of a certificate. A nil templateID
// means the built-in default layout.
func RenderKey(certID uuid.UUID, templateID *uuid.UUID, version int, format string) string {
	tmpl := "default"
	if templateID != nil {
		tmpl = templateID.String()
	}
	return fmt.Sprintf("%s:%s:%d:%s", certID, tmpl, version, format)
}

// Get retrieves a cached rendering. Misses and errors both report false.
func (rc *RenderCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := rc.client.Get(ctx, renderKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("render cache get error", "key", key, "error", err)
		return nil, false
	}
	slog.Debug("render cache hit", "key", key)
	return val, true
}

// Set stores a rendering with the configured TTL.
func (rc *RenderCache) Set(ctx context.Context, key string, data []byte) {
	if err := rc.client.Set(ctx, renderKeyPrefix+key, data, rc.ttl).Err(); err != nil {
		slog.Warn("render cache set error", "key", key, "error", err)
	}
}

// InvalidateCertificate removes every cached rendering of a certificate.
func (rc *RenderCache) InvalidateCertificate(ctx context.Context, certID uuid.UUID) {
	n := rc.deleteMatching(ctx, renderKeyPrefix+certID.String()+":*")
	slog.Debug("render cache invalidated", "certificate", certID, "deleted", n)
}

// InvalidateTemplate removes every cached rendering made with a template.
func (rc *RenderCache) InvalidateTemplate(ctx context.Context, templateID uuid.UUID) {
	n := rc.deleteMatching(ctx, renderKeyPrefix+"*:"+templateID.String()+":*")
	slog.Debug("render cache invalidated", "template", templateID, "deleted", n)
}

// InvalidateAll removes all cached renderings.
func (rc *RenderCache) InvalidateAll(ctx context.Context) {
	if n := rc.deleteMatching(ctx, renderKeyPrefix+"*"); n > 0 {
		slog.Info("render cache fully cleared", "deleted", n)
	}
}

// deleteMatching scans for keys matching pattern and deletes them in
// batches, returning how many were removed.
func (rc *RenderCache) deleteMatching(ctx context.Context, pattern string) int {
	var cursor uint64
	var deleted int
	for {
		keys, nextCursor, err := rc.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			slog.Warn("render cache scan error", "pattern", pattern, "error", err)
			return deleted
		}
		if len(keys) > 0 {
			if err := rc.client.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("render cache bulk delete error", "error", err)
			}
			deleted += len(keys)
		}
		cursor = nextCursor
		if cursor == 0 {
			return deleted
		}
	}
}
