// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// testValkeyClient returns a Redis client for tests.
// Skips if Valkey is unavailable.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	host := envOr("VALKEY_HOST", "localhost")
	port := envOr("VALKEY_PORT", "6379")
	password := os.Getenv("VALKEY_PASSWORD")

	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Password: password,
		DB:       15, // Use DB 15 for tests.
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping integration test: Valkey not reachable: %v", err)
	}

	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, renderKeyPrefix+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		client.Del(ctx, exportLockKey)
		client.Close()
	})

	return client
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestConnectValkey(t *testing.T) {
	addr := envOr("VALKEY_HOST", "localhost") + ":" + envOr("VALKEY_PORT", "6379")

	client, err := ConnectValkey(ValkeyOptions{Addr: addr, Password: os.Getenv("VALKEY_PASSWORD"), DB: 15})
	if err != nil {
		t.Skipf("skipping: Valkey not available: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	if err := Ping(ctx, client); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	name, err := client.ClientGetName(ctx).Result()
	if err != nil {
		t.Fatalf("CLIENT GETNAME: %v", err)
	}
	if name != ClientName {
		t.Errorf("client name: got %q, want %q", name, ClientName)
	}
}

func TestConnectValkeyUnreachable(t *testing.T) {
	_, err := ConnectValkey(ValkeyOptions{Addr: "127.0.0.1:1"})
	if err == nil || !strings.Contains(err.Error(), "valkey ping") {
		t.Errorf("expected wrapped ping error, got %v", err)
	}
}

func TestValkeyOptions(t *testing.T) {
	o := ValkeyOptions{Addr: "cache:6379", Password: "secret", DB: 2}.redisOptions()
	if o.ClientName != ClientName || o.DB != 2 || o.Password != "secret" {
		t.Errorf("options = %+v", o)
	}
	if o.WriteTimeout != 10*time.Second {
		t.Errorf("default write timeout: got %v", o.WriteTimeout)
	}
	if o := (ValkeyOptions{WriteTimeout: time.Second}).redisOptions(); o.WriteTimeout != time.Second {
		t.Errorf("explicit write timeout: got %v", o.WriteTimeout)
	}
}

func TestRenderKey(t *testing.T) {
	cert := uuid.MustParse("11111111-1111-4111-8111-111111111111")
	tmpl := uuid.MustParse("22222222-2222-4222-8222-222222222222")

	tests := []struct {
		name    string
		tmpl    *uuid.UUID
		version int
		format  string
		want    string
	}{
		{"stored template", &tmpl, 3, "pdf", cert.String() + ":" + tmpl.String() + ":3:pdf"},
		{"default layout", nil, 0, "png", cert.String() + ":default:0:png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderKey(cert, tt.tmpl, tt.version, tt.format); got != tt.want {
				t.Errorf("RenderKey = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderCacheSetAndGet(t *testing.T) {
	client := testValkeyClient(t)
	rc := NewRenderCache(client, time.Minute)
	ctx := context.Background()

	key := RenderKey(uuid.New(), nil, 0, "pdf")
	if _, ok := rc.Get(ctx, key); ok {
		t.Fatal("expected miss before Set")
	}

	rc.Set(ctx, key, []byte("%PDF-1.3 test"))
	got, ok := rc.Get(ctx, key)
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if string(got) != "%PDF-1.3 test" {
		t.Errorf("got %q", got)
	}

	ttl := client.TTL(ctx, renderKeyPrefix+key).Val()
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want (0, 1m]", ttl)
	}
}

func TestRenderCacheInvalidation(t *testing.T) {
	client := testValkeyClient(t)
	rc := NewRenderCache(client, time.Minute)
	ctx := context.Background()

	certA, certB := uuid.New(), uuid.New()
	tmpl := uuid.New()
	aPDF := RenderKey(certA, &tmpl, 1, "pdf")
	aPNG := RenderKey(certA, nil, 0, "png")
	bPDF := RenderKey(certB, &tmpl, 1, "pdf")
	bHTML := RenderKey(certB, nil, 0, "html")
	for _, k := range []string{aPDF, aPNG, bPDF, bHTML} {
		rc.Set(ctx, k, []byte(k))
	}

	rc.InvalidateCertificate(ctx, certA)
	for _, k := range []string{aPDF, aPNG} {
		if _, ok := rc.Get(ctx, k); ok {
			t.Errorf("%s should be gone after InvalidateCertificate", k)
		}
	}
	if _, ok := rc.Get(ctx, bPDF); !ok {
		t.Error("other certificate should stay cached")
	}

	rc.InvalidateTemplate(ctx, tmpl)
	if _, ok := rc.Get(ctx, bPDF); ok {
		t.Error("template rendering should be gone after InvalidateTemplate")
	}
	if _, ok := rc.Get(ctx, bHTML); !ok {
		t.Error("default-layout rendering should survive InvalidateTemplate")
	}

	rc.InvalidateAll(ctx)
	if _, ok := rc.Get(ctx, bHTML); ok {
		t.Error("InvalidateAll should clear everything")
	}
}

func TestNewRenderCacheDefaultTTL(t *testing.T) {
	rc := NewRenderCache(nil, 0)
	if rc.ttl != DefaultRenderTTL {
		t.Errorf("ttl = %v, want %v", rc.ttl, DefaultRenderTTL)
	}
}

func TestExportLock(t *testing.T) {
	client := testValkeyClient(t)
	lock := NewExportLock(client, 5*time.Second)
	ctx := context.Background()

	release, err := lock.Acquire(ctx)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	if _, err := lock.Acquire(ctx); !errors.Is(err, ErrExportInProgress) {
		t.Fatalf("second Acquire: got %v, want ErrExportInProgress", err)
	}

	release()

	release2, err := lock.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	release2()
}
