// Package cache provides Valkey (Redis-compatible) client initialization
// plus the render cache and export lock used by the certificate service.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClientName identifies certforge connections in CLIENT LIST.
const ClientName = "certforge"

// ValkeyOptions configures the client shared by sessions, the render cache
// and the export lock.
type ValkeyOptions struct {
	Addr     string
	Password string
	DB       int

	// WriteTimeout bounds a single command write. Rendered PDFs stored in
	// the render cache run to a few megabytes, well past the client's 3s
	// default on slow links. Zero means 10s.
	WriteTimeout time.Duration
}

func (o ValkeyOptions) redisOptions() *redis.Options {
	wt := o.WriteTimeout
	if wt <= 0 {
		wt = 10 * time.Second
	}
	return &redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		ClientName:   ClientName,
		WriteTimeout: wt,
	}
}

// ConnectValkey creates a Valkey client and verifies the connection with a ping.
func ConnectValkey(opts ValkeyOptions) (*redis.Client, error) {
	client := redis.NewClient(opts.redisOptions())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := Ping(ctx, client); err != nil {
		client.Close()
		return nil, err
	}

	slog.Info("valkey connected", "addr", opts.Addr, "db", opts.DB)
	return client, nil
}

// Ping checks that Valkey answers. The health endpoint calls it on every
// request.
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("valkey ping: %w", err)
	}
	return nil
}
