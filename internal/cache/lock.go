// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrExportInProgress is returned when another bulk export holds the lock.
var ErrExportInProgress = errors.New("an export is already in progress")

const exportLockKey = "lock:export"

// DefaultExportLockTTL bounds how long a crashed export can block others.
const DefaultExportLockTTL = 10 * time.Minute

// ExportLock serializes bulk exports across server instances.
type ExportLock struct {
	locker *redislock.Client
	ttl    time.Duration
}

// NewExportLock creates an export lock on the given Valkey client.
func NewExportLock(client *redis.Client, ttl time.Duration) *ExportLock {
	if ttl == 0 {
		ttl = DefaultExportLockTTL
	}
	return &ExportLock{locker: redislock.New(client), ttl: ttl}
}

// Acquire takes the export lock without waiting. The returned function
// releases it. Returns ErrExportInProgress when the lock is held.
func (l *ExportLock) Acquire(ctx context.Context) (release func(), err error) {
	lock, err := l.locker.Obtain(ctx, exportLockKey, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrExportInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("obtain export lock: %w", err)
	}
	return func() {
		// The request context may be gone by now.
		_ = lock.Release(context.Background())
	}, nil
}
