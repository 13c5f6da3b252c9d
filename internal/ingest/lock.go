package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRunInProgress is returned when another ingestion run holds the lease.
var ErrRunInProgress = errors.New("ingestion run already in progress")

const lockKey = "pricehound:ingest:lock"

// Locker serializes ingestion runs. Acquire returns a release func on
// success and ErrRunInProgress when the lease is already held.
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// RunLock is a Redis lease shared across processes. The TTL bounds how
// long a crashed holder can block the next run.
type RunLock struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRunLock(rdb *redis.Client, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RunLock{rdb: rdb, ttl: ttl}
}

func (l *RunLock) Acquire(ctx context.Context) (func(), error) {
	ok, err := l.rdb.SetNX(ctx, lockKey, "1", l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("run lock setnx: %w", err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	release := func() {
		// Best effort; an expired lease releases itself.
		_ = l.rdb.Del(context.Background(), lockKey).Err()
	}
	return release, nil
}

// LocalLock serializes runs within a single process, for deployments
// without Redis.
type LocalLock struct {
	mu   sync.Mutex
	held bool
}

func NewLocalLock() *LocalLock { return &LocalLock{} }

func (l *LocalLock) Acquire(context.Context) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, ErrRunInProgress
	}
	l.held = true
	release := func() {
		l.mu.Lock()
		l.held = false
		l.mu.Unlock()
	}
	return release, nil
}
