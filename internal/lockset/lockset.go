// Package lockset provides a keyed single-flight guard. A key is held by at
// most one goroutine in the process and, through an advisory file lock, by
// at most one mediafold process sharing the same lock directory.
package lockset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const defaultRetry = 50 * time.Millisecond

// Set hands out keyed locks.
type Set struct {
	dir   string
	retry time.Duration

	mu   sync.Mutex
	held map[string]chan struct{}
}

// New returns a Set that keeps lock files in dir. An empty dir limits the
// guard to the current process.
func New(dir string, retry time.Duration) *Set {
	if retry <= 0 {
		retry = defaultRetry
	}
	return &Set{dir: dir, retry: retry, held: make(map[string]chan struct{})}
}

// MediaKey is the lock key guarding one media item's files and metadata.
func MediaKey(id int64) string {
	return "media-" + strconv.FormatInt(id, 10)
}

// Acquire blocks until key is free or ctx ends. The returned release func is
// safe to call more than once.
func (s *Set) Acquire(ctx context.Context, key string) (func(), error) {
	done, err := s.acquireLocal(ctx, key)
	if err != nil {
		return nil, err
	}
	var fileLock *flock.Flock
	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			s.releaseLocal(key, done)
			return nil, fmt.Errorf("create lock dir: %w", err)
		}
		fileLock = flock.New(filepath.Join(s.dir, fileName(key)))
		ok, err := fileLock.TryLockContext(ctx, s.retry)
		if err != nil || !ok {
			s.releaseLocal(key, done)
			if err == nil {
				err = fmt.Errorf("lock %s not acquired", key)
			}
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if fileLock != nil {
				_ = fileLock.Unlock()
			}
			s.releaseLocal(key, done)
		})
	}, nil
}

func (s *Set) acquireLocal(ctx context.Context, key string) (chan struct{}, error) {
	for {
		s.mu.Lock()
		waitOn, busy := s.held[key]
		if !busy {
			done := make(chan struct{})
			s.held[key] = done
			s.mu.Unlock()
			return done, nil
		}
		s.mu.Unlock()
		select {
		case <-waitOn:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *Set) releaseLocal(key string, done chan struct{}) {
	s.mu.Lock()
	if s.held[key] == done {
		delete(s.held, key)
	}
	s.mu.Unlock()
	close(done)
}

func fileName(key string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
	return safe + ".lock"
}
