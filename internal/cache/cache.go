// Package cache holds the in-process caches in front of the expense
// backend: a TTL-bounded LRU and a loader that collapses concurrent misses.
package cache

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Clear()
	Size() int
}

// Observer is told about every lookup; metrics implement it.
type Observer interface {
	CacheLookup(hit bool)
}

// DefaultLoadTimeout bounds a shared load once it no longer follows the
// caller's context.
const DefaultLoadTimeout = 15 * time.Second

// Loader serves values from an LRU, calling load on a miss. Concurrent
// misses for the same key share a single load.
type Loader[T any] struct {
	lru      *LRUCache[T]
	group    singleflight.Group
	observer Observer
	// LoadTimeout caps each load; callers leaving early do not cancel it.
	LoadTimeout time.Duration
	// gen is bumped by Invalidate. It is part of the singleflight key, so a
	// load started before a write is neither joined nor stored afterwards.
	mu  sync.Mutex
	gen uint64
}

func NewLoader[T any](maxSize int, ttl time.Duration, observer Observer) *Loader[T] {
	return &Loader[T]{
		lru:         NewLRUCache[T](maxSize, ttl),
		observer:    observer,
		LoadTimeout: DefaultLoadTimeout,
	}
}

// Get returns the cached value for key or loads it.
func (l *Loader[T]) Get(ctx context.Context, key string, load func(context.Context) (T, error)) (T, error) {
	if v, ok := l.lru.Get(key); ok {
		l.observe(true)
		return v, nil
	}
	l.observe(false)

	l.mu.Lock()
	gen := l.gen
	l.mu.Unlock()

	v, err, shared := l.group.Do(key+"@"+strconv.FormatUint(gen, 10), func() (any, error) {
		lctx := context.WithoutCancel(ctx)
		if l.LoadTimeout > 0 {
			var cancel context.CancelFunc
			lctx, cancel = context.WithTimeout(lctx, l.LoadTimeout)
			defer cancel()
		}
		v, err := load(lctx)
		if err != nil {
			return v, err
		}
		l.mu.Lock()
		if gen == l.gen {
			l.lru.Set(key, v)
		}
		l.mu.Unlock()
		return v, nil
	})
	if shared {
		slog.DebugContext(ctx, "Cache load shared", "key", key)
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate drops every cached value. Call it after each write.
func (l *Loader[T]) Invalidate() {
	l.mu.Lock()
	l.gen++
	l.lru.Clear()
	l.mu.Unlock()
}

// CleanExpired lets a Manager sweep the underlying LRU.
func (l *Loader[T]) CleanExpired() int {
	return l.lru.CleanExpired()
}

func (l *Loader[T]) Size() int {
	return l.lru.Size()
}

func (l *Loader[T]) observe(hit bool) {
	if l.observer != nil {
		l.observer.CacheLookup(hit)
	}
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically sweeps expired entries from registered caches.
type Manager struct {
	mu          sync.Mutex
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

func NewManager() *Manager {
	return &Manager{}
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches = append(m.caches, c)
}

// StartCleanup begins periodic cleanup of all registered caches. Calling
// it again while running has no effect.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopCleanup != nil {
		return
	}
	m.stopCleanup = make(chan struct{})
	m.cleanupDone = make(chan struct{})
	go m.cleanup(interval, m.stopCleanup, m.cleanupDone)
}

// Sweep runs one cleanup pass and returns the number of entries removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	caches := append([]Cleaner(nil), m.caches...)
	m.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.CleanExpired()
	}
	return total
}

func (m *Manager) cleanup(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				slog.Debug("Cache cleanup", "removed", n)
			}
		case <-stop:
			return
		}
	}
}

// Stop gracefully stops the cleanup routine
func (m *Manager) Stop() {
	m.mu.Lock()
	stop, done := m.stopCleanup, m.cleanupDone
	m.stopCleanup, m.cleanupDone = nil, nil
	m.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
}
