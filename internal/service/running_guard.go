package service

import (
	"context"
	"sync"
)

// ExportedRunningGuard is an exported alias so _test packages can test the guard.
type ExportedRunningGuard = runningGuard

// ExportedDatasetLocks is an exported alias so _test packages can test the locks.
type ExportedDatasetLocks = datasetLocks

// ─────────────────────────────────────────────────────────────
// runningGuard — prevents concurrent processing of the same inbox file
// ─────────────────────────────────────────────────────────────

// runningGuard ensures only one worker handles a given key at a time and
// lets shutdown wait for in-flight work.
type runningGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

// TryLock attempts to mark key as running. Returns false if it already is.
func (g *runningGuard) TryLock(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]struct{})
	}
	if _, ok := g.running[key]; ok {
		return false
	}
	g.running[key] = struct{}{}
	g.wg.Add(1)
	return true
}

// Unlock marks key as no longer running. Must follow a successful TryLock.
func (g *runningGuard) Unlock(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, key)
	g.wg.Done()
}

// WaitAll blocks until all running work completes or ctx is cancelled.
func (g *runningGuard) WaitAll(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// ─────────────────────────────────────────────────────────────
// datasetLocks — one mutex per dataset around load→mutate→save
// ─────────────────────────────────────────────────────────────

type datasetLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Lock acquires the mutex for dataset and returns its release func.
func (l *datasetLocks) Lock(dataset string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[dataset]
	if !ok {
		m = &sync.Mutex{}
		l.locks[dataset] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
