package recognition

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"
)

// exclusiveWeight is large enough that holding it excludes every shared user.
const exclusiveWeight = 1 << 20

// ModelCache is the process-wide barrier in front of the model directory.
// Until a ready marker exists, callers run one at a time with exclusive
// access so a first download is never raced. Once the marker is written,
// callers share the directory and run concurrently.
type ModelCache struct {
	dir   string
	model string
	sem   *semaphore.Weighted

	mu    sync.Mutex
	ready bool
}

// NewModelCache returns the barrier for model in dir. A marker left by an
// earlier process marks the cache ready immediately.
func NewModelCache(dir, model string) *ModelCache {
	m := &ModelCache{
		dir:   dir,
		model: model,
		sem:   semaphore.NewWeighted(exclusiveWeight),
	}
	if _, err := os.Stat(m.markerPath()); err == nil {
		m.ready = true
	}
	return m
}

// Ready reports whether the cache has been populated.
func (m *ModelCache) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// Use runs fn under the barrier. The first successful call under exclusive
// access writes the ready marker; a failed population leaves the cache cold
// so the next caller retries it exclusively.
func (m *ModelCache) Use(ctx context.Context, fn func(context.Context) error) error {
	if m.Ready() {
		if err := m.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer m.sem.Release(1)
		return fn(ctx)
	}

	if err := m.sem.Acquire(ctx, exclusiveWeight); err != nil {
		return err
	}
	defer m.sem.Release(exclusiveWeight)
	if err := fn(ctx); err != nil {
		return err
	}
	if m.Ready() {
		return nil
	}
	if err := m.markReady(); err != nil {
		return err
	}
	return nil
}

func (m *ModelCache) markReady() error {
	if m.dir != "" {
		if err := os.MkdirAll(m.dir, 0o755); err != nil {
			return fmt.Errorf("model cache: ensure dir: %w", err)
		}
		if err := os.WriteFile(m.markerPath(), []byte(m.model+"\n"), 0o644); err != nil {
			return fmt.Errorf("model cache: write ready marker: %w", err)
		}
	}
	m.mu.Lock()
	m.ready = true
	m.mu.Unlock()
	return nil
}

func (m *ModelCache) markerPath() string {
	name := strings.NewReplacer("/", "_", `\`, "_").Replace(m.model)
	return filepath.Join(m.dir, ".ready-"+name)
}
