package recognition

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"
	"lukechampine.com/blake3"

	"reelsync/internal/fileutil"
)

// inflightDir holds the scratch directories of running computations.
const inflightDir = ".inflight"

// TranscriptCache stores transcriptions keyed by a BLAKE3 digest of the
// audio bytes plus the model and language that produced them. Concurrent
// requests for the same key share one computation, which runs on a copy of
// the audio in a scratch directory the cache owns. The shared computation
// is cancelled only once every caller waiting on it has gone.
type TranscriptCache struct {
	dir    string
	flight singleflight.Group

	mu    sync.Mutex
	calls map[string]*flight
}

// flight is the shared state of one in-progress computation.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int

	// staged is closed once the creator has copied the audio into dir.
	staged   chan struct{}
	stageErr error
	dir      string
	audio    string
}

// NewTranscriptCache returns a cache rooted at dir.
func NewTranscriptCache(dir string) *TranscriptCache {
	return &TranscriptCache{dir: dir, calls: make(map[string]*flight)}
}

// Key digests the audio file together with the recognition settings.
func Key(audioPath, model, lang string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("cache key: %w", err)
	}
	defer f.Close()
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("cache key: hash audio: %w", err)
	}
	_, _ = io.WriteString(h, "\x00"+model+"\x00"+lang)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ComputeFunc transcribes audioPath using workDir for scratch files.
type ComputeFunc func(ctx context.Context, audioPath, workDir string) (Transcription, error)

// Do returns the cached transcription for key or computes, stores, and
// returns it. The caller's audioPath is only read before Do returns, so the
// caller may remove it afterwards even if other callers are still waiting.
// A caller that gives up while others wait leaves the computation running;
// the last one to give up cancels it and waits for it to stop. Store
// failures are not fatal; the computed value is returned.
func (c *TranscriptCache) Do(ctx context.Context, key, audioPath string, compute ComputeFunc) (Transcription, error) {
	for {
		out, retry, err := c.attempt(ctx, key, audioPath, compute)
		if !retry {
			return out, err
		}
	}
}

type flightResult struct {
	out Transcription
	f   *flight
}

func (c *TranscriptCache) attempt(ctx context.Context, key, audioPath string, compute ComputeFunc) (Transcription, bool, error) {
	if cached, ok := c.load(key); ok {
		cached.Cached = true
		return cached, false, nil
	}

	f, created := c.join(ctx, key)
	if created {
		c.stage(f, key, audioPath)
	}
	ch := c.flight.DoChan(key, func() (any, error) {
		<-f.staged
		defer f.removeScratch()
		if f.stageErr != nil {
			return flightResult{f: f}, f.stageErr
		}
		if cached, ok := c.load(key); ok {
			cached.Cached = true
			return flightResult{out: cached, f: f}, nil
		}
		out, err := compute(f.ctx, f.audio, f.dir)
		if err != nil {
			return flightResult{f: f}, err
		}
		_ = c.store(key, out)
		return flightResult{out: out, f: f}, nil
	})

	select {
	case res := <-ch:
		if c.leave(key, f) {
			f.removeScratch()
		}
		ran := res.Val.(flightResult)
		if res.Err != nil {
			// Joined a computation its own waiters abandoned; start over.
			if ran.f != f && ran.f.ctx.Err() != nil && ctx.Err() == nil {
				return Transcription{}, true, nil
			}
			return Transcription{}, false, res.Err
		}
		return ran.out, false, nil
	case <-ctx.Done():
		if c.leave(key, f) {
			<-ch
			f.removeScratch()
		}
		return Transcription{}, false, ctx.Err()
	}
}

// join registers the caller as a waiter on key's flight, creating it when
// none is in progress.
func (c *TranscriptCache) join(ctx context.Context, key string) (*flight, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.calls[key]; ok {
		f.waiters++
		return f, false
	}
	fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f := &flight{ctx: fctx, cancel: cancel, waiters: 1, staged: make(chan struct{})}
	c.calls[key] = f
	return f, true
}

// leave drops the caller from f and reports whether it was the last waiter,
// in which case the computation is cancelled. The last waiter owns removing
// the scratch directory once the computation has returned.
func (c *TranscriptCache) leave(key string, f *flight) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return false
	}
	f.cancel()
	if c.calls[key] == f {
		delete(c.calls, key)
	}
	return true
}

func (f *flight) removeScratch() {
	if f.dir != "" {
		_ = os.RemoveAll(f.dir)
	}
}

// stage copies the audio into a scratch directory under the cache so the
// computation never touches a caller's workspace.
func (c *TranscriptCache) stage(f *flight, key, audioPath string) {
	defer close(f.staged)
	if c.dir == "" {
		f.stageErr = errors.New("transcript cache: no directory")
		return
	}
	root := filepath.Join(c.dir, inflightDir)
	if err := os.MkdirAll(root, 0o755); err != nil {
		f.stageErr = fmt.Errorf("transcript cache: %w", err)
		return
	}
	dir, err := os.MkdirTemp(root, key[:min(len(key), 16)]+"-")
	if err != nil {
		f.stageErr = fmt.Errorf("transcript cache: %w", err)
		return
	}
	f.dir = dir
	f.audio = filepath.Join(dir, "audio"+filepath.Ext(audioPath))
	if err := fileutil.CopyFile(audioPath, f.audio); err != nil {
		f.stageErr = fmt.Errorf("transcript cache: stage audio: %w", err)
	}
}

func (c *TranscriptCache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func (c *TranscriptCache) load(key string) (Transcription, bool) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return Transcription{}, false
	}
	var out Transcription
	if err := json.Unmarshal(data, &out); err != nil {
		return Transcription{}, false
	}
	return out, true
}

func (c *TranscriptCache) store(key string, t Transcription) error {
	if c.dir == "" {
		return errors.New("transcript cache: no directory")
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(c.dir, "."+key+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.path(key))
}
