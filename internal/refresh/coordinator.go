package refresh

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/catseek/catseek/internal/index"
	"github.com/catseek/catseek/internal/source"
)

const (
	// DefaultDebounce is how long after the last observed change event a
	// reactive rebuild fires.
	DefaultDebounce = 500 * time.Millisecond

	// sweepInterval is the scheduled safety net for environments where
	// change notifications are unreliable (network or virtualized
	// filesystems). The check itself is a cheap stat unless the source
	// actually changed.
	sweepInterval = time.Hour
)

// Options configures a Coordinator.
type Options struct {
	// Debounce overrides DefaultDebounce when positive.
	Debounce time.Duration
	// RefreshHour is the hour of day [0,23] on which the sweep forces a
	// full rebuild even if the signature looks unchanged; -1 disables.
	RefreshHour int
	// DisableWatcher and DisableSweep turn off the background triggers;
	// used by tests that drive CheckAndReload directly.
	DisableWatcher bool
	DisableSweep   bool
}

// Coordinator owns the lifecycle of the current index generation. All
// mutation funnels through it: the initial build, debounced reactions to
// file-change notifications, the scheduled sweep, and the per-query
// check-and-reload all share one singleflight slot, so a rebuild in
// progress is never restarted by an overlapping trigger.
type Coordinator struct {
	builder *index.Builder
	path    string
	opts    Options

	current atomic.Pointer[index.Generation]
	seq     atomic.Uint64
	group   singleflight.Group

	watcher *Watcher
	stop    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// New creates a Coordinator for the catalog at path. Call Start to build
// the first generation and begin watching.
func New(builder *index.Builder, path string, opts Options) *Coordinator {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Coordinator{
		builder: builder,
		path:    path,
		opts:    opts,
		stop:    make(chan struct{}),
	}
}

// Start performs the initial build and starts the background triggers.
// With no prior generation to fall back on, a failed initial build is
// fatal and surfaces to the caller.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.Reload(ctx); err != nil {
		return fmt.Errorf("initial index build failed: %w", err)
	}

	if !c.opts.DisableWatcher {
		w, err := NewWatcher(c.path, c.opts.Debounce, func() {
			if err := c.CheckAndReload(context.Background()); err != nil {
				log.Printf("refresh: reactive rebuild failed, keeping previous generation: %v", err)
			}
		})
		if err != nil {
			log.Printf("refresh: file watching unavailable, relying on scheduled sweep: %v", err)
		} else {
			c.watcher = w
		}
	}

	if !c.opts.DisableSweep {
		c.wg.Add(1)
		go c.sweep()
	}
	return nil
}

// Stop tears down the background triggers and retires the current
// generation. Safe to call once after Start. A debounce callback that
// already fired may still be running; the stopped flag keeps it from
// publishing past this point.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()

	close(c.stop)
	if c.watcher != nil {
		c.watcher.Close()
	}
	c.wg.Wait()
	if g := c.current.Swap(nil); g != nil {
		g.Retire()
	}
}

// Current returns the published generation, nil before the first build.
func (c *Coordinator) Current() *index.Generation {
	return c.current.Load()
}

// CheckAndReload rebuilds the index if the source signature differs from
// the one recorded at the last successful build. Concurrent callers join
// the same in-flight check.
func (c *Coordinator) CheckAndReload(ctx context.Context) error {
	_, err, _ := c.group.Do("reload", func() (interface{}, error) {
		return nil, c.reload(ctx, false)
	})
	return err
}

// Reload rebuilds unconditionally: startup and the configured refresh
// hour go through here.
func (c *Coordinator) Reload(ctx context.Context) error {
	_, err, _ := c.group.Do("reload", func() (interface{}, error) {
		return nil, c.reload(ctx, true)
	})
	return err
}

// reload is the single mutation path. It either publishes a complete new
// generation or leaves the previous one authoritative. After Stop it does
// nothing: a build that raced shutdown is retired instead of published,
// so no generation outlives the coordinator.
func (c *Coordinator) reload(ctx context.Context, force bool) error {
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if stopped {
		return nil
	}

	sig, err := source.FileSignature(c.path)
	if err != nil {
		return err
	}

	cur := c.current.Load()
	if !force && cur != nil && cur.Signature().Equal(sig) {
		return nil
	}

	g, err := c.builder.Build(ctx, c.seq.Add(1))
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		g.Retire()
		return nil
	}
	old := c.current.Swap(g)
	c.mu.Unlock()
	if old != nil {
		old.Retire()
	}
	return nil
}

func (c *Coordinator) sweep() {
	defer c.wg.Done()
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			var err error
			if c.opts.RefreshHour >= 0 && now.Hour() == c.opts.RefreshHour {
				err = c.Reload(context.Background())
			} else {
				err = c.CheckAndReload(context.Background())
			}
			if err != nil {
				log.Printf("refresh: scheduled sweep failed, keeping previous generation: %v", err)
			}
		}
	}
}
