// Package uploader runs the bounded worker pool that moves discovered files
// into cold storage. Every FileTask yields exactly one Result, even when a
// worker panics; the pool never loses work silently.
package uploader

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/coldvault/internal/discovery"
	"github.com/dmitrijs2005/coldvault/internal/logging"
	"github.com/dmitrijs2005/coldvault/internal/objstore"
)

// Result is the outcome of one upload attempt sequence. Results carry the
// task metadata forward so the finalizer and provenance store do not need to
// join back against the task list.
type Result struct {
	Path      string
	Size      int64
	ModTime   time.Time
	SourceDir string
	Locator   objstore.Locator
	Success   bool
	Err       error
	Elapsed   time.Duration
}

// StoreFactory builds an independent storage-client handle. The pool calls
// it once per worker so workers share no client state.
type StoreFactory func(ctx context.Context) (objstore.Store, error)

// Coordinator owns pool sizing, retry policy and progress rendering.
type Coordinator struct {
	newStore StoreFactory
	bucket   string
	workers  int
	retries  int
	backoff  time.Duration
	out      io.Writer
	log      logging.Logger
}

// maxAutoWorkers caps automatic pool sizing; beyond this the file server,
// not the uploader, is the bottleneck.
const maxAutoWorkers = 20

func NewCoordinator(newStore StoreFactory, bucket string, workers, retries int, backoff time.Duration, out io.Writer, log logging.Logger) *Coordinator {
	return &Coordinator{
		newStore: newStore,
		bucket:   bucket,
		workers:  workers,
		retries:  retries,
		backoff:  backoff,
		out:      out,
		log:      log,
	}
}

// PoolWidth resolves the configured worker count: an explicit positive value
// wins; zero selects 3×CPU (the work is I/O bound) capped at maxAutoWorkers.
func (c *Coordinator) PoolWidth() int {
	if c.workers > 0 {
		return c.workers
	}
	w := runtime.GOMAXPROCS(0) * 3
	if w > maxAutoWorkers {
		w = maxAutoWorkers
	}
	return w
}

// Run uploads all tasks with at most PoolWidth uploads in flight and returns
// one Result per task, in task order, plus the final tally. The only error
// returned is storage-client initialization failure, which is fatal to the
// run before any upload starts.
func (c *Coordinator) Run(ctx context.Context, tasks []discovery.FileTask) ([]Result, Tally, error) {
	width := c.PoolWidth()
	if len(tasks) < width {
		width = len(tasks)
	}

	// All client handles are created up front: a broken storage config
	// should fail the run, not every individual file.
	stores := make([]objstore.Store, width)
	for i := range stores {
		s, err := c.newStore(ctx)
		if err != nil {
			return nil, Tally{}, fmt.Errorf("storage client init: %w", err)
		}
		stores[i] = s
	}

	var totalBytes int64
	for _, t := range tasks {
		totalBytes += t.Size
	}

	events := make(chan progressEvent, width*2)
	tracker := newProgressTracker(c.out, len(tasks), totalBytes)
	tallyCh := make(chan Tally, 1)
	go func() { tallyCh <- tracker.run(events) }()

	type indexed struct {
		i    int
		task discovery.FileTask
	}
	feed := make(chan indexed)
	results := make([]Result, len(tasks))

	g := &errgroup.Group{}
	for w := 0; w < width; w++ {
		store := stores[w]
		g.Go(func() error {
			for item := range feed {
				results[item.i] = c.process(ctx, store, item.task, events)
			}
			return nil
		})
	}

	for i, t := range tasks {
		feed <- indexed{i, t}
	}
	close(feed)
	_ = g.Wait()

	close(events)
	tally := <-tallyCh

	c.log.Info(ctx, "upload pool finished",
		"total", tally.Total, "succeeded", tally.Succeeded, "failed", tally.Failed,
		"bytes", tally.Bytes, "workers", width)

	return results, tally, nil
}

// process uploads one file with bounded retries. A panic inside the SDK or
// our own code is converted into a failed Result so the task is never left
// unresolved.
func (c *Coordinator) process(ctx context.Context, store objstore.Store, task discovery.FileTask, events chan<- progressEvent) (res Result) {
	key := objstore.KeyForPath(task.Path, time.Now())
	res = Result{
		Path:      task.Path,
		Size:      task.Size,
		ModTime:   task.ModTime,
		SourceDir: task.SourceDir,
		Locator:   objstore.Locator{Bucket: c.bucket, Key: key},
	}

	events <- progressEvent{kind: eventStarted, path: task.Path, size: task.Size}

	defer func() {
		if p := recover(); p != nil {
			res.Success = false
			res.Err = fmt.Errorf("upload worker panic: %v", p)
			events <- progressEvent{kind: eventFailed, path: task.Path, size: task.Size}
		}
	}()

	start := time.Now()
	err := c.uploadWithRetry(ctx, store, task.Path, key)
	res.Elapsed = time.Since(start)

	if err != nil {
		res.Err = err
		c.log.Error(ctx, "upload failed", "path", task.Path, "key", key, "err", err)
		events <- progressEvent{kind: eventFailed, path: task.Path, size: task.Size}
		return res
	}

	res.Success = true
	c.log.Debug(ctx, "upload succeeded", "path", task.Path, "key", key, "elapsed", res.Elapsed)
	events <- progressEvent{kind: eventSucceeded, path: task.Path, size: task.Size, elapsed: res.Elapsed}
	return res
}

// uploadWithRetry attempts the upload up to the configured retry count with
// exponential backoff. Permanent failures (missing file, permission denied,
// invalid state) abort immediately without consuming retries.
func (c *Coordinator) uploadWithRetry(ctx context.Context, store objstore.Store, path, key string) error {
	attempts := 0
	backoff := retry.WithMaxRetries(uint64(c.retries-1), retry.NewExponential(c.backoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		err := store.Upload(ctx, path, key)
		if err == nil {
			return nil
		}
		if objstore.IsPermanent(err) {
			return err
		}
		c.log.Warn(ctx, "transient upload failure, will retry",
			"path", path, "attempt", attempts, "max", c.retries, "err", err)
		return retry.RetryableError(err)
	})
	if err != nil && !objstore.IsPermanent(err) && attempts >= c.retries {
		return fmt.Errorf("retries exhausted after %d attempts: %w", attempts, err)
	}
	return err
}
