package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/coldvault/internal/discovery"
	"github.com/dmitrijs2005/coldvault/internal/logging"
	"github.com/dmitrijs2005/coldvault/internal/objstore"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fakeStore counts and timestamps upload attempts per key and fails
// according to plan.
type fakeStore struct {
	mu           sync.Mutex
	attempts     map[string]int
	attemptTimes map[string][]time.Time
	fail         func(key string, attempt int) error
	panicOn      string
}

func newFakeStore(fail func(key string, attempt int) error) *fakeStore {
	return &fakeStore{
		attempts:     map[string]int{},
		attemptTimes: map[string][]time.Time{},
		fail:         fail,
	}
}

func (f *fakeStore) Upload(ctx context.Context, localPath, key string) error {
	f.mu.Lock()
	f.attempts[key]++
	n := f.attempts[key]
	f.attemptTimes[key] = append(f.attemptTimes[key], time.Now())
	f.mu.Unlock()
	if key == f.panicOn {
		panic("corrupted transfer state")
	}
	if f.fail != nil {
		return f.fail(key, n)
	}
	return nil
}

func (f *fakeStore) Restore(ctx context.Context, loc objstore.Locator, days int32, tier string) error {
	return nil
}

func (f *fakeStore) HeadRestore(ctx context.Context, loc objstore.Locator) (objstore.RestoreStatus, error) {
	return objstore.RestoreStatus{}, nil
}

func (f *fakeStore) Download(ctx context.Context, loc objstore.Locator, localPath string) error {
	return nil
}

func (f *fakeStore) attemptsFor(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[key]
}

func (f *fakeStore) attemptTimesFor(key string) []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.attemptTimes[key]...)
}

func factoryFor(store objstore.Store) StoreFactory {
	return func(ctx context.Context) (objstore.Store, error) { return store, nil }
}

func makeTasks(n int) []discovery.FileTask {
	tasks := make([]discovery.FileTask, n)
	for i := range tasks {
		tasks[i] = discovery.FileTask{
			Path: fmt.Sprintf(`\\server\share\f%03d.txt`, i),
			Size: 100,
		}
	}
	return tasks
}

func newTestCoordinator(store objstore.Store, workers, retries int) *Coordinator {
	return NewCoordinator(factoryFor(store), "vault", workers, retries, time.Millisecond, io.Discard, testLogger())
}

func TestRun_AllSucceed(t *testing.T) {
	store := newFakeStore(nil)
	c := newTestCoordinator(store, 4, 3)
	tasks := makeTasks(10)

	results, tally, err := c.Run(context.Background(), tasks)
	require.NoError(t, err)
	require.Len(t, results, len(tasks))

	for i, res := range results {
		assert.True(t, res.Success)
		assert.NoError(t, res.Err)
		// Results come back in task order regardless of worker scheduling.
		assert.Equal(t, tasks[i].Path, res.Path)
		assert.Equal(t, "vault", res.Locator.Bucket)
		assert.NotEmpty(t, res.Locator.Key)
	}
	assert.Equal(t, 10, tally.Succeeded)
	assert.Equal(t, 0, tally.Failed)
	assert.Equal(t, int64(1000), tally.Bytes)
}

func TestRun_TransientErrorsRetriedToSuccess(t *testing.T) {
	store := newFakeStore(func(key string, attempt int) error {
		if attempt < 3 {
			return errors.New("throttled")
		}
		return nil
	})
	c := newTestCoordinator(store, 1, 3)

	results, tally, err := c.Run(context.Background(), makeTasks(1))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, 3, store.attemptsFor(results[0].Locator.Key))
	assert.Equal(t, 1, tally.Succeeded)
}

func TestRun_RetryBoundIsExact(t *testing.T) {
	store := newFakeStore(func(string, int) error { return errors.New("throttled") })
	c := newTestCoordinator(store, 1, 3)

	results, tally, err := c.Run(context.Background(), makeTasks(1))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.ErrorContains(t, results[0].Err, "retries exhausted after 3 attempts")
	assert.Equal(t, 3, store.attemptsFor(results[0].Locator.Key))
	assert.Equal(t, 1, tally.Failed)
}

func TestRun_BackoffGapsNeverShrink(t *testing.T) {
	store := newFakeStore(func(string, int) error { return errors.New("throttled") })
	c := NewCoordinator(factoryFor(store), "vault", 1, 4, 25*time.Millisecond, io.Discard, testLogger())

	results, _, err := c.Run(context.Background(), makeTasks(1))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)

	// Exponential backoff doubles the wait between attempts, so each gap
	// must be at least as long as the one before it.
	times := store.attemptTimesFor(results[0].Locator.Key)
	require.Len(t, times, 4)
	for i := 2; i < len(times); i++ {
		prev := times[i-1].Sub(times[i-2])
		cur := times[i].Sub(times[i-1])
		assert.GreaterOrEqual(t, cur, prev,
			"gap before attempt %d shrank: %v after %v", i+1, cur, prev)
	}
}

func TestRun_PermanentErrorSkipsRetries(t *testing.T) {
	permErr := fmt.Errorf("%w: file vanished", objstore.ErrNotFound)
	store := newFakeStore(func(string, int) error { return permErr })
	c := newTestCoordinator(store, 1, 5)

	results, _, err := c.Run(context.Background(), makeTasks(1))
	require.NoError(t, err)
	assert.False(t, results[0].Success)
	assert.ErrorIs(t, results[0].Err, objstore.ErrNotFound)
	assert.Equal(t, 1, store.attemptsFor(results[0].Locator.Key), "permanent errors must not be retried")
}

func TestRun_PanicBecomesFailedResult(t *testing.T) {
	store := newFakeStore(nil)
	store.panicOn = objstore.KeyForPath(`\\server\share\f001.txt`, time.Now())
	c := newTestCoordinator(store, 2, 1)
	tasks := makeTasks(3)

	results, tally, err := c.Run(context.Background(), tasks)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.ErrorContains(t, results[1].Err, "panic")
	assert.True(t, results[2].Success)
	assert.Equal(t, 2, tally.Succeeded)
	assert.Equal(t, 1, tally.Failed)
}

func TestRun_FailureIsolation(t *testing.T) {
	var n atomic.Int64
	store := newFakeStore(func(key string, attempt int) error {
		if n.Add(1)%2 == 0 {
			return fmt.Errorf("%w: denied", objstore.ErrPermission)
		}
		return nil
	})
	c := newTestCoordinator(store, 4, 1)

	results, tally, err := c.Run(context.Background(), makeTasks(20))
	require.NoError(t, err)
	assert.Equal(t, 20, tally.Succeeded+tally.Failed)
	succeeded := 0
	for _, res := range results {
		if res.Success {
			succeeded++
		}
	}
	assert.Equal(t, tally.Succeeded, succeeded)
	assert.Positive(t, succeeded)
	assert.Positive(t, tally.Failed)
}

func TestRun_StoreInitFailureIsFatal(t *testing.T) {
	c := NewCoordinator(func(ctx context.Context) (objstore.Store, error) {
		return nil, errors.New("bad credentials")
	}, "vault", 2, 1, time.Millisecond, io.Discard, testLogger())

	_, _, err := c.Run(context.Background(), makeTasks(2))
	require.ErrorContains(t, err, "storage client init")
}

func TestPoolWidth(t *testing.T) {
	explicit := NewCoordinator(nil, "b", 7, 1, time.Second, io.Discard, testLogger())
	assert.Equal(t, 7, explicit.PoolWidth())

	auto := NewCoordinator(nil, "b", 0, 1, time.Second, io.Discard, testLogger())
	w := auto.PoolWidth()
	assert.Positive(t, w)
	assert.LessOrEqual(t, w, maxAutoWorkers)
}
