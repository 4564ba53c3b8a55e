package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	calls  atomic.Int32
	loader *Loader
	delay  time.Duration
}

func (c *countingLoader) Load(ctx context.Context, path string) (*Dataset, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return c.loader.Load(ctx, path)
}

type recordingObserver struct {
	mu        sync.Mutex
	loads     int
	failures  int
	snapshots int
}

func (o *recordingObserver) DatasetLoaded(_ string, _ int, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loads++
	if err != nil {
		o.failures++
	}
}

func (o *recordingObserver) SnapshotComputed(int, time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.snapshots++
}

func TestCache_ReusesDataset(t *testing.T) {
	path := writeCSV(t, testCSV)
	counter := &countingLoader{loader: newTestLoader()}
	cache := NewCache(counter.Load, discardLogger())

	first, err := cache.Get(context.Background(), path)
	require.NoError(t, err)
	second, err := cache.Get(context.Background(), path)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, counter.calls.Load())

	stats := cache.Stats()
	assert.Equal(t, 1, stats["entries"])
	assert.EqualValues(t, 1, stats["hits"])
	assert.EqualValues(t, 1, stats["misses"])
}

func TestCache_RelativeAndAbsolutePathShareEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "train.csv")
	require.NoError(t, os.WriteFile(path, []byte(testCSV), 0o644))
	t.Chdir(dir)

	counter := &countingLoader{loader: newTestLoader()}
	cache := NewCache(counter.Load, discardLogger())

	_, err := cache.Get(context.Background(), "train.csv")
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), path)
	require.NoError(t, err)

	assert.EqualValues(t, 1, counter.calls.Load())
}

func TestCache_ConcurrentLoadsCoalesce(t *testing.T) {
	path := writeCSV(t, testCSV)
	counter := &countingLoader{loader: newTestLoader(), delay: 50 * time.Millisecond}
	cache := NewCache(counter.Load, discardLogger())

	const workers = 16
	results := make([]*Dataset, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ds, err := cache.Get(context.Background(), path)
			assert.NoError(t, err)
			results[i] = ds
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, counter.calls.Load())
	for _, ds := range results {
		assert.Same(t, results[0], ds)
	}
}

func TestCache_ReloadsWhenFileChanges(t *testing.T) {
	path := writeCSV(t, testCSV)
	counter := &countingLoader{loader: newTestLoader()}
	cache := NewCache(counter.Load, discardLogger())

	first, err := cache.Get(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 9, first.Len())

	lines := testHeader + "\n1,A-1,02/01/2017,03/01/2017,First Class,C-1,Ann,Consumer,United States,Austin,Texas,78701,Central,P-1,Technology,Phones,Phone,10\n"
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))

	second, err := cache.Get(context.Background(), path)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 1, second.Len())
	assert.EqualValues(t, 2, counter.calls.Load())
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	path := writeCSV(t, "Row ID,Sales\n1,10\n")
	observer := &recordingObserver{}
	counter := &countingLoader{loader: newTestLoader()}
	cache := NewCache(counter.Load, discardLogger(), WithObserver(observer))

	_, err := cache.Get(context.Background(), path)
	require.Error(t, err)
	assert.True(t, IsDatasetError(err))

	_, err = cache.Get(context.Background(), path)
	require.Error(t, err)

	assert.EqualValues(t, 2, counter.calls.Load())
	assert.Equal(t, 0, cache.Stats()["entries"])
	assert.Equal(t, 2, observer.loads)
	assert.Equal(t, 2, observer.failures)
}

func TestCache_MissingFile(t *testing.T) {
	cache := NewCache(newTestLoader().Load, discardLogger())

	_, err := cache.Get(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))

	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "stat file", lerr.Reason)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCache_Invalidate(t *testing.T) {
	path := writeCSV(t, testCSV)
	counter := &countingLoader{loader: newTestLoader()}
	cache := NewCache(counter.Load, discardLogger())

	_, err := cache.Get(context.Background(), path)
	require.NoError(t, err)

	cache.Invalidate(path)
	assert.Equal(t, 0, cache.Stats()["entries"])

	_, err = cache.Get(context.Background(), path)
	require.NoError(t, err)
	assert.EqualValues(t, 2, counter.calls.Load())
}

func TestCache_CancelledCallerDoesNotFailOthers(t *testing.T) {
	path := writeCSV(t, testCSV)
	counter := &countingLoader{loader: newTestLoader(), delay: 100 * time.Millisecond}
	cache := NewCache(counter.Load, discardLogger())

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := cache.Get(ctxA, path)
		errA <- err
	}()

	time.Sleep(10 * time.Millisecond)
	resB := make(chan error, 1)
	var dsB *Dataset
	go func() {
		ds, err := cache.Get(context.Background(), path)
		dsB = ds
		resB <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancelA()

	err := <-errA
	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, <-resB)
	assert.Equal(t, 9, dsB.Len())
	assert.EqualValues(t, 1, counter.calls.Load())

	// The load finished for B, so A's retry is a cache hit.
	ds, err := cache.Get(context.Background(), path)
	require.NoError(t, err)
	assert.Same(t, dsB, ds)
}

func TestCache_LoadTimeout(t *testing.T) {
	path := writeCSV(t, testCSV)
	blocking := func(ctx context.Context, path string) (*Dataset, error) {
		<-ctx.Done()
		return nil, &LoadError{Path: path, Reason: "cancelled", Err: ctx.Err()}
	}
	cache := NewCache(blocking, discardLogger(), WithLoadTimeout(20*time.Millisecond))

	_, err := cache.Get(context.Background(), path)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
