package drawcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"totobot/internal/draw"
	"totobot/internal/source"
	logx "totobot/pkg/logx"
)

var sgt = time.FixedZone("SGT", 8*3600)

// Now is Wed 3 Jan 2024 12:00 SGT.
var now = time.Date(2024, time.January, 3, 12, 0, 0, 0, sgt)

var (
	past   = draw.State{Jackpot: "$1,000,000", DrawAt: "Mon, 1 Jan 2024 , 6.30pm"}
	future = draw.State{Jackpot: "$2,000,000 Est", DrawAt: "Thu, 4 Jan 2024 , 6.30pm"}
	later  = draw.State{Jackpot: "$3,000,000 Est", DrawAt: "Mon, 8 Jan 2024 , 6.30pm"}
)

type fakeStore struct {
	mu      sync.Mutex
	st      *draw.State
	reads   int
	writes  int
	readErr error
	putErr  error
}

func (f *fakeStore) PutResult(ctx context.Context, st draw.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.writes++
	f.st = &st
	return nil
}

func (f *fakeStore) LatestResult(ctx context.Context) (*draw.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.readErr != nil {
		return nil, f.readErr
	}
	if f.st == nil {
		return nil, nil
	}
	cp := *f.st
	return &cp, nil
}

type fakeFetcher struct {
	calls atomic.Int32
	st    draw.State
	err   error
	gate  chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context) (draw.State, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return draw.State{}, errors.Join(source.ErrFetch, ctx.Err())
		}
	}
	return f.st, f.err
}

func newCache(store Store, fetcher source.Fetcher) *Cache {
	return New(store, fetcher, Options{Location: sgt, Clock: clockwork.NewFakeClockAt(now), Log: logx.Nop()})
}

func TestFreshMemoryShortCircuits(t *testing.T) {
	store := &fakeStore{}
	fetcher := &fakeFetcher{st: future}
	c := newCache(store, fetcher)

	_, err := c.Current(context.Background())
	require.NoError(t, err)
	readsAfterFirst := store.reads

	got, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, draw.TierMemory, got.Tier)
	assert.Equal(t, future, *got.State)
	assert.Equal(t, readsAfterFirst, store.reads, "memory hit must not touch the store")
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestFreshStoreIsAdoptedWithoutFetch(t *testing.T) {
	st := future
	store := &fakeStore{st: &st}
	fetcher := &fakeFetcher{err: source.ErrFetch}
	c := newCache(store, fetcher)

	got, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, draw.TierStore, got.Tier)
	assert.Equal(t, future, *got.State)
	assert.Equal(t, int32(0), fetcher.calls.Load())
	require.NotNil(t, c.Peek())
	assert.Equal(t, future, *c.Peek())
}

func TestStaleTiersFetchOnceAndWriteBoth(t *testing.T) {
	st := past
	store := &fakeStore{st: &st}
	fetcher := &fakeFetcher{st: future}
	c := newCache(store, fetcher)

	got, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, draw.TierLive, got.Tier)
	assert.False(t, got.Degraded)
	assert.Equal(t, future, *got.State)
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Equal(t, 1, store.writes)
	assert.Equal(t, future, *store.st)
	assert.Equal(t, future, *c.Peek())
}

func TestFetchedStateIsTrustedEvenIfDue(t *testing.T) {
	fetcher := &fakeFetcher{st: past}
	c := newCache(&fakeStore{}, fetcher)

	got, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, draw.TierLive, got.Tier)
	assert.Equal(t, past, *got.State)
}

func TestFetchFailureDegradesToLastKnown(t *testing.T) {
	st := past
	store := &fakeStore{st: &st}
	fetcher := &fakeFetcher{err: errors.Join(source.ErrFetch, errors.New("timeout"))}
	c := newCache(store, fetcher)

	got, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Degraded)
	assert.Equal(t, draw.TierStore, got.Tier)
	assert.Equal(t, past, *got.State)
	assert.Equal(t, 0, store.writes)
}

func TestFetchFailureDegradesToStaleMemory(t *testing.T) {
	clock := clockwork.NewFakeClockAt(now)
	store := &fakeStore{}
	fetcher := &fakeFetcher{st: future}
	c := New(store, fetcher, Options{Location: sgt, Clock: clock, Log: logx.Nop()})

	_, err := c.Current(context.Background())
	require.NoError(t, err)

	// The draw passes and the source goes down.
	clock.Advance(3 * 24 * time.Hour)
	fetcher.err = source.ErrFetch
	store.st = nil

	got, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Degraded)
	assert.Equal(t, draw.TierMemory, got.Tier)
	assert.Equal(t, future, *got.State)
}

func TestNothingKnownAndFetchFailsIsAbsent(t *testing.T) {
	c := newCache(&fakeStore{}, source.Disabled{})

	got, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got.State)
	assert.Equal(t, draw.TierNone, got.Tier)
}

func TestIncompleteFetchIsAFailure(t *testing.T) {
	store := &fakeStore{}
	c := newCache(store, &fakeFetcher{st: draw.State{Jackpot: "$1"}})

	got, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got.State)
	assert.Equal(t, 0, store.writes)
}

func TestStoreErrorsAreReturned(t *testing.T) {
	boom := errors.New("disk gone")

	c := newCache(&fakeStore{readErr: boom}, &fakeFetcher{st: future})
	_, err := c.Current(context.Background())
	assert.ErrorIs(t, err, boom)

	c = newCache(&fakeStore{putErr: boom}, &fakeFetcher{st: future})
	_, err = c.Current(context.Background())
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, c.Peek(), "memory is written before the store")
}

func TestConcurrentMissesShareOneFetch(t *testing.T) {
	fetcher := &fakeFetcher{st: later, gate: make(chan struct{})}
	c := newCache(&fakeStore{}, fetcher)

	const n = 16
	var wg sync.WaitGroup
	results := make([]Lookup, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Current(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(fetcher.gate)
	wg.Wait()

	assert.Equal(t, int32(1), fetcher.calls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i].State)
		assert.Equal(t, later, *results[i].State)
	}
}

func TestCallerCancelDoesNotAbortSharedFetch(t *testing.T) {
	fetcher := &fakeFetcher{st: later, gate: make(chan struct{})}
	store := &fakeStore{}
	c := newCache(store, fetcher)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Current(ctxA)
		errA <- err
	}()
	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		l   Lookup
		err error
	}
	resB := make(chan result, 1)
	go func() {
		l, err := c.Current(context.Background())
		resB <- result{l, err}
	}()

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(fetcher.gate)
	select {
	case r := <-resB:
		require.NoError(t, r.err)
		require.NotNil(t, r.l.State)
		assert.Equal(t, later, *r.l.State)
		assert.Equal(t, draw.TierLive, r.l.Tier)
		assert.False(t, r.l.Degraded)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not return")
	}
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Equal(t, 1, store.writes, "the detached fetch still writes the store")
}
