// Package drawcache answers "what is the current draw state?" from the
// cheapest tier that holds a fresh answer: process memory, then the store,
// then a live fetch.
package drawcache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"totobot/internal/draw"
	"totobot/internal/metrics"
	"totobot/internal/source"
	"totobot/internal/storage"
	logx "totobot/pkg/logx"
)

// Store is the subset of storage.Store the cache needs.
type Store interface {
	PutResult(ctx context.Context, st draw.State) error
	LatestResult(ctx context.Context) (*draw.State, error)
}

var _ Store = (storage.Store)(nil)

// Lookup is the answer to Current. State is nil when nothing was ever known.
type Lookup struct {
	State *draw.State
	Tier  draw.Tier
	// Degraded is set when State is a stale last-known value served because
	// the live fetch failed.
	Degraded bool
}

type Options struct {
	Location *time.Location // nil means draw.DefaultLocation()
	Clock    clockwork.Clock
	Log      logx.Logger
}

type Cache struct {
	store   Store
	fetcher source.Fetcher
	loc     atomic.Pointer[time.Location]
	clock   clockwork.Clock
	log     logx.Logger

	mem atomic.Pointer[draw.State]
	sf  singleflight.Group
}

func New(store Store, fetcher source.Fetcher, opts Options) *Cache {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Log.IsZero() {
		opts.Log = logx.Nop()
	}
	c := &Cache{store: store, fetcher: fetcher, clock: opts.Clock, log: opts.Log}
	c.SetLocation(opts.Location)
	return c
}

// SetLocation changes the zone draw times are evaluated in.
func (c *Cache) SetLocation(loc *time.Location) {
	if loc == nil {
		loc = draw.DefaultLocation()
	}
	c.loc.Store(loc)
}

// Location is the zone draw times are evaluated in.
func (c *Cache) Location() *time.Location { return c.loc.Load() }

// Peek returns the memory tier without any I/O.
func (c *Cache) Peek() *draw.State {
	if p := c.mem.Load(); p != nil {
		st := *p
		return &st
	}
	return nil
}

func (c *Cache) stale(st *draw.State) bool {
	return st == nil || !st.Valid() || draw.IsStale(st.DrawAt, c.clock.Now(), c.loc.Load())
}

// Current returns the best available draw state. Fetch failures degrade to the
// last known state and are never returned; store failures are.
func (c *Cache) Current(ctx context.Context) (Lookup, error) {
	if st := c.Peek(); !c.stale(st) {
		return c.done(Lookup{State: st, Tier: draw.TierMemory}), nil
	}

	stored, err := c.store.LatestResult(ctx)
	if err != nil {
		return Lookup{}, fmt.Errorf("read store: %w", err)
	}
	if !c.stale(stored) {
		c.mem.Store(stored)
		return c.done(Lookup{State: clone(stored), Tier: draw.TierStore}), nil
	}

	// The shared fetch outlives any single caller: one waiter giving up must
	// not cancel the fetch the others are waiting on. The fetcher bounds it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.sf.DoChan("live", func() (any, error) {
		return c.refresh(fetchCtx)
	})
	var r singleflight.Result
	select {
	case <-ctx.Done():
		return Lookup{}, ctx.Err()
	case r = <-ch:
	}
	if r.Err != nil {
		return Lookup{}, r.Err
	}
	res := r.Val.(refreshResult)
	if r.Shared {
		c.log.Debug("joined in-flight fetch")
	}
	if res.fetched != nil {
		return c.done(Lookup{State: clone(res.fetched), Tier: draw.TierLive}), nil
	}

	// The source failed. Fall back to whatever was last known.
	if last := c.Peek(); last != nil && last.Valid() {
		metrics.CacheDegradedTotal.Inc()
		return c.done(Lookup{State: last, Tier: draw.TierMemory, Degraded: true}), nil
	}
	if stored != nil && stored.Valid() {
		metrics.CacheDegradedTotal.Inc()
		return c.done(Lookup{State: clone(stored), Tier: draw.TierStore, Degraded: true}), nil
	}
	return c.done(Lookup{Tier: draw.TierNone}), nil
}

type refreshResult struct {
	fetched *draw.State
}

// refresh performs the single live fetch shared by concurrent misses.
// A nil fetched with a nil error means the source failed.
func (c *Cache) refresh(ctx context.Context) (refreshResult, error) {
	st, err := c.fetcher.Fetch(ctx)
	if err == nil && !st.Valid() {
		err = source.ErrIncomplete
	}
	if err != nil {
		metrics.FetchTotal.WithLabelValues("failure").Inc()
		c.log.Warn("live fetch failed; serving last known state", logx.Err(err))
		return refreshResult{}, nil
	}
	metrics.FetchTotal.WithLabelValues("success").Inc()

	// Memory first so concurrent readers see the value before the store write lands.
	c.mem.Store(&st)
	if err := c.store.PutResult(ctx, st); err != nil {
		return refreshResult{}, fmt.Errorf("write store: %w", err)
	}
	c.log.Info("draw state refreshed", logx.String("jackpot", st.Jackpot), logx.String("draw_at", st.DrawAt))
	return refreshResult{fetched: &st}, nil
}

func (c *Cache) done(l Lookup) Lookup {
	metrics.CacheLookupsTotal.WithLabelValues(l.Tier.String()).Inc()
	return l
}

func clone(st *draw.State) *draw.State {
	if st == nil {
		return nil
	}
	cp := *st
	return &cp
}
