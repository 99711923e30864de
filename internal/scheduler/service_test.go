package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "totobot/pkg/logx"
)

func noop(context.Context) error { return nil }

func TestAddValidates(t *testing.T) {
	s := New(Config{}, logx.Nop())
	require.NoError(t, s.Add("notify", "0 10 * * SUN,THU", time.Minute, noop))
	assert.Error(t, s.Add("notify", "@daily", 0, noop), "duplicate name")
	assert.Error(t, s.Add("bad", "61 * * * *", 0, noop))
	assert.Error(t, s.Add("nil", "@daily", 0, nil))
}

func TestDefaultZoneAndNextFire(t *testing.T) {
	s := New(Config{}, logx.Nop())
	require.NoError(t, s.Add("notify", "0 10 * * SUN,THU", time.Minute, noop))
	assert.Equal(t, "Asia/Singapore", s.Location().String())

	_, ok := s.Next("notify")
	assert.False(t, ok, "not started")

	s.Start(context.Background())
	defer s.Stop(context.Background())

	next, ok := s.Next("notify")
	require.True(t, ok)
	local := next.In(s.Location())
	assert.Contains(t, []time.Weekday{time.Sunday, time.Thursday}, local.Weekday())
	assert.Equal(t, 10, local.Hour())
	assert.Equal(t, 0, local.Minute())
	assert.True(t, next.After(time.Now()))
}

func TestApplyMovesZone(t *testing.T) {
	s := New(Config{Timezone: "Asia/Singapore"}, logx.Nop())
	require.NoError(t, s.Add("notify", "0 10 * * *", 0, noop))
	s.Start(context.Background())
	defer s.Stop(context.Background())

	s.Apply(Config{Timezone: "UTC"})
	assert.Equal(t, "UTC", s.Location().String())
	next, ok := s.Next("notify")
	require.True(t, ok)
	assert.Equal(t, 10, next.In(time.UTC).Hour())
}

func TestApplySameResolvedZoneKeepsSchedule(t *testing.T) {
	s := New(Config{}, logx.Nop())
	require.NoError(t, s.Add("notify", "0 10 * * *", 0, noop))
	s.Start(context.Background())
	defer s.Stop(context.Background())

	s.mu.Lock()
	before := s.c
	s.mu.Unlock()

	s.Apply(Config{Timezone: "Asia/Singapore"})
	s.Apply(Config{Timezone: " Asia/Singapore "})
	s.Apply(Config{Timezone: "Mars/Olympus"})
	s.mu.Lock()
	assert.Same(t, before, s.c, "equivalent zones must not rebuild the cron")
	s.mu.Unlock()

	s.Apply(Config{Timezone: "UTC"})
	s.mu.Lock()
	assert.NotSame(t, before, s.c)
	s.mu.Unlock()
	assert.Equal(t, "UTC", s.Location().String())
}

func TestInvalidZoneFallsBack(t *testing.T) {
	s := New(Config{Timezone: "Mars/Olympus"}, logx.Nop())
	assert.Equal(t, "Asia/Singapore", s.Location().String())
}

func TestJobRunsAndStopCancels(t *testing.T) {
	s := New(Config{}, logx.Nop())
	var runs atomic.Int32
	require.NoError(t, s.Add("tick", "@every 1s", 0, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}))
	s.Start(context.Background())

	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	_, ok := s.Next("tick")
	assert.False(t, ok)
}
