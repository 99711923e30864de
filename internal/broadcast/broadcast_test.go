package broadcast

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"totobot/internal/draw"
	"totobot/internal/storage"
	"totobot/internal/transport"
	logx "totobot/pkg/logx"
)

type staticRecipients struct {
	ids []int64
	err error
}

func (s staticRecipients) ListRecipients(ctx context.Context) ([]int64, error) { return s.ids, s.err }

type fakeSender struct {
	mu    sync.Mutex
	fail  map[int64][]error // consumed one per attempt
	sent  map[int64]string
	calls map[int64]int
	opts  *transport.SendOptions
}

func newFakeSender() *fakeSender {
	return &fakeSender{fail: map[int64][]error{}, sent: map[int64]string{}, calls: map[int64]int{}}
}

func (f *fakeSender) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[to.ChatID]++
	f.opts = opt
	if errs := f.fail[to.ChatID]; len(errs) > 0 {
		err := errs[0]
		f.fail[to.ChatID] = errs[1:]
		return transport.MessageRef{}, err
	}
	f.sent[to.ChatID] = text
	return transport.MessageRef{ChatID: to.ChatID, MessageID: 1}, nil
}

func fastConfig() Config {
	return Config{RatePerSec: 1000, Workers: 3, RetryMax: 2, RetryDelay: time.Millisecond}
}

func TestFormatUpdate(t *testing.T) {
	st := &draw.State{Jackpot: "$4,500,000 Est", DrawAt: "Thu, 4 Jan 2024 , 6.30pm"}
	assert.Equal(t,
		"🏆 <b>TOTO Update</b>\n💰 Prize: $4,500,000 Est\n📅 Next Draw: Thu, 4 Jan 2024 , 6.30pm",
		FormatUpdate(st).String())
}

func TestFormatUpdatePlaceholders(t *testing.T) {
	want := "🏆 <b>TOTO Update</b>\n💰 Prize: (not available)\n📅 Next Draw: (not available)"
	assert.Equal(t, want, FormatUpdate(nil).String())
	assert.Equal(t, want, FormatUpdate(&draw.State{Jackpot: "  "}).String())
}

func TestFormatUpdateHalfPopulatedIsNoState(t *testing.T) {
	want := "🏆 <b>TOTO Update</b>\n💰 Prize: (not available)\n📅 Next Draw: (not available)"
	assert.Equal(t, want, FormatUpdate(&draw.State{Jackpot: "$1"}).String())
	assert.Equal(t, want, FormatUpdate(&draw.State{DrawAt: "Mon, 1 Jan 2024, 6:30pm"}).String())
}

func TestFormatUpdateEscapesPageText(t *testing.T) {
	got := FormatUpdate(&draw.State{Jackpot: "<script>&", DrawAt: "soon"}).String()
	assert.Contains(t, got, "Prize: &lt;script&gt;&amp;")
}

func TestOneUnreachableRecipientDoesNotAbort(t *testing.T) {
	sender := newFakeSender()
	sender.fail[3] = []error{fmt.Errorf("bot was blocked: %w", transport.ErrRecipientUnreachable)}
	b := New(staticRecipients{ids: []int64{1, 2, 3, 4, 5}}, sender, fastConfig(), logx.Nop())

	rep, err := b.Broadcast(context.Background(), &draw.State{Jackpot: "$1", DrawAt: "Mon, 1 Jan 2024, 6:30pm"})
	require.NoError(t, err)
	assert.Equal(t, 5, rep.Attempted)
	assert.Equal(t, 4, rep.Succeeded)
	assert.Equal(t, 1, rep.Failed)
	require.Len(t, rep.Failures, 1)
	assert.Equal(t, int64(3), rep.Failures[0].ChatID)
	assert.True(t, rep.Failures[0].Permanent)
	assert.Equal(t, 1, rep.Failures[0].Attempts, "unreachable recipients are not retried")
	assert.Len(t, sender.sent, 4)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", rep.ID.String())
	assert.False(t, rep.DoneAt.Before(rep.StartedAt))
	assert.Equal(t, "HTML", sender.opts.ParseMode)
}

func TestTransientFailuresAreRetried(t *testing.T) {
	sender := newFakeSender()
	flaky := errors.New("connection reset")
	sender.fail[7] = []error{flaky, flaky}
	sender.fail[8] = []error{flaky, flaky, flaky}
	b := New(staticRecipients{ids: []int64{7, 8}}, sender, fastConfig(), logx.Nop())

	rep, err := b.Broadcast(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Attempted)
	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 3, sender.calls[7])
	assert.Equal(t, 3, sender.calls[8])
	require.Len(t, rep.Failures, 1)
	assert.Equal(t, int64(8), rep.Failures[0].ChatID)
	assert.False(t, rep.Failures[0].Permanent)
	assert.Equal(t, 3, rep.Failures[0].Attempts)
}

func TestEnumerationErrorIsReturned(t *testing.T) {
	boom := errors.New("db locked")
	b := New(staticRecipients{err: boom}, newFakeSender(), fastConfig(), logx.Nop())

	_, err := b.Broadcast(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
}

func TestNoRecipients(t *testing.T) {
	b := New(staticRecipients{}, newFakeSender(), fastConfig(), logx.Nop())
	rep, err := b.Broadcast(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Attempted)
	assert.Empty(t, rep.Failures)
}

func TestApplyUpdatesSettings(t *testing.T) {
	b := New(staticRecipients{}, newFakeSender(), Config{}, logx.Nop())
	cfg, _ := b.settings()
	assert.Equal(t, 4, cfg.Workers)

	b.Apply(Config{Workers: 9, RatePerSec: 5})
	cfg, lim := b.settings()
	assert.Equal(t, 9, cfg.Workers)
	assert.Equal(t, 5, lim.Burst())
}

func TestRecipientsAreListedAtBroadcastTime(t *testing.T) {
	ctx := context.Background()
	store, err := storage.Open(storage.Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "toto.db")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.AddRecipient(ctx, 10))
	sender := newFakeSender()
	b := New(store, sender, fastConfig(), logx.Nop())
	st := &draw.State{Jackpot: "$1", DrawAt: "Mon, 1 Jan 2024, 6:30pm"}

	rep, err := b.Broadcast(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Attempted)

	// Subscribe and unsubscribe between broadcasts, as /start and /unsubscribe would.
	require.NoError(t, store.AddRecipient(ctx, 20))
	require.NoError(t, store.AddRecipient(ctx, 30))
	require.NoError(t, store.RemoveRecipient(ctx, 10))
	sender.sent = map[int64]string{}

	rep, err = b.Broadcast(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Attempted)
	assert.Equal(t, 2, rep.Succeeded)
	assert.Contains(t, sender.sent, int64(20))
	assert.Contains(t, sender.sent, int64(30))
	assert.NotContains(t, sender.sent, int64(10))
}
