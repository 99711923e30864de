// Package broadcast delivers one notification to every subscriber with
// per-recipient failure isolation.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"totobot/internal/draw"
	"totobot/internal/metrics"
	"totobot/internal/transport"
	logx "totobot/pkg/logx"
	"totobot/pkg/tgui"
)

// Recipients enumerates delivery targets.
type Recipients interface {
	ListRecipients(ctx context.Context) ([]int64, error)
}

type Config struct {
	RatePerSec  float64       // Telegram allows ~30 msg/s across chats; 0 means 25
	Workers     int           // concurrent sends; 0 means 4
	RetryMax    int           // extra attempts for transient failures
	RetryDelay  time.Duration // multiplied by the attempt number; 0 means 1s
	SendTimeout time.Duration // per attempt; 0 means 15s
}

func (c Config) withDefaults() Config {
	if c.RatePerSec <= 0 {
		c.RatePerSec = 25
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 15 * time.Second
	}
	return c
}

type Failure struct {
	ChatID    int64
	Attempts  int
	Permanent bool
	Err       string
}

// Report summarizes one broadcast.
type Report struct {
	ID        uuid.UUID
	Attempted int
	Succeeded int
	Failed    int
	Failures  []Failure
	StartedAt time.Time
	DoneAt    time.Time
}

type Broadcaster struct {
	rec    Recipients
	sender transport.Sender
	log    logx.Logger

	mu      sync.RWMutex
	cfg     Config
	limiter *rate.Limiter
}

func New(rec Recipients, sender transport.Sender, cfg Config, log logx.Logger) *Broadcaster {
	if log.IsZero() {
		log = logx.Nop()
	}
	b := &Broadcaster{rec: rec, sender: sender, log: log}
	b.Apply(cfg)
	return b
}

// Apply swaps pacing and retry settings. In-flight broadcasts keep the old ones.
func (b *Broadcaster) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	b.mu.Lock()
	b.cfg = cfg
	b.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), max(1, int(cfg.RatePerSec)))
	b.mu.Unlock()
}

func (b *Broadcaster) settings() (Config, *rate.Limiter) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg, b.limiter
}

// Broadcast sends the update for st to every current recipient. A nil st
// still sends, with placeholders. The only error is failing to enumerate
// recipients; delivery failures are recorded in the Report.
func (b *Broadcaster) Broadcast(ctx context.Context, st *draw.State) (Report, error) {
	rep := Report{ID: uuid.New(), StartedAt: time.Now()}
	log := b.log.With(logx.String("broadcast_id", rep.ID.String()))

	ids, err := b.rec.ListRecipients(ctx)
	if err != nil {
		return rep, fmt.Errorf("list recipients: %w", err)
	}
	metrics.Subscribers.Set(float64(len(ids)))
	rep.Attempted = len(ids)

	cfg, limiter := b.settings()
	body := FormatUpdate(st).String()
	opt := &transport.SendOptions{ParseMode: tgui.ParseModeHTML, DisablePreview: true}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(cfg.Workers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			attempts, err := b.deliver(ctx, cfg, limiter, id, body, opt)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				rep.Succeeded++
				metrics.DeliveriesTotal.WithLabelValues("sent").Inc()
				return nil
			}
			permanent := errors.Is(err, transport.ErrRecipientUnreachable)
			rep.Failed++
			rep.Failures = append(rep.Failures, Failure{ChatID: id, Attempts: attempts, Permanent: permanent, Err: err.Error()})
			if permanent {
				metrics.DeliveriesTotal.WithLabelValues("unreachable").Inc()
			} else {
				metrics.DeliveriesTotal.WithLabelValues("failed").Inc()
			}
			log.Warn("delivery failed", logx.Int64("chat_id", id), logx.Int("attempts", attempts), logx.Bool("permanent", permanent), logx.Err(err))
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(rep.Failures, func(a, b Failure) int {
		switch {
		case a.ChatID < b.ChatID:
			return -1
		case a.ChatID > b.ChatID:
			return 1
		}
		return 0
	})
	rep.DoneAt = time.Now()
	metrics.BroadcastsTotal.Inc()
	metrics.BroadcastDuration.Observe(rep.DoneAt.Sub(rep.StartedAt).Seconds())
	log.Info("broadcast done",
		logx.Int("attempted", rep.Attempted),
		logx.Int("succeeded", rep.Succeeded),
		logx.Int("failed", rep.Failed),
		logx.Duration("took", rep.DoneAt.Sub(rep.StartedAt)),
	)
	return rep, nil
}

// deliver sends to one chat, retrying transient failures with a linearly
// growing delay. It returns the number of attempts made.
func (b *Broadcaster) deliver(ctx context.Context, cfg Config, limiter *rate.Limiter, chatID int64, body string, opt *transport.SendOptions) (int, error) {
	var err error
	for attempt := 1; ; attempt++ {
		if werr := limiter.Wait(ctx); werr != nil {
			if err == nil {
				err = werr
			}
			return attempt - 1, err
		}
		sctx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
		_, err = b.sender.SendText(sctx, transport.ChatTarget{ChatID: chatID}, body, opt)
		cancel()
		if err == nil {
			return attempt, nil
		}
		if errors.Is(err, transport.ErrRecipientUnreachable) || attempt > cfg.RetryMax {
			return attempt, err
		}

		t := time.NewTimer(time.Duration(attempt) * cfg.RetryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return attempt, err
		case <-t.C:
		}
	}
}
