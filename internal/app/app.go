// Package app wires the components together and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"totobot/internal/bot"
	"totobot/internal/broadcast"
	"totobot/internal/config"
	"totobot/internal/draw"
	"totobot/internal/drawcache"
	"totobot/internal/observability"
	rtsup "totobot/internal/runtime/supervisor"
	"totobot/internal/scheduler"
	"totobot/internal/source"
	"totobot/internal/storage"
	"totobot/internal/transport"
	"totobot/internal/transport/telegram"
	logx "totobot/pkg/logx"
)

// NotifyJob is the scheduler entry that broadcasts the current draw.
const NotifyJob = "notify"

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service

	store   storage.Store
	adapter *telegram.Adapter
	cache   *drawcache.Cache
	bcast   *broadcast.Broadcaster
	sched   *scheduler.Service
	router  *bot.Router
	obs     *observability.Server

	updates chan transport.Update
}

// New loads the config and builds every component. Nothing runs until Start.
func New(cfgm *config.Manager) (*App, error) {
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	// The adapter is the Telegram log sink, so it is created before logging with a console logger.
	bootLog := logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "telegram"))
	ad, err := telegram.New(mapTelegramConfig(cfg), bootLog)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg), ad)
	appLog := log.With(logx.String("comp", "app"))

	store, err := storage.Open(mapStorageConfig(cfg), log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	var fetcher source.Fetcher = source.Disabled{}
	if cfg.Source.Enabled {
		fetcher = source.NewBrowser(mapBrowserConfig(cfg), log.With(logx.String("comp", "source")))
	} else {
		appLog.Warn("live source disabled; serving stored data only")
	}
	fetcher = source.NewBreaker(fetcher, mapBreakerConfig(cfg), log.With(logx.String("comp", "source.breaker")))

	loc, err := draw.LoadLocation(cfg.Cache.Timezone)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	cache := drawcache.New(store, fetcher, drawcache.Options{
		Location: loc,
		Log:      log.With(logx.String("comp", "drawcache")),
	})

	bcast := broadcast.New(store, ad, mapBroadcastConfig(cfg), log.With(logx.String("comp", "broadcast")))
	sched := scheduler.New(mapSchedulerConfig(cfg), log.With(logx.String("comp", "scheduler")))

	a := &App{
		cfgm:    cfgm,
		log:     appLog,
		logs:    logSvc,
		store:   store,
		adapter: ad,
		cache:   cache,
		bcast:   bcast,
		sched:   sched,
		updates: make(chan transport.Update, 256),
	}

	if err := sched.Add(NotifyJob, cfg.Scheduler.NotifySchedule, config.Dur(cfg.Scheduler.JobTimeout, 10*time.Minute), func(ctx context.Context) error {
		_, err := a.Notify(ctx)
		return err
	}); err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}

	a.router = bot.NewRouter(ad, bot.Options{
		Username:       ad.Username(),
		OwnerUserIDs:   cfg.Telegram.OwnerUserIDs,
		AdminUsernames: cfg.Telegram.AdminUsernames,
		CommandTimeout: config.Dur(cfg.Telegram.CommandTimeout, 60*time.Second),
	}, log.With(logx.String("comp", "bot")))
	bot.RegisterDefaults(a.router, bot.Deps{
		Subscriptions: store,
		Status:        cache,
		Notify:        a.Notify,
		Location:      cache.Location,
	})

	a.obs = observability.New(mapObservabilityConfig(cfg), a.health, log.With(logx.String("comp", "observability")))
	return a, nil
}

// Notify looks up the current draw and sends it to every subscriber.
// A missing draw still broadcasts, with placeholders.
func (a *App) Notify(ctx context.Context) (broadcast.Report, error) {
	res, err := a.cache.Current(ctx)
	if err != nil {
		return broadcast.Report{}, fmt.Errorf("current draw: %w", err)
	}
	a.log.Info("notifying subscribers", logx.String("tier", res.Tier.String()), logx.Bool("degraded", res.Degraded))
	return a.bcast.Broadcast(ctx, res.State)
}

func (a *App) health(ctx context.Context) error {
	if _, err := a.store.LatestResult(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if a.sup != nil && a.sup.Context().Err() != nil {
		return errors.New("app stopping")
	}
	return nil
}

// Done is closed when the app supervisor is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.sup.Go0("telegram.menu", func(c context.Context) {
		mctx, cancel := context.WithTimeout(c, 10*time.Second)
		defer cancel()
		if err := a.router.PublishMenu(mctx, a.adapter); err != nil {
			a.log.Warn("menu update failed", logx.Err(err))
		}
	})
	a.sup.Go("bot.dispatch", func(c context.Context) error {
		return a.router.Run(c, a.updates)
	})

	cfg := a.cfgm.Get()
	if cfg.Scheduler.Enabled {
		a.sched.Start(a.sup.Context())
		if next, ok := a.sched.Next(NotifyJob); ok {
			a.log.Info("next notification", logx.Time("at", next))
		}
	} else {
		a.log.Warn("scheduler disabled; notifications only via /broadcast")
	}
	if a.obs.Enabled() {
		a.obs.Start(a.sup.Context())
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.apply(c, last, newCfg)
				last = newCfg
			}
		}
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started", logx.String("bot", a.adapter.Username()))
	return nil
}

// apply pushes a validated config to the components that support live changes.
func (a *App) apply(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, _ := config.SummarizeChange(oldCfg, newCfg)
	if need := config.RestartRequired(sections); len(need) > 0 {
		a.log.Warn("config sections changed that need a restart", logx.String("sections", strings.Join(need, ",")))
	}

	a.logs.Apply(mapLoggingConfig(newCfg))
	a.bcast.Apply(mapBroadcastConfig(newCfg))
	a.router.SetAdmins(newCfg.Telegram.OwnerUserIDs, newCfg.Telegram.AdminUsernames)

	if loc, err := draw.LoadLocation(newCfg.Cache.Timezone); err == nil {
		a.cache.SetLocation(loc)
	}

	a.sched.Apply(mapSchedulerConfig(newCfg))
	if oldCfg.Scheduler.NotifySchedule != newCfg.Scheduler.NotifySchedule {
		a.log.Warn("scheduler.notify_schedule changed; restart required", logx.String("schedule", newCfg.Scheduler.NotifySchedule))
	}
	switch {
	case oldCfg.Scheduler.Enabled && !newCfg.Scheduler.Enabled:
		a.log.Info("scheduler disabled via config")
		sctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.sched.Stop(sctx)
		cancel()
	case !oldCfg.Scheduler.Enabled && newCfg.Scheduler.Enabled:
		a.log.Info("scheduler enabled via config")
		a.sched.Start(ctx)
	}

	a.obs.Reconfigure(ctx, mapObservabilityConfig(newCfg))
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	a.sup.Cancel()

	a.step(ctx, "scheduler", 3*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	a.step(ctx, "observability", time.Second, func(c context.Context) error { a.obs.Stop(c); return nil })
	a.step(ctx, "adapter", 3*time.Second, a.adapter.Stop)
	a.step(ctx, "supervisor", 3*time.Second, a.sup.Wait)
	a.step(ctx, "storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}

// step runs one shutdown step bounded by limit and the caller's deadline.
// A step that overruns is logged and left behind.
func (a *App) step(ctx context.Context, name string, limit time.Duration, fn func(context.Context) error) {
	start := time.Now()
	sctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(sctx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-sctx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
	}
}
