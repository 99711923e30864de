package app

import (
	"strconv"
	"strings"
	"time"

	"totobot/internal/broadcast"
	"totobot/internal/config"
	"totobot/internal/observability"
	"totobot/internal/scheduler"
	"totobot/internal/source"
	"totobot/internal/storage"
	"totobot/internal/transport/telegram"
	logx "totobot/pkg/logx"
)

// The mappers below assume cfg already passed config.Validate.

func mapLoggingConfig(cfg *config.Config) logx.Config {
	var chatID int64
	if g := strings.TrimSpace(cfg.Telegram.GroupLog); g != "" {
		chatID, _ = strconv.ParseInt(g, 10, 64)
	}
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     chatID,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapTelegramConfig(cfg *config.Config) telegram.Config {
	return telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: config.Dur(cfg.Telegram.PollTimeout, 10*time.Second),
	}
}

func mapStorageConfig(cfg *config.Config) storage.Config {
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)),
		Path:        strings.TrimSpace(cfg.Storage.Path),
		BusyTimeout: config.Dur(cfg.Storage.BusyTimeout, time.Second),
	}
}

func mapBrowserConfig(cfg *config.Config) source.BrowserConfig {
	return source.BrowserConfig{
		URL:        cfg.Source.URL,
		Timeout:    config.Dur(cfg.Source.Timeout, 45*time.Second),
		RenderWait: config.Dur(cfg.Source.RenderWait, 0),
		Headless:   cfg.Source.Headless,
		ExecPath:   cfg.Source.ChromePath,
		UserAgent:  cfg.Source.UserAgent,
	}
}

func mapBreakerConfig(cfg *config.Config) source.BreakerConfig {
	return source.BreakerConfig{
		Failures: uint32(max(0, cfg.Source.BreakerFailures)),
		Cooldown: config.Dur(cfg.Source.BreakerCooldown, 5*time.Minute),
	}
}

func mapBroadcastConfig(cfg *config.Config) broadcast.Config {
	return broadcast.Config{
		RatePerSec:  cfg.Broadcast.RatePerSec,
		Workers:     cfg.Broadcast.Workers,
		RetryMax:    cfg.Broadcast.RetryMax,
		RetryDelay:  config.Dur(cfg.Broadcast.RetryDelay, time.Second),
		SendTimeout: config.Dur(cfg.Broadcast.SendTimeout, 15*time.Second),
	}
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{Timezone: cfg.Scheduler.Timezone}
}

func mapObservabilityConfig(cfg *config.Config) observability.Config {
	return observability.Config{
		Enabled: cfg.Observability.Enabled,
		Addr:    cfg.Observability.Addr,
		Pprof:   cfg.Observability.Pprof,
	}
}
