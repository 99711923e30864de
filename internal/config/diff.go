package config

import (
	"reflect"
	"strings"

	logx "totobot/pkg/logx"
)

// SummarizeChange lists the sections that differ and safe fields for logging.
// Secrets (the bot token) are never included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	fields := make([]logx.Field, 0, 16)

	oT, nT := oldCfg.Telegram, newCfg.Telegram
	if oT.Token != nT.Token || oT.PollTimeout != nT.PollTimeout || oT.CommandTimeout != nT.CommandTimeout ||
		oT.GroupLog != nT.GroupLog ||
		!reflect.DeepEqual(oT.OwnerUserIDs, nT.OwnerUserIDs) ||
		!reflect.DeepEqual(oT.AdminUsernames, nT.AdminUsernames) {
		changed = append(changed, "telegram")
		fields = append(fields,
			logx.Bool("telegram.token_changed", oT.Token != nT.Token),
			logx.Int("telegram.owner_count", len(nT.OwnerUserIDs)),
			logx.Int("telegram.admin_count", len(nT.AdminUsernames)),
			logx.Bool("telegram.group_log_set", strings.TrimSpace(nT.GroupLog) != ""),
		)
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		fields = append(fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram", newCfg.Logging.Telegram.Enabled),
		)
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		fields = append(fields, logx.String("storage.driver", newCfg.Storage.Driver), logx.String("storage.path", newCfg.Storage.Path))
	}
	if oldCfg.Source != newCfg.Source {
		changed = append(changed, "source")
		fields = append(fields, logx.Bool("source.enabled", newCfg.Source.Enabled))
	}
	if oldCfg.Cache != newCfg.Cache {
		changed = append(changed, "cache")
		fields = append(fields, logx.String("cache.timezone", newCfg.Cache.Timezone))
	}
	if oldCfg.Broadcast != newCfg.Broadcast {
		changed = append(changed, "broadcast")
		fields = append(fields,
			logx.Any("broadcast.rate_per_sec", newCfg.Broadcast.RatePerSec),
			logx.Int("broadcast.workers", newCfg.Broadcast.Workers),
			logx.Int("broadcast.retry_max", newCfg.Broadcast.RetryMax),
		)
	}
	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		fields = append(fields,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.String("scheduler.timezone", newCfg.Scheduler.Timezone),
			logx.String("scheduler.notify_schedule", newCfg.Scheduler.NotifySchedule),
		)
	}
	if oldCfg.Observability != newCfg.Observability {
		changed = append(changed, "observability")
		fields = append(fields, logx.Bool("observability.enabled", newCfg.Observability.Enabled), logx.String("observability.addr", newCfg.Observability.Addr))
	}
	return changed, fields
}

// RestartRequired lists changed sections that only take effect after a restart.
func RestartRequired(changed []string) []string {
	var out []string
	for _, s := range changed {
		switch s {
		case "telegram", "storage", "source", "observability":
			out = append(out, s)
		}
	}
	return out
}
