package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"totobot/internal/draw"
	"totobot/internal/scheduler"
)

var ErrInvalid = errors.New("invalid config")

// Validate checks every field that can be checked without I/O.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if strings.TrimSpace(c.Telegram.Token) == "" {
		add(fmt.Errorf("telegram.token is required (or set %s)", EnvToken))
	}
	if g := strings.TrimSpace(c.Telegram.GroupLog); g != "" {
		if _, err := strconv.ParseInt(g, 10, 64); err != nil {
			add(fmt.Errorf("telegram.group_log: chat id must be numeric: %q", g))
		}
	}
	if c.Logging.Telegram.Enabled && strings.TrimSpace(c.Telegram.GroupLog) == "" {
		add(errors.New("logging.telegram.enabled requires telegram.group_log"))
	}

	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "sqlite", "sqlite3", "file":
	default:
		add(fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		add(fmt.Errorf("storage.path is required (or set %s)", EnvDBPath))
	}

	if c.Source.BreakerFailures < 0 {
		add(errors.New("source.breaker_failures must be >= 0"))
	}
	if c.Broadcast.RatePerSec < 0 {
		add(errors.New("broadcast.rate_per_sec must be >= 0"))
	}
	if c.Broadcast.Workers < 0 {
		add(errors.New("broadcast.workers must be >= 0"))
	}
	if c.Broadcast.RetryMax < 0 {
		add(errors.New("broadcast.retry_max must be >= 0"))
	}

	for _, d := range []struct{ path, raw string }{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"telegram.command_timeout", c.Telegram.CommandTimeout},
		{"storage.busy_timeout", c.Storage.BusyTimeout},
		{"source.timeout", c.Source.Timeout},
		{"source.render_wait", c.Source.RenderWait},
		{"source.breaker_cooldown", c.Source.BreakerCooldown},
		{"broadcast.retry_delay", c.Broadcast.RetryDelay},
		{"broadcast.send_timeout", c.Broadcast.SendTimeout},
		{"scheduler.job_timeout", c.Scheduler.JobTimeout},
	} {
		_, err := ParseDurationField(d.path, d.raw)
		add(err)
	}

	for _, tz := range []struct{ path, name string }{
		{"cache.timezone", c.Cache.Timezone},
		{"scheduler.timezone", c.Scheduler.Timezone},
	} {
		if _, err := draw.LoadLocation(tz.name); err != nil {
			add(fmt.Errorf("%s: %w", tz.path, err))
		}
	}

	if c.Scheduler.Enabled {
		if err := scheduler.ValidateSpec(c.Scheduler.NotifySchedule); err != nil {
			add(fmt.Errorf("scheduler.notify_schedule: %w", err))
		}
	}
	if c.Observability.Enabled && strings.TrimSpace(c.Observability.Addr) == "" {
		add(errors.New("observability.addr is required when enabled"))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}
