package config

// Config is the whole bot configuration.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// Omitted fields keep the values from Default().
type Config struct {
	Telegram      TelegramConfig      `json:"telegram"`
	Logging       LoggingConfig       `json:"logging"`
	Storage       StorageConfig       `json:"storage"`
	Source        SourceConfig        `json:"source"`
	Cache         CacheConfig         `json:"cache"`
	Broadcast     BroadcastConfig     `json:"broadcast"`
	Scheduler     SchedulerConfig     `json:"scheduler"`
	Observability ObservabilityConfig `json:"observability"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// AdminUsernames may run /listsubs and /broadcast. Compared case-insensitively, without "@".
	AdminUsernames []string `json:"admin_usernames"`
	// GroupLog is the operator chat id for the Telegram log sink.
	GroupLog    string `json:"group_log"`
	PollTimeout string `json:"poll_timeout"`
	// CommandTimeout bounds one command handler.
	CommandTimeout string `json:"command_timeout"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig selects the persistence driver.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/toto.db", "busy_timeout": "2s" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// SourceConfig controls the live results page fetcher.
// Enabled=false turns every live fetch into an immediate failure.
type SourceConfig struct {
	Enabled         bool   `json:"enabled"`
	URL             string `json:"url"`
	Timeout         string `json:"timeout"`
	RenderWait      string `json:"render_wait"`
	Headless        bool   `json:"headless"`
	ChromePath      string `json:"chrome_path,omitempty"`
	UserAgent       string `json:"user_agent,omitempty"`
	BreakerFailures int    `json:"breaker_failures"`
	BreakerCooldown string `json:"breaker_cooldown"`
}

// CacheConfig sets the zone draw times are published in.
type CacheConfig struct {
	Timezone string `json:"timezone"`
}

type BroadcastConfig struct {
	RatePerSec  float64 `json:"rate_per_sec"`
	Workers     int     `json:"workers"`
	RetryMax    int     `json:"retry_max"`
	RetryDelay  string  `json:"retry_delay"`
	SendTimeout string  `json:"send_timeout"`
}

type SchedulerConfig struct {
	Enabled        bool   `json:"enabled"`
	Timezone       string `json:"timezone"`
	NotifySchedule string `json:"notify_schedule"`
	JobTimeout     string `json:"job_timeout"`
}

// ObservabilityConfig controls the HTTP server exposing /metrics, /healthz
// and (optionally) /debug/pprof/.
//
// Prefer binding to localhost. pprof on a public address leaks internals.
type ObservabilityConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
	Pprof   bool   `json:"pprof"`
}

const (
	DefaultNotifySchedule = "0 10 * * SUN,THU"
	DefaultTimezone       = "Asia/Singapore"
	DefaultUserAgent      = "TotoNotifierBot/1.0"
)

// Default returns a config that runs with only a token supplied.
func Default() Config {
	return Config{
		Telegram: TelegramConfig{
			PollTimeout:    "10s",
			CommandTimeout: "60s",
		},
		Logging: LoggingConfig{Level: "info", Console: true},
		Storage: StorageConfig{Driver: "sqlite", Path: "./data/toto.db", BusyTimeout: "1s"},
		Source: SourceConfig{
			Enabled:         true,
			Timeout:         "45s",
			RenderWait:      "3s",
			Headless:        true,
			UserAgent:       DefaultUserAgent,
			BreakerFailures: 3,
			BreakerCooldown: "5m",
		},
		Cache: CacheConfig{Timezone: DefaultTimezone},
		Broadcast: BroadcastConfig{
			RatePerSec:  25,
			Workers:     4,
			RetryMax:    2,
			RetryDelay:  "1s",
			SendTimeout: "15s",
		},
		Scheduler: SchedulerConfig{
			Enabled:        true,
			Timezone:       DefaultTimezone,
			NotifySchedule: DefaultNotifySchedule,
			JobTimeout:     "10m",
		},
		Observability: ObservabilityConfig{Addr: "127.0.0.1:9090"},
	}
}
