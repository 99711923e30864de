package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"totobot/internal/config"
)

func TestMapDefaults(t *testing.T) {
	cfg := config.Default()
	cfg.Telegram.Token = "123:abc"

	sc := mapStorageConfig(&cfg)
	assert.Equal(t, "sqlite", sc.Driver)
	assert.Equal(t, "./data/toto.db", sc.Path)
	assert.Equal(t, time.Second, sc.BusyTimeout)

	bc := mapBroadcastConfig(&cfg)
	assert.Equal(t, 25.0, bc.RatePerSec)
	assert.Equal(t, 4, bc.Workers)
	assert.Equal(t, 2, bc.RetryMax)
	assert.Equal(t, 15*time.Second, bc.SendTimeout)

	br := mapBreakerConfig(&cfg)
	assert.Equal(t, uint32(3), br.Failures)
	assert.Equal(t, 5*time.Minute, br.Cooldown)

	src := mapBrowserConfig(&cfg)
	assert.Equal(t, 45*time.Second, src.Timeout)
	assert.Equal(t, 3*time.Second, src.RenderWait)
	assert.True(t, src.Headless)

	assert.Equal(t, 10*time.Second, mapTelegramConfig(&cfg).PollTimeout)
	assert.Equal(t, config.DefaultTimezone, mapSchedulerConfig(&cfg).Timezone)
	assert.Equal(t, "127.0.0.1:9090", mapObservabilityConfig(&cfg).Addr)
}

func TestMapLoggingTelegramTarget(t *testing.T) {
	cfg := config.Default()
	cfg.Telegram.GroupLog = "-100123"
	cfg.Logging.Telegram.Enabled = true
	cfg.Logging.Telegram.ThreadID = 7

	lc := mapLoggingConfig(&cfg)
	assert.True(t, lc.Telegram.Enabled)
	assert.Equal(t, int64(-100123), lc.Telegram.ChatID)
	assert.Equal(t, 7, lc.Telegram.ThreadID)

	cfg.Telegram.GroupLog = ""
	assert.Zero(t, mapLoggingConfig(&cfg).Telegram.ChatID)
}

func TestMapStorageNormalizesDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Storage = config.StorageConfig{Driver: " FILE ", Path: " ./data/toto.json "}
	sc := mapStorageConfig(&cfg)
	assert.Equal(t, "file", sc.Driver)
	assert.Equal(t, "./data/toto.json", sc.Path)
}
