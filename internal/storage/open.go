package storage

import (
	"fmt"
	"strings"

	"totobot/internal/draw"
	logx "totobot/pkg/logx"
)

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "file":
		return openFile(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}

func resultOrNil(jackpot, drawAt string) *draw.State {
	st := draw.State{Jackpot: jackpot, DrawAt: drawAt}
	if !st.Valid() {
		return nil
	}
	return &st
}
