package storage

import (
	"context"
	"errors"
	"time"

	"totobot/internal/draw"
)

var ErrClosed = errors.New("storage closed")

// Store is the persistence API used by the cache, the broadcaster and the bot.
type Store interface {
	// PutResult replaces the stored draw state. No history is kept.
	PutResult(ctx context.Context, st draw.State) error
	// LatestResult returns the last written state, or nil when none is stored
	// or the stored row is half-populated.
	LatestResult(ctx context.Context) (*draw.State, error)

	// AddRecipient is idempotent.
	AddRecipient(ctx context.Context, chatID int64) error
	// RemoveRecipient is idempotent.
	RemoveRecipient(ctx context.Context, chatID int64) error
	// ListRecipients enumerates every subscriber in ascending chat id order.
	ListRecipients(ctx context.Context) ([]int64, error)

	Close() error
}

// Config configures storage.
//
// If Driver is empty the sqlite driver is used.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means 1s
}
