// Package source fetches the current draw state from the live results page.
package source

import (
	"context"
	"errors"

	"totobot/internal/draw"
)

var (
	// ErrFetch wraps every fetch failure.
	ErrFetch = errors.New("fetch failed")
	// ErrIncomplete reports a page that rendered without one of the two fields.
	ErrIncomplete = errors.New("incomplete draw state")
	// ErrDisabled is returned by the Disabled fetcher.
	ErrDisabled = errors.New("live source disabled")
)

// Fetcher retrieves a fresh draw state. Implementations are safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context) (draw.State, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (draw.State, error)

func (f FetcherFunc) Fetch(ctx context.Context) (draw.State, error) { return f(ctx) }

// Disabled never reaches the network.
type Disabled struct{}

func (Disabled) Fetch(context.Context) (draw.State, error) {
	return draw.State{}, errors.Join(ErrFetch, ErrDisabled)
}
