package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"totobot/internal/draw"
	logx "totobot/pkg/logx"
)

// fileStore keeps everything in one JSON snapshot.
// Each mutation rewrites the snapshot via a temp file and rename.
type fileStore struct {
	log  logx.Logger
	path string

	mu     sync.Mutex
	closed bool
	snap   snapshot
}

type snapshot struct {
	Result      *storedResult `json:"result,omitempty"`
	Subscribers []int64       `json:"subscribers"`
}

type storedResult struct {
	Jackpot   string    `json:"jackpot"`
	NextDraw  string    `json:"next_draw"`
	UpdatedAt time.Time `json:"updated_at"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{log: log, path: path}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	case len(strings.TrimSpace(string(b))) > 0:
		if err := json.Unmarshal(b, &s.snap); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		slices.Sort(s.snap.Subscribers)
		s.snap.Subscribers = slices.Compact(s.snap.Subscribers)
	}
	log.Info("file store opened", logx.String("path", path), logx.Int("subscribers", len(s.snap.Subscribers)))
	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fileStore) PutResult(ctx context.Context, st draw.State) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	prev := s.snap.Result
	s.snap.Result = &storedResult{Jackpot: st.Jackpot, NextDraw: st.DrawAt, UpdatedAt: time.Now().UTC()}
	if err := s.flushLocked(); err != nil {
		s.snap.Result = prev
		return fmt.Errorf("put result: %w", err)
	}
	return nil
}

func (s *fileStore) LatestResult(ctx context.Context) (*draw.State, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.snap.Result == nil {
		return nil, nil
	}
	return resultOrNil(s.snap.Result.Jackpot, s.snap.Result.NextDraw), nil
}

func (s *fileStore) AddRecipient(ctx context.Context, chatID int64) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	i, found := slices.BinarySearch(s.snap.Subscribers, chatID)
	if found {
		return nil
	}
	s.snap.Subscribers = slices.Insert(s.snap.Subscribers, i, chatID)
	if err := s.flushLocked(); err != nil {
		s.snap.Subscribers = slices.Delete(s.snap.Subscribers, i, i+1)
		return fmt.Errorf("add recipient: %w", err)
	}
	return nil
}

func (s *fileStore) RemoveRecipient(ctx context.Context, chatID int64) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	i, found := slices.BinarySearch(s.snap.Subscribers, chatID)
	if !found {
		return nil
	}
	s.snap.Subscribers = slices.Delete(s.snap.Subscribers, i, i+1)
	if err := s.flushLocked(); err != nil {
		s.snap.Subscribers = slices.Insert(s.snap.Subscribers, i, chatID)
		return fmt.Errorf("remove recipient: %w", err)
	}
	return nil
}

func (s *fileStore) ListRecipients(ctx context.Context) ([]int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return slices.Clone(s.snap.Subscribers), nil
}

func (s *fileStore) flushLocked() error {
	b, err := json.MarshalIndent(s.snap, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
