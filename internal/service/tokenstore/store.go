// Package tokenstore persists the session token pair.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"FinScreen/internal/domain/models"
	"FinScreen/pkg/logger"
	"FinScreen/pkg/storage"
)

const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
)

// Store is the only owner of the token pair. Every read goes to the backing
// storage so a pair written by another process (CLI login while the
// dashboard runs) is picked up; the mutex keeps pair updates atomic within
// this process.
type Store struct {
	mu  sync.Mutex
	kv  storage.Store
	log *logger.Logger
}

// New creates a token store over kv.
func New(kv storage.Store, l *logger.Logger) *Store {
	if l == nil {
		l = logger.Nop()
	}
	return &Store{kv: kv, log: l.With(logger.String("component", "tokenstore"))}
}

func (s *Store) AccessToken(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(ctx, KeyAccessToken)
}

func (s *Store) RefreshToken(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(ctx, KeyRefreshToken)
}

// Pair returns both tokens read under one lock.
func (s *Store) Pair(ctx context.Context) models.TokenPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.TokenPair{
		Access:  s.get(ctx, KeyAccessToken),
		Refresh: s.get(ctx, KeyRefreshToken),
	}
}

func (s *Store) SetAccessToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Set(ctx, KeyAccessToken, token)
}

func (s *Store) SetRefreshToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Set(ctx, KeyRefreshToken, token)
}

// SetPair persists both tokens. If the second write fails both keys are
// removed so a half-written pair is never observed.
func (s *Store) SetPair(ctx context.Context, pair models.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Set(ctx, KeyAccessToken, pair.Access); err != nil {
		return fmt.Errorf("persist access token: %w", err)
	}
	if err := s.kv.Set(ctx, KeyRefreshToken, pair.Refresh); err != nil {
		_ = s.kv.Delete(ctx, KeyAccessToken, KeyRefreshToken)
		return fmt.Errorf("persist refresh token: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Delete(ctx, KeyAccessToken, KeyRefreshToken)
}

func (s *Store) get(ctx context.Context, key string) string {
	v, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("read token", logger.String("key", key), logger.Error(err))
		}
		return ""
	}
	return v
}
