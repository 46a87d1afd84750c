package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"water-bill-portal/internal/billing"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrConcurrentUpdate = errors.New("session was modified concurrently")
)

const (
	SessionKeyPrefix = "session:"

	// MaxUpdateRetries bounds how often Update re-runs a transaction that
	// lost a race on the watched key.
	MaxUpdateRetries = 5
)

type SessionStore struct {
	db  *redis.Client
	ttl time.Duration
}

func NewSessionStore(db *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		db:  db,
		ttl: ttl,
	}
}

func sessionKey(id string) string {
	return SessionKeyPrefix + id
}

// Save writes the session and refreshes its expiry.
func (s *SessionStore) Save(ctx context.Context, session *billing.Session) error {
	raw, err := sonic.ConfigFastest.Marshal(session)
	if err != nil {
		slog.Error("failed to marshal session", "err", err, "sessionId", session.ID)
		return err
	}

	if err := s.db.Set(ctx, sessionKey(session.ID), raw, s.ttl).Err(); err != nil {
		slog.Error("failed to save session in redis", "err", err, "sessionId", session.ID)
		return err
	}

	return nil
}

func (s *SessionStore) Load(ctx context.Context, id string) (*billing.Session, error) {
	return decodeSession(s.db.Get(ctx, sessionKey(id)), id)
}

func decodeSession(cmd *redis.StringCmd, id string) (*billing.Session, error) {
	raw, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		slog.Error("failed to load session from redis", "err", err, "sessionId", id)
		return nil, err
	}

	var session billing.Session
	if err := sonic.ConfigFastest.Unmarshal(raw, &session); err != nil {
		slog.Error("failed to unmarshal session", "err", err, "sessionId", id)
		return nil, err
	}

	if err := session.Check(); err != nil {
		return nil, fmt.Errorf("stored session %s: %w", id, err)
	}

	return &session, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	n, err := s.db.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		slog.Error("failed to delete session", "err", err, "sessionId", id)
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}

	return nil
}

// Update applies fn to the stored session inside a WATCH transaction. fn
// errors are returned as-is and nothing is written. When another writer
// touches the session first, the transaction is re-run with a fresh copy up
// to MaxUpdateRetries times, then ErrConcurrentUpdate is returned.
func (s *SessionStore) Update(ctx context.Context, id string, fn func(*billing.Session) error) (*billing.Session, error) {
	key := sessionKey(id)

	var session *billing.Session
	txf := func(tx *redis.Tx) error {
		var err error
		session, err = decodeSession(tx.Get(ctx, key), id)
		if err != nil {
			return err
		}

		if err := fn(session); err != nil {
			return err
		}

		raw, err := sonic.ConfigFastest.Marshal(session)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, s.ttl)
			return nil
		})
		return err
	}

	for attempt := 1; attempt <= MaxUpdateRetries; attempt++ {
		err := s.db.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return session, err
		}
		slog.Debug("session changed during update, retrying", "sessionId", id, "attempt", attempt)
	}

	return nil, ErrConcurrentUpdate
}
