package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	"quizmusic-service/internal/app"
	"quizmusic-service/internal/domain"
)

// SessionStore keeps session snapshots in Redis so any instance can grade a
// session started on another one.
//   - Snapshots live under quiz:session:{id} and expire ttl after the last save.
//   - Saving a graded snapshot is guarded by WATCH: if another instance graded the
//     session first, the save fails with domain.ErrInvalidState. Re-saving the same
//     grading (e.g. once its score is recorded) is allowed.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Save(ctx context.Context, session *app.Session) error {
	snap := session.Snapshot()
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", snap.ID, err)
	}
	key := s.key(snap.ID)

	if snap.State != app.StateGraded {
		return s.client.Set(ctx, key, raw, s.ttl).Err()
	}

	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		switch {
		case isMiss(err):
			return domain.ErrSessionNotFound
		case err != nil:
			return err
		}
		var stored app.SessionSnapshot
		if err := json.Unmarshal(current, &stored); err != nil {
			return fmt.Errorf("decode session %s: %w", snap.ID, err)
		}
		if stored.State == app.StateGraded && (!stored.GradedAt.Equal(snap.GradedAt) || !slices.Equal(stored.Answers, snap.Answers)) {
			return fmt.Errorf("save session %s: %w: graded by another request", snap.ID, domain.ErrInvalidState)
		}
		if stored.Recorded && !snap.Recorded {
			return fmt.Errorf("save session %s: %w: score already recorded", snap.ID, domain.ErrInvalidState)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, s.ttl)
			return nil
		})
		if errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("save session %s: %w: concurrent update", snap.ID, domain.ErrInvalidState)
		}
		return err
	}, key)
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (*app.Session, error) {
	raw, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if isMiss(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	var snap app.SessionSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return app.RestoreSession(snap)
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.key(sessionID)).Err()
}

func (s *SessionStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}
