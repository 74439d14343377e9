package authprovider

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// StoredSession is the server-side record of a provider session.
type StoredSession struct {
	SessionID string
	UserID    string
	Email     string
	DeviceID  string
	CreatedAt time.Time
}

// SessionStore persists provider sessions keyed by session id, with a
// pointer from each device to its current session.
type SessionStore interface {
	Save(ctx context.Context, s StoredSession, ttl time.Duration) error
	Load(ctx context.Context, sessionID string) (*StoredSession, error)
	LoadByDevice(ctx context.Context, deviceID string) (*StoredSession, error)
	Delete(ctx context.Context, s StoredSession) error
}

var ErrSessionNotFound = errors.New("session not found")

type RedisSessionStore struct {
	rdb *redis.Client
}

func NewRedisSessionStore(rdb *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb}
}

func sessionKey(sid string) string    { return "auth:session:" + sid }
func deviceKey(device string) string { return "auth:device:" + device }

func (s *RedisSessionStore) Save(ctx context.Context, ss StoredSession, ttl time.Duration) error {
	if s.rdb == nil {
		return errors.New("redis session store not configured")
	}
	key := sessionKey(ss.SessionID)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"user_id":    ss.UserID,
		"email":      ss.Email,
		"device_id":  ss.DeviceID,
		"sid":        ss.SessionID,
		"created_at": ss.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, key, ttl)
	if ss.DeviceID != "" {
		pipe.Set(ctx, deviceKey(ss.DeviceID), ss.SessionID, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisSessionStore) Load(ctx context.Context, sessionID string) (*StoredSession, error) {
	if s.rdb == nil {
		return nil, ErrSessionNotFound
	}
	data, err := s.rdb.HGetAll(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrSessionNotFound
	}
	created, _ := time.Parse(time.RFC3339Nano, data["created_at"])
	return &StoredSession{
		SessionID: data["sid"],
		UserID:    data["user_id"],
		Email:     data["email"],
		DeviceID:  data["device_id"],
		CreatedAt: created,
	}, nil
}

func (s *RedisSessionStore) LoadByDevice(ctx context.Context, deviceID string) (*StoredSession, error) {
	if s.rdb == nil {
		return nil, ErrSessionNotFound
	}
	sid, err := s.rdb.Get(ctx, deviceKey(deviceID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.Load(ctx, sid)
}

// Delete drops the session and the device pointer when it still points at it.
func (s *RedisSessionStore) Delete(ctx context.Context, ss StoredSession) error {
	if s.rdb == nil {
		return nil
	}
	if err := s.rdb.Del(ctx, sessionKey(ss.SessionID)).Err(); err != nil {
		return err
	}
	if ss.DeviceID == "" {
		return nil
	}
	cur, err := s.rdb.Get(ctx, deviceKey(ss.DeviceID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	if cur == ss.SessionID {
		return s.rdb.Del(ctx, deviceKey(ss.DeviceID)).Err()
	}
	return nil
}

var _ SessionStore = (*RedisSessionStore)(nil)
